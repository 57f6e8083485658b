package ps

import (
	"fmt"
	"sort"

	"github.com/go-git/go-git/v6/plumbing"
)

// Tag names a journal point: the commit of asof, or HEAD when asof is nil.
func (j *Journal) Tag(name string, asof *Transaction) error {
	if err := j.ensureInitialized(); err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	var hash plumbing.Hash
	if asof != nil {
		hash = plumbing.NewHash(asof.Id)
	} else {
		headRef, err := j.repo.Head()
		if err != nil {
			return fmt.Errorf("journal has no commits to tag")
		}
		hash = headRef.Hash()
	}

	if _, err := j.repo.CreateTag(name, hash, nil); err != nil {
		return fmt.Errorf("failed to create tag '%s': %w", name, err)
	}
	return nil
}

// Tags returns tag names mapped to the commit they mark.
func (j *Journal) Tags() (map[string]string, error) {
	if err := j.ensureInitialized(); err != nil {
		return nil, err
	}

	j.mu.RLock()
	defer j.mu.RUnlock()

	iter, err := j.repo.Tags()
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	defer iter.Close()

	tags := map[string]string{}
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		tags[ref.Name().Short()] = ref.Hash().String()
		return nil
	})
	return tags, err
}

// TagNames returns the tag names in sorted order.
func (j *Journal) TagNames() ([]string, error) {
	tags, err := j.Tags()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(tags))
	for name := range tags {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
