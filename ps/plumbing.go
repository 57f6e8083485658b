package ps

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing"
	"github.com/go-git/go-git/v6/plumbing/filemode"
	"github.com/go-git/go-git/v6/plumbing/object"
)

// createBlob creates a blob object directly in the object store without filesystem I/O
func (j *Journal) createBlob(data []byte) (plumbing.Hash, error) {
	obj := j.repo.Storer.NewEncodedObject()
	obj.SetType(plumbing.BlobObject)
	obj.SetSize(int64(len(data)))

	writer, err := obj.Writer()
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to create blob writer: %w", err)
	}

	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return plumbing.ZeroHash, fmt.Errorf("failed to write blob data: %w", err)
	}
	writer.Close()

	hash, err := j.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to store blob: %w", err)
	}

	return hash, nil
}

// getCurrentTree returns the tree hash from the current HEAD commit.
// Returns ZeroHash if repository has no commits yet.
func (j *Journal) getCurrentTree() (plumbing.Hash, error) {
	headRef, err := j.repo.Head()
	if err != nil {
		return plumbing.ZeroHash, nil
	}

	commit, err := j.repo.CommitObject(headRef.Hash())
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to get head commit: %w", err)
	}

	return commit.TreeHash, nil
}

// getTreeEntries reads all entries from an existing tree, keyed by name
func (j *Journal) getTreeEntries(treeHash plumbing.Hash) (map[string]object.TreeEntry, error) {
	entries := make(map[string]object.TreeEntry)

	if treeHash == plumbing.ZeroHash {
		return entries, nil
	}

	tree, err := object.GetTree(j.repo.Storer, treeHash)
	if err != nil {
		return nil, fmt.Errorf("failed to get tree: %w", err)
	}

	for _, entry := range tree.Entries {
		entries[entry.Name] = entry
	}

	return entries, nil
}

// buildTreeFromEntries creates a tree object from a list of entries
func (j *Journal) buildTreeFromEntries(entries []object.TreeEntry) (plumbing.Hash, error) {
	// Git orders directories as if their name had a trailing slash.
	sort.Slice(entries, func(a, b int) bool {
		nameA := entries[a].Name
		nameB := entries[b].Name
		if entries[a].Mode == filemode.Dir {
			nameA += "/"
		}
		if entries[b].Mode == filemode.Dir {
			nameB += "/"
		}
		return nameA < nameB
	})

	tree := &object.Tree{Entries: entries}

	obj := j.repo.Storer.NewEncodedObject()
	if err := tree.Encode(obj); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to encode tree: %w", err)
	}

	hash, err := j.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to store tree: %w", err)
	}

	return hash, nil
}

// updateTreePath updates or creates a blob at a slash separated path and
// returns the new root tree hash.
func (j *Journal) updateTreePath(rootTreeHash plumbing.Hash, filePath string, blobHash plumbing.Hash) (plumbing.Hash, error) {
	return j.updateTreePathRecursive(rootTreeHash, strings.Split(filePath, "/"), blobHash)
}

func (j *Journal) updateTreePathRecursive(treeHash plumbing.Hash, pathParts []string, blobHash plumbing.Hash) (plumbing.Hash, error) {
	if len(pathParts) == 0 {
		return plumbing.ZeroHash, fmt.Errorf("empty path")
	}

	entries, err := j.getTreeEntries(treeHash)
	if err != nil {
		return plumbing.ZeroHash, err
	}

	name := pathParts[0]

	if len(pathParts) == 1 {
		entries[name] = object.TreeEntry{
			Name: name,
			Mode: filemode.Regular,
			Hash: blobHash,
		}
	} else {
		subTreeHash := plumbing.ZeroHash
		if existing, ok := entries[name]; ok && existing.Mode == filemode.Dir {
			subTreeHash = existing.Hash
		}

		newSubTreeHash, err := j.updateTreePathRecursive(subTreeHash, pathParts[1:], blobHash)
		if err != nil {
			return plumbing.ZeroHash, err
		}

		entries[name] = object.TreeEntry{
			Name: name,
			Mode: filemode.Dir,
			Hash: newSubTreeHash,
		}
	}

	entrySlice := make([]object.TreeEntry, 0, len(entries))
	for _, entry := range entries {
		entrySlice = append(entrySlice, entry)
	}

	return j.buildTreeFromEntries(entrySlice)
}

// createCommitDirect creates a commit object on the current branch without using the worktree
func (j *Journal) createCommitDirect(treeHash plumbing.Hash, message string, when time.Time) (Transaction, error) {
	var parentHashes []plumbing.Hash
	headRef, err := j.repo.Head()
	if err == nil {
		parentHashes = []plumbing.Hash{headRef.Hash()}
	}

	sig := object.Signature{
		Name:  j.identity.Name,
		Email: j.identity.Email,
		When:  when,
	}

	commit := &object.Commit{
		Author:       sig,
		Committer:    sig,
		Message:      message,
		TreeHash:     treeHash,
		ParentHashes: parentHashes,
	}

	obj := j.repo.Storer.NewEncodedObject()
	if err := commit.Encode(obj); err != nil {
		return Transaction{}, fmt.Errorf("failed to encode commit: %w", err)
	}

	commitHash, err := j.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return Transaction{}, fmt.Errorf("failed to store commit: %w", err)
	}

	branchName := plumbing.Master
	if headRef != nil && headRef.Name().IsBranch() {
		branchName = headRef.Name()
	}

	ref := plumbing.NewHashReference(branchName, commitHash)
	if err := j.repo.Storer.SetReference(ref); err != nil {
		return Transaction{}, fmt.Errorf("failed to update HEAD: %w", err)
	}

	return Transaction{
		Id:     commitHash.String(),
		When:   sig.When,
		Author: j.identity.String(),
	}, nil
}

// syncWorktree checks the HEAD tree out on disk so a file journal can be read
// with ordinary tools. Memory journals are read from the tree directly.
func (j *Journal) syncWorktree() error {
	if j.isMemoryMode {
		return nil
	}

	wt, err := j.repo.Worktree()
	if err != nil {
		return err
	}

	headRef, err := j.repo.Head()
	if err != nil {
		return err
	}

	return wt.Reset(&git.ResetOptions{
		Mode:   git.HardReset,
		Commit: headRef.Hash(),
	})
}

// headTree returns the tree of HEAD, or nil when nothing was committed yet.
func (j *Journal) headTree() (*object.Tree, error) {
	headRef, err := j.repo.Head()
	if err != nil {
		return nil, nil
	}

	commit, err := j.repo.CommitObject(headRef.Hash())
	if err != nil {
		return nil, fmt.Errorf("failed to get commit: %w", err)
	}

	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to get tree: %w", err)
	}

	return tree, nil
}

// readFileDirect reads a file directly from the HEAD tree
func (j *Journal) readFileDirect(filePath string) ([]byte, error) {
	tree, err := j.headTree()
	if err != nil {
		return nil, err
	}
	if tree == nil {
		return nil, fmt.Errorf("no commits yet")
	}

	file, err := tree.File(filePath)
	if err != nil {
		return nil, fmt.Errorf("file not found: %w", err)
	}

	content, err := file.Contents()
	if err != nil {
		return nil, fmt.Errorf("failed to read contents: %w", err)
	}

	return []byte(content), nil
}

// listFilesDirect lists the file names in a directory of the HEAD tree
func (j *Journal) listFilesDirect(dirPath string) ([]string, error) {
	tree, err := j.headTree()
	if err != nil || tree == nil {
		return nil, err
	}

	dir, err := tree.Tree(dirPath)
	if err != nil {
		return nil, nil
	}

	var names []string
	for _, entry := range dir.Entries {
		if entry.Mode != filemode.Dir {
			names = append(names, entry.Name)
		}
	}

	return names, nil
}
