package ps

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cespare/xxhash"
)

// Entry is the journal record of one committed batch.
type Entry struct {
	ID         string           `json:"id"`
	Database   string           `json:"database"`
	When       time.Time        `json:"when"`
	Statements []StatementEntry `json:"statements"`
}

// StatementEntry describes one statement as it was sent to the engine.
type StatementEntry struct {
	QID          string `json:"qid"`
	SQL          string `json:"sql"`
	Original     string `json:"original,omitempty"` // set when the statement was rewritten
	Kind         string `json:"kind"`
	Fingerprint  string `json:"fingerprint"`
	Params       int    `json:"params"`
	Rows         int    `json:"rows"`
	RowsAffected int64  `json:"rowsAffected"`
}

// Fingerprint identifies statement text independent of case and whitespace.
func Fingerprint(sql string) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(sql), " "))
	return fmt.Sprintf("%016x", xxhash.Sum64String(normalized))
}

// journalDir maps a database name onto a single tree entry name.
func journalDir(database string) string {
	dir := strings.NewReplacer("/", "_", "\\", "_", ":", "_").Replace(database)
	if dir == "" || dir == "." || dir == ".." {
		dir = "_"
	}
	return dir
}

func entryPath(database, id string) string {
	return journalDir(database) + "/" + id + ".json"
}

// Record writes entry as a single commit.
func (j *Journal) Record(ctx context.Context, entry Entry) (Transaction, error) {
	if err := j.ensureInitialized(); err != nil {
		return Transaction{}, err
	}
	if err := ctx.Err(); err != nil {
		return Transaction{}, err
	}
	if entry.ID == "" {
		return Transaction{}, fmt.Errorf("entry has no id")
	}
	if entry.When.IsZero() {
		entry.When = time.Now()
	}

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return Transaction{}, fmt.Errorf("failed to marshal entry: %w", err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	currentTree, err := j.getCurrentTree()
	if err != nil {
		return Transaction{}, err
	}

	blobHash, err := j.createBlob(data)
	if err != nil {
		return Transaction{}, err
	}

	newTree, err := j.updateTreePath(currentTree, entryPath(entry.Database, entry.ID), blobHash)
	if err != nil {
		return Transaction{}, fmt.Errorf("failed to update tree: %w", err)
	}

	message := fmt.Sprintf("Batch %s on %s: %d statement(s)", entry.ID, entry.Database, len(entry.Statements))
	txn, err := j.createCommitDirect(newTree, message, entry.When)
	if err != nil {
		return Transaction{}, err
	}
	txn.Message = message

	if err := j.syncWorktree(); err != nil {
		return Transaction{}, fmt.Errorf("failed to sync worktree: %w", err)
	}

	return txn, nil
}

// Get reads one entry.
func (j *Journal) Get(database, id string) (Entry, error) {
	if err := j.ensureInitialized(); err != nil {
		return Entry{}, err
	}

	j.mu.RLock()
	defer j.mu.RUnlock()

	data, err := j.readFileDirect(entryPath(database, id))
	if err != nil {
		return Entry{}, fmt.Errorf("%w: %s/%s", ErrEntryNotFound, database, id)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return Entry{}, fmt.Errorf("failed to unmarshal entry: %w", err)
	}
	return entry, nil
}

// Entries returns every entry recorded for database, oldest first.
func (j *Journal) Entries(database string) ([]Entry, error) {
	if err := j.ensureInitialized(); err != nil {
		return nil, err
	}

	j.mu.RLock()
	names, err := j.listFilesDirect(journalDir(database))
	j.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(names))
	for _, name := range names {
		entry, err := j.Get(database, strings.TrimSuffix(name, ".json"))
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	sort.SliceStable(entries, func(a, b int) bool {
		return entries[a].When.Before(entries[b].When)
	})
	return entries, nil
}
