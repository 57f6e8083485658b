package ps

import (
	"fmt"
	"time"

	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing/object"
)

// Transaction is one journal commit.
type Transaction struct {
	Id      string
	When    time.Time
	Author  string // "Name <email>" format
	Message string
}

func (transaction Transaction) String() string {
	return fmt.Sprintf("Transaction{Id: %s, When: %s, Author: %s}", transaction.Id, transaction.When, transaction.Author)
}

// LatestTransaction returns the HEAD commit, or the zero Transaction when the
// journal is empty.
func (j *Journal) LatestTransaction() Transaction {
	if !j.IsInitialized() {
		return Transaction{}
	}

	j.mu.RLock()
	defer j.mu.RUnlock()

	headRef, err := j.repo.Head()
	if err != nil || headRef == nil {
		return Transaction{}
	}

	commit, err := j.repo.CommitObject(headRef.Hash())
	if err != nil {
		return Transaction{}
	}

	return toTransaction(commit)
}

// TransactionsSince returns the journal commits made at or after asof, newest first.
func (j *Journal) TransactionsSince(asof time.Time) ([]Transaction, error) {
	if err := j.ensureInitialized(); err != nil {
		return nil, err
	}

	j.mu.RLock()
	defer j.mu.RUnlock()

	if _, err := j.repo.Head(); err != nil {
		return nil, nil
	}

	cIter, err := j.repo.Log(&git.LogOptions{
		Since: &asof,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read log: %w", err)
	}
	defer cIter.Close()

	var transactions []Transaction
	err = cIter.ForEach(func(c *object.Commit) error {
		transactions = append(transactions, toTransaction(c))
		return nil
	})
	return transactions, err
}

func toTransaction(commit *object.Commit) Transaction {
	author := ""
	if commit.Author.Name != "" || commit.Author.Email != "" {
		author = fmt.Sprintf("%s <%s>", commit.Author.Name, commit.Author.Email)
	}

	return Transaction{
		Id:      commit.Hash.String(),
		When:    commit.Committer.When,
		Author:  author,
		Message: commit.Message,
	}
}
