// Package ps provides the batch journal for SQLBatch.
//
// The journal is backed by Git, using go-git for storage. Every committed
// batch becomes one Git commit that writes a JSON entry describing the
// statements as they were sent to the engine.
//
// # Memory Journal
//
// For testing or ephemeral sessions:
//
//	journal, err := ps.NewMemoryJournal(identity)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # File Journal
//
// For a journal that survives restarts and can be read with git:
//
//	journal, err := ps.NewFileJournal("/path/to/journal", identity)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Layout
//
// Entries live at <database>/<batch id>.json. Path separators and colons in
// the database name are replaced with underscores.
//
// # Replication
//
// A journal can be pushed to any Git remote:
//
//	journal.AddRemote("origin", "https://github.com/org/journal.git")
//	journal.Push(ctx, "origin", &ps.RemoteAuth{Type: ps.AuthTypeToken, Token: token})
package ps
