// Package db provides the batch execution engine for SQLBatch.
//
// The Executor resolves the target database through a session registry, runs
// every statement of a batch inside one transaction, and returns one result
// per statement. If any statement fails the transaction is rolled back and no
// per-statement results are returned.
//
// # Executor Usage
//
//	reg := session.NewRegistry(db.NewOpener(db.Options{Driver: "sqlite"}), 0)
//	exec := db.NewExecutor(reg)
//	reg.Open("app.db")
//	results, err := exec.Execute(ctx, core.BatchRequest{Statements: stmts})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Dialects
//
// The sqlite dialect (modernc.org/sqlite) is always available. Building with
// the duckdb tag adds the duckdb dialect.
//
// # Remote Databases
//
// Names starting with s3://, http:// or https:// are downloaded into the
// work directory the first time they are opened. Backup writes a snapshot of
// an open database to a local path or an s3:// URL.
package db
