// Package sql classifies and rewrites statement text before it reaches the
// engine.
//
// Classification is a pure function of the text:
//
//	stmt := sql.Classify("DROP TABLE IF EXISTS users")
//	// stmt.Kind == sql.NoResult, stmt.SQL == "DELETE FROM users"
//
// # Kinds
//
//   - NoResult: executed for its side effect only. Every statement that
//     mentions DROP TABLE is rewritten to DELETE FROM and lands here, which
//     keeps the table schema and removes its rows.
//   - Skip: a bare COMMIT or ROLLBACK. Never sent to the engine; the batch
//     transaction decides the outcome.
//   - Query: everything else. Executed and its rows collected.
package sql
