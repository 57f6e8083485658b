// Package sqlbatch runs ordered batches of SQL statements as single
// transactions against a session database.
//
// A session names its database with Open and later batches run against it.
// A batch that arrives before the name is known waits briefly for it. Each
// batch either commits every statement and returns one result per statement
// in request order, or rolls back and returns a single error.
//
// # Quick Start
//
//	instance, err := sqlbatch.Open(nil)
//	defer instance.Close()
//
//	plugin := instance.Plugin(bridge.DispatcherFunc(func(r bridge.Result) {
//	    fmt.Println(r.Status, string(r.Payload))
//	}))
//	plugin.Open(ctx, `[{"name":"app.db"}, "1"]`)
//	plugin.ExecuteSqlBatch(ctx, `[{"dbargs":{},"executes":[
//	    {"qid":"a","sql":"CREATE TABLE t(id INTEGER PRIMARY KEY, v TEXT)","params":[]},
//	    {"qid":"b","sql":"INSERT INTO t(v) VALUES(?)","params":["hello"]},
//	    {"qid":"c","sql":"SELECT * FROM t","params":[]}]}, "2"]`)
//
// # Statement Handling
//
// Statements are classified before they run:
//   - DROP TABLE [IF EXISTS] is rewritten to DELETE FROM, so the table's rows
//     are removed but its schema stays
//   - a bare COMMIT or ROLLBACK is not sent to the engine; the batch
//     transaction decides the outcome
//   - everything else runs as a query and its rows are returned
//
// # Journal
//
// With journal.enabled set, every committed batch is also recorded as a
// commit in a Git repository (see package ps).
package sqlbatch
