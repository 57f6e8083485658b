// Package core provides core types used throughout SQLBatch.
//
// The package defines the request and result shapes of a batch, the tagged
// Value variant used to carry column data without coercion, and the error
// taxonomy shared by the executor and the call surface.
//
// # Statements
//
// A batch is an ordered list of statements executed in one transaction:
//
//	req := core.BatchRequest{
//	    Statements: []core.StatementRequest{
//	        {ID: "1", SQL: "CREATE TABLE t(id INTEGER PRIMARY KEY, v TEXT)"},
//	        {ID: "2", SQL: "INSERT INTO t(v) VALUES(?)", Params: []any{"hello"}},
//	    },
//	}
//
// # Values
//
// Column values are one of:
//   - NullKind: SQL NULL
//   - IntegerKind: 64-bit signed integers
//   - RealKind: 64-bit floats
//   - TextKind: strings
//   - BinaryKind: byte slices (base64 in JSON)
//
// # Records
//
// A Record keeps the engine's column order:
//
//	rec := core.Record{
//	    {Name: "id", Value: core.Integer(1)},
//	    {Name: "v", Value: core.Text("hello")},
//	}
//	data, _ := json.Marshal(rec) // {"id":1,"v":"hello"}
package core
