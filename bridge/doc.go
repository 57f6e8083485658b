// Package bridge exposes SQLBatch as a plugin with a string-in, callback-out
// call surface.
//
// Every call takes the raw request text, a JSON array of the form
// [optionsPayload, callbackToken]. The options payload may be an object or a
// string holding the object's JSON. The outcome is delivered to a Dispatcher
// as a Result with status OK, ERROR or PARSE_ERROR and echoes the callback
// token.
//
//	plugin := bridge.New(executor, bridge.DispatcherFunc(func(r bridge.Result) {
//	    fmt.Println(r.Status, string(r.Payload))
//	}))
//	plugin.Open(ctx, `[{"name":"app.db"}, "cb1"]`)
//	plugin.ExecuteSqlBatch(ctx, `[{"dbargs":{},"executes":[{"qid":"1","sql":"SELECT 1","params":[]}]}, "cb2"]`)
package bridge
