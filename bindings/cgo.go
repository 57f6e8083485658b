package main

/*
#include <stdlib.h>
*/
import "C"
import (
	"context"
	"encoding/json"
	"sync"
	"unsafe"

	"github.com/nickyhof/sqlbatch"
	"github.com/nickyhof/sqlbatch/bridge"
	"github.com/nickyhof/sqlbatch/config"
)

// Handle is one instance with its plugin.
type Handle struct {
	instance *sqlbatch.Instance
	plugin   *bridge.Plugin
}

var (
	handlesMu  sync.Mutex
	handles    = make(map[int]*Handle)
	nextHandle = 1
)

func lookup(handle C.int) (*Handle, bool) {
	handlesMu.Lock()
	defer handlesMu.Unlock()
	h, ok := handles[int(handle)]
	return h, ok
}

// sqlbatch_new creates an instance from the YAML file at configPath, or from
// defaults and SQLBATCH_ variables when configPath is empty. Returns -1 on error.
//
//export sqlbatch_new
func sqlbatch_new(configPath *C.char) C.int {
	cfg, err := config.Load(C.GoString(configPath))
	if err != nil {
		return -1
	}

	instance, err := sqlbatch.Open(cfg)
	if err != nil {
		return -1
	}

	handlesMu.Lock()
	defer handlesMu.Unlock()

	handle := nextHandle
	nextHandle++
	handles[handle] = &Handle{
		instance: instance,
		plugin:   instance.Plugin(nil),
	}

	return C.int(handle)
}

// sqlbatch_release closes the instance and forgets the handle.
//
//export sqlbatch_release
func sqlbatch_release(handle C.int) {
	handlesMu.Lock()
	h, ok := handles[int(handle)]
	delete(handles, int(handle))
	handlesMu.Unlock()

	if ok {
		h.instance.Close()
	}
}

//export sqlbatch_open
func sqlbatch_open(handle C.int, request *C.char) *C.char {
	return call(handle, request, (*bridge.Plugin).Open)
}

//export sqlbatch_close
func sqlbatch_close(handle C.int, request *C.char) *C.char {
	return call(handle, request, (*bridge.Plugin).Close)
}

//export sqlbatch_execute_sql_batch
func sqlbatch_execute_sql_batch(handle C.int, request *C.char) *C.char {
	return call(handle, request, (*bridge.Plugin).ExecuteSqlBatch)
}

//export sqlbatch_backup
func sqlbatch_backup(handle C.int, request *C.char) *C.char {
	return call(handle, request, (*bridge.Plugin).Backup)
}

//export sqlbatch_free
func sqlbatch_free(ptr *C.char) {
	C.free(unsafe.Pointer(ptr))
}

type pluginCall func(*bridge.Plugin, context.Context, string) bridge.Result

// call runs op and returns its result as a JSON string the caller frees
// with sqlbatch_free.
func call(handle C.int, request *C.char, op pluginCall) *C.char {
	h, ok := lookup(handle)
	if !ok {
		return encode(bridge.Result{Status: bridge.StatusError, Message: "Invalid handle"})
	}
	return encode(op(h.plugin, context.Background(), C.GoString(request)))
}

func encode(result bridge.Result) *C.char {
	jsonData, _ := json.Marshal(result)
	return C.CString(string(jsonData))
}

func main() {}
