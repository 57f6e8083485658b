package bridge

import (
	"encoding/json"
)

type Status string

const (
	StatusOK         Status = "OK"
	StatusError      Status = "ERROR"
	StatusParseError Status = "PARSE_ERROR"
)

// Result is what a call dispatches back to its caller.
type Result struct {
	Status   Status          `json:"status"`
	Message  string          `json:"message,omitempty"`
	Payload  json.RawMessage `json:"result,omitempty"`
	Callback string          `json:"callback,omitempty"`
}

func (r Result) OK() bool { return r.Status == StatusOK }

// Dispatcher delivers results to the caller.
type Dispatcher interface {
	Dispatch(result Result)
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(Result)

func (f DispatcherFunc) Dispatch(result Result) { f(result) }

type discard struct{}

func (discard) Dispatch(Result) {}
