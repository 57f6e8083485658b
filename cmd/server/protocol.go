// Package main provides a TCP server for SQLBatch.
package main

import (
	"bytes"
	"encoding/json"

	"github.com/nickyhof/sqlbatch/bridge"
)

// Actions a client can request.
const (
	ActionOpen            = "open"
	ActionClose           = "close"
	ActionExecuteSqlBatch = "executeSqlBatch"
	ActionBackup          = "backup"
	ActionAuth            = "auth"
)

// Request is one line from the client. Args is the plugin request, either
// as a JSON string or inline as the [options, callback] array.
type Request struct {
	Action string          `json:"action"`
	Args   json.RawMessage `json:"args"`
}

// RequestText returns the plugin request text carried by Args.
func (r Request) RequestText() string {
	args := bytes.TrimSpace(r.Args)
	if len(args) > 0 && args[0] == '"' {
		var s string
		if err := json.Unmarshal(args, &s); err == nil {
			return s
		}
	}
	return string(args)
}

// Response is one line sent back to the client.
type Response struct {
	Action   string          `json:"action,omitempty"`
	Status   bridge.Status   `json:"status"`
	Message  string          `json:"message,omitempty"`
	Result   json.RawMessage `json:"result,omitempty"`
	Callback string          `json:"callback,omitempty"`
}

func (r Response) OK() bool { return r.Status == bridge.StatusOK }

func fromResult(action string, result bridge.Result) Response {
	return Response{
		Action:   action,
		Status:   result.Status,
		Message:  result.Message,
		Result:   result.Payload,
		Callback: result.Callback,
	}
}

// AuthResponse is the result of a successful AUTH command.
type AuthResponse struct {
	Authenticated bool   `json:"authenticated"`
	Identity      string `json:"identity"`
	ExpiresIn     int    `json:"expires_in,omitempty"`
}

// EncodeResponse serializes a Response to JSON with a newline.
func EncodeResponse(resp Response) ([]byte, error) {
	data, err := json.Marshal(resp)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// DecodeRequest parses a JSON request from a byte slice.
func DecodeRequest(data []byte) (Request, error) {
	var req Request
	err := json.Unmarshal(data, &req)
	return req, err
}
