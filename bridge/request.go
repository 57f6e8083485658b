package bridge

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/nickyhof/sqlbatch/core"
)

// splitRequest decodes [optionsPayload, callbackToken]. The callback is
// returned even when the payload is unusable, so parse errors still reach
// the right caller.
func splitRequest(request string) (payload json.RawMessage, callback string, err error) {
	var parts []json.RawMessage
	if err := json.Unmarshal([]byte(request), &parts); err != nil {
		return nil, "", errors.Wrap(core.ErrParse, err.Error())
	}

	if len(parts) > 1 {
		callback = decodeCallback(parts[1])
	}
	if len(parts) == 0 {
		return nil, callback, errors.Wrap(core.ErrParse, "request has no options payload")
	}

	payload = bytes.TrimSpace(parts[0])
	if len(payload) > 0 && payload[0] == '"' {
		var inner string
		if err := json.Unmarshal(payload, &inner); err != nil {
			return nil, callback, errors.Wrap(core.ErrParse, err.Error())
		}
		payload = json.RawMessage(inner)
	}
	return payload, callback, nil
}

func decodeCallback(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(bytes.TrimSpace(raw))
}

// decodePayload unmarshals an options payload into v. A null or non-object
// payload is a parse error.
func decodePayload(payload json.RawMessage, v any) error {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return errors.Wrap(core.ErrParse, "options payload is not an object")
	}
	if err := json.Unmarshal(trimmed, v); err != nil {
		return errors.Wrap(core.ErrParse, err.Error())
	}
	return nil
}
