package core

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
)

// DbArgs names a database. Name wins over the DBNameAlias field when both are set.
type DbArgs struct {
	Name        string `json:"name,omitempty"`
	DBNameAlias string `json:"dbname,omitempty"`
}

// DBName returns the effective database name, or "" when both fields are blank.
func (args DbArgs) DBName() string {
	if strings.TrimSpace(args.Name) != "" {
		return args.Name
	}
	if strings.TrimSpace(args.DBNameAlias) != "" {
		return args.DBNameAlias
	}
	return ""
}

// StatementRequest is one statement of a batch.
type StatementRequest struct {
	ID     string `json:"qid"`
	SQL    string `json:"sql"`
	Params []any  `json:"params"`
}

type statementWire struct {
	QID    *string           `json:"qid"`
	ID     *string           `json:"id"`
	SQL    *string           `json:"sql"`
	Params []json.RawMessage `json:"params"`
}

// UnmarshalJSON requires an id ("qid", or "id"), the SQL text and the params
// array. Params are scalars: strings stay strings, integral numbers become
// int64, other numbers float64.
func (req *StatementRequest) UnmarshalJSON(data []byte) error {
	var wire statementWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	id := wire.QID
	if id == nil {
		id = wire.ID
	}
	if id == nil {
		return errors.New("statement is missing qid")
	}
	if wire.SQL == nil {
		return errors.New("statement is missing sql")
	}
	if wire.Params == nil {
		return errors.New("statement is missing params")
	}

	params := make([]any, len(wire.Params))
	for i, raw := range wire.Params {
		param, err := decodeParam(raw)
		if err != nil {
			return errors.Wrapf(err, "param %d", i)
		}
		params[i] = param
	}

	*req = StatementRequest{ID: *id, SQL: *wire.SQL, Params: params}
	return nil
}

func decodeParam(raw json.RawMessage) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}

	switch p := v.(type) {
	case nil, string, bool:
		return p, nil
	case json.Number:
		if i, err := p.Int64(); err == nil {
			return i, nil
		}
		return p.Float64()
	default:
		return nil, errors.Errorf("param must be a scalar, got %s", string(raw))
	}
}

// BatchRequest is an ordered list of statements run in one transaction,
// optionally against an explicit database.
type BatchRequest struct {
	DbArgs     DbArgs             `json:"dbargs"`
	Statements []StatementRequest `json:"executes"`
}

// Counters are the engine change counters sampled after a statement.
type Counters struct {
	RowsAffected int64
	InsertID     *int64
}

type ResultType string

const (
	SuccessResultType ResultType = "success"
	ErrorResultType   ResultType = "error"
)

// ResultRows is the body of a StatementResult.
type ResultRows struct {
	Rows         []Record `json:"rows"`
	RowsAffected int64    `json:"rowsAffected"`
	InsertID     *int64   `json:"insertId,omitempty"`
}

// StatementResult is the outcome of one statement, echoing its ID.
type StatementResult struct {
	ID     string     `json:"qid"`
	Type   ResultType `json:"type"`
	Result ResultRows `json:"result"`
}

// BatchResult has one entry per statement, in request order.
type BatchResult []StatementResult
