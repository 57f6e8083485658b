package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDbArgsDBName(t *testing.T) {
	assert.Equal(t, "a.db", DbArgs{Name: "a.db", DBNameAlias: "b.db"}.DBName())
	assert.Equal(t, "b.db", DbArgs{DBNameAlias: "b.db"}.DBName())
	assert.Equal(t, "b.db", DbArgs{Name: "  ", DBNameAlias: "b.db"}.DBName())
	assert.Equal(t, "", DbArgs{}.DBName())
}

func TestBatchRequestUnmarshal(t *testing.T) {
	payload := `{
		"dbargs": {"dbname": "app.db"},
		"executes": [
			{"qid": "1", "sql": "INSERT INTO t VALUES(?, ?, ?, ?, ?)", "params": ["x", 12, 1.5, null, true]},
			{"id": "2", "sql": "SELECT 1", "params": []}
		]
	}`

	var req BatchRequest
	require.NoError(t, json.Unmarshal([]byte(payload), &req))

	assert.Equal(t, "app.db", req.DbArgs.DBName())
	require.Len(t, req.Statements, 2)

	first := req.Statements[0]
	assert.Equal(t, "1", first.ID)
	assert.Equal(t, []any{"x", int64(12), 1.5, nil, true}, first.Params)

	second := req.Statements[1]
	assert.Equal(t, "2", second.ID)
	assert.NotNil(t, second.Params)
	assert.Empty(t, second.Params)
}

func TestStatementRequestRequiresFields(t *testing.T) {
	tests := map[string]string{
		"missing id":     `{"sql": "SELECT 1", "params": []}`,
		"missing sql":    `{"qid": "1", "params": []}`,
		"missing params": `{"qid": "1", "sql": "SELECT 1"}`,
		"null params":    `{"qid": "1", "sql": "SELECT 1", "params": null}`,
		"object param":   `{"qid": "1", "sql": "SELECT ?", "params": [{"a": 1}]}`,
		"array param":    `{"qid": "1", "sql": "SELECT ?", "params": [[1]]}`,
		"not an object":  `["qid"]`,
	}

	for name, payload := range tests {
		t.Run(name, func(t *testing.T) {
			var req StatementRequest
			assert.Error(t, json.Unmarshal([]byte(payload), &req))
		})
	}
}

func TestStatementRequestQIDWinsOverID(t *testing.T) {
	var req StatementRequest
	require.NoError(t, json.Unmarshal([]byte(`{"qid": "q", "id": "i", "sql": "", "params": []}`), &req))
	assert.Equal(t, "q", req.ID)
	assert.Equal(t, "", req.SQL)
}

func TestLargeIntegerParams(t *testing.T) {
	var req StatementRequest
	require.NoError(t, json.Unmarshal([]byte(`{"qid": "1", "sql": "x", "params": [9007199254740993, 1e3, 18446744073709551616]}`), &req))
	assert.Equal(t, int64(9007199254740993), req.Params[0])
	assert.Equal(t, float64(1000), req.Params[1])
	assert.Equal(t, float64(18446744073709551616), req.Params[2])
}

func TestBatchResultMarshal(t *testing.T) {
	id := int64(4)
	result := BatchResult{
		{
			ID:   "1",
			Type: SuccessResultType,
			Result: ResultRows{
				Rows:         []Record{{{Name: "b", Value: Integer(1)}, {Name: "a", Value: Text("x")}}},
				RowsAffected: 2,
				InsertID:     &id,
			},
		},
		{
			ID:     "2",
			Type:   SuccessResultType,
			Result: ResultRows{Rows: []Record{}},
		},
	}

	data, err := json.Marshal(result)
	require.NoError(t, err)
	assert.JSONEq(t, `[
		{"qid": "1", "type": "success", "result": {"rows": [{"b": 1, "a": "x"}], "rowsAffected": 2, "insertId": 4}},
		{"qid": "2", "type": "success", "result": {"rows": [], "rowsAffected": 0}}
	]`, string(data))

	// Column order survives encoding.
	assert.Contains(t, string(data), `{"b":1,"a":"x"}`)
}

func TestExecutionError(t *testing.T) {
	cause := assert.AnError
	err := &ExecutionError{Index: 2, ID: "q3", SQL: "SELEKT", Err: cause}

	assert.Equal(t, `statement 2 (qid "q3") failed: `+cause.Error(), err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, cause, err.Cause())
}
