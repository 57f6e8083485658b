package db

import (
	"bytes"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nickyhof/sqlbatch/core"
)

func TestDisplayResultRows(t *testing.T) {
	var buf bytes.Buffer
	DisplayResult(&buf, core.StatementResult{
		ID:   "1",
		Type: core.SuccessResultType,
		Result: core.ResultRows{
			Rows: []core.Record{
				{{Name: "id", Value: core.Integer(1)}, {Name: "name", Value: core.Text("alice")}},
				{{Name: "id", Value: core.Integer(22)}, {Name: "name", Value: core.Null()}},
			},
		},
	})

	want := "+----+-------+\n" +
		"| id | name  |\n" +
		"+----+-------+\n" +
		"| 1  | alice |\n" +
		"| 22 | NULL  |\n" +
		"+----+-------+\n" +
		"2 rows\n"
	assert.Equal(t, want, buf.String())
}

func TestDisplayResultAffected(t *testing.T) {
	id := int64(9)

	var buf bytes.Buffer
	DisplayResult(&buf, core.StatementResult{Result: core.ResultRows{Rows: []core.Record{}, RowsAffected: 3, InsertID: &id}})
	assert.Equal(t, "OK, 3 row(s) affected, last insert id 9\n", buf.String())

	buf.Reset()
	DisplayResult(&buf, core.StatementResult{Result: core.ResultRows{RowsAffected: 0}})
	assert.Equal(t, "OK, 0 row(s) affected\n", buf.String())
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		secs float64
		want string
	}{
		{0.0001, "<1ms"},
		{0.005, "5.0ms"},
		{0.25, "250ms"},
		{2.5, "2.5s"},
		{42, "42s"},
		{120, "2m"},
		{125, "2m5s"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatDuration(tt.secs))
	}
}

func TestTableClipsAndCountsRunes(t *testing.T) {
	var buf bytes.Buffer
	table := NewTable(&buf)
	table.Header([]string{"k", "v"})
	table.Row([]string{"é", strings.Repeat("x", MaxCellWidth+10)})
	table.Row([]string{"two\nlines"})
	table.Render()

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 6)
	for _, line := range lines[1:] {
		assert.Equal(t, utf8.RuneCountInString(lines[0]), utf8.RuneCountInString(line), line)
	}
	assert.Contains(t, lines[3], strings.Repeat("x", MaxCellWidth-3)+"...")
	assert.Contains(t, lines[4], "two lines")
}

func TestDisplayResultBinary(t *testing.T) {
	var buf bytes.Buffer
	DisplayResult(&buf, core.StatementResult{Result: core.ResultRows{
		Rows: []core.Record{{{Name: "blob", Value: core.Binary([]byte{1, 2, 3})}}},
	}})
	assert.Contains(t, buf.String(), "<3 bytes>")
}

func TestTableEmpty(t *testing.T) {
	var buf bytes.Buffer
	NewTable(&buf).Render()
	assert.Empty(t, buf.String())
}
