package db

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/nickyhof/sqlbatch/core"
)

// MaxCellWidth bounds a rendered cell; longer text is cut with "...".
const MaxCellWidth = 40

// Table renders string cells as an ASCII grid.
type Table struct {
	w      io.Writer
	header []string
	rows   [][]string
}

func NewTable(w io.Writer) *Table {
	return &Table{w: w}
}

func (t *Table) Header(header []string) { t.header = header }

func (t *Table) Row(row []string) { t.rows = append(t.rows, row) }

// Render writes the grid. Nothing is written for an empty table.
func (t *Table) Render() {
	if len(t.header) == 0 && len(t.rows) == 0 {
		return
	}

	widths := t.widths()
	rule := ruleLine(widths)

	fmt.Fprintln(t.w, rule)
	if len(t.header) > 0 {
		fmt.Fprintln(t.w, cellLine(t.header, widths))
		fmt.Fprintln(t.w, rule)
	}
	for _, row := range t.rows {
		fmt.Fprintln(t.w, cellLine(row, widths))
	}
	fmt.Fprintln(t.w, rule)
}

func (t *Table) widths() []int {
	columns := len(t.header)
	for _, row := range t.rows {
		columns = max(columns, len(row))
	}

	widths := make([]int, columns)
	for i := range widths {
		widths[i] = 1
	}
	for _, row := range append([][]string{t.header}, t.rows...) {
		for i, cell := range row {
			widths[i] = max(widths[i], utf8.RuneCountInString(clip(cell)))
		}
	}
	return widths
}

func ruleLine(widths []int) string {
	var b strings.Builder
	b.WriteByte('+')
	for _, w := range widths {
		b.WriteString(strings.Repeat("-", w+2))
		b.WriteByte('+')
	}
	return b.String()
}

func cellLine(row []string, widths []int) string {
	var b strings.Builder
	b.WriteByte('|')
	for i, w := range widths {
		cell := ""
		if i < len(row) {
			cell = clip(row[i])
		}
		b.WriteByte(' ')
		b.WriteString(cell)
		b.WriteString(strings.Repeat(" ", w-utf8.RuneCountInString(cell)+1))
		b.WriteByte('|')
	}
	return b.String()
}

// clip flattens line breaks and cuts cell text to MaxCellWidth runes.
func clip(cell string) string {
	cell = strings.NewReplacer("\r\n", " ", "\n", " ", "\t", " ").Replace(cell)
	if utf8.RuneCountInString(cell) <= MaxCellWidth {
		return cell
	}
	runes := []rune(cell)
	return string(runes[:MaxCellWidth-3]) + "..."
}

// DisplayResult renders a statement result: the rows as a table when there
// are any, otherwise the change counters.
func DisplayResult(w io.Writer, result core.StatementResult) {
	rows := result.Result.Rows
	if len(rows) == 0 {
		line := fmt.Sprintf("OK, %d row(s) affected", result.Result.RowsAffected)
		if id := result.Result.InsertID; id != nil {
			line += fmt.Sprintf(", last insert id %d", *id)
		}
		fmt.Fprintln(w, line)
		return
	}

	table := NewTable(w)
	table.Header(rows[0].Columns())
	for _, record := range rows {
		cells := make([]string, len(record))
		for i, field := range record {
			cells[i] = displayValue(field.Value)
		}
		table.Row(cells)
	}
	table.Render()
	fmt.Fprintf(w, "%d rows\n", len(rows))
}

func displayValue(v core.Value) string {
	if v.Kind() == core.BinaryKind {
		return fmt.Sprintf("<%d bytes>", len(v.Bytes()))
	}
	return v.String()
}

// FormatDuration formats secs as "<1ms", "250ms", "2.5s" or "2m5s".
func FormatDuration(secs float64) string {
	switch {
	case secs < 0.001:
		return "<1ms"
	case secs < 0.01:
		return fmt.Sprintf("%.1fms", secs*1000)
	case secs < 1:
		return fmt.Sprintf("%dms", int(secs*1000))
	case secs < 10:
		return fmt.Sprintf("%.1fs", secs)
	case secs < 60:
		return fmt.Sprintf("%ds", int(secs))
	}

	mins, rest := int(secs)/60, int(secs)%60
	if rest == 0 {
		return fmt.Sprintf("%dm", mins)
	}
	return fmt.Sprintf("%dm%ds", mins, rest)
}
