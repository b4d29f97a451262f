package table

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Table is one page of flattened records aligned to a column list.
type Table struct {
	Columns []string
	Rows    [][]any

	index   map[string]int
	layouts map[string]string
}

// New builds a Table whose columns are the union of the records' keys in
// the order they are first seen. Cells a record does not carry are nil.
func New(records []Record) *Table {
	t := &Table{index: make(map[string]int)}
	for _, rec := range records {
		for _, f := range rec {
			if _, ok := t.index[f.Key]; !ok {
				t.index[f.Key] = len(t.Columns)
				t.Columns = append(t.Columns, f.Key)
			}
		}
	}

	t.Rows = make([][]any, len(records))
	for i, rec := range records {
		row := make([]any, len(t.Columns))
		for _, f := range rec {
			row[t.index[f.Key]] = f.Value
		}
		t.Rows[i] = row
	}
	return t
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// ColumnIndex returns the position of a column.
func (t *Table) ColumnIndex(name string) (int, bool) {
	i, ok := t.index[name]
	return i, ok
}

// Value returns the cell at row for the named column.
func (t *Table) Value(row int, column string) (any, bool) {
	i, ok := t.index[column]
	if !ok || row < 0 || row >= len(t.Rows) {
		return nil, false
	}
	return t.Rows[row][i], true
}

// MaxInt returns the largest integer in column. It is used to advance the
// pagination cursor, so every cell must hold an integral number.
func (t *Table) MaxInt(column string) (int64, error) {
	i, ok := t.index[column]
	if !ok {
		return 0, &UnknownColumnError{Column: column}
	}
	if len(t.Rows) == 0 {
		return 0, fmt.Errorf("column %q: no rows", column)
	}

	var highest int64
	for r, row := range t.Rows {
		n, ok := intValue(row[i])
		if !ok {
			return 0, fmt.Errorf("column %q row %d: %v is not an integer", column, r, row[i])
		}
		if r == 0 || n > highest {
			highest = n
		}
	}
	return highest, nil
}

// Render formats a row for CSV output, in Columns order.
func (t *Table) Render(row int) []string {
	out := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		out[i] = t.renderCell(col, t.Rows[row][i])
	}
	return out
}

// RenderValue formats the cell at row for the named column. Missing columns
// render empty.
func (t *Table) RenderValue(row int, column string) string {
	v, ok := t.Value(row, column)
	if !ok {
		return ""
	}
	return t.renderCell(column, v)
}

func (t *Table) renderCell(column string, v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		layout, ok := t.layouts[column]
		if !ok {
			layout = LayoutDateTime
		}
		return x.Format(layout)
	default:
		return fmt.Sprint(x)
	}
}

func intValue(v any) (int64, bool) {
	n, ok := v.(json.Number)
	if !ok {
		return 0, false
	}
	i, err := strconv.ParseInt(string(n), 10, 64)
	if err != nil {
		return 0, false
	}
	return i, true
}
