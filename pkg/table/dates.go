package table

import (
	"fmt"
	"math"
	"time"
)

// Layouts used for coerced date columns. A column uses the shortest layout
// that loses nothing for any of its values.
const (
	LayoutDate       = "2006-01-02"
	LayoutDateTime   = "2006-01-02 15:04:05"
	LayoutDateTimeMS = "2006-01-02 15:04:05.000"
)

// Epoch millisecond bounds whose nanosecond value still fits in an int64.
const (
	minEpochMillis = math.MinInt64 / int64(time.Millisecond)
	maxEpochMillis = math.MaxInt64 / int64(time.Millisecond)
)

// UnknownColumnError is returned when a requested column is not part of the
// page schema.
type UnknownColumnError struct {
	Column string
}

// Error implements the error interface.
func (e *UnknownColumnError) Error() string {
	return fmt.Sprintf("%q is not a named column in dataset", e.Column)
}

// DateCoercionWarning records a configured date column that was left as is.
type DateCoercionWarning struct {
	Column string
	Reason string
}

// String implements fmt.Stringer.
func (w DateCoercionWarning) String() string {
	return fmt.Sprintf("unable to coerce column %q to datetime: %s", w.Column, w.Reason)
}

// CoerceDates converts each named column holding epoch milliseconds into
// time values. Columns that are not integer-typed are left unmodified and
// reported as warnings. A column missing from the table is an error.
func CoerceDates(t *Table, columns []string) ([]DateCoercionWarning, error) {
	var warnings []DateCoercionWarning
	for _, col := range columns {
		i, ok := t.index[col]
		if !ok {
			return warnings, &UnknownColumnError{Column: col}
		}

		converted, reason := coerceColumn(t, i)
		if reason != "" {
			warnings = append(warnings, DateCoercionWarning{Column: col, Reason: reason})
			continue
		}

		for r := range t.Rows {
			t.Rows[r][i] = converted[r]
		}
		if t.layouts == nil {
			t.layouts = make(map[string]string)
		}
		t.layouts[col] = chooseLayout(converted)
	}
	return warnings, nil
}

// coerceColumn returns the converted values, or a reason when the column
// cannot be converted. The table is not touched.
func coerceColumn(t *Table, i int) ([]time.Time, string) {
	out := make([]time.Time, len(t.Rows))
	for r, row := range t.Rows {
		if ts, ok := row[i].(time.Time); ok {
			out[r] = ts
			continue
		}
		ms, ok := intValue(row[i])
		if !ok {
			return nil, fmt.Sprintf("column is not integer-typed (row %d holds %v)", r, describe(row[i]))
		}
		if ms < minEpochMillis || ms > maxEpochMillis {
			return nil, fmt.Sprintf("value %d is out of bounds for a timestamp", ms)
		}
		out[r] = time.UnixMilli(ms).UTC()
	}
	return out, ""
}

func chooseLayout(values []time.Time) string {
	layout := LayoutDate
	for _, v := range values {
		if v.Nanosecond() != 0 {
			return LayoutDateTimeMS
		}
		if v.Hour() != 0 || v.Minute() != 0 || v.Second() != 0 {
			layout = LayoutDateTime
		}
	}
	return layout
}

func describe(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return fmt.Sprintf("string %q", x)
	default:
		return fmt.Sprintf("%T %v", v, v)
	}
}
