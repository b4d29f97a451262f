package table

import (
	"errors"
	"testing"
	"time"
)

func TestCoerceDates(t *testing.T) {
	tests := []struct {
		name         string
		features     []string
		column       string
		wantRendered []string
		wantWarning  bool
	}{
		{
			name: "epoch milliseconds to datetime",
			features: []string{
				`{"attributes": {"OBJECTID": 1, "ISSUEDATE": 1577880000000}}`,
				`{"attributes": {"OBJECTID": 2, "ISSUEDATE": 1609459199000}}`,
			},
			column:       "ISSUEDATE",
			wantRendered: []string{"2020-01-01 12:00:00", "2020-12-31 23:59:59"},
		},
		{
			name: "midnight-only column renders as date",
			features: []string{
				`{"attributes": {"OBJECTID": 1, "ISSUEDATE": 1577836800000}}`,
				`{"attributes": {"OBJECTID": 2, "ISSUEDATE": 0}}`,
			},
			column:       "ISSUEDATE",
			wantRendered: []string{"2020-01-01", "1970-01-01"},
		},
		{
			name: "milliseconds kept when present",
			features: []string{
				`{"attributes": {"OBJECTID": 1, "ISSUEDATE": 1577836800123}}`,
				`{"attributes": {"OBJECTID": 2, "ISSUEDATE": 1577836800000}}`,
			},
			column:       "ISSUEDATE",
			wantRendered: []string{"2020-01-01 00:00:00.123", "2020-01-01 00:00:00.000"},
		},
		{
			name: "null makes the column non-integer",
			features: []string{
				`{"attributes": {"OBJECTID": 1, "EXPIRATIONDATE": 1577836800000}}`,
				`{"attributes": {"OBJECTID": 2, "EXPIRATIONDATE": null}}`,
			},
			column:       "EXPIRATIONDATE",
			wantRendered: []string{"1577836800000", ""},
			wantWarning:  true,
		},
		{
			name: "string column left unmodified",
			features: []string{
				`{"attributes": {"OBJECTID": 1, "REQUEST_DATE": "2020-01-01"}}`,
			},
			column:       "REQUEST_DATE",
			wantRendered: []string{"2020-01-01"},
			wantWarning:  true,
		},
		{
			name: "float column left unmodified",
			features: []string{
				`{"attributes": {"OBJECTID": 1, "REQUEST_DATE": 1577836800000.5}}`,
			},
			column:       "REQUEST_DATE",
			wantRendered: []string{"1577836800000.5"},
			wantWarning:  true,
		},
		{
			name: "out of range value left unmodified",
			features: []string{
				`{"attributes": {"OBJECTID": 1, "ISSUEDATE": 9223372036854775}}`,
			},
			column:       "ISSUEDATE",
			wantRendered: []string{"9223372036854775"},
			wantWarning:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl := New(mustRecords(t, tt.features...))

			warnings, err := CoerceDates(tbl, []string{tt.column})
			if err != nil {
				t.Fatalf("CoerceDates() error = %v", err)
			}
			if got := len(warnings) > 0; got != tt.wantWarning {
				t.Fatalf("warnings = %v, wantWarning %v", warnings, tt.wantWarning)
			}
			if tt.wantWarning && warnings[0].Column != tt.column {
				t.Errorf("warning column = %q, want %q", warnings[0].Column, tt.column)
			}

			for i, want := range tt.wantRendered {
				if got := tbl.RenderValue(i, tt.column); got != want {
					t.Errorf("row %d = %q, want %q", i, got, want)
				}
			}
		})
	}
}

func TestCoerceDates_UnknownColumn(t *testing.T) {
	tbl := New(mustRecords(t, `{"attributes": {"OBJECTID": 1, "ISSUEDATE": 0}}`))

	_, err := CoerceDates(tbl, []string{"ISSUEDATE", "REQUEST_DATE"})

	var colErr *UnknownColumnError
	if !errors.As(err, &colErr) {
		t.Fatalf("error = %v, want UnknownColumnError", err)
	}
	if colErr.Column != "REQUEST_DATE" {
		t.Errorf("Column = %q, want REQUEST_DATE", colErr.Column)
	}
	if colErr.Error() != `"REQUEST_DATE" is not a named column in dataset` {
		t.Errorf("Error() = %q", colErr.Error())
	}
}

func TestCoerceDates_Idempotent(t *testing.T) {
	tbl := New(mustRecords(t, `{"attributes": {"OBJECTID": 1, "ISSUEDATE": 1577880000000}}`))

	for i := 0; i < 2; i++ {
		warnings, err := CoerceDates(tbl, []string{"ISSUEDATE"})
		if err != nil || len(warnings) != 0 {
			t.Fatalf("pass %d: warnings = %v, err = %v", i, warnings, err)
		}
	}

	v, _ := tbl.Value(0, "ISSUEDATE")
	ts, ok := v.(time.Time)
	if !ok {
		t.Fatalf("ISSUEDATE = %T, want time.Time", v)
	}
	if !ts.Equal(time.Date(2020, 1, 1, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("ISSUEDATE = %v", ts)
	}
}

func TestDateCoercionWarning_String(t *testing.T) {
	w := DateCoercionWarning{Column: "ISSUEDATE", Reason: "column is not integer-typed"}
	want := `unable to coerce column "ISSUEDATE" to datetime: column is not integer-typed`
	if w.String() != want {
		t.Errorf("String() = %q, want %q", w.String(), want)
	}
}
