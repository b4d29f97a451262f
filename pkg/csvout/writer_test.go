package csvout

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Sternrassler/ago-extract/pkg/table"
)

func newTable(t *testing.T, features ...string) *table.Table {
	t.Helper()
	records := make([]table.Record, len(features))
	for i, f := range features {
		rec, err := table.Flatten(json.RawMessage(f))
		if err != nil {
			t.Fatalf("Flatten() error = %v", err)
		}
		records[i] = rec
	}
	return table.New(records)
}

func TestWriter_HeaderOnceAndAppend(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewWriter(buf, Options{Delimiter: ','})

	if err := w.WriteTable(newTable(t,
		`{"attributes": {"OBJECTID": 1, "NAME": "a"}}`,
		`{"attributes": {"OBJECTID": 2, "NAME": "b, c"}}`,
	)); err != nil {
		t.Fatalf("WriteTable(page 1) error = %v", err)
	}
	if err := w.WriteTable(newTable(t,
		`{"attributes": {"OBJECTID": 3, "NAME": "d"}}`,
	)); err != nil {
		t.Fatalf("WriteTable(page 2) error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	want := "OBJECTID,NAME\n1,a\n2,\"b, c\"\n3,d\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
	if w.Rows() != 3 {
		t.Errorf("Rows() = %d, want 3", w.Rows())
	}
}

func TestWriter_ProjectsLaterPagesOntoFirstSchema(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewWriter(buf, Options{})

	if err := w.WriteTable(newTable(t, `{"attributes": {"OBJECTID": 1, "A": "x", "B": "y"}}`)); err != nil {
		t.Fatal(err)
	}
	// Reordered keys, one missing, one extra.
	if err := w.WriteTable(newTable(t, `{"attributes": {"B": "q", "OBJECTID": 2, "EXTRA": 9}}`)); err != nil {
		t.Fatal(err)
	}
	w.Close()

	want := "OBJECTID,A,B\n1,x,y\n2,,q\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
	if got := w.Columns(); len(got) != 3 {
		t.Errorf("Columns() = %v", got)
	}
}

func TestWriter_CRLFAndDelimiter(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewWriter(buf, Options{Delimiter: ';', UseCRLF: true})

	if err := w.WriteTable(newTable(t, `{"attributes": {"OBJECTID": 1, "OK": true}}`)); err != nil {
		t.Fatal(err)
	}
	w.Close()

	want := "OBJECTID;OK\r\n1;true\r\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
}

func TestWriter_WriteAfterClose(t *testing.T) {
	w := NewWriter(&bytes.Buffer{}, Options{})
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := w.WriteTable(newTable(t, `{"attributes": {"OBJECTID": 1}}`)); !errors.Is(err, ErrClosed) {
		t.Errorf("WriteTable after Close error = %v, want ErrClosed", err)
	}
}

func TestCreate_TruncatesExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	if err := os.WriteFile(path, []byte("stale contents from a previous run\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	w, err := Create(path, Options{})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := w.WriteTable(newTable(t, `{"attributes": {"OBJECTID": 5}}`)); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "OBJECTID\n5\n" {
		t.Errorf("file = %q", data)
	}
}

func TestCreate_BadPath(t *testing.T) {
	_, err := Create(filepath.Join(t.TempDir(), "missing", "out.csv"), DefaultOptions())
	if err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestDefaultOptions(t *testing.T) {
	if DefaultOptions().Delimiter != ',' {
		t.Errorf("Delimiter = %q, want ','", DefaultOptions().Delimiter)
	}
}
