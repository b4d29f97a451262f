// Package csvout appends page tables to a CSV file.
//
// The first table written fixes the header and column order. Later tables are
// projected onto that order; cells for columns the first page did not have
// are dropped and reported once per column.
package csvout

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/Sternrassler/ago-extract/pkg/logging"
	"github.com/Sternrassler/ago-extract/pkg/table"
	"github.com/rs/zerolog"
)

// ErrClosed is returned by WriteTable after Close.
var ErrClosed = errors.New("csv writer closed")

// Options configures the CSV output.
type Options struct {
	// Delimiter separates fields (default ',').
	Delimiter rune

	// UseCRLF ends lines with \r\n. Defaults to the platform convention.
	UseCRLF bool
}

// DefaultOptions returns comma separated output with the platform line
// terminator.
func DefaultOptions() Options {
	return Options{
		Delimiter: ',',
		UseCRLF:   runtime.GOOS == "windows",
	}
}

// Writer writes tables to a CSV stream.
type Writer struct {
	csv     *csv.Writer
	closer  io.Closer
	logger  zerolog.Logger
	columns []string
	dropped map[string]bool
	rows    int
	closed  bool
}

// Create truncates or creates path and returns a Writer for it.
func Create(path string, opts Options) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create output file: %w", err)
	}
	w := NewWriter(f, opts)
	w.closer = f
	return w, nil
}

// NewWriter wraps an io.Writer. Close flushes but does not close out.
func NewWriter(out io.Writer, opts Options) *Writer {
	cw := csv.NewWriter(out)
	if opts.Delimiter != 0 {
		cw.Comma = opts.Delimiter
	}
	cw.UseCRLF = opts.UseCRLF

	return &Writer{
		csv:     cw,
		logger:  logging.NewLogger("csvout"),
		dropped: make(map[string]bool),
	}
}

// Columns returns the header fixed by the first table, or nil.
func (w *Writer) Columns() []string {
	return w.columns
}

// Rows returns the number of data rows written.
func (w *Writer) Rows() int {
	return w.rows
}

// WriteTable appends t and flushes. The first call writes the header.
func (w *Writer) WriteTable(t *table.Table) error {
	if w.closed {
		return ErrClosed
	}

	if w.columns == nil {
		w.columns = append([]string{}, t.Columns...)
		if err := w.csv.Write(w.columns); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	} else {
		w.reportDrift(t)
	}

	aligned := sameColumns(t.Columns, w.columns)
	for r := 0; r < t.Len(); r++ {
		var record []string
		if aligned {
			record = t.Render(r)
		} else {
			record = w.project(t, r)
		}
		if err := w.csv.Write(record); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
		w.rows++
	}

	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	return nil
}

// Close flushes buffered output and closes the underlying file.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	w.csv.Flush()
	err := w.csv.Error()
	if w.closer != nil {
		if cerr := w.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func (w *Writer) project(t *table.Table, row int) []string {
	out := make([]string, len(w.columns))
	for i, col := range w.columns {
		out[i] = t.RenderValue(row, col)
	}
	return out
}

func (w *Writer) reportDrift(t *table.Table) {
	known := make(map[string]bool, len(w.columns))
	for _, c := range w.columns {
		known[c] = true
	}
	for _, c := range t.Columns {
		if known[c] || w.dropped[c] {
			continue
		}
		w.dropped[c] = true
		w.logger.Warn().
			Str("column", c).
			Msg("Column not present in first page - values dropped")
	}
}

func sameColumns(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
