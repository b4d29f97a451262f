package pagination

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Sternrassler/ago-extract/pkg/csvout"
	"github.com/Sternrassler/ago-extract/pkg/logging"
	"github.com/Sternrassler/ago-extract/pkg/table"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for pulls.
var (
	agoPagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ago_pages_total",
		Help: "Total pages appended to the output",
	})

	agoRecordsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ago_records_total",
		Help: "Total records appended to the output",
	})

	agoCursor = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ago_cursor",
		Help: "Highest OBJECTID written by the current pull",
	})

	agoDateCoercionWarningsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ago_date_coercion_warnings_total",
		Help: "Date columns left unmodified, by column",
	}, []string{"column"})

	agoPullDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ago_pull_duration_seconds",
		Help:    "Duration of completed pulls",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
	})
)

const (
	// DefaultObjectIDField is the cursor field of hosted feature layers.
	DefaultObjectIDField = "OBJECTID"

	// InitialCursor is below every valid OBJECTID.
	InitialCursor int64 = -1
)

// ErrCursorStalled guards against a service that ignores the where clause.
// The loop normally ends only on an empty page; a non-empty page whose
// largest OBJECTID does not exceed the cursor would repeat forever, so the
// pull stops with this error instead.
var ErrCursorStalled = errors.New("cursor did not advance")

// PageFetcher returns the features matching a where clause. An empty slice
// means there are no more records.
type PageFetcher interface {
	FetchPage(ctx context.Context, where string) ([]table.Record, error)
}

// PageFetcherFunc adapts a function to PageFetcher.
type PageFetcherFunc func(ctx context.Context, where string) ([]table.Record, error)

// FetchPage calls f.
func (f PageFetcherFunc) FetchPage(ctx context.Context, where string) ([]table.Record, error) {
	return f(ctx, where)
}

// PageStats describes one appended page.
type PageStats struct {
	Page    int
	Records int
	Total   int
	Cursor  int64
}

// Config holds extractor configuration.
type Config struct {
	// ObjectIDField is the integer field used as the cursor.
	ObjectIDField string

	// DateColumns are coerced from epoch milliseconds to timestamps.
	DateColumns []string

	// CSV configures the output file.
	CSV csvout.Options

	// OnPage is called after each page is written.
	OnPage func(PageStats)
}

// DefaultConfig returns the configuration for a hosted feature layer with
// no date coercion.
func DefaultConfig() Config {
	return Config{
		ObjectIDField: DefaultObjectIDField,
		CSV:           csvout.DefaultOptions(),
	}
}

// Result summarizes a pull. On error it covers the pages written so far.
type Result struct {
	Pages    int
	Records  int
	Cursor   int64
	Duration time.Duration
	Warnings []table.DateCoercionWarning
}

// Extractor drives the pagination loop.
type Extractor struct {
	fetcher PageFetcher
	config  Config
	logger  zerolog.Logger
}

// NewExtractor creates a new extractor.
func NewExtractor(fetcher PageFetcher, config Config) *Extractor {
	if config.ObjectIDField == "" {
		config.ObjectIDField = DefaultObjectIDField
	}

	return &Extractor{
		fetcher: fetcher,
		config:  config,
		logger:  logging.NewLogger("extractor"),
	}
}

// Pull writes every record to a CSV file at destination, replacing it.
func Pull(ctx context.Context, fetcher PageFetcher, destination string, config Config) (*Result, error) {
	return NewExtractor(fetcher, config).Pull(ctx, destination)
}

// Pull creates destination and runs the loop into it. The file is closed on
// every return path.
func (e *Extractor) Pull(ctx context.Context, destination string) (result *Result, err error) {
	w, err := csvout.Create(destination, e.config.CSV)
	if err != nil {
		return &Result{Cursor: InitialCursor}, err
	}
	defer func() {
		if cerr := w.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close output: %w", cerr)
		}
	}()

	return e.Run(ctx, w)
}

// Run pages through the layer, appending to w until an empty page.
func (e *Extractor) Run(ctx context.Context, w *csvout.Writer) (*Result, error) {
	start := time.Now()
	result := &Result{Cursor: InitialCursor}
	field := e.config.ObjectIDField

	e.logger.Info().Msg("Gathering records")

	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			result.Duration = time.Since(start)
			return result, err
		}

		where := Where(field, result.Cursor)
		records, err := e.fetcher.FetchPage(ctx, where)
		if err != nil {
			result.Duration = time.Since(start)
			return result, fmt.Errorf("page %d (%s): %w", page, where, err)
		}

		if len(records) == 0 {
			break
		}

		next, err := e.appendPage(w, page, records, result)
		if err != nil {
			result.Duration = time.Since(start)
			return result, fmt.Errorf("page %d (%s): %w", page, where, err)
		}

		result.Pages++
		result.Records += len(records)
		result.Cursor = next

		agoPagesTotal.Inc()
		agoRecordsTotal.Add(float64(len(records)))
		agoCursor.Set(float64(next))

		e.logger.Info().
			Int("page", page).
			Int("records", len(records)).
			Int("total", result.Records).
			Int64("cursor", next).
			Msgf("Record Number: %d", next)

		if e.config.OnPage != nil {
			e.config.OnPage(PageStats{
				Page:    page,
				Records: len(records),
				Total:   result.Records,
				Cursor:  next,
			})
		}
	}

	result.Duration = time.Since(start)
	agoPullDuration.Observe(result.Duration.Seconds())

	e.logger.Info().
		Int("pages", result.Pages).
		Int("total", result.Records).
		Dur("duration", result.Duration).
		Msgf("Serial Data API pull required %.0f seconds", result.Duration.Seconds())

	return result, nil
}

// appendPage transforms and writes one page and returns the new cursor.
// Nothing is written when the page fails validation.
func (e *Extractor) appendPage(w *csvout.Writer, page int, records []table.Record, result *Result) (int64, error) {
	t := table.New(records)

	warnings, err := table.CoerceDates(t, e.config.DateColumns)
	for _, warn := range warnings {
		agoDateCoercionWarningsTotal.WithLabelValues(warn.Column).Inc()
		e.logger.Warn().
			Int("page", page).
			Str("column", warn.Column).
			Msg(warn.String())
	}
	result.Warnings = append(result.Warnings, warnings...)
	if err != nil {
		return 0, err
	}

	next, err := t.MaxInt(e.config.ObjectIDField)
	if err != nil {
		return 0, err
	}
	if next <= result.Cursor {
		return 0, fmt.Errorf("%w: page max %s %d <= %d", ErrCursorStalled, e.config.ObjectIDField, next, result.Cursor)
	}

	if page == 1 && len(e.config.DateColumns) > 0 {
		e.logger.Info().
			Strs("columns", e.config.DateColumns).
			Msg("Coercing the following columns to datetime format: " + strings.Join(e.config.DateColumns, ", "))
	}

	if err := w.WriteTable(t); err != nil {
		return 0, err
	}
	return next, nil
}

// Where returns the filter selecting records after cursor.
func Where(field string, cursor int64) string {
	return fmt.Sprintf("%s > %d", field, cursor)
}
