// Package metrics documents and exports the extractor's Prometheus metrics.
// All metrics are defined in their respective packages (client, tokencache,
// pagination) and registered on the default registry via promauto.
//
// A pull is a short-lived batch job, so metrics are exported by writing the
// registry to a node_exporter textfile once the pull finishes.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
)

// Gatherer collects every metric registered via promauto.
var Gatherer = prometheus.DefaultGatherer

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - ago_requests_total{endpoint, status} (Counter): Requests by endpoint and HTTP status
//   - ago_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - ago_errors_total{class} (Counter): Errors by class (client, server, network, unexpected)
//
// Token Cache Metrics (pkg/tokencache):
//   - ago_token_cache_hits_total (Counter): Tokens served from Redis
//   - ago_token_cache_misses_total (Counter): Lookups that required generateToken
//   - ago_token_cache_errors_total{operation} (Counter): Redis errors by operation
//
// Pull Metrics (pkg/pagination):
//   - ago_pages_total (Counter): Pages appended to the output
//   - ago_records_total (Counter): Records appended to the output
//   - ago_cursor (Gauge): Highest OBJECTID written
//   - ago_date_coercion_warnings_total{column} (Counter): Date columns left unmodified
//   - ago_pull_duration_seconds (Histogram): Duration of completed pulls
//
// Example Prometheus Queries:
//
//   # Records per pull
//   increase(ago_records_total[1d])
//
//   # Feature Server errors
//   sum by (class) (increase(ago_errors_total[1d]))
//
//   # Stale extract (no successful pull in 26h)
//   time() - node_textfile_mtime_seconds{file="ago_extract.prom"} > 26 * 3600

// WriteTextfile writes all gathered metrics to path in the text exposition
// format. The parent directory is created if needed.
func WriteTextfile(path string) error {
	return WriteTextfileFrom(Gatherer, path)
}

// WriteTextfileFrom writes metrics from g to path.
func WriteTextfileFrom(g prometheus.Gatherer, path string) error {
	if path == "" {
		return fmt.Errorf("metrics file path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create metrics directory: %w", err)
		}
	}
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
