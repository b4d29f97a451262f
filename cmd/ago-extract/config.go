package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/Sternrassler/ago-extract/pkg/auth"
	"github.com/Sternrassler/ago-extract/pkg/client"
	"github.com/Sternrassler/ago-extract/pkg/logging"
	"github.com/Sternrassler/ago-extract/pkg/pagination"
	"github.com/spf13/cobra"
)

const (
	// DefaultURL is the Philadelphia trade licenses layer.
	DefaultURL = "https://services.arcgis.com/fLeGjb7u4uXqeF9q/ArcGIS/rest/services/TRADE_LICENSES_PWD/FeatureServer/0/query"

	// DefaultFilename is the output file for DefaultURL.
	DefaultFilename = "TRADE_LICENSES_PWD.csv"

	userAgent = "ago-extract/0.1.0"
)

// DefaultDateColumns are the esriFieldTypeDate columns of DefaultURL.
var DefaultDateColumns = []string{"REQUEST_DATE", "ISSUEDATE", "EXPIRATIONDATE"}

// options holds the raw flag values.
type options struct {
	username        string
	password        string
	url             string
	filename        string
	dateCols        []string
	objectIDField   string
	tokenURL        string
	referer         string
	format          string
	timeout         time.Duration
	tokenExpiration time.Duration
	redisAddr       string
	metricsFile     string
	logLevel        string
	logPretty       bool
	progress        bool
}

func (o *options) bind(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVarP(&o.username, "username", "u", getEnv("AGO_USERNAME", ""), "ArcGIS username login with admin access (env AGO_USERNAME)")
	f.StringVarP(&o.password, "password", "p", getEnv("AGO_PASSWORD", ""), "Account password (env AGO_PASSWORD, prompted when empty)")
	f.StringVar(&o.url, "url", DefaultURL, "Feature Server layer query URL")
	f.StringVarP(&o.filename, "filename", "f", DefaultFilename, "Output CSV file")
	f.StringSliceVarP(&o.dateCols, "date-col", "d", DefaultDateColumns, "Column to convert from epoch milliseconds to a timestamp (repeatable)")
	f.StringVar(&o.objectIDField, "objectid-field", pagination.DefaultObjectIDField, "Integer field used as the pagination cursor")
	f.StringVar(&o.tokenURL, "token-url", auth.DefaultTokenURL, "generateToken endpoint")
	f.StringVar(&o.referer, "referer", auth.DefaultReferer, "Referer the token is bound to")
	f.StringVar(&o.format, "format", client.DefaultFormat, "Response format requested from the query endpoint (json or pjson)")
	f.DurationVar(&o.timeout, "timeout", 60*time.Second, "Per-request timeout")
	f.DurationVar(&o.tokenExpiration, "token-expiration", 0, "Requested token lifetime (0 uses the server default)")
	f.StringVar(&o.redisAddr, "redis-addr", getEnv("REDIS_URL", ""), "Redis address for caching tokens between runs (env REDIS_URL)")
	f.StringVar(&o.metricsFile, "metrics-file", getEnv("AGO_METRICS_FILE", ""), "Write Prometheus metrics to this textfile after the pull")
	f.StringVar(&o.logLevel, "log-level", getEnv("LOG_LEVEL", "info"), "Log level (debug, info, warn, error)")
	f.BoolVar(&o.logPretty, "log-pretty", false, "Human-readable log output")
	f.BoolVar(&o.progress, "progress", false, "Show a progress counter on stderr")
}

// runConfig is the validated configuration for one pull.
type runConfig struct {
	Credential  auth.Credential
	URL         string
	Destination string
	DateColumns []string
	Client      client.Config
	Auth        auth.Config
	Pagination  pagination.Config
	Format      string
	RedisAddr   string
	MetricsFile string
	Logging     logging.Config
	Progress    bool
}

// resolve validates flags and applies the custom URL rules. dateColsSet
// reports whether --date-col was given explicitly.
func (o *options) resolve(dateColsSet bool) (*runConfig, error) {
	level, err := logging.ParseLevel(o.logLevel)
	if err != nil {
		return nil, err
	}

	if o.url == "" {
		return nil, fmt.Errorf("--url must not be empty")
	}
	if o.filename == "" {
		return nil, fmt.Errorf("--filename must not be empty")
	}

	dateCols := cleanColumns(o.dateCols)
	if o.url != DefaultURL {
		if o.filename == DefaultFilename {
			return nil, fmt.Errorf("custom URL presented, but filename remains %q", DefaultFilename)
		}
		if !dateColsSet {
			dateCols = nil
		}
	}

	switch o.format {
	case "json", "pjson":
	default:
		return nil, fmt.Errorf("unsupported --format %q (want json or pjson)", o.format)
	}

	if o.objectIDField == "" {
		return nil, fmt.Errorf("--objectid-field must not be empty")
	}

	destination, err := filepath.Abs(o.filename)
	if err != nil {
		return nil, fmt.Errorf("resolve output path: %w", err)
	}

	cfg := &runConfig{
		Credential:  auth.Credential{Username: o.username, Password: o.password},
		URL:         o.url,
		Destination: destination,
		DateColumns: dateCols,
		Client:      client.DefaultConfig(userAgent),
		Auth:        auth.DefaultConfig(),
		Pagination:  pagination.DefaultConfig(),
		Format:      o.format,
		RedisAddr:   o.redisAddr,
		MetricsFile: o.metricsFile,
		Logging:     logging.DefaultConfig(),
		Progress:    o.progress,
	}

	cfg.Client.Timeout = o.timeout
	cfg.Auth.TokenURL = o.tokenURL
	cfg.Auth.Referer = o.referer
	cfg.Auth.Expiration = o.tokenExpiration
	cfg.Pagination.ObjectIDField = o.objectIDField
	cfg.Pagination.DateColumns = dateCols
	cfg.Logging.Level = level
	cfg.Logging.Pretty = o.logPretty

	return cfg, nil
}

// cleanColumns trims names and drops empties and duplicates, keeping order.
func cleanColumns(cols []string) []string {
	seen := make(map[string]bool, len(cols))
	out := make([]string, 0, len(cols))
	for _, c := range cols {
		c = strings.TrimSpace(c)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}
