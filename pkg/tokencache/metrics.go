package tokencache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks tokens served from Redis.
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ago_token_cache_hits_total",
			Help: "Total number of AGO tokens served from cache",
		},
	)

	// CacheMisses tracks lookups that found no usable token.
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ago_token_cache_misses_total",
			Help: "Total number of AGO token cache misses",
		},
	)

	// CacheErrors tracks cache operation errors.
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ago_token_cache_errors_total",
			Help: "Total number of token cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete"
	)
)
