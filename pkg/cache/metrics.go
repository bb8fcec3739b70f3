package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks probe reports served from Redis
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "graphql_probe_cache_hits_total",
			Help: "Total number of probe report cache hits",
		},
	)

	// CacheMisses tracks probe reports that were not cached or had expired
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "graphql_probe_cache_misses_total",
			Help: "Total number of probe report cache misses",
		},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "graphql_probe_cache_errors_total",
			Help: "Total number of probe report cache errors",
		},
		[]string{"operation"}, // "get", "set", "delete", "scan", "encode", "decode"
	)
)
