// Package metrics provides the Prometheus registry for the GraphQL pager and a
// fetch observer that counts pages, items and fetch outcomes.
// Transport and cache metrics are defined in their respective packages (client, cache)
// to maintain modularity and avoid circular dependencies.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the pager.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Handler serves every registered metric in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

var (
	pagesFetchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "graphql_pages_fetched_total",
		Help: "Pages received by pagination strategy",
	}, []string{"strategy"})

	itemsFetchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "graphql_items_fetched_total",
		Help: "Items accumulated by pagination strategy",
	}, []string{"strategy"})

	fetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "graphql_fetches_total",
		Help: "Finished paged fetches by strategy and outcome",
	}, []string{"strategy", "outcome"})

	fetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "graphql_fetch_duration_seconds",
		Help:    "Duration of whole paged fetches by strategy",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
	}, []string{"strategy"})
)

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - graphql_requests_total{operation, status} (Counter): Requests by operation name and HTTP status
//   - graphql_request_duration_seconds{operation} (Histogram): Request duration by operation
//   - graphql_errors_total{class} (Counter): Errors by class (client, server, network, decode, graphql)
//
// Fetch Metrics (pkg/metrics, via PageObserver):
//   - graphql_pages_fetched_total{strategy} (Counter): Pages received
//   - graphql_items_fetched_total{strategy} (Counter): Items accumulated
//   - graphql_fetches_total{strategy, outcome} (Counter): Fetches by outcome (complete, empty_root, failed)
//   - graphql_fetch_duration_seconds{strategy} (Histogram): Whole-fetch duration
//
// Probe Cache Metrics (pkg/cache):
//   - graphql_probe_cache_hits_total (Counter): Probe reports served from Redis
//   - graphql_probe_cache_misses_total (Counter): Probe reports not in Redis
//   - graphql_probe_cache_errors_total{operation} (Counter): Redis or encoding failures
//
// Example Prometheus Queries:
//
//   # Average pages per fetch
//   sum(rate(graphql_pages_fetched_total[5m])) / sum(rate(graphql_fetches_total[5m]))
//
//   # Failed fetch ratio
//   sum(rate(graphql_fetches_total{outcome="failed"}[5m])) / sum(rate(graphql_fetches_total[5m]))
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(graphql_request_duration_seconds_bucket[5m]))
//
//   # Probe Cache Hit Rate
//   rate(graphql_probe_cache_hits_total[5m]) /
//   (rate(graphql_probe_cache_hits_total[5m]) + rate(graphql_probe_cache_misses_total[5m]))
