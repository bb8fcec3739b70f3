package metrics

import (
	"github.com/Sternrassler/graphql-pager/pkg/pagination"
)

// PageObserver records fetch loop transitions as Prometheus metrics.
type PageObserver struct{}

// NewPageObserver returns a fetch observer backed by the default registry.
func NewPageObserver() *PageObserver {
	return &PageObserver{}
}

// RequestIssued implements pagination.Observer. Requests are counted by the client.
func (*PageObserver) RequestIssued(pagination.RequestEvent) {}

// PageReceived implements pagination.Observer.
func (*PageObserver) PageReceived(e pagination.PageEvent) {
	strategy := string(e.Strategy)
	pagesFetchedTotal.WithLabelValues(strategy).Inc()
	itemsFetchedTotal.WithLabelValues(strategy).Add(float64(e.Items))
}

// Terminated implements pagination.Observer.
func (*PageObserver) Terminated(e pagination.TerminatedEvent) {
	strategy := string(e.Strategy)
	fetchesTotal.WithLabelValues(strategy, string(e.Outcome)).Inc()
	fetchDuration.WithLabelValues(strategy).Observe(e.Duration.Seconds())
}
