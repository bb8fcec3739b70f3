package logging

import (
	"github.com/rs/zerolog"

	"github.com/Sternrassler/graphql-pager/pkg/pagination"
)

// PageLogger narrates a paged fetch through zerolog.
type PageLogger struct {
	logger zerolog.Logger
}

// NewPageLogger returns a fetch observer logging as component.
func NewPageLogger(component string) *PageLogger {
	return &PageLogger{logger: NewLogger(component)}
}

// NewPageLoggerWith returns a fetch observer writing to logger.
func NewPageLoggerWith(logger zerolog.Logger) *PageLogger {
	return &PageLogger{logger: logger}
}

// RequestIssued implements pagination.Observer.
func (p *PageLogger) RequestIssued(e pagination.RequestEvent) {
	ev := p.logger.Debug().
		Str("strategy", string(e.Strategy)).
		Int("request", e.Request).
		Int("page_size", e.PageSize)
	switch e.Strategy {
	case pagination.KindOffset:
		ev = ev.Int("skip", e.Position.Offset)
	case pagination.KindCursor:
		if e.Position.After != nil {
			ev = ev.Str("after", *e.Position.After)
		}
	}
	ev.Msg("Requesting page")
}

// PageReceived implements pagination.Observer.
func (p *PageLogger) PageReceived(e pagination.PageEvent) {
	ev := p.logger.Debug().
		Str("strategy", string(e.Strategy)).
		Int("request", e.Request).
		Int("items", e.Items).
		Int("total_items", e.Accumulated)
	if e.Strategy == pagination.KindCursor {
		ev = ev.Bool("has_next_page", e.Info.HasNextPage)
	}
	if e.Info.TotalCount != nil {
		ev = ev.Int("total_count", *e.Info.TotalCount)
	}
	ev.Msg("Page received")
}

// Terminated implements pagination.Observer.
func (p *PageLogger) Terminated(e pagination.TerminatedEvent) {
	switch e.Outcome {
	case pagination.OutcomeFailed:
		p.logger.Error().
			Err(e.Err).
			Str("strategy", string(e.Strategy)).
			Int("request", e.Requests).
			Dur("duration", e.Duration).
			Msg("Fetch failed")
	case pagination.OutcomeEmptyRoot:
		p.logger.Info().
			Str("strategy", string(e.Strategy)).
			Msg("No root entity found")
	default:
		p.logger.Info().
			Str("strategy", string(e.Strategy)).
			Int("requests", e.Requests).
			Int("items", e.Items).
			Dur("duration", e.Duration).
			Msg("Fetch completed")
	}
}
