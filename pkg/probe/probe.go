// Package probe detects which pagination strategies a GraphQL endpoint supports for a
// root entity, by requesting a single first page with each strategy.
package probe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/graphql-pager/pkg/cache"
	"github.com/Sternrassler/graphql-pager/pkg/logging"
	"github.com/Sternrassler/graphql-pager/pkg/pagination"
)

// sampleSize is the number of items kept per strategy for display.
const sampleSize = 3

// ReasonNoRoot is reported when the root lookup matched no entity.
const ReasonNoRoot = "no root entity found"

// ErrNoStrategy is returned when neither strategy is supported.
var ErrNoStrategy = errors.New("no supported pagination strategy")

// Target describes the collection to probe.
type Target struct {
	// Endpoint identifies the server in cached reports.
	Endpoint string

	// OffsetQuery pages with $skip/$take. Empty skips the offset probe.
	OffsetQuery string

	// CursorQuery pages with $first/$after. Empty skips the cursor probe.
	CursorQuery string

	// Variables select the root entity.
	Variables map[string]any

	// PageSize is the size of the probe page.
	PageSize int

	// Locator finds the root entity and paged field.
	Locator pagination.Locator
}

func (t Target) validate() error {
	if t.OffsetQuery == "" && t.CursorQuery == "" {
		return fmt.Errorf("%w: no probe query configured", pagination.ErrInvalidRequest)
	}
	if t.PageSize <= 0 {
		return fmt.Errorf("%w: page size must be > 0 (got %d)", pagination.ErrInvalidRequest, t.PageSize)
	}
	return t.Locator.Validate()
}

func (t Target) cacheKey() cache.CacheKey {
	return cache.CacheKey{
		Endpoint:  t.Endpoint,
		Root:      t.Locator.Root,
		Variables: t.Variables,
	}
}

// StrategyReport is the outcome of probing one strategy.
type StrategyReport struct {
	Strategy  pagination.Kind `json:"strategy"`
	Supported bool            `json:"supported"`
	Count     int             `json:"count"`
	Reason    string          `json:"reason,omitempty"`

	// Cursor connections only.
	TotalCount  *int   `json:"totalCount,omitempty"`
	HasNextPage bool   `json:"hasNextPage,omitempty"`
	EndCursor   string `json:"endCursor,omitempty"`

	// Sample holds up to the first three items of the probe page.
	Sample []json.RawMessage `json:"sample,omitempty"`
}

// Report is the result of probing both strategies.
type Report struct {
	Endpoint string         `json:"endpoint"`
	Offset   StrategyReport `json:"offset"`
	Cursor   StrategyReport `json:"cursor"`
	ProbedAt time.Time      `json:"probedAt"`

	// Cached is set when the report was served from the probe cache.
	Cached bool `json:"-"`
}

// Recommendation returns the strategy to use: cursor when supported, else offset.
// ok is false when neither is supported.
func (r *Report) Recommendation() (kind pagination.Kind, ok bool) {
	switch {
	case r.Cursor.Supported:
		return pagination.KindCursor, true
	case r.Offset.Supported:
		return pagination.KindOffset, true
	default:
		return "", false
	}
}

// Prober runs strategy probes against a transport.
type Prober struct {
	transport pagination.Transport
	cache     *cache.Manager
	ttl       time.Duration
	pause     time.Duration
	logger    zerolog.Logger
}

// Option configures a Prober.
type Option func(*Prober)

// WithCache stores reports in Redis for ttl and serves them from there.
func WithCache(manager *cache.Manager, ttl time.Duration) Option {
	return func(p *Prober) {
		p.cache = manager
		p.ttl = ttl
	}
}

// WithPause waits between the offset and cursor probes.
func WithPause(d time.Duration) Option {
	return func(p *Prober) {
		p.pause = d
	}
}

// New creates a Prober.
func New(transport pagination.Transport, opts ...Option) *Prober {
	p := &Prober{
		transport: transport,
		logger:    logging.NewLogger("probe"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run probes the offset strategy, then the cursor strategy, and reports which work.
//
// Probe failures are recorded in the report, not returned. Run only fails on an invalid
// target or a cancelled context. Reports with a supported strategy are cached.
func (p *Prober) Run(ctx context.Context, t Target) (*Report, error) {
	if err := t.validate(); err != nil {
		return nil, err
	}

	if report, ok := p.cached(ctx, t); ok {
		return report, nil
	}

	report := &Report{Endpoint: t.Endpoint, ProbedAt: time.Now().UTC()}

	report.Offset = p.probe(ctx, t, t.OffsetQuery, pagination.Offset{})
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if p.pause > 0 {
		select {
		case <-time.After(p.pause):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	report.Cursor = p.probe(ctx, t, t.CursorQuery, pagination.Cursor{})
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if kind, ok := report.Recommendation(); ok {
		p.logger.Info().
			Str("endpoint", t.Endpoint).
			Str("recommendation", string(kind)).
			Msg("Probe finished")
		p.store(ctx, t, report)
	} else {
		p.logger.Warn().
			Str("endpoint", t.Endpoint).
			Str("offset_reason", report.Offset.Reason).
			Str("cursor_reason", report.Cursor.Reason).
			Msg("No pagination strategy supported")
	}

	return report, nil
}

// probe requests the first page of one strategy.
func (p *Prober) probe(ctx context.Context, t Target, query string, strategy pagination.Strategy) StrategyReport {
	sr := StrategyReport{Strategy: strategy.Kind()}
	if query == "" {
		sr.Reason = "no query configured"
		return sr
	}

	req := pagination.Request{
		Query:     query,
		Variables: t.Variables,
		PageSize:  t.PageSize,
		Locator:   t.Locator,
	}

	page, err := pagination.FetchPage[json.RawMessage](ctx, p.transport, req, strategy, strategy.Start())
	if err != nil {
		sr.Reason = err.Error()
		p.logger.Warn().Err(err).Str("strategy", string(sr.Strategy)).Msg("Strategy not supported")
		return sr
	}
	if !page.RootFound {
		sr.Reason = ReasonNoRoot
		return sr
	}

	sr.Supported = true
	sr.Count = len(page.Items)
	sr.Sample = page.Items[:min(sampleSize, len(page.Items))]
	if strategy.Kind() == pagination.KindCursor {
		sr.TotalCount = page.Info.TotalCount
		sr.HasNextPage = page.Info.HasNextPage
		sr.EndCursor = page.Info.EndCursor
	}

	p.logger.Debug().
		Str("strategy", string(sr.Strategy)).
		Int("items", sr.Count).
		Msg("Strategy supported")

	return sr
}

// Forget drops every cached report of endpoint so the next Run probes again.
// It returns the number of reports dropped; without a cache it does nothing.
func (p *Prober) Forget(ctx context.Context, endpoint string) (int, error) {
	if p.cache == nil {
		return 0, nil
	}
	return p.cache.Purge(ctx, endpoint)
}

// cached returns the stored report for t, if any. Cache failures fall through to probing.
func (p *Prober) cached(ctx context.Context, t Target) (*Report, bool) {
	if p.cache == nil {
		return nil, false
	}

	entry, err := p.cache.Get(ctx, t.cacheKey())
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			p.logger.Warn().Err(err).Msg("Probe cache read failed, probing uncached")
		}
		return nil, false
	}

	var report Report
	if err := json.Unmarshal(entry.Data, &report); err != nil {
		p.logger.Warn().Err(err).Msg("Cached probe report unreadable, probing again")
		return nil, false
	}
	report.Cached = true
	return &report, true
}

func (p *Prober) store(ctx context.Context, t Target, report *Report) {
	if p.cache == nil || p.ttl <= 0 {
		return
	}

	data, err := json.Marshal(report)
	if err != nil {
		p.logger.Warn().Err(err).Msg("Encode probe report")
		return
	}
	if err := p.cache.Set(ctx, t.cacheKey(), cache.NewEntry(data, p.ttl)); err != nil {
		p.logger.Warn().Err(err).Msg("Probe cache write failed")
	}
}
