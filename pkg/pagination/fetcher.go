package pagination

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"strings"
	"time"
)

// Transport sends one GraphQL query and returns the data object of the response.
// Implementations must fail on a non-success status and on application-level errors.
type Transport interface {
	Query(ctx context.Context, query string, variables map[string]any) (json.RawMessage, error)
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(ctx context.Context, query string, variables map[string]any) (json.RawMessage, error)

// Query implements Transport.
func (f TransportFunc) Query(ctx context.Context, query string, variables map[string]any) (json.RawMessage, error) {
	return f(ctx, query, variables)
}

// Request describes one paged collection fetch.
type Request struct {
	// Query is sent unchanged on every request.
	Query string

	// Variables are the non-pagination variables, held constant across requests.
	Variables map[string]any

	// PageSize is the number of items requested per page.
	PageSize int

	// Locator finds the root entity and the paged field in each response.
	Locator Locator
}

// Validate checks that the request can be executed.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Query) == "" {
		return fmt.Errorf("%w: query is empty", ErrInvalidRequest)
	}
	if r.PageSize <= 0 {
		return fmt.Errorf("%w: page size must be > 0 (got %d)", ErrInvalidRequest, r.PageSize)
	}
	return r.Locator.Validate()
}

// variables merges the base variables with the pagination variables of pos.
func (r Request) variables(s Strategy, pos Position) map[string]any {
	vars := make(map[string]any, len(r.Variables)+2)
	maps.Copy(vars, r.Variables)
	maps.Copy(vars, s.Variables(pos, r.PageSize))
	return vars
}

// Page is one decoded page of a paged collection.
type Page[T any] struct {
	// Items are the page's records in server order.
	Items []T

	// Info is the continuation signal of the page.
	Info PageInfo

	// RootFound is false when the root lookup matched no entity.
	RootFound bool

	data     json.RawMessage
	raw      []json.RawMessage
	location location
}

// FetchPage requests and decodes the single page at pos.
func FetchPage[T any](ctx context.Context, transport Transport, req Request, strategy Strategy, pos Position) (*Page[T], error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return fetchPage[T](ctx, transport, req, strategy, req.variables(strategy, pos))
}

func fetchPage[T any](ctx context.Context, transport Transport, req Request, strategy Strategy, vars map[string]any) (*Page[T], error) {
	data, err := transport.Query(ctx, req.Query, vars)
	if err != nil {
		return nil, err
	}

	loc, err := req.Locator.locate(data)
	if err != nil {
		return nil, err
	}

	page := &Page[T]{
		RootFound: loc.found,
		data:      data,
		location:  loc,
	}
	if !loc.found {
		return page, nil
	}

	raw, info, err := strategy.Decode(loc.connection)
	if err != nil {
		return nil, err
	}

	items := make([]T, 0, len(raw))
	for i, r := range raw {
		var item T
		if err := json.Unmarshal(r, &item); err != nil {
			return nil, fmt.Errorf("%w: item %d: %v", ErrMalformedPage, i, err)
		}
		items = append(items, item)
	}

	page.Items = items
	page.Info = info
	page.raw = raw
	return page, nil
}

// Outcome distinguishes the two successful ends of a fetch.
type Outcome string

const (
	// OutcomeComplete means every page of the collection was retrieved.
	OutcomeComplete Outcome = "complete"

	// OutcomeEmptyRoot means the root lookup matched no entity on the first page.
	OutcomeEmptyRoot Outcome = "empty_root"

	// OutcomeFailed is only reported to observers; FetchAll returns an error instead.
	OutcomeFailed Outcome = "failed"
)

// Result is the complete, ordered content of a paged collection.
type Result[T any] struct {
	// Items holds every item in page-arrival order.
	Items []T

	// Outcome is OutcomeComplete or OutcomeEmptyRoot.
	Outcome Outcome

	// Strategy is the strategy that produced the result.
	Strategy Kind

	// Requests is the number of requests issued.
	Requests int

	// TotalCount is the collection size reported on the first page, if any.
	TotalCount *int

	// Root is the root entity as received on the first page. Nil for OutcomeEmptyRoot.
	Root json.RawMessage

	first json.RawMessage
	loc   location
	raw   []json.RawMessage
}

// EmptyRoot reports whether the root lookup matched nothing.
// A root entity with an empty collection reports false.
func (r *Result[T]) EmptyRoot() bool {
	return r.Outcome == OutcomeEmptyRoot
}

// Option configures FetchAll.
type Option func(*options)

type options struct {
	observers Observers
}

// WithObserver registers observers for fetch loop transitions.
func WithObserver(observers ...Observer) Option {
	return func(o *options) {
		o.observers = append(o.observers, observers...)
	}
}

// pagingState is the loop state of one FetchAll call.
type pagingState[T any] struct {
	accumulated []T
	raw         []json.RawMessage
	position    Position
	requests    int
	done        bool
}

// FetchAll retrieves every page of the collection described by req, sequentially.
//
// Transport and decoding failures abort the fetch and are returned as *FetchError with no
// items. Cancelling ctx aborts the fetch the same way.
func FetchAll[T any](ctx context.Context, transport Transport, req Request, strategy Strategy, opts ...Option) (*Result[T], error) {
	if transport == nil {
		return nil, fmt.Errorf("%w: transport is nil", ErrInvalidRequest)
	}
	if strategy == nil {
		return nil, fmt.Errorf("%w: strategy is nil", ErrInvalidRequest)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	observer := o.observers

	start := time.Now()
	kind := strategy.Kind()
	result := &Result[T]{Strategy: kind, Outcome: OutcomeComplete}
	state := pagingState[T]{position: strategy.Start()}

	fail := func(err error) (*Result[T], error) {
		observer.Terminated(TerminatedEvent{
			Strategy: kind,
			Requests: state.requests,
			Items:    len(state.accumulated),
			Outcome:  OutcomeFailed,
			Err:      err,
			Duration: time.Since(start),
		})
		return nil, &FetchError{Request: state.requests, Strategy: kind, Err: err}
	}

	for !state.done {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}

		state.requests++
		vars := req.variables(strategy, state.position)
		observer.RequestIssued(RequestEvent{
			Strategy:  kind,
			Request:   state.requests,
			Position:  state.position,
			PageSize:  req.PageSize,
			Variables: vars,
		})

		page, err := fetchPage[T](ctx, transport, req, strategy, vars)
		if err != nil {
			return fail(err)
		}

		if state.requests == 1 {
			result.first = page.data
		}

		if !page.RootFound {
			if state.requests > 1 {
				return fail(ErrRootMissing)
			}
			result.Outcome = OutcomeEmptyRoot
			state.done = true
			break
		}

		if state.requests == 1 {
			result.loc = page.location
			result.Root = page.location.root
			result.TotalCount = page.Info.TotalCount
		}

		state.accumulated = append(state.accumulated, page.Items...)
		state.raw = append(state.raw, page.raw...)

		observer.PageReceived(PageEvent{
			Strategy:    kind,
			Request:     state.requests,
			Items:       len(page.Items),
			Accumulated: len(state.accumulated),
			Info:        page.Info,
		})

		next, more, err := strategy.Next(state.position, page.Info, len(page.Items), req.PageSize)
		if err != nil {
			return fail(err)
		}
		if !more {
			state.done = true
			continue
		}
		state.position = next
	}

	result.Items = state.accumulated
	if result.Items == nil {
		result.Items = []T{}
	}
	result.raw = state.raw
	result.Requests = state.requests

	observer.Terminated(TerminatedEvent{
		Strategy: kind,
		Requests: state.requests,
		Items:    len(result.Items),
		Outcome:  result.Outcome,
		Duration: time.Since(start),
	})

	return result, nil
}
