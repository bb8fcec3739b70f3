package pagination

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/buger/jsonparser"
)

// Kind identifies a pagination strategy.
type Kind string

const (
	// KindOffset pages with skip/take variables.
	KindOffset Kind = "offset"

	// KindCursor pages with first/after variables over a Relay connection.
	KindCursor Kind = "cursor"
)

// ParseKind converts a configuration value into a Kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindOffset:
		return KindOffset, nil
	case KindCursor:
		return KindCursor, nil
	default:
		return "", fmt.Errorf("unknown pagination strategy %q", s)
	}
}

// NewStrategy returns the strategy for a kind.
func NewStrategy(kind Kind) (Strategy, error) {
	switch kind {
	case KindOffset:
		return Offset{}, nil
	case KindCursor:
		return Cursor{}, nil
	default:
		return nil, fmt.Errorf("unknown pagination strategy %q", kind)
	}
}

// Position is where the next page starts.
type Position struct {
	// Offset is the number of items to skip (offset strategy).
	Offset int

	// After is the cursor to continue from (cursor strategy). Nil on the first page.
	After *string
}

// PageInfo is the continuation signal of one page.
type PageInfo struct {
	// HasNextPage is reported by cursor connections. Offset pages leave it false.
	HasNextPage bool

	// EndCursor is the cursor of the last edge in the page.
	EndCursor string

	// TotalCount is the server-reported collection size, if the query asked for it.
	TotalCount *int
}

// Strategy produces request variables and interprets page payloads.
// Implementations must be stateless: every method is a pure function of its arguments.
type Strategy interface {
	// Kind returns the strategy identifier.
	Kind() Kind

	// Start returns the position of the first page.
	Start() Position

	// Variables returns the pagination variables for a request at pos.
	Variables(pos Position, pageSize int) map[string]any

	// Decode splits the paged field of a response into raw items and continuation info.
	// A nil connection means the paged field was absent or null.
	Decode(connection json.RawMessage) ([]json.RawMessage, PageInfo, error)

	// Next returns the position of the following page, or more=false when exhausted.
	Next(pos Position, info PageInfo, received, pageSize int) (next Position, more bool, err error)
}

// Offset implements skip/take pagination.
//
// Any page with fewer items than the page size is the last one. The offset advances by
// the page size regardless of how many items were returned, so items deleted between
// requests can be skipped. Prefer Cursor when the collection may change during a fetch.
type Offset struct{}

// Kind implements Strategy.
func (Offset) Kind() Kind { return KindOffset }

// Start implements Strategy.
func (Offset) Start() Position { return Position{} }

// Variables implements Strategy.
func (Offset) Variables(pos Position, pageSize int) map[string]any {
	return map[string]any{
		"skip": pos.Offset,
		"take": pageSize,
	}
}

// Decode implements Strategy. The paged field is a plain list of items.
func (Offset) Decode(connection json.RawMessage) ([]json.RawMessage, PageInfo, error) {
	if len(connection) == 0 {
		return nil, PageInfo{}, nil
	}

	value, dataType, _, err := jsonparser.Get(connection)
	if err != nil {
		return nil, PageInfo{}, fmt.Errorf("%w: %v", ErrMalformedPage, err)
	}

	switch dataType {
	case jsonparser.Null:
		return nil, PageInfo{}, nil
	case jsonparser.Array:
	default:
		return nil, PageInfo{}, fmt.Errorf("%w: expected list of items, got %s", ErrMalformedPage, dataType)
	}

	items, err := arrayItems(value)
	if err != nil {
		return nil, PageInfo{}, err
	}
	return items, PageInfo{}, nil
}

// Next implements Strategy.
func (Offset) Next(pos Position, _ PageInfo, received, pageSize int) (Position, bool, error) {
	if received < pageSize {
		return pos, false, nil
	}
	return Position{Offset: pos.Offset + pageSize}, true, nil
}

// Cursor implements first/after pagination over a Relay connection.
//
// The server's hasNextPage is authoritative, and the next after value is always the
// endCursor of the page just received.
type Cursor struct{}

// Kind implements Strategy.
func (Cursor) Kind() Kind { return KindCursor }

// Start implements Strategy.
func (Cursor) Start() Position { return Position{} }

// Variables implements Strategy. After is sent as null on the first page.
func (Cursor) Variables(pos Position, pageSize int) map[string]any {
	var after any
	if pos.After != nil {
		after = *pos.After
	}
	return map[string]any{
		"first": pageSize,
		"after": after,
	}
}

// Decode implements Strategy. Items are the node of every edge.
func (Cursor) Decode(connection json.RawMessage) ([]json.RawMessage, PageInfo, error) {
	var info PageInfo
	if len(connection) == 0 {
		return nil, info, nil
	}

	value, dataType, _, err := jsonparser.Get(connection)
	if err != nil {
		return nil, info, fmt.Errorf("%w: %v", ErrMalformedPage, err)
	}

	switch dataType {
	case jsonparser.Null:
		return nil, info, nil
	case jsonparser.Object:
	default:
		return nil, info, fmt.Errorf("%w: expected connection object, got %s", ErrMalformedPage, dataType)
	}

	var items []json.RawMessage
	edges, edgesType, _, err := jsonparser.Get(value, "edges")
	switch {
	case errors.Is(err, jsonparser.KeyPathNotFoundError) || edgesType == jsonparser.Null:
	case err != nil:
		return nil, info, fmt.Errorf("%w: edges: %v", ErrMalformedPage, err)
	case edgesType != jsonparser.Array:
		return nil, info, fmt.Errorf("%w: edges is %s", ErrMalformedPage, edgesType)
	default:
		edgeList, err := arrayItems(edges)
		if err != nil {
			return nil, info, err
		}
		items = make([]json.RawMessage, 0, len(edgeList))
		for i, edge := range edgeList {
			node, nodeType, _, err := jsonparser.Get(edge, "node")
			if err != nil {
				return nil, info, fmt.Errorf("%w: edge %d has no node", ErrMalformedPage, i)
			}
			items = append(items, rawValue(node, nodeType))
		}
	}

	if hasNext, err := jsonparser.GetBoolean(value, "pageInfo", "hasNextPage"); err == nil {
		info.HasNextPage = hasNext
	}

	if endCursor, cursorType, _, err := jsonparser.Get(value, "pageInfo", "endCursor"); err == nil && cursorType == jsonparser.String {
		s, err := jsonparser.ParseString(endCursor)
		if err != nil {
			return nil, info, fmt.Errorf("%w: endCursor: %v", ErrMalformedPage, err)
		}
		info.EndCursor = s
	}

	if total, totalType, _, err := jsonparser.Get(value, "totalCount"); err == nil && totalType == jsonparser.Number {
		n, err := jsonparser.ParseInt(total)
		if err != nil {
			return nil, info, fmt.Errorf("%w: totalCount: %v", ErrMalformedPage, err)
		}
		count := int(n)
		info.TotalCount = &count
	}

	return items, info, nil
}

// Next implements Strategy.
func (Cursor) Next(pos Position, info PageInfo, _, _ int) (Position, bool, error) {
	if !info.HasNextPage {
		return pos, false, nil
	}
	if info.EndCursor == "" {
		return pos, false, ErrMissingCursor
	}
	after := info.EndCursor
	return Position{After: &after}, true, nil
}

// arrayItems returns the raw elements of a JSON array.
func arrayItems(array []byte) ([]json.RawMessage, error) {
	var items []json.RawMessage
	var eachErr error
	_, err := jsonparser.ArrayEach(array, func(value []byte, dataType jsonparser.ValueType, _ int, err error) {
		if err != nil {
			eachErr = err
			return
		}
		items = append(items, rawValue(value, dataType))
	})
	if err == nil {
		err = eachErr
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPage, err)
	}
	return items, nil
}

// rawValue copies a jsonparser value back into valid JSON.
// jsonparser strips the quotes from string values.
func rawValue(value []byte, dataType jsonparser.ValueType) json.RawMessage {
	if dataType == jsonparser.String {
		out := make([]byte, 0, len(value)+2)
		out = append(out, '"')
		out = append(out, value...)
		return append(out, '"')
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out
}
