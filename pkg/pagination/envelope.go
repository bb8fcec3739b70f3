package pagination

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/buger/jsonparser"
)

// Envelope rebuilds the response of a single unpaginated request:
//
//	{"data": {"clients": [{...root fields..., "clientProfiles": [{..., "engagements": [items]}]}]}}
//
// Root-level fields come from the first page only. Every list on the locator path keeps its
// first element, and the paged field is replaced by the accumulated items (cursor edges are
// unwrapped to their nodes).
func (r *Result[T]) Envelope() (json.RawMessage, error) {
	if r.first == nil {
		return nil, errors.New("envelope: no page received")
	}

	data := bytes.Clone(r.first)
	if r.Outcome == OutcomeEmptyRoot {
		return wrapData(data), nil
	}

	var err error
	if r.loc.connection != nil {
		data, err = jsonparser.Set(data, joinItems(r.raw), r.loc.path...)
		if err != nil {
			return nil, fmt.Errorf("envelope: set %v: %w", r.loc.path, err)
		}
	}

	// Narrow lists innermost first so outer elements carry the updated inner ones.
	for i := len(r.loc.lists) - 1; i >= 0; i-- {
		listPath := r.loc.path[:r.loc.lists[i]:r.loc.lists[i]]

		first, firstType, _, err := jsonparser.Get(data, append(listPath, "[0]")...)
		if err != nil {
			return nil, fmt.Errorf("envelope: get %v[0]: %w", listPath, err)
		}

		list := append([]byte{'['}, rawValue(first, firstType)...)
		list = append(list, ']')
		data, err = jsonparser.Set(data, list, listPath...)
		if err != nil {
			return nil, fmt.Errorf("envelope: set %v: %w", listPath, err)
		}
	}

	return wrapData(data), nil
}

func joinItems(items []json.RawMessage) []byte {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, item := range items {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(item)
	}
	buf.WriteByte(']')
	return buf.Bytes()
}

func wrapData(data []byte) json.RawMessage {
	out := make([]byte, 0, len(data)+9)
	out = append(out, `{"data":`...)
	out = append(out, data...)
	return append(out, '}')
}
