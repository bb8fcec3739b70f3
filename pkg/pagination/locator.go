package pagination

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/buger/jsonparser"
)

// Locator describes where the paged collection lives inside a response's data object.
//
// Lists met along either path are narrowed to their first element, matching a root
// lookup by a unique filter key:
//
//	data.clients[0].clientProfiles[0].engagements
//	Locator{Root: []string{"clients"}, Connection: []string{"clientProfiles", "engagements"}}
type Locator struct {
	// Root is the path from data to the root entity (or the list holding it).
	// Empty means data itself is the root entity.
	Root []string

	// Connection is the path from the root entity to the paged field.
	Connection []string
}

// Validate checks that the locator can address a paged field.
func (l Locator) Validate() error {
	if len(l.Connection) == 0 {
		return fmt.Errorf("%w: locator connection path is empty", ErrInvalidRequest)
	}
	return nil
}

// location is the result of resolving a Locator against one response.
type location struct {
	found      bool
	root       json.RawMessage
	connection json.RawMessage
	// reached is true when the walk got as far as the paged field's parent.
	reached bool
	// path is the concrete key path of the paged field, with "[0]" for each narrowed list.
	path []string
	// lists holds the prefix length of path for every narrowed list, outermost first.
	lists []int
}

// walk is the state of one descent through a JSON document.
type walk struct {
	value   []byte
	path    []string
	lists   []int
	ok      bool
	reached bool
}

// locate resolves the locator against the data object of a response.
// found is false when the root path yields no entity at all.
func (l Locator) locate(data []byte) (location, error) {
	var loc location

	root, err := descend(walk{value: data}, l.Root, false)
	if err != nil {
		return loc, fmt.Errorf("root %v: %w", l.Root, err)
	}
	if !root.ok {
		return loc, nil
	}
	loc.found = true
	loc.root = root.value

	conn, err := descend(root, l.Connection, true)
	if err != nil {
		return loc, fmt.Errorf("connection %v: %w", l.Connection, err)
	}
	loc.reached = conn.reached
	loc.path = conn.path
	loc.lists = conn.lists
	if conn.ok {
		loc.connection = conn.value
	}
	return loc, nil
}

// descend follows keys from w.value, narrowing lists to their first element.
// When paged is set the final key is the paged field and is returned untouched.
func descend(w walk, keys []string, paged bool) (walk, error) {
	out := walk{
		value: w.value,
		path:  append([]string(nil), w.path...),
		lists: append([]int(nil), w.lists...),
	}

	for i, key := range keys {
		last := i == len(keys)-1
		if last && paged {
			out.reached = true
		}

		v, t, _, err := jsonparser.Get(out.value, key)
		if errors.Is(err, jsonparser.KeyPathNotFoundError) {
			if out.reached {
				out.path = append(out.path, key)
			}
			return out, nil
		}
		if err != nil {
			return out, fmt.Errorf("%w: %v", ErrMalformedPage, err)
		}
		out.path = append(out.path, key)

		if last && paged {
			if t != jsonparser.Null {
				out.value = rawValue(v, t)
				out.ok = true
			}
			return out, nil
		}

		switch t {
		case jsonparser.Null:
			return out, nil
		case jsonparser.Array:
			first, ft, _, err := jsonparser.Get(v, "[0]")
			if errors.Is(err, jsonparser.KeyPathNotFoundError) || ft == jsonparser.Null {
				return out, nil
			}
			if err != nil {
				return out, fmt.Errorf("%w: %v", ErrMalformedPage, err)
			}
			out.lists = append(out.lists, len(out.path))
			out.path = append(out.path, "[0]")
			v = first
		case jsonparser.Object:
		default:
			return out, fmt.Errorf("%w: %s is %s, not an object", ErrMalformedPage, key, t)
		}
		out.value = v
	}

	out.ok = true
	return out, nil
}
