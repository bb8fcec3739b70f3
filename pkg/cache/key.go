package cache

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// keyPrefix namespaces probe reports in a shared Redis.
const keyPrefix = "gqlpager:probe"

// CacheKey identifies the probe report of one root entity on one endpoint.
type CacheKey struct {
	// Endpoint is the GraphQL endpoint URL.
	Endpoint string

	// Root is the locator path to the root entity (e.g. ["clients"]).
	Root []string

	// Variables are the non-pagination variables selecting the root entity.
	Variables map[string]any
}

// String generates a deterministic cache key string.
// Format: gqlpager:probe:escaped-endpoint:root.path:var1=val1:var2=val2
//
// The endpoint is query-escaped so it never contains the ":" separator or a MATCH
// metacharacter. Example:
//
//	gqlpager:probe:https%3A%2F%2Fapi.example.com%2Fgraphql:clients:clientId="0008005369"
func (k CacheKey) String() string {
	parts := []string{keyPrefix, endpointSegment(k.Endpoint)}

	if len(k.Root) > 0 {
		parts = append(parts, strings.Join(k.Root, "."))
	}

	if len(k.Variables) > 0 {
		names := make([]string, 0, len(k.Variables))
		for name := range k.Variables {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			parts = append(parts, fmt.Sprintf("%s=%s", name, encodeValue(k.Variables[name])))
		}
	}

	return strings.Join(parts, ":")
}

// encodeValue renders a variable value as JSON; encoding/json sorts map keys.
func encodeValue(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

// endpointSegment renders an endpoint as a single key segment.
func endpointSegment(endpoint string) string {
	return url.QueryEscape(strings.TrimRight(endpoint, "/"))
}
