package cache

import (
	"strings"
	"testing"
)

func TestCacheKey_String(t *testing.T) {
	tests := []struct {
		name string
		key  CacheKey
		want string
	}{
		{
			name: "endpoint only",
			key: CacheKey{
				Endpoint: "https://api.example.com/graphql/",
			},
			want: "gqlpager:probe:https%3A%2F%2Fapi.example.com%2Fgraphql",
		},
		{
			name: "endpoint with root",
			key: CacheKey{
				Endpoint: "https://api.example.com/graphql",
				Root:     []string{"viewer", "organization"},
			},
			want: "gqlpager:probe:https%3A%2F%2Fapi.example.com%2Fgraphql:viewer.organization",
		},
		{
			name: "string variable",
			key: CacheKey{
				Endpoint:  "https://api.example.com/graphql",
				Root:      []string{"clients"},
				Variables: map[string]any{"clientId": "0008005369"},
			},
			want: `gqlpager:probe:https%3A%2F%2Fapi.example.com%2Fgraphql:clients:clientId="0008005369"`,
		},
		{
			name: "sorted variables",
			key: CacheKey{
				Endpoint: "https://api.example.com/graphql",
				Variables: map[string]any{
					"year":     2025,
					"clientId": "1",
					"active":   true,
				},
			},
			want: `gqlpager:probe:https%3A%2F%2Fapi.example.com%2Fgraphql:active=true:clientId="1":year=2025`,
		},
		{
			name: "nested variable",
			key: CacheKey{
				Endpoint: "https://api.example.com/graphql",
				Variables: map[string]any{
					"where": map[string]any{"b": 2, "a": 1},
				},
			},
			want: `gqlpager:probe:https%3A%2F%2Fapi.example.com%2Fgraphql:where={"a":1,"b":2}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.key.String(); got != tt.want {
				t.Errorf("CacheKey.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestCacheKey_Determinism ensures same input always produces same key
func TestCacheKey_Determinism(t *testing.T) {
	key := CacheKey{
		Endpoint: "https://api.example.com/graphql",
		Root:     []string{"clients"},
		Variables: map[string]any{
			"clientId":   "0008005369",
			"fiscalYear": "2025",
			"filter":     map[string]any{"z": 1, "a": []any{"x", "y"}},
		},
	}

	first := key.String()
	for i := 0; i < 10; i++ {
		if result := key.String(); result != first {
			t.Errorf("result[%d] = %v, want %v (not deterministic)", i, result, first)
		}
	}
}

func TestCacheKey_DistinctRoots(t *testing.T) {
	a := CacheKey{Endpoint: "https://api.example.com/graphql", Variables: map[string]any{"clientId": "1"}}
	b := CacheKey{Endpoint: "https://api.example.com/graphql", Variables: map[string]any{"clientId": "2"}}

	if a.String() == b.String() {
		t.Errorf("different root variables share key %q", a.String())
	}
}

func TestCacheKey_EndpointSegment(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
		want     string
	}{
		{"port", "https://api.example.com:8443/graphql", "gqlpager:probe:https%3A%2F%2Fapi.example.com%3A8443%2Fgraphql"},
		{"query and brackets", "https://api.example.com/graphql?tenant=[a]*", "gqlpager:probe:https%3A%2F%2Fapi.example.com%2Fgraphql%3Ftenant%3D%5Ba%5D%2A"},
		{"trailing slash", "http://localhost:4000/", "gqlpager:probe:http%3A%2F%2Flocalhost%3A4000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CacheKey{Endpoint: tt.endpoint}.String()
			if got != tt.want {
				t.Errorf("CacheKey.String() = %v, want %v", got, tt.want)
			}
			if strings.Count(got, ":") != 2 {
				t.Errorf("endpoint segment of %q contains the separator", got)
			}
		})
	}
}

// A port must not be read as a root path of the host-only endpoint.
func TestCacheKey_PortIsNotRoot(t *testing.T) {
	withPort := CacheKey{Endpoint: "https://api.example.com:8443"}
	withRoot := CacheKey{Endpoint: "https://api.example.com", Root: []string{"8443"}}

	if withPort.String() == withRoot.String() {
		t.Errorf("port and root share key %q", withPort.String())
	}
}
