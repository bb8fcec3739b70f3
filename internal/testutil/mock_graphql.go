// Package testutil provides testing utilities for the GraphQL pager.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MockResponse defines a canned response for one request.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// RecordedRequest is a request received by the mock server.
type RecordedRequest struct {
	Query     string
	Variables map[string]any
	Header    http.Header
}

// MockGraphQL is a GraphQL server for testing paged fetches.
//
// It serves data.clients[0].clientProfiles[0].engagements over both skip/take and
// first/after arguments. Cursors have the form "c<n>" where n is the number of items
// up to and including the edge.
type MockGraphQL struct {
	server *httptest.Server
	mu     sync.RWMutex

	items         []any
	rootFields    map[string]any
	profileFields map[string]any
	emptyRoot     bool
	noOffset      bool
	noCursor      bool
	omitTotal     bool
	token         string
	responses     map[int]MockResponse
	gqlErrors     map[int][]string

	requests []RecordedRequest
}

// NewMockGraphQL creates a mock server serving items.
func NewMockGraphQL(items ...any) *MockGraphQL {
	mock := &MockGraphQL{
		items: items,
		rootFields: map[string]any{
			"clientId":         "0008005369",
			"clientName":       "Test Client",
			"clientFiscalYear": "2025",
			"parentClientId":   "0008000000",
		},
		profileFields: map[string]any{
			"clientProfileId": 42,
			"clientAuditYear": "2025",
		},
		responses: make(map[int]MockResponse),
		gqlErrors: make(map[int][]string),
	}
	mock.server = httptest.NewServer(http.HandlerFunc(mock.handle))
	return mock
}

// URL returns the mock server URL.
func (m *MockGraphQL) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockGraphQL) Close() {
	m.server.Close()
}

// SetItems replaces the served collection.
func (m *MockGraphQL) SetItems(items ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = items
}

// SetEmptyRoot makes the root lookup match no entity.
func (m *MockGraphQL) SetEmptyRoot(empty bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emptyRoot = empty
}

// SetSupport toggles which pagination arguments the server accepts.
func (m *MockGraphQL) SetSupport(offset, cursor bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.noOffset = !offset
	m.noCursor = !cursor
}

// OmitTotalCount stops the server from reporting totalCount.
func (m *MockGraphQL) OmitTotalCount() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.omitTotal = true
}

// RequireToken makes the server answer 401 unless the bearer token matches.
func (m *MockGraphQL) RequireToken(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
}

// SetResponse replaces the response of the n-th request (1-based).
func (m *MockGraphQL) SetResponse(n int, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[n] = resp
}

// SetGraphQLErrors makes the n-th request (1-based) answer 200 with an errors array.
func (m *MockGraphQL) SetGraphQLErrors(n int, messages ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gqlErrors[n] = messages
}

// Requests returns the requests received so far.
func (m *MockGraphQL) Requests() []RecordedRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]RecordedRequest(nil), m.requests...)
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockGraphQL) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.requests)
}

// Reset clears the recorded requests.
func (m *MockGraphQL) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
}

func (m *MockGraphQL) handle(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Query     string         `json:"query"`
		Variables map[string]any `json:"variables"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	m.mu.Lock()
	m.requests = append(m.requests, RecordedRequest{
		Query:     body.Query,
		Variables: body.Variables,
		Header:    r.Header.Clone(),
	})
	n := len(m.requests)
	canned, hasCanned := m.responses[n]
	gqlErrors := m.gqlErrors[n]
	token := m.token
	m.mu.Unlock()

	if hasCanned {
		if canned.Delay > 0 {
			time.Sleep(canned.Delay)
		}
		for key, value := range canned.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(canned.StatusCode)
		if canned.Body != "" {
			w.Write([]byte(canned.Body))
		}
		return
	}

	if token != "" && r.Header.Get("Authorization") != "Bearer "+token {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if len(gqlErrors) > 0 {
		writeErrors(w, gqlErrors...)
		return
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var paged any
	switch {
	case has(body.Variables, "skip") || has(body.Variables, "take"):
		if m.noOffset {
			writeErrors(w, `Unknown argument "skip" on field "engagements".`)
			return
		}
		paged = m.offsetPage(intVar(body.Variables, "skip"), intVar(body.Variables, "take"))
	case has(body.Variables, "first"):
		if m.noCursor {
			writeErrors(w, `Unknown argument "first" on field "engagements".`)
			return
		}
		after, _ := body.Variables["after"].(string)
		page, err := m.cursorPage(intVar(body.Variables, "first"), after)
		if err != nil {
			writeErrors(w, err.Error())
			return
		}
		paged = page
	default:
		paged = m.items
	}

	writeJSON(w, map[string]any{"data": m.data(paged)})
}

// data builds the response data object around the paged field.
func (m *MockGraphQL) data(paged any) map[string]any {
	if m.emptyRoot {
		return map[string]any{"clients": []any{}}
	}

	profile := make(map[string]any, len(m.profileFields)+1)
	for k, v := range m.profileFields {
		profile[k] = v
	}
	profile["engagements"] = paged

	client := make(map[string]any, len(m.rootFields)+1)
	for k, v := range m.rootFields {
		client[k] = v
	}
	client["clientProfiles"] = []any{profile}

	return map[string]any{"clients": []any{client}}
}

func (m *MockGraphQL) offsetPage(skip, take int) []any {
	if skip >= len(m.items) || take <= 0 {
		return []any{}
	}
	end := min(skip+take, len(m.items))
	return m.items[skip:end]
}

func (m *MockGraphQL) cursorPage(first int, after string) (map[string]any, error) {
	start := 0
	if after != "" {
		n, err := strconv.Atoi(strings.TrimPrefix(after, "c"))
		if err != nil || !strings.HasPrefix(after, "c") || n < 0 || n > len(m.items) {
			return nil, fmt.Errorf("invalid cursor %q", after)
		}
		start = n
	}
	end := min(start+first, len(m.items))

	edges := make([]any, 0, end-start)
	for i := start; i < end; i++ {
		edges = append(edges, map[string]any{
			"node":   m.items[i],
			"cursor": Cursor(i + 1),
		})
	}

	var endCursor any
	if end > start {
		endCursor = Cursor(end)
	}

	conn := map[string]any{
		"edges": edges,
		"pageInfo": map[string]any{
			"hasNextPage": end < len(m.items),
			"endCursor":   endCursor,
		},
	}
	if !m.omitTotal {
		conn["totalCount"] = len(m.items)
	}
	return conn, nil
}

// Cursor returns the mock cursor for the n-th item (1-based).
func Cursor(n int) string {
	return fmt.Sprintf("c%d", n)
}

func has(vars map[string]any, key string) bool {
	_, ok := vars[key]
	return ok
}

func intVar(vars map[string]any, key string) int {
	switch v := vars[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

func writeErrors(w http.ResponseWriter, messages ...string) {
	errs := make([]map[string]any, 0, len(messages))
	for _, msg := range messages {
		errs = append(errs, map[string]any{"message": msg})
	}
	writeJSON(w, map[string]any{"data": nil, "errors": errs})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(v)
}
