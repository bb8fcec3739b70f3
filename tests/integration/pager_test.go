//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Sternrassler/graphql-pager/internal/testutil"
	"github.com/Sternrassler/graphql-pager/pkg/cache"
	"github.com/Sternrassler/graphql-pager/pkg/client"
	"github.com/Sternrassler/graphql-pager/pkg/logging"
	"github.com/Sternrassler/graphql-pager/pkg/metrics"
	"github.com/Sternrassler/graphql-pager/pkg/pagination"
	"github.com/Sternrassler/graphql-pager/pkg/probe"
)

const (
	endpoint = "https://graphql.example.com/graphql"

	offsetQuery = `query GetEngagements($clientId: String!, $skip: Int, $take: Int) {
  clients(where: {clientId: {eq: $clientId}}) {
    clientId
    clientProfiles { engagements(skip: $skip, take: $take) { engagementId } }
  }
}`

	cursorQuery = `query GetEngagements($clientId: String!, $first: Int, $after: String) {
  clients(where: {clientId: {eq: $clientId}}) {
    clientId
    clientProfiles {
      engagements(first: $first, after: $after) {
        edges { node { engagementId } cursor }
        pageInfo { hasNextPage endCursor }
        totalCount
      }
    }
  }
}`
)

var locator = pagination.Locator{
	Root:       []string{"clients"},
	Connection: []string{"clientProfiles", "engagements"},
}

// setupRedis creates a Redis container for integration testing.
func setupRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	cleanup := func() {
		redisClient.Close()
		container.Terminate(ctx)
	}

	return redisClient, cleanup
}

// testTransport redirects requests for the public endpoint to the mock server.
type testTransport struct {
	mockServer *testutil.MockGraphQL
}

func (t *testTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.URL.Scheme = "http"
	if req.URL.Host == "graphql.example.com" {
		req.URL.Host = strings.TrimPrefix(t.mockServer.URL(), "http://")
	}
	return http.DefaultTransport.RoundTrip(req)
}

func engagementItems(n int) []any {
	out := make([]any, n)
	for i := range out {
		out[i] = map[string]any{"engagementId": "E" + string(rune('A'+i))}
	}
	return out
}

func newClient(t *testing.T, mock *testutil.MockGraphQL) *client.Client {
	t.Helper()
	c, err := client.New(client.DefaultConfig(endpoint, "integration-token"))
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	c.SetHTTPClient(&http.Client{
		Transport: &testTransport{mockServer: mock},
		Timeout:   30 * time.Second,
	})
	return c
}

func target() probe.Target {
	return probe.Target{
		Endpoint:    endpoint,
		OffsetQuery: offsetQuery,
		CursorQuery: cursorQuery,
		Variables:   map[string]any{"clientId": "0008005369"},
		PageSize:    5,
		Locator:     locator,
	}
}

// TestProbeThenFetch runs the full flow: probe (cache miss) → FetchAll with the
// recommended strategy → envelope.
func TestProbeThenFetch(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockGraphQL(engagementItems(12)...)
	defer mock.Close()
	mock.RequireToken("integration-token")

	c := newClient(t, mock)
	prober := probe.New(c, probe.WithCache(cache.NewManager(redisClient), time.Hour))
	ctx := context.Background()

	report, err := prober.Run(ctx, target())
	if err != nil {
		t.Fatalf("Probe failed: %v", err)
	}
	kind, ok := report.Recommendation()
	if !ok || kind != pagination.KindCursor {
		t.Fatalf("Recommendation = %q, %v; want cursor", kind, ok)
	}
	if report.Cursor.TotalCount == nil || *report.Cursor.TotalCount != 12 {
		t.Errorf("Cursor total = %v, want 12", report.Cursor.TotalCount)
	}

	mock.Reset()

	strategy, _ := pagination.NewStrategy(kind)
	req := pagination.Request{
		Query:     cursorQuery,
		Variables: map[string]any{"clientId": "0008005369"},
		PageSize:  5,
		Locator:   locator,
	}
	result, err := pagination.FetchAll[json.RawMessage](ctx, c, req, strategy,
		pagination.WithObserver(logging.NewPageLogger("integration"), metrics.NewPageObserver()))
	if err != nil {
		t.Fatalf("FetchAll failed: %v", err)
	}

	if len(result.Items) != 12 {
		t.Errorf("Items = %d, want 12", len(result.Items))
	}
	if result.Requests != 3 || mock.GetRequestCount() != 3 {
		t.Errorf("Requests = %d (server saw %d), want 3", result.Requests, mock.GetRequestCount())
	}

	envelope, err := result.Envelope()
	if err != nil {
		t.Fatalf("Envelope failed: %v", err)
	}
	var decoded struct {
		Data struct {
			Clients []struct {
				ClientProfiles []struct {
					Engagements []map[string]any `json:"engagements"`
				} `json:"clientProfiles"`
			} `json:"clients"`
		} `json:"data"`
	}
	if err := json.Unmarshal(envelope, &decoded); err != nil {
		t.Fatalf("Envelope is not JSON: %v", err)
	}
	if got := len(decoded.Data.Clients[0].ClientProfiles[0].Engagements); got != 12 {
		t.Errorf("Envelope engagements = %d, want 12", got)
	}
}

// TestProbeCacheHit tests that a cached report skips the probe requests.
func TestProbeCacheHit(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockGraphQL(engagementItems(3)...)
	defer mock.Close()

	prober := probe.New(newClient(t, mock), probe.WithCache(cache.NewManager(redisClient), time.Hour))
	ctx := context.Background()

	first, err := prober.Run(ctx, target())
	if err != nil {
		t.Fatalf("First probe failed: %v", err)
	}
	if mock.GetRequestCount() != 2 {
		t.Errorf("After first probe: requests = %d, want 2", mock.GetRequestCount())
	}

	second, err := prober.Run(ctx, target())
	if err != nil {
		t.Fatalf("Second probe failed: %v", err)
	}
	if mock.GetRequestCount() != 2 {
		t.Errorf("After second probe: requests = %d, want 2 (cached)", mock.GetRequestCount())
	}
	if !second.Cached {
		t.Error("Second report should come from the cache")
	}
	if diff := cmp.Diff(first.Cursor, second.Cursor); diff != "" {
		t.Errorf("Cached cursor report mismatch (-want +got):\n%s", diff)
	}

	key := cache.CacheKey{Endpoint: endpoint, Root: locator.Root, Variables: target().Variables}.String()
	ttl, err := redisClient.TTL(ctx, key).Result()
	if err != nil {
		t.Fatalf("TTL failed: %v", err)
	}
	if ttl <= 0 || ttl > time.Hour {
		t.Errorf("Redis TTL = %v, want within (0, 1h]", ttl)
	}
}

// TestProbeCacheExpiry tests that an expired report triggers a new probe.
func TestProbeCacheExpiry(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockGraphQL(engagementItems(3)...)
	defer mock.Close()

	prober := probe.New(newClient(t, mock), probe.WithCache(cache.NewManager(redisClient), time.Second))
	ctx := context.Background()

	if _, err := prober.Run(ctx, target()); err != nil {
		t.Fatalf("First probe failed: %v", err)
	}

	time.Sleep(1500 * time.Millisecond)

	report, err := prober.Run(ctx, target())
	if err != nil {
		t.Fatalf("Second probe failed: %v", err)
	}
	if report.Cached {
		t.Error("Expired report should not be served")
	}
	if mock.GetRequestCount() != 4 {
		t.Errorf("Requests = %d, want 4 (probed twice)", mock.GetRequestCount())
	}
}

// TestUnsupportedNotCached tests that failed probes are retried on the next run.
func TestUnsupportedNotCached(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockGraphQL()
	defer mock.Close()
	mock.SetEmptyRoot(true)

	prober := probe.New(newClient(t, mock), probe.WithCache(cache.NewManager(redisClient), time.Hour))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		report, err := prober.Run(ctx, target())
		if err != nil {
			t.Fatalf("Probe %d failed: %v", i+1, err)
		}
		if _, ok := report.Recommendation(); ok {
			t.Errorf("Probe %d: empty root should not be supported", i+1)
		}
	}
	if mock.GetRequestCount() != 4 {
		t.Errorf("Requests = %d, want 4", mock.GetRequestCount())
	}

	keys, err := redisClient.Keys(ctx, "gqlpager:probe:*").Result()
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("Cached keys = %v, want none", keys)
	}
}
