// Package cache stores GraphQL pagination probe reports in Redis.
//
// Probing an endpoint costs one request per strategy, and an endpoint's pagination
// support rarely changes, so reports are kept for a configurable TTL:
//
// - Deterministic keys from endpoint, root path and root variables
// - TTL managed by Redis (entries vanish when they expire)
// - Expired entries are treated as misses even if Redis still returns them
// - Prometheus metrics for observability
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	manager := cache.NewManager(redisClient)
//
//	key := cache.CacheKey{
//		Endpoint:  "https://api.example.com/graphql",
//		Root:      []string{"clients"},
//		Variables: map[string]any{"clientId": "0008005369"},
//	}
//
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// Probe the endpoint, then store the report
//		err = manager.Set(ctx, key, cache.NewEntry(reportJSON, time.Hour))
//	}
//
// # Metrics
//
// The cache manager exports Prometheus metrics:
//
//   - graphql_probe_cache_hits_total - Reports served from Redis
//   - graphql_probe_cache_misses_total - Reports not cached or expired
//   - graphql_probe_cache_errors_total{operation} - Redis or encoding failures
package cache
