package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// ErrCacheMiss is returned when no usable report is stored for a key.
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry is returned when a stored entry cannot be decoded.
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// scanBatch is the COUNT hint for SCAN during Purge.
const scanBatch = 100

// Manager stores probe reports in Redis.
type Manager struct {
	redis  *redis.Client
	logger zerolog.Logger
}

// NewManager creates a probe report cache on redisClient.
func NewManager(redisClient *redis.Client) *Manager {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &Manager{
		redis:  redisClient,
		logger: log.With().Str("component", "probe-cache").Logger(),
	}
}

// Get returns the report stored for key.
//
// Missing, expired and outdated-format entries yield ErrCacheMiss; the latter two are
// removed. Undecodable entries yield ErrInvalidEntry.
func (m *Manager) Get(ctx context.Context, key CacheKey) (*CacheEntry, error) {
	redisKey := key.String()

	data, err := m.redis.Get(ctx, redisKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, m.miss(redisKey, "not_found")
	}
	if err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		CacheErrors.WithLabelValues("decode").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	switch {
	case !entry.IsCurrent():
		m.drop(ctx, redisKey)
		return nil, m.miss(redisKey, "outdated_format")
	case entry.IsExpired():
		m.drop(ctx, redisKey)
		return nil, m.miss(redisKey, "expired")
	}

	CacheHits.Inc()
	m.logger.Debug().
		Str("key", redisKey).
		Dur("age", entry.Age()).
		Dur("ttl", entry.TTL()).
		Msg("Probe report served from cache")

	return &entry, nil
}

func (m *Manager) miss(redisKey, reason string) error {
	CacheMisses.Inc()
	m.logger.Debug().Str("key", redisKey).Str("reason", reason).Msg("Probe cache miss")
	return ErrCacheMiss
}

func (m *Manager) drop(ctx context.Context, redisKey string) {
	if err := m.redis.Del(ctx, redisKey).Err(); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		m.logger.Warn().Err(err).Str("key", redisKey).Msg("Failed to drop stale probe report")
	}
}

// Set stores entry under key until entry.Expires. Entries that are already expired are
// not stored.
func (m *Manager) Set(ctx context.Context, key CacheKey, entry *CacheEntry) error {
	if entry == nil {
		return errors.New("cache entry cannot be nil")
	}

	ttl := entry.TTL()
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(entry)
	if err != nil {
		CacheErrors.WithLabelValues("encode").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	redisKey := key.String()
	if err := m.redis.Set(ctx, redisKey, data, ttl).Err(); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	m.logger.Debug().
		Str("key", redisKey).
		Dur("ttl", ttl).
		Msg("Probe report cached")

	return nil
}

// Delete removes the report stored for key.
func (m *Manager) Delete(ctx context.Context, key CacheKey) error {
	if err := m.redis.Del(ctx, key.String()).Err(); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Purge removes every report stored for endpoint, whatever its root entity, and returns
// the number of reports removed.
func (m *Manager) Purge(ctx context.Context, endpoint string) (int, error) {
	base := CacheKey{Endpoint: endpoint}.String()
	keys := []string{base}

	iter := m.redis.Scan(ctx, 0, base+":*", scanBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		CacheErrors.WithLabelValues("scan").Inc()
		return 0, fmt.Errorf("redis scan: %w", err)
	}

	removed, err := m.redis.Del(ctx, keys...).Result()
	if err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return 0, fmt.Errorf("redis del: %w", err)
	}

	m.logger.Info().
		Str("endpoint", endpoint).
		Int64("removed", removed).
		Msg("Purged probe reports")

	return int(removed), nil
}
