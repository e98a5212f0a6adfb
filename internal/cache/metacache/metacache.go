// Package metacache provides an optional Redis-backed TTL cache of
// store.FileMeta lookups, keyed by file id. Metadata rows are immutable
// once upload_complete flips, so entries are never invalidated on write;
// they simply expire, and a GC pass that marks a file unavailable will
// naturally be reflected once the cached entry times out.
package metacache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/skystar-p/hako/internal/store"
)

const (
	keyPrefix  = "hako:meta:"
	defaultTTL = 5 * time.Minute
)

// Cache is an optional read-through cache in front of store.Store.GetMetadata.
// A nil *Cache is valid and every method becomes a pass-through miss, so
// callers need not special-case a disabled redis_addr.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// New connects to addr and verifies it is reachable. Returns nil, nil if
// addr is empty, signaling the caller to run without a cache.
func New(ctx context.Context, addr string, ttl time.Duration, logger zerolog.Logger) (*Cache, error) {
	if addr == "" {
		return nil, nil
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("metacache: ping redis: %w", err)
	}

	return &Cache{
		client: client,
		ttl:    ttl,
		logger: logger.With().Str("component", "metacache").Logger(),
	}, nil
}

// Close releases the underlying Redis connection. Safe to call on a nil
// Cache.
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}

// Get returns the cached metadata for id, or ok=false on a cache miss or
// when caching is disabled. Errors talking to Redis are logged and treated
// as a miss: the cache is an optimization, never a dependency for
// correctness.
func (c *Cache) Get(ctx context.Context, id int64) (meta *store.FileMeta, ok bool) {
	if c == nil {
		return nil, false
	}

	data, err := c.client.Get(ctx, cacheKey(id)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn().Err(err).Int64("id", id).Msg("cache get failed")
		}
		return nil, false
	}

	var m store.FileMeta
	if err := json.Unmarshal(data, &m); err != nil {
		c.logger.Warn().Err(err).Int64("id", id).Msg("cache entry unmarshal failed")
		return nil, false
	}
	return &m, true
}

// Set stores meta for id. Safe to call on a nil Cache.
func (c *Cache) Set(ctx context.Context, id int64, meta *store.FileMeta) {
	if c == nil {
		return
	}

	data, err := json.Marshal(meta)
	if err != nil {
		c.logger.Warn().Err(err).Int64("id", id).Msg("cache entry marshal failed")
		return
	}
	if err := c.client.Set(ctx, cacheKey(id), data, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Int64("id", id).Msg("cache set failed")
	}
}

func cacheKey(id int64) string {
	return fmt.Sprintf("%s%d", keyPrefix, id)
}
