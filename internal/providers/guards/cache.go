package guards

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/chainsignal/chainsignal/internal/model"
)

// Cache is a TTL-based response cache for one provider's GetPrice
// results, keyed by the caller's key (the price engine uses
// "provider:chain:address"). When a redis.Client is supplied it
// is the backing store (shared across process restarts and multiple
// chainsignal instances); otherwise Cache falls back to an in-process
// sync.RWMutex-backed map, which is what every provider gets when no
// redis_addr is configured.
type Cache struct {
	ttl time.Duration

	redis *redis.Client

	mu      sync.RWMutex
	entries map[string]memEntry
}

type memEntry struct {
	value     *model.PriceData
	timestamp time.Time
}

// NewCache builds a cache with the given TTL, backed by client when
// non-nil.
func NewCache(ttl time.Duration, client *redis.Client) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{
		ttl:     ttl,
		redis:   client,
		entries: make(map[string]memEntry),
	}
}

// Get returns the cached PriceData for key if present and unexpired.
func (c *Cache) Get(ctx context.Context, key string) (*model.PriceData, bool) {
	if c.redis != nil {
		raw, err := c.redis.Get(ctx, key).Bytes()
		if err != nil {
			if err != redis.Nil {
				log.Debug().Err(err).Str("key", key).Msg("redis cache get failed, treating as miss")
			}
			return nil, false
		}
		var pd model.PriceData
		if err := json.Unmarshal(raw, &pd); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("redis cache entry corrupt, treating as miss")
			return nil, false
		}
		return &pd, true
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || time.Since(e.timestamp) > c.ttl {
		return nil, false
	}
	return e.value, true
}

// Set stores value under key with this cache's configured TTL.
func (c *Cache) Set(ctx context.Context, key string, value *model.PriceData) {
	if c.redis != nil {
		raw, err := json.Marshal(value)
		if err != nil {
			log.Warn().Err(err).Str("key", key).Msg("failed to marshal price for redis cache")
			return
		}
		if err := c.redis.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			log.Debug().Err(err).Str("key", key).Msg("redis cache set failed")
		}
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = memEntry{value: value, timestamp: time.Now()}
}

// Size reports the number of entries currently stored by the in-memory
// fallback. Redis-backed caches return -1 since a key count would
// require a potentially expensive SCAN.
func (c *Cache) Size() int {
	if c.redis != nil {
		return -1
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
