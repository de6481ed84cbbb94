// SPDX-License-Identifier: BSL-1.1

package cache

import (
	"context"
	"encoding/json"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// Cache defines the interface for caching operations
type Cache interface {
	// Get retrieves a value from cache and unmarshals it into dest
	Get(ctx context.Context, key string, dest interface{}) error

	// Set stores a value in cache with the given TTL
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// Delete removes a value from cache
	Delete(ctx context.Context, keys ...string) error

	// Exists checks if a key exists in cache
	Exists(ctx context.Context, key string) (bool, error)

	// IsEnabled returns true if caching is enabled
	IsEnabled() bool
}

// RedisCache implements Cache using Redis
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a new Redis-backed cache
func NewRedisCache(client *redis.Client) Cache {
	if client == nil {
		return &NoOpCache{}
	}
	return &RedisCache{client: client}
}

// Get retrieves a value from Redis and unmarshals it
func (c *RedisCache) Get(ctx context.Context, key string, dest interface{}) error {
	val, err := c.client.Get(ctx, key).Result()
	if err != nil {
		return err
	}

	return json.Unmarshal([]byte(val), dest)
}

// Set stores a value in Redis with the given TTL
func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	return c.client.Set(ctx, key, data, ttl).Err()
}

// Delete removes values from Redis
func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

// Exists checks if a key exists in Redis
func (c *RedisCache) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Exists(ctx, key).Result()
	return n > 0, err
}

// IsEnabled returns true for RedisCache
func (c *RedisCache) IsEnabled() bool {
	return true
}

// NoOpCache is a cache that does nothing (when Redis is not available)
type NoOpCache struct{}

// Get always returns an error indicating cache miss
func (c *NoOpCache) Get(ctx context.Context, key string, dest interface{}) error {
	return redis.Nil // Return cache miss error
}

// Set does nothing
func (c *NoOpCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return nil
}

// Delete does nothing
func (c *NoOpCache) Delete(ctx context.Context, keys ...string) error {
	return nil
}

// Exists always returns false
func (c *NoOpCache) Exists(ctx context.Context, key string) (bool, error) {
	return false, nil
}

// IsEnabled returns false for NoOpCache
func (c *NoOpCache) IsEnabled() bool {
	return false
}

// MemoryCache is a process-local L1 cache backed by go-cache, used as
// the first tier of Tiered. It returns an error from Set only when
// the value cannot be marshalled to JSON; a full process restart
// simply drops it, which is fine for a cache.
type MemoryCache struct {
	store *gocache.Cache
}

// NewMemoryCache creates an L1 cache with the given default TTL and
// cleanup interval.
func NewMemoryCache(defaultTTL, cleanupInterval time.Duration) *MemoryCache {
	return &MemoryCache{store: gocache.New(defaultTTL, cleanupInterval)}
}

// Get retrieves and unmarshals a cached value. A miss returns
// redis.Nil, matching RedisCache/NoOpCache so callers can branch on a
// single sentinel regardless of which tier served the lookup.
func (c *MemoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := c.store.Get(key)
	if !ok {
		return redis.Nil
	}
	data, ok := raw.([]byte)
	if !ok {
		return redis.Nil
	}
	return json.Unmarshal(data, dest)
}

// Set stores a value with the given TTL (0 uses the cache's default).
func (c *MemoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		c.store.SetDefault(key, data)
	} else {
		c.store.Set(key, data, ttl)
	}
	return nil
}

// Delete removes keys from the L1 cache.
func (c *MemoryCache) Delete(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		c.store.Delete(k)
	}
	return nil
}

// Exists checks L1 presence.
func (c *MemoryCache) Exists(ctx context.Context, key string) (bool, error) {
	_, ok := c.store.Get(key)
	return ok, nil
}

// IsEnabled is always true; MemoryCache has no "disabled" state.
func (c *MemoryCache) IsEnabled() bool {
	return true
}

// Tiered composes an L1 MemoryCache in front of an L2 Cache (typically
// Redis or NoOp). Reads check L1 first, then L2 on miss, populating L1
// from the L2 hit. Writes and deletes go to both tiers.
type Tiered struct {
	l1 *MemoryCache
	l2 Cache
}

// NewTiered builds a two-level cache. l2 may be a NoOpCache; L1 still
// applies in that case.
func NewTiered(l1 *MemoryCache, l2 Cache) Cache {
	return &Tiered{l1: l1, l2: l2}
}

func (t *Tiered) Get(ctx context.Context, key string, dest interface{}) error {
	if err := t.l1.Get(ctx, key, dest); err == nil {
		return nil
	}
	raw := json.RawMessage{}
	if err := t.l2.Get(ctx, key, &raw); err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return err
	}
	_ = t.l1.Set(ctx, key, dest, 0)
	return nil
}

func (t *Tiered) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	_ = t.l1.Set(ctx, key, value, ttl)
	return t.l2.Set(ctx, key, value, ttl)
}

func (t *Tiered) Delete(ctx context.Context, keys ...string) error {
	_ = t.l1.Delete(ctx, keys...)
	return t.l2.Delete(ctx, keys...)
}

func (t *Tiered) Exists(ctx context.Context, key string) (bool, error) {
	if ok, _ := t.l1.Exists(ctx, key); ok {
		return true, nil
	}
	return t.l2.Exists(ctx, key)
}

func (t *Tiered) IsEnabled() bool {
	return true
}
