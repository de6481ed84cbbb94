// SPDX-License-Identifier: BSL-1.1

package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Default TTLs for different types of data
const (
	TTLResource     = 5 * time.Minute // Resources change infrequently
	TTLBusinessHour = 5 * time.Minute // Business hours change infrequently
	TTLSchedule     = 30 * time.Second
	TTLNextSlot     = 30 * time.Second
)

// InvalidatePattern deletes all keys matching a pattern (only works with RedisCache)
// This is useful for invalidating multiple related cache entries
func InvalidatePattern(ctx context.Context, c Cache, pattern string) error {
	// Only RedisCache supports pattern-based deletion
	if rc, ok := c.(*RedisCache); ok {
		iter := rc.client.Scan(ctx, 0, pattern, 0).Iterator()
		keys := []string{}

		for iter.Next(ctx) {
			keys = append(keys, iter.Val())
		}

		if err := iter.Err(); err != nil {
			return err
		}

		if len(keys) > 0 {
			return rc.client.Del(ctx, keys...).Err()
		}
	}

	return nil
}

// GetWithFallback tries to get a value from cache, and if not found or cache is disabled,
// calls the fallback function
func GetWithFallback[T any](ctx context.Context, c Cache, key string, ttl time.Duration, fallbackFn func() (T, error)) (T, error) {
	var result T

	// If cache is disabled, skip directly to fallback
	if !c.IsEnabled() {
		return fallbackFn()
	}

	// Try to get from cache
	err := c.Get(ctx, key, &result)
	if err == nil {
		return result, nil // Cache hit
	}

	// If it's not a cache miss, log but continue
	if err != redis.Nil {
		// Could log here
	}

	// Cache miss - fetch from source
	result, err = fallbackFn()
	if err != nil {
		return result, err
	}

	// Store in cache (ignore errors)
	_ = c.Set(ctx, key, result, ttl)

	return result, nil
}
