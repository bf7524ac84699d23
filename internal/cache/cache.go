// Package cache provides a small Redis-backed read-through cache for option
// lists (customers, trainers, stores) that many screens request repeatedly.
//
// It replaces ambient module-level caching with an injectable collaborator
// that has a defined lifecycle: a TTL per entry, single-flight de-duplication
// of concurrent refreshes, and explicit invalidation on writes.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// Cache is a read-through JSON cache on top of Redis.
type Cache struct {
	rdb    *redis.Client
	ttl    time.Duration
	flight singleflight.Group
}

// New creates a cache with the given entry TTL.
func New(rdb *redis.Client, ttl time.Duration) *Cache {
	return &Cache{rdb: rdb, ttl: ttl}
}

// Loader produces the fresh value for a cache key on a miss.
type Loader func(ctx context.Context) (any, error)

// Fetch reads the JSON value stored under key into dest. On a miss it calls
// load exactly once even under concurrent misses for the same key, stores the
// marshaled result with the cache TTL, and fills dest from it.
//
// Redis being unreachable degrades to calling load directly -- the cache is
// an optimization, never a point of failure.
func (c *Cache) Fetch(ctx context.Context, key string, dest any, load Loader) error {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err == nil {
		return json.Unmarshal(raw, dest)
	}
	if !errors.Is(err, redis.Nil) {
		// Redis down: serve directly from the loader.
		value, loadErr := load(ctx)
		if loadErr != nil {
			return loadErr
		}
		return reencode(value, dest)
	}

	result, err, _ := c.flight.Do(key, func() (any, error) {
		value, err := load(ctx)
		if err != nil {
			return nil, err
		}

		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("marshaling cache value for %q: %w", key, err)
		}

		// Best effort: a failed SET means the next read misses again.
		c.rdb.Set(ctx, key, encoded, c.ttl)

		return encoded, nil
	})
	if err != nil {
		return err
	}

	return json.Unmarshal(result.([]byte), dest)
}

// Invalidate removes the given keys so the next Fetch reloads them. Called
// after writes that change an option list (e.g. customer created).
func (c *Cache) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("invalidating cache keys: %w", err)
	}
	return nil
}

// reencode copies value into dest through JSON, matching the shape a cache
// hit would produce.
func reencode(value, dest any) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshaling loader value: %w", err)
	}
	return json.Unmarshal(encoded, dest)
}
