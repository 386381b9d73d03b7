// Package cache provides the query cache used by catalog reads.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrMiss is returned by Get when the key is absent or expired
var ErrMiss = errors.New("cache miss")

// Cache stores opaque values under string keys with a per-entry TTL
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

// Noop never stores anything; every Get is a miss
type Noop struct{}

func (Noop) Get(context.Context, string) ([]byte, error) { return nil, ErrMiss }
func (Noop) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (Noop) Delete(context.Context, string) error { return nil }
func (Noop) Clear(context.Context) error { return nil }

// Redis is a Cache backed by a Redis server. All keys are namespaced by prefix.
type Redis struct {
	client redis.UniversalClient
	prefix string
}

// NewRedis creates a Redis cache using the given client and key prefix
func NewRedis(client redis.UniversalClient, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix}
}

func (c *Redis) key(key string) string {
	return c.prefix + ":" + key
}

func (c *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache key %q: %w", key, err)
	}
	return value, nil
}

func (c *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write cache key %q: %w", key, err)
	}
	return nil
}

func (c *Redis) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.key(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete cache key %q: %w", key, err)
	}
	return nil
}

// Clear removes every key under the prefix. It scans instead of FLUSHDB so other tenants of the
// database keep their keys.
func (c *Redis) Clear(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, c.prefix+":*", 100).Iterator()

	batch := make([]string, 0, 100)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			if err := c.client.Del(ctx, batch...).Err(); err != nil {
				return fmt.Errorf("failed to clear cache: %w", err)
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan cache keys: %w", err)
	}

	if len(batch) > 0 {
		if err := c.client.Del(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("failed to clear cache: %w", err)
		}
	}
	return nil
}

// Fetch returns the cached JSON value for key, or calls load and caches its result.
// Cache failures never fail the caller: a read error is treated as a miss and a write error is logged.
func Fetch[T any](ctx context.Context, c Cache, logger *zap.Logger, key string, ttl time.Duration, load func(ctx context.Context) (T, error)) (T, error) {
	if raw, err := c.Get(ctx, key); err == nil {
		var value T
		if err := json.Unmarshal(raw, &value); err == nil {
			return value, nil
		}
		logger.Warn("Discarding undecodable cache entry", zap.String("key", key))
	} else if !errors.Is(err, ErrMiss) {
		logger.Warn("Cache read failed, loading from source", zap.String("key", key), zap.Error(err))
	}

	value, err := load(ctx)
	if err != nil {
		return value, err
	}

	raw, err := json.Marshal(value)
	if err != nil {
		logger.Warn("Failed to encode cache entry", zap.String("key", key), zap.Error(err))
		return value, nil
	}

	if err := c.Set(ctx, key, raw, ttl); err != nil {
		logger.Warn("Cache write failed", zap.String("key", key), zap.Error(err))
	}

	return value, nil
}
