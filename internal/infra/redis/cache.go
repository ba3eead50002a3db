package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache provides type-safe caching operations. The main consumer is
// the permission cache in front of the users table.
type Cache[T any] struct {
	client    *Client
	keyPrefix string
	ttl       time.Duration
}

// NewCache creates a new type-safe cache.
func NewCache[T any](client *Client, prefix string, ttl time.Duration) (*Cache[T], error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if prefix == "" {
		return nil, errors.New("key prefix is required")
	}
	if ttl <= 0 {
		return nil, errors.New("TTL must be positive")
	}

	return &Cache[T]{
		client:    client,
		keyPrefix: prefix,
		ttl:       ttl,
	}, nil
}

// MustNewCache creates a new cache or panics on error.
// Use only in initialization code where failure is unrecoverable.
func MustNewCache[T any](client *Client, prefix string, ttl time.Duration) *Cache[T] {
	cache, err := NewCache[T](client, prefix, ttl)
	if err != nil {
		panic(fmt.Sprintf("failed to create cache: %v", err))
	}
	return cache
}

func (c *Cache[T]) buildKey(key string) string {
	return fmt.Sprintf("%s:%s", c.keyPrefix, key)
}

// Get retrieves a cached value by key.
// Returns ErrCacheMiss if the key does not exist.
func (c *Cache[T]) Get(ctx context.Context, key string) (*T, error) {
	if key == "" {
		return nil, errors.New("key is required")
	}

	data, err := c.client.client.Get(ctx, c.buildKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("cache get: %w", err)
	}

	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, fmt.Errorf("cache unmarshal: %w", err)
	}

	return &value, nil
}

// Set stores a value in the cache with the default TTL.
func (c *Cache[T]) Set(ctx context.Context, key string, value T) error {
	return c.SetWithTTL(ctx, key, value, c.ttl)
}

// SetWithTTL stores a value in the cache with a custom TTL.
func (c *Cache[T]) SetWithTTL(ctx context.Context, key string, value T, ttl time.Duration) error {
	if key == "" {
		return errors.New("key is required")
	}
	if ttl <= 0 {
		return errors.New("TTL must be positive")
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal: %w", err)
	}

	if err := c.client.client.Set(ctx, c.buildKey(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}

	return nil
}

// Delete removes a key from the cache.
func (c *Cache[T]) Delete(ctx context.Context, key string) error {
	if key == "" {
		return errors.New("key is required")
	}

	if err := c.client.client.Del(ctx, c.buildKey(key)).Err(); err != nil {
		return fmt.Errorf("cache delete: %w", err)
	}

	return nil
}

// DeletePattern removes all keys matching a pattern under the cache
// prefix. Used to drop a tenant's cached permissions in one sweep.
func (c *Cache[T]) DeletePattern(ctx context.Context, pattern string) error {
	if pattern == "" {
		return errors.New("pattern is required")
	}

	fullPattern := c.buildKey(pattern)

	var cursor uint64
	for {
		keys, nextCursor, err := c.client.client.Scan(ctx, cursor, fullPattern, 100).Result()
		if err != nil {
			return fmt.Errorf("cache scan: %w", err)
		}

		if len(keys) > 0 {
			if err := c.client.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("cache delete pattern: %w", err)
			}
		}

		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}

	return nil
}

// GetOrSet retrieves a value from cache, or calls the loader function
// and caches the result. On Redis errors it falls back to the loader;
// a dead cache must not take sign-in down with it.
func (c *Cache[T]) GetOrSet(ctx context.Context, key string, loader func(ctx context.Context) (*T, error)) (*T, error) {
	if key == "" {
		return nil, errors.New("key is required")
	}
	if loader == nil {
		return nil, errors.New("loader function is required")
	}

	value, err := c.Get(ctx, key)
	if err == nil {
		return value, nil
	}

	if !errors.Is(err, ErrCacheMiss) {
		c.client.logger.Warn("cache get failed, falling back to source",
			"key", key,
			"error", err,
		)
	}

	value, err = loader(ctx)
	if err != nil {
		return nil, err
	}

	if err := c.SetWithTTL(ctx, key, *value, c.ttl); err != nil {
		c.client.logger.Warn("cache set failed after load",
			"key", key,
			"error", err,
		)
	}

	return value, nil
}

// Invalidate removes a key from the cache (alias for Delete).
func (c *Cache[T]) Invalidate(ctx context.Context, key string) error {
	return c.Delete(ctx, key)
}

// TTL returns the default TTL for this cache.
func (c *Cache[T]) TTL() time.Duration {
	return c.ttl
}

// Prefix returns the key prefix for this cache.
func (c *Cache[T]) Prefix() string {
	return c.keyPrefix
}
