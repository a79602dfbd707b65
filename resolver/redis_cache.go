package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// DefaultRedisPrefix namespaces resolver keys in a shared Redis database.
const DefaultRedisPrefix = "telnetnode:resolve:"

// RedisCache is a Cache stored in Redis so that several nodes share lookups.
// Values are JSON arrays of addresses. Concurrent misses inside one process
// are collapsed with singleflight; across processes a miss may be fetched
// more than once, which is harmless for address lookups.
type RedisCache struct {
	client *redis.Client
	prefix string
	group  singleflight.Group
}

// NewRedisCache wraps client. Keys are stored under prefix; an empty prefix
// selects DefaultRedisPrefix.
//
// Example:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	cache := NewRedisCache(client, "")
func NewRedisCache(client *redis.Client, prefix string) *RedisCache {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}

	return &RedisCache{client: client, prefix: prefix}
}

// GetOrFetch implements Cache.
func (c *RedisCache) GetOrFetch(ctx context.Context, key string, ttl time.Duration, fetchFn FetchFunc) ([]string, error) {
	addrs, found, err := c.get(ctx, key)
	if err != nil {
		return nil, err
	}
	if found {
		return addrs, nil
	}

	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		addrs, err := fetchFn(ctx)
		if err != nil {
			return nil, err
		}

		data, err := json.Marshal(addrs)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal addresses: %w", err)
		}

		if err := c.client.Set(ctx, c.prefix+key, data, ttl).Err(); err != nil {
			return nil, fmt.Errorf("failed to cache addresses: %w", err)
		}

		return addrs, nil
	})
	if err != nil {
		return nil, err
	}

	return clone(val.([]string)), nil
}

func (c *RedisCache) get(ctx context.Context, key string) ([]string, bool, error) {
	val, err := c.client.Get(ctx, c.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get error: %w", err)
	}

	var addrs []string
	if err := json.Unmarshal([]byte(val), &addrs); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal cached addresses: %w", err)
	}

	return addrs, true, nil
}

// Delete implements Cache.
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.prefix+key).Err(); err != nil {
		return fmt.Errorf("failed to delete key: %w", err)
	}

	return nil
}

// Clear implements Cache. Only keys under the cache prefix are removed.
func (c *RedisCache) Clear(ctx context.Context) error {
	keys, err := c.keys(ctx)
	if err != nil {
		return err
	}

	if len(keys) == 0 {
		return nil
	}

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete keys: %w", err)
	}

	return nil
}

// ItemCount implements Cache.
func (c *RedisCache) ItemCount(ctx context.Context) (int, error) {
	keys, err := c.keys(ctx)
	if err != nil {
		return 0, err
	}

	return len(keys), nil
}

func (c *RedisCache) keys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := c.client.Scan(ctx, 0, c.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}

	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan keys: %w", err)
	}

	return keys, nil
}
