package resolver

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

// MemoryCache is an in-process Cache built on go-cache. A singleflight group
// collapses concurrent misses for the same host into one lookup.
type MemoryCache struct {
	cache *cache.Cache
	group singleflight.Group
}

// NewMemoryCache creates an empty MemoryCache.
//
// Parameters:
//   - cleanupInterval: How often expired entries are purged
//
// Returns:
//   - A new MemoryCache
func NewMemoryCache(cleanupInterval time.Duration) *MemoryCache {
	return &MemoryCache{
		cache: cache.New(cache.NoExpiration, cleanupInterval),
	}
}

// GetOrFetch implements Cache.
func (c *MemoryCache) GetOrFetch(ctx context.Context, key string, ttl time.Duration, fetchFn FetchFunc) ([]string, error) {
	if addrs, ok := c.lookup(key); ok {
		return addrs, nil
	}

	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		// Another caller may have filled the entry while we waited.
		if addrs, ok := c.lookup(key); ok {
			return addrs, nil
		}

		addrs, err := fetchFn(ctx)
		if err != nil {
			return nil, err
		}

		c.cache.Set(key, addrs, ttl)
		return addrs, nil
	})
	if err != nil {
		return nil, err
	}

	return clone(val.([]string)), nil
}

func (c *MemoryCache) lookup(key string) ([]string, bool) {
	val, found := c.cache.Get(key)
	if !found {
		return nil, false
	}

	addrs, ok := val.([]string)
	if !ok {
		return nil, false
	}

	return clone(addrs), true
}

// Delete implements Cache.
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.cache.Delete(key)
	return nil
}

// Clear implements Cache.
func (c *MemoryCache) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.cache.Flush()
	return nil
}

// ItemCount implements Cache.
func (c *MemoryCache) ItemCount(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	return c.cache.ItemCount(), nil
}

func clone(addrs []string) []string {
	out := make([]string, len(addrs))
	copy(out, addrs)
	return out
}
