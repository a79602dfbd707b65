package resolver

import (
	"context"
	"time"
)

// FetchFunc performs the real lookup on a cache miss.
type FetchFunc func(ctx context.Context) ([]string, error)

// Cache stores resolved addresses by host name. Implementations must be safe
// for concurrent use and should run at most one FetchFunc per key at a time.
type Cache interface {
	// GetOrFetch returns the cached addresses for key, or runs fetchFn, stores
	// its result for ttl, and returns it.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout control
	//   - key: The normalized host name
	//   - ttl: How long a fetched result stays valid
	//   - fetchFn: Lookup to run on a miss
	//
	// Returns:
	//   - The addresses
	//   - An error if the lookup or the cache backend fails
	GetOrFetch(ctx context.Context, key string, ttl time.Duration, fetchFn FetchFunc) ([]string, error)

	// Delete removes one host from the cache.
	Delete(ctx context.Context, key string) error

	// Clear removes every cached host.
	Clear(ctx context.Context) error

	// ItemCount returns the number of cached hosts.
	ItemCount(ctx context.Context) (int, error)
}
