// Package resolver turns host names into dialable addresses, caching the
// answers so that repeated connects to the same peer skip the lookup.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// DefaultTTL is how long a lookup result is reused.
const DefaultTTL = 5 * time.Minute

// ErrNoAddresses is returned when a lookup succeeds but yields nothing.
var ErrNoAddresses = errors.New("resolver: no addresses found")

// LookupFunc resolves a host name to IP address strings.
type LookupFunc func(ctx context.Context, host string) ([]string, error)

// Resolver resolves host names through a Cache.
type Resolver struct {
	cache  Cache
	lookup LookupFunc
	ttl    time.Duration
}

// New creates a Resolver.
//
// Parameters:
//   - cache: Where results are kept; nil selects a private MemoryCache
//   - lookup: The real lookup; nil selects net.DefaultResolver.LookupHost
//   - ttl: Lifetime of a cached result; 0 or less selects DefaultTTL
//
// Returns:
//   - A new Resolver
func New(cache Cache, lookup LookupFunc, ttl time.Duration) *Resolver {
	if cache == nil {
		cache = NewMemoryCache(time.Minute)
	}

	if lookup == nil {
		lookup = net.DefaultResolver.LookupHost
	}

	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &Resolver{cache: cache, lookup: lookup, ttl: ttl}
}

// Resolve returns the IP addresses for host. IP literals are returned as is
// without touching the cache. Host names are matched case-insensitively.
//
// Parameters:
//   - ctx: Context for cancellation and timeout control
//   - host: Host name or IP literal
//
// Returns:
//   - One or more IP address strings
//   - An error if the lookup fails or returns no addresses
func (r *Resolver) Resolve(ctx context.Context, host string) ([]string, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		return nil, fmt.Errorf("resolver: empty host")
	}

	if ip := net.ParseIP(host); ip != nil {
		return []string{ip.String()}, nil
	}

	key := strings.ToLower(host)
	addrs, err := r.cache.GetOrFetch(ctx, key, r.ttl, func(ctx context.Context) ([]string, error) {
		addrs, err := r.lookup(ctx, key)
		if err != nil {
			return nil, err
		}

		if len(addrs) == 0 {
			return nil, ErrNoAddresses
		}

		return addrs, nil
	})
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", host, err)
	}

	return addrs, nil
}

// DialAddresses resolves host and pairs every address with port, ready for
// net.Dial.
//
// Parameters:
//   - ctx: Context for cancellation and timeout control
//   - host: Host name or IP literal
//   - port: TCP port
//
// Returns:
//   - "ip:port" strings in lookup order
//   - An error if resolution fails
func (r *Resolver) DialAddresses(ctx context.Context, host string, port int) ([]string, error) {
	addrs, err := r.Resolve(ctx, host)
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(addrs))
	for _, addr := range addrs {
		out = append(out, net.JoinHostPort(addr, strconv.Itoa(port)))
	}

	return out, nil
}

// Forget drops any cached result for host.
func (r *Resolver) Forget(ctx context.Context, host string) error {
	return r.cache.Delete(ctx, strings.ToLower(strings.TrimSpace(host)))
}
