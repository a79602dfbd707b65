package resolver

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countingLookup(addrs []string, err error) (LookupFunc, *atomic.Int32) {
	var calls atomic.Int32
	return func(ctx context.Context, host string) ([]string, error) {
		calls.Add(1)
		return addrs, err
	}, &calls
}

func TestNew_Defaults(t *testing.T) {
	r := New(nil, nil, 0)
	require.NotNil(t, r)
	assert.NotNil(t, r.cache)
	assert.NotNil(t, r.lookup)
	assert.Equal(t, DefaultTTL, r.ttl)
}

func TestResolver_Resolve(t *testing.T) {
	ctx := context.Background()

	t.Run("ip literals bypass lookup", func(t *testing.T) {
		lookup, calls := countingLookup(nil, errors.New("must not be called"))
		r := New(nil, lookup, time.Minute)

		addrs, err := r.Resolve(ctx, "127.0.0.1")
		require.NoError(t, err)
		assert.Equal(t, []string{"127.0.0.1"}, addrs)

		addrs, err = r.Resolve(ctx, "::1")
		require.NoError(t, err)
		assert.Equal(t, []string{"::1"}, addrs)
		assert.Equal(t, int32(0), calls.Load())
	})

	t.Run("names are cached case-insensitively", func(t *testing.T) {
		lookup, calls := countingLookup([]string{"192.0.2.10"}, nil)
		r := New(nil, lookup, time.Minute)

		for _, host := range []string{"LOCALHOST", "localhost", " LocalHost "} {
			addrs, err := r.Resolve(ctx, host)
			require.NoError(t, err)
			assert.Equal(t, []string{"192.0.2.10"}, addrs)
		}
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("forget forces a new lookup", func(t *testing.T) {
		lookup, calls := countingLookup([]string{"192.0.2.11"}, nil)
		r := New(nil, lookup, time.Minute)

		_, err := r.Resolve(ctx, "peer")
		require.NoError(t, err)
		require.NoError(t, r.Forget(ctx, "PEER"))
		_, err = r.Resolve(ctx, "peer")
		require.NoError(t, err)
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("lookup errors are wrapped", func(t *testing.T) {
		boom := errors.New("no such host")
		lookup, _ := countingLookup(nil, boom)
		r := New(nil, lookup, time.Minute)

		_, err := r.Resolve(ctx, "nowhere.invalid")
		assert.ErrorIs(t, err, boom)
		assert.Contains(t, err.Error(), "nowhere.invalid")
	})

	t.Run("empty answers are an error", func(t *testing.T) {
		lookup, _ := countingLookup([]string{}, nil)
		r := New(nil, lookup, time.Minute)

		_, err := r.Resolve(ctx, "empty")
		assert.ErrorIs(t, err, ErrNoAddresses)
	})

	t.Run("empty host is rejected", func(t *testing.T) {
		r := New(nil, nil, time.Minute)
		_, err := r.Resolve(ctx, "  ")
		assert.Error(t, err)
	})
}

func TestResolver_DialAddresses(t *testing.T) {
	lookup, _ := countingLookup([]string{"192.0.2.1", "2001:db8::1"}, nil)
	r := New(nil, lookup, time.Minute)

	addrs, err := r.DialAddresses(context.Background(), "dual", 23)
	require.NoError(t, err)
	assert.Equal(t, []string{"192.0.2.1:23", "[2001:db8::1]:23"}, addrs)
}
