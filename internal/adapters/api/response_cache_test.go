package api_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrescamacho/marketscan-go/internal/adapters/api"
	"github.com/andrescamacho/marketscan-go/internal/domain/shared"
)

func newCache(t *testing.T, size int, clock shared.Clock) *api.ResponseCache {
	t.Helper()
	cache, err := api.NewResponseCache(api.CacheConfig{MaxEntries: size}, clock)
	require.NoError(t, err)
	return cache
}

func constFetch(v string, calls *atomic.Int32) api.FetchFunc {
	return func(context.Context) ([]byte, error) {
		calls.Add(1)
		return []byte(v), nil
	}
}

func TestResponseCache_StampedeProducesOneFetch(t *testing.T) {
	// Arrange
	cache := newCache(t, 16, shared.NewRealClock())
	release := make(chan struct{})
	var calls atomic.Int32
	fetch := func(context.Context) ([]byte, error) {
		calls.Add(1)
		<-release
		return []byte("payload"), nil
	}

	// Act
	const callers = 50
	results := make([]string, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := cache.GetOrFetch(context.Background(), "GET /items", time.Minute, fetch)
			assert.NoError(t, err)
			results[i] = string(v)
		}(i)
	}
	require.Eventually(t, func() bool {
		return cache.Stats().Misses == callers
	}, 5*time.Second, time.Millisecond)
	close(release)
	wg.Wait()

	// Assert
	assert.Equal(t, int32(1), calls.Load())
	for _, r := range results {
		assert.Equal(t, "payload", r)
	}
}

func TestResponseCache_EvictsLeastRecentlyRead(t *testing.T) {
	// Arrange
	cache := newCache(t, 2, shared.NewRealClock())
	var calls atomic.Int32
	ctx := context.Background()

	_, _ = cache.GetOrFetch(ctx, "a", 0, constFetch("A", &calls))
	_, _ = cache.GetOrFetch(ctx, "b", 0, constFetch("B", &calls))

	// Act: read a so b becomes least recently used, then insert c
	_, _ = cache.GetOrFetch(ctx, "a", 0, constFetch("A", &calls))
	_, _ = cache.GetOrFetch(ctx, "c", 0, constFetch("C", &calls))

	// Assert
	assert.True(t, cache.Contains("a"))
	assert.False(t, cache.Contains("b"))
	assert.True(t, cache.Contains("c"))
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, int64(1), cache.Stats().Evictions)
}

func TestResponseCache_TTLExpiry(t *testing.T) {
	clock := shared.NewMockClock(time.Now())
	cache := newCache(t, 8, clock)
	var calls atomic.Int32
	ctx := context.Background()

	_, _ = cache.GetOrFetch(ctx, "k", 10*time.Second, constFetch("v1", &calls))
	clock.Advance(9 * time.Second)
	_, _ = cache.GetOrFetch(ctx, "k", 10*time.Second, constFetch("v2", &calls))
	assert.Equal(t, int32(1), calls.Load(), "still fresh")

	clock.Advance(time.Second)
	v, err := cache.GetOrFetch(ctx, "k", 10*time.Second, constFetch("v2", &calls))
	require.NoError(t, err)
	assert.Equal(t, "v2", string(v))
	assert.Equal(t, int32(2), calls.Load(), "expired entry refreshed")
}

func TestResponseCache_ZeroTTLNeverExpires(t *testing.T) {
	clock := shared.NewMockClock(time.Now())
	cache := newCache(t, 8, clock)
	var calls atomic.Int32

	_, _ = cache.GetOrFetch(context.Background(), "k", 0, constFetch("v", &calls))
	clock.Advance(24 * 365 * time.Hour)

	assert.True(t, cache.Contains("k"))
}

func TestResponseCache_ErrorsAreNotCached(t *testing.T) {
	cache := newCache(t, 8, shared.NewRealClock())
	var calls atomic.Int32
	failing := func(context.Context) ([]byte, error) {
		calls.Add(1)
		return nil, errors.New("upstream down")
	}

	_, err := cache.GetOrFetch(context.Background(), "k", time.Minute, failing)
	require.Error(t, err)
	_, err = cache.GetOrFetch(context.Background(), "k", time.Minute, failing)
	require.Error(t, err)

	assert.Equal(t, int32(2), calls.Load())
	assert.False(t, cache.Contains("k"))
}

func TestResponseCache_CancelledCallerDoesNotAbortSharedFetch(t *testing.T) {
	// Arrange
	cache := newCache(t, 8, shared.NewRealClock())
	release := make(chan struct{})
	var calls atomic.Int32
	fetch := func(ctx context.Context) ([]byte, error) {
		calls.Add(1)
		<-release
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return []byte("ok"), nil
	}

	cancelled, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := cache.GetOrFetch(cancelled, "k", time.Minute, fetch)
		firstErr <- err
	}()
	require.Eventually(t, func() bool { return calls.Load() == 1 }, 5*time.Second, time.Millisecond)

	secondVal := make(chan string, 1)
	go func() {
		v, err := cache.GetOrFetch(context.Background(), "k", time.Minute, fetch)
		assert.NoError(t, err)
		secondVal <- string(v)
	}()
	require.Eventually(t, func() bool { return cache.Stats().Misses == 2 }, 5*time.Second, time.Millisecond)

	// Act
	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)
	close(release)

	// Assert
	assert.Equal(t, "ok", <-secondVal)
	assert.Equal(t, int32(1), calls.Load())
}

func TestResponseCache_Invalidate(t *testing.T) {
	cache := newCache(t, 8, shared.NewRealClock())
	var calls atomic.Int32
	ctx := context.Background()
	for _, k := range []string{"GET /offers?a=1", "GET /offers?a=2", "GET /items"} {
		_, _ = cache.GetOrFetch(ctx, k, 0, constFetch("v", &calls))
	}

	cache.Invalidate("GET /items")
	cache.Invalidate("GET /items")
	removed := cache.InvalidatePrefix("GET /offers")

	assert.Equal(t, 2, removed)
	assert.Equal(t, 0, cache.Stats().Size)
}

func TestResponseCache_InvalidationDuringFetchIsNotStored(t *testing.T) {
	// Arrange
	cache := newCache(t, 8, shared.NewRealClock())
	started := make(chan struct{})
	release := make(chan struct{})
	first := make(chan string, 1)
	go func() {
		v, err := cache.GetOrFetch(context.Background(), "GET /x", time.Minute, func(context.Context) ([]byte, error) {
			close(started)
			<-release
			return []byte("before-write"), nil
		})
		assert.NoError(t, err)
		first <- string(v)
	}()
	<-started

	// Act
	cache.InvalidatePrefix("GET /x")
	close(release)
	firstVal := <-first

	var calls atomic.Int32
	v, err := cache.GetOrFetch(context.Background(), "GET /x", time.Minute, constFetch("after-write", &calls))

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "before-write", firstVal, "the waiting caller still gets its own fetch")
	assert.Equal(t, "after-write", string(v))
	assert.Equal(t, int32(1), calls.Load())
}

func TestResponseCache_CallerArrivingAfterInvalidationStartsFreshFetch(t *testing.T) {
	// Arrange
	cache := newCache(t, 8, shared.NewRealClock())
	started := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_, _ = cache.GetOrFetch(context.Background(), "GET /x", time.Minute, func(context.Context) ([]byte, error) {
			close(started)
			<-release
			return []byte("before-write"), nil
		})
	}()
	<-started
	defer close(release)

	// Act
	cache.Invalidate("GET /x")
	var calls atomic.Int32
	v, err := cache.GetOrFetch(context.Background(), "GET /x", time.Minute, constFetch("after-write", &calls))

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "after-write", string(v))
	assert.Equal(t, int32(1), calls.Load())
}
