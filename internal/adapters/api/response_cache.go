package api

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/sync/singleflight"

	"github.com/andrescamacho/marketscan-go/internal/domain/shared"
)

// CacheConfig sizes the response cache. A DefaultTTL of zero means entries never expire.
type CacheConfig struct {
	MaxEntries int
	DefaultTTL time.Duration
}

// DefaultCacheConfig returns a small cache with a short TTL suited to price data
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{MaxEntries: 1024, DefaultTTL: 5 * time.Second}
}

// FetchFunc produces the value for a cache miss
type FetchFunc func(ctx context.Context) ([]byte, error)

// CacheStats counts cache traffic since creation
type CacheStats struct {
	Hits      int64
	Misses    int64
	Fetches   int64
	Evictions int64
	Size      int
}

// Coalesced is the number of misses served by another caller's in-flight fetch
func (s CacheStats) Coalesced() int64 {
	if s.Misses < s.Fetches {
		return 0
	}
	return s.Misses - s.Fetches
}

type cacheEntry struct {
	value    []byte
	storedAt time.Time
	ttl      time.Duration
}

func (e *cacheEntry) expired(now time.Time) bool {
	return e.ttl > 0 && now.Sub(e.storedAt) >= e.ttl
}

// flight is one in-progress fetch; a stale flight must not store its result
type flight struct {
	stale bool
}

// ResponseCache is a TTL'd LRU in front of the upstream with single-flight
// deduplication: concurrent misses for one key share a single fetch.
//
// Recency is refreshed on every read, so eviction removes the least recently
// read entry. Returned byte slices are shared between callers and must not be mutated.
//
// Invalidation also reaches fetches still in flight: their result is handed to the
// callers already waiting but never stored, and later callers start a fresh fetch.
type ResponseCache struct {
	entries    *lru.Cache
	group      singleflight.Group
	mu         sync.Mutex // orders store against invalidation
	inflight   map[string]*flight
	clock      shared.Clock
	defaultTTL time.Duration
	onLookup   func(hit bool)

	hits      atomic.Int64
	misses    atomic.Int64
	fetches   atomic.Int64
	evictions atomic.Int64
}

// NewResponseCache creates a cache; a non-positive MaxEntries falls back to the default size
func NewResponseCache(cfg CacheConfig, clock shared.Clock) (*ResponseCache, error) {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultCacheConfig().MaxEntries
	}
	if clock == nil {
		clock = shared.NewRealClock()
	}
	entries, err := lru.New(cfg.MaxEntries)
	if err != nil {
		return nil, err
	}
	return &ResponseCache{
		entries:    entries,
		inflight:   make(map[string]*flight),
		clock:      clock,
		defaultTTL: cfg.DefaultTTL,
	}, nil
}

// DefaultTTL returns the TTL applied when callers do not choose one
func (c *ResponseCache) DefaultTTL() time.Duration {
	return c.defaultTTL
}

// GetOrFetch returns the cached value for key or runs fetch exactly once for all
// concurrent callers of the same key. ttl of zero stores the value with no expiry.
//
// The fetch runs detached from any single caller's cancellation: a caller whose ctx
// ends returns ctx.Err() immediately, while the fetch continues for the others.
// Errors are never cached.
func (c *ResponseCache) GetOrFetch(ctx context.Context, key string, ttl time.Duration, fetch FetchFunc) ([]byte, error) {
	if v, ok := c.lookup(key); ok {
		c.hits.Add(1)
		c.observe(true)
		return v, nil
	}
	c.misses.Add(1)
	c.observe(false)

	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (interface{}, error) {
		f := c.beginFlight(key)
		defer c.endFlight(key, f)

		// a flight that finished just before ours may already have stored the value
		if v, ok := c.peekFresh(key); ok {
			return v, nil
		}
		c.fetches.Add(1)
		v, err := fetch(detached)
		if err != nil {
			return nil, err
		}
		c.storeUnlessStale(key, f, v, ttl)
		return v, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	}
}

// OnLookup registers a hit/miss observer. Must be set before first use.
func (c *ResponseCache) OnLookup(fn func(hit bool)) {
	c.onLookup = fn
}

func (c *ResponseCache) observe(hit bool) {
	if c.onLookup != nil {
		c.onLookup(hit)
	}
}

// lookup reads and refreshes recency; expired entries are dropped
func (c *ResponseCache) lookup(key string) ([]byte, bool) {
	raw, ok := c.entries.Get(key)
	if !ok {
		return nil, false
	}
	entry := raw.(*cacheEntry)
	if entry.expired(c.clock.Now()) {
		c.entries.Remove(key)
		return nil, false
	}
	return entry.value, true
}

func (c *ResponseCache) peekFresh(key string) ([]byte, bool) {
	raw, ok := c.entries.Peek(key)
	if !ok {
		return nil, false
	}
	entry := raw.(*cacheEntry)
	if entry.expired(c.clock.Now()) {
		return nil, false
	}
	return entry.value, true
}

func (c *ResponseCache) beginFlight(key string) *flight {
	f := &flight{}
	c.mu.Lock()
	c.inflight[key] = f
	c.mu.Unlock()
	return f
}

func (c *ResponseCache) endFlight(key string, f *flight) {
	c.mu.Lock()
	if c.inflight[key] == f {
		delete(c.inflight, key)
	}
	c.mu.Unlock()
}

func (c *ResponseCache) storeUnlessStale(key string, f *flight, value []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if f.stale {
		return
	}
	c.store(key, value, ttl)
}

// markStale detaches matching in-flight fetches. Caller holds c.mu.
func (c *ResponseCache) markStale(pred func(key string) bool) {
	for key, f := range c.inflight {
		if pred(key) {
			f.stale = true
			c.group.Forget(key)
			delete(c.inflight, key)
		}
	}
}

func (c *ResponseCache) store(key string, value []byte, ttl time.Duration) {
	if ttl < 0 {
		ttl = 0
	}
	if evicted := c.entries.Add(key, &cacheEntry{value: value, storedAt: c.clock.Now(), ttl: ttl}); evicted {
		c.evictions.Add(1)
	}
}

// Contains reports whether a fresh entry exists, without touching recency
func (c *ResponseCache) Contains(key string) bool {
	_, ok := c.peekFresh(key)
	return ok
}

// Invalidate removes key and keeps an in-flight fetch of it from being stored. Idempotent.
func (c *ResponseCache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.markStale(func(k string) bool { return k == key })
	c.entries.Remove(key)
}

// InvalidateFunc removes every key matching pred and returns how many stored entries
// were removed. Matching in-flight fetches are not stored when they complete.
func (c *ResponseCache) InvalidateFunc(pred func(key string) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.markStale(pred)
	removed := 0
	for _, raw := range c.entries.Keys() {
		key, ok := raw.(string)
		if ok && pred(key) {
			c.entries.Remove(key)
			removed++
		}
	}
	return removed
}

// InvalidatePrefix removes every key starting with prefix
func (c *ResponseCache) InvalidatePrefix(prefix string) int {
	return c.InvalidateFunc(func(key string) bool {
		return strings.HasPrefix(key, prefix)
	})
}

// Purge drops every entry and every in-flight result
func (c *ResponseCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.markStale(func(string) bool { return true })
	c.entries.Purge()
}

// Stats returns the traffic counters
func (c *ResponseCache) Stats() CacheStats {
	return CacheStats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Fetches:   c.fetches.Load(),
		Evictions: c.evictions.Load(),
		Size:      c.entries.Len(),
	}
}
