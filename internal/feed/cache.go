package feed

import (
	"context"
	"sync"
	"time"

	appLog "notionics/internal/log"
	"notionics/internal/metrics"
)

// DefaultCacheTTL is the freshness window used when Cache.TTL is unset.
const DefaultCacheTTL = 600 * time.Second

// BuildFunc assembles a feed body for a mode.
type BuildFunc func(ctx context.Context, mode Mode) (string, error)

// cacheEntry holds an assembled feed and its build time.
type cacheEntry struct {
	body    string
	builtAt time.Time
}

// Cache serves assembled feeds per mode until they are older than TTL.
//
// A stale lookup rebuilds synchronously. Concurrent stale lookups may each
// rebuild; the last one to finish wins. A failed rebuild is returned to the
// caller and leaves the previous entry untouched.
type Cache struct {
	build   BuildFunc
	ttl     time.Duration
	now     func() time.Time
	metrics metrics.Recorder

	mu      sync.RWMutex
	entries map[Mode]cacheEntry
}

// CacheOption customizes a Cache.
type CacheOption func(*Cache)

// WithClock replaces the wall clock (tests).
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) { c.now = now }
}

// WithMetrics reports fresh/stale lookups to r.
func WithMetrics(r metrics.Recorder) CacheOption {
	return func(c *Cache) { c.metrics = r }
}

// NewCache creates a Cache. A non-positive ttl means DefaultCacheTTL.
func NewCache(build BuildFunc, ttl time.Duration, opts ...CacheOption) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	c := &Cache{
		build:   build,
		ttl:     ttl,
		now:     time.Now,
		metrics: metrics.Nop{},
		entries: make(map[Mode]cacheEntry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached body for mode if it is younger than the TTL,
// otherwise it rebuilds, stores and returns the new body.
func (c *Cache) Get(ctx context.Context, mode Mode) (string, error) {
	now := c.now()

	c.mu.RLock()
	e, ok := c.entries[mode]
	c.mu.RUnlock()
	if ok && now.Sub(e.builtAt) < c.ttl {
		c.metrics.RecordCache(string(mode), true)
		return e.body, nil
	}
	c.metrics.RecordCache(string(mode), false)

	body, err := c.build(ctx, mode)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.entries[mode] = cacheEntry{body: body, builtAt: now}
	c.mu.Unlock()

	appLog.Debug("feed cache stored", "mode", mode, "bytes", len(body))
	return body, nil
}
