// Package cache provides a bounded, TTL-expiring memoization cache for
// expensive catalog loads. Concurrent GetOrLoad calls for the same key are
// collapsed into one loader execution via singleflight, so exactly one
// successful load result is committed per key per race.
package cache

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	// DefaultTTL is the sliding expiration window. Any access resets it.
	DefaultTTL = 10 * time.Minute

	// DefaultMaxEntries bounds the cache before eviction kicks in.
	DefaultMaxEntries = 256
)

// LoaderFunc computes a value on cache miss. It receives the caller's context
// so cancellation propagates into knowledge-store reads.
type LoaderFunc func(ctx context.Context) (any, error)

// Metrics counts cache activity. Implementations must be safe for concurrent
// use. A nil Metrics disables counting.
type Metrics interface {
	Hit()
	Miss()
	Evict(count int)
}

// Options configures a Cache. Zero values fall back to defaults.
type Options struct {
	TTL        time.Duration
	MaxEntries int
	Metrics    Metrics

	// Clock overrides time.Now, for expiry tests.
	Clock func() time.Time
}

type entry struct {
	value     any
	expiresAt time.Time
	lastUsed  time.Time
}

// Cache is a key-based cache with sliding expiry and bounded size.
// Each entry carries a fixed unit cost; when the bound is exceeded a
// fraction of the least-recently-used entries is evicted.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry

	ttl        time.Duration
	maxEntries int
	metrics    Metrics
	now        func() time.Time

	group singleflight.Group
}

// New creates a Cache with the given options.
func New(opts Options) *Cache {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = DefaultMaxEntries
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Cache{
		entries:    make(map[string]*entry),
		ttl:        opts.TTL,
		maxEntries: opts.MaxEntries,
		metrics:    opts.Metrics,
		now:        opts.Clock,
	}
}

// GetOrLoad returns the live cached value for key, or invokes loader to
// compute and store it. A failed load stores nothing — the error propagates
// and the next lookup retries. Concurrent misses on the same key share one
// loader execution. A call served from a value another flight committed
// counts as a hit; the hit/miss decision is made only after the flight's
// cache re-check.
func (c *Cache) GetOrLoad(ctx context.Context, key string, loader LoaderFunc) (any, error) {
	if v, ok := c.get(key); ok {
		c.countHit()
		return v, nil
	}

	res, err := c.loadShared(ctx, key, loader)
	if err != nil {
		c.countMiss()
		return nil, err
	}
	if res.cached {
		c.countHit()
	} else {
		c.countMiss()
	}
	return res.value, nil
}

// flightResult is a shared load outcome; cached marks a value that an
// earlier flight committed between the caller's lookup and its flight.
type flightResult struct {
	value  any
	cached bool
}

// loadShared runs loader under the key's flight group, re-checking the
// cache first: a caller that lost the race to a finished flight is served
// the committed value without another load.
func (c *Cache) loadShared(ctx context.Context, key string, loader LoaderFunc) (flightResult, error) {
	v, err, _ := c.group.Do(key, func() (any, error) {
		if v, ok := c.get(key); ok {
			return flightResult{value: v, cached: true}, nil
		}
		v, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		c.put(key, v)
		return flightResult{value: v}, nil
	})
	if err != nil {
		return flightResult{}, err
	}
	return v.(flightResult), nil
}

func (c *Cache) countHit() {
	if c.metrics != nil {
		c.metrics.Hit()
	}
}

func (c *Cache) countMiss() {
	if c.metrics != nil {
		c.metrics.Miss()
	}
}

// Remove drops a single key. Missing keys are a no-op.
func (c *Cache) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Flush drops every entry. Used when the backing knowledge changes on disk.
func (c *Cache) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
}

// Len returns the number of stored entries, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// get returns a live value and slides its expiry. Expired entries are
// removed so a later GetOrLoad recomputes from the source of truth.
func (c *Cache) get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	now := c.now()
	if !e.expiresAt.After(now) {
		delete(c.entries, key)
		return nil, false
	}
	e.expiresAt = now.Add(c.ttl)
	e.lastUsed = now
	return e.value, true
}

func (c *Cache) put(key string, v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	c.entries[key] = &entry{value: v, expiresAt: now.Add(c.ttl), lastUsed: now}
	if len(c.entries) > c.maxEntries {
		c.evictLocked()
	}
}

// evictLocked removes the least-recently-used quarter of the bound, plus any
// overflow, so a burst of inserts cannot thrash one-at-a-time evictions.
func (c *Cache) evictLocked() {
	n := len(c.entries) - c.maxEntries + c.maxEntries/4
	if n < 1 {
		n = 1
	}

	type keyAge struct {
		key      string
		lastUsed time.Time
	}
	ages := make([]keyAge, 0, len(c.entries))
	for k, e := range c.entries {
		ages = append(ages, keyAge{k, e.lastUsed})
	}
	sort.Slice(ages, func(i, j int) bool {
		return ages[i].lastUsed.Before(ages[j].lastUsed)
	})
	if n > len(ages) {
		n = len(ages)
	}
	for _, ka := range ages[:n] {
		delete(c.entries, ka.key)
	}
	if c.metrics != nil {
		c.metrics.Evict(n)
	}
}
