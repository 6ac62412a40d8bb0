// Package cache provides a process-local key/value store with per-entry
// expiry. Expiry is checked on read, so a background sweep only bounds memory.
package cache

import (
	"context"
	"sync"
	"time"
)

// DefaultTTL is applied by SetDefault when no WithTTL option is given.
const DefaultTTL = 60 * time.Second

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

type options struct {
	ttl time.Duration
	now func() time.Time
}

// Option configures a TTLCache.
type Option func(*options)

// WithTTL sets the TTL used by SetDefault.
func WithTTL(ttl time.Duration) Option {
	return func(o *options) {
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// TTLCache is a mutex-guarded map whose entries are served only while
// now < expiresAt. It is safe for concurrent use.
type TTLCache[V any] struct {
	name string
	ttl  time.Duration
	now  func() time.Time

	mu      sync.Mutex
	entries map[string]entry[V]
	// gens counts deletions per key. Entries are never removed, so the map
	// grows with the number of distinct keys ever deleted.
	gens map[string]uint64
}

// New creates an empty cache. name labels the cache's metrics.
func New[V any](name string, opts ...Option) *TTLCache[V] {
	o := options{ttl: DefaultTTL, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &TTLCache[V]{
		name:    name,
		ttl:     o.ttl,
		now:     o.now,
		entries: make(map[string]entry[V]),
		gens:    make(map[string]uint64),
	}
}

// Name returns the cache name used in metric labels.
func (c *TTLCache[V]) Name() string { return c.name }

// TTL returns the default TTL.
func (c *TTLCache[V]) TTL() time.Duration { return c.ttl }

// Get returns the value for key if it has not expired. An expired entry is
// removed and reported as absent.
func (c *TTLCache[V]) Get(key string) (V, bool) {
	now := c.now()

	c.mu.Lock()
	e, ok := c.entries[key]
	if ok && !now.Before(e.expiresAt) {
		delete(c.entries, key)
		c.mu.Unlock()
		EvictionsTotal.WithLabelValues(c.name, "expired").Inc()
		Entries.WithLabelValues(c.name).Dec()
		RequestsTotal.WithLabelValues(c.name, "miss").Inc()
		var zero V
		return zero, false
	}
	c.mu.Unlock()

	if !ok {
		RequestsTotal.WithLabelValues(c.name, "miss").Inc()
		var zero V
		return zero, false
	}
	RequestsTotal.WithLabelValues(c.name, "hit").Inc()
	return e.value, true
}

// Set stores value under key until now+ttl, replacing any previous entry.
// A non-positive ttl removes the key instead.
func (c *TTLCache[V]) Set(key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		c.Delete(key)
		return
	}
	expiresAt := c.now().Add(ttl)

	c.mu.Lock()
	_, existed := c.entries[key]
	c.entries[key] = entry[V]{value: value, expiresAt: expiresAt}
	c.mu.Unlock()

	if !existed {
		Entries.WithLabelValues(c.name).Inc()
	}
}

// SetDefault stores value under key with the cache's default TTL.
func (c *TTLCache[V]) SetDefault(key string, value V) {
	c.Set(key, value, c.ttl)
}

// Generation returns the number of times key has been deleted. Read it
// before computing a value to store with SetIfUnchanged.
func (c *TTLCache[V]) Generation(key string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[key]
}

// SetIfUnchanged stores value under key with the default TTL only if key has
// not been deleted since gen was read. It reports whether the value was
// stored. A value computed before a concurrent Delete is discarded.
func (c *TTLCache[V]) SetIfUnchanged(key string, value V, gen uint64) bool {
	expiresAt := c.now().Add(c.ttl)

	c.mu.Lock()
	if c.gens[key] != gen {
		c.mu.Unlock()
		RequestsTotal.WithLabelValues(c.name, "stale_set").Inc()
		return false
	}
	_, existed := c.entries[key]
	c.entries[key] = entry[V]{value: value, expiresAt: expiresAt}
	c.mu.Unlock()

	if !existed {
		Entries.WithLabelValues(c.name).Inc()
	}
	return true
}

// Delete removes key and advances its generation. Deleting an absent key
// still advances the generation.
func (c *TTLCache[V]) Delete(key string) {
	c.mu.Lock()
	_, existed := c.entries[key]
	delete(c.entries, key)
	c.gens[key]++
	c.mu.Unlock()

	if existed {
		EvictionsTotal.WithLabelValues(c.name, "deleted").Inc()
		Entries.WithLabelValues(c.name).Dec()
	}
}

// Len returns the number of stored entries, including expired entries that
// have not been read or swept yet.
func (c *TTLCache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Sweep removes every expired entry and returns how many were removed.
func (c *TTLCache[V]) Sweep() int {
	now := c.now()

	c.mu.Lock()
	removed := 0
	for key, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, key)
			removed++
		}
	}
	c.mu.Unlock()

	if removed > 0 {
		EvictionsTotal.WithLabelValues(c.name, "swept").Add(float64(removed))
		Entries.WithLabelValues(c.name).Sub(float64(removed))
	}
	return removed
}

// Run sweeps the cache every interval until ctx is done.
func (c *TTLCache[V]) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Sweep()
		}
	}
}
