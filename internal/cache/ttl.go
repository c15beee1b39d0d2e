// Package cache provides a small in-process TTL cache used for market
// metadata and external price lookups. Expired entries are evicted lazily on
// read; each process owns its own instance, so there is no cross-process
// coordination.
package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	val     V
	expires time.Time
}

// TTL is a string-keyed cache whose entries expire after a fixed duration.
type TTL[V any] struct {
	mu    sync.Mutex
	ttl   time.Duration
	items map[string]entry[V]

	// now is swappable for tests.
	now func() time.Time
}

// New creates a TTL cache with the given entry lifetime.
func New[V any](ttl time.Duration) *TTL[V] {
	return &TTL[V]{
		ttl:   ttl,
		items: make(map[string]entry[V]),
		now:   time.Now,
	}
}

// Get returns the cached value if present and unexpired. An expired entry is
// removed on the spot.
func (c *TTL[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	if c.now().After(e.expires) {
		delete(c.items, key)
		var zero V
		return zero, false
	}
	return e.val, true
}

// Set stores a value with a fresh TTL.
func (c *TTL[V]) Set(key string, val V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = entry[V]{val: val, expires: c.now().Add(c.ttl)}
}

// Len returns the number of entries currently stored, expired or not.
func (c *TTL[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
