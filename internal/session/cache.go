// Package session verifies session cookies, applies the page redirect rules
// and serves cached user profiles.
package session

import (
	"context"
	"sync"
	"time"
)

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type entry[V any] struct {
	value    V
	loadedAt time.Time
}

// Cache keeps loaded values for a fixed TTL. Loads for the same key are not
// coalesced; the last writer wins.
type Cache[K comparable, V any] struct {
	clock Clock
	ttl   time.Duration

	mu      sync.RWMutex
	entries map[K]entry[V]
}

func NewCache[K comparable, V any](ttl time.Duration) *Cache[K, V] {
	return NewCacheWithClock[K, V](ttl, realClock{})
}

// NewCacheWithClock creates a Cache with a custom clock (for testing).
func NewCacheWithClock[K comparable, V any](ttl time.Duration, clock Clock) *Cache[K, V] {
	return &Cache[K, V]{
		clock:   clock,
		ttl:     ttl,
		entries: make(map[K]entry[V]),
	}
}

// Get returns the cached value for key, calling load on a miss or after
// expiry. Load errors are returned and nothing is cached.
func (c *Cache[K, V]) Get(ctx context.Context, key K, load func(context.Context) (V, error)) (V, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if ok && c.fresh(e) {
		return e.value, nil
	}

	v, err := load(ctx)
	if err != nil {
		var zero V
		return zero, err
	}

	c.mu.Lock()
	c.entries[key] = entry[V]{value: v, loadedAt: c.clock.Now()}
	c.mu.Unlock()
	return v, nil
}

// Peek returns a fresh cached value without loading.
func (c *Cache[K, V]) Peek(key K) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || !c.fresh(e) {
		var zero V
		return zero, false
	}
	return e.value, true
}

func (c *Cache[K, V]) Invalidate(key K) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Prune drops expired entries and reports how many were removed.
func (c *Cache[K, V]) Prune() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k, e := range c.entries {
		if !c.fresh(e) {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

func (c *Cache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache[K, V]) fresh(e entry[V]) bool {
	return c.clock.Now().Before(e.loadedAt.Add(c.ttl))
}
