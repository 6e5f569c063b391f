// Package cache provides thread-safe caching utilities with time-based expiration.
package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value   V
	expires time.Time
}

// TTLCache is a thread-safe cache where every entry expires on its own
// TTL after it was stored. When MaxEntries is reached, expired entries are
// pruned and, if that is not enough, the entry closest to expiry is evicted.
type TTLCache[K comparable, V any] struct {
	mu         sync.Mutex
	data       map[K]entry[V]
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

// New creates a TTLCache. maxEntries <= 0 means unbounded.
func New[K comparable, V any](ttl time.Duration, maxEntries int) *TTLCache[K, V] {
	return &TTLCache[K, V]{
		data:       make(map[K]entry[V]),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// Get returns the value for key if present and not expired.
func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.data[key]
	if !ok {
		var zero V
		return zero, false
	}
	if !c.now().Before(e.expires) {
		delete(c.data, key)
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores value under key with a fresh TTL.
func (c *TTLCache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if _, exists := c.data[key]; !exists && c.maxEntries > 0 && len(c.data) >= c.maxEntries {
		c.pruneLocked(now)
	}
	c.data[key] = entry[V]{value: value, expires: now.Add(c.ttl)}
}

// pruneLocked drops expired entries, then the soonest-expiring entry if the
// cache is still full. MUST be called with the lock held.
func (c *TTLCache[K, V]) pruneLocked(now time.Time) {
	for k, e := range c.data {
		if !now.Before(e.expires) {
			delete(c.data, k)
		}
	}
	if len(c.data) < c.maxEntries {
		return
	}

	var (
		oldest    K
		oldestExp time.Time
		found     bool
	)
	for k, e := range c.data {
		if !found || e.expires.Before(oldestExp) {
			oldest, oldestExp, found = k, e.expires, true
		}
	}
	if found {
		delete(c.data, oldest)
	}
}

// size returns the number of stored entries, expired or not.
func (c *TTLCache[K, V]) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data)
}
