// Package cache provides a generic in-memory key-value store with per-entry
// TTL.
//
// Entries are invalidated lazily on read; there is no background sweeper.
// Serving a value a moment past its expiry would only be a freshness issue,
// not a correctness one, so reads simply drop expired entries when they see
// them.
package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value  V
	expiry time.Time // zero value means never expires
}

// Cache is a concurrency-safe TTL cache
type Cache[V any] struct {
	mu      sync.RWMutex
	entries map[string]entry[V]
	timeNow func() time.Time // injectable for testing
}

// New creates an empty cache
func New[V any]() *Cache[V] {
	return NewWithClock[V](time.Now)
}

// NewWithClock creates an empty cache with an injectable clock (for testing)
func NewWithClock[V any](timeNow func() time.Time) *Cache[V] {
	return &Cache[V]{
		entries: make(map[string]entry[V]),
		timeNow: timeNow,
	}
}

// Get returns the value for key and whether it was present and unexpired.
// Expired entries are removed on the way out.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	var zero V
	if !ok {
		return zero, false
	}

	if !e.expiry.IsZero() && c.timeNow().After(e.expiry) {
		c.mu.Lock()
		// Re-check under the write lock; a concurrent Set may have refreshed it
		if cur, still := c.entries[key]; still && cur.expiry.Equal(e.expiry) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return zero, false
	}

	return e.value, true
}

// Set stores value under key with the given TTL. A non-positive TTL stores
// the entry without expiry.
func (c *Cache[V]) Set(key string, value V, ttl time.Duration) {
	e := entry[V]{value: value}
	if ttl > 0 {
		e.expiry = c.timeNow().Add(ttl)
	}

	c.mu.Lock()
	c.entries[key] = e
	c.mu.Unlock()
}

// Delete removes key from the cache
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Clear removes all entries
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]entry[V])
	c.mu.Unlock()
}

// Len returns the number of entries, including any not yet lazily expired
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
