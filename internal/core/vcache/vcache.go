// Package vcache provides the two small cache shapes the viewer needs: a
// single-value cache invalidated by age, and a keyed cache invalidated by
// file stat changes. Policies live here so they are swappable and testable
// independently of the readers that use them.
package vcache

import (
	"sync"
	"time"
)

// TTL caches a single value for a fixed duration. A zero duration means
// every Get is a miss.
type TTL[V any] struct {
	mu      sync.Mutex
	ttl     time.Duration
	val     V
	ok      bool
	savedAt time.Time

	// now is swapped in tests
	now func() time.Time
}

// NewTTL creates a time-bounded single-value cache.
func NewTTL[V any](ttl time.Duration) *TTL[V] {
	return &TTL[V]{ttl: ttl, now: time.Now}
}

// Get returns the cached value if it is still within the TTL window.
func (c *TTL[V]) Get() (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.ok || c.now().Sub(c.savedAt) >= c.ttl {
		var zero V
		return zero, false
	}
	return c.val, true
}

// Put stores a value and restarts the TTL window.
func (c *TTL[V]) Put(v V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.val = v
	c.ok = true
	c.savedAt = c.now()
}

// Invalidate clears the cache immediately regardless of TTL.
func (c *TTL[V]) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero V
	c.val = zero
	c.ok = false
}

// Stamp is the validity key for stat-based caching: a hit requires both the
// size and the modification time to match the file's current values.
type Stamp struct {
	Size  int64
	MTime time.Time
}

type statEntry[V any] struct {
	stamp Stamp
	val   V
}

// Stat is a keyed cache whose entries are valid only while the underlying
// file's size and mtime are unchanged.
type Stat[V any] struct {
	mu      sync.RWMutex
	entries map[string]statEntry[V]
}

// NewStat creates an empty stat-keyed cache.
func NewStat[V any]() *Stat[V] {
	return &Stat[V]{entries: make(map[string]statEntry[V])}
}

// Get returns the cached value for key if its stamp matches cur.
func (c *Stat[V]) Get(key string, cur Stamp) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || e.stamp.Size != cur.Size || !e.stamp.MTime.Equal(cur.MTime) {
		var zero V
		return zero, false
	}
	return e.val, true
}

// Put stores a value under key with the given validity stamp.
func (c *Stat[V]) Put(key string, cur Stamp, v V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = statEntry[V]{stamp: cur, val: v}
}

// Invalidate drops the entry for key, if any.
func (c *Stat[V]) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}
