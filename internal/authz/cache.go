package authz

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// Cache memoizes resolved closures per user inside a single process.
//
// It starts disabled: every lookup recomputes and nothing is stored, so
// stale entries cannot occur. The authoritative execution context keeps it
// that way unless its mutation paths also invalidate, which Service does.
// Advisory read-only contexts may enable it and accept staleness for the
// lifetime of an entry.
type Cache struct {
	enabled atomic.Bool
	mu      sync.RWMutex
	entries map[string]StringSet
	group   singleflight.Group
}

// NewCache returns a disabled cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]StringSet)}
}

// Enable turns the cache on.
func (c *Cache) Enable() { c.enabled.Store(true) }

// Disable turns the cache off and drops all entries.
func (c *Cache) Disable() {
	c.enabled.Store(false)
	c.Reset()
}

// Enabled reports whether lookups are being memoized.
func (c *Cache) Enabled() bool { return c.enabled.Load() }

// GetOrCompute returns the memoized closure for userID, computing and
// storing it on a miss. Concurrent misses for the same user share one
// compute. When disabled it always computes fresh and stores nothing.
func (c *Cache) GetOrCompute(userID string, compute func() (StringSet, error)) (StringSet, error) {
	if !c.enabled.Load() {
		return compute()
	}

	c.mu.RLock()
	cached, ok := c.entries[userID]
	c.mu.RUnlock()
	if ok {
		return cached, nil
	}

	v, err, _ := c.group.Do(userID, func() (any, error) {
		set, err := compute()
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[userID] = set
		c.mu.Unlock()
		return set, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(StringSet), nil
}

// Invalidate drops the entry for one user.
func (c *Cache) Invalidate(userID string) {
	c.mu.Lock()
	delete(c.entries, userID)
	c.mu.Unlock()
}

// Reset drops every entry. Called after mutations that change the graph
// shape, where any user's closure may have changed.
func (c *Cache) Reset() {
	c.mu.Lock()
	c.entries = make(map[string]StringSet)
	c.mu.Unlock()
}

// Len reports the number of memoized users.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
