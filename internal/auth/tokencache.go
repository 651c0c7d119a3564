package auth

import (
	"sync"

	"reviewdesk.org/internal/obs"
)

// TokenCache is the process-wide set of currently-valid tokens, consulted on
// every authenticated request. All operations hold the lock only for the set
// mutation itself; nothing here performs I/O. Entries are inserted
// synchronously at issuance time and removed by logout, revocation, or the
// reconciler.
type TokenCache struct {
	mu      sync.RWMutex
	entries map[CacheEntry]struct{}
}

// NewTokenCache returns an empty cache.
func NewTokenCache() *TokenCache {
	return &TokenCache{entries: make(map[CacheEntry]struct{})}
}

// Insert adds the entry.
func (c *TokenCache) Insert(entry CacheEntry) {
	c.mu.Lock()
	c.entries[entry] = struct{}{}
	n := len(c.entries)
	c.mu.Unlock()
	obs.SetTokenCacheSize(n)
}

// Remove evicts the entry if present.
func (c *TokenCache) Remove(entry CacheEntry) {
	c.mu.Lock()
	delete(c.entries, entry)
	n := len(c.entries)
	c.mu.Unlock()
	obs.SetTokenCacheSize(n)
}

// Contains reports whether the entry is currently valid. Hot path; never
// blocks on anything but the read lock.
func (c *TokenCache) Contains(entry CacheEntry) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.entries[entry]
	return ok
}

// Clear drops every entry.
func (c *TokenCache) Clear() {
	c.mu.Lock()
	c.entries = make(map[CacheEntry]struct{})
	c.mu.Unlock()
	obs.SetTokenCacheSize(0)
}

// Len returns the current cardinality.
func (c *TokenCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Snapshot returns a copy of the current entries.
func (c *TokenCache) Snapshot() []CacheEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]CacheEntry, 0, len(c.entries))
	for e := range c.entries {
		out = append(out, e)
	}
	return out
}
