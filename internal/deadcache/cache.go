// internal/deadcache/cache.go

// Package deadcache is a TTL negative cache of permanently-failed URLs.
// It is consulted before any network call so that URLs already known to be
// gone (404/410) never trigger another fetch or backoff escalation within
// the TTL window. Entries expire lazily on lookup.
package deadcache

import (
	"sync"
	"time"
)

// DefaultTTL is how long a dead URL stays suppressed when no TTL is
// configured.
const DefaultTTL = 7 * 24 * time.Hour

// Cache maps URL -> expiry timestamp.
type Cache struct {
	mu      sync.Mutex
	entries map[string]time.Time
	ttl     time.Duration

	now func() time.Time
}

// New creates a cache with the given TTL; ttl <= 0 selects DefaultTTL.
func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		entries: make(map[string]time.Time),
		ttl:     ttl,
		now:     time.Now,
	}
}

// MarkDead records the URL as permanently failed for the configured TTL.
func (c *Cache) MarkDead(url string) {
	c.MarkDeadFor(url, c.ttl)
}

// MarkDeadFor records the URL with an explicit TTL.
func (c *Cache) MarkDeadFor(url string, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[url] = c.now().Add(ttl)
}

// IsDead reports whether the URL has an unexpired entry. Expired entries
// are removed on the way out.
func (c *Cache) IsDead(url string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiry, ok := c.entries[url]
	if !ok {
		return false
	}
	if c.now().After(expiry) {
		delete(c.entries, url)
		return false
	}
	return true
}

// Len returns the number of stored entries, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
