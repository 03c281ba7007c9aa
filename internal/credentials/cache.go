package credentials

import (
	"sync"
	"time"
)

type cacheKey struct {
	userID    string
	projectID string
}

type cacheEntry struct {
	set       Set
	expiresAt time.Time
}

// ttlCache maps (user, project) to a delegated credential set. Entries are
// lazily evicted on read once expired. Concurrent Put calls for the same key
// may race; last writer wins, which is safe because every stored set is valid
// for at least the safety margin.
type ttlCache struct {
	mu      sync.Mutex
	entries map[cacheKey]cacheEntry
	now     func() time.Time
}

func newTTLCache(now func() time.Time) *ttlCache {
	return &ttlCache{
		entries: make(map[cacheKey]cacheEntry),
		now:     now,
	}
}

func (c *ttlCache) Get(key cacheKey) (Set, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return Set{}, false
	}
	if !c.now().Before(entry.expiresAt) {
		delete(c.entries, key)
		return Set{}, false
	}
	return entry.set, true
}

func (c *ttlCache) Put(key cacheKey, set Set, expiresAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{set: set, expiresAt: expiresAt}
}
