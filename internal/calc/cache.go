package calc

import (
	"sync"
	"time"
)

type cacheKey struct {
	trainID    uint
	windowDays int
}

type cacheEntry struct {
	value     float64
	expiresAt time.Time
}

// averageCache memoizes rolling-average results with a TTL. Entries are
// advisory: callers tolerate staleness up to the TTL, and writers invalidate
// per train.
type averageCache struct {
	ttl     time.Duration
	entries map[cacheKey]cacheEntry
	mu      sync.Mutex
}

func newAverageCache(ttl time.Duration) *averageCache {
	return &averageCache{
		ttl:     ttl,
		entries: make(map[cacheKey]cacheEntry),
	}
}

func (c *averageCache) get(trainID uint, windowDays int) (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[cacheKey{trainID, windowDays}]
	if !ok {
		return 0, false
	}
	if time.Now().After(entry.expiresAt) {
		delete(c.entries, cacheKey{trainID, windowDays})
		return 0, false
	}
	return entry.value, true
}

func (c *averageCache) set(trainID uint, windowDays int, value float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[cacheKey{trainID, windowDays}] = cacheEntry{
		value:     value,
		expiresAt: time.Now().Add(c.ttl),
	}
}

func (c *averageCache) invalidateTrain(trainID uint) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.entries {
		if key.trainID == trainID {
			delete(c.entries, key)
		}
	}
}

// sweep drops expired entries and returns the number removed
func (c *averageCache) sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	removed := 0
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}
