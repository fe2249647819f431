package esplora

import (
	"sync"
	"time"
)

// cache is a small TTL+size-bounded cache for header/height lookups,
// avoiding re-fetching headers the synchronizer has already resolved
// within one sync round.
type cache struct {
	mu         sync.Mutex
	ttl        time.Duration
	maxEntries int

	blockHashByHeight map[uint32]cacheEntry
}

type cacheEntry struct {
	value    [32]byte
	cachedAt time.Time
}

func newCache(ttl time.Duration, maxEntries int) *cache {
	return &cache{
		ttl:               ttl,
		maxEntries:        maxEntries,
		blockHashByHeight: make(map[uint32]cacheEntry),
	}
}

func (c *cache) get(height uint32) ([32]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.blockHashByHeight[height]
	if !ok || time.Since(e.cachedAt) > c.ttl {
		return [32]byte{}, false
	}
	return e.value, true
}

func (c *cache) put(height uint32, hash [32]byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.blockHashByHeight) >= c.maxEntries {
		c.evictOldest()
	}
	c.blockHashByHeight[height] = cacheEntry{value: hash, cachedAt: time.Now()}
}

func (c *cache) evictOldest() {
	var oldestHeight uint32
	var oldestAt time.Time
	first := true
	for h, e := range c.blockHashByHeight {
		if first || e.cachedAt.Before(oldestAt) {
			oldestHeight, oldestAt, first = h, e.cachedAt, false
		}
	}
	if !first {
		delete(c.blockHashByHeight, oldestHeight)
	}
}
