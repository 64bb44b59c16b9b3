package cache

import (
	"sync"
	"time"

	"github.com/inkrouter/ink-router/internal/compose"
)

// MemoryCache is an in-process LRU cache with lazy TTL expiry.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]*memoryEntry
	order   []string
	maxSize int
	ttl     time.Duration
	hits    int64
	misses  int64
	metrics Metrics
	now     func() time.Time
}

type memoryEntry struct {
	resp      compose.Response
	expiresAt time.Time
}

// NewMemoryCache creates an in-memory cache holding up to maxSize responses
// for ttl each.
func NewMemoryCache(maxSize int, ttl time.Duration) *MemoryCache {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &MemoryCache{
		entries: make(map[string]*memoryEntry),
		order:   make([]string, 0, maxSize),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

// SetMetrics attaches a metrics recorder.
func (c *MemoryCache) SetMetrics(m Metrics) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics = m
}

// Get returns the cached response for key if present and not expired.
func (c *MemoryCache) Get(key string) (compose.Response, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if ok && c.now().Before(entry.expiresAt) {
		c.touch(key)
		c.hits++
		if c.metrics != nil {
			c.metrics.RecordCacheHit("memory")
		}
		return entry.resp, true
	}
	if ok {
		// Expired: evict lazily.
		delete(c.entries, key)
		c.removeFromOrder(key)
	}
	c.misses++
	if c.metrics != nil {
		c.metrics.RecordCacheMiss("memory")
	}
	return compose.Response{}, false
}

// Set stores a response under key, evicting the least recently used entry
// when the cache is full.
func (c *MemoryCache) Set(key string, resp compose.Response) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; exists {
		c.entries[key].resp = resp
		c.entries[key].expiresAt = c.now().Add(c.ttl)
		c.touch(key)
		return
	}

	if len(c.entries) >= c.maxSize {
		c.evictOldest()
	}

	c.entries[key] = &memoryEntry{
		resp:      resp,
		expiresAt: c.now().Add(c.ttl),
	}
	c.order = append(c.order, key)

	if c.metrics != nil {
		c.metrics.UpdateCacheSize("memory", len(c.entries))
	}
}

// Stats returns current cache statistics.
func (c *MemoryCache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{
		Size:    len(c.entries),
		MaxSize: c.maxSize,
		Hits:    c.hits,
		Misses:  c.misses,
	}
}

// Clear drops all entries. Hit and miss counters survive so operational
// stats stay meaningful across a flush.
func (c *MemoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*memoryEntry)
	c.order = c.order[:0]
	if c.metrics != nil {
		c.metrics.UpdateCacheSize("memory", 0)
	}
}

// Close is a no-op for the in-memory cache.
func (c *MemoryCache) Close() error { return nil }

// touch moves key to the end of the LRU order. Caller must hold the lock.
func (c *MemoryCache) touch(key string) {
	c.removeFromOrder(key)
	c.order = append(c.order, key)
}

func (c *MemoryCache) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

// evictOldest removes the least recently used entry. Caller must hold the lock.
func (c *MemoryCache) evictOldest() {
	if len(c.order) == 0 {
		return
	}
	oldest := c.order[0]
	c.order = c.order[1:]
	delete(c.entries, oldest)
}
