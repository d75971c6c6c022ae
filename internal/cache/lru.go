package cache

import (
	"strings"
	"sync"
	"time"
)

// EmbeddingCache is an exact-key LRU from normalized query text to its
// embedding vector. Embeddings are tenant-independent, so the cache is
// shared process-wide. Entries expire after ttl and are removed lazily on
// lookup; a successful Get promotes the entry to most-recently-used.
type EmbeddingCache struct {
	mu       sync.Mutex
	entries  map[string]*embeddingEntry
	order    []string
	capacity int
	ttl      time.Duration
	now      func() time.Time
}

type embeddingEntry struct {
	vector   []float64
	storedAt time.Time
}

func NewEmbeddingCache(capacity int, ttl time.Duration) *EmbeddingCache {
	if capacity <= 0 {
		capacity = 1000
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &EmbeddingCache{
		entries:  make(map[string]*embeddingEntry),
		order:    make([]string, 0, capacity),
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
	}
}

// NormalizeQuery collapses whitespace so trivially reformatted queries share
// one cache entry. Case is preserved: the stored vector was computed from
// the text as written.
func NormalizeQuery(query string) string {
	return strings.Join(strings.Fields(query), " ")
}

// Get returns the cached vector for query, or false if absent or expired.
func (c *EmbeddingCache) Get(query string) ([]float64, bool) {
	key := NormalizeQuery(query)

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}

	if c.now().Sub(entry.storedAt) > c.ttl {
		delete(c.entries, key)
		c.removeFromOrder(key)
		return nil, false
	}

	c.moveToEnd(key)
	return entry.vector, true
}

// Put stores the vector for query, evicting the least-recently-used entry
// once the cache is at capacity.
func (c *EmbeddingCache) Put(query string, vector []float64) {
	key := NormalizeQuery(query)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; ok {
		c.entries[key] = &embeddingEntry{vector: vector, storedAt: c.now()}
		c.moveToEnd(key)
		return
	}

	for len(c.entries) >= c.capacity {
		c.evictOldest()
	}

	c.entries[key] = &embeddingEntry{vector: vector, storedAt: c.now()}
	c.order = append(c.order, key)
}

// Len returns the current entry count.
func (c *EmbeddingCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *EmbeddingCache) evictOldest() {
	if len(c.order) == 0 {
		return
	}
	oldest := c.order[0]
	c.order = c.order[1:]
	delete(c.entries, oldest)
}

func (c *EmbeddingCache) moveToEnd(key string) {
	c.removeFromOrder(key)
	c.order = append(c.order, key)
}

func (c *EmbeddingCache) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}
