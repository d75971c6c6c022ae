package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/raadyn/kb-retrieval/internal/entity"
	"github.com/raadyn/kb-retrieval/internal/pkg/vectormath"
)

// CachedResult is one past query's outcome: the result set it produced, the
// embedding it was matched under, and a hit counter kept for observability.
type CachedResult struct {
	Results   []entity.ScoredChunk
	Embedding []float64
	CreatedAt time.Time
	HitCount  int
}

// SemanticCache returns previously computed result sets for queries whose
// embedding is similar enough to a past query's, scoped per tenant. Entries
// live in per-tenant insertion-order lists; insertion beyond capacity evicts
// the tenant's oldest entry, and expired entries are dropped lazily during
// the scan. The scan is linear, which holds up at the configured per-tenant
// capacities (low hundreds).
type SemanticCache struct {
	mu        sync.Mutex
	results   map[string]*CachedResult
	perTenant map[string][]tenantEntry
	capacity  int
	threshold float64
	ttl       time.Duration
	now       func() time.Time
}

type tenantEntry struct {
	key       string
	embedding []float64
}

func NewSemanticCache(capacity int, threshold float64, ttl time.Duration) *SemanticCache {
	if capacity <= 0 {
		capacity = 500
	}
	if threshold <= 0 {
		threshold = 0.92
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &SemanticCache{
		results:   make(map[string]*CachedResult),
		perTenant: make(map[string][]tenantEntry),
		capacity:  capacity,
		threshold: threshold,
		ttl:       ttl,
		now:       time.Now,
	}
}

func resultKey(tenantID, query string) string {
	hash := sha256.Sum256([]byte(tenantID + ":" + query))
	return hex.EncodeToString(hash[:8])
}

// FindSimilar returns the tenant's cached result whose stored embedding is
// most similar to queryEmbedding, provided that similarity clears the
// threshold. The winner's hit counter is incremented.
func (c *SemanticCache) FindSimilar(tenantID string, queryEmbedding []float64) (*CachedResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	list, ok := c.perTenant[tenantID]
	if !ok {
		return nil, false
	}

	var (
		best     *CachedResult
		bestSim  float64
		survived = list[:0]
	)

	for _, e := range list {
		cached, ok := c.results[e.key]
		if !ok {
			continue
		}

		if c.now().Sub(cached.CreatedAt) > c.ttl {
			delete(c.results, e.key)
			continue
		}

		survived = append(survived, e)

		sim := vectormath.Cosine(queryEmbedding, e.embedding)
		if sim >= c.threshold && sim > bestSim {
			bestSim = sim
			best = cached
		}
	}
	c.perTenant[tenantID] = survived

	if best == nil {
		return nil, false
	}

	best.HitCount++
	return best, true
}

// Store caches a query's results for the tenant, evicting the tenant's
// oldest entries once its list is at capacity.
func (c *SemanticCache) Store(tenantID, query string, queryEmbedding []float64, results []entity.ScoredChunk) {
	key := resultKey(tenantID, query)

	c.mu.Lock()
	defer c.mu.Unlock()

	list := c.perTenant[tenantID]
	for i, e := range list {
		if e.key == key {
			list[i].embedding = queryEmbedding
			c.results[key] = &CachedResult{
				Results:   results,
				Embedding: queryEmbedding,
				CreatedAt: c.now(),
			}
			return
		}
	}
	for len(list) >= c.capacity {
		oldest := list[0]
		list = list[1:]
		delete(c.results, oldest.key)
	}

	c.results[key] = &CachedResult{
		Results:   results,
		Embedding: queryEmbedding,
		CreatedAt: c.now(),
	}
	c.perTenant[tenantID] = append(list, tenantEntry{key: key, embedding: queryEmbedding})
}

// ClearTenant removes every cached result belonging to the tenant.
func (c *SemanticCache) ClearTenant(tenantID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, e := range c.perTenant[tenantID] {
		delete(c.results, e.key)
	}
	delete(c.perTenant, tenantID)
}

// Snapshot reports entry count, accumulated per-entry hits, and the number
// of tenants holding at least one entry.
func (c *SemanticCache) Snapshot() (entries int, hits int64, tenants int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, r := range c.results {
		hits += int64(r.HitCount)
	}
	return len(c.results), hits, len(c.perTenant)
}
