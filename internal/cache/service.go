package cache

import (
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/raadyn/kb-retrieval/internal/entity"
)

// Config carries the cache tier tuning knobs.
type Config struct {
	EmbeddingCapacity int
	EmbeddingTTL      time.Duration
	SemanticCapacity  int
	SemanticThreshold float64
	SemanticTTL       time.Duration
	SessionIdleWindow time.Duration
}

// Service bundles the three cache tiers behind one explicitly constructed
// object. It is created once at startup and handed to the use cases; there
// is no package-level instance.
type Service struct {
	embeddings *EmbeddingCache
	semantic   *SemanticCache
	sessions   *SessionTable
	logger     *zap.Logger

	embeddingHits   atomic.Int64
	embeddingMisses atomic.Int64
	semanticHits    atomic.Int64
	semanticMisses  atomic.Int64
}

func NewService(cfg Config, logger *zap.Logger) *Service {
	return &Service{
		embeddings: NewEmbeddingCache(cfg.EmbeddingCapacity, cfg.EmbeddingTTL),
		semantic:   NewSemanticCache(cfg.SemanticCapacity, cfg.SemanticThreshold, cfg.SemanticTTL),
		sessions:   NewSessionTable(cfg.SessionIdleWindow),
		logger:     logger,
	}
}

// GetEmbedding returns the cached embedding for the query, counting the
// lookup as a hit or miss.
func (s *Service) GetEmbedding(query string) ([]float64, bool) {
	vector, ok := s.embeddings.Get(query)
	if ok {
		s.embeddingHits.Add(1)
	} else {
		s.embeddingMisses.Add(1)
	}
	return vector, ok
}

// PutEmbedding caches the embedding for a query.
func (s *Service) PutEmbedding(query string, vector []float64) {
	s.embeddings.Put(query, vector)
}

// FindResults returns the result set of a semantically similar past query
// for the tenant, counting the lookup as a hit or miss.
func (s *Service) FindResults(tenantID string, queryEmbedding []float64) ([]entity.ScoredChunk, bool) {
	cached, ok := s.semantic.FindSimilar(tenantID, queryEmbedding)
	if !ok {
		s.semanticMisses.Add(1)
		return nil, false
	}

	s.semanticHits.Add(1)
	s.logger.Debug("semantic cache hit",
		zap.String("tenant_id", tenantID),
		zap.Int("hit_count", cached.HitCount),
		zap.Int("results", len(cached.Results)),
	)
	return cached.Results, true
}

// StoreResults caches a query's result set for the tenant.
func (s *Service) StoreResults(tenantID, query string, queryEmbedding []float64, results []entity.ScoredChunk) {
	s.semantic.Store(tenantID, query, queryEmbedding, results)
}

// Sessions exposes the session context table.
func (s *Service) Sessions() *SessionTable {
	return s.sessions
}

// ClearTenant drops the tenant's semantic cache entries and pre-warmed
// sessions. Embedding cache entries carry no tenant data and are left alone.
func (s *Service) ClearTenant(tenantID string) {
	s.semantic.ClearTenant(tenantID)
	s.sessions.ClearTenant(tenantID)
}

// Stats returns the cache observability snapshot.
func (s *Service) Stats() entity.CacheStats {
	embHits := s.embeddingHits.Load()
	embMisses := s.embeddingMisses.Load()
	semHits := s.semanticHits.Load()
	semMisses := s.semanticMisses.Load()

	entries, _, tenants := s.semantic.Snapshot()

	return entity.CacheStats{
		EmbeddingCache: entity.EmbeddingCacheStats{
			Size:    s.embeddings.Len(),
			Hits:    embHits,
			Misses:  embMisses,
			HitRate: hitRate(embHits, embMisses),
		},
		SemanticCache: entity.SemanticCacheStats{
			Entries: entries,
			Hits:    semHits,
			Misses:  semMisses,
			HitRate: hitRate(semHits, semMisses),
			Tenants: tenants,
		},
		SessionContexts: s.sessions.Len(),
	}
}

func hitRate(hits, misses int64) float64 {
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}
