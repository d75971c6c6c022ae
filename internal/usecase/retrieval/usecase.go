package retrieval

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"

	"github.com/raadyn/kb-retrieval/internal/cache"
	"github.com/raadyn/kb-retrieval/internal/config"
	"github.com/raadyn/kb-retrieval/internal/entity"
	"github.com/raadyn/kb-retrieval/internal/repository"
)

// RetrievalUsecase answers queries through the cache cascade and manages
// pre-warmed session contexts.
type RetrievalUsecase struct {
	tenantRepo    repository.TenantRepository
	embedder      EmbeddingProvider
	index         VectorIndex
	cache         *cache.Service
	cfg           config.RetrievalConfig
	warmupQueries []string
	logger        *zap.Logger
}

// NewUsecase creates a new retrieval use case
func NewUsecase(
	tenantRepo repository.TenantRepository,
	embedder EmbeddingProvider,
	index VectorIndex,
	cacheService *cache.Service,
	cfg config.RetrievalConfig,
	warmupQueries []string,
	logger *zap.Logger,
) *RetrievalUsecase {
	return &RetrievalUsecase{
		tenantRepo:    tenantRepo,
		embedder:      embedder,
		index:         index,
		cache:         cacheService,
		cfg:           cfg,
		warmupQueries: warmupQueries,
		logger:        logger,
	}
}

// Retrieve resolves a query through the cascade: pre-warmed session context,
// then the tenant's semantic cache, then the similarity index. The semantic
// cache is bypassed whenever a topic filter is present, since cached result
// sets are not filtered.
func (uc *RetrievalUsecase) Retrieve(
	ctx context.Context,
	tenantID string,
	req *entity.RetrieveRequest,
) (*entity.RetrieveResponse, error) {
	tenant, err := uc.tenantRepo.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, entity.ErrEmptyQuery
	}
	for _, topic := range req.Topics {
		if !tenant.HasTopic(topic) {
			return nil, fmt.Errorf("%w: %q", entity.ErrUnknownTopic, topic)
		}
	}

	topK := req.TopK
	if topK <= 0 {
		topK = uc.cfg.TopKDefault
	}

	embedding, err := uc.queryEmbedding(ctx, query)
	if err != nil {
		return nil, err
	}

	if req.SessionID != "" {
		hits := uc.cache.Sessions().Search(
			req.SessionID, tenantID, embedding, topK, uc.cfg.SessionMatchThreshold)
		if len(hits) > 0 {
			ctxzap.Debug(ctx, "served from session context",
				zap.String("session_id", req.SessionID),
				zap.Int("results", len(hits)),
			)
			return &entity.RetrieveResponse{Results: hits}, nil
		}
	}

	if len(req.Topics) == 0 {
		if results, ok := uc.cache.FindResults(tenantID, embedding); ok {
			return &entity.RetrieveResponse{Results: results}, nil
		}
	}

	matches, err := uc.index.Query(
		ctx,
		entity.TenantNamespace(tenantID),
		embedding,
		topK,
		entity.VectorFilter{TenantID: tenantID, Topics: req.Topics},
	)
	if err != nil {
		return nil, fmt.Errorf("%w: query: %v", entity.ErrIndex, err)
	}

	results := matchesToChunks(matches)
	if len(req.Topics) == 0 && len(results) > 0 {
		uc.cache.StoreResults(tenantID, query, embedding, results)
	}

	return &entity.RetrieveResponse{Results: results}, nil
}

// PrewarmSession runs the warmup query set against the tenant's index and
// installs the deduplicated union of results as the session's working set.
// A failing warmup query is logged and skipped; pre-warming is best effort.
func (uc *RetrievalUsecase) PrewarmSession(
	ctx context.Context,
	sessionID string,
	req *entity.PrewarmRequest,
) (*entity.PrewarmResult, error) {
	if req.TenantID == "" {
		return nil, fmt.Errorf("%w: tenant_id", entity.ErrMissingField)
	}
	if _, err := uc.tenantRepo.GetTenant(ctx, req.TenantID); err != nil {
		return nil, err
	}

	start := time.Now()
	namespace := entity.TenantNamespace(req.TenantID)

	var (
		chunks     []entity.ScoredChunk
		embeddings [][]float64
		queriesRun int
	)
	seen := make(map[string]struct{})

	for _, warmup := range uc.warmupQueries {
		embedding, err := uc.queryEmbedding(ctx, warmup)
		if err != nil {
			ctxzap.Warn(ctx, "warmup query embedding failed",
				zap.String("query", warmup), zap.Error(err))
			continue
		}

		matches, err := uc.index.Query(ctx, namespace, embedding, uc.cfg.PrewarmTopKPerQuery,
			entity.VectorFilter{TenantID: req.TenantID})
		if err != nil {
			ctxzap.Warn(ctx, "warmup query failed",
				zap.String("query", warmup), zap.Error(err))
			continue
		}
		queriesRun++

		for _, match := range matches {
			if len(match.Values) == 0 {
				continue
			}
			key := contentKey(match.Metadata.Content)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}

			chunks = append(chunks, entity.ScoredChunk{
				Content:  match.Metadata.Content,
				Topic:    match.Metadata.Topic,
				Filename: match.Metadata.Filename,
				Score:    match.Score,
			})
			embeddings = append(embeddings, match.Values)
		}
	}

	uc.cache.Sessions().Set(sessionID, req.TenantID, chunks, embeddings)

	result := &entity.PrewarmResult{
		SessionID:       sessionID,
		TenantID:        req.TenantID,
		ChunksPrewarmed: len(chunks),
		QueriesRun:      queriesRun,
		ElapsedMs:       time.Since(start).Milliseconds(),
	}

	ctxzap.Info(ctx, "session pre-warmed",
		zap.String("session_id", sessionID),
		zap.String("tenant_id", req.TenantID),
		zap.Int("chunks", result.ChunksPrewarmed),
		zap.Int("queries_run", result.QueriesRun),
		zap.Int64("elapsed_ms", result.ElapsedMs),
	)

	return result, nil
}

// ClearSession drops a session's pre-warmed context. Unknown sessions are
// cleared silently.
func (uc *RetrievalUsecase) ClearSession(ctx context.Context, sessionID string) {
	uc.cache.Sessions().Clear(sessionID)
	ctxzap.Info(ctx, "session cleared", zap.String("session_id", sessionID))
}

// CacheStats returns the cache observability snapshot.
func (uc *RetrievalUsecase) CacheStats() entity.CacheStats {
	return uc.cache.Stats()
}

// queryEmbedding returns the query's embedding, consulting the exact-match
// cache before calling the provider.
func (uc *RetrievalUsecase) queryEmbedding(ctx context.Context, query string) ([]float64, error) {
	if vector, ok := uc.cache.GetEmbedding(query); ok {
		return vector, nil
	}

	vector, err := uc.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %v", entity.ErrProvider, err)
	}

	uc.cache.PutEmbedding(query, vector)
	return vector, nil
}

func matchesToChunks(matches []entity.VectorMatch) []entity.ScoredChunk {
	results := make([]entity.ScoredChunk, 0, len(matches))
	for _, match := range matches {
		results = append(results, entity.ScoredChunk{
			Content:  match.Metadata.Content,
			Topic:    match.Metadata.Topic,
			Filename: match.Metadata.Filename,
			Score:    match.Score,
		})
	}
	return results
}

func contentKey(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
