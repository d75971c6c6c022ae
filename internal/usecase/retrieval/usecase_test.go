package retrieval

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/raadyn/kb-retrieval/internal/cache"
	"github.com/raadyn/kb-retrieval/internal/config"
	"github.com/raadyn/kb-retrieval/internal/entity"
	"github.com/raadyn/kb-retrieval/internal/integration/embedding"
	"github.com/raadyn/kb-retrieval/internal/integration/vectorindex"
	"github.com/raadyn/kb-retrieval/internal/usecase/ingestion"
	"github.com/raadyn/kb-retrieval/internal/usecase/tenant"
)

type stubTenantRepo map[string]*entity.Tenant

func (r stubTenantRepo) CreateTenant(_ context.Context, t entity.Tenant) (*entity.Tenant, error) {
	if _, ok := r[t.ID]; ok {
		return nil, entity.ErrTenantExists
	}
	r[t.ID] = &t
	return &t, nil
}

func (r stubTenantRepo) GetTenant(_ context.Context, id string) (*entity.Tenant, error) {
	t, ok := r[id]
	if !ok {
		return nil, entity.ErrTenantNotFound
	}
	return t, nil
}

// recordingIndex counts index queries so tests can tell which cache tier
// served a request.
type recordingIndex struct {
	*vectorindex.MockConnector
	queries int
}

func (r *recordingIndex) Query(ctx context.Context, namespace string, vector []float64, topK int, filter entity.VectorFilter) ([]entity.VectorMatch, error) {
	r.queries++
	return r.MockConnector.Query(ctx, namespace, vector, topK, filter)
}

type docRecord struct {
	doc    *entity.Document
	chunks []entity.Chunk
}

type stubDocumentRepo struct {
	records []docRecord
}

func (r *stubDocumentRepo) FindByContent(_ context.Context, tenantID, filename, contentHash string) (*entity.Document, error) {
	for _, rec := range r.records {
		if rec.doc.TenantID == tenantID && rec.doc.Filename == filename && rec.doc.ContentHash == contentHash {
			return rec.doc, nil
		}
	}
	return nil, entity.ErrDocumentNotFound
}

func (r *stubDocumentRepo) CreateWithChunks(ctx context.Context, doc *entity.Document, chunks []entity.Chunk, beforeCommit func(ctx context.Context) error) (*entity.Document, error) {
	if beforeCommit != nil {
		if err := beforeCommit(ctx); err != nil {
			return nil, err
		}
	}
	r.records = append(r.records, docRecord{doc: doc, chunks: chunks})
	return doc, nil
}

func (r *stubDocumentRepo) ListDocuments(_ context.Context, tenantID, topic string) ([]*entity.Document, error) {
	var docs []*entity.Document
	for _, rec := range r.records {
		if rec.doc.TenantID == tenantID && (topic == "" || rec.doc.Topic == topic) {
			docs = append(docs, rec.doc)
		}
	}
	return docs, nil
}

func (r *stubDocumentRepo) ChunkPointerIDs(_ context.Context, tenantID, documentID string) ([]string, error) {
	for _, rec := range r.records {
		if rec.doc.TenantID == tenantID && rec.doc.ID == documentID {
			var ids []string
			for _, chunk := range rec.chunks {
				ids = append(ids, chunk.PointerID)
			}
			return ids, nil
		}
	}
	return nil, entity.ErrDocumentNotFound
}

func (r *stubDocumentRepo) DeleteDocument(_ context.Context, tenantID, documentID string) error {
	for i, rec := range r.records {
		if rec.doc.TenantID == tenantID && rec.doc.ID == documentID {
			r.records = append(r.records[:i], r.records[i+1:]...)
			return nil
		}
	}
	return entity.ErrDocumentNotFound
}

func (r *stubDocumentRepo) DeleteTenantData(_ context.Context, tenantID string) error {
	kept := r.records[:0]
	for _, rec := range r.records {
		if rec.doc.TenantID != tenantID {
			kept = append(kept, rec)
		}
	}
	r.records = kept
	return nil
}

func (r *stubDocumentRepo) CountDocuments(_ context.Context, tenantID string) (int, error) {
	count := 0
	for _, rec := range r.records {
		if rec.doc.TenantID == tenantID {
			count++
		}
	}
	return count, nil
}

func (r *stubDocumentRepo) CountChunks(_ context.Context, tenantID string) (int, error) {
	count := 0
	for _, rec := range r.records {
		if rec.doc.TenantID == tenantID {
			count += len(rec.chunks)
		}
	}
	return count, nil
}

func (r *stubDocumentRepo) TopicCounts(_ context.Context, tenantID string) (map[string]int, error) {
	counts := make(map[string]int)
	for _, rec := range r.records {
		if rec.doc.TenantID == tenantID {
			counts[rec.doc.Topic]++
		}
	}
	return counts, nil
}

type fixture struct {
	tenants   stubTenantRepo
	embedder  *embedding.MockConnector
	index     *recordingIndex
	cache     *cache.Service
	retrieval *RetrievalUsecase
}

func retrievalConfig() config.RetrievalConfig {
	return config.RetrievalConfig{
		TopKDefault:             5,
		SessionMatchThreshold:   0.70,
		SessionInactivityWindow: time.Hour,
		SessionSweepInterval:    time.Minute,
		PrewarmTopKPerQuery:     3,
	}
}

func newFixture(t *testing.T, warmupQueries []string) *fixture {
	t.Helper()

	tenants := stubTenantRepo{
		"acme": {ID: "acme", Name: "Acme", Topics: []string{"playbooks", "compliance"}},
		"bets": {ID: "bets", Name: "Bets", Topics: []string{"playbooks"}},
	}
	embedder := embedding.NewMockConnector(64, zap.NewNop())
	index := &recordingIndex{MockConnector: vectorindex.NewMockConnector(zap.NewNop())}
	cacheService := cache.NewService(cache.Config{
		EmbeddingCapacity: 100,
		EmbeddingTTL:      time.Hour,
		SemanticCapacity:  100,
		SemanticThreshold: 0.92,
		SemanticTTL:       time.Hour,
		SessionIdleWindow: time.Hour,
	}, zap.NewNop())

	uc := NewUsecase(tenants, embedder, index, cacheService, retrievalConfig(), warmupQueries, zap.NewNop())

	return &fixture{
		tenants:   tenants,
		embedder:  embedder,
		index:     index,
		cache:     cacheService,
		retrieval: uc,
	}
}

// seed upserts one vector per text into the tenant's namespace.
func (f *fixture) seed(t *testing.T, tenantID, topic string, texts ...string) {
	t.Helper()
	ctx := context.Background()

	vectors := make([]entity.Vector, 0, len(texts))
	for i, text := range texts {
		vector, err := f.embedder.Embed(ctx, text)
		require.NoError(t, err)
		vectors = append(vectors, entity.Vector{
			PointerID: fmt.Sprintf("%s_seed_%d", tenantID, i),
			Values:    vector,
			Metadata: entity.VectorMetadata{
				TenantID: tenantID,
				Topic:    topic,
				Filename: "seed.txt",
				Content:  text,
			},
		})
	}
	require.NoError(t, f.index.Upsert(ctx, entity.TenantNamespace(tenantID), vectors))
}

func TestRetrieveValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	_, err := f.retrieval.Retrieve(ctx, "missing", &entity.RetrieveRequest{Query: "q"})
	assert.ErrorIs(t, err, entity.ErrTenantNotFound)

	_, err = f.retrieval.Retrieve(ctx, "acme", &entity.RetrieveRequest{Query: "  "})
	assert.ErrorIs(t, err, entity.ErrEmptyQuery)

	_, err = f.retrieval.Retrieve(ctx, "acme", &entity.RetrieveRequest{
		Query:  "q",
		Topics: []string{"gossip"},
	})
	assert.ErrorIs(t, err, entity.ErrUnknownTopic)
}

func TestRetrieveServesRepeatQueryFromSemanticCache(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.seed(t, "acme", "playbooks", "how to handle pricing objections", "discovery call checklist")

	first, err := f.retrieval.Retrieve(ctx, "acme", &entity.RetrieveRequest{
		Query: "how to handle pricing objections",
	})
	require.NoError(t, err)
	require.NotEmpty(t, first.Results)
	assert.Equal(t, "how to handle pricing objections", first.Results[0].Content)
	assert.Equal(t, 1, f.index.queries)

	// The identical query is answered without touching the index.
	second, err := f.retrieval.Retrieve(ctx, "acme", &entity.RetrieveRequest{
		Query: "how to handle  pricing objections",
	})
	require.NoError(t, err)
	assert.Equal(t, first.Results, second.Results)
	assert.Equal(t, 1, f.index.queries)

	// An unrelated query is not close enough and goes to the index.
	_, err = f.retrieval.Retrieve(ctx, "acme", &entity.RetrieveRequest{
		Query: "entirely different compliance question",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, f.index.queries)
}

func TestRetrieveTopicFilterBypassesSemanticCache(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.seed(t, "acme", "playbooks", "playbook content")
	f.seed(t, "acme", "compliance", "compliance content")

	req := &entity.RetrieveRequest{
		Query:  "playbook content",
		Topics: []string{"playbooks"},
	}

	first, err := f.retrieval.Retrieve(ctx, "acme", req)
	require.NoError(t, err)
	require.NotEmpty(t, first.Results)
	for _, result := range first.Results {
		assert.Equal(t, "playbooks", result.Topic)
	}

	// Filtered requests never consult or populate the semantic cache.
	_, err = f.retrieval.Retrieve(ctx, "acme", req)
	require.NoError(t, err)
	assert.Equal(t, 2, f.index.queries)

	stats := f.cache.Stats()
	assert.Zero(t, stats.SemanticCache.Entries)
}

func TestRetrieveTenantIsolation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.seed(t, "acme", "playbooks", "acme confidential playbook")

	resp, err := f.retrieval.Retrieve(ctx, "bets", &entity.RetrieveRequest{
		Query: "acme confidential playbook",
	})
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
}

func TestPrewarmSessionAndServe(t *testing.T) {
	ctx := context.Background()
	warmups := []string{"pricing objections", "discovery call checklist"}
	f := newFixture(t, warmups)
	f.seed(t, "acme", "playbooks",
		"pricing objections",
		"discovery call checklist",
		"cold outreach templates",
	)

	result, err := f.retrieval.PrewarmSession(ctx, "sess-1", &entity.PrewarmRequest{TenantID: "acme"})
	require.NoError(t, err)

	assert.Equal(t, "sess-1", result.SessionID)
	assert.Equal(t, "acme", result.TenantID)
	assert.Equal(t, len(warmups), result.QueriesRun)
	assert.Positive(t, result.ChunksPrewarmed)
	assert.Equal(t, 1, f.cache.Stats().SessionContexts)

	queriesAfterPrewarm := f.index.queries

	// A query matching pre-warmed content is served from the session.
	resp, err := f.retrieval.Retrieve(ctx, "acme", &entity.RetrieveRequest{
		Query:     "pricing objections",
		SessionID: "sess-1",
		TopK:      1,
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "pricing objections", resp.Results[0].Content)
	assert.InDelta(t, 1.0, resp.Results[0].Score, 1e-9)
	assert.Equal(t, queriesAfterPrewarm, f.index.queries)

	// Another tenant's session id gives that session no access.
	resp, err = f.retrieval.Retrieve(ctx, "bets", &entity.RetrieveRequest{
		Query:     "pricing objections",
		SessionID: "sess-1",
	})
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
}

func TestPrewarmDeduplicatesChunks(t *testing.T) {
	ctx := context.Background()
	// Both warmup queries hit the same seeded content.
	warmups := []string{"pricing objections", "pricing  objections"}
	f := newFixture(t, warmups)
	f.seed(t, "acme", "playbooks", "pricing objections")

	result, err := f.retrieval.PrewarmSession(ctx, "sess-1", &entity.PrewarmRequest{TenantID: "acme"})
	require.NoError(t, err)

	assert.Equal(t, 2, result.QueriesRun)
	assert.Equal(t, 1, result.ChunksPrewarmed)
}

func TestPrewarmValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	_, err := f.retrieval.PrewarmSession(ctx, "sess-1", &entity.PrewarmRequest{})
	assert.ErrorIs(t, err, entity.ErrMissingField)

	_, err = f.retrieval.PrewarmSession(ctx, "sess-1", &entity.PrewarmRequest{TenantID: "missing"})
	assert.ErrorIs(t, err, entity.ErrTenantNotFound)
}

func TestClearSessionFallsThroughToIndex(t *testing.T) {
	ctx := context.Background()
	warmups := []string{"pricing objections"}
	f := newFixture(t, warmups)
	f.seed(t, "acme", "playbooks", "pricing objections")

	_, err := f.retrieval.PrewarmSession(ctx, "sess-1", &entity.PrewarmRequest{TenantID: "acme"})
	require.NoError(t, err)

	f.retrieval.ClearSession(ctx, "sess-1")
	assert.Zero(t, f.cache.Stats().SessionContexts)

	before := f.index.queries
	_, err = f.retrieval.Retrieve(ctx, "acme", &entity.RetrieveRequest{
		Query:     "cold outreach advice",
		SessionID: "sess-1",
	})
	require.NoError(t, err)
	assert.Equal(t, before+1, f.index.queries)
}

// TestRetrievalEndToEnd drives the whole pipeline: ingest a document through
// chunking, embedding and indexing, resolve a query against it, observe the
// repeat query served from cache, then reset the tenant and watch the corpus
// disappear.
func TestRetrievalEndToEnd(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	docRepo := &stubDocumentRepo{}

	ingestUC := ingestion.NewUsecase(
		f.tenants,
		docRepo,
		f.embedder,
		f.index,
		config.IngestionConfig{
			ChunkSize:        1000,
			ChunkOverlap:     200,
			UpsertBatchSize:  100,
			MaxDocumentCount: 16,
			MaxDocumentSize:  1 << 20,
		},
		zap.NewNop(),
	)
	tenantUC := tenant.NewUsecase(f.tenants, docRepo, f.index, f.cache, zap.NewNop())

	text := strings.Repeat("A", 800) + strings.Repeat("B", 800) + strings.Repeat("C", 800)

	ingestResp, err := ingestUC.Ingest(ctx, "acme", &entity.IngestRequest{
		Topic: "playbooks",
		Documents: []entity.DocumentText{
			{Filename: "playbook.txt", Text: text},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 3, ingestResp.ChunksWritten)

	middleChunk := text[800:1800]

	resp, err := f.retrieval.Retrieve(ctx, "acme", &entity.RetrieveRequest{
		Query: middleChunk,
		TopK:  1,
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, middleChunk, resp.Results[0].Content)
	assert.InDelta(t, 1.0, resp.Results[0].Score, 1e-6)
	assert.Equal(t, 1, f.index.queries)

	// Asking again is answered from the semantic cache.
	repeat, err := f.retrieval.Retrieve(ctx, "acme", &entity.RetrieveRequest{
		Query: middleChunk,
		TopK:  1,
	})
	require.NoError(t, err)
	assert.Equal(t, resp.Results, repeat.Results)
	assert.Equal(t, 1, f.index.queries)

	// Stats line up with what was ingested.
	stats, err := tenantUC.Stats(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalDocuments)
	assert.Equal(t, 3, stats.TotalChunks)
	assert.Equal(t, map[string]int{"playbooks": 1}, stats.DocumentsByTopic)

	// Reset wipes vectors, metadata and cached results.
	require.NoError(t, tenantUC.ResetTenant(ctx, "acme"))

	after, err := f.retrieval.Retrieve(ctx, "acme", &entity.RetrieveRequest{
		Query: middleChunk,
		TopK:  1,
	})
	require.NoError(t, err)
	assert.Empty(t, after.Results)
	assert.Equal(t, 2, f.index.queries)

	stats, err = tenantUC.Stats(ctx, "acme")
	require.NoError(t, err)
	assert.Zero(t, stats.TotalDocuments)
	assert.Zero(t, stats.TotalChunks)
}
