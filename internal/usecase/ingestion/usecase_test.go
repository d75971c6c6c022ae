package ingestion

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/raadyn/kb-retrieval/internal/config"
	"github.com/raadyn/kb-retrieval/internal/entity"
	"github.com/raadyn/kb-retrieval/internal/integration/embedding"
	"github.com/raadyn/kb-retrieval/internal/integration/vectorindex"
)

type memTenantRepo struct {
	tenants map[string]*entity.Tenant
}

func newMemTenantRepo(tenants ...*entity.Tenant) *memTenantRepo {
	r := &memTenantRepo{tenants: make(map[string]*entity.Tenant)}
	for _, tenant := range tenants {
		r.tenants[tenant.ID] = tenant
	}
	return r
}

func (r *memTenantRepo) CreateTenant(_ context.Context, tenant entity.Tenant) (*entity.Tenant, error) {
	if _, ok := r.tenants[tenant.ID]; ok {
		return nil, entity.ErrTenantExists
	}
	r.tenants[tenant.ID] = &tenant
	return &tenant, nil
}

func (r *memTenantRepo) GetTenant(_ context.Context, id string) (*entity.Tenant, error) {
	tenant, ok := r.tenants[id]
	if !ok {
		return nil, entity.ErrTenantNotFound
	}
	return tenant, nil
}

type memDocumentRepo struct {
	docs   map[string]*entity.Document
	chunks map[string][]entity.Chunk
}

func newMemDocumentRepo() *memDocumentRepo {
	return &memDocumentRepo{
		docs:   make(map[string]*entity.Document),
		chunks: make(map[string][]entity.Chunk),
	}
}

func (r *memDocumentRepo) FindByContent(_ context.Context, tenantID, filename, contentHash string) (*entity.Document, error) {
	for _, doc := range r.docs {
		if doc.TenantID == tenantID && doc.Filename == filename && doc.ContentHash == contentHash {
			return doc, nil
		}
	}
	return nil, entity.ErrDocumentNotFound
}

func (r *memDocumentRepo) CreateWithChunks(ctx context.Context, doc *entity.Document, chunks []entity.Chunk, beforeCommit func(ctx context.Context) error) (*entity.Document, error) {
	for _, existing := range r.docs {
		if existing.TenantID == doc.TenantID &&
			existing.Filename == doc.Filename &&
			existing.ContentHash == doc.ContentHash {
			return nil, entity.ErrDuplicateDocument
		}
	}
	if beforeCommit != nil {
		if err := beforeCommit(ctx); err != nil {
			return nil, err
		}
	}
	r.docs[doc.ID] = doc
	r.chunks[doc.ID] = chunks
	return doc, nil
}

func (r *memDocumentRepo) ListDocuments(_ context.Context, tenantID, topic string) ([]*entity.Document, error) {
	var docs []*entity.Document
	for _, doc := range r.docs {
		if doc.TenantID != tenantID {
			continue
		}
		if topic != "" && doc.Topic != topic {
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (r *memDocumentRepo) ChunkPointerIDs(_ context.Context, tenantID, documentID string) ([]string, error) {
	doc, ok := r.docs[documentID]
	if !ok || doc.TenantID != tenantID {
		return nil, entity.ErrDocumentNotFound
	}
	var ids []string
	for _, chunk := range r.chunks[documentID] {
		ids = append(ids, chunk.PointerID)
	}
	return ids, nil
}

func (r *memDocumentRepo) DeleteDocument(_ context.Context, tenantID, documentID string) error {
	doc, ok := r.docs[documentID]
	if !ok || doc.TenantID != tenantID {
		return entity.ErrDocumentNotFound
	}
	delete(r.docs, documentID)
	delete(r.chunks, documentID)
	return nil
}

func (r *memDocumentRepo) DeleteTenantData(_ context.Context, tenantID string) error {
	for id, doc := range r.docs {
		if doc.TenantID == tenantID {
			delete(r.docs, id)
			delete(r.chunks, id)
		}
	}
	return nil
}

func (r *memDocumentRepo) CountDocuments(_ context.Context, tenantID string) (int, error) {
	count := 0
	for _, doc := range r.docs {
		if doc.TenantID == tenantID {
			count++
		}
	}
	return count, nil
}

func (r *memDocumentRepo) CountChunks(_ context.Context, tenantID string) (int, error) {
	count := 0
	for id, doc := range r.docs {
		if doc.TenantID == tenantID {
			count += len(r.chunks[id])
		}
	}
	return count, nil
}

func (r *memDocumentRepo) TopicCounts(_ context.Context, tenantID string) (map[string]int, error) {
	counts := make(map[string]int)
	for _, doc := range r.docs {
		if doc.TenantID == tenantID {
			counts[doc.Topic]++
		}
	}
	return counts, nil
}

type failingEmbedder struct{}

func (failingEmbedder) EmbedBatch(context.Context, []string) ([][]float64, error) {
	return nil, errors.New("provider unavailable")
}

type countingIndex struct {
	*vectorindex.MockConnector
	batches []int
}

func (c *countingIndex) Upsert(ctx context.Context, namespace string, vectors []entity.Vector) error {
	c.batches = append(c.batches, len(vectors))
	return c.MockConnector.Upsert(ctx, namespace, vectors)
}

type failingIndex struct{}

func (failingIndex) Upsert(context.Context, string, []entity.Vector) error {
	return errors.New("index unavailable")
}

func testTenant() *entity.Tenant {
	return &entity.Tenant{
		ID:     "acme",
		Name:   "Acme",
		Topics: []string{"playbooks", "compliance"},
	}
}

func testIngestionConfig() config.IngestionConfig {
	return config.IngestionConfig{
		ChunkSize:        1000,
		ChunkOverlap:     200,
		UpsertBatchSize:  100,
		MaxDocumentCount: 16,
		MaxDocumentSize:  1 << 20,
	}
}

func TestIngestPipeline(t *testing.T) {
	ctx := context.Background()
	docRepo := newMemDocumentRepo()
	index := vectorindex.NewMockConnector(zap.NewNop())
	uc := NewUsecase(
		newMemTenantRepo(testTenant()),
		docRepo,
		embedding.NewMockConnector(32, zap.NewNop()),
		index,
		testIngestionConfig(),
		zap.NewNop(),
	)

	resp, err := uc.Ingest(ctx, "acme", &entity.IngestRequest{
		Topic: "playbooks",
		Documents: []entity.DocumentText{
			{Filename: "playbook.txt", Text: strings.Repeat("a", 2400)},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 3, resp.ChunksWritten)
	require.Len(t, resp.Files, 1)
	assert.Equal(t, "playbook.txt", resp.Files[0].Filename)
	assert.Equal(t, 3, resp.Files[0].Chunks)
	assert.Empty(t, resp.Files[0].Error)

	require.Len(t, docRepo.docs, 1)
	for id, doc := range docRepo.docs {
		assert.Equal(t, 3, doc.ChunkCount)
		assert.Equal(t, "playbooks", doc.Topic)
		for j, chunk := range docRepo.chunks[id] {
			assert.Equal(t, j, chunk.ChunkIndex)
			assert.True(t, strings.HasPrefix(chunk.PointerID, "doc_"+id+"_chunk_"),
				"unexpected pointer id %q", chunk.PointerID)
		}
	}

	assert.Equal(t, 3, index.VectorCount(entity.TenantNamespace("acme")))
}

func TestIngestSkipsDuplicateContent(t *testing.T) {
	ctx := context.Background()
	docRepo := newMemDocumentRepo()
	index := vectorindex.NewMockConnector(zap.NewNop())
	uc := NewUsecase(
		newMemTenantRepo(testTenant()),
		docRepo,
		embedding.NewMockConnector(32, zap.NewNop()),
		index,
		testIngestionConfig(),
		zap.NewNop(),
	)

	req := &entity.IngestRequest{
		Topic: "playbooks",
		Documents: []entity.DocumentText{
			{Filename: "playbook.txt", Text: strings.Repeat("a", 2400)},
		},
	}

	first, err := uc.Ingest(ctx, "acme", req)
	require.NoError(t, err)
	require.Equal(t, 3, first.ChunksWritten)

	second, err := uc.Ingest(ctx, "acme", req)
	require.NoError(t, err)

	assert.Zero(t, second.ChunksWritten)
	require.Len(t, second.Files, 1)
	assert.True(t, second.Files[0].Skipped)

	assert.Len(t, docRepo.docs, 1)
	assert.Equal(t, 3, index.VectorCount(entity.TenantNamespace("acme")))
}

func TestIngestValidation(t *testing.T) {
	ctx := context.Background()
	uc := NewUsecase(
		newMemTenantRepo(testTenant()),
		newMemDocumentRepo(),
		embedding.NewMockConnector(32, zap.NewNop()),
		vectorindex.NewMockConnector(zap.NewNop()),
		testIngestionConfig(),
		zap.NewNop(),
	)

	_, err := uc.Ingest(ctx, "missing", &entity.IngestRequest{
		Topic:     "playbooks",
		Documents: []entity.DocumentText{{Text: "x"}},
	})
	assert.ErrorIs(t, err, entity.ErrTenantNotFound)

	_, err = uc.Ingest(ctx, "acme", &entity.IngestRequest{
		Topic:     "gossip",
		Documents: []entity.DocumentText{{Text: "x"}},
	})
	assert.ErrorIs(t, err, entity.ErrUnknownTopic)

	_, err = uc.Ingest(ctx, "acme", &entity.IngestRequest{Topic: "playbooks"})
	assert.ErrorIs(t, err, entity.ErrMissingField)

	docs := make([]entity.DocumentText, 17)
	for i := range docs {
		docs[i] = entity.DocumentText{Text: "x"}
	}
	_, err = uc.Ingest(ctx, "acme", &entity.IngestRequest{Topic: "playbooks", Documents: docs})
	assert.ErrorIs(t, err, entity.ErrTooManyDocuments)
}

func TestIngestEmptyDocumentReportedPerFile(t *testing.T) {
	ctx := context.Background()
	uc := NewUsecase(
		newMemTenantRepo(testTenant()),
		newMemDocumentRepo(),
		embedding.NewMockConnector(32, zap.NewNop()),
		vectorindex.NewMockConnector(zap.NewNop()),
		testIngestionConfig(),
		zap.NewNop(),
	)

	resp, err := uc.Ingest(ctx, "acme", &entity.IngestRequest{
		Topic: "playbooks",
		Documents: []entity.DocumentText{
			{Filename: "blank.txt", Text: "   \n  "},
			{Filename: "real.txt", Text: "actual content worth indexing"},
		},
	})
	require.NoError(t, err)

	require.Len(t, resp.Files, 2)
	assert.NotEmpty(t, resp.Files[0].Error)
	assert.Zero(t, resp.Files[0].Chunks)
	assert.Empty(t, resp.Files[1].Error)
	assert.Equal(t, 1, resp.Files[1].Chunks)
	assert.Equal(t, 1, resp.ChunksWritten)
}

func TestIngestProviderFailureIsReportedPerFile(t *testing.T) {
	ctx := context.Background()
	docRepo := newMemDocumentRepo()
	uc := NewUsecase(
		newMemTenantRepo(testTenant()),
		docRepo,
		failingEmbedder{},
		vectorindex.NewMockConnector(zap.NewNop()),
		testIngestionConfig(),
		zap.NewNop(),
	)

	resp, err := uc.Ingest(ctx, "acme", &entity.IngestRequest{
		Topic: "playbooks",
		Documents: []entity.DocumentText{
			{Filename: "doc.txt", Text: "some content"},
		},
	})
	require.NoError(t, err)

	require.Len(t, resp.Files, 1)
	assert.Contains(t, resp.Files[0].Error, "embed")
	assert.Empty(t, docRepo.docs)
}

func TestIngestIndexFailureRollsBackMetadata(t *testing.T) {
	ctx := context.Background()
	docRepo := newMemDocumentRepo()
	uc := NewUsecase(
		newMemTenantRepo(testTenant()),
		docRepo,
		embedding.NewMockConnector(32, zap.NewNop()),
		failingIndex{},
		testIngestionConfig(),
		zap.NewNop(),
	)

	resp, err := uc.Ingest(ctx, "acme", &entity.IngestRequest{
		Topic: "playbooks",
		Documents: []entity.DocumentText{
			{Filename: "doc.txt", Text: "some content"},
		},
	})
	require.NoError(t, err)

	require.Len(t, resp.Files, 1)
	assert.NotEmpty(t, resp.Files[0].Error)
	assert.Empty(t, docRepo.docs, "metadata must not outlive a failed upsert")
}

func TestIngestBatchesUpserts(t *testing.T) {
	ctx := context.Background()
	index := &countingIndex{MockConnector: vectorindex.NewMockConnector(zap.NewNop())}

	cfg := testIngestionConfig()
	cfg.UpsertBatchSize = 2

	uc := NewUsecase(
		newMemTenantRepo(testTenant()),
		newMemDocumentRepo(),
		embedding.NewMockConnector(32, zap.NewNop()),
		index,
		cfg,
		zap.NewNop(),
	)

	resp, err := uc.Ingest(ctx, "acme", &entity.IngestRequest{
		Topic: "playbooks",
		Documents: []entity.DocumentText{
			{Filename: "doc.txt", Text: strings.Repeat("a", 2400)},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 3, resp.ChunksWritten)

	assert.Equal(t, []int{2, 1}, index.batches)
	assert.Equal(t, 3, index.VectorCount(entity.TenantNamespace("acme")))
}
