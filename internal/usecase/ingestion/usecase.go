package ingestion

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"

	"github.com/raadyn/kb-retrieval/internal/config"
	"github.com/raadyn/kb-retrieval/internal/entity"
	"github.com/raadyn/kb-retrieval/internal/repository"
)

// IngestionUsecase turns raw document text into indexed, retrievable chunks.
type IngestionUsecase struct {
	tenantRepo   repository.TenantRepository
	documentRepo repository.DocumentRepository
	embedder     EmbeddingProvider
	index        VectorIndex
	cfg          config.IngestionConfig
	logger       *zap.Logger
}

// NewUsecase creates a new ingestion use case
func NewUsecase(
	tenantRepo repository.TenantRepository,
	documentRepo repository.DocumentRepository,
	embedder EmbeddingProvider,
	index VectorIndex,
	cfg config.IngestionConfig,
	logger *zap.Logger,
) *IngestionUsecase {
	return &IngestionUsecase{
		tenantRepo:   tenantRepo,
		documentRepo: documentRepo,
		embedder:     embedder,
		index:        index,
		cfg:          cfg,
		logger:       logger,
	}
}

// Ingest runs the full pipeline for a batch of documents: duplicate check,
// chunking, embedding, then a single transaction per document that writes
// metadata and upserts vectors. One failing document does not abort the
// batch; its error is reported in the per-file results.
func (uc *IngestionUsecase) Ingest(
	ctx context.Context,
	tenantID string,
	req *entity.IngestRequest,
) (*entity.IngestResponse, error) {
	tenant, err := uc.tenantRepo.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	if err := uc.validateRequest(tenant, req); err != nil {
		return nil, err
	}

	resp := &entity.IngestResponse{
		Files: make([]entity.IngestFileResult, 0, len(req.Documents)),
	}
	for i, doc := range req.Documents {
		filename := doc.FilenameOrDefault(i)

		result, err := uc.ingestDocument(ctx, tenant, req.Topic, filename, doc.Text)
		if err != nil {
			ctxzap.Warn(ctx, "document ingestion failed",
				zap.String("tenant_id", tenantID),
				zap.String("filename", filename),
				zap.Error(err),
			)
			resp.Files = append(resp.Files, entity.IngestFileResult{
				Filename: filename,
				Error:    err.Error(),
			})
			continue
		}

		resp.ChunksWritten += result.Chunks
		resp.Files = append(resp.Files, *result)
	}

	ctxzap.Info(ctx, "ingestion finished",
		zap.String("tenant_id", tenantID),
		zap.String("topic", req.Topic),
		zap.Int("documents", len(req.Documents)),
		zap.Int("chunks_written", resp.ChunksWritten),
	)

	return resp, nil
}

func (uc *IngestionUsecase) validateRequest(tenant *entity.Tenant, req *entity.IngestRequest) error {
	if len(req.Documents) == 0 {
		return fmt.Errorf("%w: documents", entity.ErrMissingField)
	}
	if len(req.Documents) > uc.cfg.MaxDocumentCount {
		return fmt.Errorf("%w: at most %d documents per request",
			entity.ErrTooManyDocuments, uc.cfg.MaxDocumentCount)
	}
	if !tenant.HasTopic(req.Topic) {
		return fmt.Errorf("%w: %q", entity.ErrUnknownTopic, req.Topic)
	}
	for i, doc := range req.Documents {
		if int64(len(doc.Text)) > uc.cfg.MaxDocumentSize {
			return fmt.Errorf("%w: %s exceeds %d bytes",
				entity.ErrDocumentTooLarge, doc.FilenameOrDefault(i), uc.cfg.MaxDocumentSize)
		}
	}
	return nil
}

func (uc *IngestionUsecase) ingestDocument(
	ctx context.Context,
	tenant *entity.Tenant,
	topic string,
	filename string,
	text string,
) (*entity.IngestFileResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, entity.ErrEmptyDocument
	}

	contentHash := ContentHash(text)

	existing, err := uc.documentRepo.FindByContent(ctx, tenant.ID, filename, contentHash)
	if err != nil && !errors.Is(err, entity.ErrDocumentNotFound) {
		return nil, fmt.Errorf("check existing document: %w", err)
	}
	if existing != nil {
		ctxzap.Info(ctx, "document already ingested, skipping",
			zap.String("tenant_id", tenant.ID),
			zap.String("filename", filename),
			zap.String("document_id", existing.ID),
		)
		return &entity.IngestFileResult{Filename: filename, Skipped: true}, nil
	}

	chunkSize, chunkOverlap := uc.chunkParams(tenant)
	texts := SplitText(text, chunkSize, chunkOverlap)
	if len(texts) == 0 {
		return nil, entity.ErrEmptyDocument
	}

	embeddings, err := uc.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: embed chunks: %v", entity.ErrProvider, err)
	}
	if len(embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d chunks",
			entity.ErrProvider, len(embeddings), len(texts))
	}

	docID := uuid.New().String()
	doc := &entity.Document{
		ID:          docID,
		TenantID:    tenant.ID,
		Filename:    filename,
		Topic:       topic,
		ContentHash: contentHash,
		ChunkCount:  len(texts),
	}

	chunks := make([]entity.Chunk, len(texts))
	vectors := make([]entity.Vector, len(texts))
	for j, chunkText := range texts {
		pointerID := fmt.Sprintf("doc_%s_chunk_%d_%s", docID, j, uuid.NewString()[:8])
		chunks[j] = entity.Chunk{
			ID:         uuid.New().String(),
			DocumentID: docID,
			TenantID:   tenant.ID,
			ChunkIndex: j,
			Content:    chunkText,
			Topic:      topic,
			PointerID:  pointerID,
		}
		vectors[j] = entity.Vector{
			PointerID: pointerID,
			Values:    embeddings[j],
			Metadata: entity.VectorMetadata{
				DocumentID: docID,
				TenantID:   tenant.ID,
				ChunkIndex: j,
				Topic:      topic,
				Filename:   filename,
				Content:    metadataContent(chunkText),
			},
		}
	}

	namespace := entity.TenantNamespace(tenant.ID)
	_, err = uc.documentRepo.CreateWithChunks(ctx, doc, chunks, func(txCtx context.Context) error {
		if err := uc.upsertBatched(txCtx, namespace, vectors); err != nil {
			return fmt.Errorf("%w: upsert vectors: %v", entity.ErrIndex, err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, entity.ErrDuplicateDocument) {
			return &entity.IngestFileResult{Filename: filename, Skipped: true}, nil
		}
		return nil, err
	}

	ctxzap.Info(ctx, "document ingested",
		zap.String("tenant_id", tenant.ID),
		zap.String("document_id", docID),
		zap.String("filename", filename),
		zap.Int("chunks", len(chunks)),
	)

	return &entity.IngestFileResult{Filename: filename, Chunks: len(chunks)}, nil
}

// chunkParams resolves chunking dimensions, letting a tenant override the
// service defaults via its config.
func (uc *IngestionUsecase) chunkParams(tenant *entity.Tenant) (size, overlap int) {
	size, overlap = uc.cfg.ChunkSize, uc.cfg.ChunkOverlap
	if tenant.Config.ChunkSize > 0 {
		size = tenant.Config.ChunkSize
	}
	if tenant.Config.ChunkOverlap > 0 && tenant.Config.ChunkOverlap < size {
		overlap = tenant.Config.ChunkOverlap
	}
	return size, overlap
}

func (uc *IngestionUsecase) upsertBatched(ctx context.Context, namespace string, vectors []entity.Vector) error {
	batchSize := uc.cfg.UpsertBatchSize
	if batchSize <= 0 {
		batchSize = len(vectors)
	}
	for start := 0; start < len(vectors); start += batchSize {
		end := start + batchSize
		if end > len(vectors) {
			end = len(vectors)
		}
		if err := uc.index.Upsert(ctx, namespace, vectors[start:end]); err != nil {
			return err
		}
	}
	return nil
}

// metadataMaxContent caps the chunk text denormalized into index metadata.
// Default chunking stays under it; oversized tenant overrides get truncated
// rather than rejected by the index's metadata size limit.
const metadataMaxContent = 1000

func metadataContent(text string) string {
	if len(text) <= metadataMaxContent {
		return text
	}
	cut := metadataMaxContent
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}

// ContentHash returns the hex SHA-256 of a document's text, used to detect
// re-submissions of identical content.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
