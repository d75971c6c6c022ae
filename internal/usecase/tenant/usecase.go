package tenant

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"

	"github.com/raadyn/kb-retrieval/internal/cache"
	"github.com/raadyn/kb-retrieval/internal/entity"
	"github.com/raadyn/kb-retrieval/internal/repository"
)

// TenantUsecase implements tenant administration: provisioning, document
// listing and deletion, corpus reset and stats.
type TenantUsecase struct {
	tenantRepo   repository.TenantRepository
	documentRepo repository.DocumentRepository
	index        VectorIndex
	cache        *cache.Service
	logger       *zap.Logger
}

// NewUsecase creates a new tenant use case
func NewUsecase(
	tenantRepo repository.TenantRepository,
	documentRepo repository.DocumentRepository,
	index VectorIndex,
	cacheService *cache.Service,
	logger *zap.Logger,
) *TenantUsecase {
	return &TenantUsecase{
		tenantRepo:   tenantRepo,
		documentRepo: documentRepo,
		index:        index,
		cache:        cacheService,
		logger:       logger,
	}
}

// InitTenant provisions a tenant. An omitted id is generated; omitted topics
// fall back to the default topic set.
func (uc *TenantUsecase) InitTenant(ctx context.Context, req *entity.CreateTenantRequest) (*entity.Tenant, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name", entity.ErrMissingField)
	}

	id := strings.TrimSpace(req.ID)
	if id == "" {
		id = uuid.New().String()
	}

	topics := req.Topics
	if len(topics) == 0 {
		topics = entity.DefaultTopics
	}
	for _, topic := range topics {
		if strings.TrimSpace(topic) == "" {
			return nil, fmt.Errorf("%w: empty topic", entity.ErrInvalidTenant)
		}
	}

	created, err := uc.tenantRepo.CreateTenant(ctx, entity.Tenant{
		ID:     id,
		Name:   name,
		Topics: topics,
	})
	if err != nil {
		return nil, err
	}

	ctxzap.Info(ctx, "tenant created",
		zap.String("tenant_id", created.ID),
		zap.Strings("topics", created.Topics),
	)

	return created, nil
}

// ListDocuments returns the tenant's documents, optionally filtered by topic.
func (uc *TenantUsecase) ListDocuments(ctx context.Context, tenantID, topic string) (*entity.ListDocumentsResponse, error) {
	tenant, err := uc.tenantRepo.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if topic != "" && !tenant.HasTopic(topic) {
		return nil, fmt.Errorf("%w: %q", entity.ErrUnknownTopic, topic)
	}

	docs, err := uc.documentRepo.ListDocuments(ctx, tenantID, topic)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	return &entity.ListDocumentsResponse{Documents: docs}, nil
}

// DeleteDocument removes a document's vectors from the index, then its
// metadata, then invalidates the tenant's semantic cache so stale result
// sets cannot reference the deleted content.
func (uc *TenantUsecase) DeleteDocument(ctx context.Context, tenantID, documentID string) error {
	pointerIDs, err := uc.documentRepo.ChunkPointerIDs(ctx, tenantID, documentID)
	if err != nil {
		return err
	}

	if len(pointerIDs) > 0 {
		namespace := entity.TenantNamespace(tenantID)
		if err := uc.index.Delete(ctx, namespace, pointerIDs); err != nil {
			return fmt.Errorf("%w: delete vectors: %v", entity.ErrIndex, err)
		}
	}

	if err := uc.documentRepo.DeleteDocument(ctx, tenantID, documentID); err != nil {
		return err
	}

	uc.cache.ClearTenant(tenantID)

	ctxzap.Info(ctx, "document deleted",
		zap.String("tenant_id", tenantID),
		zap.String("document_id", documentID),
		zap.Int("vectors_removed", len(pointerIDs)),
	)

	return nil
}

// ResetTenant wipes the tenant's corpus: index namespace, stored metadata
// and cached results. The tenant record itself survives.
func (uc *TenantUsecase) ResetTenant(ctx context.Context, tenantID string) error {
	if _, err := uc.tenantRepo.GetTenant(ctx, tenantID); err != nil {
		return err
	}

	namespace := entity.TenantNamespace(tenantID)
	if err := uc.index.DeleteNamespace(ctx, namespace); err != nil {
		return fmt.Errorf("%w: delete namespace: %v", entity.ErrIndex, err)
	}

	if err := uc.documentRepo.DeleteTenantData(ctx, tenantID); err != nil {
		return fmt.Errorf("delete tenant data: %w", err)
	}

	uc.cache.ClearTenant(tenantID)

	ctxzap.Info(ctx, "tenant data reset", zap.String("tenant_id", tenantID))
	return nil
}

// Stats summarizes the tenant's stored corpus.
func (uc *TenantUsecase) Stats(ctx context.Context, tenantID string) (*entity.TenantStats, error) {
	if _, err := uc.tenantRepo.GetTenant(ctx, tenantID); err != nil {
		return nil, err
	}

	docs, err := uc.documentRepo.CountDocuments(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("count documents: %w", err)
	}
	chunks, err := uc.documentRepo.CountChunks(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("count chunks: %w", err)
	}
	byTopic, err := uc.documentRepo.TopicCounts(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("count topics: %w", err)
	}

	return &entity.TenantStats{
		TenantID:         tenantID,
		TotalDocuments:   docs,
		TotalChunks:      chunks,
		DocumentsByTopic: byTopic,
	}, nil
}
