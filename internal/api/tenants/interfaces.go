package tenants

import (
	"context"

	"github.com/raadyn/kb-retrieval/internal/entity"
)

type TenantUsecase interface {
	InitTenant(ctx context.Context, req *entity.CreateTenantRequest) (*entity.Tenant, error)
	ListDocuments(ctx context.Context, tenantID, topic string) (*entity.ListDocumentsResponse, error)
	DeleteDocument(ctx context.Context, tenantID, documentID string) error
	ResetTenant(ctx context.Context, tenantID string) error
	Stats(ctx context.Context, tenantID string) (*entity.TenantStats, error)
}

type IngestionUsecase interface {
	Ingest(ctx context.Context, tenantID string, req *entity.IngestRequest) (*entity.IngestResponse, error)
}

type RetrievalUsecase interface {
	Retrieve(ctx context.Context, tenantID string, req *entity.RetrieveRequest) (*entity.RetrieveResponse, error)
}
