package tenants

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"

	"github.com/raadyn/kb-retrieval/internal/entity"
	"github.com/raadyn/kb-retrieval/internal/pkg/logger"
	"github.com/raadyn/kb-retrieval/internal/pkg/response"
)

type Handler struct {
	tenants   TenantUsecase
	ingestion IngestionUsecase
	retrieval RetrievalUsecase
}

func NewHandler(tenants TenantUsecase, ingestion IngestionUsecase, retrieval RetrievalUsecase) *Handler {
	return &Handler{
		tenants:   tenants,
		ingestion: ingestion,
		retrieval: retrieval,
	}
}

// CreateTenant handles POST /tenants
func (h *Handler) CreateTenant(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WithAction(r.Context(), "CreateTenant")

	var req entity.CreateTenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(ctx, w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	tenant, err := h.tenants.InitTenant(ctx, &req)
	if err != nil {
		h.handleUsecaseError(ctx, w, err)
		return
	}

	ctxzap.Info(ctx, "tenant created successfully", zap.String("tenant_id", tenant.ID))
	response.Created(w, tenant)
}

// Ingest handles POST /tenants/{tenant_id}/documents
func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := chi.URLParam(r, "tenant_id")

	ctx = logger.AddFields(ctx,
		zap.String("tenant_id", tenantID),
		zap.String("action", "Ingest"),
	)

	var req entity.IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(ctx, w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	ctxzap.Info(ctx, "ingesting documents",
		zap.String("topic", req.Topic),
		zap.Int("documents", len(req.Documents)),
	)

	resp, err := h.ingestion.Ingest(ctx, tenantID, &req)
	if err != nil {
		h.handleUsecaseError(ctx, w, err)
		return
	}

	response.Success(w, resp)
}

// ListDocuments handles GET /tenants/{tenant_id}/documents
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := chi.URLParam(r, "tenant_id")

	ctx = logger.AddFields(ctx,
		zap.String("tenant_id", tenantID),
		zap.String("action", "ListDocuments"),
	)

	topic := r.URL.Query().Get("topic")

	resp, err := h.tenants.ListDocuments(ctx, tenantID, topic)
	if err != nil {
		h.handleUsecaseError(ctx, w, err)
		return
	}

	ctxzap.Debug(ctx, "documents listed", zap.Int("count", len(resp.Documents)))
	response.Success(w, resp)
}

// DeleteDocument handles DELETE /tenants/{tenant_id}/documents/{document_id}
func (h *Handler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := chi.URLParam(r, "tenant_id")
	documentID := chi.URLParam(r, "document_id")

	ctx = logger.AddFields(ctx,
		zap.String("tenant_id", tenantID),
		zap.String("document_id", documentID),
		zap.String("action", "DeleteDocument"),
	)

	if err := h.tenants.DeleteDocument(ctx, tenantID, documentID); err != nil {
		h.handleUsecaseError(ctx, w, err)
		return
	}

	response.Success(w, &entity.StatusResponse{Status: "deleted"})
}

// Retrieve handles POST /tenants/{tenant_id}/retrieve
func (h *Handler) Retrieve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := chi.URLParam(r, "tenant_id")

	ctx = logger.AddFields(ctx,
		zap.String("tenant_id", tenantID),
		zap.String("action", "Retrieve"),
	)

	var req entity.RetrieveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(ctx, w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	resp, err := h.retrieval.Retrieve(ctx, tenantID, &req)
	if err != nil {
		h.handleUsecaseError(ctx, w, err)
		return
	}

	ctxzap.Debug(ctx, "query resolved", zap.Int("results", len(resp.Results)))
	response.Success(w, resp)
}

// ResetTenant handles DELETE /tenants/{tenant_id}
func (h *Handler) ResetTenant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := chi.URLParam(r, "tenant_id")

	ctx = logger.AddFields(ctx,
		zap.String("tenant_id", tenantID),
		zap.String("action", "ResetTenant"),
	)

	if err := h.tenants.ResetTenant(ctx, tenantID); err != nil {
		h.handleUsecaseError(ctx, w, err)
		return
	}

	response.Success(w, &entity.StatusResponse{Status: "reset"})
}

// Stats handles GET /tenants/{tenant_id}/stats
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := chi.URLParam(r, "tenant_id")

	ctx = logger.AddFields(ctx,
		zap.String("tenant_id", tenantID),
		zap.String("action", "Stats"),
	)

	stats, err := h.tenants.Stats(ctx, tenantID)
	if err != nil {
		h.handleUsecaseError(ctx, w, err)
		return
	}

	response.Success(w, stats)
}

// Helper methods
func (h *Handler) respondError(ctx context.Context, w http.ResponseWriter, status int, message string, err error) {
	if err != nil {
		ctxzap.Error(ctx, message, zap.Error(err))
	} else {
		ctxzap.Error(ctx, message)
	}
	response.JSON(w, status, entity.ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
	})
}

func (h *Handler) handleUsecaseError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, entity.ErrTenantNotFound) || errors.Is(err, entity.ErrDocumentNotFound):
		h.respondError(ctx, w, http.StatusNotFound, "resource not found", err)
	case errors.Is(err, entity.ErrTenantExists):
		h.respondError(ctx, w, http.StatusConflict, "tenant already exists", err)
	case errors.Is(err, entity.ErrMissingField) ||
		errors.Is(err, entity.ErrInvalidParameter) ||
		errors.Is(err, entity.ErrInvalidTenant) ||
		errors.Is(err, entity.ErrEmptyQuery) ||
		errors.Is(err, entity.ErrUnknownTopic) ||
		errors.Is(err, entity.ErrTooManyDocuments) ||
		errors.Is(err, entity.ErrDocumentTooLarge):
		h.respondError(ctx, w, http.StatusBadRequest, err.Error(), err)
	case errors.Is(err, entity.ErrProvider) || errors.Is(err, entity.ErrIndex):
		h.respondError(ctx, w, http.StatusBadGateway, "upstream dependency failed", err)
	default:
		h.respondError(ctx, w, http.StatusInternalServerError, "internal server error", err)
	}
}
