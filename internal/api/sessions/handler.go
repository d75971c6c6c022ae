package sessions

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
	usecase SessionUsecase
}

func NewHandler(usecase SessionUsecase) *Handler {
	return &Handler{usecase: usecase}
}

// Prewarm handles POST /sessions/{session_id}/prewarm
func (h *Handler) Prewarm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := chi.URLParam(r, "session_id")

	ctx = logger.AddFields(ctx,
		zap.String("session_id", sessionID),
		zap.String("action", "Prewarm"),
	)

	var req entity.PrewarmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(ctx, w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	result, err := h.usecase.PrewarmSession(ctx, sessionID, &req)
	if err != nil {
		h.handleUsecaseError(ctx, w, err)
		return
	}

	response.Success(w, result)
}

// Clear handles DELETE /sessions/{session_id}
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := chi.URLParam(r, "session_id")

	ctx = logger.AddFields(ctx,
		zap.String("session_id", sessionID),
		zap.String("action", "ClearSession"),
	)

	h.usecase.ClearSession(ctx, sessionID)
	response.Success(w, &entity.StatusResponse{Status: "cleared"})
}

// CacheStats handles GET /cache/stats
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	response.Success(w, h.usecase.CacheStats())
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
	case errors.Is(err, entity.ErrTenantNotFound):
		h.respondError(ctx, w, http.StatusNotFound, "resource not found", err)
	case errors.Is(err, entity.ErrMissingField) || errors.Is(err, entity.ErrInvalidParameter):
		h.respondError(ctx, w, http.StatusBadRequest, err.Error(), err)
	case errors.Is(err, entity.ErrProvider) || errors.Is(err, entity.ErrIndex):
		h.respondError(ctx, w, http.StatusBadGateway, "upstream dependency failed", err)
	default:
		h.respondError(ctx, w, http.StatusInternalServerError, "internal server error", err)
	}
}
