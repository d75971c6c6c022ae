package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/raadyn/kb-retrieval/internal/api/middleware"
	sessionsapi "github.com/raadyn/kb-retrieval/internal/api/sessions"
	tenantsapi "github.com/raadyn/kb-retrieval/internal/api/tenants"
)

// SetupRouter creates and configures the HTTP router
func SetupRouter(tenantsHandler *tenantsapi.Handler, sessionsHandler *sessionsapi.Handler, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(chimiddleware.Recoverer)                 // Recover from panics
	r.Use(chimiddleware.RequestID)                 // Add request ID
	r.Use(middleware.Logger(logger))               // Log requests
	r.Use(middleware.CORS)                         // Handle CORS
	r.Use(chimiddleware.Timeout(60 * time.Second)) // Default timeout

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	// Register routes
	tenantsapi.RegisterRoutes(r, tenantsHandler)
	sessionsapi.RegisterRoutes(r, sessionsHandler)

	return r
}
