package sessions

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers session and cache routes
func RegisterRoutes(r chi.Router, h *Handler) {
	r.Route("/sessions/{session_id}", func(r chi.Router) {
		r.Post("/prewarm", h.Prewarm)
		r.Delete("/", h.Clear)
	})

	r.Get("/cache/stats", h.CacheStats)
}
