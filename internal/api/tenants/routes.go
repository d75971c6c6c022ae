package tenants

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers tenant routes
func RegisterRoutes(r chi.Router, h *Handler) {
	r.Route("/tenants", func(r chi.Router) {
		r.Post("/", h.CreateTenant)

		r.Route("/{tenant_id}", func(r chi.Router) {
			r.Delete("/", h.ResetTenant)
			r.Get("/stats", h.Stats)
			r.Post("/retrieve", h.Retrieve)

			r.Route("/documents", func(r chi.Router) {
				r.Post("/", h.Ingest)
				r.Get("/", h.ListDocuments)
				r.Delete("/{document_id}", h.DeleteDocument)
			})
		})
	})
}
