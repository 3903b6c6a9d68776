package document

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers document and index routes
func RegisterRoutes(r chi.Router, h *Handler) {
	r.Route("/documents", func(r chi.Router) {
		r.Post("/", h.IngestDocument)
		r.Post("/upload", h.UploadDocument)
		r.Get("/", h.ListDocuments)
		r.Get("/{id}", h.GetDocument)
		r.Delete("/{id}", h.DeleteDocument)
	})
	r.Get("/vector-stats", h.VectorStats)
}
