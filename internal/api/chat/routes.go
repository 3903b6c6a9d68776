package chat

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers chat session routes
func RegisterRoutes(r chi.Router, h *Handler) {
	r.Route("/chat/sessions", func(r chi.Router) {
		r.Post("/", h.CreateSession)
		r.Get("/{id}", h.GetSession)
		r.Delete("/{id}", h.DeleteSession)
		r.Get("/{id}/messages", h.GetHistory)
		r.Post("/{id}/messages", h.PostMessage)
		r.Post("/{id}/reset", h.ResetSession)
		r.Get("/{id}/application", h.GetApplication)
		r.Get("/{id}/transcript", h.ExportTranscript)
	})
}
