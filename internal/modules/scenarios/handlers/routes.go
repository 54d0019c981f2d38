package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all scenario routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/scenarios/{symbol}", func(r chi.Router) {
		r.Get("/", h.HandleGetLatest)
		r.Post("/generate", h.HandleGenerate)
		r.Post("/apply", h.HandleApplyPreset)
	})
}
