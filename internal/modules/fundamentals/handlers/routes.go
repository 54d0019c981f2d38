package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all fundamentals routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/fundamentals/{symbol}", func(r chi.Router) {
		r.Get("/fcf", h.HandleGetFCF)
		r.Post("/sync", h.HandleSync)
		r.Get("/quote", h.HandleGetQuote)
	})
}
