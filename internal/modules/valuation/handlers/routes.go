package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all valuation routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/valuation/{symbol}", func(r chi.Router) {
		r.Get("/", h.HandleGetValuation)
		r.Put("/assumptions", h.HandlePutAssumptions)
		r.Put("/base-year", h.HandlePutBaseYear)
		r.Post("/scenario", h.HandlePostScenario)
		r.Get("/sensitivity", h.HandleGetSensitivity)
		r.Get("/metrics", h.HandleGetMetrics)
	})
}
