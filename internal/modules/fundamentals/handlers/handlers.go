// Package handlers provides HTTP handlers for fundamentals data operations.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/dkaratzas/intrinsic/internal/modules/fundamentals"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles fundamentals HTTP requests
type Handler struct {
	service *fundamentals.Service
	log     zerolog.Logger
}

// NewHandler creates a new fundamentals handler
func NewHandler(service *fundamentals.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "fundamentals").Logger(),
	}
}

// HandleGetFCF handles GET /api/fundamentals/{symbol}/fcf
// Query param "period" selects annual (default) or quarterly history.
func (h *Handler) HandleGetFCF(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	period := r.URL.Query().Get("period")
	if period == "" {
		period = fundamentals.PeriodAnnual
	}
	if !fundamentals.ValidPeriod(period) {
		http.Error(w, "Invalid period; use annual or quarterly", http.StatusBadRequest)
		return
	}

	records, err := h.service.History(r.Context(), symbol, period)
	if err != nil {
		h.log.Error().Err(err).Str("symbol", symbol).Msg("Failed to get FCF history")
		http.Error(w, "Failed to get FCF history", http.StatusBadGateway)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"data": records})
}

// HandleSync handles POST /api/fundamentals/{symbol}/sync
// Forces a refresh from the provider regardless of stored data.
func (h *Handler) HandleSync(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	period := r.URL.Query().Get("period")
	if period == "" {
		period = fundamentals.PeriodAnnual
	}
	if !fundamentals.ValidPeriod(period) {
		http.Error(w, "Invalid period; use annual or quarterly", http.StatusBadRequest)
		return
	}

	records, err := h.service.SyncHistory(r.Context(), symbol, period, true)
	if err != nil {
		h.log.Error().Err(err).Str("symbol", symbol).Msg("Failed to sync FCF history")
		http.Error(w, "Failed to sync FCF history", http.StatusBadGateway)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"data": records})
}

// HandleGetQuote handles GET /api/fundamentals/{symbol}/quote
func (h *Handler) HandleGetQuote(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	quote, err := h.service.Quote(r.Context(), symbol)
	if err != nil {
		h.log.Error().Err(err).Str("symbol", symbol).Msg("Failed to get quote")
		http.Error(w, "Failed to get quote", http.StatusBadGateway)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"data": quote})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
