// Package handlers provides HTTP handlers for scenario recommendation operations.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/dkaratzas/intrinsic/internal/modules/scenarios"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles scenario HTTP requests
type Handler struct {
	service *scenarios.Service
	log     zerolog.Logger
}

// NewHandler creates a new scenarios handler
func NewHandler(service *scenarios.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "scenarios").Logger(),
	}
}

// HandleGetLatest handles GET /api/scenarios/{symbol}?refresh=true|false
func (h *Handler) HandleGetLatest(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	var rec *scenarios.Recommendation
	var err error
	if r.URL.Query().Get("refresh") == "true" {
		rec, err = h.service.Generate(r.Context(), symbol)
	} else {
		rec, err = h.service.Latest(r.Context(), symbol)
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			http.Error(w, "Superseded by a newer request", http.StatusConflict)
			return
		}
		h.log.Error().Err(err).Str("symbol", symbol).Msg("Failed to get recommendation")
		http.Error(w, "Failed to get scenario recommendation", http.StatusBadGateway)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"data": rec})
}

// HandleGenerate handles POST /api/scenarios/{symbol}/generate
func (h *Handler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	rec, err := h.service.Generate(r.Context(), symbol)
	if err != nil {
		// A superseding request is the expected outcome of rapid
		// regenerate clicks, not a server failure. The service wraps
		// the cancelled context's error.
		if errors.Is(err, context.Canceled) {
			http.Error(w, "Superseded by a newer request", http.StatusConflict)
			return
		}
		h.log.Error().Err(err).Str("symbol", symbol).Msg("Failed to generate recommendation")
		http.Error(w, "Failed to generate scenario recommendation", http.StatusBadGateway)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"data": rec})
}

// HandleApplyPreset handles POST /api/scenarios/{symbol}/apply
func (h *Handler) HandleApplyPreset(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	var body struct {
		Preset string `json:"preset"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.service.ApplyPreset(r.Context(), symbol, body.Preset)
	if err != nil {
		if strings.Contains(err.Error(), "unknown scenario preset") {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.log.Error().Err(err).Str("symbol", symbol).Str("preset", body.Preset).Msg("Failed to apply preset")
		http.Error(w, "Failed to apply scenario preset", http.StatusUnprocessableEntity)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"data": result})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
