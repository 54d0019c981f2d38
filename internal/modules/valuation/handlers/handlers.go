// Package handlers provides HTTP handlers for valuation session operations.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dkaratzas/intrinsic/internal/events"
	"github.com/dkaratzas/intrinsic/internal/modules/fundamentals"
	"github.com/dkaratzas/intrinsic/internal/modules/valuation"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// FundamentalsService is the data surface the handlers need to seed a
// valuation session. Implemented by the fundamentals service.
type FundamentalsService interface {
	History(ctx context.Context, symbol, period string) ([]fundamentals.FCFRecord, error)
	Quote(ctx context.Context, symbol string) (valuation.Quote, error)
}

// Handler handles valuation HTTP requests
type Handler struct {
	registry     *valuation.Registry
	fundamentals FundamentalsService
	eventManager *events.Manager
	log          zerolog.Logger
}

// NewHandler creates a new valuation handler.
// eventManager is optional - if nil, no events are emitted.
func NewHandler(registry *valuation.Registry, fundamentals FundamentalsService, eventManager *events.Manager, log zerolog.Logger) *Handler {
	return &Handler{
		registry:     registry,
		fundamentals: fundamentals,
		eventManager: eventManager,
		log:          log.With().Str("handler", "valuation").Logger(),
	}
}

// sessionResponse is the envelope returned by session-mutating endpoints.
type sessionResponse struct {
	Symbol         string                   `json:"symbol"`
	State          valuation.State          `json:"state"`
	Assumptions    valuation.Assumptions    `json:"assumptions"`
	BaseYearMethod valuation.BaseYearMethod `json:"base_year_method"`
	Result         *valuation.Result        `json:"result,omitempty"`
	Error          string                   `json:"error,omitempty"`
}

// HandleGetValuation handles GET /api/valuation/{symbol}
func (h *Handler) HandleGetValuation(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	orch, err := h.ensureSession(r.Context(), symbol)
	if err != nil {
		h.log.Error().Err(err).Str("symbol", symbol).Msg("Failed to seed valuation session")
		http.Error(w, "Failed to load market data", http.StatusBadGateway)
		return
	}

	h.writeSession(w, orch)
}

// HandlePutAssumptions handles PUT /api/valuation/{symbol}/assumptions
func (h *Handler) HandlePutAssumptions(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	var patch valuation.AssumptionsPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	orch, err := h.ensureSession(r.Context(), symbol)
	if err != nil {
		http.Error(w, "Failed to load market data", http.StatusBadGateway)
		return
	}

	if err := orch.SetAssumptions(patch); err != nil {
		if !isValuationDataError(err) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	h.emitValuation(orch)
	h.writeSession(w, orch)
}

// HandlePutBaseYear handles PUT /api/valuation/{symbol}/base-year
func (h *Handler) HandlePutBaseYear(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	var body struct {
		Method valuation.BaseYearMethod `json:"method"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	orch, err := h.ensureSession(r.Context(), symbol)
	if err != nil {
		http.Error(w, "Failed to load market data", http.StatusBadGateway)
		return
	}

	if err := orch.SetBaseYearMethod(body.Method); err != nil {
		if !isValuationDataError(err) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	h.emitValuation(orch)
	h.writeSession(w, orch)
}

// HandlePostScenario handles POST /api/valuation/{symbol}/scenario
func (h *Handler) HandlePostScenario(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	var scenario valuation.Scenario
	if err := json.NewDecoder(r.Body).Decode(&scenario); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	orch, err := h.ensureSession(r.Context(), symbol)
	if err != nil {
		http.Error(w, "Failed to load market data", http.StatusBadGateway)
		return
	}

	applied, err := orch.ApplyScenario(scenario)
	if err != nil && !isValuationDataError(err) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !applied {
		http.Error(w, "Scenario is incomplete; all three rates are required", http.StatusUnprocessableEntity)
		return
	}

	h.emitValuation(orch)
	h.writeSession(w, orch)
}

// HandleGetSensitivity handles GET /api/valuation/{symbol}/sensitivity
func (h *Handler) HandleGetSensitivity(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	orch, err := h.ensureSession(r.Context(), symbol)
	if err != nil {
		http.Error(w, "Failed to load market data", http.StatusBadGateway)
		return
	}

	matrix, err := orch.SensitivityMatrix()
	if err != nil {
		h.writeValuationError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"data": matrix})
}

// HandleGetMetrics handles GET /api/valuation/{symbol}/metrics
func (h *Handler) HandleGetMetrics(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	orch, err := h.ensureSession(r.Context(), symbol)
	if err != nil {
		http.Error(w, "Failed to load market data", http.StatusBadGateway)
		return
	}

	metrics, ok := orch.Metrics()
	if !ok {
		h.writeValuationError(w, valuation.ErrInsufficientHistory)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"data": metrics})
}

// ensureSession returns the symbol's orchestrator, seeding it with
// history and a quote on first touch.
func (h *Handler) ensureSession(ctx context.Context, symbol string) (*valuation.Orchestrator, error) {
	orch := h.registry.Get(symbol)
	if orch.State() != valuation.StateIdle {
		return orch, nil
	}

	records, err := h.fundamentals.History(ctx, symbol, fundamentals.PeriodAnnual)
	if err != nil {
		return nil, err
	}
	if err := orch.SetHistory(fundamentals.ValuationRecords(records)); err != nil && !isValuationDataError(err) {
		return nil, err
	}

	quote, err := h.fundamentals.Quote(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if err := orch.SetQuote(quote); err != nil && !isValuationDataError(err) {
		return nil, err
	}

	return orch, nil
}

// writeSession renders the current session state, mapping data errors
// into the envelope rather than HTTP failures.
func (h *Handler) writeSession(w http.ResponseWriter, orch *valuation.Orchestrator) {
	resp := sessionResponse{
		Symbol:         orch.Symbol(),
		State:          orch.State(),
		Assumptions:    orch.Assumptions(),
		BaseYearMethod: orch.BaseYearMethod(),
	}

	result, err := orch.Result()
	if err != nil {
		resp.Error = err.Error()
	} else {
		resp.Result = result
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// writeValuationError maps engine errors onto HTTP statuses.
func (h *Handler) writeValuationError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, valuation.ErrInsufficientHistory),
		errors.Is(err, valuation.ErrMissingPriceData),
		errors.Is(err, valuation.ErrNoValuation):
		status = http.StatusUnprocessableEntity
	}
	http.Error(w, err.Error(), status)
}

// emitValuation publishes the session's current valuation, if any.
func (h *Handler) emitValuation(orch *valuation.Orchestrator) {
	if h.eventManager == nil {
		return
	}

	result, err := orch.Result()
	if err != nil {
		h.eventManager.EmitData("valuation", &events.ValuationFailedData{
			Symbol: orch.Symbol(),
			Reason: err.Error(),
		})
		return
	}

	a := orch.Assumptions()
	var price float64
	if quote, ok := orch.Quote(); ok {
		price = quote.Price
	}
	h.eventManager.EmitData("valuation", &events.ValuationUpdatedData{
		Symbol:          orch.Symbol(),
		IntrinsicValue:  result.IntrinsicValuePerShare,
		CurrentPrice:    price,
		UpsideFraction:  result.Upside,
		ProjectionYears: a.ProjectionYears,
	})
}

// isValuationDataError reports whether err is a data-state error the
// session envelope carries, as opposed to a caller mistake.
func isValuationDataError(err error) bool {
	return errors.Is(err, valuation.ErrInsufficientHistory) ||
		errors.Is(err, valuation.ErrMissingPriceData) ||
		errors.Is(err, valuation.ErrNoValuation)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
