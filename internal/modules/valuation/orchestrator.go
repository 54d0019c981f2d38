package valuation

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Orchestrator owns the mutable valuation state for a single symbol:
// assumptions, base-year method, historical metrics, and the current quote.
// Every mutation goes through a single serialized entry point and triggers a
// synchronous recompute, so readers always observe either the previous
// complete snapshot or the new one - never a partial update.
//
// State machine: Idle (no history) -> Ready (metrics computed, no valuation
// yet) -> Valid / Error after the first recompute. Any mutation while in
// Ready, Valid or Error recomputes and lands in Valid or Error.
type Orchestrator struct {
	symbol string
	log    zerolog.Logger

	mu          sync.Mutex
	state       State
	assumptions Assumptions
	method      BaseYearMethod
	metrics     *Metrics
	quote       *Quote
	result      *Result
	lastErr     error

	// sensitivity is computed lazily on demand (it is O(grid) work) and
	// invalidated on every recompute.
	sensitivity   *SensitivityMatrix
	discountRates []float64
	growthRates   []float64
}

// NewOrchestrator creates an orchestrator in the Idle state with default
// assumptions and the latest-year base method.
func NewOrchestrator(symbol string, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		symbol:        symbol,
		log:           log.With().Str("component", "valuation_orchestrator").Str("symbol", symbol).Logger(),
		state:         StateIdle,
		assumptions:   DefaultAssumptions(),
		method:        BaseYearLatest,
		discountRates: DefaultDiscountRates,
		growthRates:   DefaultGrowthRates,
	}
}

// Symbol returns the symbol this orchestrator values.
func (o *Orchestrator) Symbol() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.symbol
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Assumptions returns a copy of the current assumptions.
func (o *Orchestrator) Assumptions() Assumptions {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.assumptions
}

// BaseYearMethod returns the current base-year selection method.
func (o *Orchestrator) BaseYearMethod() BaseYearMethod {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.method
}

// Quote returns a copy of the current market quote, or false when no
// quote has been set.
func (o *Orchestrator) Quote() (Quote, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.quote == nil {
		return Quote{}, false
	}
	return *o.quote, true
}

// Metrics returns the derived historical metrics, or false when no
// qualifying history has been loaded.
func (o *Orchestrator) Metrics() (*Metrics, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.metrics == nil {
		return nil, false
	}
	return o.metrics, true
}

// SetHistory replaces the historical dataset. Metrics are recomputed
// immediately; if a quote is already present (or a valuation was previously
// attempted) the full pipeline reruns as well.
func (o *Orchestrator) SetHistory(records []Record) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	metrics, err := ComputeMetrics(records)
	if err != nil {
		o.metrics = nil
		o.result = nil
		o.sensitivity = nil
		o.state = StateError
		o.lastErr = err
		o.log.Warn().Err(err).Msg("Historical dataset has no usable FCF records")
		return err
	}

	wasIdle := o.state == StateIdle
	o.metrics = metrics
	o.log.Debug().Int("annual_records", len(metrics.Values)).Msg("Historical metrics computed")

	if wasIdle {
		o.state = StateReady
		if o.quote == nil {
			return nil
		}
	}
	return o.recomputeLocked()
}

// SetQuote sets the current price and market cap and recomputes if
// historical data is already loaded.
func (o *Orchestrator) SetQuote(q Quote) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.quote = &q
	if o.state == StateIdle {
		return nil
	}
	return o.recomputeLocked()
}

// SetAssumptions applies a partial assumptions update and recomputes.
// Nil patch fields are left unchanged.
func (o *Orchestrator) SetAssumptions(patch AssumptionsPatch) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if patch.ProjectionYears != nil && *patch.ProjectionYears < 0 {
		return fmt.Errorf("projection_years must be >= 0, got %d", *patch.ProjectionYears)
	}

	if patch.GrowthRate != nil {
		o.assumptions.GrowthRate = *patch.GrowthRate
	}
	if patch.TerminalGrowthRate != nil {
		o.assumptions.TerminalGrowthRate = *patch.TerminalGrowthRate
	}
	if patch.DiscountRate != nil {
		o.assumptions.DiscountRate = *patch.DiscountRate
	}
	if patch.TerminalMultiple != nil {
		o.assumptions.TerminalMultiple = *patch.TerminalMultiple
	}
	if patch.ProjectionYears != nil {
		o.assumptions.ProjectionYears = *patch.ProjectionYears
	}
	if patch.UseTerminalMultiple != nil {
		o.assumptions.UseTerminalMultiple = *patch.UseTerminalMultiple
	}

	if o.state == StateIdle {
		return nil
	}
	return o.recomputeLocked()
}

// SetBaseYearMethod changes the base-year selection policy and recomputes.
func (o *Orchestrator) SetBaseYearMethod(method BaseYearMethod) error {
	if !method.Valid() {
		return fmt.Errorf("unknown base year method: %q", method)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	o.method = method
	if o.state == StateIdle {
		return nil
	}
	return o.recomputeLocked()
}

// ApplyScenario merges an AI-recommended scenario into the assumptions and
// recomputes through the same path as a manual edit. Returns false without
// touching any state when the scenario is malformed.
func (o *Orchestrator) ApplyScenario(s Scenario) (bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	next, nextMethod, ok := ApplyScenario(o.assumptions, o.method, s)
	if !ok {
		return false, nil
	}

	o.assumptions = next
	o.method = nextMethod

	if o.state == StateIdle {
		return true, nil
	}
	return true, o.recomputeLocked()
}

// Result returns the current valuation snapshot. The returned Result is
// shared and must be treated as read-only.
// Callers can distinguish "never computed" (ErrNoValuation) from "computed
// but invalid" (the recompute error) from success.
func (o *Orchestrator) Result() (*Result, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch o.state {
	case StateValid:
		return o.result, nil
	case StateError:
		return nil, o.lastErr
	default:
		return nil, ErrNoValuation
	}
}

// SensitivityMatrix returns the growth/discount sensitivity grid for the
// current result, computing it on first access and caching it until the
// next recompute.
func (o *Orchestrator) SensitivityMatrix() (*SensitivityMatrix, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch o.state {
	case StateValid:
	case StateError:
		return nil, o.lastErr
	default:
		return nil, ErrNoValuation
	}

	if o.sensitivity == nil {
		o.sensitivity = Sensitivity(o.result, o.assumptions, o.discountRates, o.growthRates)
	}
	return o.sensitivity, nil
}

// recomputeLocked reruns the valuation pipeline against the current inputs.
// The caller must hold o.mu.
func (o *Orchestrator) recomputeLocked() error {
	o.sensitivity = nil

	if o.metrics == nil {
		o.result = nil
		o.state = StateError
		o.lastErr = ErrInsufficientHistory
		return o.lastErr
	}

	var quote Quote
	if o.quote != nil {
		quote = *o.quote
	}

	result, err := Compute(o.metrics, o.method, o.assumptions, quote)
	if err != nil {
		o.result = nil
		o.state = StateError
		o.lastErr = err
		o.log.Warn().Err(err).Msg("Valuation recompute failed")
		return err
	}

	o.result = result
	o.state = StateValid
	o.lastErr = nil
	o.log.Debug().
		Float64("intrinsic_value", result.IntrinsicValuePerShare).
		Float64("upside", result.Upside).
		Msg("Valuation recomputed")
	return nil
}
