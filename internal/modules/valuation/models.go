// Package valuation implements the discounted cash flow (DCF) valuation engine:
// historical free-cash-flow metrics, multi-period projection and discounting,
// terminal value under Gordon Growth or Exit Multiple, sensitivity analysis
// across growth/discount grids, and the reactive orchestrator that owns
// assumption state and recomputes on every change.
//
// The engine is a pure computational core: it performs no I/O, holds no
// back-references to other components, and treats every Result as an
// immutable snapshot replaced wholesale on each recompute.
package valuation

import "errors"

// Sentinel errors for the failure modes the UI must distinguish.
var (
	// ErrInsufficientHistory - zero qualifying annual FCF records, no valuation attempted.
	ErrInsufficientHistory = errors.New("insufficient history: no annual free cash flow records")
	// ErrMissingPriceData - price or market cap absent or non-positive.
	ErrMissingPriceData = errors.New("missing price data: current price and market cap required")
	// ErrNoValuation - no valuation has been computed yet.
	ErrNoValuation = errors.New("no valuation computed")
)

// Period identifies the reporting period of a historical record.
type Period string

const (
	PeriodAnnual    Period = "annual"
	PeriodQuarterly Period = "quarterly"
)

// Record is a single externally sourced historical financial record.
// Only annual records with a non-nil FreeCashFlow participate in valuation.
type Record struct {
	Year         int      `json:"year"`
	Period       Period   `json:"period"`
	FreeCashFlow *float64 `json:"free_cash_flow"`
}

// Metrics holds statistics derived from the annual FCF history.
// Aggregates that need more history than is available are nil.
// All CAGR values are whole percentages (5 = 5%).
type Metrics struct {
	Latest float64  `json:"latest"`
	Avg3   *float64 `json:"avg3"`
	Avg5   *float64 `json:"avg5"`
	CAGR3  *float64 `json:"cagr3"`
	CAGR5  *float64 `json:"cagr5"`
	CAGR10 *float64 `json:"cagr10"`
	// Years and Values are aligned, sorted by year descending.
	Years  []int     `json:"years"`
	Values []float64 `json:"fcf_values"`
}

// Assumptions drive the projection and terminal value models.
// Rates are whole percentages (10 = 10%); they are converted to
// fractions only at computation time.
type Assumptions struct {
	GrowthRate          float64 `json:"growth_rate"`           // explicit-horizon annual FCF growth
	TerminalGrowthRate  float64 `json:"terminal_growth_rate"`  // perpetual growth for Gordon Growth
	DiscountRate        float64 `json:"discount_rate"`         // WACC-equivalent
	TerminalMultiple    float64 `json:"terminal_multiple"`     // multiplier on final-year FCF
	ProjectionYears     int     `json:"projection_years"`      // explicit projection horizon
	UseTerminalMultiple bool    `json:"use_terminal_multiple"` // selects Exit Multiple over Gordon Growth
}

// DefaultAssumptions returns the assumptions a fresh orchestrator starts with.
func DefaultAssumptions() Assumptions {
	return Assumptions{
		GrowthRate:          5,
		TerminalGrowthRate:  2.5,
		DiscountRate:        10,
		TerminalMultiple:    15,
		ProjectionYears:     5,
		UseTerminalMultiple: false,
	}
}

// AssumptionsPatch is a partial update to Assumptions. Nil fields are left
// unchanged. Used by the orchestrator's single mutation entry point.
type AssumptionsPatch struct {
	GrowthRate          *float64 `json:"growth_rate,omitempty"`
	TerminalGrowthRate  *float64 `json:"terminal_growth_rate,omitempty"`
	DiscountRate        *float64 `json:"discount_rate,omitempty"`
	TerminalMultiple    *float64 `json:"terminal_multiple,omitempty"`
	ProjectionYears     *int     `json:"projection_years,omitempty"`
	UseTerminalMultiple *bool    `json:"use_terminal_multiple,omitempty"`
}

// BaseYearMethod selects which historical metric seeds the projection.
type BaseYearMethod string

const (
	BaseYearLatest BaseYearMethod = "latest"
	BaseYearAvg3   BaseYearMethod = "avg3"
	BaseYearAvg5   BaseYearMethod = "avg5"
)

// Valid reports whether m is a known base-year method.
func (m BaseYearMethod) Valid() bool {
	switch m {
	case BaseYearLatest, BaseYearAvg3, BaseYearAvg5:
		return true
	}
	return false
}

// Quote is the current market price and capitalization of a security.
type Quote struct {
	Price     float64 `json:"price"`
	MarketCap float64 `json:"market_cap"`
}

// Projection is one explicit-horizon year of projected and discounted FCF.
type Projection struct {
	Year           int     `json:"year"`
	FCF            float64 `json:"fcf"`
	DiscountFactor float64 `json:"discount_factor"`
	PresentValue   float64 `json:"present_value"`
}

// Result is an immutable valuation snapshot. Upside is a fraction
// (0.2 = 20% above current price), not a percentage.
type Result struct {
	BaseFCF                float64        `json:"base_fcf"`
	BaseYear               int            `json:"base_year"`
	BaseYearMethod         BaseYearMethod `json:"base_year_method"`
	Projections            []Projection   `json:"projections"`
	TerminalValue          float64        `json:"terminal_value"`
	TerminalValuePresent   float64        `json:"terminal_value_present"`
	TotalPresentValue      float64        `json:"total_present_value"`
	TotalEquityValue       float64        `json:"total_equity_value"`
	IntrinsicValuePerShare float64        `json:"intrinsic_value_per_share"`
	Upside                 float64        `json:"upside"`
	SharesOutstanding      float64        `json:"shares_outstanding"`
}

// SensitivityCell is one intrinsic-value output for an alternate
// growth/discount pair. IsCurrent marks the cell whose inputs exactly
// equal the live assumptions.
type SensitivityCell struct {
	GrowthRate   float64 `json:"growth_rate"`
	DiscountRate float64 `json:"discount_rate"`
	Value        float64 `json:"value"`
	IsCurrent    bool    `json:"is_current"`
}

// SensitivityMatrix is a fixed grid of discount rates (rows) by growth
// rates (columns).
type SensitivityMatrix struct {
	DiscountRates []float64           `json:"discount_rates"`
	GrowthRates   []float64           `json:"growth_rates"`
	Cells         [][]SensitivityCell `json:"cells"`
}

// Default sensitivity grid.
var (
	DefaultDiscountRates = []float64{8, 10, 12, 14}
	DefaultGrowthRates   = []float64{-5, 0, 5, 10, 15}
)

// Scenario is an externally supplied (AI-recommended) assumption set.
// All three rates must be present for the scenario to apply; BaseYearMethod
// is optional. Rates are whole percentages.
type Scenario struct {
	GrowthRate         *float64        `json:"growth_rate"`
	TerminalGrowthRate *float64        `json:"terminal_growth_rate"`
	DiscountRate       *float64        `json:"discount_rate"`
	BaseYearMethod     *BaseYearMethod `json:"base_year_method,omitempty"`
}

// State is the orchestrator lifecycle state.
type State string

const (
	// StateIdle - no historical data yet.
	StateIdle State = "idle"
	// StateReady - historical metrics computed, no valuation yet.
	StateReady State = "ready"
	// StateValid - a valuation result exists.
	StateValid State = "valid"
	// StateError - the last recompute failed.
	StateError State = "error"
)
