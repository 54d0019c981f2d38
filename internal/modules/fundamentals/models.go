// Package fundamentals owns historical free-cash-flow data: fetching it
// from the market data provider, persisting it in history.db, and serving
// it to the valuation engine.
package fundamentals

// FCFRecord is one fiscal period of free cash flow for a symbol.
// FreeCashFlow is nil when the provider reported the period without
// a usable FCF figure; such records are stored but excluded from
// valuation inputs downstream.
type FCFRecord struct {
	Symbol       string   `json:"symbol"`
	Year         int      `json:"year"`
	Period       string   `json:"period"` // "annual" or "quarterly"
	FreeCashFlow *float64 `json:"free_cash_flow,omitempty"`
	UpdatedAt    int64    `json:"updated_at"` // Unix seconds of last sync
}

// PeriodAnnual and PeriodQuarterly are the reporting periods tracked.
const (
	PeriodAnnual    = "annual"
	PeriodQuarterly = "quarterly"
)

// ValidPeriod reports whether p is a recognized reporting period.
func ValidPeriod(p string) bool {
	return p == PeriodAnnual || p == PeriodQuarterly
}
