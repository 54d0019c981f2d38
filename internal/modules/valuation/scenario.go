package valuation

// ApplyScenario merges an externally supplied scenario into the current
// assumptions. It overwrites exactly the three rate fields, updates the
// base-year method only when the scenario names one, and leaves
// ProjectionYears, UseTerminalMultiple and TerminalMultiple untouched.
//
// Application is atomic: if any of the three rates is missing the scenario
// is considered malformed and nothing is applied. Pure function - the
// returned values are copies, the inputs are never mutated.
func ApplyScenario(current Assumptions, method BaseYearMethod, s Scenario) (Assumptions, BaseYearMethod, bool) {
	if s.GrowthRate == nil || s.TerminalGrowthRate == nil || s.DiscountRate == nil {
		return current, method, false
	}

	next := current
	next.GrowthRate = *s.GrowthRate
	next.TerminalGrowthRate = *s.TerminalGrowthRate
	next.DiscountRate = *s.DiscountRate

	nextMethod := method
	if s.BaseYearMethod != nil && s.BaseYearMethod.Valid() {
		nextMethod = *s.BaseYearMethod
	}

	return next, nextMethod, true
}
