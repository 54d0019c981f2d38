package valuation

import "math"

// Compute runs the full valuation pipeline: base-year selection, explicit
// projection, terminal value, and aggregation into a Result. It is a pure
// function of its inputs; callers own serialization of concurrent use.
func Compute(m *Metrics, method BaseYearMethod, a Assumptions, q Quote) (*Result, error) {
	if m == nil || len(m.Values) == 0 {
		return nil, ErrInsufficientHistory
	}

	baseFCF, effectiveMethod := m.BaseFCF(method)
	baseYear := m.BaseYear()

	projections, totalPV := projectCashFlows(baseFCF, baseYear, a)

	// Terminal value capitalizes the final explicit-horizon FCF; with a
	// zero-year horizon that is the base FCF itself.
	lastFCF := baseFCF
	if len(projections) > 0 {
		lastFCF = projections[len(projections)-1].FCF
	}
	tv, tvPresent := terminalValue(lastFCF, a)

	return aggregate(aggregateInput{
		baseFCF:              baseFCF,
		baseYear:             baseYear,
		baseYearMethod:       effectiveMethod,
		projections:          projections,
		totalPresentValue:    totalPV,
		terminalValue:        tv,
		terminalValuePresent: tvPresent,
		quote:                q,
	})
}

// projectCashFlows compounds the base FCF forward by the growth rate for
// each explicit-horizon year and discounts each year to present value.
// A zero-year horizon yields an empty schedule and zero total, which is
// valid - the terminal value still carries the whole valuation.
func projectCashFlows(baseFCF float64, baseYear int, a Assumptions) ([]Projection, float64) {
	growth := 1 + a.GrowthRate/100
	discount := 1 + a.DiscountRate/100

	projections := make([]Projection, 0, a.ProjectionYears)
	totalPV := 0.0
	fcf := baseFCF

	for i := 1; i <= a.ProjectionYears; i++ {
		fcf *= growth
		factor := math.Pow(discount, float64(i))
		pv := fcf / factor

		projections = append(projections, Projection{
			Year:           baseYear + i,
			FCF:            fcf,
			DiscountFactor: factor,
			PresentValue:   pv,
		})
		totalPV += pv
	}

	return projections, totalPV
}

// terminalValue computes the value of cash flows beyond the explicit horizon
// and its discounted present value.
//
// Exit Multiple: lastFCF * TerminalMultiple.
// Gordon Growth: lastFCF * (1+g) / ((r-g)/100). When the terminal growth rate
// meets or exceeds the discount rate the perpetuity diverges; the terminal
// value is reported as zero and the valuation proceeds on the explicit
// horizon alone. That is deliberate product policy, not an error.
func terminalValue(lastFCF float64, a Assumptions) (tv, tvPresent float64) {
	if a.UseTerminalMultiple {
		tv = lastFCF * a.TerminalMultiple
	} else {
		denominator := (a.DiscountRate - a.TerminalGrowthRate) / 100
		if denominator > 0 {
			nextFCF := lastFCF * (1 + a.TerminalGrowthRate/100)
			tv = nextFCF / denominator
		}
	}

	tvPresent = tv / math.Pow(1+a.DiscountRate/100, float64(a.ProjectionYears))
	return tv, tvPresent
}

type aggregateInput struct {
	baseFCF              float64
	baseYear             int
	baseYearMethod       BaseYearMethod
	projections          []Projection
	totalPresentValue    float64
	terminalValue        float64
	terminalValuePresent float64
	quote                Quote
}

// aggregate combines projected present values and the discounted terminal
// value into total equity value, intrinsic value per share, and upside
// versus the current price. Fails with ErrMissingPriceData when the quote
// cannot support the shares-outstanding derivation.
func aggregate(in aggregateInput) (*Result, error) {
	if in.quote.Price <= 0 || math.IsNaN(in.quote.Price) {
		return nil, ErrMissingPriceData
	}
	if in.quote.MarketCap <= 0 || math.IsNaN(in.quote.MarketCap) {
		return nil, ErrMissingPriceData
	}

	sharesOutstanding := in.quote.MarketCap / in.quote.Price
	totalEquityValue := in.totalPresentValue + in.terminalValuePresent
	intrinsicValue := totalEquityValue / sharesOutstanding
	upside := (intrinsicValue - in.quote.Price) / in.quote.Price

	return &Result{
		BaseFCF:                in.baseFCF,
		BaseYear:               in.baseYear,
		BaseYearMethod:         in.baseYearMethod,
		Projections:            in.projections,
		TerminalValue:          in.terminalValue,
		TerminalValuePresent:   in.terminalValuePresent,
		TotalPresentValue:      in.totalPresentValue,
		TotalEquityValue:       totalEquityValue,
		IntrinsicValuePerShare: intrinsicValue,
		Upside:                 upside,
		SharesOutstanding:      sharesOutstanding,
	}, nil
}
