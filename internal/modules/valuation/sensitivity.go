package valuation

import "sync"

// Sensitivity re-runs a reduced projection/terminal pipeline for every
// growth/discount pair in the grid and returns the resulting matrix of
// intrinsic values per share. The terminal value always uses the Gordon
// Growth model with the live assumptions' terminal growth rate - only the
// explicit growth rate and the discount rate vary across the grid.
//
// Cells are independent and computed concurrently; nothing here mutates the
// primary Result. The cell whose pair exactly equals the live assumptions is
// marked IsCurrent.
func Sensitivity(res *Result, a Assumptions, discountRates, growthRates []float64) *SensitivityMatrix {
	if len(discountRates) == 0 {
		discountRates = DefaultDiscountRates
	}
	if len(growthRates) == 0 {
		growthRates = DefaultGrowthRates
	}

	cells := make([][]SensitivityCell, len(discountRates))
	for i := range cells {
		cells[i] = make([]SensitivityCell, len(growthRates))
	}

	var wg sync.WaitGroup
	for i, discountRate := range discountRates {
		for j, growthRate := range growthRates {
			wg.Add(1)
			go func(i, j int, d, g float64) {
				defer wg.Done()
				cells[i][j] = SensitivityCell{
					GrowthRate:   g,
					DiscountRate: d,
					Value:        cellValue(res, a, g, d),
					IsCurrent:    g == a.GrowthRate && d == a.DiscountRate,
				}
			}(i, j, discountRate, growthRate)
		}
	}
	wg.Wait()

	return &SensitivityMatrix{
		DiscountRates: discountRates,
		GrowthRates:   growthRates,
		Cells:         cells,
	}
}

// cellValue computes the per-share intrinsic value for one alternate
// growth/discount pair. The arithmetic mirrors the primary pipeline exactly
// so the IsCurrent cell agrees with the live Result under Gordon Growth.
func cellValue(res *Result, a Assumptions, growthRate, discountRate float64) float64 {
	alt := a
	alt.GrowthRate = growthRate
	alt.DiscountRate = discountRate
	alt.UseTerminalMultiple = false

	projections, totalPV := projectCashFlows(res.BaseFCF, res.BaseYear, alt)

	lastFCF := res.BaseFCF
	if len(projections) > 0 {
		lastFCF = projections[len(projections)-1].FCF
	}
	_, tvPresent := terminalValue(lastFCF, alt)

	return (totalPV + tvPresent) / res.SharesOutstanding
}
