package valuation

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// ComputeMetrics derives rolling averages and compound annual growth rates
// from a raw financial history. Only annual records with a non-nil free cash
// flow participate; records are ordered by year descending before analysis.
// Returns ErrInsufficientHistory when no qualifying records exist.
func ComputeMetrics(records []Record) (*Metrics, error) {
	type entry struct {
		year int
		fcf  float64
	}

	var entries []entry
	for _, rec := range records {
		if rec.Period != PeriodAnnual || rec.FreeCashFlow == nil {
			continue
		}
		entries = append(entries, entry{year: rec.Year, fcf: *rec.FreeCashFlow})
	}

	if len(entries) == 0 {
		return nil, ErrInsufficientHistory
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].year > entries[j].year
	})

	years := make([]int, len(entries))
	values := make([]float64, len(entries))
	for i, e := range entries {
		years[i] = e.year
		values[i] = e.fcf
	}

	m := &Metrics{
		Latest: values[0],
		Years:  years,
		Values: values,
	}

	if len(values) >= 3 {
		avg := stat.Mean(values[:3], nil)
		m.Avg3 = &avg
	}
	if len(values) >= 5 {
		avg := stat.Mean(values[:5], nil)
		m.Avg5 = &avg
	}

	m.CAGR3 = cagr(values, 3)
	m.CAGR5 = cagr(values, 5)
	m.CAGR10 = cagr(values, 10)

	return m, nil
}

// cagr computes the compound annual growth rate between values[0] and
// values[n], as a whole percentage. Returns nil when fewer than n+1 values
// exist, when values[n] is zero, or when the ratio is negative - taking an
// n-th root of a negative base would be complex-valued, so the window is
// reported as unavailable instead of a garbage number.
func cagr(values []float64, n int) *float64 {
	if len(values) <= n {
		return nil
	}
	if values[n] == 0 {
		return nil
	}

	ratio := values[0] / values[n]
	if ratio < 0 {
		return nil
	}

	rate := (math.Pow(ratio, 1.0/float64(n)) - 1) * 100
	return &rate
}

// BaseFCF resolves the base-year FCF for the given method, falling back to
// the latest value when the requested aggregate is unavailable. Returns the
// value and the method actually used.
func (m *Metrics) BaseFCF(method BaseYearMethod) (float64, BaseYearMethod) {
	switch method {
	case BaseYearAvg3:
		if m.Avg3 != nil {
			return *m.Avg3, BaseYearAvg3
		}
	case BaseYearAvg5:
		if m.Avg5 != nil {
			return *m.Avg5, BaseYearAvg5
		}
	}
	return m.Latest, BaseYearLatest
}

// BaseYear returns the most recent annual reporting year.
func (m *Metrics) BaseYear() int {
	return m.Years[0]
}
