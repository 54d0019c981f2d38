package valuation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSensitivity_GridShape(t *testing.T) {
	res, err := Compute(testMetrics(t), BaseYearLatest, testAssumptions(), Quote{Price: 50, MarketCap: 5000})
	require.NoError(t, err)

	matrix := Sensitivity(res, testAssumptions(), nil, nil)

	require.Len(t, matrix.Cells, len(DefaultDiscountRates))
	for i, row := range matrix.Cells {
		require.Len(t, row, len(DefaultGrowthRates))
		for j, cell := range row {
			assert.Equal(t, DefaultDiscountRates[i], cell.DiscountRate)
			assert.Equal(t, DefaultGrowthRates[j], cell.GrowthRate)
		}
	}
}

// The cell whose growth/discount pair matches the live assumptions must
// reproduce the primary result's intrinsic value.
func TestSensitivity_CurrentCellMatchesResult(t *testing.T) {
	a := testAssumptions() // growth 5, discount 10: both on the default grid
	res, err := Compute(testMetrics(t), BaseYearLatest, a, Quote{Price: 50, MarketCap: 5000})
	require.NoError(t, err)

	matrix := Sensitivity(res, a, nil, nil)

	var current *SensitivityCell
	for i := range matrix.Cells {
		for j := range matrix.Cells[i] {
			if matrix.Cells[i][j].IsCurrent {
				require.Nil(t, current, "exactly one cell may be current")
				current = &matrix.Cells[i][j]
			}
		}
	}

	require.NotNil(t, current)
	assert.Equal(t, 5.0, current.GrowthRate)
	assert.Equal(t, 10.0, current.DiscountRate)
	assert.InEpsilon(t, res.IntrinsicValuePerShare, current.Value, 1e-6)
}

func TestSensitivity_NoCurrentCellOffGrid(t *testing.T) {
	a := testAssumptions()
	a.GrowthRate = 7.3 // not on the default grid
	res, err := Compute(testMetrics(t), BaseYearLatest, a, Quote{Price: 50, MarketCap: 5000})
	require.NoError(t, err)

	matrix := Sensitivity(res, a, nil, nil)
	for _, row := range matrix.Cells {
		for _, cell := range row {
			assert.False(t, cell.IsCurrent)
		}
	}
}

func TestSensitivity_Monotonicity(t *testing.T) {
	a := testAssumptions()
	res, err := Compute(testMetrics(t), BaseYearLatest, a, Quote{Price: 50, MarketCap: 5000})
	require.NoError(t, err)

	matrix := Sensitivity(res, a, nil, nil)

	// Across a row, higher growth never lowers the value.
	for _, row := range matrix.Cells {
		for j := 1; j < len(row); j++ {
			assert.GreaterOrEqual(t, row[j].Value, row[j-1].Value)
		}
	}

	// Down a column, a higher discount rate never raises the value.
	for j := range matrix.GrowthRates {
		for i := 1; i < len(matrix.Cells); i++ {
			assert.LessOrEqual(t, matrix.Cells[i][j].Value, matrix.Cells[i-1][j].Value)
		}
	}
}

// The grid's growth rate varies the projection only; the terminal value
// keeps the live terminal growth rate. A grid cell at the live pair computed
// under an Exit Multiple primary result will therefore differ - sensitivity
// is always Gordon Growth.
func TestSensitivity_AlwaysGordonGrowth(t *testing.T) {
	a := testAssumptions()
	a.UseTerminalMultiple = true
	a.TerminalMultiple = 50 // exaggerated so the difference is obvious

	res, err := Compute(testMetrics(t), BaseYearLatest, a, Quote{Price: 50, MarketCap: 5000})
	require.NoError(t, err)

	matrix := Sensitivity(res, a, nil, nil)

	for _, row := range matrix.Cells {
		for _, cell := range row {
			if cell.IsCurrent {
				// testify has no NotInEpsilon; assert the relative error
				// exceeds epsilon, the negation of assert.InEpsilon.
				relErr := math.Abs(res.IntrinsicValuePerShare-cell.Value) / math.Abs(res.IntrinsicValuePerShare)
				assert.Greater(t, relErr, 1e-6)
			}
		}
	}
}

func TestSensitivity_DoesNotMutateResult(t *testing.T) {
	a := testAssumptions()
	res, err := Compute(testMetrics(t), BaseYearLatest, a, Quote{Price: 50, MarketCap: 5000})
	require.NoError(t, err)

	before := *res
	_ = Sensitivity(res, a, nil, nil)
	assert.Equal(t, before, *res)
}
