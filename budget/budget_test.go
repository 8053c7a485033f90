package budget

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naurayesh/fhe-cloud-financial-tool/fixedpoint"
)

func TestParseAmount(t *testing.T) {
	v, err := ParseAmount("  1500.75 ")
	require.NoError(t, err)
	assert.Equal(t, 1500.75, v)

	v, err = ParseAmount("-12")
	require.NoError(t, err)
	assert.Equal(t, -12.0, v)

	for _, bad := range []string{"", "abc", "12,50", "1.2.3"} {
		_, err := ParseAmount(bad)
		assert.ErrorIs(t, err, ErrInvalidAmount, "input %q", bad)
	}
}

func TestPackEntries(t *testing.T) {
	packed, dropped := PackEntries([]float64{1.50, 2.25}, 8, 4)
	assert.Zero(t, dropped)
	assert.Equal(t, []int64{150, 225, 0, 0, 0, 0, 0, 0}, packed)
}

func TestPackEntriesTruncates(t *testing.T) {
	packed, dropped := PackEntries([]float64{1, 2, 3, 4, 5}, 8, 3)
	assert.Equal(t, 2, dropped)
	assert.Equal(t, []int64{100, 200, 300, 0, 0, 0, 0, 0}, packed)
}

func TestPackEntriesCapacityClampedToSlots(t *testing.T) {
	packed, dropped := PackEntries([]float64{1, 2, 3}, 2, 10)
	assert.Equal(t, 1, dropped)
	assert.Equal(t, []int64{100, 200}, packed)
}

func TestCheckBounds(t *testing.T) {
	// The symmetric range of a 26-bit plaintext modulus, as used by the
	// encrypted session.
	const bound = 32_964_608

	in := Inputs{EssentialTotal: 450.50, NonEssentialTotal: 120.00, SavingsGoal: 500.00}
	require.NoError(t, CheckBounds([]int64{150075}, in, bound))
}

func TestCheckBoundsRejectsContributionOverflow(t *testing.T) {
	const bound = 32_964_608

	// $25,000 of income fits at order 1 but its 15% contribution at
	// order 2 (2,500,000 x 15 = 37,500,000) does not.
	in := Inputs{EssentialTotal: 450.50, NonEssentialTotal: 120.00, SavingsGoal: 500.00}
	err := CheckBounds([]int64{2_500_000}, in, bound)

	require.Error(t, err)
	assert.ErrorIs(t, err, fixedpoint.ErrMagnitude)
	assert.Contains(t, err.Error(), "savings contribution")
}

func TestCheckBoundsRejectsIncomeTotalOverflow(t *testing.T) {
	const bound = 32_964_608

	err := CheckBounds([]int64{bound, bound}, Inputs{}, bound)
	require.Error(t, err)
	assert.ErrorIs(t, err, fixedpoint.ErrMagnitude)
	assert.Contains(t, err.Error(), "income total")
}

func TestCheckBoundsRejectsExpenseOverflow(t *testing.T) {
	const bound = 32_964_608

	in := Inputs{EssentialTotal: 200_000.00, NonEssentialTotal: 200_000.00}
	err := CheckBounds([]int64{0}, in, bound)
	require.Error(t, err)
	assert.ErrorIs(t, err, fixedpoint.ErrMagnitude)
	assert.Contains(t, err.Error(), "total expenses")
}

func TestExpectedReferenceFigures(t *testing.T) {
	got, err := Expected(Inputs{
		IncomeEntries:     []float64{1500.75},
		EssentialTotal:    450.50,
		NonEssentialTotal: 120.00,
		SavingsGoal:       500.00,
	})
	require.NoError(t, err)

	assert.InDelta(t, 570.50, got.TotalExpenses, 0.01)
	assert.InDelta(t, 930.25, got.NetIncome, 0.01)
	assert.InDelta(t, 430.25, got.GoalDifference, 0.01)
	assert.InDelta(t, 1500.75*SavingsRate, got.SavingsContribution, 0.01)
}

func TestExpectedMultipleIncomeEntries(t *testing.T) {
	got, err := Expected(Inputs{
		IncomeEntries:     []float64{1000, 250.25, 99.99},
		EssentialTotal:    800,
		NonEssentialTotal: 200,
		SavingsGoal:       400,
	})
	require.NoError(t, err)

	assert.InDelta(t, 1000.00, got.TotalExpenses, 0.01)
	assert.InDelta(t, 350.24, got.NetIncome, 0.01)
	assert.InDelta(t, -49.76, got.GoalDifference, 0.01)
}

func TestRecommendation(t *testing.T) {
	assert.Contains(t, Recommendation(Results{NetIncome: -50}), "exceed")
	assert.Contains(t, Recommendation(Results{NetIncome: 500, GoalDifference: 100}), "On track")
	assert.Contains(t, Recommendation(Results{NetIncome: 500, GoalDifference: -100}), "Short")
}
