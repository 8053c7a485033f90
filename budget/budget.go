// Package budget holds the financial domain model: the figures a user
// supplies, the metrics the server computes on their encrypted form, and
// the plaintext reference arithmetic used for verification.
package budget

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/naurayesh/fhe-cloud-financial-tool/fixedpoint"
)

// SavingsRate is the fraction of total income the server proposes to set
// aside. It is encoded by the server at scale order 1, so the resulting
// contribution comes back at scale order 2.
const SavingsRate = 0.15

// ErrInvalidAmount reports user input that does not parse as a decimal
// amount. Unlike protocol failures this is recoverable: the caller
// rejects the entry and prompts again.
var ErrInvalidAmount = errors.New("budget: amount is not a decimal number")

// Inputs are the figures one session submits for evaluation.
type Inputs struct {
	// IncomeEntries are the individual income sources; the server folds
	// them homomorphically into a total.
	IncomeEntries []float64
	// EssentialTotal and NonEssentialTotal are the two expense categories.
	EssentialTotal    float64
	NonEssentialTotal float64
	// SavingsGoal is the desired monthly saving. It is sent encoded but
	// unencrypted; only the figures it is compared against are secret.
	SavingsGoal float64
}

// Results are the decrypted, descaled session outputs.
type Results struct {
	TotalExpenses       float64
	NetIncome           float64
	GoalDifference      float64
	SavingsContribution float64
}

// ParseAmount parses one user-entered decimal amount.
func ParseAmount(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return v, nil
}

// PackEntries scales entries into a zero-filled slot vector of length
// slots, keeping at most capacity of them. The number of dropped entries
// is returned so the caller can warn; entries are never dropped silently.
func PackEntries(entries []float64, slots, capacity int) ([]int64, int) {
	if capacity > slots {
		capacity = slots
	}
	kept := entries
	dropped := 0
	if len(entries) > capacity {
		kept = entries[:capacity]
		dropped = len(entries) - capacity
	}

	packed := make([]int64, slots)
	copy(packed, fixedpoint.EncodeSlice(kept))
	return packed, dropped
}

// CheckBounds verifies that every figure the evaluation will produce
// stays inside ±bound, the symmetric range of the plaintext space: the
// folded income total, the expense sum, net income, goal difference, and
// the order-2 savings contribution. The encrypted arithmetic wraps
// silently on overflow, so a violation must reject the session up front
// rather than surface as a wrong money figure.
func CheckBounds(packedIncome []int64, in Inputs, bound int64) error {
	var incomeTotal int64
	for _, n := range packedIncome {
		incomeTotal += n
	}
	expenses := fixedpoint.Encode(in.EssentialTotal) + fixedpoint.Encode(in.NonEssentialTotal)
	net := incomeTotal - expenses

	for _, figure := range []struct {
		name   string
		scaled int64
	}{
		{"income total", incomeTotal},
		{"total expenses", expenses},
		{"net income", net},
		{"goal difference", net - fixedpoint.Encode(in.SavingsGoal)},
		{"savings contribution", incomeTotal * fixedpoint.Encode(SavingsRate)},
	} {
		if err := fixedpoint.CheckMagnitude(figure.scaled, bound); err != nil {
			return fmt.Errorf("%s: %w", figure.name, err)
		}
	}
	return nil
}

// Expected computes the session results in the clear, using the same
// fixed-point discipline the encrypted path follows. The client prints
// it next to the decrypted results as a first-slot verification.
func Expected(in Inputs) (Results, error) {
	total := fixedpoint.Value{Order: fixedpoint.OrderLinear}
	var err error
	for _, entry := range in.IncomeEntries {
		if total, err = total.Add(fixedpoint.New(entry)); err != nil {
			return Results{}, err
		}
	}

	expenses, err := fixedpoint.New(in.EssentialTotal).Add(fixedpoint.New(in.NonEssentialTotal))
	if err != nil {
		return Results{}, err
	}
	net, err := total.Sub(expenses)
	if err != nil {
		return Results{}, err
	}
	diff, err := net.Sub(fixedpoint.New(in.SavingsGoal))
	if err != nil {
		return Results{}, err
	}
	contribution := total.Mul(fixedpoint.New(SavingsRate))

	return Results{
		TotalExpenses:       expenses.Float(),
		NetIncome:           net.Float(),
		GoalDifference:      diff.Float(),
		SavingsContribution: contribution.Float(),
	}, nil
}

// Recommendation derives advice text from the decoded metrics.
func Recommendation(r Results) string {
	switch {
	case r.NetIncome < 0:
		return fmt.Sprintf("Expenses exceed income by %.2f. Reduce spending before setting a savings goal.", -r.NetIncome)
	case r.GoalDifference >= 0:
		return fmt.Sprintf("On track: net income covers the savings goal with %.2f to spare. A %.0f%% contribution would be %.2f.",
			r.GoalDifference, SavingsRate*100, r.SavingsContribution)
	default:
		return fmt.Sprintf("Short of the savings goal by %.2f. A %.0f%% contribution of %.2f may be a realistic start.",
			-r.GoalDifference, SavingsRate*100, r.SavingsContribution)
	}
}
