package assumptions

import "fmt"

// ExpenseTableLen is the fixed number of scalars in an expense table.
const ExpenseTableLen = 4

// ExpenseTable holds the four expense assumptions: per-policy acquisition
// (one-time), per-policy maintenance (annual), percent of premium, and
// per-claim cost.
type ExpenseTable struct {
	Acquisition float64
	Maintenance float64
	PctPremium  float64
	PerClaim    float64
}

// NewExpenseTable validates and constructs an ExpenseTable from a flat
// 4-element vector in the order [acquisition, maintenance, pct_premium, per_claim].
func NewExpenseTable(data []float64) (ExpenseTable, error) {
	if len(data) != ExpenseTableLen {
		return ExpenseTable{}, fmt.Errorf("expense table must have %d entries, got %d", ExpenseTableLen, len(data))
	}
	if data[2] < 0 || data[2] > 1 {
		return ExpenseTable{}, fmt.Errorf("percent_of_premium must be in [0,1], got %v", data[2])
	}
	return ExpenseTable{
		Acquisition: data[0],
		Maintenance: data[1],
		PctPremium:  data[2],
		PerClaim:    data[3],
	}, nil
}

// Raw returns the flat 4-element representation.
func (e ExpenseTable) Raw() []float64 {
	return []float64{e.Acquisition, e.Maintenance, e.PctPremium, e.PerClaim}
}

// FirstYearExpense computes the year-1 expense load for a given premium.
func (e ExpenseTable) FirstYearExpense(premium float64) float64 {
	return e.Acquisition + e.Maintenance + e.PctPremium*premium
}

// RenewalExpense computes the renewal-year expense load for a given premium.
func (e ExpenseTable) RenewalExpense(premium float64) float64 {
	return e.Maintenance + e.PctPremium*premium
}
