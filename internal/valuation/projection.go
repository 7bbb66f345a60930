package valuation

import (
	"context"

	"github.com/R3E-Network/livecalc/internal/domain/assumptions"
	"github.com/R3E-Network/livecalc/internal/domain/policy"
)

// livesFloor is the threshold below which a cohort is treated as exhausted
// and projection stops.
const livesFloor = 1e-3

// StressConfig holds the multiplicative stress factors and output options
// for a valuation run.
type StressConfig struct {
	MortalityMultiplier float64 // default 1.0
	LapseMultiplier     float64 // default 1.0
	ExpenseMultiplier   float64 // default 1.0
	RetainScenarioNPVs  bool

	// IncludeSurrenderBenefit enables the surrender-benefit subtraction.
	// Disabled by default, since no surrender-value curve is configured
	// unless the caller supplies one.
	IncludeSurrenderBenefit bool
	SurrenderValue          float64
}

// DefaultStressConfig returns neutral multipliers (1.0, no surrender
// benefit).
func DefaultStressConfig() StressConfig {
	return StressConfig{
		MortalityMultiplier: 1.0,
		LapseMultiplier:     1.0,
		ExpenseMultiplier:   1.0,
	}
}

// Tables bundles the three resolved assumption tables a projection reads.
type Tables struct {
	Mortality assumptions.MortalityTable
	Lapse     assumptions.LapseTable
	Expense   assumptions.ExpenseTable
}

// UDFHook is invoked once per policy-year, after the base qx/lapse rates are
// fetched, to obtain multiplicative adjustment factors. Implementations must
// be pure functions of their inputs, complete within a bounded time, and
// default to 1.0 on timeout or error (see udf.go for the goja-sandboxed
// implementation).
type UDFHook interface {
	AdjustMortality(ctx context.Context, p policy.Policy, year int, lives, rate float64) float64
	AdjustLapse(ctx context.Context, p policy.Policy, year int, lives, rate float64) float64
}

// ProjectPolicy runs the single-policy single-scenario cash-flow projection,
// returning the policy's NPV under one scenario.
func ProjectPolicy(ctx context.Context, p policy.Policy, tables Tables, scenario assumptions.Scenario, cfg StressConfig, udf UDFHook) float64 {
	lives := 1.0
	npv := 0.0
	discount := 1.0

	for year := 1; year <= p.Term && lives > livesFloor; year++ {
		rate, err := scenario.Rate(year)
		if err != nil {
			rate = 0
		}

		qx, err := tables.Mortality.Qx(p.Age+year-1, p.Gender)
		if err != nil {
			qx = 0
		}
		qx = assumptions.Clamp01(qx * cfg.MortalityMultiplier)

		lambda, err := tables.Lapse.Rate(year)
		if err != nil {
			lambda = 0
		}
		lambda = assumptions.Clamp01(lambda * cfg.LapseMultiplier)

		if udf != nil {
			qx = assumptions.Clamp01(qx * udf.AdjustMortality(ctx, p, year, lives, rate))
			lambda = assumptions.Clamp01(lambda * udf.AdjustLapse(ctx, p, year, lives, rate))
		}

		deaths := qx * lives
		survivingAfterDeaths := lives - deaths
		lapses := lambda * survivingAfterDeaths

		premiumIncome := p.Premium * lives
		deathBenefit := deaths * p.SumAssured

		var expenseRate float64
		if year == 1 {
			expenseRate = tables.Expense.FirstYearExpense(p.Premium)
		} else {
			expenseRate = tables.Expense.RenewalExpense(p.Premium)
		}
		expenses := expenseRate * lives * cfg.ExpenseMultiplier

		netCashflow := premiumIncome - deathBenefit - expenses
		if cfg.IncludeSurrenderBenefit {
			netCashflow -= lapses * cfg.SurrenderValue
		}

		discount /= 1 + rate
		npv += netCashflow * discount

		lives = lives - deaths - lapses
		if lives < 0 {
			lives = 0
		}
	}

	return npv
}
