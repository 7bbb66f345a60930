// Package valuation implements the stochastic valuation kernel:
// deterministic scenario generation, single-policy single-scenario cash-flow
// projection, an optional goja-sandboxed UDF hook, and distribution
// statistics aggregated over a parallel scenario loop.
package valuation

import (
	"math"
	"math/rand/v2"

	"github.com/R3E-Network/livecalc/internal/domain/assumptions"
)

// ScenarioParams configures deterministic scenario generation.
type ScenarioParams struct {
	InitialRate float64
	Drift       float64
	Volatility  float64
	MinRate     float64
	MaxRate     float64
}

// GenerateScenarios produces n scenarios of ScenarioYears one-year rates
// each via a geometric-Brownian step, seeded deterministically. The RNG
// family is pinned to math/rand/v2's PCG source so that two runs with
// identical seed, parameters, and count produce bit-identical output, and so
// that a longer run's first n scenarios match a shorter run's (prefix
// stability): each scenario draws its normal samples from an independent PCG
// stream seeded from (seed, scenario index), rather than all scenarios
// sharing one advancing stream.
func GenerateScenarios(n int, p ScenarioParams, seed uint64) assumptions.ScenarioSet {
	out := make(assumptions.ScenarioSet, n)
	for i := 0; i < n; i++ {
		out[i] = generateOne(p, seed, uint64(i))
	}
	return out
}

func generateOne(p ScenarioParams, seed, index uint64) assumptions.Scenario {
	src := rand.NewPCG(seed, index)
	rng := rand.New(src)

	rates := make([]float64, assumptions.ScenarioYears)
	prev := p.InitialRate
	driftTerm := p.Drift - 0.5*p.Volatility*p.Volatility

	for year := 0; year < assumptions.ScenarioYears; year++ {
		z := rng.NormFloat64()
		next := prev * math.Exp(driftTerm+p.Volatility*z)
		next = clamp(next, p.MinRate, p.MaxRate)
		rates[year] = next
		prev = next
	}

	return assumptions.Scenario{Rates: rates}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
