package valuation

import (
	"context"
	"runtime"
	"sync"

	"github.com/R3E-Network/livecalc/internal/domain/assumptions"
	"github.com/R3E-Network/livecalc/internal/domain/policy"
	"github.com/R3E-Network/livecalc/pkg/logger"
)

// RunConfig bundles the inputs to a full kernel run: a policy set, resolved
// tables shared read-only across every worker, a scenario set, and stress
// configuration.
type RunConfig struct {
	Policies  policy.Set
	Tables    Tables
	Scenarios assumptions.ScenarioSet
	Stress    StressConfig
	UDF       UDFHook

	// Concurrency caps the number of scenario workers running at once.
	// Zero means runtime.GOMAXPROCS(0).
	Concurrency int
}

// RunResult is the outcome of a full kernel run: the distribution of
// scenario-level NPVs (summed across every policy in the set), and,
// when RetainScenarioNPVs is set, the full per-scenario vector ordered
// by scenario index.
type RunResult struct {
	Distribution  Distribution
	ScenarioNPVs  []float64
	UDFStats      UDFStats
}

// Run executes the scenario loop: one goroutine per in-flight scenario,
// bounded by Concurrency, each producing a scenario-level NPV (the sum of
// that scenario's per-policy NPVs). The shared accumulator is never touched
// per-iteration; every worker writes to its own slot in a pre-sized slice,
// and the reduction (Summarize) runs once after every worker has finished.
func Run(ctx context.Context, cfg RunConfig, log *logger.Logger) RunResult {
	n := len(cfg.Scenarios)
	npvs := make([]float64, n)

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = runtime.GOMAXPROCS(0)
	}

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for i := range cfg.Scenarios {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()

			scenario := cfg.Scenarios[idx]
			var scenarioNPV float64
			for _, p := range cfg.Policies {
				scenarioNPV += ProjectPolicy(ctx, p, cfg.Tables, scenario, cfg.Stress, cfg.UDF)
			}
			npvs[idx] = scenarioNPV
		}(i)
	}
	wg.Wait()

	result := RunResult{Distribution: Summarize(npvs)}
	if cfg.Stress.RetainScenarioNPVs {
		result.ScenarioNPVs = npvs
	}
	if gojaUDF, ok := cfg.UDF.(*GojaUDF); ok {
		result.UDFStats = gojaUDF.Stats()
	}

	if log != nil {
		log.WithFields(map[string]interface{}{
			"scenario_count": n,
			"policy_count":   len(cfg.Policies),
			"mean_npv":       result.Distribution.Mean,
			"p95_npv":        result.Distribution.P95,
		}).Info("valuation kernel run complete")
	}

	return result
}
