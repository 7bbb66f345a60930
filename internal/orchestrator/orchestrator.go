package orchestrator

import (
	"context"
	"fmt"

	"github.com/R3E-Network/livecalc/infrastructure/resilience"
	"github.com/R3E-Network/livecalc/pkg/logger"
)

// RunResult aggregates the outcome of dispatching a set of engines.
type RunResult struct {
	// BytesOut holds the RunChunk output of each engine that succeeded,
	// required or optional, keyed by engine name.
	BytesOut map[string][]byte
	// Partial lists optional engines whose failure did not abort the run.
	Partial []string
}

// Orchestrator dispatches a fixed set of engines in the order given,
// wrapping each engine's RunChunk call in its own circuit breaker so that
// a flaky engine degrades gracefully across chunks instead of tripping
// every other engine's breaker too.
type Orchestrator struct {
	log      *logger.Logger
	breakers map[string]*resilience.CircuitBreaker
}

// New constructs an Orchestrator.
func New(log *logger.Logger) *Orchestrator {
	return &Orchestrator{log: log, breakers: make(map[string]*resilience.CircuitBreaker)}
}

func (o *Orchestrator) breakerFor(name string) *resilience.CircuitBreaker {
	if cb, ok := o.breakers[name]; ok {
		return cb
	}
	cb := resilience.New(resilience.DefaultConfig())
	o.breakers[name] = cb
	return cb
}

// Run dispatches each engine's RunChunk against in, writing into a
// per-engine output buffer sized by the caller. An engine still
// Uninitialized is initialized with cfg and creds first and disposed after
// a successful run; an engine that arrives already initialized is run as-is
// and left for the caller to dispose. A required engine's failure (init or
// run) aborts the whole pipeline; an optional engine's failure is recorded
// in Partial and the pipeline continues.
func (o *Orchestrator) Run(ctx context.Context, engines []Engine, cfg Config, creds Credentials, in []byte, outSize int) (RunResult, error) {
	result := RunResult{BytesOut: make(map[string][]byte)}

	for _, eng := range engines {
		info := eng.Info()

		initializedHere := false
		if eng.State() == Uninitialized {
			if err := eng.Initialize(ctx, cfg, creds); err != nil {
				if info.Required {
					return result, fmt.Errorf("orchestrator: required engine %s failed to initialize: %w", info.Name, err)
				}
				result.Partial = append(result.Partial, info.Name)
				o.log.WithField("engine", info.Name).Warn("optional engine failed to initialize, continuing")
				continue
			}
			initializedHere = true
		}

		out := make([]byte, outSize)
		cb := o.breakerFor(info.Name)

		var written int
		err := cb.Execute(ctx, func() error {
			n, runErr := eng.RunChunk(ctx, in, out)
			written = n
			return runErr
		})
		if err != nil {
			if info.Required {
				return result, fmt.Errorf("orchestrator: required engine %s failed: %w", info.Name, err)
			}
			result.Partial = append(result.Partial, info.Name)
			o.log.WithField("engine", info.Name).Warn("optional engine failed, continuing with partial result")
			continue
		}

		result.BytesOut[info.Name] = out[:written]

		if initializedHere {
			if err := eng.Dispose(ctx); err != nil {
				o.log.WithField("engine", info.Name).Warn("engine disposal failed")
			}
		}
	}

	return result, nil
}
