package valuation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dop251/goja"

	"github.com/R3E-Network/livecalc/internal/domain/policy"
	"github.com/R3E-Network/livecalc/pkg/logger"
)

// DefaultUDFTimeout bounds a single adjust_mortality/adjust_lapse call.
const DefaultUDFTimeout = time.Second

// defaultAdjustment is returned whenever a user script times out, errors, or
// returns a non-numeric value. A misbehaving UDF must never abort a run; it
// degrades to a no-op multiplier instead.
const defaultAdjustment = 1.0

// UDFStats counts outcomes across all calls made through a GojaUDF, for
// surfacing in run diagnostics.
type UDFStats struct {
	Calls      uint64
	Timeouts   uint64
	Errors     uint64
	BadReturns uint64
}

// GojaUDF sandboxes a user-supplied adjustment script in its own goja
// runtime per call, so concurrent scenario workers never share VM state.
// The script must define adjust_mortality(policy, context) and
// adjust_lapse(policy, context) functions returning a numeric multiplier;
// either may be omitted, in which case that hook defaults to 1.0.
type GojaUDF struct {
	source  string
	timeout time.Duration
	log     *logger.Logger

	mu    sync.Mutex
	stats UDFStats
}

// NewGojaUDF compiles source once (to fail fast on syntax errors) and
// returns a hook that instantiates a fresh runtime per invocation.
func NewGojaUDF(source string, timeout time.Duration, log *logger.Logger) (*GojaUDF, error) {
	if timeout <= 0 {
		timeout = DefaultUDFTimeout
	}
	if _, err := goja.Compile("adjustment.js", source, false); err != nil {
		return nil, fmt.Errorf("compile adjustment script: %w", err)
	}
	return &GojaUDF{source: source, timeout: timeout, log: log}, nil
}

// Stats returns a snapshot of call outcome counters.
func (u *GojaUDF) Stats() UDFStats {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.stats
}

// AdjustMortality implements UDFHook.
func (u *GojaUDF) AdjustMortality(ctx context.Context, p policy.Policy, year int, lives, rate float64) float64 {
	return u.call(ctx, "adjust_mortality", p, year, lives, rate)
}

// AdjustLapse implements UDFHook.
func (u *GojaUDF) AdjustLapse(ctx context.Context, p policy.Policy, year int, lives, rate float64) float64 {
	return u.call(ctx, "adjust_lapse", p, year, lives, rate)
}

func (u *GojaUDF) call(ctx context.Context, fnName string, p policy.Policy, year int, lives, rate float64) float64 {
	u.mu.Lock()
	u.stats.Calls++
	u.mu.Unlock()

	vm := goja.New()
	if _, err := vm.RunString(u.source); err != nil {
		u.recordError()
		return defaultAdjustment
	}

	fn, ok := goja.AssertFunction(vm.Get(fnName))
	if !ok {
		// Hook not defined by this script: treat as a deliberate no-op,
		// not a failure.
		return defaultAdjustment
	}

	policyObj := vm.NewObject()
	_ = policyObj.Set("id", p.ID)
	_ = policyObj.Set("age", p.Age)
	_ = policyObj.Set("gender", p.Gender.String())
	_ = policyObj.Set("sum_assured", p.SumAssured)
	_ = policyObj.Set("premium", p.Premium)
	_ = policyObj.Set("term", p.Term)

	callCtx := vm.NewObject()
	_ = callCtx.Set("year", year)
	_ = callCtx.Set("lives", lives)
	_ = callCtx.Set("rate", rate)

	timer := time.AfterFunc(u.timeout, func() {
		vm.Interrupt("adjustment script exceeded its time budget")
	})
	defer timer.Stop()

	result, err := fn(goja.Undefined(), policyObj, callCtx)
	if err != nil {
		if _, isInterrupt := err.(*goja.InterruptedError); isInterrupt {
			u.recordTimeout()
		} else {
			u.recordError()
		}
		return defaultAdjustment
	}

	exported := result.Export()
	v, ok := toFloat(exported)
	if !ok {
		u.recordBadReturn()
		return defaultAdjustment
	}
	return v
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

func (u *GojaUDF) recordTimeout() {
	u.mu.Lock()
	u.stats.Timeouts++
	u.mu.Unlock()
	if u.log != nil {
		u.log.Warn("adjustment script timed out, defaulting to 1.0")
	}
}

func (u *GojaUDF) recordError() {
	u.mu.Lock()
	u.stats.Errors++
	u.mu.Unlock()
	if u.log != nil {
		u.log.Warn("adjustment script errored, defaulting to 1.0")
	}
}

func (u *GojaUDF) recordBadReturn() {
	u.mu.Lock()
	u.stats.BadReturns++
	u.mu.Unlock()
	if u.log != nil {
		u.log.Warn("adjustment script returned a non-numeric value, defaulting to 1.0")
	}
}
