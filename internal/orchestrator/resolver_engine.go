package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"github.com/R3E-Network/livecalc/internal/domain/assumptions"
	"github.com/R3E-Network/livecalc/internal/resolver"
	"github.com/R3E-Network/livecalc/internal/valuation"
	"github.com/R3E-Network/livecalc/pkg/logger"
)

// ResolverEngine wraps the Assumption Resolver as a table-warming engine
// other engines depend on: RunChunk has nothing to decode from a byte
// buffer (resolution happens entirely at Initialize against named tables
// and versions), so it is a no-op once warm, returning immediately.
type ResolverEngine struct {
	res *resolver.Resolver
	log *logger.Logger

	mu     sync.Mutex
	state  EngineState
	tables valuation.Tables
}

// NewResolverEngine constructs an uninitialized ResolverEngine around an
// already-wired Resolver.
func NewResolverEngine(res *resolver.Resolver, log *logger.Logger) *ResolverEngine {
	return &ResolverEngine{res: res, log: log, state: Uninitialized}
}

func (e *ResolverEngine) State() EngineState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Initialize expects cfg["mortality_version"], cfg["lapse_version"], and
// cfg["expense_version"] naming the table versions to resolve.
func (e *ResolverEngine) Initialize(ctx context.Context, cfg Config, creds Credentials) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != Uninitialized {
		return &StateError{Engine: "resolver", Attempt: "initialize", Current: e.state, Expected: Uninitialized}
	}
	e.state = Initializing

	mortalityVersion, _ := cfg["mortality_version"].(string)
	lapseVersion, _ := cfg["lapse_version"].(string)
	expenseVersion, _ := cfg["expense_version"].(string)
	if mortalityVersion == "" || lapseVersion == "" || expenseVersion == "" {
		e.state = Error
		return fmt.Errorf("resolver engine: mortality_version, lapse_version, and expense_version are all required")
	}

	mortalityResult, err := e.res.Resolve(ctx, "mortality", mortalityVersion)
	if err != nil {
		e.state = Error
		return fmt.Errorf("resolver engine: resolve mortality: %w", err)
	}
	mortality, err := assumptions.NewMortalityTable(mortalityResult.Data)
	if err != nil {
		e.state = Error
		return fmt.Errorf("resolver engine: build mortality table: %w", err)
	}

	lapseResult, err := e.res.Resolve(ctx, "lapse", lapseVersion)
	if err != nil {
		e.state = Error
		return fmt.Errorf("resolver engine: resolve lapse: %w", err)
	}
	lapse, err := assumptions.NewLapseTable(lapseResult.Data)
	if err != nil {
		e.state = Error
		return fmt.Errorf("resolver engine: build lapse table: %w", err)
	}

	expenseResult, err := e.res.Resolve(ctx, "expense", expenseVersion)
	if err != nil {
		e.state = Error
		return fmt.Errorf("resolver engine: resolve expense: %w", err)
	}
	expense, err := assumptions.NewExpenseTable(expenseResult.Data)
	if err != nil {
		e.state = Error
		return fmt.Errorf("resolver engine: build expense table: %w", err)
	}

	e.tables = valuation.Tables{Mortality: mortality, Lapse: lapse, Expense: expense}
	e.state = Ready
	return nil
}

func (e *ResolverEngine) Info() EngineInfo {
	return EngineInfo{Name: "resolver", Required: true}
}

// Tables returns the resolved tables. Only valid once State() is Ready.
func (e *ResolverEngine) Tables() valuation.Tables {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tables
}

func (e *ResolverEngine) RunChunk(ctx context.Context, in []byte, out []byte) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != Ready {
		return 0, &StateError{Engine: "resolver", Attempt: "run_chunk", Current: e.state, Expected: Ready}
	}
	return 0, nil
}

func (e *ResolverEngine) Dispose(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = Disposed
	return nil
}
