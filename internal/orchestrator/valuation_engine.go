package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"github.com/R3E-Network/livecalc/internal/domain/assumptions"
	"github.com/R3E-Network/livecalc/internal/domain/policy"
	"github.com/R3E-Network/livecalc/internal/valuation"
	"github.com/R3E-Network/livecalc/pkg/logger"
)

// ValuationEngine wraps the Valuation Kernel as an orchestrated Engine.
// Initialize receives the resolved tables, scenario set, and stress
// configuration; RunChunk decodes a chunk of InputPolicyRecords, projects
// each policy against every scenario, and writes one ResultRecord per
// (scenario, policy) pair to out.
type ValuationEngine struct {
	log *logger.Logger

	mu        sync.Mutex
	state     EngineState
	tables    valuation.Tables
	scenarios assumptions.ScenarioSet
	stress    valuation.StressConfig
	udf       valuation.UDFHook
}

// NewValuationEngine constructs an uninitialized ValuationEngine.
func NewValuationEngine(log *logger.Logger) *ValuationEngine {
	return &ValuationEngine{log: log, state: Uninitialized}
}

func (e *ValuationEngine) State() EngineState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Initialize expects cfg["tables"] (valuation.Tables), cfg["scenarios"]
// (assumptions.ScenarioSet), and optionally cfg["stress"]
// (valuation.StressConfig) and cfg["udf"] (valuation.UDFHook).
func (e *ValuationEngine) Initialize(ctx context.Context, cfg Config, creds Credentials) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != Uninitialized {
		return &StateError{Engine: "valuation", Attempt: "initialize", Current: e.state, Expected: Uninitialized}
	}
	e.state = Initializing

	tables, ok := cfg["tables"].(valuation.Tables)
	if !ok {
		e.state = Error
		return fmt.Errorf("valuation engine: cfg[\"tables\"] missing or wrong type")
	}
	scenarios, ok := cfg["scenarios"].(assumptions.ScenarioSet)
	if !ok {
		e.state = Error
		return fmt.Errorf("valuation engine: cfg[\"scenarios\"] missing or wrong type")
	}

	e.tables = tables
	e.scenarios = scenarios
	if stress, ok := cfg["stress"].(valuation.StressConfig); ok {
		e.stress = stress
	} else {
		e.stress = valuation.DefaultStressConfig()
	}
	if udf, ok := cfg["udf"].(valuation.UDFHook); ok {
		e.udf = udf
	}

	e.state = Ready
	return nil
}

func (e *ValuationEngine) Info() EngineInfo {
	return EngineInfo{Name: "valuation", Required: true, Dependencies: []string{"resolver"}}
}

// RunChunk decodes in as a sequence of InputPolicyRecord entries, projects
// each against every scenario held from Initialize, and writes one
// ResultRecord per (scenario, policy) pair into out in policy-major
// order (all scenarios of the first policy, then the next policy). It
// returns the number of bytes written.
func (e *ValuationEngine) RunChunk(ctx context.Context, in []byte, out []byte) (int, error) {
	e.mu.Lock()
	if e.state != Ready {
		state := e.state
		e.mu.Unlock()
		return 0, &StateError{Engine: "valuation", Attempt: "run_chunk", Current: state, Expected: Ready}
	}
	e.state = Running
	tables, scenarios, stress, udf := e.tables, e.scenarios, e.stress, e.udf
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		if e.state == Running {
			e.state = Ready
		}
		e.mu.Unlock()
	}()

	if len(in)%InputPolicyRecordSize != 0 {
		return 0, fmt.Errorf("valuation engine: input buffer length %d is not a multiple of %d", len(in), InputPolicyRecordSize)
	}
	policyCount := len(in) / InputPolicyRecordSize

	required := policyCount * len(scenarios) * ResultRecordSize
	if len(out) < required {
		return 0, fmt.Errorf("valuation engine: output buffer too small: %d < %d", len(out), required)
	}

	written := 0
	for p := 0; p < policyCount; p++ {
		rec, err := DecodeInputPolicyRecord(in[p*InputPolicyRecordSize : (p+1)*InputPolicyRecordSize])
		if err != nil {
			return written, err
		}
		pol, err := recordToPolicy(rec)
		if err != nil {
			return written, err
		}

		for s := range scenarios {
			npv := valuation.ProjectPolicy(ctx, pol, tables, scenarios[s], stress, udf)
			result := ResultRecord{ScenarioID: uint32(s), PolicyID: uint32(rec.PolicyID), NPV: npv}
			if err := EncodeResultRecord(out[written:written+ResultRecordSize], result); err != nil {
				return written, err
			}
			written += ResultRecordSize
		}
	}

	return written, nil
}

func (e *ValuationEngine) Dispose(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = Disposed
	return nil
}

// recordToPolicy reconstructs enough of a Policy to project it. The
// 32-byte wire record carries no term field, so every policy decoded here
// gets a term of 50 (assumptions.LapseYears, the maximum supported), the
// widest projection horizon; no engine configuration sets another term.
func recordToPolicy(rec InputPolicyRecord) (policy.Policy, error) {
	gender := policy.Male
	if rec.Gender == 1 {
		gender = policy.Female
	}
	return policy.New(
		rec.PolicyID,
		int(rec.Age),
		gender,
		rec.SumAssured,
		rec.Premium,
		assumptions.LapseYears,
		policy.ProductType(rec.ProductType),
		policy.UnderwritingClass(rec.UnderwritingClass),
		nil,
	)
}
