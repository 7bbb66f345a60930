package orchestrator

import (
	"context"
	"testing"

	"github.com/R3E-Network/livecalc/internal/domain/assumptions"
	"github.com/R3E-Network/livecalc/internal/valuation"
	"github.com/R3E-Network/livecalc/pkg/logger"
)

func flatTables(t *testing.T) valuation.Tables {
	t.Helper()
	mortality, err := assumptions.NewMortalityTable(make([]float64, assumptions.MortalityTableLen))
	if err != nil {
		t.Fatalf("NewMortalityTable() error = %v", err)
	}
	lapse, err := assumptions.NewLapseTable(make([]float64, assumptions.LapseYears))
	if err != nil {
		t.Fatalf("NewLapseTable() error = %v", err)
	}
	expense, err := assumptions.NewExpenseTable([]float64{0, 0, 0, 0})
	if err != nil {
		t.Fatalf("NewExpenseTable() error = %v", err)
	}
	return valuation.Tables{Mortality: mortality, Lapse: lapse, Expense: expense}
}

func TestEncodeDecodeInputPolicyRecordRoundTrip(t *testing.T) {
	want := InputPolicyRecord{
		PolicyID:          42,
		Age:               35,
		Gender:            1,
		UnderwritingClass: 2,
		ProductType:       0,
		SumAssured:        100000.5,
		Premium:           1200.25,
	}
	buf := make([]byte, InputPolicyRecordSize)
	if err := EncodeInputPolicyRecord(buf, want); err != nil {
		t.Fatalf("EncodeInputPolicyRecord() error = %v", err)
	}
	got, err := DecodeInputPolicyRecord(buf)
	if err != nil {
		t.Fatalf("DecodeInputPolicyRecord() error = %v", err)
	}
	if got != want {
		t.Errorf("round-trip = %+v, want %+v", got, want)
	}
}

func TestEncodeDecodeResultRecordRoundTrip(t *testing.T) {
	want := ResultRecord{ScenarioID: 3, PolicyID: 7, NPV: -1234.5}
	buf := make([]byte, ResultRecordSize)
	if err := EncodeResultRecord(buf, want); err != nil {
		t.Fatalf("EncodeResultRecord() error = %v", err)
	}
	got, err := DecodeResultRecord(buf)
	if err != nil {
		t.Fatalf("DecodeResultRecord() error = %v", err)
	}
	if got != want {
		t.Errorf("round-trip = %+v, want %+v", got, want)
	}
}

func TestEncodeDecodeScenarioCellRecordRoundTrip(t *testing.T) {
	want := ScenarioCellRecord{ScenarioID: 1, Year: 5, Rate: 0.0325}
	buf := make([]byte, ScenarioCellRecordSize)
	if err := EncodeScenarioCellRecord(buf, want); err != nil {
		t.Fatalf("EncodeScenarioCellRecord() error = %v", err)
	}
	got, err := DecodeScenarioCellRecord(buf)
	if err != nil {
		t.Fatalf("DecodeScenarioCellRecord() error = %v", err)
	}
	if got != want {
		t.Errorf("round-trip = %+v, want %+v", got, want)
	}
}

func TestValuationEngineRejectsRunChunkBeforeInitialize(t *testing.T) {
	eng := NewValuationEngine(nil)
	_, err := eng.RunChunk(context.Background(), nil, nil)
	if err == nil {
		t.Fatal("expected error running before Initialize")
	}
	if _, ok := err.(*StateError); !ok {
		t.Errorf("error = %v (%T), want *StateError", err, err)
	}
}

func TestValuationEngineRunChunkProducesResultsPerScenario(t *testing.T) {
	eng := NewValuationEngine(nil)

	scenarios := valuation.GenerateScenarios(4, valuation.ScenarioParams{
		InitialRate: 0.03, Drift: 0, Volatility: 0, MinRate: 0, MaxRate: 1,
	}, 1)

	cfg := Config{
		"tables":    flatTables(t),
		"scenarios": assumptions.ScenarioSet(scenarios),
		"stress":    valuation.DefaultStressConfig(),
	}
	if err := eng.Initialize(context.Background(), cfg, nil); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if eng.State() != Ready {
		t.Fatalf("State() = %v, want Ready", eng.State())
	}

	in := make([]byte, InputPolicyRecordSize)
	if err := EncodeInputPolicyRecord(in, InputPolicyRecord{
		PolicyID: 9, Age: 40, Gender: 0, SumAssured: 100000, Premium: 1000,
	}); err != nil {
		t.Fatalf("EncodeInputPolicyRecord() error = %v", err)
	}

	out := make([]byte, len(scenarios)*ResultRecordSize)
	n, err := eng.RunChunk(context.Background(), in, out)
	if err != nil {
		t.Fatalf("RunChunk() error = %v", err)
	}
	if n != len(out) {
		t.Errorf("RunChunk() wrote %d bytes, want %d", n, len(out))
	}

	for i := 0; i < len(scenarios); i++ {
		rec, err := DecodeResultRecord(out[i*ResultRecordSize : (i+1)*ResultRecordSize])
		if err != nil {
			t.Fatalf("DecodeResultRecord(%d) error = %v", i, err)
		}
		if rec.ScenarioID != uint32(i) || rec.PolicyID != 9 {
			t.Errorf("record %d = %+v, want scenario %d policy 9", i, rec, i)
		}
	}
}

func TestOrchestratorRunAbortsOnRequiredEngineFailure(t *testing.T) {
	o := New(logger.NewDefault("test"))
	eng := NewValuationEngine(nil) // never initialized with valid cfg -> fails

	_, err := o.Run(context.Background(), []Engine{eng}, Config{}, nil, nil, 0)
	if err == nil {
		t.Fatal("expected error when a required engine fails to initialize")
	}
}

func TestOrchestratorRunContinuesOnOptionalEngineFailure(t *testing.T) {
	o := New(logger.NewDefault("test"))
	eng := &fakeOptionalEngine{fail: true}

	result, err := o.Run(context.Background(), []Engine{eng}, Config{}, nil, nil, 0)
	if err != nil {
		t.Fatalf("Run() error = %v, want nil (optional engine failure should not abort)", err)
	}
	if len(result.Partial) != 1 || result.Partial[0] != "optional" {
		t.Errorf("Partial = %v, want [optional]", result.Partial)
	}
}

type fakeOptionalEngine struct {
	fail bool
}

func (f *fakeOptionalEngine) State() EngineState { return Uninitialized }
func (f *fakeOptionalEngine) Initialize(ctx context.Context, cfg Config, creds Credentials) error {
	if f.fail {
		return assertionError("forced failure")
	}
	return nil
}
func (f *fakeOptionalEngine) Info() EngineInfo { return EngineInfo{Name: "optional", Required: false} }
func (f *fakeOptionalEngine) RunChunk(ctx context.Context, in []byte, out []byte) (int, error) {
	return 0, nil
}
func (f *fakeOptionalEngine) Dispose(ctx context.Context) error { return nil }

type assertionError string

func (e assertionError) Error() string { return string(e) }
