// Package orchestrator implements the thin engine-dispatch chrome around
// the Valuation Kernel and Assumption Resolver: a lifecycle state machine
// per engine, circuit-breaker-guarded dispatch, and the fixed-stride binary
// buffer records engines exchange at the orchestration boundary.
package orchestrator

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/R3E-Network/livecalc/internal/domain/policy"
)

func floatBits(v float64) uint64 { return math.Float64bits(v) }
func floatFromBits(b uint64) float64 { return math.Float64frombits(b) }

// InputPolicyRecordSize is the fixed size in bytes of one encoded policy
// record.
const InputPolicyRecordSize = 32

// ScenarioCellRecordSize is the fixed size in bytes of one encoded
// scenario-cell record.
const ScenarioCellRecordSize = 16

// ResultRecordSize is the fixed size in bytes of one encoded result record.
const ResultRecordSize = 32

// InputPolicyRecord is the 32-byte fixed-stride layout a ValuationEngine
// reads policies from.
type InputPolicyRecord struct {
	PolicyID          uint64
	Age               uint8
	Gender            uint8
	UnderwritingClass uint8
	ProductType       uint8
	SumAssured        float64
	Premium           float64
}

// EncodeInputPolicyRecord writes one 32-byte record into dst, which must be
// at least InputPolicyRecordSize bytes long.
func EncodeInputPolicyRecord(dst []byte, r InputPolicyRecord) error {
	if len(dst) < InputPolicyRecordSize {
		return fmt.Errorf("orchestrator: input policy record buffer too small: %d < %d", len(dst), InputPolicyRecordSize)
	}
	binary.LittleEndian.PutUint64(dst[0:8], r.PolicyID)
	dst[8] = r.Age
	dst[9] = r.Gender
	dst[10] = r.UnderwritingClass
	dst[11] = r.ProductType
	dst[12], dst[13], dst[14], dst[15] = 0, 0, 0, 0
	binary.LittleEndian.PutUint64(dst[16:24], floatBits(r.SumAssured))
	binary.LittleEndian.PutUint64(dst[24:32], floatBits(r.Premium))
	return nil
}

// DecodeInputPolicyRecord reads one 32-byte record from src.
func DecodeInputPolicyRecord(src []byte) (InputPolicyRecord, error) {
	if len(src) < InputPolicyRecordSize {
		return InputPolicyRecord{}, fmt.Errorf("orchestrator: input policy record buffer too small: %d < %d", len(src), InputPolicyRecordSize)
	}
	return InputPolicyRecord{
		PolicyID:          binary.LittleEndian.Uint64(src[0:8]),
		Age:               src[8],
		Gender:            src[9],
		UnderwritingClass: src[10],
		ProductType:       src[11],
		SumAssured:        floatFromBits(binary.LittleEndian.Uint64(src[16:24])),
		Premium:           floatFromBits(binary.LittleEndian.Uint64(src[24:32])),
	}, nil
}

// ToPolicyInputRecord projects a domain Policy into the wire record shape.
// The record carries no term field, matching the 32-byte layout exactly;
// the valuation engine projects every decoded record with a term of 50.
func ToPolicyInputRecord(p policy.Policy) InputPolicyRecord {
	gender := uint8(0)
	if p.Gender == policy.Female {
		gender = 1
	}
	return InputPolicyRecord{
		PolicyID:          p.ID,
		Age:               uint8(p.Age),
		Gender:            gender,
		UnderwritingClass: uint8(p.UnderwritingClass),
		ProductType:       uint8(p.ProductType),
		SumAssured:        p.SumAssured,
		Premium:           p.Premium,
	}
}

// ScenarioCellRecord is the 16-byte fixed-stride layout a scenario cell is
// exchanged in: { u32 scenario_id, u32 year, f64 rate }.
type ScenarioCellRecord struct {
	ScenarioID uint32
	Year       uint32
	Rate       float64
}

// EncodeScenarioCellRecord writes one 16-byte record into dst.
func EncodeScenarioCellRecord(dst []byte, r ScenarioCellRecord) error {
	if len(dst) < ScenarioCellRecordSize {
		return fmt.Errorf("orchestrator: scenario cell record buffer too small: %d < %d", len(dst), ScenarioCellRecordSize)
	}
	binary.LittleEndian.PutUint32(dst[0:4], r.ScenarioID)
	binary.LittleEndian.PutUint32(dst[4:8], r.Year)
	binary.LittleEndian.PutUint64(dst[8:16], floatBits(r.Rate))
	return nil
}

// DecodeScenarioCellRecord reads one 16-byte record from src.
func DecodeScenarioCellRecord(src []byte) (ScenarioCellRecord, error) {
	if len(src) < ScenarioCellRecordSize {
		return ScenarioCellRecord{}, fmt.Errorf("orchestrator: scenario cell record buffer too small: %d < %d", len(src), ScenarioCellRecordSize)
	}
	return ScenarioCellRecord{
		ScenarioID: binary.LittleEndian.Uint32(src[0:4]),
		Year:       binary.LittleEndian.Uint32(src[4:8]),
		Rate:       floatFromBits(binary.LittleEndian.Uint64(src[8:16])),
	}, nil
}

// ResultRecord is the 32-byte fixed-stride layout a ValuationEngine writes
// results into: { u32 scenario_id, u32 policy_id, f64 npv, 16 bytes reserved }.
type ResultRecord struct {
	ScenarioID uint32
	PolicyID   uint32
	NPV        float64
}

// EncodeResultRecord writes one 32-byte record into dst.
func EncodeResultRecord(dst []byte, r ResultRecord) error {
	if len(dst) < ResultRecordSize {
		return fmt.Errorf("orchestrator: result record buffer too small: %d < %d", len(dst), ResultRecordSize)
	}
	binary.LittleEndian.PutUint32(dst[0:4], r.ScenarioID)
	binary.LittleEndian.PutUint32(dst[4:8], r.PolicyID)
	binary.LittleEndian.PutUint64(dst[8:16], floatBits(r.NPV))
	for i := 16; i < ResultRecordSize; i++ {
		dst[i] = 0
	}
	return nil
}

// DecodeResultRecord reads one 32-byte record from src.
func DecodeResultRecord(src []byte) (ResultRecord, error) {
	if len(src) < ResultRecordSize {
		return ResultRecord{}, fmt.Errorf("orchestrator: result record buffer too small: %d < %d", len(src), ResultRecordSize)
	}
	return ResultRecord{
		ScenarioID: binary.LittleEndian.Uint32(src[0:4]),
		PolicyID:   binary.LittleEndian.Uint32(src[4:8]),
		NPV:        floatFromBits(binary.LittleEndian.Uint64(src[8:16])),
	}, nil
}
