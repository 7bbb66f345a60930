// Package assumptions defines the three table shapes resolved from the
// Assumptions Manager (or local CSV fallback) and consumed by the
// valuation kernel: mortality, lapse, and expense.
package assumptions

import (
	"fmt"

	"github.com/R3E-Network/livecalc/internal/domain/policy"
)

// MortalityAges is the number of ages (0..120 inclusive) per gender.
const MortalityAges = 121

// MortalityTableLen is the flat length of a mortality table: 121 ages for
// Male followed by 121 ages for Female.
const MortalityTableLen = MortalityAges * 2

// MortalityTable is a flat qx vector: ages 0-120 for Male, then ages 0-120
// for Female.
type MortalityTable struct {
	data []float64
}

// NewMortalityTable validates and wraps a flat mortality vector.
func NewMortalityTable(data []float64) (MortalityTable, error) {
	if len(data) != MortalityTableLen {
		return MortalityTable{}, fmt.Errorf("mortality table must have %d entries, got %d", MortalityTableLen, len(data))
	}
	return MortalityTable{data: append([]float64(nil), data...)}, nil
}

// Qx returns the probability of death within one year for the given age
// and gender, clamped into [0,1].
func (m MortalityTable) Qx(age int, gender policy.Gender) (float64, error) {
	if age < 0 || age > 120 {
		return 0, fmt.Errorf("age %d out of range [0,120]", age)
	}
	idx := age
	if gender == policy.Female {
		idx += MortalityAges
	}
	if idx < 0 || idx >= len(m.data) {
		return 0, fmt.Errorf("mortality index %d out of bounds", idx)
	}
	return Clamp01(m.data[idx]), nil
}

// Raw returns the underlying flat vector. Callers must not mutate it.
func (m MortalityTable) Raw() []float64 {
	return m.data
}

// Clamp01 clamps v into the closed interval [0,1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
