package assumptions

import "fmt"

// LapseYears is the number of policy years (1..50) a lapse table covers.
const LapseYears = 50

// LapseTable is a flat lapse-rate vector indexed by policy year (1-based).
type LapseTable struct {
	data []float64
}

// NewLapseTable validates and wraps a flat lapse vector.
func NewLapseTable(data []float64) (LapseTable, error) {
	if len(data) != LapseYears {
		return LapseTable{}, fmt.Errorf("lapse table must have %d entries, got %d", LapseYears, len(data))
	}
	return LapseTable{data: append([]float64(nil), data...)}, nil
}

// Rate returns the lapse probability for the given 1-based policy year,
// clamped into [0,1].
func (l LapseTable) Rate(year int) (float64, error) {
	if year < 1 || year > LapseYears {
		return 0, fmt.Errorf("policy year %d out of range [1,%d]", year, LapseYears)
	}
	return Clamp01(l.data[year-1]), nil
}

// Raw returns the underlying flat vector. Callers must not mutate it.
func (l LapseTable) Raw() []float64 {
	return l.data
}
