package assumptions

import "fmt"

// ScenarioYears is the number of annual rates in a single scenario.
const ScenarioYears = 50

// Scenario is an ordered sequence of annual interest rates, one per
// projection year.
type Scenario struct {
	Rates []float64
}

// Rate returns the annual rate for the given 1-based policy year.
func (s Scenario) Rate(year int) (float64, error) {
	if year < 1 || year > len(s.Rates) {
		return 0, fmt.Errorf("scenario year %d out of range [1,%d]", year, len(s.Rates))
	}
	return s.Rates[year-1], nil
}

// ScenarioSet is an ordered sequence of scenarios.
type ScenarioSet []Scenario
