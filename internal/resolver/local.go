package resolver

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/R3E-Network/livecalc/internal/domain/assumptions"
)

// LoadLocalMortality loads a mortality table from a CSV file with schema
// "age,male_qx,female_qx" and flattens it into the same 242-entry shape
// Resolve would return over the network (ages 0-120 Male, then 0-120
// Female). Local loads bypass the transport, token, and cache entirely.
func LoadLocalMortality(path string) (Result, error) {
	rows, err := readCSV(path)
	if err != nil {
		return Result{}, err
	}

	male := make([]float64, assumptions.MortalityAges)
	female := make([]float64, assumptions.MortalityAges)
	seen := make([]bool, assumptions.MortalityAges)

	for i, row := range rows {
		if i == 0 && isHeaderRow(row, "age") {
			continue
		}
		if len(row) < 3 {
			return Result{}, fmt.Errorf("local mortality file %s: row %d has fewer than 3 columns", path, i)
		}
		age, err := strconv.Atoi(row[0])
		if err != nil || age < 0 || age >= assumptions.MortalityAges {
			return Result{}, fmt.Errorf("local mortality file %s: row %d has invalid age %q", path, i, row[0])
		}
		maleQx, err := strconv.ParseFloat(row[1], 64)
		if err != nil {
			return Result{}, fmt.Errorf("local mortality file %s: row %d has invalid male_qx %q", path, i, row[1])
		}
		femaleQx, err := strconv.ParseFloat(row[2], 64)
		if err != nil {
			return Result{}, fmt.Errorf("local mortality file %s: row %d has invalid female_qx %q", path, i, row[2])
		}
		male[age] = maleQx
		female[age] = femaleQx
		seen[age] = true
	}

	data := make([]float64, 0, assumptions.MortalityTableLen)
	data = append(data, male...)
	data = append(data, female...)

	return Result{Data: data, Source: "local:" + path}, nil
}

// LoadLocalLapse loads a lapse table from a CSV file with schema
// "year,lapse_rate".
func LoadLocalLapse(path string) (Result, error) {
	rows, err := readCSV(path)
	if err != nil {
		return Result{}, err
	}

	rates := make([]float64, assumptions.LapseYears)
	for i, row := range rows {
		if i == 0 && isHeaderRow(row, "year") {
			continue
		}
		if len(row) < 2 {
			return Result{}, fmt.Errorf("local lapse file %s: row %d has fewer than 2 columns", path, i)
		}
		year, err := strconv.Atoi(row[0])
		if err != nil || year < 1 || year > assumptions.LapseYears {
			return Result{}, fmt.Errorf("local lapse file %s: row %d has invalid year %q", path, i, row[0])
		}
		rate, err := strconv.ParseFloat(row[1], 64)
		if err != nil {
			return Result{}, fmt.Errorf("local lapse file %s: row %d has invalid lapse_rate %q", path, i, row[1])
		}
		rates[year-1] = rate
	}

	return Result{Data: rates, Source: "local:" + path}, nil
}

// LoadLocalExpense loads an expense table from a two-column name/value CSV
// naming the four expense fields: acquisition, maintenance, pct_premium,
// per_claim (order of rows does not matter).
func LoadLocalExpense(path string) (Result, error) {
	rows, err := readCSV(path)
	if err != nil {
		return Result{}, err
	}

	values := map[string]float64{}
	for i, row := range rows {
		if i == 0 && isHeaderRow(row, "name") {
			continue
		}
		if len(row) < 2 {
			return Result{}, fmt.Errorf("local expense file %s: row %d has fewer than 2 columns", path, i)
		}
		v, err := strconv.ParseFloat(row[1], 64)
		if err != nil {
			return Result{}, fmt.Errorf("local expense file %s: row %d has invalid value %q", path, i, row[1])
		}
		values[row[0]] = v
	}

	data := []float64{
		values["acquisition"],
		values["maintenance"],
		values["pct_premium"],
		values["per_claim"],
	}
	return Result{Data: data, Source: "local:" + path}, nil
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open local assumption file %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse local assumption file %s: %w", path, err)
	}
	return rows, nil
}

func isHeaderRow(row []string, firstColumnName string) bool {
	return len(row) > 0 && row[0] == firstColumnName
}
