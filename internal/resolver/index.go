package resolver

import (
	"fmt"
	"strconv"
)

// mortalityIndex implements the scalar lookup indexing protocol for
// mortality tables: required attribute "age" in [0,120]; optional "gender"
// selecting the Male (0..120) or Female (121..241) half of the flat
// 242-entry vector. Missing or out-of-range age is an error.
func mortalityIndex(attrs map[string]string) (int, error) {
	ageStr, ok := attrs["age"]
	if !ok {
		return 0, fmt.Errorf("missing required attribute \"age\"")
	}
	age, err := strconv.Atoi(ageStr)
	if err != nil {
		return 0, fmt.Errorf("attribute \"age\" is not an integer: %w", err)
	}
	if age < 0 || age > 120 {
		return 0, fmt.Errorf("attribute \"age\" %d out of range [0,120]", age)
	}

	offset := 0
	if gender, ok := attrs["gender"]; ok {
		switch gender {
		case "M", "Male", "0":
			offset = 0
		case "F", "Female", "2":
			offset = 121
		default:
			return 0, fmt.Errorf("attribute \"gender\" %q not recognized", gender)
		}
	}

	return offset + age, nil
}
