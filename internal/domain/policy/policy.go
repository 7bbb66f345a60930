// Package policy defines the immutable policy record projected by the
// valuation kernel.
package policy

import "fmt"

// Gender is the policyholder's gender, used to index the mortality table.
type Gender uint8

const (
	Male Gender = iota
	Female
)

func (g Gender) String() string {
	if g == Female {
		return "female"
	}
	return "male"
}

// ProductType distinguishes the cash-flow shape of the policy.
type ProductType uint8

const (
	Term ProductType = iota
	WholeLife
	Endowment
)

// UnderwritingClass records the risk class assigned at underwriting.
type UnderwritingClass uint8

const (
	Standard UnderwritingClass = iota
	Smoker
	NonSmoker
	Preferred
	Substandard
)

// Policy is an immutable record of a single life-insurance contract.
// Once constructed via New, a Policy's fields must not be mutated; callers
// that need a modified policy should construct a new one.
type Policy struct {
	ID                uint64
	Age               int
	Gender            Gender
	SumAssured        float64
	Premium           float64
	Term              int
	ProductType       ProductType
	UnderwritingClass UnderwritingClass
	Attributes        map[string]string
}

// New validates and constructs a Policy. The returned value is a defensive
// copy: the Attributes map passed in is copied so later caller-side
// mutation cannot reach back into the policy set.
func New(id uint64, age int, gender Gender, sumAssured, premium float64, term int, product ProductType, class UnderwritingClass, attrs map[string]string) (Policy, error) {
	if age < 0 || age > 120 {
		return Policy{}, fmt.Errorf("policy %d: age %d out of range [0,120]", id, age)
	}
	if sumAssured < 0 {
		return Policy{}, fmt.Errorf("policy %d: sum_assured must be non-negative", id)
	}
	if premium < 0 {
		return Policy{}, fmt.Errorf("policy %d: premium must be non-negative", id)
	}
	if term < 1 || term > 50 {
		return Policy{}, fmt.Errorf("policy %d: term %d out of range [1,50]", id, term)
	}

	copied := make(map[string]string, len(attrs))
	for k, v := range attrs {
		copied[k] = v
	}

	return Policy{
		ID:                id,
		Age:               age,
		Gender:            gender,
		SumAssured:        sumAssured,
		Premium:           premium,
		Term:              term,
		ProductType:       product,
		UnderwritingClass: class,
		Attributes:        copied,
	}, nil
}

// Attribute returns an attribute value and whether it was present.
func (p Policy) Attribute(key string) (string, bool) {
	v, ok := p.Attributes[key]
	return v, ok
}

// Set is an ordered, read-only collection of policies loaded once per run.
type Set []Policy
