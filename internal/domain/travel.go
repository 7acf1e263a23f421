package domain

import "strings"

// ClassOfTravel selects the checked-baggage weight allowance.
type ClassOfTravel string

const (
	ClassEconomy  ClassOfTravel = "economy"
	ClassBusiness ClassOfTravel = "business"
)

// Allowances in pounds.
const (
	EconomyLimitPounds  = 50.0
	BusinessLimitPounds = 70.0
)

// ThresholdPounds returns the allowance for the class. Unknown classes get the
// economy allowance.
func (c ClassOfTravel) ThresholdPounds() float64 {
	if c == ClassBusiness {
		return BusinessLimitPounds
	}
	return EconomyLimitPounds
}

// Title returns the class name as shown to travellers ("Economy").
func (c ClassOfTravel) Title() string {
	switch c {
	case ClassBusiness:
		return "Business"
	default:
		return "Economy"
	}
}

// ParseClassOfTravel parses a class name case-insensitively.
func ParseClassOfTravel(s string) (ClassOfTravel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "economy":
		return ClassEconomy, nil
	case "business":
		return ClassBusiness, nil
	default:
		return "", NewDomainError("ParseClassOfTravel", ErrInvalidInput, s)
	}
}
