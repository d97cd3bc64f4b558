package enums

import "fmt"

// ReconcileOutcome is the terminal state of a payment webhook reconciliation.
type ReconcileOutcome string

const (
	ReconcileOutcomeFound   ReconcileOutcome = "success_found"
	ReconcileOutcomeCreated ReconcileOutcome = "success_created"
	ReconcileOutcomeFailed  ReconcileOutcome = "failed"
)

var validReconcileOutcomes = []ReconcileOutcome{
	ReconcileOutcomeFound,
	ReconcileOutcomeCreated,
	ReconcileOutcomeFailed,
}

// String implements fmt.Stringer.
func (o ReconcileOutcome) String() string {
	return string(o)
}

// IsValid reports whether the value is a known ReconcileOutcome.
func (o ReconcileOutcome) IsValid() bool {
	for _, candidate := range validReconcileOutcomes {
		if candidate == o {
			return true
		}
	}
	return false
}

// IsSuccess reports whether the outcome left exactly one order for the intent.
func (o ReconcileOutcome) IsSuccess() bool {
	return o == ReconcileOutcomeFound || o == ReconcileOutcomeCreated
}

// ParseReconcileOutcome converts raw input into a ReconcileOutcome.
func ParseReconcileOutcome(value string) (ReconcileOutcome, error) {
	for _, candidate := range validReconcileOutcomes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid reconcile outcome %q", value)
}
