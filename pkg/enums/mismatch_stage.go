package enums

import "fmt"

// MismatchStage names the secondary reconciliation step that failed after
// the primary access grant already succeeded.
type MismatchStage string

const (
	MismatchStageSubscriptionUpsert MismatchStage = "subscription_upsert"
	MismatchStageProviderEnroll     MismatchStage = "provider_enroll"
)

var validMismatchStages = []MismatchStage{
	MismatchStageSubscriptionUpsert,
	MismatchStageProviderEnroll,
}

// String implements fmt.Stringer.
func (m MismatchStage) String() string {
	return string(m)
}

// IsValid reports whether the value is a known MismatchStage.
func (m MismatchStage) IsValid() bool {
	for _, candidate := range validMismatchStages {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseMismatchStage converts raw input into a MismatchStage.
func ParseMismatchStage(value string) (MismatchStage, error) {
	for _, candidate := range validMismatchStages {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid mismatch stage %q", value)
}
