package enums

import "fmt"

// ProductType identifies the kind of access a purchase grants.
type ProductType string

const (
	ProductTypeCourse       ProductType = "course"
	ProductTypeLearningPath ProductType = "learning_path"
	ProductTypeSubscription ProductType = "subscription"
	ProductTypeLiveClass    ProductType = "live_class"
)

var validProductTypes = []ProductType{
	ProductTypeCourse,
	ProductTypeLearningPath,
	ProductTypeSubscription,
	ProductTypeLiveClass,
}

// String implements fmt.Stringer.
func (p ProductType) String() string {
	return string(p)
}

// IsValid reports whether the value is a known ProductType.
func (p ProductType) IsValid() bool {
	for _, candidate := range validProductTypes {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParseProductType converts raw input into a ProductType.
func ParseProductType(value string) (ProductType, error) {
	for _, candidate := range validProductTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid product type %q", value)
}
