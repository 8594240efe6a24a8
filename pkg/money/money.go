// Package money centralizes conversion between major and minor currency
// units. Upstream producers are inconsistent about which unit they emit, so
// every heuristic for disambiguating a raw amount lives here; callers must
// not re-implement detection logic.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// minorPerMajor is the scale for the supported currencies (kobo per naira,
// cents per dollar).
const minorPerMajor = 100

var minorScale = decimal.NewFromInt(minorPerMajor)

// ToMinor converts a major-unit amount into a canonical minor-unit integer.
// Amounts with sub-minor precision (more than two fractional digits) are
// rejected rather than silently rounded.
func ToMinor(major decimal.Decimal) (int64, error) {
	if major.IsNegative() {
		return 0, fmt.Errorf("amount must not be negative: %s", major)
	}
	scaled := major.Mul(minorScale)
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, fmt.Errorf("amount %s has sub-minor precision", major)
	}
	return scaled.IntPart(), nil
}

// ToMajor converts a minor-unit integer back into a major-unit decimal.
// ToMajor(ToMinor(x)) == x for any non-negative whole number of minor steps.
func ToMajor(minor int64) decimal.Decimal {
	return decimal.NewFromInt(minor).Div(minorScale)
}

// NormalizeAmbiguous interprets a raw numeric amount of unknown unit and
// returns minor units. A value with a fractional part can only be major
// units. Whole values are assumed to be major units too: the platform's
// cheapest product costs far more than the largest plausible minor-unit
// price expressible below the cutoff, so a small integer like 2500 means
// 2500 naira, not 25 naira in kobo. Values at or above the cutoff are
// treated as already-minor amounts produced by the provider.
func NormalizeAmbiguous(raw decimal.Decimal, minorCutoff int64) (int64, error) {
	if raw.IsNegative() {
		return 0, fmt.Errorf("amount must not be negative: %s", raw)
	}
	if !raw.Equal(raw.Truncate(0)) {
		return ToMinor(raw)
	}
	if minorCutoff > 0 && raw.IntPart() >= minorCutoff {
		return raw.IntPart(), nil
	}
	return ToMinor(raw)
}
