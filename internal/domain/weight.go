package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// WeightScale is the number of fraction digits kept for kilogram weights.
const WeightScale = 3

// ParseWeightKg parses a decimal kilogram string such as "10.000".
func ParseWeightKg(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Decimal{}, ErrInvalidWeight
	}
	w, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %q", ErrInvalidWeight, raw)
	}
	return w.Round(WeightScale), nil
}

// FormatWeightKg renders a weight with a fixed three-digit fraction.
func FormatWeightKg(w decimal.Decimal) string {
	return w.StringFixed(WeightScale)
}

func requirePositiveWeight(w decimal.Decimal) (decimal.Decimal, error) {
	if !w.IsPositive() {
		return decimal.Decimal{}, ErrInvalidWeight
	}
	return w.Round(WeightScale), nil
}
