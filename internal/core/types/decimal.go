// Package types provides common type aliases and utilities.
package types

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Money represents a monetary value with full precision.
// Uses decimal.Decimal to avoid floating-point errors.
type Money = decimal.Decimal

// CurrencyMarker prefixes every formatted price.
const CurrencyMarker = "R$"

// NewMoney creates a Money value from a float. Prefer ParseMoney for report values.
func NewMoney(f float64) Money {
	return decimal.NewFromFloat(f)
}

// Zero returns zero Money value.
func Zero() Money {
	return decimal.Zero
}

// ParseMoney parses a spreadsheet cell into Money.
// Accepts "19.5", "19,50", "1.234,56", "1,234.56" and a leading currency marker.
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSpace(strings.TrimPrefix(s, CurrencyMarker))
	if s == "" {
		return Zero(), fmt.Errorf("empty amount")
	}

	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")
	switch {
	case lastComma >= 0 && lastDot >= 0 && lastComma > lastDot:
		// 1.234,56
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case lastComma >= 0 && lastDot >= 0:
		// 1,234.56
		s = strings.ReplaceAll(s, ",", "")
	case lastComma >= 0:
		s = strings.Replace(s, ",", ".", 1)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero(), fmt.Errorf("parse amount %q: %w", s, err)
	}
	return d, nil
}

// FormatPrice renders m with exactly two fractional digits, a comma as
// decimal separator and no thousands grouping: 19.5 -> "R$ 19,50".
func FormatPrice(m Money) string {
	return CurrencyMarker + " " + strings.Replace(m.StringFixed(2), ".", ",", 1)
}
