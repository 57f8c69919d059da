// Package core provides money parsing and handling utilities.
//
// Amounts are exact decimals; this file contains the parsing rules applied at the
// input boundary and the display formatting shared by the CLI and e-mails.
package core

import (
	"errors"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

var ErrInvalidAmount = errors.New("invalid amount")

// maxAmount bounds a single entry; anything above is almost certainly a typo.
var maxAmount = decimal.NewFromInt(1_000_000_000)

// ParseAmount converts a decimal string to an amount rounded to cents.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and an optional
// leading sign, then rounds half away from zero on the third decimal place.
// Zero amounts are rejected.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34, nil
//	ParseAmount("12,345") -> 12.35, nil
//	ParseAmount("-3")     -> -3, nil
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")

	body := strings.TrimLeft(s, "+-")
	if len(s)-len(body) > 1 || body == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	if strings.Count(body, ".") > 1 {
		return decimal.Zero, ErrInvalidAmount
	}
	for _, r := range body {
		if r != '.' && !unicode.IsDigit(r) {
			return decimal.Zero, ErrInvalidAmount
		}
	}

	d, err := decimal.NewFromString(strings.TrimPrefix(s, "+"))
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	d = d.Round(2)
	if err := ValidateAmount(d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// ValidateAmount rejects zero and implausibly large amounts.
func ValidateAmount(d decimal.Decimal) error {
	if d.IsZero() || d.Abs().GreaterThan(maxAmount) {
		return ErrInvalidAmount
	}
	return nil
}

// FormatAmount formats an amount as a Euro string (e.g. "€12,34", "-€3,00").
func FormatAmount(d decimal.Decimal) string {
	neg := d.IsNegative()
	s := strings.Replace(d.Abs().StringFixed(2), ".", ",", 1)
	if neg {
		return "-€" + s
	}
	return "€" + s
}
