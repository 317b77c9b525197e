// Package core provides the normalized billing model and money helpers.
//
// This file contains functions for parsing monetary amounts from vendor
// strings and formatting them for display.
package core

import (
	"errors"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

var ErrInvalidAmount = errors.New("invalid amount")

func init() {
	// Amounts travel as JSON numbers to match the vendor payloads.
	decimal.MarshalJSONWithoutQuotes = true
}

// ParseAmount converts a decimal string into an exact amount.
//
// It accepts a dot decimal separator and an optional sign. Negative values
// are allowed because prepaid balances can be in arrears. Commas are
// rejected: in yuan amounts they group thousands, so "1,234" is malformed
// rather than 1.234. Returns ErrInvalidAmount for empty or malformed input.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34, nil
//	ParseAmount("1,234")  -> 0, ErrInvalidAmount
//	ParseAmount("-3.5")   -> -3.5, nil
//	ParseAmount("abc")    -> 0, ErrInvalidAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	digits := strings.TrimLeft(s, "+-")
	if len(s)-len(digits) > 1 || digits == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	parts := strings.Split(digits, ".")
	if len(parts) > 2 {
		return decimal.Zero, ErrInvalidAmount
	}
	for _, part := range parts {
		for _, r := range part {
			if !unicode.IsDigit(r) || r > unicode.MaxASCII {
				return decimal.Zero, ErrInvalidAmount
			}
		}
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// FormatYuan formats an amount with two decimals and the yuan sign (e.g. "¥12.34").
func FormatYuan(d decimal.Decimal) string {
	if d.IsNegative() {
		return "-¥" + d.Neg().StringFixed(2)
	}
	return "¥" + d.StringFixed(2)
}

// Sum adds amounts exactly.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}
