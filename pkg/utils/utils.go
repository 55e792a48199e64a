// Package utils provides utility functions for the journal analytics backend.
package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// GenerateID generates a unique ID with optional prefix.
func GenerateID(prefix string) string {
	bytes := make([]byte, 16)
	rand.Read(bytes)
	id := hex.EncodeToString(bytes)
	if prefix != "" {
		return fmt.Sprintf("%s_%s", prefix, id)
	}
	return id
}

// GenerateTradeID generates a unique trade ID.
func GenerateTradeID() string {
	return GenerateID("trd")
}

// GenerateJournalID generates a unique journal ID.
func GenerateJournalID() string {
	return GenerateID("jrn")
}

// Round2 rounds a float to 2 decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// RoundToDecimalPlaces rounds a decimal to specified places.
func RoundToDecimalPlaces(d decimal.Decimal, places int32) decimal.Decimal {
	return d.Round(places)
}

// MaxDecimal returns the maximum of two decimals.
func MaxDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// MinDecimal returns the minimum of two decimals.
func MinDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// NumberResult is the outcome of validating a user-entered numeric string.
// Callers surface Error as a field-level message instead of handling a panic
// or a silently wrong zero.
type NumberResult struct {
	Valid bool    `json:"valid"`
	Value float64 `json:"value"`
	Error string  `json:"error,omitempty"`
}

// ParseNumber validates a numeric string within [min, max].
func ParseNumber(s string, min, max float64) NumberResult {
	s = strings.TrimSpace(s)
	if s == "" {
		return NumberResult{Error: "value is required"}
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return NumberResult{Error: fmt.Sprintf("not a number: %q", s)}
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return NumberResult{Error: "value must be finite"}
	}
	if v < min {
		return NumberResult{Error: fmt.Sprintf("value must be at least %g", min)}
	}
	if v > max {
		return NumberResult{Error: fmt.Sprintf("value must be at most %g", max)}
	}

	return NumberResult{Valid: true, Value: v}
}

// FormatMoney formats a decimal as money.
func FormatMoney(d decimal.Decimal, currency string) string {
	switch strings.ToUpper(currency) {
	case "USD", "USDT", "USDC":
		return "$" + d.StringFixed(2)
	case "GBP":
		return "£" + d.StringFixed(2)
	case "EUR":
		return "€" + d.StringFixed(2)
	default:
		return d.StringFixed(2) + " " + currency
	}
}
