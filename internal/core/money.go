// Package core provides the planner's domain types and money helpers.
//
// This file contains the currency rounding used throughout the amortization
// schedule, parsing of amounts typed into forms, and display formatting.
package core

import (
	"fmt"
	"math"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

var ErrInvalidAmount = fmt.Errorf("%w: invalid amount", ErrInvalidInput)

// Round2 rounds to 2 decimal places (half away from zero on the shortest
// decimal representation), the precision used for currency display.
// NaN and infinities are returned unchanged.
func Round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// ParseAmount converts a user-typed amount into a float.
//
// Both dot (1234.50) and comma (1234,50) decimal separators are accepted. When
// both separators appear, the last one is the decimal separator and the other
// one groups thousands (1,234.50 and 1.234,50). A single comma followed by
// exactly three digits groups thousands (300,000). Spaces and underscores are
// ignored. Negative values, exponents and anything that is not a number are
// rejected.
//
// Examples:
//
//	ParseAmount("300000")    -> 300000, nil
//	ParseAmount("300,000")   -> 300000, nil
//	ParseAmount("1 234,50")  -> 1234.5, nil
//	ParseAmount("1,234.50")  -> 1234.5, nil
//	ParseAmount("-1")        -> 0, ErrInvalidAmount
//	ParseAmount("1e400")     -> 0, ErrInvalidAmount
func ParseAmount(s string) (float64, error) {
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\u00a0', '_', '\t':
			return -1
		}
		return r
	}, s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	if strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") || strings.ContainsAny(s, "eE") {
		return 0, ErrInvalidAmount
	}

	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")
	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case strings.Count(s, ",") == 1:
		if len(s)-lastComma-1 == 3 && lastComma > 0 {
			s = strings.Replace(s, ",", "", 1)
		} else {
			s = strings.Replace(s, ",", ".", 1)
		}
	case strings.Count(s, ",") > 1:
		s = strings.ReplaceAll(s, ",", "")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	if d.IsNegative() {
		return 0, ErrInvalidAmount
	}
	f := d.InexactFloat64()
	if math.IsInf(f, 0) {
		return 0, ErrInvalidAmount
	}
	return f, nil
}

// FormatAmount renders an amount with thousands separators and two decimals
// followed by the currency label, e.g. "1,753.77 NOK".
func FormatAmount(v float64, c Currency) string {
	s := humanize.FormatFloat("#,###.##", Round2(v))
	if c == "" {
		return s
	}
	return s + " " + string(c)
}

// FormatPercent renders a share percentage, e.g. "33.33 %".
func FormatPercent(v float64) string {
	return humanize.FormatFloat("#,###.##", Round2(v)) + " %"
}
