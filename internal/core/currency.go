package core

import (
	"fmt"
	"strings"
)

// Currency is a display label only; amounts are never converted.
type Currency string

const (
	USD Currency = "USD"
	EUR Currency = "EUR"
	GBP Currency = "GBP"
	JPY Currency = "JPY"
	CAD Currency = "CAD"
	NOK Currency = "NOK"

	DefaultCurrency = NOK
)

var ErrInvalidCurrency = fmt.Errorf("%w: unsupported currency", ErrInvalidInput)

// Currencies returns the supported labels in form display order.
func Currencies() []Currency {
	return []Currency{USD, EUR, GBP, JPY, CAD, NOK}
}

func ParseCurrency(s string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(s)))
	if !c.IsValid() {
		return "", ErrInvalidCurrency
	}
	return c, nil
}

func (c Currency) IsValid() bool {
	switch c {
	case USD, EUR, GBP, JPY, CAD, NOK:
		return true
	default:
		return false
	}
}

func (c Currency) String() string {
	return string(c)
}
