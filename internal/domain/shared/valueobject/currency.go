package valueobject

import (
	"fmt"
	"strings"

	"golang.org/x/text/currency"
)

// Currency represents a currency code (ISO 4217)
type Currency string

const (
	CNY Currency = "CNY" // Chinese Yuan (default)
	USD Currency = "USD"
	EUR Currency = "EUR"
	JPY Currency = "JPY"
)

// DefaultCurrency is the default currency for the system
const DefaultCurrency = CNY

// ParseCurrency validates an ISO 4217 code.
func ParseCurrency(code string) (Currency, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	unit, err := currency.ParseISO(code)
	if err != nil {
		return "", fmt.Errorf("unknown currency %q: %w", code, err)
	}
	return Currency(unit.String()), nil
}

// Scale returns the number of minor-unit digits for the currency
// (2 for CNY and USD, 0 for JPY). Unknown codes fall back to 2.
func (c Currency) Scale() int32 {
	unit, err := currency.ParseISO(string(c))
	if err != nil {
		return 2
	}
	scale, _ := currency.Standard.Rounding(unit)
	return int32(scale)
}

// IsValid reports whether c is a known ISO 4217 code.
func (c Currency) IsValid() bool {
	_, err := currency.ParseISO(string(c))
	return err == nil
}

func (c Currency) String() string {
	return string(c)
}
