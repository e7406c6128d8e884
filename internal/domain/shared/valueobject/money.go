package valueobject

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/netbill/backend/internal/domain/shared"
)

// Money is an exact amount in a currency's smallest unit.
// It is immutable - all operations return new Money instances.
//
// Ratio and percentage operations round half-up (away from zero) to the
// nearest minor unit exactly once per call; callers that chain several
// steps should compute the ratio first and call once.
type Money struct {
	minor    int64
	currency Currency
}

// NewMoney creates Money from minor units (e.g. cents).
func NewMoney(minorUnits int64, currency Currency) Money {
	return Money{minor: minorUnits, currency: currency}
}

// NewMoneyFromDecimal converts a major-unit decimal into Money, rounding
// half-up to the currency scale.
func NewMoneyFromDecimal(amount decimal.Decimal, currency Currency) Money {
	minor := amount.Shift(currency.Scale()).Round(0).IntPart()
	return Money{minor: minor, currency: currency}
}

// ParseMoney parses a major-unit string such as "50.23". It rejects amounts
// carrying more fractional digits than the currency allows.
func ParseMoney(amount string, currency Currency) (Money, error) {
	if currency == "" {
		return Money{}, fmt.Errorf("currency cannot be empty")
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount string: %w", err)
	}
	scale := currency.Scale()
	if !d.Equal(d.Truncate(scale)) {
		return Money{}, fmt.Errorf("amount %s has more than %d fractional digits for %s", amount, scale, currency)
	}
	return Money{minor: d.Shift(scale).IntPart(), currency: currency}, nil
}

// MustParseMoney is ParseMoney for literals in tests and fixtures.
func MustParseMoney(amount string, currency Currency) Money {
	m, err := ParseMoney(amount, currency)
	if err != nil {
		panic(err)
	}
	return m
}

// Zero returns a zero-value Money in the specified currency
func Zero(currency Currency) Money {
	return Money{currency: currency}
}

// MinorUnits returns the amount in the currency's smallest unit.
func (m Money) MinorUnits() int64 { return m.minor }

// Currency returns the currency code
func (m Money) Currency() Currency { return m.currency }

// Decimal returns the amount in major units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.minor, -m.currency.Scale())
}

func (m Money) IsZero() bool     { return m.minor == 0 }
func (m Money) IsPositive() bool { return m.minor > 0 }
func (m Money) IsNegative() bool { return m.minor < 0 }

func (m Money) sameCurrency(other Money) error {
	if m.currency != other.currency {
		return shared.ErrCurrencyMismatch.WithMessage(
			fmt.Sprintf("currency mismatch: %s and %s", m.currency, other.currency))
	}
	return nil
}

// Add returns the sum. Fails with CURRENCY_MISMATCH on differing currencies.
func (m Money) Add(other Money) (Money, error) {
	if err := m.sameCurrency(other); err != nil {
		return Money{}, err
	}
	return Money{minor: m.minor + other.minor, currency: m.currency}, nil
}

// MustAdd adds two Money values, panics if currencies don't match
func (m Money) MustAdd(other Money) Money {
	result, err := m.Add(other)
	if err != nil {
		panic(err)
	}
	return result
}

// Subtract returns the difference. Fails with CURRENCY_MISMATCH on differing currencies.
func (m Money) Subtract(other Money) (Money, error) {
	if err := m.sameCurrency(other); err != nil {
		return Money{}, err
	}
	return Money{minor: m.minor - other.minor, currency: m.currency}, nil
}

// MustSubtract subtracts two Money values, panics if currencies don't match
func (m Money) MustSubtract(other Money) Money {
	result, err := m.Subtract(other)
	if err != nil {
		panic(err)
	}
	return result
}

// MulInt multiplies by an integer factor; exact.
func (m Money) MulInt(factor int64) Money {
	return Money{minor: m.minor * factor, currency: m.currency}
}

// MulDecimal multiplies by a decimal quantity and rounds once.
func (m Money) MulDecimal(factor decimal.Decimal) Money {
	minor := decimal.NewFromInt(m.minor).Mul(factor).Round(0).IntPart()
	return Money{minor: minor, currency: m.currency}
}

// MulRatio returns m * num / den rounded half-up once. den must be positive.
func (m Money) MulRatio(num, den int64) Money {
	minor := decimal.NewFromInt(m.minor).
		Mul(decimal.NewFromInt(num)).
		DivRound(decimal.NewFromInt(den), 0).
		IntPart()
	return Money{minor: minor, currency: m.currency}
}

// MulRatioCeil returns m * num / den rounded towards positive infinity.
func (m Money) MulRatioCeil(num, den int64) Money {
	q, r := decimal.NewFromInt(m.minor).
		Mul(decimal.NewFromInt(num)).
		QuoRem(decimal.NewFromInt(den), 0)
	minor := q.IntPart()
	if r.IsPositive() {
		minor++
	}
	return Money{minor: minor, currency: m.currency}
}

// Percent returns pct percent of m (pct=6 means 6%), rounded once.
func (m Money) Percent(pct decimal.Decimal) Money {
	minor := decimal.NewFromInt(m.minor).
		Mul(pct).
		DivRound(decimal.NewFromInt(100), 0).
		IntPart()
	return Money{minor: minor, currency: m.currency}
}

// Negate returns the negated amount
func (m Money) Negate() Money {
	return Money{minor: -m.minor, currency: m.currency}
}

// Max0 clamps negative amounts to zero.
func (m Money) Max0() Money {
	if m.minor < 0 {
		return Zero(m.currency)
	}
	return m
}

// Equals compares amount and currency.
func (m Money) Equals(other Money) bool {
	return m.minor == other.minor && m.currency == other.currency
}

// Compare returns -1, 0, 1. Fails with CURRENCY_MISMATCH on differing currencies.
func (m Money) Compare(other Money) (int, error) {
	if err := m.sameCurrency(other); err != nil {
		return 0, err
	}
	switch {
	case m.minor < other.minor:
		return -1, nil
	case m.minor > other.minor:
		return 1, nil
	}
	return 0, nil
}

// LessThan returns true if m < other
func (m Money) LessThan(other Money) (bool, error) {
	c, err := m.Compare(other)
	return c < 0, err
}

// GreaterThan returns true if m > other
func (m Money) GreaterThan(other Money) (bool, error) {
	c, err := m.Compare(other)
	return c > 0, err
}

// String renders "50.23 CNY".
func (m Money) String() string {
	return m.Decimal().StringFixed(m.currency.Scale()) + " " + string(m.currency)
}

// Amount renders the major-unit amount with the currency scale, e.g. "50.23".
func (m Money) Amount() string {
	return m.Decimal().StringFixed(m.currency.Scale())
}

type moneyJSON struct {
	Amount     string   `json:"amount"`
	Currency   Currency `json:"currency"`
	MinorUnits *int64   `json:"minor_units,omitempty"`
}

// MarshalJSON implements json.Marshaler
func (m Money) MarshalJSON() ([]byte, error) {
	minor := m.minor
	return json.Marshal(moneyJSON{
		Amount:     m.Amount(),
		Currency:   m.currency,
		MinorUnits: &minor,
	})
}

// UnmarshalJSON accepts either minor_units or a major-unit amount string.
func (m *Money) UnmarshalJSON(data []byte) error {
	var v moneyJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	cur, err := ParseCurrency(string(v.Currency))
	if err != nil {
		return err
	}
	if v.MinorUnits != nil {
		*m = NewMoney(*v.MinorUnits, cur)
		return nil
	}
	parsed, err := ParseMoney(v.Amount, cur)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
