package invoicing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/netbill/backend/internal/domain/shared/valueobject"
)

// AdjustmentKind distinguishes percentage from fixed-amount adjustments.
type AdjustmentKind string

const (
	AdjustmentPercentage AdjustmentKind = "PERCENTAGE"
	AdjustmentFixed      AdjustmentKind = "FIXED"
)

// TaxRule adds tax to the subtotal. Rate is a fraction (0.06 for 6%).
type TaxRule struct {
	Name        string            `json:"name"`
	Kind        AdjustmentKind    `json:"kind"`
	Rate        decimal.Decimal   `json:"rate"`
	FixedAmount valueobject.Money `json:"fixed_amount,omitzero"`
}

// Discount reduces the subtotal. Percent is in percent (10 for 10%).
type Discount struct {
	Name        string            `json:"name"`
	Kind        AdjustmentKind    `json:"kind"`
	Percent     decimal.Decimal   `json:"percent"`
	FixedAmount valueobject.Money `json:"fixed_amount,omitzero"`
}

func (t TaxRule) validate(currency valueobject.Currency) error {
	if strings.TrimSpace(t.Name) == "" {
		return ErrInvalidTaxRule.WithMessage("tax rule name cannot be empty")
	}
	switch t.Kind {
	case AdjustmentPercentage:
		if t.Rate.IsNegative() || t.Rate.GreaterThan(decimal.NewFromInt(1)) {
			return ErrInvalidTaxRule.WithMessage(fmt.Sprintf("tax rate %s must be between 0 and 1", t.Rate))
		}
	case AdjustmentFixed:
		if t.FixedAmount.Currency() != currency {
			return ErrInvalidTaxRule.WithMessage(fmt.Sprintf("tax %q is in %s, invoice uses %s", t.Name, t.FixedAmount.Currency(), currency))
		}
		if t.FixedAmount.IsNegative() {
			return ErrInvalidTaxRule.WithMessage("fixed tax amount cannot be negative")
		}
	default:
		return ErrInvalidTaxRule.WithMessage(fmt.Sprintf("unknown tax kind %q", t.Kind))
	}
	return nil
}

func (d Discount) validate(currency valueobject.Currency) error {
	if strings.TrimSpace(d.Name) == "" {
		return ErrInvalidDiscount.WithMessage("discount name cannot be empty")
	}
	switch d.Kind {
	case AdjustmentPercentage:
		if d.Percent.IsNegative() || d.Percent.GreaterThan(decimal.NewFromInt(100)) {
			return ErrInvalidDiscount.WithMessage(fmt.Sprintf("discount percent %s must be between 0 and 100", d.Percent))
		}
	case AdjustmentFixed:
		if d.FixedAmount.Currency() != currency {
			return ErrInvalidDiscount.WithMessage(fmt.Sprintf("discount %q is in %s, invoice uses %s", d.Name, d.FixedAmount.Currency(), currency))
		}
		if d.FixedAmount.IsNegative() {
			return ErrInvalidDiscount.WithMessage("fixed discount amount cannot be negative")
		}
	default:
		return ErrInvalidDiscount.WithMessage(fmt.Sprintf("unknown discount kind %q", d.Kind))
	}
	return nil
}

// taxOn computes the tax for subtotal. Percentage rates are summed exactly
// and rounded once; fixed amounts add exactly.
func taxOn(subtotal valueobject.Money, rules []TaxRule) valueobject.Money {
	rate := decimal.Zero
	fixed := valueobject.Zero(subtotal.Currency())
	for _, r := range rules {
		if r.Kind == AdjustmentPercentage {
			rate = rate.Add(r.Rate)
			continue
		}
		fixed = fixed.MustAdd(r.FixedAmount)
	}
	return subtotal.MulDecimal(rate).MustAdd(fixed)
}

// discountOn computes the discount for subtotal, rounding percentages once.
func discountOn(subtotal valueobject.Money, discounts []Discount) valueobject.Money {
	pct := decimal.Zero
	fixed := valueobject.Zero(subtotal.Currency())
	for _, d := range discounts {
		if d.Kind == AdjustmentPercentage {
			pct = pct.Add(d.Percent)
			continue
		}
		fixed = fixed.MustAdd(d.FixedAmount)
	}
	return subtotal.Percent(pct).MustAdd(fixed)
}
