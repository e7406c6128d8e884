package invoicing

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/netbill/backend/internal/domain/shared/valueobject"
)

// InvoiceItemInput is the caller-supplied shape of a line item.
type InvoiceItemInput struct {
	Description string
	Quantity    decimal.Decimal
	UnitPrice   valueobject.Money
	PeriodStart time.Time
	PeriodEnd   time.Time
}

// InvoiceItem is a priced line. Total == round(Quantity * UnitPrice).
type InvoiceItem struct {
	ID          uuid.UUID
	InvoiceID   uuid.UUID
	Description string
	Quantity    decimal.Decimal
	UnitPrice   valueobject.Money
	Total       valueobject.Money
	PeriodStart time.Time
	PeriodEnd   time.Time
}

func newInvoiceItem(invoiceID uuid.UUID, in InvoiceItemInput) (InvoiceItem, error) {
	desc := strings.TrimSpace(in.Description)
	if desc == "" {
		return InvoiceItem{}, ErrInvalidDescription
	}
	if len(desc) > 500 {
		return InvoiceItem{}, ErrInvalidDescription.WithMessage("item description cannot exceed 500 characters")
	}
	if !in.Quantity.IsPositive() {
		return InvoiceItem{}, ErrInvalidQuantity
	}
	if in.UnitPrice.IsNegative() {
		return InvoiceItem{}, ErrInvalidUnitPrice
	}
	if !in.PeriodStart.IsZero() && !in.PeriodEnd.IsZero() && in.PeriodEnd.Before(in.PeriodStart) {
		return InvoiceItem{}, ErrInvalidPeriod
	}
	return InvoiceItem{
		ID:          uuid.New(),
		InvoiceID:   invoiceID,
		Description: desc,
		Quantity:    in.Quantity,
		UnitPrice:   in.UnitPrice,
		Total:       in.UnitPrice.MulDecimal(in.Quantity),
		PeriodStart: in.PeriodStart,
		PeriodEnd:   in.PeriodEnd,
	}, nil
}
