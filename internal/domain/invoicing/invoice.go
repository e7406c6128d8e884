package invoicing

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/netbill/backend/internal/domain/shared"
	"github.com/netbill/backend/internal/domain/shared/valueobject"
)

// AggregateTypeInvoice is the aggregate type name used in events.
const AggregateTypeInvoice = "Invoice"

// Invoice owns its items. Subtotal, TaxAmount, DiscountAmount and Total are
// derived and only change while the invoice is a draft.
type Invoice struct {
	shared.BaseAggregateRoot
	Number         string
	UserID         uuid.UUID
	Currency       valueobject.Currency
	Status         InvoiceStatus
	IssueDate      time.Time
	DueDate        time.Time
	PaidDate       *time.Time
	Items          []InvoiceItem
	TaxRules       []TaxRule
	Discounts      []Discount
	Subtotal       valueobject.Money
	TaxAmount      valueobject.Money
	DiscountAmount valueobject.Money
	Total          valueobject.Money
}

// AssignNumber sets the human-readable number once.
func (inv *Invoice) AssignNumber(number string) error {
	if inv.Number != "" {
		return shared.ErrInvalidState.WithMessage("invoice number already assigned")
	}
	inv.Number = number
	return nil
}

// IsDraft reports whether the invoice is still editable.
func (inv *Invoice) IsDraft() bool {
	return inv.Status == InvoiceStatusDraft
}

// IsOverdueAt reports whether a sent invoice has passed its due date.
func (inv *Invoice) IsOverdueAt(now time.Time) bool {
	return inv.Status == InvoiceStatusSent && now.After(inv.DueDate)
}

func (inv *Invoice) setItems(inputs []InvoiceItemInput) error {
	if len(inputs) == 0 {
		return ErrNoItems
	}
	items := make([]InvoiceItem, 0, len(inputs))
	for i, in := range inputs {
		item, err := newInvoiceItem(inv.ID, in)
		if err != nil {
			return fmt.Errorf("item %d: %w", i, err)
		}
		if item.UnitPrice.Currency() != inv.Currency {
			return shared.ErrCurrencyMismatch.WithMessage(
				fmt.Sprintf("item %d priced in %s, invoice uses %s", i, item.UnitPrice.Currency(), inv.Currency))
		}
		items = append(items, item)
	}
	inv.Items = items
	inv.recalculate()
	return nil
}

// recalculate derives totals. Tax and discount are both computed against the
// original subtotal, never against each other's adjusted value.
func (inv *Invoice) recalculate() {
	subtotal := valueobject.Zero(inv.Currency)
	for _, item := range inv.Items {
		subtotal = subtotal.MustAdd(item.Total)
	}
	inv.Subtotal = subtotal
	inv.TaxAmount = taxOn(subtotal, inv.TaxRules)
	inv.DiscountAmount = discountOn(subtotal, inv.Discounts)
	inv.Total = subtotal.MustAdd(inv.TaxAmount).MustSubtract(inv.DiscountAmount).Max0()
}

// ReplaceItems swaps the item list of a draft and recomputes totals.
func (inv *Invoice) ReplaceItems(inputs []InvoiceItemInput) error {
	if !inv.IsDraft() {
		return ErrInvoiceNotDraft.WithMessage(fmt.Sprintf("cannot edit invoice in %s status", inv.Status))
	}
	if err := inv.setItems(inputs); err != nil {
		return err
	}
	inv.Touch(time.Now().UTC())
	inv.IncrementVersion()
	inv.AddDomainEvent(NewInvoiceEditedEvent(inv))
	return nil
}

// TransitionTo moves the invoice along its state machine. Sent -> Paid stamps
// the paid date.
func (inv *Invoice) TransitionTo(to InvoiceStatus, now time.Time) error {
	if !inv.Status.CanTransitionTo(to) {
		return ErrIllegalTransition.WithMessage(fmt.Sprintf("cannot move invoice from %s to %s", inv.Status, to))
	}
	from := inv.Status
	inv.Status = to
	if to == InvoiceStatusPaid {
		paid := now
		inv.PaidDate = &paid
	}
	inv.Touch(now)
	inv.IncrementVersion()
	inv.AddDomainEvent(NewInvoiceStatusChangedEvent(inv, from))
	return nil
}

// EnsureDeletable fails unless the invoice is a draft.
func (inv *Invoice) EnsureDeletable() error {
	if !inv.IsDraft() {
		return ErrInvoiceNotDraft.WithMessage(fmt.Sprintf("cannot delete invoice in %s status", inv.Status))
	}
	return nil
}
