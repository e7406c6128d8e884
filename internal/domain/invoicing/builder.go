package invoicing

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/netbill/backend/internal/domain/shared"
)

// BuildInput carries everything needed to assemble a draft invoice.
type BuildInput struct {
	UserID    uuid.UUID
	Items     []InvoiceItemInput
	TaxRules  []TaxRule
	Discounts []Discount
	IssueDate time.Time
	DueDate   time.Time
}

// Builder assembles invoices and enforces their lifecycle.
type Builder struct {
	now func() time.Time
}

// NewBuilder returns a builder using the wall clock.
func NewBuilder() *Builder {
	return &Builder{now: func() time.Time { return time.Now().UTC() }}
}

// NewBuilderWithClock returns a builder with an injected clock.
func NewBuilderWithClock(now func() time.Time) *Builder {
	return &Builder{now: now}
}

// Build validates the input and returns a Draft invoice with derived totals.
func (b *Builder) Build(in BuildInput) (*Invoice, error) {
	if in.UserID == uuid.Nil {
		return nil, ErrInvalidUser
	}
	if len(in.Items) == 0 {
		return nil, ErrNoItems
	}
	issue := in.IssueDate
	if issue.IsZero() {
		issue = b.now()
	}
	if in.DueDate.Before(issue) {
		return nil, ErrInvalidDueDate
	}

	currency := in.Items[0].UnitPrice.Currency()
	if !currency.IsValid() {
		return nil, shared.ErrCurrencyMismatch.WithMessage(fmt.Sprintf("unknown currency %q", currency))
	}
	for i, t := range in.TaxRules {
		if err := t.validate(currency); err != nil {
			return nil, fmt.Errorf("tax rule %d: %w", i, err)
		}
	}
	for i, d := range in.Discounts {
		if err := d.validate(currency); err != nil {
			return nil, fmt.Errorf("discount %d: %w", i, err)
		}
	}

	inv := &Invoice{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		UserID:            in.UserID,
		Currency:          currency,
		Status:            InvoiceStatusDraft,
		IssueDate:         issue,
		DueDate:           in.DueDate,
		TaxRules:          append([]TaxRule(nil), in.TaxRules...),
		Discounts:         append([]Discount(nil), in.Discounts...),
	}
	if err := inv.setItems(in.Items); err != nil {
		return nil, err
	}
	inv.AddDomainEvent(NewInvoiceCreatedEvent(inv))
	return inv, nil
}

// Edit replaces the items of a draft invoice and recomputes its totals.
func (b *Builder) Edit(inv *Invoice, items []InvoiceItemInput) error {
	return inv.ReplaceItems(items)
}

// Transition applies a status change permitted by the state machine.
func (b *Builder) Transition(inv *Invoice, to InvoiceStatus) error {
	return inv.TransitionTo(to, b.now())
}

// Delete checks that the invoice may be removed; only drafts can.
func (b *Builder) Delete(inv *Invoice) error {
	return inv.EnsureDeletable()
}
