package invoicing_test

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netbill/backend/internal/domain/invoicing"
	"github.com/netbill/backend/internal/domain/shared"
	"github.com/netbill/backend/internal/domain/shared/valueobject"
)

var (
	issued = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	due    = issued.AddDate(0, 0, 14)
)

func cny(amount string) valueobject.Money {
	return valueobject.MustParseMoney(amount, valueobject.CNY)
}

func qty(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func item(desc, quantity, price string) invoicing.InvoiceItemInput {
	return invoicing.InvoiceItemInput{
		Description: desc,
		Quantity:    qty(quantity),
		UnitPrice:   cny(price),
		PeriodStart: issued.AddDate(0, -1, 0),
		PeriodEnd:   issued,
	}
}

func newBuilder() *invoicing.Builder {
	return invoicing.NewBuilderWithClock(func() time.Time { return issued.Add(time.Hour) })
}

func vat6() invoicing.TaxRule {
	return invoicing.TaxRule{Name: "VAT", Kind: invoicing.AdjustmentPercentage, Rate: qty("0.06")}
}

func build(t *testing.T, in invoicing.BuildInput) *invoicing.Invoice {
	t.Helper()
	if in.UserID == uuid.Nil {
		in.UserID = uuid.New()
	}
	if in.IssueDate.IsZero() {
		in.IssueDate = issued
	}
	if in.DueDate.IsZero() {
		in.DueDate = due
	}
	inv, err := newBuilder().Build(in)
	require.NoError(t, err)
	return inv
}

func TestBuilder_TaxAndDiscountBothOnSubtotal(t *testing.T) {
	inv := build(t, invoicing.BuildInput{
		Items:     []invoicing.InvoiceItemInput{item("Fiber 200M monthly fee", "1", "200.00")},
		TaxRules:  []invoicing.TaxRule{vat6()},
		Discounts: []invoicing.Discount{{Name: "Loyalty", Kind: invoicing.AdjustmentFixed, FixedAmount: cny("20.00")}},
	})

	assert.Equal(t, invoicing.InvoiceStatusDraft, inv.Status)
	assert.Equal(t, "200.00 CNY", inv.Subtotal.String())
	assert.Equal(t, "12.00 CNY", inv.TaxAmount.String())
	assert.Equal(t, "20.00 CNY", inv.DiscountAmount.String())
	assert.Equal(t, "192.00 CNY", inv.Total.String())
	require.Len(t, inv.GetDomainEvents(), 1)
	assert.Equal(t, invoicing.EventTypeInvoiceCreated, inv.GetDomainEvents()[0].EventType())
}

func TestBuilder_TotalsInvariant(t *testing.T) {
	tests := []struct {
		name      string
		items     []invoicing.InvoiceItemInput
		taxes     []invoicing.TaxRule
		discounts []invoicing.Discount
		subtotal  string
		tax       string
		discount  string
		total     string
	}{
		{
			name:     "item total rounds quantity times price once",
			items:    []invoicing.InvoiceItemInput{item("Traffic 4.5 GiB", "4.5", "0.05")},
			subtotal: "0.23", tax: "0.00", discount: "0.00", total: "0.23",
		},
		{
			name:      "percentage tax and discount both use the original subtotal",
			items:     []invoicing.InvoiceItemInput{item("Plan", "2", "50.00")},
			taxes:     []invoicing.TaxRule{vat6(), {Name: "Levy", Kind: invoicing.AdjustmentFixed, FixedAmount: cny("1.00")}},
			discounts: []invoicing.Discount{{Name: "Promo", Kind: invoicing.AdjustmentPercentage, Percent: qty("10")}},
			subtotal:  "100.00", tax: "7.00", discount: "10.00", total: "97.00",
		},
		{
			name:      "discount larger than subtotal clamps total at zero",
			items:     []invoicing.InvoiceItemInput{item("Setup", "1", "10.00")},
			discounts: []invoicing.Discount{{Name: "Waiver", Kind: invoicing.AdjustmentFixed, FixedAmount: cny("50.00")}},
			subtotal:  "10.00", tax: "0.00", discount: "50.00", total: "0.00",
		},
		{
			name:     "free item is allowed",
			items:    []invoicing.InvoiceItemInput{item("Router rental", "1", "0"), item("Static IP", "3", "5.00")},
			subtotal: "15.00", tax: "0.00", discount: "0.00", total: "15.00",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := build(t, invoicing.BuildInput{Items: tt.items, TaxRules: tt.taxes, Discounts: tt.discounts})
			assert.Equal(t, tt.subtotal, inv.Subtotal.Amount())
			assert.Equal(t, tt.tax, inv.TaxAmount.Amount())
			assert.Equal(t, tt.discount, inv.DiscountAmount.Amount())
			assert.Equal(t, tt.total, inv.Total.Amount())

			sum := valueobject.Zero(valueobject.CNY)
			for _, it := range inv.Items {
				sum = sum.MustAdd(it.Total)
			}
			assert.True(t, sum.Equals(inv.Subtotal))
			assert.True(t, inv.Subtotal.MustAdd(inv.TaxAmount).MustSubtract(inv.DiscountAmount).Max0().Equals(inv.Total))
		})
	}
}

func TestBuilder_Validation(t *testing.T) {
	user := uuid.New()
	tests := []struct {
		name string
		in   invoicing.BuildInput
		want error
	}{
		{"missing user", invoicing.BuildInput{Items: []invoicing.InvoiceItemInput{item("x", "1", "1")}, DueDate: due}, invoicing.ErrInvalidUser},
		{"no items", invoicing.BuildInput{UserID: user, DueDate: due}, invoicing.ErrNoItems},
		{"blank description", invoicing.BuildInput{UserID: user, Items: []invoicing.InvoiceItemInput{item("  ", "1", "1")}, DueDate: due}, invoicing.ErrInvalidDescription},
		{"zero quantity", invoicing.BuildInput{UserID: user, Items: []invoicing.InvoiceItemInput{item("x", "0", "1")}, DueDate: due}, invoicing.ErrInvalidQuantity},
		{"negative price", invoicing.BuildInput{UserID: user, Items: []invoicing.InvoiceItemInput{item("x", "1", "-1")}, DueDate: due}, invoicing.ErrInvalidUnitPrice},
		{"due before issue", invoicing.BuildInput{UserID: user, Items: []invoicing.InvoiceItemInput{item("x", "1", "1")}, IssueDate: issued, DueDate: issued.Add(-time.Hour)}, invoicing.ErrInvalidDueDate},
		{"mixed currencies", invoicing.BuildInput{UserID: user, DueDate: due, Items: []invoicing.InvoiceItemInput{
			item("x", "1", "1"),
			{Description: "y", Quantity: qty("1"), UnitPrice: valueobject.MustParseMoney("1", valueobject.USD)},
		}}, shared.ErrCurrencyMismatch},
		{"tax rate above one", invoicing.BuildInput{UserID: user, DueDate: due, Items: []invoicing.InvoiceItemInput{item("x", "1", "1")},
			TaxRules: []invoicing.TaxRule{{Name: "VAT", Kind: invoicing.AdjustmentPercentage, Rate: qty("6")}}}, invoicing.ErrInvalidTaxRule},
		{"discount in foreign currency", invoicing.BuildInput{UserID: user, DueDate: due, Items: []invoicing.InvoiceItemInput{item("x", "1", "1")},
			Discounts: []invoicing.Discount{{Name: "d", Kind: invoicing.AdjustmentFixed, FixedAmount: valueobject.MustParseMoney("1", valueobject.USD)}}}, invoicing.ErrInvalidDiscount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newBuilder().Build(tt.in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestBuilder_Edit(t *testing.T) {
	b := newBuilder()
	inv := build(t, invoicing.BuildInput{Items: []invoicing.InvoiceItemInput{item("Plan", "1", "200.00")}, TaxRules: []invoicing.TaxRule{vat6()}})

	require.NoError(t, b.Edit(inv, []invoicing.InvoiceItemInput{item("Plan", "1", "100.00"), item("Overage", "2", "10.00")}))
	assert.Equal(t, "120.00", inv.Subtotal.Amount())
	assert.Equal(t, "7.20", inv.TaxAmount.Amount())
	assert.Equal(t, "127.20", inv.Total.Amount())
	assert.Len(t, inv.Items, 2)

	t.Run("invalid edit keeps previous items", func(t *testing.T) {
		err := b.Edit(inv, []invoicing.InvoiceItemInput{item("", "1", "1")})
		assert.True(t, errors.Is(err, invoicing.ErrInvalidDescription))
		assert.Len(t, inv.Items, 2)
		assert.Equal(t, "127.20", inv.Total.Amount())
	})

	t.Run("non-draft is immutable", func(t *testing.T) {
		require.NoError(t, b.Transition(inv, invoicing.InvoiceStatusSent))
		err := b.Edit(inv, []invoicing.InvoiceItemInput{item("Plan", "1", "1.00")})
		assert.True(t, errors.Is(err, invoicing.ErrInvoiceNotDraft))
		assert.Equal(t, "127.20", inv.Total.Amount())
	})
}

func TestBuilder_Transition(t *testing.T) {
	S := invoicing.InvoiceStatusSent
	P := invoicing.InvoiceStatusPaid
	O := invoicing.InvoiceStatusOverdue
	C := invoicing.InvoiceStatusCancelled
	D := invoicing.InvoiceStatusDraft

	tests := []struct {
		name string
		path []invoicing.InvoiceStatus
		ok   bool
	}{
		{"draft sent paid", []invoicing.InvoiceStatus{S, P}, true},
		{"draft sent overdue", []invoicing.InvoiceStatus{S, O}, true},
		{"draft cancelled", []invoicing.InvoiceStatus{C}, true},
		{"sent cancelled", []invoicing.InvoiceStatus{S, C}, true},
		{"overdue cancelled", []invoicing.InvoiceStatus{S, O, C}, true},
		{"draft cannot be paid", []invoicing.InvoiceStatus{P}, false},
		{"paid is final", []invoicing.InvoiceStatus{S, P, C}, false},
		{"cancelled is final", []invoicing.InvoiceStatus{C, S}, false},
		{"no way back to draft", []invoicing.InvoiceStatus{S, D}, false},
		{"overdue cannot be paid", []invoicing.InvoiceStatus{S, O, P}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBuilder()
			inv := build(t, invoicing.BuildInput{Items: []invoicing.InvoiceItemInput{item("Plan", "1", "10.00")}})
			var err error
			for _, to := range tt.path {
				if err = b.Transition(inv, to); err != nil {
					break
				}
			}
			if tt.ok {
				require.NoError(t, err)
				assert.Equal(t, tt.path[len(tt.path)-1], inv.Status)
				return
			}
			assert.True(t, errors.Is(err, invoicing.ErrIllegalTransition))
		})
	}
}

func TestBuilder_PaidStampsDate(t *testing.T) {
	b := newBuilder()
	inv := build(t, invoicing.BuildInput{Items: []invoicing.InvoiceItemInput{item("Plan", "1", "10.00")}})
	require.NoError(t, b.Transition(inv, invoicing.InvoiceStatusSent))
	assert.Nil(t, inv.PaidDate)
	require.NoError(t, b.Transition(inv, invoicing.InvoiceStatusPaid))
	require.NotNil(t, inv.PaidDate)
	assert.Equal(t, issued.Add(time.Hour), *inv.PaidDate)
}

func TestBuilder_Delete(t *testing.T) {
	b := newBuilder()
	inv := build(t, invoicing.BuildInput{Items: []invoicing.InvoiceItemInput{item("Plan", "1", "10.00")}})
	assert.NoError(t, b.Delete(inv))

	require.NoError(t, b.Transition(inv, invoicing.InvoiceStatusSent))
	assert.True(t, errors.Is(b.Delete(inv), invoicing.ErrInvoiceNotDraft))
}

func TestInvoice_IsOverdueAt(t *testing.T) {
	b := newBuilder()
	inv := build(t, invoicing.BuildInput{Items: []invoicing.InvoiceItemInput{item("Plan", "1", "10.00")}})
	assert.False(t, inv.IsOverdueAt(due.Add(time.Hour)))
	require.NoError(t, b.Transition(inv, invoicing.InvoiceStatusSent))
	assert.False(t, inv.IsOverdueAt(due))
	assert.True(t, inv.IsOverdueAt(due.Add(time.Second)))
}
