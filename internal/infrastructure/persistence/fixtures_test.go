package persistence_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/netbill/backend/internal/domain/finance"
	"github.com/netbill/backend/internal/domain/invoicing"
	"github.com/netbill/backend/internal/domain/rating"
	"github.com/netbill/backend/internal/domain/shared/valueobject"
)

var epoch = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

func cny(amount string) valueobject.Money {
	return valueobject.MustParseMoney(amount, valueobject.CNY)
}

func ptr(v int64) *int64 { return &v }

func newPlan(t *testing.T) *rating.RatePlan {
	t.Helper()
	fixed, err := rating.NewRate(rating.RateKindFixed, cny("30.00"), nil, epoch, nil)
	require.NoError(t, err)
	tiered, err := rating.NewRate(rating.RateKindTiered, valueobject.Zero(valueobject.CNY), []rating.TierBound{
		{FromBytes: 0, ToBytes: ptr(rating.BytesPerGiB), Price: cny("0")},
		{FromBytes: rating.BytesPerGiB, Price: cny("0.05")},
	}, epoch, nil)
	require.NoError(t, err)

	plan, err := rating.NewRatePlan("Home Fiber 100", valueobject.CNY, epoch, nil, []rating.Rate{*fixed, *tiered})
	require.NoError(t, err)
	return plan
}

func newInvoice(t *testing.T, number string, due time.Time) *invoicing.Invoice {
	t.Helper()
	b := invoicing.NewBuilderWithClock(func() time.Time { return epoch })
	inv, err := b.Build(invoicing.BuildInput{
		UserID: uuid.New(),
		Items: []invoicing.InvoiceItemInput{
			{Description: "Monthly access", Quantity: decimal.NewFromInt(1), UnitPrice: cny("30.00"), PeriodStart: epoch, PeriodEnd: epoch.AddDate(0, 1, 0)},
			{Description: "Traffic 12.5 GiB", Quantity: decimal.RequireFromString("12.5"), UnitPrice: cny("0.05")},
		},
		TaxRules:  []invoicing.TaxRule{{Name: "VAT", Kind: invoicing.AdjustmentPercentage, Rate: decimal.RequireFromString("0.06")}},
		Discounts: []invoicing.Discount{{Name: "loyalty", Kind: invoicing.AdjustmentFixed, FixedAmount: cny("2.00")}},
		IssueDate: epoch,
		DueDate:   due,
	})
	require.NoError(t, err)
	require.NoError(t, inv.AssignNumber(number))
	return inv
}

func sendInvoice(t *testing.T, inv *invoicing.Invoice) {
	t.Helper()
	require.NoError(t, inv.TransitionTo(invoicing.InvoiceStatusSent, epoch))
}

func newPayment(t *testing.T, inv *invoicing.Invoice, now time.Time) *finance.PaymentRecord {
	t.Helper()
	pp := finance.NewPaymentProcessor(finance.WithClock(func() time.Time { return now }))
	p, err := pp.Create(inv, finance.PaymentMethod{Type: finance.PaymentMethodCard, Reference: "card_4242"})
	require.NoError(t, err)
	return p
}
