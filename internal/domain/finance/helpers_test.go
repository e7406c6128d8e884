package finance_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/netbill/backend/internal/domain/finance"
	"github.com/netbill/backend/internal/domain/invoicing"
	"github.com/netbill/backend/internal/domain/shared/valueobject"
)

var epoch = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func cny(amount string) valueobject.Money {
	return valueobject.MustParseMoney(amount, valueobject.CNY)
}

var card = finance.PaymentMethod{Type: finance.PaymentMethodCard, Reference: "card_visa_4242"}

// fakeGateway answers with canned results and records every request.
type fakeGateway struct {
	mu           sync.Mutex
	chargeResult finance.GatewayResult
	chargeErr    error
	refundResult finance.GatewayResult
	refundErr    error
	hang         bool
	charges      []finance.ChargeRequest
	refunds      []finance.RefundRequest
}

func approvingGateway() *fakeGateway {
	return &fakeGateway{
		chargeResult: finance.GatewayResult{Success: true, TransactionID: "ch_1"},
		refundResult: finance.GatewayResult{Success: true, TransactionID: "re_1"},
	}
}

func (g *fakeGateway) Name() string { return "fake" }

func (g *fakeGateway) Charge(ctx context.Context, req finance.ChargeRequest) (finance.GatewayResult, error) {
	g.mu.Lock()
	g.charges = append(g.charges, req)
	hang := g.hang
	g.mu.Unlock()
	if hang {
		<-ctx.Done()
		return finance.GatewayResult{}, ctx.Err()
	}
	return g.chargeResult, g.chargeErr
}

func (g *fakeGateway) Refund(ctx context.Context, req finance.RefundRequest) (finance.GatewayResult, error) {
	g.mu.Lock()
	g.refunds = append(g.refunds, req)
	hang := g.hang
	g.mu.Unlock()
	if hang {
		<-ctx.Done()
		return finance.GatewayResult{}, ctx.Err()
	}
	return g.refundResult, g.refundErr
}

func sentInvoice(t *testing.T, amount string) *invoicing.Invoice {
	t.Helper()
	b := invoicing.NewBuilderWithClock(func() time.Time { return epoch })
	inv, err := b.Build(invoicing.BuildInput{
		UserID: uuid.New(),
		Items: []invoicing.InvoiceItemInput{{
			Description: "Monthly access",
			Quantity:    decimal.NewFromInt(1),
			UnitPrice:   cny(amount),
		}},
		IssueDate: epoch,
		DueDate:   epoch.AddDate(0, 0, 14),
	})
	require.NoError(t, err)
	require.NoError(t, inv.AssignNumber("INV-20260504-0001"))
	require.NoError(t, b.Transition(inv, invoicing.InvoiceStatusSent))
	return inv
}

func processors(c *clock) (*finance.PaymentProcessor, *finance.RefundProcessor) {
	opts := []finance.ProcessorOption{
		finance.WithClock(c.Now),
		finance.WithGatewayTimeout(50 * time.Millisecond),
	}
	return finance.NewPaymentProcessor(opts...), finance.NewRefundProcessor(opts...)
}

// completedPayment returns a payment for amount that has been collected.
func completedPayment(t *testing.T, pp *finance.PaymentProcessor, amount string) *finance.PaymentRecord {
	t.Helper()
	p, err := pp.Create(sentInvoice(t, amount), card)
	require.NoError(t, err)
	_, err = pp.Process(context.Background(), p, approvingGateway())
	require.NoError(t, err)
	require.Equal(t, finance.PaymentStatusCompleted, p.Status)
	return p
}
