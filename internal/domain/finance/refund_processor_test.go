package finance_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netbill/backend/internal/domain/finance"
	"github.com/netbill/backend/internal/domain/shared"
	"github.com/netbill/backend/internal/domain/shared/valueobject"
)

func refundThrough(t *testing.T, rp *finance.RefundProcessor, p *finance.PaymentRecord, amount string) *finance.Refund {
	t.Helper()
	r, err := rp.Request(p, cny(amount), "service outage credit")
	require.NoError(t, err)
	require.NoError(t, rp.Approve(r, p, "ops-lead"))
	_, err = rp.Process(context.Background(), r, p, approvingGateway())
	require.NoError(t, err)
	require.Equal(t, finance.RefundStatusCompleted, r.Status)
	return r
}

func TestRefund_PartialThenExceeds(t *testing.T) {
	c := &clock{now: epoch}
	pp, rp := processors(c)
	p := completedPayment(t, pp, "100.00")
	assert.True(t, p.RefundableAmount.Equals(cny("100.00")))

	refundThrough(t, rp, p, "40.00")
	assert.True(t, p.RefundableAmount.Equals(cny("60.00")))
	assert.True(t, p.RefundedAmount.Equals(cny("40.00")))
	assert.Equal(t, finance.PaymentStatusPartialRefunded, p.Status)
	assert.True(t, p.BalanceInvariantHolds())

	_, err := rp.Request(p, cny("70.00"), "service outage credit")
	assert.True(t, errors.Is(err, finance.ErrAmountExceedsRefundable), "got %v", err)
}

func TestRefund_ExactBalance(t *testing.T) {
	c := &clock{now: epoch}
	pp, rp := processors(c)
	p := completedPayment(t, pp, "100.00")
	refundThrough(t, rp, p, "40.00")

	r := refundThrough(t, rp, p, "60.00")
	assert.True(t, p.RefundableAmount.IsZero())
	assert.True(t, p.RefundedAmount.Equals(cny("100.00")))
	assert.Equal(t, finance.PaymentStatusRefunded, p.Status)
	assert.True(t, p.BalanceInvariantHolds())
	assert.NotNil(t, r.ProcessedAt)

	_, err := rp.Request(p, cny("0.01"), "service outage credit")
	assert.True(t, errors.Is(err, finance.ErrPaymentNotCompleted))
}

func TestRefund_ApproveAfterSiblingConsumedBalance(t *testing.T) {
	c := &clock{now: epoch}
	pp, rp := processors(c)
	p := completedPayment(t, pp, "100.00")

	first, err := rp.Request(p, cny("70.00"), "duplicate charge")
	require.NoError(t, err)
	second, err := rp.Request(p, cny("50.00"), "billing dispute")
	require.NoError(t, err)

	require.NoError(t, rp.Approve(first, p, "ops-lead"))
	_, err = rp.Process(context.Background(), first, p, approvingGateway())
	require.NoError(t, err)

	version := second.Version
	err = rp.Approve(second, p, "ops-lead")
	assert.True(t, errors.Is(err, shared.ErrInsufficientBalance), "got %v", err)
	assert.Equal(t, finance.RefundStatusPending, second.Status)
	assert.Equal(t, version, second.Version)
	assert.True(t, p.RefundableAmount.Equals(cny("30.00")))
}

func TestRefund_ProcessRechecksBalance(t *testing.T) {
	c := &clock{now: epoch}
	pp, rp := processors(c)
	p := completedPayment(t, pp, "100.00")

	a, err := rp.Request(p, cny("80.00"), "duplicate charge")
	require.NoError(t, err)
	b, err := rp.Request(p, cny("80.00"), "duplicate charge")
	require.NoError(t, err)
	require.NoError(t, rp.Approve(a, p, "ops-lead"))
	require.NoError(t, rp.Approve(b, p, "ops-lead"))

	_, err = rp.Process(context.Background(), a, p, approvingGateway())
	require.NoError(t, err)

	gw := approvingGateway()
	_, err = rp.Process(context.Background(), b, p, gw)
	assert.True(t, errors.Is(err, finance.ErrInsufficientBalance))
	assert.Equal(t, finance.RefundStatusFailed, b.Status)
	assert.Empty(t, gw.refunds)
	assert.True(t, p.RefundedAmount.Equals(cny("80.00")))
	assert.True(t, p.BalanceInvariantHolds())
}

func TestRefund_RequestValidation(t *testing.T) {
	c := &clock{now: epoch}
	pp, rp := processors(c)
	paid := completedPayment(t, pp, "100.00")
	pending, err := pp.Create(sentInvoice(t, "100.00"), card)
	require.NoError(t, err)

	tests := []struct {
		name    string
		payment *finance.PaymentRecord
		amount  valueobject.Money
		reason  string
		wantErr error
	}{
		{name: "pending payment", payment: pending, amount: cny("10.00"), reason: "duplicate", wantErr: finance.ErrPaymentNotCompleted},
		{name: "short reason", payment: paid, amount: cny("10.00"), reason: " dup ", wantErr: finance.ErrInvalidReason},
		{name: "zero amount", payment: paid, amount: cny("0"), reason: "duplicate", wantErr: finance.ErrInvalidAmount},
		{name: "other currency", payment: paid, amount: valueobject.MustParseMoney("10.00", valueobject.USD), reason: "duplicate", wantErr: shared.ErrCurrencyMismatch},
		{name: "above refundable", payment: paid, amount: cny("100.01"), reason: "duplicate", wantErr: finance.ErrAmountExceedsRefundable},
		{name: "multibyte reason counts characters", payment: paid, amount: cny("1.00"), reason: "重复扣费了"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := rp.Request(tt.payment, tt.amount, tt.reason)
			if tt.wantErr == nil {
				require.NoError(t, err)
				assert.Equal(t, finance.RefundStatusPending, r.Status)
				assert.True(t, tt.payment.RefundedAmount.IsZero())
				return
			}
			assert.Nil(t, r)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestRefund_Reject(t *testing.T) {
	c := &clock{now: epoch}
	pp, rp := processors(c)
	p := completedPayment(t, pp, "100.00")
	r, err := rp.Request(p, cny("10.00"), "duplicate charge")
	require.NoError(t, err)

	assert.True(t, errors.Is(rp.Reject(r, "  "), finance.ErrInvalidReason))
	require.NoError(t, rp.Reject(r, "usage was legitimate"))
	assert.Equal(t, finance.RefundStatusRejected, r.Status)
	assert.True(t, r.Status.IsTerminal())
	assert.True(t, p.RefundableAmount.Equals(cny("100.00")))

	assert.True(t, errors.Is(rp.Approve(r, p, "ops-lead"), finance.ErrNotPending))
	assert.True(t, errors.Is(rp.Reject(r, "again"), finance.ErrNotPending))
}

func TestRefund_ApproveGuards(t *testing.T) {
	c := &clock{now: epoch}
	pp, rp := processors(c)
	p := completedPayment(t, pp, "100.00")
	other := completedPayment(t, pp, "100.00")
	r, err := rp.Request(p, cny("10.00"), "duplicate charge")
	require.NoError(t, err)

	assert.True(t, errors.Is(rp.Approve(r, p, " "), finance.ErrInvalidApprover))
	assert.True(t, errors.Is(rp.Approve(r, other, "ops-lead"), finance.ErrRefundPaymentMismatch))

	_, err = rp.Process(context.Background(), r, p, approvingGateway())
	assert.True(t, errors.Is(err, finance.ErrNotApproved))

	require.NoError(t, rp.Approve(r, p, "ops-lead"))
	assert.Equal(t, "ops-lead", r.ApprovedBy)
	assert.NotNil(t, r.ApprovedAt)
}

func TestRefund_GatewayFailures(t *testing.T) {
	tests := []struct {
		name        string
		gw          *fakeGateway
		wantGateErr bool
		wantUnknown bool
		wantReason  string
	}{
		{name: "declined", gw: &fakeGateway{refundResult: finance.GatewayResult{FailureReason: "charge_disputed"}}, wantReason: "charge_disputed"},
		{name: "transport error", gw: &fakeGateway{refundErr: errors.New("503 service unavailable")}, wantGateErr: true, wantReason: "503 service unavailable"},
		{name: "timeout", gw: &fakeGateway{hang: true}, wantGateErr: true, wantUnknown: true, wantReason: "gateway timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &clock{now: epoch}
			pp, rp := processors(c)
			p := completedPayment(t, pp, "100.00")
			r, err := rp.Request(p, cny("25.00"), "duplicate charge")
			require.NoError(t, err)
			require.NoError(t, rp.Approve(r, p, "ops-lead"))

			_, err = rp.Process(context.Background(), r, p, tt.gw)
			if tt.wantGateErr {
				ge, ok := finance.AsGatewayError(err)
				require.True(t, ok, "got %v", err)
				assert.Equal(t, tt.wantUnknown, ge.UnknownOutcome)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, finance.RefundStatusFailed, r.Status)
			assert.Equal(t, tt.wantUnknown, r.OutcomeUnknown)
			assert.Equal(t, tt.wantReason, r.FailureReason)
			assert.Equal(t, finance.PaymentStatusCompleted, p.Status)
			assert.True(t, p.RefundableAmount.Equals(cny("100.00")))
			assert.True(t, p.BalanceInvariantHolds())
		})
	}
}

func TestRefund_ProcessCallerCancelled(t *testing.T) {
	c := &clock{now: epoch}
	pp, rp := processors(c)
	p := completedPayment(t, pp, "100.00")
	r, err := rp.Request(p, cny("25.00"), "duplicate charge")
	require.NoError(t, err)
	require.NoError(t, rp.Approve(r, p, "ops-lead"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = rp.Process(ctx, r, p, &fakeGateway{hang: true})
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, finance.RefundStatusApproved, r.Status)
	assert.True(t, p.RefundableAmount.Equals(cny("100.00")))
}

func TestRefund_IdempotencyKeyIsRefundID(t *testing.T) {
	c := &clock{now: epoch}
	pp, rp := processors(c)
	p := completedPayment(t, pp, "100.00")
	r, err := rp.Request(p, cny("5.00"), "goodwill credit")
	require.NoError(t, err)
	require.NoError(t, rp.Approve(r, p, "ops-lead"))

	gw := approvingGateway()
	_, err = rp.Process(context.Background(), r, p, gw)
	require.NoError(t, err)
	require.Len(t, gw.refunds, 1)
	assert.Equal(t, r.ID.String(), gw.refunds[0].IdempotencyKey)
	assert.Equal(t, "ch_1", gw.refunds[0].TransactionID)
	assert.Equal(t, "re_1", r.TransactionID)
}

func TestPaymentRecord_InvariantAcrossLifecycle(t *testing.T) {
	c := &clock{now: epoch}
	pp, rp := processors(c)

	p, err := pp.Create(sentInvoice(t, "100.00"), card)
	require.NoError(t, err)
	steps := []struct {
		name string
		run  func() error
	}{
		{"decline", func() error {
			_, err := pp.Process(context.Background(), p, &fakeGateway{chargeResult: finance.GatewayResult{FailureReason: "declined"}})
			return err
		}},
		{"retry", func() error { _, err := pp.Retry(context.Background(), p, approvingGateway()); return err }},
		{"refund 33.33", func() error { refundThrough(t, rp, p, "33.33"); return nil }},
		{"refund 0.01", func() error { refundThrough(t, rp, p, "0.01"); return nil }},
		{"refund rest", func() error { refundThrough(t, rp, p, "66.66"); return nil }},
	}
	assert.True(t, p.BalanceInvariantHolds())
	for _, s := range steps {
		require.NoError(t, s.run(), s.name)
		assert.True(t, p.BalanceInvariantHolds(), "after %s: status=%s refunded=%s refundable=%s",
			s.name, p.Status, p.RefundedAmount, p.RefundableAmount)
	}
	assert.Equal(t, finance.PaymentStatusRefunded, p.Status)
}
