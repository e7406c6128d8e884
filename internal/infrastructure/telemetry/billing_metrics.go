package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ErrMeterNil is returned when a metrics set is built without a meter.
var ErrMeterNil = errors.New("telemetry: meter cannot be nil")

// Outcome labels for payment and refund counters.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeDeclined  = "declined"
	OutcomeError     = "error"
	OutcomeUnknown   = "unknown"
)

// Metric attribute keys.
var (
	attrGateway = attribute.Key("gateway")
	attrMethod  = attribute.Key("payment_method")
	attrOutcome = attribute.Key("outcome")
	attrCurr    = attribute.Key("currency")
	attrSweep   = attribute.Key("sweep")
	attrOp      = attribute.Key("op")
)

// gatewayBuckets are latency boundaries in seconds, up to the 30s ceiling a
// gateway call can reach with retries.
var gatewayBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15, 30}

// BillingMetrics records business counters for the billing flows.
// A nil *BillingMetrics is valid and records nothing.
type BillingMetrics struct {
	payments        metric.Int64Counter
	paymentMinor    metric.Int64Counter
	refunds         metric.Int64Counter
	refundMinor     metric.Int64Counter
	invoicesIssued  metric.Int64Counter
	quotes          metric.Int64Counter
	sweepItems      metric.Int64Counter
	gatewayDuration metric.Float64Histogram
}

// NewBillingMetrics creates the billing instruments on meter.
func NewBillingMetrics(meter metric.Meter) (*BillingMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}
	bm := &BillingMetrics{}
	counters := []struct {
		dst               *metric.Int64Counter
		name, desc, units string
	}{
		{&bm.payments, "netbill_payments_total", "Payment gateway attempts by outcome", "{payments}"},
		{&bm.paymentMinor, "netbill_payment_amount_minor_total", "Collected amount in minor units", "{minor}"},
		{&bm.refunds, "netbill_refunds_total", "Refund gateway attempts by outcome", "{refunds}"},
		{&bm.refundMinor, "netbill_refund_amount_minor_total", "Refunded amount in minor units", "{minor}"},
		{&bm.invoicesIssued, "netbill_invoices_issued_total", "Invoices moved to SENT", "{invoices}"},
		{&bm.quotes, "netbill_quotes_total", "Rate quotes computed", "{quotes}"},
		{&bm.sweepItems, "netbill_sweep_items_total", "Records changed by scheduled sweeps", "{items}"},
	}
	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name, metric.WithDescription(c.desc), metric.WithUnit(c.units))
		if err != nil {
			return nil, fmt.Errorf("counter %s: %w", c.name, err)
		}
		*c.dst = counter
	}

	var err error
	bm.gatewayDuration, err = meter.Float64Histogram("netbill_gateway_call_duration_seconds",
		metric.WithDescription("Latency of payment gateway calls"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(gatewayBuckets...),
	)
	if err != nil {
		return nil, fmt.Errorf("gateway histogram: %w", err)
	}
	return bm, nil
}

// RecordPayment counts one charge attempt; amountMinor is added on success.
func (bm *BillingMetrics) RecordPayment(ctx context.Context, gateway, method, outcome, currency string, amountMinor int64) {
	if bm == nil {
		return
	}
	bm.payments.Add(ctx, 1, metric.WithAttributes(
		attrGateway.String(gateway), attrMethod.String(method), attrOutcome.String(outcome)))
	if outcome == OutcomeSucceeded {
		bm.paymentMinor.Add(ctx, amountMinor, metric.WithAttributes(attrCurr.String(currency)))
	}
}

// RecordRefund counts one refund attempt; amountMinor is added on success.
func (bm *BillingMetrics) RecordRefund(ctx context.Context, gateway, outcome, currency string, amountMinor int64) {
	if bm == nil {
		return
	}
	bm.refunds.Add(ctx, 1, metric.WithAttributes(attrGateway.String(gateway), attrOutcome.String(outcome)))
	if outcome == OutcomeSucceeded {
		bm.refundMinor.Add(ctx, amountMinor, metric.WithAttributes(attrCurr.String(currency)))
	}
}

// RecordGatewayCall records the latency of one gateway call.
func (bm *BillingMetrics) RecordGatewayCall(ctx context.Context, gateway, op string, d time.Duration) {
	if bm == nil {
		return
	}
	bm.gatewayDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attrGateway.String(gateway), attrOp.String(op)))
}

// RecordInvoiceIssued counts an invoice sent to the customer.
func (bm *BillingMetrics) RecordInvoiceIssued(ctx context.Context, currency string) {
	if bm == nil {
		return
	}
	bm.invoicesIssued.Add(ctx, 1, metric.WithAttributes(attrCurr.String(currency)))
}

// RecordQuote counts one rate quote.
func (bm *BillingMetrics) RecordQuote(ctx context.Context) {
	if bm == nil {
		return
	}
	bm.quotes.Add(ctx, 1)
}

// RecordSweep adds n changed records for the named sweep.
func (bm *BillingMetrics) RecordSweep(ctx context.Context, sweep string, n int) {
	if bm == nil || n == 0 {
		return
	}
	bm.sweepItems.Add(ctx, int64(n), metric.WithAttributes(attrSweep.String(sweep)))
}
