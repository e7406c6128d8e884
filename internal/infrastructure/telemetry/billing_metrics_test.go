package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := map[string]metricdata.Metrics{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumOf(t *testing.T, m metricdata.Metrics) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestBillingMetrics_Record(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	bm, err := NewBillingMetrics(provider.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	bm.RecordPayment(ctx, "sandbox", "CARD", OutcomeSucceeded, "CNY", 10000)
	bm.RecordPayment(ctx, "sandbox", "CARD", OutcomeDeclined, "CNY", 5000)
	bm.RecordRefund(ctx, "sandbox", OutcomeSucceeded, "CNY", 4000)
	bm.RecordGatewayCall(ctx, "sandbox", "charge", 120*time.Millisecond)
	bm.RecordInvoiceIssued(ctx, "CNY")
	bm.RecordSweep(ctx, "payment_expiry", 3)
	bm.RecordSweep(ctx, "payment_expiry", 0)

	metrics := collect(t, reader)
	assert.Equal(t, int64(2), sumOf(t, metrics["netbill_payments_total"]))
	assert.Equal(t, int64(10000), sumOf(t, metrics["netbill_payment_amount_minor_total"]))
	assert.Equal(t, int64(4000), sumOf(t, metrics["netbill_refund_amount_minor_total"]))
	assert.Equal(t, int64(1), sumOf(t, metrics["netbill_invoices_issued_total"]))
	assert.Equal(t, int64(3), sumOf(t, metrics["netbill_sweep_items_total"]))
	assert.Contains(t, metrics, "netbill_gateway_call_duration_seconds")
}

func TestBillingMetrics_NilSafe(t *testing.T) {
	var bm *BillingMetrics
	assert.NotPanics(t, func() {
		bm.RecordPayment(context.Background(), "x", "CARD", OutcomeSucceeded, "CNY", 1)
		bm.RecordQuote(context.Background())
	})

	_, err := NewBillingMetrics(nil)
	assert.ErrorIs(t, err, ErrMeterNil)
}
