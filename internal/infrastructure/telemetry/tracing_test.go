package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
)

func withRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return rec
}

func TestStartServiceSpan(t *testing.T) {
	rec := withRecorder(t)

	ctx, span := StartServiceSpan(context.Background(), "refund", "approve",
		WithAttribute(SpanAttrRefundID, "rf-1"))
	SetAttributes(span, SpanAttrAmountMinor, int64(4000), 42, "ignored-key", SpanAttrCurrency, "CNY")
	AddEvent(span, "balance_checked", "refundable_minor", int64(6000))
	assert.NotEmpty(t, GetTraceID(ctx))
	assert.NotEmpty(t, GetSpanID(ctx))
	span.End()

	spans := rec.Ended()
	require.Len(t, spans, 1)
	s := spans[0]
	assert.Equal(t, "refund.approve", s.Name())

	attrs := map[string]string{}
	for _, kv := range s.Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "rf-1", attrs[SpanAttrRefundID])
	assert.Equal(t, "4000", attrs[SpanAttrAmountMinor])
	assert.Equal(t, "CNY", attrs[SpanAttrCurrency])
	require.Len(t, s.Events(), 1)
	assert.Equal(t, "balance_checked", s.Events()[0].Name)
}

func TestRecordError(t *testing.T) {
	rec := withRecorder(t)

	_, span := StartSpan(context.Background(), "payment.process")
	RecordError(span, nil)
	RecordError(span, errors.New("gateway timeout"))
	span.End()

	s := rec.Ended()[0]
	assert.Equal(t, codes.Error, s.Status().Code)
	assert.Equal(t, "gateway timeout", s.Status().Description)
}

func TestNoSpanIDsWithoutSpan(t *testing.T) {
	assert.Empty(t, GetTraceID(context.Background()))
	assert.Empty(t, GetSpanID(context.Background()))
}

func TestProvidersDisabled(t *testing.T) {
	tp, err := NewTracerProvider(context.Background(), Config{Enabled: false}, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, tp.Enabled())
	assert.NoError(t, tp.Shutdown(context.Background()))

	mp, err := NewMeterProvider(context.Background(), MetricsConfig{Enabled: false}, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, mp.Enabled())
	assert.NotNil(t, mp.Meter("netbill"))
	assert.NoError(t, mp.Shutdown(context.Background()))
}
