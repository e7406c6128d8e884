package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the tracer used for service spans.
const TracerName = "netbill"

// SpanOption configures span start options
type SpanOption func(*spanOptions)

type spanOptions struct {
	attributes []attribute.KeyValue
	kind       trace.SpanKind
}

// WithAttribute adds an attribute to the span
func WithAttribute(key string, value any) SpanOption {
	return func(opts *spanOptions) {
		opts.attributes = append(opts.attributes, toAttribute(key, value))
	}
}

// WithSpanKind sets the span kind
func WithSpanKind(kind trace.SpanKind) SpanOption {
	return func(opts *spanOptions) {
		opts.kind = kind
	}
}

// StartSpan starts a span on the global tracer provider. The caller ends it.
//
//	ctx, span := telemetry.StartSpan(ctx, "payment.process")
//	defer span.End()
func StartSpan(ctx context.Context, spanName string, opts ...SpanOption) (context.Context, trace.Span) {
	options := &spanOptions{kind: trace.SpanKindInternal}
	for _, opt := range opts {
		opt(options)
	}

	startOpts := []trace.SpanStartOption{trace.WithSpanKind(options.kind)}
	if len(options.attributes) > 0 {
		startOpts = append(startOpts, trace.WithAttributes(options.attributes...))
	}
	return otel.GetTracerProvider().Tracer(TracerName).Start(ctx, spanName, startOpts...)
}

// StartServiceSpan names the span {service}.{method}, e.g. "refund.approve".
func StartServiceSpan(ctx context.Context, service, method string, opts ...SpanOption) (context.Context, trace.Span) {
	return StartSpan(ctx, fmt.Sprintf("%s.%s", service, method), opts...)
}

// SetAttributes adds key/value pairs to a span. Non-string keys are skipped.
func SetAttributes(span trace.Span, keyValues ...any) {
	if recording(span) {
		span.SetAttributes(pairs(keyValues)...)
	}
}

// SetAttribute adds a single attribute to the span.
func SetAttribute(span trace.Span, key string, value any) {
	if recording(span) {
		span.SetAttributes(toAttribute(key, value))
	}
}

// RecordError records err on the span and marks the span failed.
func RecordError(span trace.Span, err error, opts ...trace.EventOption) {
	if err != nil && recording(span) {
		span.RecordError(err, opts...)
		span.SetStatus(codes.Error, err.Error())
	}
}

// SetOK marks the span as successful.
func SetOK(span trace.Span) {
	if recording(span) {
		span.SetStatus(codes.Ok, "")
	}
}

// AddEvent adds a timestamped event with optional key/value attributes.
//
//	telemetry.AddEvent(span, "refund_applied",
//	    "refund_id", refund.ID.String(),
//	    "refundable_minor", p.RefundableAmount.MinorUnits(),
//	)
func AddEvent(span trace.Span, name string, keyValues ...any) {
	if recording(span) {
		span.AddEvent(name, trace.WithAttributes(pairs(keyValues)...))
	}
}

// GetTraceID returns the trace id of the span in ctx, or "".
func GetTraceID(ctx context.Context) string {
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}

// GetSpanID returns the span id of the span in ctx, or "".
func GetSpanID(ctx context.Context) string {
	if sc := trace.SpanContextFromContext(ctx); sc.HasSpanID() {
		return sc.SpanID().String()
	}
	return ""
}

func recording(span trace.Span) bool {
	return span != nil && span.IsRecording()
}

// pairs reads alternating key/value arguments; a trailing key is dropped.
func pairs(keyValues []any) []attribute.KeyValue {
	var attrs []attribute.KeyValue
	for len(keyValues) >= 2 {
		if key, ok := keyValues[0].(string); ok {
			attrs = append(attrs, toAttribute(key, keyValues[1]))
		}
		keyValues = keyValues[2:]
	}
	return attrs
}

func toAttribute(key string, value any) attribute.KeyValue {
	switch v := value.(type) {
	case string:
		return attribute.String(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case int32:
		return attribute.Int64(key, int64(v))
	case float64:
		return attribute.Float64(key, v)
	case bool:
		return attribute.Bool(key, v)
	case []string:
		return attribute.StringSlice(key, v)
	case fmt.Stringer:
		return attribute.String(key, v.String())
	default:
		return attribute.String(key, fmt.Sprintf("%v", v))
	}
}

// Span attribute keys. Metric attributes live in billing_metrics.go.
const (
	SpanAttrPlanID        = "plan_id"
	SpanAttrInvoiceID     = "invoice_id"
	SpanAttrInvoiceNumber = "invoice_number"
	SpanAttrUserID        = "user_id"
	SpanAttrPaymentID     = "payment_id"
	SpanAttrRefundID      = "refund_id"
	SpanAttrGateway       = "payment_gateway"
	SpanAttrAmountMinor   = "amount_minor"
	SpanAttrCurrency      = "currency"
	SpanAttrStatus        = "status"
)
