package payment

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/netbill/backend/internal/domain/finance"
	"github.com/netbill/backend/internal/infrastructure/logger"
	"github.com/netbill/backend/internal/infrastructure/telemetry"
)

// InstrumentedGateway records a client span, a latency sample and a log
// line for every gateway call.
type InstrumentedGateway struct {
	next    finance.PaymentGateway
	metrics *telemetry.BillingMetrics
	logger  *zap.Logger
}

// Instrument wraps next. metrics may be nil.
func Instrument(next finance.PaymentGateway, metrics *telemetry.BillingMetrics, log *zap.Logger) *InstrumentedGateway {
	if log == nil {
		log = zap.NewNop()
	}
	return &InstrumentedGateway{next: next, metrics: metrics, logger: log}
}

// Name returns the wrapped gateway's name.
func (g *InstrumentedGateway) Name() string { return g.next.Name() }

// Charge forwards to the wrapped gateway.
func (g *InstrumentedGateway) Charge(ctx context.Context, req finance.ChargeRequest) (finance.GatewayResult, error) {
	return g.observe(ctx, "charge", req.IdempotencyKey, req.Amount.Currency().String(), req.Amount.MinorUnits(),
		func(ctx context.Context) (finance.GatewayResult, error) { return g.next.Charge(ctx, req) })
}

// Refund forwards to the wrapped gateway.
func (g *InstrumentedGateway) Refund(ctx context.Context, req finance.RefundRequest) (finance.GatewayResult, error) {
	return g.observe(ctx, "refund", req.IdempotencyKey, req.Amount.Currency().String(), req.Amount.MinorUnits(),
		func(ctx context.Context) (finance.GatewayResult, error) { return g.next.Refund(ctx, req) })
}

func (g *InstrumentedGateway) observe(ctx context.Context, op, key, currency string, amount int64,
	call func(context.Context) (finance.GatewayResult, error)) (finance.GatewayResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "gateway", op,
		telemetry.WithSpanKind(trace.SpanKindClient),
		telemetry.WithAttribute("gateway", g.next.Name()),
		telemetry.WithAttribute("idempotency_key", key),
		telemetry.WithAttribute("currency", currency),
		telemetry.WithAttribute("amount_minor", amount),
	)
	defer span.End()

	start := time.Now()
	res, err := call(ctx)
	elapsed := time.Since(start)
	g.metrics.RecordGatewayCall(ctx, g.next.Name(), op, elapsed)

	log := logger.Ctx(ctx, g.logger).With(
		zap.String("gateway", g.next.Name()),
		zap.String("op", op),
		zap.String("idempotency_key", key),
		zap.Duration("elapsed", elapsed),
	)
	switch {
	case err != nil:
		telemetry.RecordError(span, err)
		log.Warn("gateway call failed", zap.Error(err))
	case !res.Success:
		telemetry.SetAttributes(span, "declined", true, "failure_reason", res.FailureReason)
		telemetry.SetOK(span)
		log.Info("gateway declined", zap.String("reason", res.FailureReason))
	default:
		telemetry.SetAttributes(span, "transaction_id", res.TransactionID)
		telemetry.SetOK(span)
		log.Debug("gateway approved", zap.String("transaction_id", res.TransactionID))
	}
	return res, err
}

var _ finance.PaymentGateway = (*InstrumentedGateway)(nil)
