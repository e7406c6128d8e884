package payment

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/netbill/backend/internal/domain/finance"
	"github.com/netbill/backend/internal/domain/shared"
)

// IdempotentGateway remembers every clean gateway answer under its
// idempotency key and replays it instead of calling the gateway again.
// Errors are not remembered, so an unknown outcome is retried against the
// gateway, which deduplicates on the same key.
type IdempotentGateway struct {
	next   finance.PaymentGateway
	store  shared.IdempotencyStore
	ttl    time.Duration
	logger *zap.Logger
}

// NewIdempotentGateway wraps next. A non-positive ttl uses
// shared.DefaultIdempotencyTTL.
func NewIdempotentGateway(next finance.PaymentGateway, store shared.IdempotencyStore, ttl time.Duration, logger *zap.Logger) *IdempotentGateway {
	if ttl <= 0 {
		ttl = shared.DefaultIdempotencyTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IdempotentGateway{next: next, store: store, ttl: ttl, logger: logger}
}

// Name returns the wrapped gateway's name.
func (g *IdempotentGateway) Name() string { return g.next.Name() }

// Charge replays a remembered charge outcome or forwards the request.
func (g *IdempotentGateway) Charge(ctx context.Context, req finance.ChargeRequest) (finance.GatewayResult, error) {
	key := g.key("charge", req.IdempotencyKey)
	return g.do(ctx, key, func() (finance.GatewayResult, error) {
		return g.next.Charge(ctx, req)
	})
}

// Refund replays a remembered refund outcome or forwards the request.
func (g *IdempotentGateway) Refund(ctx context.Context, req finance.RefundRequest) (finance.GatewayResult, error) {
	key := g.key("refund", req.IdempotencyKey)
	return g.do(ctx, key, func() (finance.GatewayResult, error) {
		return g.next.Refund(ctx, req)
	})
}

func (g *IdempotentGateway) key(op, idempotencyKey string) string {
	return g.next.Name() + ":" + op + ":" + idempotencyKey
}

func (g *IdempotentGateway) do(ctx context.Context, key string, call func() (finance.GatewayResult, error)) (finance.GatewayResult, error) {
	if cached, ok, err := g.store.Lookup(ctx, key); err != nil {
		g.logger.Warn("idempotency lookup failed, calling gateway", zap.String("key", key), zap.Error(err))
	} else if ok {
		var res finance.GatewayResult
		if err := json.Unmarshal(cached, &res); err == nil {
			g.logger.Debug("replaying remembered gateway outcome", zap.String("key", key))
			return res, nil
		}
		g.logger.Warn("discarding unreadable idempotency record", zap.String("key", key))
	}

	res, err := call()
	if err != nil {
		return res, err
	}

	payload, mErr := json.Marshal(res)
	if mErr != nil {
		return res, nil
	}
	// Remember with a fresh context: the answer is final even if the caller
	// has given up.
	rememberCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if _, err := g.store.Remember(rememberCtx, key, payload, g.ttl); err != nil {
		g.logger.Warn("failed to remember gateway outcome", zap.String("key", key), zap.Error(err))
	}
	return res, nil
}

var _ finance.PaymentGateway = (*IdempotentGateway)(nil)
