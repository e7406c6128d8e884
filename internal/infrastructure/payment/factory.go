package payment

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/netbill/backend/internal/domain/finance"
	"github.com/netbill/backend/internal/domain/shared"
	"github.com/netbill/backend/internal/infrastructure/config"
	"github.com/netbill/backend/internal/infrastructure/telemetry"
)

// NewGateway builds the configured gateway wrapped for idempotency and
// instrumentation. Calls flow instrument -> idempotency -> gateway, so
// replays are traced but never reach the provider.
func NewGateway(cfg *config.Config, store shared.IdempotencyStore, metrics *telemetry.BillingMetrics, logger *zap.Logger) (finance.PaymentGateway, error) {
	var gw finance.PaymentGateway
	switch cfg.Billing.Gateway {
	case GatewaySandbox:
		gw = NewSandboxGateway(SandboxConfig{DeclineAbove: cfg.Billing.SandboxDeclineAbove})
	case GatewayStripe:
		sg, err := NewStripeGateway(StripeConfig{SecretKey: cfg.Stripe.SecretKey, APIBase: cfg.Stripe.APIBase}, logger)
		if err != nil {
			return nil, err
		}
		gw = sg
	default:
		return nil, fmt.Errorf("unknown payment gateway %q", cfg.Billing.Gateway)
	}

	if store != nil {
		gw = NewIdempotentGateway(gw, store, cfg.Billing.IdempotencyTTL, logger)
	}
	return Instrument(gw, metrics, logger), nil
}
