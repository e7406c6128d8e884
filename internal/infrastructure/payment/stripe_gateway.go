package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/paymentintent"
	"github.com/stripe/stripe-go/v81/refund"
	"go.uber.org/zap"

	"github.com/netbill/backend/internal/domain/finance"
)

// GatewayStripe is the configured name of the Stripe gateway.
const GatewayStripe = "stripe"

// StripeConfig holds configuration for the Stripe gateway
type StripeConfig struct {
	// SecretKey is the Stripe secret API key (sk_test_xxx or sk_live_xxx)
	SecretKey string
	// APIBase overrides the API URL, mainly for stripe-mock.
	APIBase string
}

// Validate validates the Stripe configuration
func (c StripeConfig) Validate() error {
	if c.SecretKey == "" {
		return fmt.Errorf("stripe: secret key is required")
	}
	if !strings.HasPrefix(c.SecretKey, "sk_") && !strings.HasPrefix(c.SecretKey, "rk_") {
		return fmt.Errorf("stripe: secret key must start with sk_ or rk_")
	}
	return nil
}

// StripeGateway collects payments with confirmed PaymentIntents and returns
// money with Refunds. Each call carries the request's idempotency key, so
// Stripe replays the first response for a repeated payment or refund id.
type StripeGateway struct {
	intents *paymentintent.Client
	refunds *refund.Client
	logger  *zap.Logger
}

// NewStripeGateway creates a gateway with its own API backend, leaving the
// package-level stripe.Key untouched.
func NewStripeGateway(cfg StripeConfig, logger *zap.Logger) (*StripeGateway, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	backendCfg := &stripe.BackendConfig{}
	if cfg.APIBase != "" {
		backendCfg.URL = stripe.String(cfg.APIBase)
	}
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg)
	return NewStripeGatewayWithBackend(cfg.SecretKey, backend, logger), nil
}

// NewStripeGatewayWithBackend creates a gateway on an explicit backend.
func NewStripeGatewayWithBackend(key string, backend stripe.Backend, logger *zap.Logger) *StripeGateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StripeGateway{
		intents: &paymentintent.Client{B: backend, Key: key},
		refunds: &refund.Client{B: backend, Key: key},
		logger:  logger,
	}
}

// Name returns the gateway name
func (g *StripeGateway) Name() string { return GatewayStripe }

// Charge creates and confirms a PaymentIntent for the payment method token.
func (g *StripeGateway) Charge(ctx context.Context, req finance.ChargeRequest) (finance.GatewayResult, error) {
	if err := req.Validate(); err != nil {
		return finance.GatewayResult{}, err
	}

	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(req.Amount.MinorUnits()),
		Currency:           stripe.String(strings.ToLower(req.Amount.Currency().String())),
		PaymentMethod:      stripe.String(req.Method.Reference),
		PaymentMethodTypes: stripe.StringSlice([]string{stripeMethodType(req.Method.Type)}),
		Confirm:            stripe.Bool(true),
	}
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	params.AddMetadata("charge_key", req.IdempotencyKey)
	params.Context = ctx
	params.SetIdempotencyKey("charge-" + req.IdempotencyKey)

	pi, err := g.intents.New(params)
	if err != nil {
		return g.classify("charge", req.IdempotencyKey, err)
	}

	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		g.logger.Info("stripe charge succeeded",
			zap.String("charge_key", req.IdempotencyKey),
			zap.String("payment_intent", pi.ID))
		return finance.GatewayResult{Success: true, TransactionID: pi.ID}, nil
	case stripe.PaymentIntentStatusProcessing:
		return finance.GatewayResult{}, &finance.GatewayError{
			Op:             "charge",
			Reason:         "payment intent " + pi.ID + " is still processing",
			UnknownOutcome: true,
		}
	default:
		reason := "payment intent ended in status " + string(pi.Status)
		if pi.LastPaymentError != nil && pi.LastPaymentError.Msg != "" {
			reason = pi.LastPaymentError.Msg
		}
		return finance.GatewayResult{Success: false, FailureReason: reason}, nil
	}
}

// Refund refunds part or all of the PaymentIntent named by TransactionID.
func (g *StripeGateway) Refund(ctx context.Context, req finance.RefundRequest) (finance.GatewayResult, error) {
	if err := req.Validate(); err != nil {
		return finance.GatewayResult{}, err
	}

	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(req.TransactionID),
		Amount:        stripe.Int64(req.Amount.MinorUnits()),
		Reason:        stripe.String(string(stripe.RefundReasonRequestedByCustomer)),
	}
	params.AddMetadata("refund_id", req.IdempotencyKey)
	if req.Reason != "" {
		params.AddMetadata("reason", req.Reason)
	}
	params.Context = ctx
	params.SetIdempotencyKey("refund-" + req.IdempotencyKey)

	rf, err := g.refunds.New(params)
	if err != nil {
		return g.classify("refund", req.IdempotencyKey, err)
	}

	switch rf.Status {
	case stripe.RefundStatusSucceeded, stripe.RefundStatusPending:
		g.logger.Info("stripe refund accepted",
			zap.String("refund_id", req.IdempotencyKey),
			zap.String("stripe_refund", rf.ID),
			zap.String("status", string(rf.Status)))
		return finance.GatewayResult{Success: true, TransactionID: rf.ID}, nil
	default:
		reason := "refund ended in status " + string(rf.Status)
		if rf.FailureReason != "" {
			reason = string(rf.FailureReason)
		}
		return finance.GatewayResult{Success: false, FailureReason: reason}, nil
	}
}

// classify turns a Stripe error into a decline result or a GatewayError.
// Card errors are declines. Server-side and network errors leave the
// outcome unknown.
func (g *StripeGateway) classify(op, key string, err error) (finance.GatewayResult, error) {
	var se *stripe.Error
	if !errors.As(err, &se) {
		g.logger.Warn("stripe call failed", zap.String("op", op), zap.String("key", key), zap.Error(err))
		return finance.GatewayResult{}, &finance.GatewayError{Op: op, Reason: err.Error(), UnknownOutcome: true, Err: err}
	}

	if se.Type == stripe.ErrorTypeCard || se.HTTPStatusCode == http.StatusPaymentRequired {
		reason := se.Msg
		if se.DeclineCode != "" {
			reason = fmt.Sprintf("%s (%s)", se.Msg, se.DeclineCode)
		}
		return finance.GatewayResult{Success: false, FailureReason: reason}, nil
	}

	unknown := se.Type == stripe.ErrorTypeAPI || se.HTTPStatusCode >= http.StatusInternalServerError
	g.logger.Error("stripe rejected request",
		zap.String("op", op),
		zap.String("key", key),
		zap.String("type", string(se.Type)),
		zap.String("code", string(se.Code)),
		zap.Int("status", se.HTTPStatusCode),
		zap.Bool("unknown_outcome", unknown))
	return finance.GatewayResult{}, &finance.GatewayError{Op: op, Reason: se.Msg, UnknownOutcome: unknown, Err: err}
}

func stripeMethodType(t finance.PaymentMethodType) string {
	switch t {
	case finance.PaymentMethodBankTransfer:
		return "customer_balance"
	case finance.PaymentMethodEWallet:
		return "alipay"
	default:
		return "card"
	}
}

var _ finance.PaymentGateway = (*StripeGateway)(nil)
