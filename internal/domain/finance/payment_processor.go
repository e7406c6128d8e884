package finance

import (
	"context"
	"fmt"
	"time"

	"github.com/netbill/backend/internal/domain/invoicing"
	"github.com/netbill/backend/internal/domain/shared"
)

const (
	// DefaultPaymentExpiry is how long a pending payment stays collectable.
	DefaultPaymentExpiry = 30 * time.Minute
	// DefaultGatewayTimeout bounds a single gateway call.
	DefaultGatewayTimeout = 15 * time.Second
)

// ProcessorOption configures payment and refund processors.
type ProcessorOption func(*processorConfig)

type processorConfig struct {
	now     func() time.Time
	expiry  time.Duration
	timeout time.Duration
}

func defaultProcessorConfig() processorConfig {
	return processorConfig{
		now:     func() time.Time { return time.Now().UTC() },
		expiry:  DefaultPaymentExpiry,
		timeout: DefaultGatewayTimeout,
	}
}

// WithClock injects the time source.
func WithClock(now func() time.Time) ProcessorOption {
	return func(c *processorConfig) {
		if now != nil {
			c.now = now
		}
	}
}

// WithPaymentExpiry overrides DefaultPaymentExpiry.
func WithPaymentExpiry(d time.Duration) ProcessorOption {
	return func(c *processorConfig) {
		if d > 0 {
			c.expiry = d
		}
	}
}

// WithGatewayTimeout overrides DefaultGatewayTimeout.
func WithGatewayTimeout(d time.Duration) ProcessorOption {
	return func(c *processorConfig) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func buildConfig(opts []ProcessorOption) processorConfig {
	cfg := defaultProcessorConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// PaymentProcessor owns the PaymentRecord lifecycle:
// Pending -> Completed | Failed | Cancelled, and Failed -> Pending on retry.
type PaymentProcessor struct {
	cfg processorConfig
}

// NewPaymentProcessor creates a payment processor.
func NewPaymentProcessor(opts ...ProcessorOption) *PaymentProcessor {
	return &PaymentProcessor{cfg: buildConfig(opts)}
}

// Expiry returns the configured pending lifetime.
func (pp *PaymentProcessor) Expiry() time.Duration { return pp.cfg.expiry }

// Create opens a pending payment for the invoice total. The invoice must be
// sent or overdue and owe a positive amount.
func (pp *PaymentProcessor) Create(inv *invoicing.Invoice, method PaymentMethod) (*PaymentRecord, error) {
	if inv == nil {
		return nil, shared.ErrInvalidInput.WithMessage("invoice is required")
	}
	if !inv.Status.IsPayable() {
		return nil, ErrInvoiceNotPayable.WithMessage(fmt.Sprintf("invoice %s is %s", inv.Number, inv.Status))
	}
	if !inv.Total.IsPositive() {
		return nil, ErrInvalidAmount.WithMessage("invoice total must be positive")
	}
	if err := method.Validate(); err != nil {
		return nil, err
	}
	now := pp.cfg.now()
	return newPaymentRecord(inv.ID, inv.UserID, inv.Total, method, now, now.Add(pp.cfg.expiry)), nil
}

// Process charges a pending payment through the gateway. The first attempt
// uses the payment id as idempotency key; see PaymentRecord.ChargeKey.
//
// A decline marks the payment Failed and is returned as a result with a nil
// error. A gateway error or timeout also marks it Failed and returns a
// *GatewayError. If ctx itself is cancelled the payment stays Pending so the
// call can be replayed under the same key.
func (pp *PaymentProcessor) Process(ctx context.Context, p *PaymentRecord, gw PaymentGateway) (GatewayResult, error) {
	if p.Status != PaymentStatusPending {
		return GatewayResult{}, ErrNotPending.WithMessage(fmt.Sprintf("cannot process payment in %s status", p.Status))
	}
	if p.IsExpiredAt(pp.cfg.now()) {
		return GatewayResult{}, ErrPaymentExpired.WithMessage(fmt.Sprintf("payment expired at %s", p.ExpiresAt.Format(time.RFC3339)))
	}
	req := ChargeRequest{
		Amount:         p.Amount,
		Method:         p.Method,
		IdempotencyKey: p.IdempotencyKey(),
		Description:    fmt.Sprintf("payment %s", p.Number),
		Metadata: map[string]string{
			"payment_id": p.ID.String(),
			"invoice_id": p.InvoiceID.String(),
		},
	}
	if err := req.Validate(); err != nil {
		return GatewayResult{}, shared.ErrInvalidInput.WithMessage(err.Error())
	}
	p.Gateway = gw.Name()

	callCtx, cancel := context.WithTimeout(ctx, pp.cfg.timeout)
	defer cancel()
	res, err := gw.Charge(callCtx, req)
	if err != nil {
		if ctx.Err() != nil {
			return GatewayResult{}, fmt.Errorf("charge interrupted: %w", ctx.Err())
		}
		ge := gatewayFailure("charge", callCtx, err)
		p.markFailed(ge.Reason, ge.UnknownOutcome, pp.cfg.now())
		return GatewayResult{}, ge
	}
	if !res.Success {
		p.markFailed(res.FailureReason, false, pp.cfg.now())
		return res, nil
	}
	if res.TransactionID == "" {
		ge := &GatewayError{Op: "charge", Reason: "gateway reported success without a transaction id", UnknownOutcome: true}
		p.markFailed(ge.Reason, true, pp.cfg.now())
		return res, ge
	}
	p.markCompleted(res.TransactionID, pp.cfg.now())
	return res, nil
}

// Cancel stops a pending payment.
func (pp *PaymentProcessor) Cancel(p *PaymentRecord, reason string) error {
	return p.cancel(reason, pp.cfg.now())
}

// Retry resets a failed payment to Pending with a fresh expiry and processes it.
func (pp *PaymentProcessor) Retry(ctx context.Context, p *PaymentRecord, gw PaymentGateway) (GatewayResult, error) {
	now := pp.cfg.now()
	if err := p.resetForRetry(now, now.Add(pp.cfg.expiry)); err != nil {
		return GatewayResult{}, err
	}
	return pp.Process(ctx, p, gw)
}

// Expire cancels a pending payment that has passed its expiry.
// It reports false when the payment is not expired.
func (pp *PaymentProcessor) Expire(p *PaymentRecord) (bool, error) {
	if !p.IsExpiredAt(pp.cfg.now()) {
		return false, nil
	}
	if err := p.cancel("expired", pp.cfg.now()); err != nil {
		return false, err
	}
	return true, nil
}
