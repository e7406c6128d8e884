package payment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/netbill/backend/internal/domain/finance"
)

// GatewaySandbox is the configured name of the development gateway.
const GatewaySandbox = "sandbox"

// Method references the sandbox reacts to.
const (
	SandboxDeclineReference = "tok_decline"
	SandboxTimeoutReference = "tok_timeout"
	SandboxErrorReference   = "tok_error"
)

// SandboxConfig tunes the development gateway.
type SandboxConfig struct {
	// DeclineAbove declines charges above this many minor units. Zero disables.
	DeclineAbove int64
	// Latency is added to every call.
	Latency time.Duration
}

// SandboxGateway approves everything except the scripted failure cases. It
// replays the first answer for a repeated idempotency key.
type SandboxGateway struct {
	cfg     SandboxConfig
	mu      sync.Mutex
	charges map[string]finance.GatewayResult
	refunds map[string]finance.GatewayResult
	calls   int
}

// NewSandboxGateway creates a sandbox gateway
func NewSandboxGateway(cfg SandboxConfig) *SandboxGateway {
	return &SandboxGateway{
		cfg:     cfg,
		charges: make(map[string]finance.GatewayResult),
		refunds: make(map[string]finance.GatewayResult),
	}
}

// Name returns the gateway name
func (g *SandboxGateway) Name() string { return GatewaySandbox }

// Charge approves the request unless its method reference or amount
// triggers a scripted failure.
func (g *SandboxGateway) Charge(ctx context.Context, req finance.ChargeRequest) (finance.GatewayResult, error) {
	if err := req.Validate(); err != nil {
		return finance.GatewayResult{}, err
	}
	if err := g.wait(ctx, req.Method.Reference); err != nil {
		return finance.GatewayResult{}, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if res, ok := g.charges[req.IdempotencyKey]; ok {
		return res, nil
	}

	var res finance.GatewayResult
	switch {
	case req.Method.Reference == SandboxDeclineReference:
		res = finance.GatewayResult{FailureReason: "card declined"}
	case g.cfg.DeclineAbove > 0 && req.Amount.MinorUnits() > g.cfg.DeclineAbove:
		res = finance.GatewayResult{FailureReason: fmt.Sprintf("amount %s exceeds sandbox limit", req.Amount)}
	default:
		res = finance.GatewayResult{Success: true, TransactionID: "sbx_ch_" + req.IdempotencyKey}
	}
	g.charges[req.IdempotencyKey] = res
	return res, nil
}

// Refund approves every well-formed refund of a sandbox charge.
func (g *SandboxGateway) Refund(ctx context.Context, req finance.RefundRequest) (finance.GatewayResult, error) {
	if err := req.Validate(); err != nil {
		return finance.GatewayResult{}, err
	}
	if err := g.wait(ctx, ""); err != nil {
		return finance.GatewayResult{}, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if res, ok := g.refunds[req.IdempotencyKey]; ok {
		return res, nil
	}
	res := finance.GatewayResult{Success: true, TransactionID: "sbx_re_" + req.IdempotencyKey}
	g.refunds[req.IdempotencyKey] = res
	return res, nil
}

// Calls returns how many requests reached the sandbox.
func (g *SandboxGateway) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func (g *SandboxGateway) wait(ctx context.Context, reference string) error {
	switch reference {
	case SandboxTimeoutReference:
		// Hang until the caller's deadline.
		<-ctx.Done()
		return ctx.Err()
	case SandboxErrorReference:
		return &finance.GatewayError{Op: "charge", Reason: "sandbox connection reset"}
	}
	if g.cfg.Latency <= 0 {
		return nil
	}
	timer := time.NewTimer(g.cfg.Latency)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var _ finance.PaymentGateway = (*SandboxGateway)(nil)
