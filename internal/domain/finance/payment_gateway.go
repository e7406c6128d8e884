package finance

import (
	"context"
	"errors"
	"fmt"

	"github.com/netbill/backend/internal/domain/shared/valueobject"
)

// Gateway request validation errors
var (
	ErrGatewayMissingIdempotencyKey = errors.New("payment: idempotency key is required")
	ErrGatewayMissingTransaction    = errors.New("payment: transaction id is required for refunds")
	ErrGatewayInvalidAmount         = errors.New("payment: amount must be positive")
)

// ChargeRequest asks the gateway to collect Amount using Method.
// IdempotencyKey identifies one charge attempt of a payment so a replayed
// call collects at most once.
type ChargeRequest struct {
	Amount         valueobject.Money
	Method         PaymentMethod
	IdempotencyKey string
	Description    string
	Metadata       map[string]string
}

// Validate checks the request before it leaves the process.
func (r ChargeRequest) Validate() error {
	if !r.Amount.IsPositive() {
		return ErrGatewayInvalidAmount
	}
	if r.IdempotencyKey == "" {
		return ErrGatewayMissingIdempotencyKey
	}
	return r.Method.Validate()
}

// RefundRequest returns Amount of a previously captured TransactionID.
// IdempotencyKey is the refund id.
type RefundRequest struct {
	TransactionID  string
	Amount         valueobject.Money
	IdempotencyKey string
	Reason         string
}

// Validate checks the request before it leaves the process.
func (r RefundRequest) Validate() error {
	if !r.Amount.IsPositive() {
		return ErrGatewayInvalidAmount
	}
	if r.TransactionID == "" {
		return ErrGatewayMissingTransaction
	}
	if r.IdempotencyKey == "" {
		return ErrGatewayMissingIdempotencyKey
	}
	return nil
}

// GatewayResult is a definitive answer from the gateway: either a
// transaction id or a failure reason.
type GatewayResult struct {
	Success       bool   `json:"success"`
	TransactionID string `json:"transaction_id,omitempty"`
	FailureReason string `json:"failure_reason,omitempty"`
}

// PaymentGateway is the external collaborator that moves money.
// A decline is reported as a GatewayResult with Success=false and a nil
// error; errors are reserved for calls whose outcome is not a clean answer.
// Implementations must honor IdempotencyKey.
type PaymentGateway interface {
	Name() string
	Charge(ctx context.Context, req ChargeRequest) (GatewayResult, error)
	Refund(ctx context.Context, req RefundRequest) (GatewayResult, error)
}

// GatewayError is an external failure. UnknownOutcome is set when the
// request may have been applied by the gateway (timeouts, dropped
// connections), so callers should query the gateway before retrying.
type GatewayError struct {
	Op             string
	Reason         string
	UnknownOutcome bool
	Err            error
}

func (e *GatewayError) Error() string {
	msg := fmt.Sprintf("gateway %s failed: %s", e.Op, e.Reason)
	if e.UnknownOutcome {
		msg += " (outcome unknown)"
	}
	return msg
}

func (e *GatewayError) Unwrap() error { return e.Err }

// AsGatewayError extracts a GatewayError from err.
func AsGatewayError(err error) (*GatewayError, bool) {
	var ge *GatewayError
	if errors.As(err, &ge) {
		return ge, true
	}
	return nil, false
}

// gatewayFailure classifies an error returned by a gateway call made under
// callCtx. Deadline expiry means the request may have landed.
func gatewayFailure(op string, callCtx context.Context, err error) *GatewayError {
	if ge, ok := AsGatewayError(err); ok {
		return ge
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return &GatewayError{Op: op, Reason: "gateway timeout", UnknownOutcome: true, Err: err}
	}
	return &GatewayError{Op: op, Reason: err.Error(), Err: err}
}
