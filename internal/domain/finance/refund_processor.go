package finance

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/netbill/backend/internal/domain/shared"
	"github.com/netbill/backend/internal/domain/shared/valueobject"
)

// MinRefundReasonLength is the minimum trimmed reason length in characters.
const MinRefundReasonLength = 5

// RefundProcessor owns the Refund lifecycle:
// Pending -> Approved -> Completed | Failed, and Pending -> Rejected.
//
// The payment's refundable balance is checked at request, approval and
// processing. Callers must serialize calls touching the same payment.
type RefundProcessor struct {
	cfg processorConfig
}

// NewRefundProcessor creates a refund processor.
func NewRefundProcessor(opts ...ProcessorOption) *RefundProcessor {
	return &RefundProcessor{cfg: buildConfig(opts)}
}

// Request creates a pending refund. Payment balances are untouched until
// the refund is processed.
func (rp *RefundProcessor) Request(p *PaymentRecord, amount valueobject.Money, reason string) (*Refund, error) {
	if p == nil {
		return nil, shared.ErrInvalidInput.WithMessage("payment is required")
	}
	if !p.Status.IsRefundable() {
		return nil, ErrPaymentNotCompleted.WithMessage(fmt.Sprintf("payment is %s", p.Status))
	}
	if amount.Currency() != p.Amount.Currency() {
		return nil, shared.ErrCurrencyMismatch.WithMessage(
			fmt.Sprintf("refund in %s, payment in %s", amount.Currency(), p.Amount.Currency()))
	}
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if !p.canRefund(amount) {
		return nil, ErrAmountExceedsRefundable.WithMessage(
			fmt.Sprintf("requested %s, refundable %s", amount, p.RefundableAmount))
	}
	reason = strings.TrimSpace(reason)
	if utf8.RuneCountInString(reason) < MinRefundReasonLength {
		return nil, ErrInvalidReason
	}
	return newRefund(p.ID, amount, reason, rp.cfg.now()), nil
}

// Approve re-validates the balance and moves the refund to Approved.
// On failure the refund stays Pending.
func (rp *RefundProcessor) Approve(r *Refund, p *PaymentRecord, approver string) error {
	if err := r.requirePending("approve"); err != nil {
		return err
	}
	approver = strings.TrimSpace(approver)
	if approver == "" {
		return ErrInvalidApprover
	}
	if err := rp.ensureBelongs(r, p); err != nil {
		return err
	}
	if !p.canRefund(r.Amount) {
		return ErrInsufficientBalance.WithMessage(
			fmt.Sprintf("refund of %s exceeds refundable %s", r.Amount, p.RefundableAmount))
	}
	r.approve(approver, rp.cfg.now())
	return nil
}

// Reject closes a pending refund with no balance effect.
func (rp *RefundProcessor) Reject(r *Refund, reason string) error {
	if err := r.requirePending("reject"); err != nil {
		return err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return ErrInvalidReason.WithMessage("rejection reason is required")
	}
	r.reject(reason, rp.cfg.now())
	return nil
}

// Process returns the money through the gateway using the refund id as
// idempotency key. On success the payment balance and the refund move
// together; on a decline or gateway error the refund is Failed and the
// payment is untouched. If ctx is cancelled the refund stays Approved.
func (rp *RefundProcessor) Process(ctx context.Context, r *Refund, p *PaymentRecord, gw PaymentGateway) (GatewayResult, error) {
	if r.Status != RefundStatusApproved {
		return GatewayResult{}, ErrNotApproved.WithMessage(fmt.Sprintf("cannot process refund in %s status", r.Status))
	}
	if err := rp.ensureBelongs(r, p); err != nil {
		return GatewayResult{}, err
	}
	if !p.canRefund(r.Amount) {
		r.fail("insufficient refundable balance", false, rp.cfg.now())
		return GatewayResult{}, ErrInsufficientBalance.WithMessage(
			fmt.Sprintf("refund of %s exceeds refundable %s", r.Amount, p.RefundableAmount))
	}
	req := RefundRequest{
		TransactionID:  p.TransactionID,
		Amount:         r.Amount,
		IdempotencyKey: r.ID.String(),
		Reason:         r.Reason,
	}
	if err := req.Validate(); err != nil {
		return GatewayResult{}, shared.ErrInvalidInput.WithMessage(err.Error())
	}

	callCtx, cancel := context.WithTimeout(ctx, rp.cfg.timeout)
	defer cancel()
	res, err := gw.Refund(callCtx, req)
	if err != nil {
		if ctx.Err() != nil {
			return GatewayResult{}, fmt.Errorf("refund interrupted: %w", ctx.Err())
		}
		ge := gatewayFailure("refund", callCtx, err)
		r.fail(ge.Reason, ge.UnknownOutcome, rp.cfg.now())
		return GatewayResult{}, ge
	}
	if !res.Success {
		reason := res.FailureReason
		if reason == "" {
			reason = "refund declined"
		}
		r.fail(reason, false, rp.cfg.now())
		return res, nil
	}

	now := rp.cfg.now()
	if err := p.applyRefund(r.Amount, now); err != nil {
		r.fail(err.Error(), true, now)
		return res, err
	}
	r.complete(res.TransactionID, now)
	return res, nil
}

func (rp *RefundProcessor) ensureBelongs(r *Refund, p *PaymentRecord) error {
	if p == nil || r.PaymentID != p.ID {
		return ErrRefundPaymentMismatch
	}
	return nil
}
