package finance

import "github.com/netbill/backend/internal/domain/shared"

// Payment errors
var (
	ErrInvoiceNotPayable = shared.NewKindError(shared.KindState, "INVOICE_NOT_PAYABLE", "Invoice is not open for payment")
	ErrInvalidAmount     = shared.NewDomainError("INVALID_AMOUNT", "Amount must be positive")
	ErrInvalidMethod     = shared.NewDomainError("INVALID_PAYMENT_METHOD", "Invalid payment method")
	ErrNotPending        = shared.NewKindError(shared.KindState, "NOT_PENDING", "Operation requires a pending record")
	ErrNotCancellable    = shared.NewKindError(shared.KindState, "NOT_CANCELLABLE", "Only pending payments can be cancelled")
	ErrNotRetryable      = shared.NewKindError(shared.KindState, "NOT_RETRYABLE", "Only failed payments can be retried")
	ErrPaymentExpired    = shared.NewKindError(shared.KindState, "PAYMENT_EXPIRED", "Payment has expired")
)

// Refund errors
var (
	ErrPaymentNotCompleted     = shared.NewKindError(shared.KindState, "PAYMENT_NOT_COMPLETED", "Payment must be completed before it can be refunded")
	ErrAmountExceedsRefundable = shared.NewKindError(shared.KindBalance, "AMOUNT_EXCEEDS_REFUNDABLE", "Refund amount exceeds the refundable balance")
	ErrInvalidReason           = shared.NewDomainError("INVALID_REASON", "Reason must be at least 5 characters")
	ErrNotApproved             = shared.NewKindError(shared.KindState, "NOT_APPROVED", "Refund must be approved before processing")
	ErrInvalidApprover         = shared.NewDomainError("INVALID_APPROVER", "Approver is required")
	ErrRefundPaymentMismatch   = shared.NewDomainError("REFUND_PAYMENT_MISMATCH", "Refund does not belong to this payment")
	// ErrInsufficientBalance is the shared sentinel; re-exported for callers of this package.
	ErrInsufficientBalance = shared.ErrInsufficientBalance
)
