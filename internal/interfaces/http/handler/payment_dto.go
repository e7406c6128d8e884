package handler

import (
	"time"

	"github.com/google/uuid"

	"github.com/netbill/backend/internal/domain/finance"
	"github.com/netbill/backend/internal/domain/shared/valueobject"
)

// PaymentMethodRequest identifies the payer's instrument.
type PaymentMethodRequest struct {
	Type      string `json:"type" binding:"required,oneof=CARD BANK_TRANSFER E_WALLET"`
	Reference string `json:"reference" binding:"required,max=200"`
}

// CreatePaymentRequest is the body of POST /payments.
type CreatePaymentRequest struct {
	InvoiceID string               `json:"invoice_id" binding:"required,uuid"`
	Method    PaymentMethodRequest `json:"method" binding:"required"`
}

// CancelPaymentRequest is the body of POST /payments/:id/cancel.
type CancelPaymentRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}

// PaymentResponse is a payment in API responses.
type PaymentResponse struct {
	ID               uuid.UUID             `json:"id"`
	Number           string                `json:"number"`
	InvoiceID        uuid.UUID             `json:"invoice_id"`
	UserID           uuid.UUID             `json:"user_id"`
	Amount           valueobject.Money     `json:"amount"`
	Method           finance.PaymentMethod `json:"method"`
	Status           string                `json:"status"`
	RefundableAmount valueobject.Money     `json:"refundable_amount"`
	RefundedAmount   valueobject.Money     `json:"refunded_amount"`
	TransactionID    string                `json:"transaction_id,omitempty"`
	FailureReason    string                `json:"failure_reason,omitempty"`
	OutcomeUnknown   bool                  `json:"outcome_unknown,omitempty"`
	CancelReason     string                `json:"cancel_reason,omitempty"`
	Gateway          string                `json:"gateway,omitempty"`
	ExpiresAt        time.Time             `json:"expires_at"`
	PaidAt           *time.Time            `json:"paid_at,omitempty"`
	Attempts         int                   `json:"attempts"`
	Version          int                   `json:"version"`
	CreatedAt        time.Time             `json:"created_at"`
	UpdatedAt        time.Time             `json:"updated_at"`
}

func toPaymentResponse(p *finance.PaymentRecord) PaymentResponse {
	return PaymentResponse{
		ID:               p.ID,
		Number:           p.Number,
		InvoiceID:        p.InvoiceID,
		UserID:           p.UserID,
		Amount:           p.Amount,
		Method:           p.Method,
		Status:           p.Status.String(),
		RefundableAmount: p.RefundableAmount,
		RefundedAmount:   p.RefundedAmount,
		TransactionID:    p.TransactionID,
		FailureReason:    p.FailureReason,
		OutcomeUnknown:   p.OutcomeUnknown,
		CancelReason:     p.CancelReason,
		Gateway:          p.Gateway,
		ExpiresAt:        p.ExpiresAt,
		PaidAt:           p.PaidAt,
		Attempts:         p.Attempts,
		Version:          p.Version,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
}

// ChargeResponse answers process and retry calls. A decline is a 200 with
// Gateway.Success false.
type ChargeResponse struct {
	Payment PaymentResponse       `json:"payment"`
	Gateway finance.GatewayResult `json:"gateway"`
}

// CreateRefundRequest is the body of POST /refunds.
type CreateRefundRequest struct {
	PaymentID string            `json:"payment_id" binding:"required,uuid"`
	Amount    valueobject.Money `json:"amount"`
	Reason    string            `json:"reason" binding:"required,max=500"`
}

// ApproveRefundRequest is the body of POST /refunds/:id/approve.
type ApproveRefundRequest struct {
	Approver string `json:"approver" binding:"required,max=100"`
}

// RejectRefundRequest is the body of POST /refunds/:id/reject.
type RejectRefundRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}

// RefundResponse is a refund in API responses.
type RefundResponse struct {
	ID              uuid.UUID         `json:"id"`
	Number          string            `json:"number"`
	PaymentID       uuid.UUID         `json:"payment_id"`
	Amount          valueobject.Money `json:"amount"`
	Status          string            `json:"status"`
	Reason          string            `json:"reason"`
	RejectionReason string            `json:"rejection_reason,omitempty"`
	ApprovedBy      string            `json:"approved_by,omitempty"`
	ApprovedAt      *time.Time        `json:"approved_at,omitempty"`
	ProcessedAt     *time.Time        `json:"processed_at,omitempty"`
	TransactionID   string            `json:"transaction_id,omitempty"`
	FailureReason   string            `json:"failure_reason,omitempty"`
	OutcomeUnknown  bool              `json:"outcome_unknown,omitempty"`
	Version         int               `json:"version"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

func toRefundResponse(r *finance.Refund) RefundResponse {
	return RefundResponse{
		ID:              r.ID,
		Number:          r.Number,
		PaymentID:       r.PaymentID,
		Amount:          r.Amount,
		Status:          r.Status.String(),
		Reason:          r.Reason,
		RejectionReason: r.RejectionReason,
		ApprovedBy:      r.ApprovedBy,
		ApprovedAt:      r.ApprovedAt,
		ProcessedAt:     r.ProcessedAt,
		TransactionID:   r.TransactionID,
		FailureReason:   r.FailureReason,
		OutcomeUnknown:  r.OutcomeUnknown,
		Version:         r.Version,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

// RefundProcessResponse answers POST /refunds/:id/process.
type RefundProcessResponse struct {
	Refund  RefundResponse        `json:"refund"`
	Gateway finance.GatewayResult `json:"gateway"`
}
