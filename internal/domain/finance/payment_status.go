package finance

import (
	"fmt"
	"strings"
)

// PaymentStatus is the lifecycle state of a payment record.
type PaymentStatus string

const (
	PaymentStatusPending         PaymentStatus = "PENDING"
	PaymentStatusCompleted       PaymentStatus = "COMPLETED"
	PaymentStatusFailed          PaymentStatus = "FAILED"
	PaymentStatusCancelled       PaymentStatus = "CANCELLED"
	PaymentStatusRefunded        PaymentStatus = "REFUNDED"
	PaymentStatusPartialRefunded PaymentStatus = "PARTIAL_REFUNDED"
)

func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusCompleted, PaymentStatusFailed,
		PaymentStatusCancelled, PaymentStatusRefunded, PaymentStatusPartialRefunded:
		return true
	}
	return false
}

func (s PaymentStatus) String() string { return string(s) }

// IsCollected reports whether money was captured: Completed, PartialRefunded
// or Refunded. For these refunded + refundable == amount.
func (s PaymentStatus) IsCollected() bool {
	return s == PaymentStatusCompleted || s == PaymentStatusPartialRefunded || s == PaymentStatusRefunded
}

// IsRefundable reports whether new refunds may be requested.
func (s PaymentStatus) IsRefundable() bool {
	return s == PaymentStatusCompleted || s == PaymentStatusPartialRefunded
}

// IsTerminal reports whether the payment can no longer change.
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusCancelled || s == PaymentStatusRefunded
}

// PaymentMethodType is how the payer pays.
type PaymentMethodType string

const (
	PaymentMethodCard         PaymentMethodType = "CARD"
	PaymentMethodBankTransfer PaymentMethodType = "BANK_TRANSFER"
	PaymentMethodEWallet      PaymentMethodType = "E_WALLET"
)

func (t PaymentMethodType) IsValid() bool {
	switch t {
	case PaymentMethodCard, PaymentMethodBankTransfer, PaymentMethodEWallet:
		return true
	}
	return false
}

// PaymentMethod identifies the instrument; Reference is the gateway token
// (for example a saved card id).
type PaymentMethod struct {
	Type      PaymentMethodType `json:"type"`
	Reference string            `json:"reference"`
}

// Validate checks the method shape.
func (m PaymentMethod) Validate() error {
	if !m.Type.IsValid() {
		return ErrInvalidMethod.WithMessage(fmt.Sprintf("unknown payment method type %q", m.Type))
	}
	if strings.TrimSpace(m.Reference) == "" {
		return ErrInvalidMethod.WithMessage("payment method reference is required")
	}
	return nil
}
