package finance

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/netbill/backend/internal/domain/shared"
	"github.com/netbill/backend/internal/domain/shared/valueobject"
)

// AggregateTypePaymentRecord is the aggregate type name used in events.
const AggregateTypePaymentRecord = "PaymentRecord"

// PaymentRecord tracks collection of one invoice total.
//
// For every reachable state RefundedAmount + RefundableAmount equals Amount
// when the status is collected and zero otherwise. The balance pair only
// moves through applyRefund, which the refund processor drives.
type PaymentRecord struct {
	shared.BaseAggregateRoot
	Number           string
	InvoiceID        uuid.UUID
	UserID           uuid.UUID
	Amount           valueobject.Money
	Method           PaymentMethod
	Status           PaymentStatus
	RefundableAmount valueobject.Money
	RefundedAmount   valueobject.Money
	TransactionID    string
	FailureReason    string
	CancelReason     string
	Gateway          string
	ExpiresAt        time.Time
	PaidAt           *time.Time
	Attempts         int
	// ChargeKey is the idempotency key of the current charge attempt. It is
	// the payment id until a definite failure forces a fresh attempt.
	ChargeKey string
	// OutcomeUnknown is set when the last failed charge may have been applied.
	OutcomeUnknown bool
}

func newPaymentRecord(invoiceID, userID uuid.UUID, amount valueobject.Money, method PaymentMethod, now, expiresAt time.Time) *PaymentRecord {
	p := &PaymentRecord{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		InvoiceID:         invoiceID,
		UserID:            userID,
		Amount:            amount,
		Method:            method,
		Status:            PaymentStatusPending,
		RefundableAmount:  valueobject.Zero(amount.Currency()),
		RefundedAmount:    valueobject.Zero(amount.Currency()),
		ExpiresAt:         expiresAt,
		Attempts:          1,
	}
	p.ChargeKey = p.ID.String()
	p.CreatedAt = now
	p.UpdatedAt = now
	p.AddDomainEvent(NewPaymentCreatedEvent(p))
	return p
}

// AssignNumber sets the human-readable number once.
func (p *PaymentRecord) AssignNumber(number string) error {
	if p.Number != "" {
		return shared.ErrInvalidState.WithMessage("payment number already assigned")
	}
	p.Number = number
	return nil
}

// IdempotencyKey returns the key the next charge must carry.
func (p *PaymentRecord) IdempotencyKey() string {
	if p.ChargeKey == "" {
		return p.ID.String()
	}
	return p.ChargeKey
}

// IsExpiredAt reports whether a pending payment is past its expiry.
func (p *PaymentRecord) IsExpiredAt(now time.Time) bool {
	return p.Status == PaymentStatusPending && !now.Before(p.ExpiresAt)
}

// BalanceInvariantHolds checks refunded + refundable against the amount
// the status says was collected.
func (p *PaymentRecord) BalanceInvariantHolds() bool {
	sum, err := p.RefundedAmount.Add(p.RefundableAmount)
	if err != nil {
		return false
	}
	if p.Status.IsCollected() {
		return sum.Equals(p.Amount)
	}
	return sum.IsZero()
}

// canRefund reports whether amount fits the refundable balance.
func (p *PaymentRecord) canRefund(amount valueobject.Money) bool {
	if !p.Status.IsRefundable() {
		return false
	}
	gt, err := amount.GreaterThan(p.RefundableAmount)
	return err == nil && !gt
}

func (p *PaymentRecord) markCompleted(transactionID string, now time.Time) {
	from := p.Status
	p.Status = PaymentStatusCompleted
	p.TransactionID = transactionID
	p.FailureReason = ""
	p.OutcomeUnknown = false
	p.RefundableAmount = p.Amount
	p.RefundedAmount = valueobject.Zero(p.Amount.Currency())
	paid := now
	p.PaidAt = &paid
	p.changed(EventTypePaymentCompleted, from, now)
}

func (p *PaymentRecord) markFailed(reason string, unknown bool, now time.Time) {
	from := p.Status
	if reason == "" {
		reason = "payment declined"
	}
	p.Status = PaymentStatusFailed
	p.FailureReason = reason
	p.OutcomeUnknown = unknown
	p.changed(EventTypePaymentFailed, from, now)
}

func (p *PaymentRecord) cancel(reason string, now time.Time) error {
	if p.Status != PaymentStatusPending {
		return ErrNotCancellable.WithMessage(fmt.Sprintf("cannot cancel payment in %s status", p.Status))
	}
	from := p.Status
	p.Status = PaymentStatusCancelled
	p.CancelReason = reason
	p.changed(EventTypePaymentCancelled, from, now)
	return nil
}

func (p *PaymentRecord) resetForRetry(now, expiresAt time.Time) error {
	if p.Status != PaymentStatusFailed {
		return ErrNotRetryable.WithMessage(fmt.Sprintf("cannot retry payment in %s status", p.Status))
	}
	from := p.Status
	p.Status = PaymentStatusPending
	p.FailureReason = ""
	p.ExpiresAt = expiresAt
	p.Attempts++
	// A charge that may have landed is replayed under its old key so the
	// gateway deduplicates it. A definite failure needs a key the gateway
	// has not answered yet.
	if !p.OutcomeUnknown {
		p.ChargeKey = fmt.Sprintf("%s/%d", p.ID, p.Attempts)
	}
	p.OutcomeUnknown = false
	p.changed(EventTypePaymentRetried, from, now)
	return nil
}

// applyRefund moves a refunded slice from refundable to refunded.
func (p *PaymentRecord) applyRefund(amount valueobject.Money, now time.Time) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !p.canRefund(amount) {
		return ErrInsufficientBalance.WithMessage(
			fmt.Sprintf("refund of %s exceeds refundable %s", amount, p.RefundableAmount))
	}
	from := p.Status
	p.RefundableAmount = p.RefundableAmount.MustSubtract(amount)
	p.RefundedAmount = p.RefundedAmount.MustAdd(amount)
	if p.RefundableAmount.IsZero() {
		p.Status = PaymentStatusRefunded
	} else {
		p.Status = PaymentStatusPartialRefunded
	}
	p.changed(EventTypePaymentRefunded, from, now)
	return nil
}

func (p *PaymentRecord) changed(eventType string, from PaymentStatus, now time.Time) {
	p.Touch(now)
	p.IncrementVersion()
	p.AddDomainEvent(NewPaymentStatusChangedEvent(eventType, p, from))
}
