package finance

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/netbill/backend/internal/domain/shared"
	"github.com/netbill/backend/internal/domain/shared/valueobject"
)

// AggregateTypeRefund is the aggregate type name used in events.
const AggregateTypeRefund = "Refund"

// RefundStatus is the lifecycle state of a refund.
type RefundStatus string

const (
	// RefundStatusPending is a requested refund awaiting review
	RefundStatusPending RefundStatus = "PENDING"
	// RefundStatusApproved is cleared for processing
	RefundStatusApproved RefundStatus = "APPROVED"
	// RefundStatusRejected is terminal with no balance effect
	RefundStatusRejected RefundStatus = "REJECTED"
	// RefundStatusCompleted means the gateway returned the money
	RefundStatusCompleted RefundStatus = "COMPLETED"
	// RefundStatusFailed means processing did not move money
	RefundStatusFailed RefundStatus = "FAILED"
)

func (s RefundStatus) IsValid() bool {
	switch s {
	case RefundStatusPending, RefundStatusApproved, RefundStatusRejected,
		RefundStatusCompleted, RefundStatusFailed:
		return true
	}
	return false
}

func (s RefundStatus) String() string { return string(s) }

// IsTerminal returns true if no further transition is possible
func (s RefundStatus) IsTerminal() bool {
	return s == RefundStatusRejected || s == RefundStatusCompleted || s == RefundStatusFailed
}

// Refund returns part of a collected payment. It references the payment by id.
type Refund struct {
	shared.BaseAggregateRoot
	Number          string
	PaymentID       uuid.UUID
	Amount          valueobject.Money
	Status          RefundStatus
	Reason          string
	RejectionReason string
	ApprovedBy      string
	ApprovedAt      *time.Time
	ProcessedAt     *time.Time
	TransactionID   string
	FailureReason   string
	// OutcomeUnknown is set when the gateway call may have been applied.
	OutcomeUnknown bool
}

func newRefund(paymentID uuid.UUID, amount valueobject.Money, reason string, now time.Time) *Refund {
	r := &Refund{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		PaymentID:         paymentID,
		Amount:            amount,
		Status:            RefundStatusPending,
		Reason:            reason,
	}
	r.CreatedAt = now
	r.UpdatedAt = now
	r.AddDomainEvent(NewRefundRequestedEvent(r))
	return r
}

// AssignNumber sets the human-readable number once.
func (r *Refund) AssignNumber(number string) error {
	if r.Number != "" {
		return shared.ErrInvalidState.WithMessage("refund number already assigned")
	}
	r.Number = number
	return nil
}

func (r *Refund) requirePending(op string) error {
	if r.Status != RefundStatusPending {
		return ErrNotPending.WithMessage(fmt.Sprintf("cannot %s refund in %s status", op, r.Status))
	}
	return nil
}

func (r *Refund) approve(approver string, now time.Time) {
	from := r.Status
	r.Status = RefundStatusApproved
	r.ApprovedBy = approver
	at := now
	r.ApprovedAt = &at
	r.changed(EventTypeRefundApproved, from, now)
}

func (r *Refund) reject(reason string, now time.Time) {
	from := r.Status
	r.Status = RefundStatusRejected
	r.RejectionReason = reason
	r.changed(EventTypeRefundRejected, from, now)
}

func (r *Refund) complete(transactionID string, now time.Time) {
	from := r.Status
	r.Status = RefundStatusCompleted
	r.TransactionID = transactionID
	at := now
	r.ProcessedAt = &at
	r.changed(EventTypeRefundCompleted, from, now)
}

func (r *Refund) fail(reason string, unknown bool, now time.Time) {
	from := r.Status
	r.Status = RefundStatusFailed
	r.FailureReason = reason
	r.OutcomeUnknown = unknown
	at := now
	r.ProcessedAt = &at
	r.changed(EventTypeRefundFailed, from, now)
}

func (r *Refund) changed(eventType string, from RefundStatus, now time.Time) {
	r.Touch(now)
	r.IncrementVersion()
	r.AddDomainEvent(NewRefundStatusChangedEvent(eventType, r, from))
}
