package finance

import "github.com/netbill/backend/internal/domain/shared"

const (
	EventTypePaymentCreated   = "PaymentCreated"
	EventTypePaymentCompleted = "PaymentCompleted"
	EventTypePaymentFailed    = "PaymentFailed"
	EventTypePaymentCancelled = "PaymentCancelled"
	EventTypePaymentRetried   = "PaymentRetried"
	EventTypePaymentRefunded  = "PaymentRefunded"

	EventTypeRefundRequested = "RefundRequested"
	EventTypeRefundApproved  = "RefundApproved"
	EventTypeRefundRejected  = "RefundRejected"
	EventTypeRefundCompleted = "RefundCompleted"
	EventTypeRefundFailed    = "RefundFailed"
)

// PaymentCreatedEvent is raised when a pending payment is opened for an invoice.
type PaymentCreatedEvent struct {
	shared.BaseDomainEvent
	InvoiceID string `json:"invoice_id"`
	Amount    int64  `json:"amount_minor"`
	Currency  string `json:"currency"`
	Method    string `json:"method"`
}

func NewPaymentCreatedEvent(p *PaymentRecord) *PaymentCreatedEvent {
	return &PaymentCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentCreated, AggregateTypePaymentRecord, p.ID),
		InvoiceID:       p.InvoiceID.String(),
		Amount:          p.Amount.MinorUnits(),
		Currency:        p.Amount.Currency().String(),
		Method:          string(p.Method.Type),
	}
}

// PaymentStatusChangedEvent carries the balance snapshot after a transition.
type PaymentStatusChangedEvent struct {
	shared.BaseDomainEvent
	Number        string        `json:"number"`
	InvoiceID     string        `json:"invoice_id"`
	From          PaymentStatus `json:"from"`
	To            PaymentStatus `json:"to"`
	Refundable    int64         `json:"refundable_minor"`
	Refunded      int64         `json:"refunded_minor"`
	TransactionID string        `json:"transaction_id,omitempty"`
	Reason        string        `json:"reason,omitempty"`
}

func NewPaymentStatusChangedEvent(eventType string, p *PaymentRecord, from PaymentStatus) *PaymentStatusChangedEvent {
	reason := p.FailureReason
	if p.Status == PaymentStatusCancelled {
		reason = p.CancelReason
	}
	return &PaymentStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, AggregateTypePaymentRecord, p.ID),
		Number:          p.Number,
		InvoiceID:       p.InvoiceID.String(),
		From:            from,
		To:              p.Status,
		Refundable:      p.RefundableAmount.MinorUnits(),
		Refunded:        p.RefundedAmount.MinorUnits(),
		TransactionID:   p.TransactionID,
		Reason:          reason,
	}
}

// RefundRequestedEvent is raised when a refund is requested.
type RefundRequestedEvent struct {
	shared.BaseDomainEvent
	PaymentID string `json:"payment_id"`
	Amount    int64  `json:"amount_minor"`
	Currency  string `json:"currency"`
	Reason    string `json:"reason"`
}

func NewRefundRequestedEvent(r *Refund) *RefundRequestedEvent {
	return &RefundRequestedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeRefundRequested, AggregateTypeRefund, r.ID),
		PaymentID:       r.PaymentID.String(),
		Amount:          r.Amount.MinorUnits(),
		Currency:        r.Amount.Currency().String(),
		Reason:          r.Reason,
	}
}

// RefundStatusChangedEvent is raised on approve, reject, complete and fail.
type RefundStatusChangedEvent struct {
	shared.BaseDomainEvent
	Number    string       `json:"number"`
	PaymentID string       `json:"payment_id"`
	From      RefundStatus `json:"from"`
	To        RefundStatus `json:"to"`
	Amount    int64        `json:"amount_minor"`
	Actor     string       `json:"actor,omitempty"`
	Reason    string       `json:"reason,omitempty"`
}

func NewRefundStatusChangedEvent(eventType string, r *Refund, from RefundStatus) *RefundStatusChangedEvent {
	e := &RefundStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, AggregateTypeRefund, r.ID),
		Number:          r.Number,
		PaymentID:       r.PaymentID.String(),
		From:            from,
		To:              r.Status,
		Amount:          r.Amount.MinorUnits(),
	}
	switch r.Status {
	case RefundStatusApproved:
		e.Actor = r.ApprovedBy
	case RefundStatusRejected:
		e.Reason = r.RejectionReason
	case RefundStatusFailed:
		e.Reason = r.FailureReason
	}
	return e
}
