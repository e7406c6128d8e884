package invoicing

import "github.com/netbill/backend/internal/domain/shared"

const (
	EventTypeInvoiceCreated       = "InvoiceCreated"
	EventTypeInvoiceEdited        = "InvoiceEdited"
	EventTypeInvoiceStatusChanged = "InvoiceStatusChanged"
)

// InvoiceCreatedEvent is raised when a draft is built.
type InvoiceCreatedEvent struct {
	shared.BaseDomainEvent
	UserID string `json:"user_id"`
	Total  int64  `json:"total_minor"`
	Items  int    `json:"items"`
}

func NewInvoiceCreatedEvent(inv *Invoice) *InvoiceCreatedEvent {
	return &InvoiceCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoiceCreated, AggregateTypeInvoice, inv.ID),
		UserID:          inv.UserID.String(),
		Total:           inv.Total.MinorUnits(),
		Items:           len(inv.Items),
	}
}

// InvoiceEditedEvent is raised when draft items are replaced.
type InvoiceEditedEvent struct {
	shared.BaseDomainEvent
	Total int64 `json:"total_minor"`
	Items int   `json:"items"`
}

func NewInvoiceEditedEvent(inv *Invoice) *InvoiceEditedEvent {
	return &InvoiceEditedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoiceEdited, AggregateTypeInvoice, inv.ID),
		Total:           inv.Total.MinorUnits(),
		Items:           len(inv.Items),
	}
}

// InvoiceStatusChangedEvent is raised on every transition.
type InvoiceStatusChangedEvent struct {
	shared.BaseDomainEvent
	Number string        `json:"number"`
	From   InvoiceStatus `json:"from"`
	To     InvoiceStatus `json:"to"`
}

func NewInvoiceStatusChangedEvent(inv *Invoice, from InvoiceStatus) *InvoiceStatusChangedEvent {
	return &InvoiceStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoiceStatusChanged, AggregateTypeInvoice, inv.ID),
		Number:          inv.Number,
		From:            from,
		To:              inv.Status,
	}
}
