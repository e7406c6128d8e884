package invoicing

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/netbill/backend/internal/domain/shared"
)

// InvoiceFilter narrows invoice listings.
type InvoiceFilter struct {
	shared.Filter
	UserID *uuid.UUID
	Status *InvoiceStatus
}

// InvoiceRepository persists invoices together with their items.
type InvoiceRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Invoice, error)
	FindByNumber(ctx context.Context, number string) (*Invoice, error)
	FindAll(ctx context.Context, filter InvoiceFilter) ([]Invoice, int64, error)
	// FindOverdue returns sent invoices whose due date is before now.
	FindOverdue(ctx context.Context, now time.Time, limit int) ([]Invoice, error)
	Save(ctx context.Context, inv *Invoice) error
	// SaveWithLock saves only if the stored version equals expectedVersion.
	SaveWithLock(ctx context.Context, inv *Invoice, expectedVersion int) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// Archive stores an immutable snapshot of an issued invoice.
type Archive interface {
	Store(ctx context.Context, inv *Invoice) (location string, err error)
}
