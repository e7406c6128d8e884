package finance

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/netbill/backend/internal/domain/shared"
)

// PaymentFilter narrows payment listings.
type PaymentFilter struct {
	shared.Filter
	InvoiceID *uuid.UUID
	UserID    *uuid.UUID
	Status    *PaymentStatus
}

// PaymentRecordRepository persists payment records.
type PaymentRecordRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*PaymentRecord, error)
	FindByNumber(ctx context.Context, number string) (*PaymentRecord, error)
	FindByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]PaymentRecord, error)
	// FindExpiredPending returns pending payments whose expiry is not after now.
	FindExpiredPending(ctx context.Context, now time.Time, limit int) ([]PaymentRecord, error)
	FindAll(ctx context.Context, filter PaymentFilter) ([]PaymentRecord, int64, error)
	Save(ctx context.Context, p *PaymentRecord) error
	// SaveWithLock saves only if the stored version equals expectedVersion.
	SaveWithLock(ctx context.Context, p *PaymentRecord, expectedVersion int) error
}

// RefundRepository persists refunds.
type RefundRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Refund, error)
	FindByPayment(ctx context.Context, paymentID uuid.UUID) ([]Refund, error)
	Save(ctx context.Context, r *Refund) error
	SaveWithLock(ctx context.Context, r *Refund, expectedVersion int) error
}
