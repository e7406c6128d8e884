package persistence

import (
	"context"

	"gorm.io/gorm"

	"github.com/netbill/backend/internal/application/billing"
	"github.com/netbill/backend/internal/domain/finance"
	"github.com/netbill/backend/internal/domain/invoicing"
	"github.com/netbill/backend/internal/domain/rating"
	"github.com/netbill/backend/internal/domain/shared"
)

// GormTransactionScope implements billing.TransactionScope using GORM transactions.
type GormTransactionScope struct {
	db *gorm.DB
}

// NewGormTransactionScope creates a new GormTransactionScope.
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

// Execute runs fn within a database transaction. An error from fn rolls
// the transaction back; otherwise it commits.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos billing.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTransactionalRepositories{tx: tx})
	})
}

// gormTransactionalRepositories hands out repositories bound to one transaction.
type gormTransactionalRepositories struct {
	tx *gorm.DB
}

func (r *gormTransactionalRepositories) RatePlanRepo() rating.RatePlanRepository {
	return NewGormRatePlanRepository(r.tx)
}

func (r *gormTransactionalRepositories) InvoiceRepo() invoicing.InvoiceRepository {
	return NewGormInvoiceRepository(r.tx)
}

func (r *gormTransactionalRepositories) PaymentRepo() finance.PaymentRecordRepository {
	return NewGormPaymentRecordRepository(r.tx)
}

func (r *gormTransactionalRepositories) RefundRepo() finance.RefundRepository {
	return NewGormRefundRepository(r.tx)
}

func (r *gormTransactionalRepositories) OutboxRepo() shared.OutboxRepository {
	return NewGormOutboxRepository(r.tx)
}

func (r *gormTransactionalRepositories) Sequence() shared.NumberSequence {
	return NewGormNumberSequence(r.tx)
}

// Ensure GormTransactionScope implements TransactionScope
var _ billing.TransactionScope = (*GormTransactionScope)(nil)

var _ billing.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
