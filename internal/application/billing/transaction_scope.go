// Package billing holds the application-level plumbing shared by the rating,
// invoicing and finance services: the transaction scope and event recording.
package billing

import (
	"context"

	"github.com/netbill/backend/internal/domain/finance"
	"github.com/netbill/backend/internal/domain/invoicing"
	"github.com/netbill/backend/internal/domain/rating"
	"github.com/netbill/backend/internal/domain/shared"
)

// Document number prefixes.
const (
	PrefixInvoice = "INV"
	PrefixPayment = "PAY"
	PrefixRefund  = "RF"
)

// TransactionScope runs fn in one database transaction. If fn returns an
// error the transaction is rolled back.
type TransactionScope interface {
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories exposes repositories bound to the current
// transaction. Everything written through them commits or rolls back together.
type TransactionalRepositories interface {
	RatePlanRepo() rating.RatePlanRepository
	InvoiceRepo() invoicing.InvoiceRepository
	PaymentRepo() finance.PaymentRecordRepository
	RefundRepo() finance.RefundRepository
	OutboxRepo() shared.OutboxRepository
	Sequence() shared.NumberSequence
}
