// Package invoicing drives the invoice lifecycle: drafting, editing, issuing,
// overdue marking, cancellation and settlement.
package invoicing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/netbill/backend/internal/application/billing"
	"github.com/netbill/backend/internal/domain/invoicing"
	"github.com/netbill/backend/internal/domain/shared"
	"github.com/netbill/backend/internal/infrastructure/logger"
	"github.com/netbill/backend/internal/infrastructure/telemetry"
)

// CreateInput describes a new draft invoice.
type CreateInput struct {
	UserID    uuid.UUID
	Items     []invoicing.InvoiceItemInput
	TaxRules  []invoicing.TaxRule
	Discounts []invoicing.Discount
	IssueDate time.Time
	DueDate   time.Time
}

// InvoiceService coordinates invoice persistence, numbering, archiving and
// outbox events around the domain builder.
type InvoiceService struct {
	repo    invoicing.InvoiceRepository
	tx      billing.TransactionScope
	builder *invoicing.Builder
	archive invoicing.Archive
	quoter  UsageQuoter
	metrics *telemetry.BillingMetrics
	logger  *zap.Logger
	now     func() time.Time
}

// Option configures an InvoiceService.
type Option func(*InvoiceService)

// WithArchive stores a snapshot of every invoice when it is sent.
func WithArchive(a invoicing.Archive) Option {
	return func(s *InvoiceService) { s.archive = a }
}

// WithQuoter enables CreateFromUsage.
func WithQuoter(q UsageQuoter) Option {
	return func(s *InvoiceService) { s.quoter = q }
}

// WithMetrics counts issued invoices.
func WithMetrics(m *telemetry.BillingMetrics) Option {
	return func(s *InvoiceService) { s.metrics = m }
}

// WithClock overrides the wall clock for the service and its builder.
func WithClock(now func() time.Time) Option {
	return func(s *InvoiceService) { s.now = now }
}

// NewInvoiceService creates the service.
func NewInvoiceService(repo invoicing.InvoiceRepository, tx billing.TransactionScope, log *zap.Logger, opts ...Option) *InvoiceService {
	if log == nil {
		log = zap.NewNop()
	}
	s := &InvoiceService{
		repo:   repo,
		tx:     tx,
		logger: log,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	s.builder = invoicing.NewBuilderWithClock(s.now)
	return s
}

// Create builds a draft invoice, numbers it and stores it.
func (s *InvoiceService) Create(ctx context.Context, in CreateInput) (*invoicing.Invoice, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoicing", "create")
	defer span.End()

	inv, err := s.builder.Build(invoicing.BuildInput{
		UserID:    in.UserID,
		Items:     in.Items,
		TaxRules:  in.TaxRules,
		Discounts: in.Discounts,
		IssueDate: in.IssueDate,
		DueDate:   in.DueDate,
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	err = s.tx.Execute(ctx, func(repos billing.TransactionalRepositories) error {
		number, err := repos.Sequence().Next(ctx, billing.PrefixInvoice, inv.IssueDate)
		if err != nil {
			return err
		}
		if err := inv.AssignNumber(number); err != nil {
			return err
		}
		if err := repos.InvoiceRepo().Save(ctx, inv); err != nil {
			return err
		}
		return billing.RecordEvents(ctx, repos.OutboxRepo(), inv)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("save invoice: %w", err)
	}

	telemetry.SetAttributes(span,
		"invoice_id", inv.ID.String(),
		"invoice_number", inv.Number,
		"total_minor", inv.Total.MinorUnits(),
	)
	telemetry.SetOK(span)
	logger.Ctx(ctx, s.logger).Info("invoice drafted",
		zap.String("invoice_id", inv.ID.String()),
		zap.String("number", inv.Number),
		zap.String("total", inv.Total.String()),
	)
	return inv, nil
}

// Get returns an invoice by id.
func (s *InvoiceService) Get(ctx context.Context, id uuid.UUID) (*invoicing.Invoice, error) {
	inv, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find invoice: %w", err)
	}
	if inv == nil {
		return nil, notFound(id)
	}
	return inv, nil
}

// List pages through invoices.
func (s *InvoiceService) List(ctx context.Context, filter invoicing.InvoiceFilter) ([]invoicing.Invoice, int64, error) {
	return s.repo.FindAll(ctx, filter)
}

// EditItems replaces the items of a draft and recomputes its totals.
func (s *InvoiceService) EditItems(ctx context.Context, id uuid.UUID, items []invoicing.InvoiceItemInput) (*invoicing.Invoice, error) {
	return s.mutate(ctx, id, "edit_items", func(_ billing.TransactionalRepositories, inv *invoicing.Invoice) error {
		return s.builder.Edit(inv, items)
	})
}

// Send issues a draft. When an archive is configured the issued snapshot is
// stored before the transaction commits, so a failed upload leaves the
// invoice a draft.
func (s *InvoiceService) Send(ctx context.Context, id uuid.UUID) (*invoicing.Invoice, error) {
	inv, err := s.mutate(ctx, id, "send", func(_ billing.TransactionalRepositories, inv *invoicing.Invoice) error {
		if err := s.builder.Transition(inv, invoicing.InvoiceStatusSent); err != nil {
			return err
		}
		if s.archive == nil {
			return nil
		}
		location, err := s.archive.Store(ctx, inv)
		if err != nil {
			return fmt.Errorf("archive invoice: %w", err)
		}
		if location != "" {
			logger.Ctx(ctx, s.logger).Debug("invoice snapshot stored",
				zap.String("number", inv.Number),
				zap.String("location", location),
			)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.RecordInvoiceIssued(ctx, inv.Currency.String())
	return inv, nil
}

// MarkOverdue moves a sent invoice past its due date to Overdue.
func (s *InvoiceService) MarkOverdue(ctx context.Context, id uuid.UUID) (*invoicing.Invoice, error) {
	return s.mutate(ctx, id, "mark_overdue", func(_ billing.TransactionalRepositories, inv *invoicing.Invoice) error {
		if !inv.IsOverdueAt(s.now()) {
			return shared.ErrInvalidState.WithMessage(
				fmt.Sprintf("invoice %s is %s and due %s", inv.Number, inv.Status, inv.DueDate.Format(time.RFC3339)))
		}
		return s.builder.Transition(inv, invoicing.InvoiceStatusOverdue)
	})
}

// Cancel voids an unpaid invoice.
func (s *InvoiceService) Cancel(ctx context.Context, id uuid.UUID) (*invoicing.Invoice, error) {
	return s.mutate(ctx, id, "cancel", func(_ billing.TransactionalRepositories, inv *invoicing.Invoice) error {
		return s.builder.Transition(inv, invoicing.InvoiceStatusCancelled)
	})
}

// Delete removes a draft.
func (s *InvoiceService) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoicing", "delete")
	defer span.End()

	err := s.tx.Execute(ctx, func(repos billing.TransactionalRepositories) error {
		inv, err := repos.InvoiceRepo().FindByID(ctx, id)
		if err != nil {
			return err
		}
		if inv == nil {
			return notFound(id)
		}
		if err := s.builder.Delete(inv); err != nil {
			return err
		}
		return repos.InvoiceRepo().Delete(ctx, id)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	telemetry.SetOK(span)
	logger.Ctx(ctx, s.logger).Info("draft invoice deleted", zap.String("invoice_id", id.String()))
	return nil
}

// MarkPaid settles a sent invoice inside the caller's transaction. Overdue
// invoices stay Overdue: the state machine has no Overdue -> Paid edge.
func (s *InvoiceService) MarkPaid(ctx context.Context, repos billing.TransactionalRepositories, id uuid.UUID) (bool, error) {
	inv, err := repos.InvoiceRepo().FindByID(ctx, id)
	if err != nil {
		return false, err
	}
	if inv == nil {
		return false, notFound(id)
	}
	if inv.Status != invoicing.InvoiceStatusSent {
		return false, nil
	}
	expected := inv.Version
	if err := s.builder.Transition(inv, invoicing.InvoiceStatusPaid); err != nil {
		return false, err
	}
	if err := repos.InvoiceRepo().SaveWithLock(ctx, inv, expected); err != nil {
		return false, err
	}
	return true, billing.RecordEvents(ctx, repos.OutboxRepo(), inv)
}

// OverdueIDs lists sent invoices past due at now.
func (s *InvoiceService) OverdueIDs(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	invoices, err := s.repo.FindOverdue(ctx, now, limit)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, len(invoices))
	for i := range invoices {
		ids[i] = invoices[i].ID
	}
	return ids, nil
}

// ApplyOverdue marks one invoice overdue if it still qualifies. It reports
// false when the invoice was paid, cancelled or already marked meanwhile.
func (s *InvoiceService) ApplyOverdue(ctx context.Context, id uuid.UUID) (bool, error) {
	changed := false
	_, err := s.mutate(ctx, id, "sweep_overdue", func(_ billing.TransactionalRepositories, inv *invoicing.Invoice) error {
		if !inv.IsOverdueAt(s.now()) {
			return errUnchanged
		}
		changed = true
		return s.builder.Transition(inv, invoicing.InvoiceStatusOverdue)
	})
	if errors.Is(err, errUnchanged) {
		return false, nil
	}
	return changed && err == nil, err
}

// mutate loads the invoice in a transaction, applies fn and saves it with
// an optimistic version check.
func (s *InvoiceService) mutate(
	ctx context.Context,
	id uuid.UUID,
	op string,
	fn func(repos billing.TransactionalRepositories, inv *invoicing.Invoice) error,
) (*invoicing.Invoice, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoicing", op)
	defer span.End()
	telemetry.SetAttribute(span, "invoice_id", id.String())

	var result *invoicing.Invoice
	err := s.tx.Execute(ctx, func(repos billing.TransactionalRepositories) error {
		inv, err := repos.InvoiceRepo().FindByID(ctx, id)
		if err != nil {
			return err
		}
		if inv == nil {
			return notFound(id)
		}
		from := inv.Status
		expected := inv.Version
		if err := fn(repos, inv); err != nil {
			return err
		}
		if err := repos.InvoiceRepo().SaveWithLock(ctx, inv, expected); err != nil {
			return err
		}
		if err := billing.RecordEvents(ctx, repos.OutboxRepo(), inv); err != nil {
			return err
		}
		if from != inv.Status {
			telemetry.AddEvent(span, "status_changed", "from", from.String(), "to", inv.Status.String())
		}
		result = inv
		return nil
	})
	if err != nil {
		if !errors.Is(err, errUnchanged) {
			telemetry.RecordError(span, err)
		}
		return nil, err
	}

	telemetry.SetOK(span)
	logger.Ctx(ctx, s.logger).Info("invoice updated",
		zap.String("op", op),
		zap.String("invoice_id", id.String()),
		zap.String("number", result.Number),
		zap.String("status", result.Status.String()),
		zap.Int("version", result.Version),
	)
	return result, nil
}

// errUnchanged aborts a mutation that found nothing to do.
var errUnchanged = errors.New("invoice unchanged")

func notFound(id uuid.UUID) error {
	return shared.ErrNotFound.WithMessage(fmt.Sprintf("invoice %s not found", id))
}
