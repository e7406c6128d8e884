// Package finance collects payments against invoices and returns money
// through refunds.
package finance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/netbill/backend/internal/application/billing"
	"github.com/netbill/backend/internal/domain/finance"
	"github.com/netbill/backend/internal/domain/shared"
	"github.com/netbill/backend/internal/infrastructure/logger"
	"github.com/netbill/backend/internal/infrastructure/telemetry"
)

// InvoiceSettler marks an invoice paid inside an open transaction.
type InvoiceSettler interface {
	MarkPaid(ctx context.Context, repos billing.TransactionalRepositories, invoiceID uuid.UUID) (bool, error)
}

// Config tunes the finance services.
type Config struct {
	LockTTL time.Duration
}

// Deps are the collaborators shared by PaymentService and RefundService.
type Deps struct {
	Payments finance.PaymentRecordRepository
	Refunds  finance.RefundRepository
	Tx       billing.TransactionScope
	Gateway  finance.PaymentGateway
	Locker   shared.Locker
	Metrics  *telemetry.BillingMetrics
	Logger   *zap.Logger
}

func (d *Deps) defaults() {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
}

// lockKey is shared by payment processing and refunds so that every balance
// change on one payment is serialized.
func lockKey(paymentID uuid.UUID) string {
	return "payment:" + paymentID.String()
}

const defaultLockTTL = 30 * time.Second

// errUnchanged aborts a transaction that found nothing to do.
var errUnchanged = errors.New("record unchanged")

// PaymentService opens, charges, retries, cancels and expires payments.
type PaymentService struct {
	deps      Deps
	cfg       Config
	processor *finance.PaymentProcessor
	settler   InvoiceSettler
}

// NewPaymentService creates the service. settler may be nil, in which case
// invoices are left untouched when payments complete.
func NewPaymentService(deps Deps, cfg Config, processor *finance.PaymentProcessor, settler InvoiceSettler) *PaymentService {
	deps.defaults()
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = defaultLockTTL
	}
	return &PaymentService{deps: deps, cfg: cfg, processor: processor, settler: settler}
}

// Create opens a pending payment for the full invoice total.
func (s *PaymentService) Create(ctx context.Context, invoiceID uuid.UUID, method finance.PaymentMethod) (*finance.PaymentRecord, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "create")
	defer span.End()
	telemetry.SetAttribute(span, "invoice_id", invoiceID.String())

	var payment *finance.PaymentRecord
	err := s.deps.Tx.Execute(ctx, func(repos billing.TransactionalRepositories) error {
		inv, err := repos.InvoiceRepo().FindByID(ctx, invoiceID)
		if err != nil {
			return err
		}
		if inv == nil {
			return shared.ErrNotFound.WithMessage(fmt.Sprintf("invoice %s not found", invoiceID))
		}
		p, err := s.processor.Create(inv, method)
		if err != nil {
			return err
		}
		number, err := repos.Sequence().Next(ctx, billing.PrefixPayment, p.CreatedAt)
		if err != nil {
			return err
		}
		if err := p.AssignNumber(number); err != nil {
			return err
		}
		if err := repos.PaymentRepo().Save(ctx, p); err != nil {
			return err
		}
		payment = p
		return billing.RecordEvents(ctx, repos.OutboxRepo(), p)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	telemetry.SetAttributes(span, "payment_id", payment.ID.String(), "amount_minor", payment.Amount.MinorUnits())
	telemetry.SetOK(span)
	logger.Ctx(ctx, s.deps.Logger).Info("payment opened",
		zap.String("payment_id", payment.ID.String()),
		zap.String("number", payment.Number),
		zap.String("invoice_id", invoiceID.String()),
		zap.String("amount", payment.Amount.String()),
		zap.Time("expires_at", payment.ExpiresAt),
	)
	return payment, nil
}

// Get returns a payment by id.
func (s *PaymentService) Get(ctx context.Context, id uuid.UUID) (*finance.PaymentRecord, error) {
	p, err := s.deps.Payments.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find payment: %w", err)
	}
	if p == nil {
		return nil, paymentNotFound(id)
	}
	return p, nil
}

// List pages through payments.
func (s *PaymentService) List(ctx context.Context, filter finance.PaymentFilter) ([]finance.PaymentRecord, int64, error) {
	return s.deps.Payments.FindAll(ctx, filter)
}

// Process charges a pending payment. A decline comes back as a result with
// Success false and a nil error; the payment is then Failed.
func (s *PaymentService) Process(ctx context.Context, id uuid.UUID) (*finance.PaymentRecord, finance.GatewayResult, error) {
	return s.charge(ctx, id, "process", s.processor.Process)
}

// Retry re-opens a failed payment with a fresh expiry and charges it again.
func (s *PaymentService) Retry(ctx context.Context, id uuid.UUID) (*finance.PaymentRecord, finance.GatewayResult, error) {
	return s.charge(ctx, id, "retry", s.processor.Retry)
}

type chargeFunc func(ctx context.Context, p *finance.PaymentRecord, gw finance.PaymentGateway) (finance.GatewayResult, error)

// charge runs the gateway call outside any database transaction, holding
// the payment lock, then persists whatever the processor changed.
func (s *PaymentService) charge(ctx context.Context, id uuid.UUID, op string, fn chargeFunc) (*finance.PaymentRecord, finance.GatewayResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", op)
	defer span.End()
	telemetry.SetAttribute(span, "payment_id", id.String())
	log := logger.Ctx(ctx, s.deps.Logger).With(zap.String("payment_id", id.String()), zap.String("op", op))

	release, err := s.deps.Locker.Acquire(ctx, lockKey(id), s.cfg.LockTTL)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, finance.GatewayResult{}, err
	}
	defer release()

	p, err := s.Get(ctx, id)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, finance.GatewayResult{}, err
	}
	expected := p.Version

	res, chargeErr := fn(ctx, p, s.deps.Gateway)
	if p.Version == expected {
		// Rejected before the gateway, or interrupted by the caller: nothing to store.
		telemetry.RecordError(span, chargeErr)
		return p, res, chargeErr
	}

	err = s.deps.Tx.Execute(ctx, func(repos billing.TransactionalRepositories) error {
		if err := repos.PaymentRepo().SaveWithLock(ctx, p, expected); err != nil {
			return err
		}
		if p.Status == finance.PaymentStatusCompleted && s.settler != nil {
			settled, err := s.settler.MarkPaid(ctx, repos, p.InvoiceID)
			if err != nil {
				return fmt.Errorf("settle invoice: %w", err)
			}
			telemetry.AddEvent(span, "invoice_settled", "settled", settled)
		}
		return billing.RecordEvents(ctx, repos.OutboxRepo(), p)
	})
	if err != nil {
		// The gateway already answered; the next attempt replays under the same key.
		telemetry.RecordError(span, err)
		log.Error("payment outcome not stored", zap.String("status", p.Status.String()), zap.Error(err))
		return nil, res, err
	}

	outcome := outcomeOf(p.Status == finance.PaymentStatusCompleted, chargeErr)
	s.deps.Metrics.RecordPayment(ctx, p.Gateway, string(p.Method.Type), outcome, p.Amount.Currency().String(), p.Amount.MinorUnits())
	telemetry.SetAttributes(span, "status", p.Status.String(), "attempts", p.Attempts)

	switch {
	case chargeErr != nil:
		telemetry.RecordError(span, chargeErr)
		log.Warn("payment failed at gateway", zap.Error(chargeErr))
	case !res.Success:
		telemetry.SetOK(span)
		log.Info("payment declined", zap.String("reason", p.FailureReason))
	default:
		telemetry.SetOK(span)
		log.Info("payment completed", zap.String("transaction_id", p.TransactionID))
	}
	return p, res, chargeErr
}

func outcomeOf(success bool, err error) string {
	switch {
	case err != nil:
		return "error"
	case success:
		return "completed"
	default:
		return "declined"
	}
}

// Cancel stops a pending payment.
func (s *PaymentService) Cancel(ctx context.Context, id uuid.UUID, reason string) (*finance.PaymentRecord, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "cancel")
	defer span.End()

	release, err := s.deps.Locker.Acquire(ctx, lockKey(id), s.cfg.LockTTL)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	defer release()

	p, err := s.update(ctx, id, func(p *finance.PaymentRecord) error {
		return s.processor.Cancel(p, reason)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetOK(span)
	logger.Ctx(ctx, s.deps.Logger).Info("payment cancelled",
		zap.String("payment_id", id.String()),
		zap.String("reason", reason),
	)
	return p, nil
}

// ExpiredIDs lists pending payments whose expiry has passed at now.
func (s *PaymentService) ExpiredIDs(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	payments, err := s.deps.Payments.FindExpiredPending(ctx, now, limit)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, len(payments))
	for i := range payments {
		ids[i] = payments[i].ID
	}
	return ids, nil
}

// Expire cancels one payment if it is still pending past its expiry. It
// does not wait for the payment lock: a payment being charged right now is
// left for the next sweep.
func (s *PaymentService) Expire(ctx context.Context, id uuid.UUID) (bool, error) {
	lockCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	release, err := s.deps.Locker.Acquire(lockCtx, lockKey(id), s.cfg.LockTTL)
	cancel()
	if err != nil {
		if errors.Is(err, shared.ErrLockNotAcquired) {
			return false, nil
		}
		return false, err
	}
	defer release()

	_, err = s.update(ctx, id, func(p *finance.PaymentRecord) error {
		expired, err := s.processor.Expire(p)
		if err != nil {
			return err
		}
		if !expired {
			return errUnchanged
		}
		return nil
	})
	if errors.Is(err, errUnchanged) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	logger.Ctx(ctx, s.deps.Logger).Info("payment expired", zap.String("payment_id", id.String()))
	return true, nil
}

// update applies fn to the payment in a transaction with a version check.
func (s *PaymentService) update(ctx context.Context, id uuid.UUID, fn func(p *finance.PaymentRecord) error) (*finance.PaymentRecord, error) {
	var out *finance.PaymentRecord
	err := s.deps.Tx.Execute(ctx, func(repos billing.TransactionalRepositories) error {
		p, err := repos.PaymentRepo().FindByID(ctx, id)
		if err != nil {
			return err
		}
		if p == nil {
			return paymentNotFound(id)
		}
		expected := p.Version
		if err := fn(p); err != nil {
			return err
		}
		if err := repos.PaymentRepo().SaveWithLock(ctx, p, expected); err != nil {
			return err
		}
		out = p
		return billing.RecordEvents(ctx, repos.OutboxRepo(), p)
	})
	return out, err
}

func paymentNotFound(id uuid.UUID) error {
	return shared.ErrNotFound.WithMessage(fmt.Sprintf("payment %s not found", id))
}
