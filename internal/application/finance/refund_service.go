package finance

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/netbill/backend/internal/application/billing"
	"github.com/netbill/backend/internal/domain/finance"
	"github.com/netbill/backend/internal/domain/shared"
	"github.com/netbill/backend/internal/domain/shared/valueobject"
	"github.com/netbill/backend/internal/infrastructure/logger"
	"github.com/netbill/backend/internal/infrastructure/telemetry"
)

// RefundService drives refunds from request to gateway processing. Every
// step that reads the refundable balance holds the payment lock.
type RefundService struct {
	deps      Deps
	cfg       Config
	processor *finance.RefundProcessor
}

// NewRefundService creates the service.
func NewRefundService(deps Deps, cfg Config, processor *finance.RefundProcessor) *RefundService {
	deps.defaults()
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = defaultLockTTL
	}
	return &RefundService{deps: deps, cfg: cfg, processor: processor}
}

// Request opens a pending refund against a collected payment.
func (s *RefundService) Request(ctx context.Context, paymentID uuid.UUID, amount valueobject.Money, reason string) (*finance.Refund, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "refund", "request")
	defer span.End()
	telemetry.SetAttributes(span, "payment_id", paymentID.String(), "amount_minor", amount.MinorUnits())

	release, err := s.deps.Locker.Acquire(ctx, lockKey(paymentID), s.cfg.LockTTL)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	defer release()

	var refund *finance.Refund
	err = s.deps.Tx.Execute(ctx, func(repos billing.TransactionalRepositories) error {
		p, err := repos.PaymentRepo().FindByID(ctx, paymentID)
		if err != nil {
			return err
		}
		if p == nil {
			return paymentNotFound(paymentID)
		}
		r, err := s.processor.Request(p, amount, reason)
		if err != nil {
			return err
		}
		number, err := repos.Sequence().Next(ctx, billing.PrefixRefund, r.CreatedAt)
		if err != nil {
			return err
		}
		if err := r.AssignNumber(number); err != nil {
			return err
		}
		if err := repos.RefundRepo().Save(ctx, r); err != nil {
			return err
		}
		refund = r
		return billing.RecordEvents(ctx, repos.OutboxRepo(), r)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	telemetry.SetOK(span)
	logger.Ctx(ctx, s.deps.Logger).Info("refund requested",
		zap.String("refund_id", refund.ID.String()),
		zap.String("number", refund.Number),
		zap.String("payment_id", paymentID.String()),
		zap.String("amount", amount.String()),
	)
	return refund, nil
}

// Approve re-checks the balance and clears the refund for processing.
func (s *RefundService) Approve(ctx context.Context, refundID uuid.UUID, approver string) (*finance.Refund, error) {
	return s.review(ctx, refundID, "approve", func(r *finance.Refund, p *finance.PaymentRecord) error {
		return s.processor.Approve(r, p, approver)
	})
}

// Reject closes a pending refund.
func (s *RefundService) Reject(ctx context.Context, refundID uuid.UUID, reason string) (*finance.Refund, error) {
	return s.review(ctx, refundID, "reject", func(r *finance.Refund, _ *finance.PaymentRecord) error {
		return s.processor.Reject(r, reason)
	})
}

func (s *RefundService) review(ctx context.Context, refundID uuid.UUID, op string, fn func(r *finance.Refund, p *finance.PaymentRecord) error) (*finance.Refund, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "refund", op)
	defer span.End()
	telemetry.SetAttribute(span, "refund_id", refundID.String())

	r, err := s.Get(ctx, refundID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	release, err := s.deps.Locker.Acquire(ctx, lockKey(r.PaymentID), s.cfg.LockTTL)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	defer release()

	var out *finance.Refund
	err = s.deps.Tx.Execute(ctx, func(repos billing.TransactionalRepositories) error {
		r, err := repos.RefundRepo().FindByID(ctx, refundID)
		if err != nil {
			return err
		}
		if r == nil {
			return refundNotFound(refundID)
		}
		p, err := repos.PaymentRepo().FindByID(ctx, r.PaymentID)
		if err != nil {
			return err
		}
		if p == nil {
			return paymentNotFound(r.PaymentID)
		}
		expected := r.Version
		if err := fn(r, p); err != nil {
			return err
		}
		if err := repos.RefundRepo().SaveWithLock(ctx, r, expected); err != nil {
			return err
		}
		out = r
		return billing.RecordEvents(ctx, repos.OutboxRepo(), r)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	telemetry.SetOK(span)
	logger.Ctx(ctx, s.deps.Logger).Info("refund reviewed",
		zap.String("refund_id", refundID.String()),
		zap.String("status", out.Status.String()),
	)
	return out, nil
}

// Process returns the money of an approved refund through the gateway. The
// balance is checked a third time under the payment lock; if it no longer
// covers the refund, the refund is stored as Failed.
func (s *RefundService) Process(ctx context.Context, refundID uuid.UUID) (*finance.Refund, finance.GatewayResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "refund", "process")
	defer span.End()
	telemetry.SetAttribute(span, "refund_id", refundID.String())
	log := logger.Ctx(ctx, s.deps.Logger).With(zap.String("refund_id", refundID.String()))

	r, err := s.Get(ctx, refundID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, finance.GatewayResult{}, err
	}
	release, err := s.deps.Locker.Acquire(ctx, lockKey(r.PaymentID), s.cfg.LockTTL)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, finance.GatewayResult{}, err
	}
	defer release()

	// Reload under the lock.
	r, err = s.Get(ctx, refundID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, finance.GatewayResult{}, err
	}
	p, err := s.deps.Payments.FindByID(ctx, r.PaymentID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, finance.GatewayResult{}, fmt.Errorf("find payment: %w", err)
	}
	if p == nil {
		return nil, finance.GatewayResult{}, paymentNotFound(r.PaymentID)
	}
	refundVersion, paymentVersion := r.Version, p.Version

	res, processErr := s.processor.Process(ctx, r, p, s.deps.Gateway)
	if r.Version == refundVersion {
		telemetry.RecordError(span, processErr)
		return r, res, processErr
	}

	err = s.deps.Tx.Execute(ctx, func(repos billing.TransactionalRepositories) error {
		if err := repos.RefundRepo().SaveWithLock(ctx, r, refundVersion); err != nil {
			return err
		}
		aggs := []shared.AggregateRoot{r}
		if p.Version != paymentVersion {
			if err := repos.PaymentRepo().SaveWithLock(ctx, p, paymentVersion); err != nil {
				return err
			}
			aggs = append(aggs, p)
		}
		return billing.RecordEvents(ctx, repos.OutboxRepo(), aggs...)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		log.Error("refund outcome not stored", zap.String("status", r.Status.String()), zap.Error(err))
		return nil, res, err
	}

	outcome := outcomeOf(r.Status == finance.RefundStatusCompleted, processErr)
	s.deps.Metrics.RecordRefund(ctx, s.deps.Gateway.Name(), outcome, r.Amount.Currency().String(), r.Amount.MinorUnits())
	telemetry.SetAttributes(span, "status", r.Status.String(), "payment_status", p.Status.String())

	if processErr != nil {
		telemetry.RecordError(span, processErr)
		log.Warn("refund failed", zap.String("reason", r.FailureReason), zap.Bool("outcome_unknown", r.OutcomeUnknown), zap.Error(processErr))
	} else {
		telemetry.SetOK(span)
		log.Info("refund processed",
			zap.String("status", r.Status.String()),
			zap.String("refunded", p.RefundedAmount.String()),
			zap.String("refundable", p.RefundableAmount.String()),
		)
	}
	return r, res, processErr
}

// Get returns a refund by id.
func (s *RefundService) Get(ctx context.Context, id uuid.UUID) (*finance.Refund, error) {
	r, err := s.deps.Refunds.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find refund: %w", err)
	}
	if r == nil {
		return nil, refundNotFound(id)
	}
	return r, nil
}

// ListByPayment returns the refunds of one payment, oldest first.
func (s *RefundService) ListByPayment(ctx context.Context, paymentID uuid.UUID) ([]finance.Refund, error) {
	return s.deps.Refunds.FindByPayment(ctx, paymentID)
}

func refundNotFound(id uuid.UUID) error {
	return shared.ErrNotFound.WithMessage(fmt.Sprintf("refund %s not found", id))
}
