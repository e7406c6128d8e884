// Package rating manages rate plans and prices usage against them.
package rating

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"github.com/netbill/backend/internal/application/billing"
	"github.com/netbill/backend/internal/domain/rating"
	"github.com/netbill/backend/internal/domain/shared"
	"github.com/netbill/backend/internal/domain/shared/valueobject"
	"github.com/netbill/backend/internal/infrastructure/logger"
	"github.com/netbill/backend/internal/infrastructure/telemetry"
)

// RateInput describes one rate of a new plan.
type RateInput struct {
	Kind      rating.RateKind
	UnitPrice valueobject.Money
	Tiers     []rating.TierBound
	ValidFrom time.Time
	ValidTo   *time.Time
}

// CreatePlanInput describes a new rate plan.
type CreatePlanInput struct {
	Name      string
	Currency  valueobject.Currency
	ValidFrom time.Time
	ValidTo   *time.Time
	Rates     []RateInput
	Activate  bool
}

// RatePlanService creates, lists and toggles rate plans, and quotes usage.
// Plans read for quoting are served from an expirable LRU; every write
// evicts the plan it touched.
type RatePlanService struct {
	repo    rating.RatePlanRepository
	tx      billing.TransactionScope
	engine  *rating.Engine
	cache   *lru.LRU[uuid.UUID, *rating.RatePlan]
	metrics *telemetry.BillingMetrics
	logger  *zap.Logger
	now     func() time.Time
}

// ServiceOption configures a RatePlanService.
type ServiceOption func(*RatePlanService)

// WithPlanCache sizes the plan cache. size <= 0 disables it.
func WithPlanCache(size int, ttl time.Duration) ServiceOption {
	return func(s *RatePlanService) {
		if size <= 0 {
			s.cache = nil
			return
		}
		s.cache = lru.NewLRU[uuid.UUID, *rating.RatePlan](size, nil, ttl)
	}
}

// WithMetrics records quotes.
func WithMetrics(m *telemetry.BillingMetrics) ServiceOption {
	return func(s *RatePlanService) { s.metrics = m }
}

// WithClock overrides the time used for quotes without an explicit time.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *RatePlanService) { s.now = now }
}

// NewRatePlanService creates the service. The plan cache defaults to 256
// entries for five minutes.
func NewRatePlanService(repo rating.RatePlanRepository, tx billing.TransactionScope, log *zap.Logger, opts ...ServiceOption) *RatePlanService {
	if log == nil {
		log = zap.NewNop()
	}
	s := &RatePlanService{
		repo:   repo,
		tx:     tx,
		engine: rating.NewEngine(),
		logger: log,
		now:    func() time.Time { return time.Now().UTC() },
	}
	WithPlanCache(256, 5*time.Minute)(s)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates and stores a plan, optionally activating it at once.
func (s *RatePlanService) Create(ctx context.Context, in CreatePlanInput) (*rating.RatePlan, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "rating", "create_plan")
	defer span.End()

	rates := make([]rating.Rate, 0, len(in.Rates))
	for i, ri := range in.Rates {
		from := ri.ValidFrom
		if from.IsZero() {
			from = in.ValidFrom
		}
		price := ri.UnitPrice
		if price.Currency() == "" {
			price = valueobject.Zero(in.Currency)
		}
		r, err := rating.NewRate(ri.Kind, price, ri.Tiers, from, ri.ValidTo)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, fmt.Errorf("rate %d: %w", i, err)
		}
		rates = append(rates, *r)
	}
	plan, err := rating.NewRatePlan(in.Name, in.Currency, in.ValidFrom, in.ValidTo, rates)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if in.Activate {
		if err := plan.Activate(); err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
	}

	err = s.tx.Execute(ctx, func(repos billing.TransactionalRepositories) error {
		if err := repos.RatePlanRepo().Save(ctx, plan); err != nil {
			return err
		}
		return billing.RecordEvents(ctx, repos.OutboxRepo(), plan)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("save rate plan: %w", err)
	}

	telemetry.SetAttributes(span, "plan_id", plan.ID.String(), "rates", len(plan.Rates))
	telemetry.SetOK(span)
	logger.Ctx(ctx, s.logger).Info("rate plan created",
		zap.String("plan_id", plan.ID.String()),
		zap.String("name", plan.Name),
		zap.Bool("active", plan.Active),
	)
	return plan, nil
}

// Get returns a plan, from the cache when possible.
func (s *RatePlanService) Get(ctx context.Context, id uuid.UUID) (*rating.RatePlan, error) {
	if s.cache != nil {
		if plan, ok := s.cache.Get(id); ok {
			return plan, nil
		}
	}
	plan, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find rate plan: %w", err)
	}
	if plan == nil {
		return nil, shared.ErrNotFound.WithMessage(fmt.Sprintf("rate plan %s not found", id))
	}
	if s.cache != nil {
		s.cache.Add(id, plan)
	}
	return plan, nil
}

// List pages through plans.
func (s *RatePlanService) List(ctx context.Context, filter rating.RatePlanFilter) ([]rating.RatePlan, int64, error) {
	return s.repo.FindAll(ctx, filter)
}

// Activate makes a plan available for pricing.
func (s *RatePlanService) Activate(ctx context.Context, id uuid.UUID) (*rating.RatePlan, error) {
	return s.toggle(ctx, id, "activate_plan", (*rating.RatePlan).Activate)
}

// Deactivate stops a plan from pricing new usage.
func (s *RatePlanService) Deactivate(ctx context.Context, id uuid.UUID) (*rating.RatePlan, error) {
	return s.toggle(ctx, id, "deactivate_plan", (*rating.RatePlan).Deactivate)
}

func (s *RatePlanService) toggle(ctx context.Context, id uuid.UUID, op string, apply func(*rating.RatePlan) error) (*rating.RatePlan, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "rating", op)
	defer span.End()
	telemetry.SetAttribute(span, "plan_id", id.String())

	var plan *rating.RatePlan
	err := s.tx.Execute(ctx, func(repos billing.TransactionalRepositories) error {
		p, err := repos.RatePlanRepo().FindByID(ctx, id)
		if err != nil {
			return err
		}
		if p == nil {
			return shared.ErrNotFound.WithMessage(fmt.Sprintf("rate plan %s not found", id))
		}
		expected := p.Version
		if err := apply(p); err != nil {
			return err
		}
		if err := repos.RatePlanRepo().SaveWithLock(ctx, p, expected); err != nil {
			return err
		}
		plan = p
		return billing.RecordEvents(ctx, repos.OutboxRepo(), p)
	})
	if s.cache != nil {
		s.cache.Remove(id)
	}
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetOK(span)
	logger.Ctx(ctx, s.logger).Info("rate plan updated",
		zap.String("plan_id", id.String()),
		zap.Bool("active", plan.Active),
	)
	return plan, nil
}

// Quote prices usage under the plan at the given time; a zero time means now.
func (s *RatePlanService) Quote(ctx context.Context, id uuid.UUID, usage rating.UsageSample, at time.Time) (rating.Quote, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "rating", "quote")
	defer span.End()

	if at.IsZero() {
		at = s.now()
	}
	plan, err := s.Get(ctx, id)
	if err != nil {
		telemetry.RecordError(span, err)
		return rating.Quote{}, err
	}
	q, err := s.engine.Breakdown(plan, usage, at)
	if err != nil {
		telemetry.RecordError(span, err)
		return rating.Quote{}, err
	}
	s.metrics.RecordQuote(ctx)
	telemetry.SetAttributes(span,
		"plan_id", id.String(),
		"total_minor", q.Total.MinorUnits(),
		"lines", len(q.Lines),
	)
	telemetry.SetOK(span)
	return q, nil
}
