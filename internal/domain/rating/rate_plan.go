package rating

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/netbill/backend/internal/domain/shared"
	"github.com/netbill/backend/internal/domain/shared/valueobject"
)

// AggregateTypeRatePlan is the aggregate type name used in events.
const AggregateTypeRatePlan = "RatePlan"

// RatePlan owns an ordered list of rates; the cost of a usage sample is the
// sum of every applicable rate's contribution.
type RatePlan struct {
	shared.BaseAggregateRoot
	Name      string
	Currency  valueobject.Currency
	Rates     []Rate
	ValidFrom time.Time
	ValidTo   *time.Time
	Active    bool
}

// NewRatePlan creates an inactive plan after validating every rate.
func NewRatePlan(name string, currency valueobject.Currency, validFrom time.Time, validTo *time.Time, rates []Rate) (*RatePlan, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidPlan.WithMessage("plan name cannot be empty")
	}
	if len(name) > 100 {
		return nil, ErrInvalidPlan.WithMessage("plan name cannot exceed 100 characters")
	}
	if !currency.IsValid() {
		return nil, ErrInvalidPlan.WithMessage(fmt.Sprintf("unknown currency %q", currency))
	}
	if validTo != nil && !validTo.After(validFrom) {
		return nil, ErrInvalidPlan.WithMessage("plan valid_to must be after valid_from")
	}

	plan := &RatePlan{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Name:              name,
		Currency:          currency,
		ValidFrom:         validFrom,
		ValidTo:           validTo,
	}
	for i := range rates {
		if err := plan.AddRate(rates[i]); err != nil {
			return nil, err
		}
	}
	plan.AddDomainEvent(NewRatePlanCreatedEvent(plan))
	return plan, nil
}

// AddRate validates a rate against the plan currency and appends it.
func (p *RatePlan) AddRate(r Rate) error {
	if err := r.Validate(p.Currency); err != nil {
		return err
	}
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	r.PlanID = p.ID
	p.Rates = append(p.Rates, r)
	p.Touch(time.Now().UTC())
	return nil
}

// Activate makes the plan usable for cost calculation.
func (p *RatePlan) Activate() error {
	if p.Active {
		return shared.ErrInvalidState.WithMessage("rate plan is already active")
	}
	if len(p.Rates) == 0 {
		return ErrNoRates
	}
	p.Active = true
	p.Touch(time.Now().UTC())
	p.IncrementVersion()
	p.AddDomainEvent(NewRatePlanStatusChangedEvent(p))
	return nil
}

// Deactivate stops the plan from pricing new usage.
func (p *RatePlan) Deactivate() error {
	if !p.Active {
		return shared.ErrInvalidState.WithMessage("rate plan is already inactive")
	}
	p.Active = false
	p.Touch(time.Now().UTC())
	p.IncrementVersion()
	p.AddDomainEvent(NewRatePlanStatusChangedEvent(p))
	return nil
}

// IsEffectiveAt reports whether the plan is active and at ∈ [ValidFrom, ValidTo).
func (p *RatePlan) IsEffectiveAt(at time.Time) bool {
	if !p.Active || at.Before(p.ValidFrom) {
		return false
	}
	return p.ValidTo == nil || at.Before(*p.ValidTo)
}
