package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/netbill/backend/internal/domain/rating"
	"github.com/netbill/backend/internal/domain/shared/valueobject"
)

// RatePlanModel is the persistence model for the RatePlan aggregate root.
type RatePlanModel struct {
	AggregateModel
	Name      string     `gorm:"type:varchar(100);not null"`
	Currency  string     `gorm:"type:varchar(3);not null"`
	ValidFrom time.Time  `gorm:"not null"`
	ValidTo   *time.Time
	Active    bool       `gorm:"not null;default:false;index"`
}

// TableName returns the table name for GORM
func (RatePlanModel) TableName() string {
	return "rate_plans"
}

// RateModel is one pricing rule of a plan. Position keeps declaration order.
type RateModel struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	PlanID         uuid.UUID `gorm:"type:uuid;not null;index"`
	Position       int       `gorm:"not null"`
	Kind           string    `gorm:"type:varchar(20);not null"`
	UnitPriceMinor int64     `gorm:"not null"`
	Currency       string    `gorm:"type:varchar(3);not null"`
	Tiers          []byte    `gorm:"type:jsonb"`
	ValidFrom      time.Time `gorm:"not null"`
	ValidTo        *time.Time
}

// TableName returns the table name for GORM
func (RateModel) TableName() string {
	return "rates"
}

// RatePlanModelFromDomain converts a plan into its row and rate rows.
func RatePlanModelFromDomain(p *rating.RatePlan) (*RatePlanModel, []RateModel, error) {
	m := &RatePlanModel{
		Name:      p.Name,
		Currency:  p.Currency.String(),
		ValidFrom: p.ValidFrom,
		ValidTo:   p.ValidTo,
		Active:    p.Active,
	}
	m.FromDomainAggregateRoot(p.BaseAggregateRoot)

	rates := make([]RateModel, len(p.Rates))
	for i, r := range p.Rates {
		var tiers []byte
		if len(r.Tiers) > 0 {
			var err error
			if tiers, err = json.Marshal(r.Tiers); err != nil {
				return nil, nil, fmt.Errorf("encode tiers of rate %s: %w", r.ID, err)
			}
		}
		rates[i] = RateModel{
			ID:             r.ID,
			PlanID:         p.ID,
			Position:       i,
			Kind:           r.Kind.String(),
			UnitPriceMinor: r.UnitPrice.MinorUnits(),
			Currency:       r.UnitPrice.Currency().String(),
			Tiers:          tiers,
			ValidFrom:      r.ValidFrom,
			ValidTo:        r.ValidTo,
		}
	}
	return m, rates, nil
}

// ToDomain rebuilds the plan. rates must be ordered by Position.
func (m *RatePlanModel) ToDomain(rates []RateModel) (*rating.RatePlan, error) {
	p := &rating.RatePlan{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		Name:              m.Name,
		Currency:          valueobject.Currency(m.Currency),
		ValidFrom:         m.ValidFrom,
		ValidTo:           m.ValidTo,
		Active:            m.Active,
		Rates:             make([]rating.Rate, 0, len(rates)),
	}
	for _, rm := range rates {
		r := rating.Rate{
			ID:        rm.ID,
			PlanID:    rm.PlanID,
			Kind:      rating.RateKind(rm.Kind),
			UnitPrice: valueobject.NewMoney(rm.UnitPriceMinor, valueobject.Currency(rm.Currency)),
			ValidFrom: rm.ValidFrom,
			ValidTo:   rm.ValidTo,
		}
		if len(rm.Tiers) > 0 {
			if err := json.Unmarshal(rm.Tiers, &r.Tiers); err != nil {
				return nil, fmt.Errorf("decode tiers of rate %s: %w", rm.ID, err)
			}
		}
		p.Rates = append(p.Rates, r)
	}
	return p, nil
}
