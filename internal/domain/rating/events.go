package rating

import "github.com/netbill/backend/internal/domain/shared"

const (
	EventTypeRatePlanCreated       = "RatePlanCreated"
	EventTypeRatePlanStatusChanged = "RatePlanStatusChanged"
)

// RatePlanCreatedEvent is raised when a plan is created.
type RatePlanCreatedEvent struct {
	shared.BaseDomainEvent
	Name     string `json:"name"`
	Currency string `json:"currency"`
	Rates    int    `json:"rates"`
}

func NewRatePlanCreatedEvent(p *RatePlan) *RatePlanCreatedEvent {
	return &RatePlanCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeRatePlanCreated, AggregateTypeRatePlan, p.ID),
		Name:            p.Name,
		Currency:        string(p.Currency),
		Rates:           len(p.Rates),
	}
}

// RatePlanStatusChangedEvent is raised on activate/deactivate.
type RatePlanStatusChangedEvent struct {
	shared.BaseDomainEvent
	Active bool `json:"active"`
}

func NewRatePlanStatusChangedEvent(p *RatePlan) *RatePlanStatusChangedEvent {
	return &RatePlanStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeRatePlanStatusChanged, AggregateTypeRatePlan, p.ID),
		Active:          p.Active,
	}
}
