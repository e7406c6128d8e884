package shared

import (
	"time"

	"github.com/google/uuid"
)

// AggregateRoot is what the outbox needs from an aggregate: its pending
// events.
type AggregateRoot interface {
	GetDomainEvents() []DomainEvent
	ClearDomainEvents()
}

// BaseAggregateRoot carries identity, timestamps and the optimistic-lock
// version shared by invoices, payments, refunds and rate plans. Events
// raised by a state change wait here until the saving transaction writes
// them to the outbox.
type BaseAggregateRoot struct {
	ID        uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
	Version   int
	events    []DomainEvent
}

// NewBaseAggregateRoot starts a new aggregate at version 1.
func NewBaseAggregateRoot() BaseAggregateRoot {
	now := time.Now().UTC()
	return BaseAggregateRoot{ID: uuid.New(), CreatedAt: now, UpdatedAt: now, Version: 1}
}

// RestoreAggregateRoot rebuilds the base of a persisted aggregate. Pending
// events are never persisted, so none are restored.
func RestoreAggregateRoot(id uuid.UUID, createdAt, updatedAt time.Time, version int) BaseAggregateRoot {
	return BaseAggregateRoot{ID: id, CreatedAt: createdAt, UpdatedAt: updatedAt, Version: version}
}

// Touch stamps UpdatedAt.
func (a *BaseAggregateRoot) Touch(now time.Time) { a.UpdatedAt = now }

func (a *BaseAggregateRoot) GetVersion() int   { return a.Version }
func (a *BaseAggregateRoot) IncrementVersion() { a.Version++ }

func (a *BaseAggregateRoot) AddDomainEvent(e DomainEvent)   { a.events = append(a.events, e) }
func (a *BaseAggregateRoot) GetDomainEvents() []DomainEvent { return a.events }
func (a *BaseAggregateRoot) ClearDomainEvents()             { a.events = nil }
