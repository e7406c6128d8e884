package rating

import (
	"context"

	"github.com/google/uuid"

	"github.com/netbill/backend/internal/domain/shared"
)

// RatePlanFilter narrows plan listings.
type RatePlanFilter struct {
	shared.Filter
	Active *bool
}

// RatePlanRepository persists rate plans with their rates.
type RatePlanRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*RatePlan, error)
	FindAll(ctx context.Context, filter RatePlanFilter) ([]RatePlan, int64, error)
	Save(ctx context.Context, plan *RatePlan) error
	// SaveWithLock saves only if the stored version equals expectedVersion.
	SaveWithLock(ctx context.Context, plan *RatePlan, expectedVersion int) error
}
