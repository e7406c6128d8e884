package rating

import "github.com/netbill/backend/internal/domain/shared"

var (
	ErrPlanNotActive = shared.NewKindError(shared.KindState, "PLAN_NOT_ACTIVE", "Rate plan is not active at the requested time")
	ErrNoRates       = shared.NewDomainError("NO_RATES", "Rate plan has no rates")
	ErrInvalidTiers  = shared.NewDomainError("INVALID_TIERS", "Tiers must be contiguous, non-overlapping and sorted")
	ErrInvalidRate   = shared.NewDomainError("INVALID_RATE", "Invalid rate")
	ErrInvalidPlan   = shared.NewDomainError("INVALID_PLAN", "Invalid rate plan")
	ErrInvalidUsage  = shared.NewDomainError("INVALID_USAGE", "Usage counters must be non-negative")
	ErrCostOverflow  = shared.NewDomainError("COST_OVERFLOW", "Cost exceeds the representable amount")
)
