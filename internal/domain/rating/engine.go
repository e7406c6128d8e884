package rating

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/netbill/backend/internal/domain/shared/valueobject"
)

const (
	// BytesPerGiB is the traffic unit tier, volume prices are quoted in.
	BytesPerGiB int64 = 1 << 30
	// BandwidthBandBps is one 10 Mbps billing band (1 Mbps = 10^6 bps).
	BandwidthBandBps int64 = 10_000_000
	// SecondsPerHour is the unit time-based prices are quoted in.
	SecondsPerHour int64 = 3600
)

// QuoteLine is one rate's contribution to a cost.
type QuoteLine struct {
	RateID   uuid.UUID
	Kind     RateKind
	Quantity int64 // bytes, bands, seconds, or 1 for fixed
	Amount   valueobject.Money
}

// Quote is the per-rate breakdown of a cost.
type Quote struct {
	PlanID uuid.UUID
	At     time.Time
	Lines  []QuoteLine
	Total  valueobject.Money
}

// Engine prices usage samples against rate plans. It holds no state.
type Engine struct{}

// NewEngine returns a rate engine.
func NewEngine() *Engine { return &Engine{} }

// CalculateCost returns the total cost of usage under plan at the given time.
func (e *Engine) CalculateCost(plan *RatePlan, usage UsageSample, at time.Time) (valueobject.Money, error) {
	q, err := e.Breakdown(plan, usage, at)
	if err != nil {
		return valueobject.Money{}, err
	}
	return q.Total, nil
}

// Breakdown computes each applicable rate's contribution. Every contribution
// is rounded once to the plan currency minor unit; the total is exact integer
// addition so rate order does not affect it.
func (e *Engine) Breakdown(plan *RatePlan, usage UsageSample, at time.Time) (Quote, error) {
	if plan == nil || !plan.IsEffectiveAt(at) {
		return Quote{}, ErrPlanNotActive
	}
	if len(plan.Rates) == 0 {
		return Quote{}, ErrNoRates
	}

	quote := Quote{PlanID: plan.ID, At: at, Total: valueobject.Zero(plan.Currency)}
	for i := range plan.Rates {
		r := &plan.Rates[i]
		if !r.AppliesAt(at) {
			continue
		}
		// Plans loaded from storage skip the constructor checks.
		if err := r.Validate(plan.Currency); err != nil {
			return Quote{}, err
		}
		line, err := contribution(r, usage)
		if err != nil {
			return Quote{}, err
		}
		total, err := quote.Total.Add(line.Amount)
		if err != nil {
			return Quote{}, err
		}
		if total.MinorUnits() < quote.Total.MinorUnits() {
			return Quote{}, ErrCostOverflow
		}
		quote.Total = total
		quote.Lines = append(quote.Lines, line)
	}
	return quote, nil
}

func contribution(r *Rate, usage UsageSample) (QuoteLine, error) {
	line := QuoteLine{RateID: r.ID, Kind: r.Kind}
	switch r.Kind {
	case RateKindFixed:
		line.Quantity = 1
		line.Amount = r.UnitPrice
	case RateKindTiered:
		line.Quantity = usage.TotalBytes()
		amount, err := tieredCost(r.Tiers, usage.TotalBytes())
		if err != nil {
			return QuoteLine{}, err
		}
		line.Amount = amount
	case RateKindVolume:
		line.Quantity = usage.TotalBytes()
		amount, err := priceFor(r.UnitPrice, usage.TotalBytes(), BytesPerGiB)
		if err != nil {
			return QuoteLine{}, err
		}
		line.Amount = amount
	case RateKindBandwidth:
		bands := ceilDiv(usage.PeakBandwidthBps(), BandwidthBandBps)
		line.Quantity = bands
		amount, err := priceFor(r.UnitPrice, bands, 1)
		if err != nil {
			return QuoteLine{}, err
		}
		line.Amount = amount
	case RateKindTimeBased:
		line.Quantity = usage.SessionSeconds()
		amount, err := priceFor(r.UnitPrice, usage.SessionSeconds(), SecondsPerHour)
		if err != nil {
			return QuoteLine{}, err
		}
		line.Amount = amount
	default:
		return QuoteLine{}, ErrInvalidRate.WithMessage(fmt.Sprintf("unknown rate kind %q", r.Kind))
	}
	return line, nil
}

var maxMinorUnits = decimal.NewFromInt(math.MaxInt64)

// priceFor is price * qty / per rounded half-up, failing with ErrCostOverflow
// when the result leaves the minor-unit range.
func priceFor(price valueobject.Money, qty, per int64) (valueobject.Money, error) {
	exact := decimal.NewFromInt(price.MinorUnits()).
		Mul(decimal.NewFromInt(qty)).
		DivRound(decimal.NewFromInt(per), 0)
	if exact.GreaterThan(maxMinorUnits) {
		return valueobject.Money{}, ErrCostOverflow
	}
	return price.MulRatio(qty, per), nil
}

// tieredCost charges the traffic falling into each tier at that tier's
// per-GiB price, rounding once per tier.
func tieredCost(tiers []TierBound, total int64) (valueobject.Money, error) {
	if len(tiers) == 0 {
		return valueobject.Money{}, ErrInvalidTiers.WithMessage("tiered rate requires at least one tier")
	}
	sum := valueobject.Zero(tiers[0].Price.Currency())
	for _, t := range tiers {
		if total <= t.FromBytes {
			break
		}
		consumed := total - t.FromBytes
		if width, bounded := t.Capacity(); bounded && consumed > width {
			consumed = width
		}
		amount, err := priceFor(t.Price, consumed, BytesPerGiB)
		if err != nil {
			return valueobject.Money{}, err
		}
		next, err := sum.Add(amount)
		if err != nil {
			return valueobject.Money{}, err
		}
		if next.MinorUnits() < sum.MinorUnits() {
			return valueobject.Money{}, ErrCostOverflow
		}
		sum = next
	}
	return sum, nil
}

func ceilDiv(a, b int64) int64 {
	if a <= 0 {
		return 0
	}
	return (a-1)/b + 1
}
