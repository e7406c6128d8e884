package rating

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/netbill/backend/internal/domain/shared/valueobject"
)

// RateKind selects how a rate turns usage into cost.
type RateKind string

const (
	RateKindFixed     RateKind = "FIXED"
	RateKindTiered    RateKind = "TIERED"
	RateKindVolume    RateKind = "VOLUME"
	RateKindBandwidth RateKind = "BANDWIDTH"
	RateKindTimeBased RateKind = "TIME_BASED"
)

func (k RateKind) IsValid() bool {
	switch k {
	case RateKindFixed, RateKindTiered, RateKindVolume, RateKindBandwidth, RateKindTimeBased:
		return true
	}
	return false
}

func (k RateKind) String() string { return string(k) }

// TierBound prices the traffic between FromBytes (inclusive) and ToBytes
// (exclusive). A nil ToBytes makes the tier open-ended.
type TierBound struct {
	FromBytes int64             `json:"from_bytes"`
	ToBytes   *int64            `json:"to_bytes,omitempty"`
	Price     valueobject.Money `json:"price"`
}

// Capacity returns the tier width and false for an open-ended tier.
func (t TierBound) Capacity() (int64, bool) {
	if t.ToBytes == nil {
		return 0, false
	}
	return *t.ToBytes - t.FromBytes, true
}

// Rate is one pricing rule inside a plan.
type Rate struct {
	ID        uuid.UUID
	PlanID    uuid.UUID
	Kind      RateKind
	UnitPrice valueobject.Money
	Tiers     []TierBound
	ValidFrom time.Time
	ValidTo   *time.Time
}

// NewRate validates and creates a rate priced in currency.
func NewRate(kind RateKind, unitPrice valueobject.Money, tiers []TierBound, validFrom time.Time, validTo *time.Time) (*Rate, error) {
	r := &Rate{
		ID:        uuid.New(),
		Kind:      kind,
		UnitPrice: unitPrice,
		Tiers:     tiers,
		ValidFrom: validFrom,
		ValidTo:   validTo,
	}
	if err := r.Validate(unitPrice.Currency()); err != nil {
		return nil, err
	}
	return r, nil
}

// Validate checks the rate against the plan currency.
func (r *Rate) Validate(currency valueobject.Currency) error {
	if !r.Kind.IsValid() {
		return ErrInvalidRate.WithMessage(fmt.Sprintf("unknown rate kind %q", r.Kind))
	}
	if r.ValidTo != nil && !r.ValidTo.After(r.ValidFrom) {
		return ErrInvalidRate.WithMessage("rate valid_to must be after valid_from")
	}
	if r.Kind == RateKindTiered {
		if len(r.Tiers) == 0 {
			return ErrInvalidTiers.WithMessage("tiered rate requires at least one tier")
		}
		return ValidateTiers(r.Tiers, currency)
	}
	if len(r.Tiers) > 0 {
		return ErrInvalidRate.WithMessage(fmt.Sprintf("%s rate must not define tiers", r.Kind))
	}
	if r.UnitPrice.Currency() != currency {
		return ErrInvalidRate.WithMessage(fmt.Sprintf("rate priced in %s, plan uses %s", r.UnitPrice.Currency(), currency))
	}
	if r.UnitPrice.IsNegative() {
		return ErrInvalidRate.WithMessage("unit price must not be negative")
	}
	return nil
}

// AppliesAt reports whether at falls within [ValidFrom, ValidTo).
func (r *Rate) AppliesAt(at time.Time) bool {
	if at.Before(r.ValidFrom) {
		return false
	}
	return r.ValidTo == nil || at.Before(*r.ValidTo)
}

// ValidateTiers enforces the tier table shape: the first tier starts at zero,
// every bounded tier has from < to, adjacent tiers meet exactly
// (tiers[i].to == tiers[i+1].from), and only the last tier may be open-ended.
func ValidateTiers(tiers []TierBound, currency valueobject.Currency) error {
	if len(tiers) == 0 {
		return nil
	}
	if tiers[0].FromBytes != 0 {
		return ErrInvalidTiers.WithMessage("first tier must start at 0 bytes")
	}
	for i, t := range tiers {
		if t.Price.Currency() != currency {
			return ErrInvalidTiers.WithMessage(fmt.Sprintf("tier %d priced in %s, plan uses %s", i, t.Price.Currency(), currency))
		}
		if t.Price.IsNegative() {
			return ErrInvalidTiers.WithMessage(fmt.Sprintf("tier %d has a negative price", i))
		}
		last := i == len(tiers)-1
		if t.ToBytes == nil {
			if !last {
				return ErrInvalidTiers.WithMessage(fmt.Sprintf("tier %d is open-ended but not last", i))
			}
			continue
		}
		if t.FromBytes >= *t.ToBytes {
			return ErrInvalidTiers.WithMessage(fmt.Sprintf("tier %d: from_bytes %d must be below to_bytes %d", i, t.FromBytes, *t.ToBytes))
		}
		if !last && tiers[i+1].FromBytes != *t.ToBytes {
			return ErrInvalidTiers.WithMessage(fmt.Sprintf("tier %d ends at %d but tier %d starts at %d", i, *t.ToBytes, i+1, tiers[i+1].FromBytes))
		}
	}
	return nil
}
