package handler

import (
	"time"

	"github.com/google/uuid"

	ratingapp "github.com/netbill/backend/internal/application/rating"
	"github.com/netbill/backend/internal/domain/rating"
	"github.com/netbill/backend/internal/domain/shared/valueobject"
)

// RateRequest is one rate of a new plan. Money fields use the
// {"amount":"0.50","currency":"CNY"} shape.
type RateRequest struct {
	Kind      string             `json:"kind" binding:"required,oneof=FIXED TIERED VOLUME BANDWIDTH TIME_BASED"`
	UnitPrice *valueobject.Money `json:"unit_price"`
	Tiers     []rating.TierBound `json:"tiers"`
	ValidFrom *time.Time         `json:"valid_from"`
	ValidTo   *time.Time         `json:"valid_to"`
}

// CreateRatePlanRequest is the body of POST /rate-plans.
type CreateRatePlanRequest struct {
	Name      string        `json:"name" binding:"required,max=100"`
	Currency  string        `json:"currency" binding:"required,currency"`
	ValidFrom time.Time     `json:"valid_from" binding:"required"`
	ValidTo   *time.Time    `json:"valid_to"`
	Rates     []RateRequest `json:"rates" binding:"required,min=1,dive"`
	Activate  bool          `json:"activate"`
}

func (r CreateRatePlanRequest) toInput() (ratingapp.CreatePlanInput, error) {
	cur, err := valueobject.ParseCurrency(r.Currency)
	if err != nil {
		return ratingapp.CreatePlanInput{}, err
	}
	in := ratingapp.CreatePlanInput{
		Name:      r.Name,
		Currency:  cur,
		ValidFrom: r.ValidFrom,
		ValidTo:   r.ValidTo,
		Activate:  r.Activate,
		Rates:     make([]ratingapp.RateInput, len(r.Rates)),
	}
	for i, rr := range r.Rates {
		ri := ratingapp.RateInput{
			Kind:    rating.RateKind(rr.Kind),
			Tiers:   rr.Tiers,
			ValidTo: rr.ValidTo,
		}
		if rr.UnitPrice != nil {
			ri.UnitPrice = *rr.UnitPrice
		}
		if rr.ValidFrom != nil {
			ri.ValidFrom = *rr.ValidFrom
		}
		in.Rates[i] = ri
	}
	return in, nil
}

// UsageRequest is a metered usage sample.
type UsageRequest struct {
	BytesUp          int64 `json:"bytes_up" binding:"gte=0"`
	BytesDown        int64 `json:"bytes_down" binding:"gte=0"`
	PeakBandwidthBps int64 `json:"peak_bandwidth_bps" binding:"gte=0"`
	SessionSeconds   int64 `json:"session_seconds" binding:"gte=0"`
}

func (u UsageRequest) toSample() (rating.UsageSample, error) {
	return rating.NewUsageSample(u.BytesUp, u.BytesDown, u.PeakBandwidthBps, u.SessionSeconds)
}

// QuoteRequest is the body of POST /rate-plans/:id/quote. A missing At
// quotes at the current time.
type QuoteRequest struct {
	UsageRequest
	At *time.Time `json:"at"`
}

// RateResponse is a rate in API responses.
type RateResponse struct {
	ID        uuid.UUID          `json:"id"`
	Kind      string             `json:"kind"`
	UnitPrice valueobject.Money  `json:"unit_price"`
	Tiers     []rating.TierBound `json:"tiers,omitempty"`
	ValidFrom time.Time          `json:"valid_from"`
	ValidTo   *time.Time         `json:"valid_to,omitempty"`
}

// RatePlanResponse is a rate plan in API responses.
type RatePlanResponse struct {
	ID        uuid.UUID      `json:"id"`
	Name      string         `json:"name"`
	Currency  string         `json:"currency"`
	Active    bool           `json:"active"`
	ValidFrom time.Time      `json:"valid_from"`
	ValidTo   *time.Time     `json:"valid_to,omitempty"`
	Rates     []RateResponse `json:"rates"`
	Version   int            `json:"version"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func toRatePlanResponse(p *rating.RatePlan) RatePlanResponse {
	resp := RatePlanResponse{
		ID:        p.ID,
		Name:      p.Name,
		Currency:  p.Currency.String(),
		Active:    p.Active,
		ValidFrom: p.ValidFrom,
		ValidTo:   p.ValidTo,
		Rates:     make([]RateResponse, len(p.Rates)),
		Version:   p.Version,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
	for i, r := range p.Rates {
		resp.Rates[i] = RateResponse{
			ID:        r.ID,
			Kind:      r.Kind.String(),
			UnitPrice: r.UnitPrice,
			Tiers:     r.Tiers,
			ValidFrom: r.ValidFrom,
			ValidTo:   r.ValidTo,
		}
	}
	return resp
}

// QuoteLineResponse is one rate's contribution to a quote.
type QuoteLineResponse struct {
	RateID   uuid.UUID         `json:"rate_id"`
	Kind     string            `json:"kind"`
	Quantity int64             `json:"quantity"`
	Amount   valueobject.Money `json:"amount"`
}

// QuoteResponse is the priced breakdown of a usage sample.
type QuoteResponse struct {
	PlanID uuid.UUID           `json:"plan_id"`
	At     time.Time           `json:"at"`
	Lines  []QuoteLineResponse `json:"lines"`
	Total  valueobject.Money   `json:"total"`
}

func toQuoteResponse(q rating.Quote) QuoteResponse {
	resp := QuoteResponse{PlanID: q.PlanID, At: q.At, Total: q.Total, Lines: make([]QuoteLineResponse, len(q.Lines))}
	for i, l := range q.Lines {
		resp.Lines[i] = QuoteLineResponse{RateID: l.RateID, Kind: l.Kind.String(), Quantity: l.Quantity, Amount: l.Amount}
	}
	return resp
}
