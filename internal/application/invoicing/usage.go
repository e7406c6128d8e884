package invoicing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/netbill/backend/internal/domain/invoicing"
	"github.com/netbill/backend/internal/domain/rating"
	"github.com/netbill/backend/internal/domain/shared"
)

// UsageQuoter prices usage under a rate plan.
type UsageQuoter interface {
	Quote(ctx context.Context, planID uuid.UUID, usage rating.UsageSample, at time.Time) (rating.Quote, error)
}

// FromUsageInput describes an invoice for one billing period of metered usage.
type FromUsageInput struct {
	UserID      uuid.UUID
	PlanID      uuid.UUID
	Usage       rating.UsageSample
	PeriodStart time.Time
	PeriodEnd   time.Time
	DueDate     time.Time
	TaxRules    []invoicing.TaxRule
	Discounts   []invoicing.Discount
}

// CreateFromUsage quotes the usage at the start of the period and drafts an
// invoice with one item per rate. The plan must be effective at PeriodStart.
func (s *InvoiceService) CreateFromUsage(ctx context.Context, in FromUsageInput) (*invoicing.Invoice, error) {
	if s.quoter == nil {
		return nil, shared.ErrInvalidState.WithMessage("usage invoicing is not configured")
	}
	if !in.PeriodEnd.After(in.PeriodStart) {
		return nil, invoicing.ErrInvalidPeriod
	}
	q, err := s.quoter.Quote(ctx, in.PlanID, in.Usage, in.PeriodStart)
	if err != nil {
		return nil, err
	}
	if len(q.Lines) == 0 {
		return nil, invoicing.ErrNoItems.WithMessage("no rate of the plan applies to the period")
	}

	items := make([]invoicing.InvoiceItemInput, 0, len(q.Lines))
	for _, line := range q.Lines {
		items = append(items, invoicing.InvoiceItemInput{
			Description: describeLine(line),
			Quantity:    decimal.NewFromInt(1),
			UnitPrice:   line.Amount,
			PeriodStart: in.PeriodStart,
			PeriodEnd:   in.PeriodEnd,
		})
	}
	return s.Create(ctx, CreateInput{
		UserID:    in.UserID,
		Items:     items,
		TaxRules:  in.TaxRules,
		Discounts: in.Discounts,
		IssueDate: in.PeriodEnd,
		DueDate:   in.DueDate,
	})
}

func describeLine(line rating.QuoteLine) string {
	switch line.Kind {
	case rating.RateKindFixed:
		return "Subscription fee"
	case rating.RateKindTiered:
		return fmt.Sprintf("Tiered traffic %s GiB", gib(line.Quantity))
	case rating.RateKindVolume:
		return fmt.Sprintf("Traffic %s GiB", gib(line.Quantity))
	case rating.RateKindBandwidth:
		return fmt.Sprintf("Peak bandwidth %d x 10 Mbps", line.Quantity)
	case rating.RateKindTimeBased:
		hours := decimal.NewFromInt(line.Quantity).Div(decimal.NewFromInt(rating.SecondsPerHour))
		return fmt.Sprintf("Session time %s h", hours.StringFixed(2))
	}
	return string(line.Kind)
}

func gib(bytes int64) string {
	return decimal.NewFromInt(bytes).Div(decimal.NewFromInt(rating.BytesPerGiB)).StringFixed(2)
}
