package handler

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	invoicingapp "github.com/netbill/backend/internal/application/invoicing"
	"github.com/netbill/backend/internal/domain/invoicing"
	"github.com/netbill/backend/internal/domain/shared/valueobject"
)

// InvoiceItemRequest is one line of an invoice. Quantity is a decimal
// string so fractional units survive JSON.
type InvoiceItemRequest struct {
	Description string            `json:"description" binding:"required,max=500"`
	Quantity    decimal.Decimal   `json:"quantity"`
	UnitPrice   valueobject.Money `json:"unit_price"`
	PeriodStart *time.Time        `json:"period_start"`
	PeriodEnd   *time.Time        `json:"period_end"`
}

func toItemInputs(reqs []InvoiceItemRequest) []invoicing.InvoiceItemInput {
	out := make([]invoicing.InvoiceItemInput, len(reqs))
	for i, r := range reqs {
		in := invoicing.InvoiceItemInput{
			Description: r.Description,
			Quantity:    r.Quantity,
			UnitPrice:   r.UnitPrice,
		}
		if r.PeriodStart != nil {
			in.PeriodStart = *r.PeriodStart
		}
		if r.PeriodEnd != nil {
			in.PeriodEnd = *r.PeriodEnd
		}
		out[i] = in
	}
	return out
}

// CreateInvoiceRequest is the body of POST /invoices.
type CreateInvoiceRequest struct {
	UserID    string               `json:"user_id" binding:"required,uuid"`
	Items     []InvoiceItemRequest `json:"items" binding:"required,min=1,dive"`
	TaxRules  []invoicing.TaxRule  `json:"tax_rules"`
	Discounts []invoicing.Discount `json:"discounts"`
	IssueDate *time.Time           `json:"issue_date"`
	DueDate   time.Time            `json:"due_date" binding:"required"`
}

func (r CreateInvoiceRequest) toInput() invoicingapp.CreateInput {
	in := invoicingapp.CreateInput{
		UserID:    uuid.MustParse(r.UserID),
		Items:     toItemInputs(r.Items),
		TaxRules:  r.TaxRules,
		Discounts: r.Discounts,
		DueDate:   r.DueDate,
	}
	if r.IssueDate != nil {
		in.IssueDate = *r.IssueDate
	}
	return in
}

// InvoiceFromUsageRequest is the body of POST /invoices/from-usage.
type InvoiceFromUsageRequest struct {
	UserID      string               `json:"user_id" binding:"required,uuid"`
	PlanID      string               `json:"plan_id" binding:"required,uuid"`
	Usage       UsageRequest         `json:"usage"`
	PeriodStart time.Time            `json:"period_start" binding:"required"`
	PeriodEnd   time.Time            `json:"period_end" binding:"required,gtfield=PeriodStart"`
	DueDate     time.Time            `json:"due_date" binding:"required"`
	TaxRules    []invoicing.TaxRule  `json:"tax_rules"`
	Discounts   []invoicing.Discount `json:"discounts"`
}

// EditItemsRequest is the body of PUT /invoices/:id/items.
type EditItemsRequest struct {
	Items []InvoiceItemRequest `json:"items" binding:"required,min=1,dive"`
}

// InvoiceItemResponse is an invoice line in API responses.
type InvoiceItemResponse struct {
	ID          uuid.UUID         `json:"id"`
	Description string            `json:"description"`
	Quantity    string            `json:"quantity"`
	UnitPrice   valueobject.Money `json:"unit_price"`
	Total       valueobject.Money `json:"total"`
	PeriodStart *time.Time        `json:"period_start,omitempty"`
	PeriodEnd   *time.Time        `json:"period_end,omitempty"`
}

// InvoiceResponse is an invoice in API responses.
type InvoiceResponse struct {
	ID             uuid.UUID             `json:"id"`
	Number         string                `json:"number"`
	UserID         uuid.UUID             `json:"user_id"`
	Currency       string                `json:"currency"`
	Status         string                `json:"status"`
	IssueDate      time.Time             `json:"issue_date"`
	DueDate        time.Time             `json:"due_date"`
	PaidDate       *time.Time            `json:"paid_date,omitempty"`
	Items          []InvoiceItemResponse `json:"items"`
	TaxRules       []invoicing.TaxRule   `json:"tax_rules,omitempty"`
	Discounts      []invoicing.Discount  `json:"discounts,omitempty"`
	Subtotal       valueobject.Money     `json:"subtotal"`
	TaxAmount      valueobject.Money     `json:"tax_amount"`
	DiscountAmount valueobject.Money     `json:"discount_amount"`
	Total          valueobject.Money     `json:"total"`
	Version        int                   `json:"version"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
}

func toInvoiceResponse(inv *invoicing.Invoice) InvoiceResponse {
	resp := InvoiceResponse{
		ID:             inv.ID,
		Number:         inv.Number,
		UserID:         inv.UserID,
		Currency:       inv.Currency.String(),
		Status:         string(inv.Status),
		IssueDate:      inv.IssueDate,
		DueDate:        inv.DueDate,
		PaidDate:       inv.PaidDate,
		Items:          make([]InvoiceItemResponse, len(inv.Items)),
		TaxRules:       inv.TaxRules,
		Discounts:      inv.Discounts,
		Subtotal:       inv.Subtotal,
		TaxAmount:      inv.TaxAmount,
		DiscountAmount: inv.DiscountAmount,
		Total:          inv.Total,
		Version:        inv.Version,
		CreatedAt:      inv.CreatedAt,
		UpdatedAt:      inv.UpdatedAt,
	}
	for i, it := range inv.Items {
		item := InvoiceItemResponse{
			ID:          it.ID,
			Description: it.Description,
			Quantity:    it.Quantity.String(),
			UnitPrice:   it.UnitPrice,
			Total:       it.Total,
		}
		if !it.PeriodStart.IsZero() {
			start := it.PeriodStart
			item.PeriodStart = &start
		}
		if !it.PeriodEnd.IsZero() {
			end := it.PeriodEnd
			item.PeriodEnd = &end
		}
		resp.Items[i] = item
	}
	return resp
}
