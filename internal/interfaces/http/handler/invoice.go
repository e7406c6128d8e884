package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	invoicingapp "github.com/netbill/backend/internal/application/invoicing"
	"github.com/netbill/backend/internal/domain/invoicing"
	"github.com/netbill/backend/internal/domain/shared"
)

// InvoiceHandler serves /invoices.
type InvoiceHandler struct {
	BaseHandler
	svc *invoicingapp.InvoiceService
}

// NewInvoiceHandler creates an InvoiceHandler
func NewInvoiceHandler(svc *invoicingapp.InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{svc: svc}
}

// Create handles POST /invoices.
func (h *InvoiceHandler) Create(c *gin.Context) {
	var req CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	inv, err := h.svc.Create(c.Request.Context(), req.toInput())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, toInvoiceResponse(inv))
}

// CreateFromUsage handles POST /invoices/from-usage.
func (h *InvoiceHandler) CreateFromUsage(c *gin.Context) {
	var req InvoiceFromUsageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	usage, err := req.Usage.toSample()
	if err != nil {
		h.HandleError(c, err)
		return
	}
	inv, err := h.svc.CreateFromUsage(c.Request.Context(), invoicingapp.FromUsageInput{
		UserID:      uuid.MustParse(req.UserID),
		PlanID:      uuid.MustParse(req.PlanID),
		Usage:       usage,
		PeriodStart: req.PeriodStart,
		PeriodEnd:   req.PeriodEnd,
		DueDate:     req.DueDate,
		TaxRules:    req.TaxRules,
		Discounts:   req.Discounts,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, toInvoiceResponse(inv))
}

// InvoiceListQuery filters GET /invoices.
type InvoiceListQuery struct {
	UserID string `form:"user_id" binding:"omitempty,uuid"`
	Status string `form:"status" binding:"omitempty,oneof=DRAFT SENT PAID OVERDUE CANCELLED"`
}

// List handles GET /invoices.
func (h *InvoiceHandler) List(c *gin.Context) {
	page, ok := h.listRequest(c)
	if !ok {
		return
	}
	var q InvoiceListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BindError(c, err)
		return
	}
	filter := invoicing.InvoiceFilter{
		Filter: shared.Filter{Page: page.Page, PageSize: page.PageSize, OrderBy: page.OrderBy, OrderDir: page.OrderDir},
	}
	if q.UserID != "" {
		id := uuid.MustParse(q.UserID)
		filter.UserID = &id
	}
	if q.Status != "" {
		status := invoicing.InvoiceStatus(q.Status)
		filter.Status = &status
	}
	invoices, total, err := h.svc.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	out := make([]InvoiceResponse, len(invoices))
	for i := range invoices {
		out[i] = toInvoiceResponse(&invoices[i])
	}
	h.SuccessWithMeta(c, out, total, page.Page, page.PageSize)
}

// Get handles GET /invoices/:id.
func (h *InvoiceHandler) Get(c *gin.Context) {
	h.apply(c, h.svc.Get)
}

// EditItems handles PUT /invoices/:id/items.
func (h *InvoiceHandler) EditItems(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var req EditItemsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	inv, err := h.svc.EditItems(c.Request.Context(), id, toItemInputs(req.Items))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toInvoiceResponse(inv))
}

// Send handles POST /invoices/:id/send.
func (h *InvoiceHandler) Send(c *gin.Context) {
	h.apply(c, h.svc.Send)
}

// MarkOverdue handles POST /invoices/:id/overdue.
func (h *InvoiceHandler) MarkOverdue(c *gin.Context) {
	h.apply(c, h.svc.MarkOverdue)
}

// Cancel handles POST /invoices/:id/cancel.
func (h *InvoiceHandler) Cancel(c *gin.Context) {
	h.apply(c, h.svc.Cancel)
}

// Delete handles DELETE /invoices/:id. Only drafts can be deleted.
func (h *InvoiceHandler) Delete(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

func (h *InvoiceHandler) apply(c *gin.Context, fn func(ctx context.Context, id uuid.UUID) (*invoicing.Invoice, error)) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	inv, err := fn(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toInvoiceResponse(inv))
}
