package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	financeapp "github.com/netbill/backend/internal/application/finance"
	"github.com/netbill/backend/internal/domain/finance"
	"github.com/netbill/backend/internal/domain/shared"
)

// PaymentHandler serves /payments and /refunds.
type PaymentHandler struct {
	BaseHandler
	payments *financeapp.PaymentService
	refunds  *financeapp.RefundService
}

// NewPaymentHandler creates a PaymentHandler
func NewPaymentHandler(payments *financeapp.PaymentService, refunds *financeapp.RefundService) *PaymentHandler {
	return &PaymentHandler{payments: payments, refunds: refunds}
}

// Create handles POST /payments.
func (h *PaymentHandler) Create(c *gin.Context) {
	var req CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	p, err := h.payments.Create(c.Request.Context(), uuid.MustParse(req.InvoiceID), finance.PaymentMethod{
		Type:      finance.PaymentMethodType(req.Method.Type),
		Reference: req.Method.Reference,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, toPaymentResponse(p))
}

// PaymentListQuery filters GET /payments.
type PaymentListQuery struct {
	InvoiceID string `form:"invoice_id" binding:"omitempty,uuid"`
	UserID    string `form:"user_id" binding:"omitempty,uuid"`
	Status    string `form:"status" binding:"omitempty,oneof=PENDING COMPLETED FAILED CANCELLED REFUNDED PARTIAL_REFUNDED"`
}

// List handles GET /payments.
func (h *PaymentHandler) List(c *gin.Context) {
	page, ok := h.listRequest(c)
	if !ok {
		return
	}
	var q PaymentListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BindError(c, err)
		return
	}
	filter := finance.PaymentFilter{
		Filter: shared.Filter{Page: page.Page, PageSize: page.PageSize, OrderBy: page.OrderBy, OrderDir: page.OrderDir},
	}
	if q.InvoiceID != "" {
		id := uuid.MustParse(q.InvoiceID)
		filter.InvoiceID = &id
	}
	if q.UserID != "" {
		id := uuid.MustParse(q.UserID)
		filter.UserID = &id
	}
	if q.Status != "" {
		status := finance.PaymentStatus(q.Status)
		filter.Status = &status
	}
	payments, total, err := h.payments.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	out := make([]PaymentResponse, len(payments))
	for i := range payments {
		out[i] = toPaymentResponse(&payments[i])
	}
	h.SuccessWithMeta(c, out, total, page.Page, page.PageSize)
}

// Get handles GET /payments/:id.
func (h *PaymentHandler) Get(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	p, err := h.payments.Get(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toPaymentResponse(p))
}

// Process handles POST /payments/:id/process.
func (h *PaymentHandler) Process(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	p, res, err := h.payments.Process(c.Request.Context(), id)
	h.charged(c, p, res, err)
}

// Retry handles POST /payments/:id/retry.
func (h *PaymentHandler) Retry(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	p, res, err := h.payments.Retry(c.Request.Context(), id)
	h.charged(c, p, res, err)
}

func (h *PaymentHandler) charged(c *gin.Context, p *finance.PaymentRecord, res finance.GatewayResult, err error) {
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, ChargeResponse{Payment: toPaymentResponse(p), Gateway: res})
}

// Cancel handles POST /payments/:id/cancel.
func (h *PaymentHandler) Cancel(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var req CancelPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	p, err := h.payments.Cancel(c.Request.Context(), id, req.Reason)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toPaymentResponse(p))
}

// RequestRefund handles POST /refunds.
func (h *PaymentHandler) RequestRefund(c *gin.Context) {
	var req CreateRefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	r, err := h.refunds.Request(c.Request.Context(), uuid.MustParse(req.PaymentID), req.Amount, req.Reason)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, toRefundResponse(r))
}

// ListRefunds handles GET /payments/:id/refunds.
func (h *PaymentHandler) ListRefunds(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	refunds, err := h.refunds.ListByPayment(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	out := make([]RefundResponse, len(refunds))
	for i := range refunds {
		out[i] = toRefundResponse(&refunds[i])
	}
	h.Success(c, out)
}

// GetRefund handles GET /refunds/:id.
func (h *PaymentHandler) GetRefund(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	r, err := h.refunds.Get(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toRefundResponse(r))
}

// ApproveRefund handles POST /refunds/:id/approve.
func (h *PaymentHandler) ApproveRefund(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var req ApproveRefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	r, err := h.refunds.Approve(c.Request.Context(), id, req.Approver)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toRefundResponse(r))
}

// RejectRefund handles POST /refunds/:id/reject.
func (h *PaymentHandler) RejectRefund(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var req RejectRefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	r, err := h.refunds.Reject(c.Request.Context(), id, req.Reason)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toRefundResponse(r))
}

// ProcessRefund handles POST /refunds/:id/process.
func (h *PaymentHandler) ProcessRefund(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	r, res, err := h.refunds.Process(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, RefundProcessResponse{Refund: toRefundResponse(r), Gateway: res})
}
