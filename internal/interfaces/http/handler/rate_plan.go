package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	ratingapp "github.com/netbill/backend/internal/application/rating"
	"github.com/netbill/backend/internal/domain/rating"
	"github.com/netbill/backend/internal/domain/shared"
)

// RatePlanHandler serves /rate-plans.
type RatePlanHandler struct {
	BaseHandler
	svc *ratingapp.RatePlanService
}

// NewRatePlanHandler creates a RatePlanHandler
func NewRatePlanHandler(svc *ratingapp.RatePlanService) *RatePlanHandler {
	return &RatePlanHandler{svc: svc}
}

// Create handles POST /rate-plans.
func (h *RatePlanHandler) Create(c *gin.Context) {
	var req CreateRatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	in, err := req.toInput()
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	plan, err := h.svc.Create(c.Request.Context(), in)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, toRatePlanResponse(plan))
}

// RatePlanListQuery filters GET /rate-plans.
type RatePlanListQuery struct {
	Active *bool `form:"active"`
}

// List handles GET /rate-plans.
func (h *RatePlanHandler) List(c *gin.Context) {
	page, ok := h.listRequest(c)
	if !ok {
		return
	}
	var q RatePlanListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BindError(c, err)
		return
	}
	plans, total, err := h.svc.List(c.Request.Context(), rating.RatePlanFilter{
		Filter: shared.Filter{Page: page.Page, PageSize: page.PageSize, OrderBy: page.OrderBy, OrderDir: page.OrderDir},
		Active: q.Active,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	out := make([]RatePlanResponse, len(plans))
	for i := range plans {
		out[i] = toRatePlanResponse(&plans[i])
	}
	h.SuccessWithMeta(c, out, total, page.Page, page.PageSize)
}

// Get handles GET /rate-plans/:id.
func (h *RatePlanHandler) Get(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	plan, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toRatePlanResponse(plan))
}

// Activate handles POST /rate-plans/:id/activate.
func (h *RatePlanHandler) Activate(c *gin.Context) {
	h.toggle(c, h.svc.Activate)
}

// Deactivate handles POST /rate-plans/:id/deactivate.
func (h *RatePlanHandler) Deactivate(c *gin.Context) {
	h.toggle(c, h.svc.Deactivate)
}

func (h *RatePlanHandler) toggle(c *gin.Context, fn func(ctx context.Context, id uuid.UUID) (*rating.RatePlan, error)) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	plan, err := fn(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toRatePlanResponse(plan))
}

// Quote handles POST /rate-plans/:id/quote.
func (h *RatePlanHandler) Quote(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var req QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	usage, err := req.toSample()
	if err != nil {
		h.HandleError(c, err)
		return
	}
	var at time.Time
	if req.At != nil {
		at = *req.At
	}
	quote, err := h.svc.Quote(c.Request.Context(), id, usage, at)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toQuoteResponse(quote))
}
