package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/netbill/backend/internal/domain/shared"
)

// OutboxCounter counts outbox entries per status.
type OutboxCounter interface {
	CountByStatus(ctx context.Context) (map[shared.OutboxStatus]int64, error)
}

// OutboxHandler reports the event outbox backlog.
type OutboxHandler struct {
	BaseHandler
	counter OutboxCounter
}

// NewOutboxHandler creates an OutboxHandler
func NewOutboxHandler(counter OutboxCounter) *OutboxHandler {
	return &OutboxHandler{counter: counter}
}

// OutboxStatsResponse lists entry counts for every status, zeros included.
type OutboxStatsResponse struct {
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Sent       int64 `json:"sent"`
	Failed     int64 `json:"failed"`
	Dead       int64 `json:"dead"`
}

// Stats handles GET /system/outbox.
func (h *OutboxHandler) Stats(c *gin.Context) {
	counts, err := h.counter.CountByStatus(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, OutboxStatsResponse{
		Pending:    counts[shared.OutboxStatusPending],
		Processing: counts[shared.OutboxStatusProcessing],
		Sent:       counts[shared.OutboxStatusSent],
		Failed:     counts[shared.OutboxStatusFailed],
		Dead:       counts[shared.OutboxStatusDead],
	})
}
