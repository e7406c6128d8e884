package router

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/netbill/backend/internal/infrastructure/logger"
	"github.com/netbill/backend/internal/interfaces/http/handler"
	"github.com/netbill/backend/internal/interfaces/http/middleware"
)

// Handlers are the HTTP handlers mounted by NewEngine. A nil Outbox skips
// the outbox stats route.
type Handlers struct {
	RatePlans *handler.RatePlanHandler
	Invoices  *handler.InvoiceHandler
	Payments  *handler.PaymentHandler
	System    *handler.SystemHandler
	Outbox    *handler.OutboxHandler
}

// Options configures the middleware chain.
type Options struct {
	Logger         *zap.Logger
	ServiceName    string
	TracingEnabled bool
	// Metrics, when set, instruments every request and serves GET /metrics.
	Metrics        *middleware.HTTPMetrics
	CORS           middleware.CORSConfig
	MaxBodySize    int64
	RequestTimeout time.Duration
	TrustedProxies []string
}

// NewEngine builds the gin engine serving the billing API.
//
// Middleware order: recovery, request id, access log, tracing, metrics,
// security headers, CORS, body limit, request timeout.
func NewEngine(opts Options, h Handlers) (*gin.Engine, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if err := middleware.SetupValidator(); err != nil {
		return nil, fmt.Errorf("setup validator: %w", err)
	}

	engine := gin.New()
	if err := engine.SetTrustedProxies(opts.TrustedProxies); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}

	engine.Use(logger.Recovery(opts.Logger))
	engine.Use(middleware.RequestID())
	engine.Use(logger.GinMiddleware(opts.Logger))
	engine.Use(middleware.Tracing(opts.ServiceName, opts.TracingEnabled)...)
	if opts.Metrics != nil {
		engine.Use(opts.Metrics.Middleware())
		engine.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))
	}
	engine.Use(middleware.SecureHeaders())
	engine.Use(middleware.CORS(opts.CORS))
	if opts.MaxBodySize > 0 {
		engine.Use(middleware.BodyLimit(opts.MaxBodySize))
	}
	engine.Use(middleware.Timeout(opts.RequestTimeout))

	if h.System != nil {
		engine.GET("/health", h.System.Health)
	}

	NewRouter(engine, WithAPIVersion("v1")).Register(BillingRoutes(h)...).Setup()
	return engine, nil
}

// BillingRoutes returns the /api/v1 route groups for the given handlers.
// Groups whose handler is nil are left out.
func BillingRoutes(h Handlers) []*DomainGroup {
	var groups []*DomainGroup

	if h.RatePlans != nil {
		plans := NewDomainGroup("rating", "/rate-plans")
		plans.POST("", h.RatePlans.Create).
			GET("", h.RatePlans.List).
			GET("/:id", h.RatePlans.Get).
			POST("/:id/activate", h.RatePlans.Activate).
			POST("/:id/deactivate", h.RatePlans.Deactivate).
			POST("/:id/quote", h.RatePlans.Quote)
		groups = append(groups, plans)
	}

	if h.Invoices != nil {
		invoices := NewDomainGroup("invoicing", "/invoices")
		invoices.POST("", h.Invoices.Create).
			GET("", h.Invoices.List).
			POST("/from-usage", h.Invoices.CreateFromUsage).
			GET("/:id", h.Invoices.Get).
			PUT("/:id/items", h.Invoices.EditItems).
			POST("/:id/send", h.Invoices.Send).
			POST("/:id/overdue", h.Invoices.MarkOverdue).
			POST("/:id/cancel", h.Invoices.Cancel).
			DELETE("/:id", h.Invoices.Delete)
		groups = append(groups, invoices)
	}

	if h.Payments != nil {
		payments := NewDomainGroup("payments", "/payments")
		payments.POST("", h.Payments.Create).
			GET("", h.Payments.List).
			GET("/:id", h.Payments.Get).
			POST("/:id/process", h.Payments.Process).
			POST("/:id/retry", h.Payments.Retry).
			POST("/:id/cancel", h.Payments.Cancel).
			GET("/:id/refunds", h.Payments.ListRefunds)

		refunds := NewDomainGroup("refunds", "/refunds")
		refunds.POST("", h.Payments.RequestRefund).
			GET("/:id", h.Payments.GetRefund).
			POST("/:id/approve", h.Payments.ApproveRefund).
			POST("/:id/reject", h.Payments.RejectRefund).
			POST("/:id/process", h.Payments.ProcessRefund)
		groups = append(groups, payments, refunds)
	}

	if h.Outbox != nil {
		system := NewDomainGroup("system", "/system")
		system.GET("/outbox", h.Outbox.Stats)
		groups = append(groups, system)
	}
	return groups
}
