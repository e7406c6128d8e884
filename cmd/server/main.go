// Command server runs the netbill billing API together with its background
// sweeps and the outbox relay.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	financeapp "github.com/netbill/backend/internal/application/finance"
	invoicingapp "github.com/netbill/backend/internal/application/invoicing"
	ratingapp "github.com/netbill/backend/internal/application/rating"
	"github.com/netbill/backend/internal/domain/finance"
	"github.com/netbill/backend/internal/domain/invoicing"
	"github.com/netbill/backend/internal/infrastructure/cache"
	"github.com/netbill/backend/internal/infrastructure/config"
	"github.com/netbill/backend/internal/infrastructure/event"
	"github.com/netbill/backend/internal/infrastructure/logger"
	"github.com/netbill/backend/internal/infrastructure/payment"
	"github.com/netbill/backend/internal/infrastructure/persistence"
	"github.com/netbill/backend/internal/infrastructure/scheduler"
	"github.com/netbill/backend/internal/infrastructure/storage"
	"github.com/netbill/backend/internal/infrastructure/telemetry"
	"github.com/netbill/backend/internal/interfaces/http/handler"
	"github.com/netbill/backend/internal/interfaces/http/middleware"
	"github.com/netbill/backend/internal/interfaces/http/router"
)

// sweepTimeout bounds one run of a scheduled sweep.
const sweepTimeout = 5 * time.Minute

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: time.RFC3339,
	})
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Telemetry first so every later component is instrumented.
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    cfg.App.Version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		return fmt.Errorf("initialize tracer provider: %w", err)
	}
	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    cfg.App.Version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		return fmt.Errorf("initialize meter provider: %w", err)
	}
	logProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    cfg.App.Version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		return fmt.Errorf("initialize log provider: %w", err)
	}
	minLevel, err := logger.ParseLevel(cfg.Telemetry.LogsMinLevel)
	if err != nil {
		return fmt.Errorf("telemetry.logs_min_level: %w", err)
	}
	log = logProvider.Bridge(log, minLevel)

	billingMetrics, err := telemetry.NewBillingMetrics(meterProvider.Meter("netbill/billing"))
	if err != nil {
		return fmt.Errorf("initialize billing metrics: %w", err)
	}

	log.Info("Starting netbill",
		zap.String("env", cfg.App.Env),
		zap.String("version", cfg.App.Version),
		zap.String("gateway", cfg.Billing.Gateway),
	)

	db, err := persistence.NewDatabase(&cfg.Database,
		logger.NewGormLogger(log, logger.GormLevel(cfg.Log.Level), cfg.Telemetry.DBSlowQueryThresh))
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Failed to close database", zap.Error(err))
		}
	}()
	if err := telemetry.RegisterDBTracing(db.DB, telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
	}, log); err != nil {
		return fmt.Errorf("register database tracing: %w", err)
	}

	backend, err := cache.NewFactory(cfg.Redis, cache.WithLogger(log),
		cache.WithInMemoryFallback(!cfg.IsProduction())).Create(ctx)
	if err != nil {
		return fmt.Errorf("initialize cache backend: %w", err)
	}
	defer func() {
		if err := backend.Close(); err != nil {
			log.Error("Failed to close cache backend", zap.Error(err))
		}
	}()

	gateway, err := payment.NewGateway(cfg, backend.Store, billingMetrics, log)
	if err != nil {
		return fmt.Errorf("initialize payment gateway: %w", err)
	}

	var archive invoicing.Archive = storage.NopArchive{}
	if cfg.Storage.Enabled {
		s3, err := storage.NewS3InvoiceArchive(ctx, cfg.Storage, log)
		if err != nil {
			return fmt.Errorf("initialize invoice archive: %w", err)
		}
		if err := s3.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("invoice archive bucket: %w", err)
		}
		archive = s3
	}

	// Services
	tx := persistence.NewGormTransactionScope(db.DB)
	plans := ratingapp.NewRatePlanService(persistence.NewGormRatePlanRepository(db.DB), tx, log,
		ratingapp.WithPlanCache(cfg.Billing.PlanCacheSize, cfg.Billing.PlanCacheTTL),
		ratingapp.WithMetrics(billingMetrics),
	)
	invoices := invoicingapp.NewInvoiceService(persistence.NewGormInvoiceRepository(db.DB), tx, log,
		invoicingapp.WithArchive(archive),
		invoicingapp.WithQuoter(plans),
		invoicingapp.WithMetrics(billingMetrics),
	)
	deps := financeapp.Deps{
		Payments: persistence.NewGormPaymentRecordRepository(db.DB),
		Refunds:  persistence.NewGormRefundRepository(db.DB),
		Tx:       tx,
		Gateway:  gateway,
		Locker:   backend.Locker,
		Metrics:  billingMetrics,
		Logger:   log,
	}
	financeCfg := financeapp.Config{LockTTL: cfg.Billing.RefundLockTTL}
	payments := financeapp.NewPaymentService(deps, financeCfg, finance.NewPaymentProcessor(
		finance.WithPaymentExpiry(cfg.Billing.PaymentExpiry),
		finance.WithGatewayTimeout(cfg.Billing.GatewayTimeout),
	), invoices)
	refunds := financeapp.NewRefundService(deps, financeCfg, finance.NewRefundProcessor(
		finance.WithGatewayTimeout(cfg.Billing.GatewayTimeout),
	))

	// Background work
	runner, err := scheduler.NewSweepRunner(cfg.Billing.SweepWorkers, cfg.Billing.SweepBatchSize, log,
		scheduler.WithMetrics(billingMetrics))
	if err != nil {
		return fmt.Errorf("initialize sweep runner: %w", err)
	}
	cron := scheduler.NewCronScheduler(runner, sweepTimeout, log)
	if err := cron.Schedule(cfg.Billing.ExpirySweepCron, scheduler.SweepFuncs{
		SweepName: "payment_expiry",
		DueFunc:   payments.ExpiredIDs,
		ApplyFunc: payments.Expire,
	}); err != nil {
		return fmt.Errorf("schedule payment expiry: %w", err)
	}
	if err := cron.Schedule(cfg.Billing.OverdueSweepCron, scheduler.SweepFuncs{
		SweepName: "invoice_overdue",
		DueFunc:   invoices.OverdueIDs,
		ApplyFunc: invoices.ApplyOverdue,
	}); err != nil {
		return fmt.Errorf("schedule invoice overdue: %w", err)
	}
	cron.Start(ctx)

	outboxRepo := persistence.NewGormOutboxRepository(db.DB)
	var relay *event.OutboxRelay
	if cfg.Outbox.Enabled {
		publisher, err := event.NewPublisher(cfg.Kafka, log)
		if err != nil {
			return fmt.Errorf("initialize event publisher: %w", err)
		}
		defer func() {
			if err := publisher.Close(); err != nil {
				log.Error("Failed to close event publisher", zap.Error(err))
			}
		}()
		relay = event.NewOutboxRelay(outboxRepo, publisher, event.RelayConfigFrom(cfg.Outbox), log)
		relay.Start(ctx)
	}

	// HTTP
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	cors := middleware.DefaultCORSConfig()
	if len(cfg.HTTP.CORSAllowOrigins) > 0 {
		cors.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	}
	checks := map[string]handler.Pinger{"database": db}
	if backend.Distributed() {
		checks["redis"] = backend
	}
	engine, err := router.NewEngine(router.Options{
		Logger:         log,
		ServiceName:    cfg.Telemetry.ServiceName,
		TracingEnabled: cfg.Telemetry.Enabled,
		Metrics:        middleware.NewHTTPMetrics("netbill"),
		CORS:           cors,
		MaxBodySize:    cfg.HTTP.MaxBodySize,
		RequestTimeout: cfg.HTTP.RequestTimeout,
		TrustedProxies: cfg.HTTP.TrustedProxies,
	}, router.Handlers{
		RatePlans: handler.NewRatePlanHandler(plans),
		Invoices:  handler.NewInvoiceHandler(invoices),
		Payments:  handler.NewPaymentHandler(payments, refunds),
		System:    handler.NewSystemHandler(cfg.App.Version, checks),
		Outbox:    handler.NewOutboxHandler(outboxRepo),
	})
	if err != nil {
		return fmt.Errorf("build router: %w", err)
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down server...")
	case err := <-serveErr:
		if err != nil {
			log.Error("HTTP server failed", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := cron.Stop(shutdownCtx); err != nil {
		log.Warn("Sweeps did not finish before shutdown", zap.Error(err))
	}
	if relay != nil {
		if err := relay.Stop(shutdownCtx); err != nil {
			log.Warn("Outbox relay did not stop cleanly", zap.Error(err))
		}
	}
	if err := logProvider.Shutdown(shutdownCtx); err != nil {
		log.Warn("Failed to flush log provider", zap.Error(err))
	}
	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		log.Warn("Failed to flush meter provider", zap.Error(err))
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Warn("Failed to flush tracer provider", zap.Error(err))
	}

	log.Info("Server exited")
	return nil
}
