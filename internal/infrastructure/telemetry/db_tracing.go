package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig controls otelgorm registration.
type DBTracingConfig struct {
	Enabled         bool
	LogFullSQL      bool // include query variables; dev only
	SlowQueryThresh time.Duration
	DBSystem        string // empty: derived from the gorm dialector
}

// DefaultDBTracingConfig returns tracing off, 200ms slow threshold.
func DefaultDBTracingConfig() DBTracingConfig {
	return DBTracingConfig{
		SlowQueryThresh: 200 * time.Millisecond,
	}
}

// dbSystem maps a gorm dialector name to the OpenTelemetry db.system value.
func dbSystem(dialector string) string {
	switch dialector {
	case "postgres":
		return "postgresql"
	case "":
		return "other_sql"
	default:
		return dialector
	}
}

type queryStartKey struct{}

// RegisterDBTracing installs the otelgorm plugin and a slow-query annotator.
func RegisterDBTracing(db *gorm.DB, cfg DBTracingConfig, logger *zap.Logger) error {
	if !cfg.Enabled {
		return nil
	}
	system := cfg.DBSystem
	if system == "" {
		system = dbSystem(db.Dialector.Name())
	}
	opts := []otelgorm.Option{otelgorm.WithDBName(system)}
	if !cfg.LogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	thresh := cfg.SlowQueryThresh
	if thresh <= 0 {
		thresh = 200 * time.Millisecond
	}
	before := func(tx *gorm.DB) {
		if tx.Statement.Context != nil {
			tx.Statement.Context = context.WithValue(tx.Statement.Context, queryStartKey{}, time.Now())
		}
	}
	after := func(tx *gorm.DB) { annotateSlowQuery(tx, thresh) }

	cb := db.Callback()
	regs := []struct {
		name string
		err  error
	}{
		{"create", cb.Create().Before("gorm:create").Register("netbill:before_create", before)},
		{"query", cb.Query().Before("gorm:query").Register("netbill:before_query", before)},
		{"update", cb.Update().Before("gorm:update").Register("netbill:before_update", before)},
		{"delete", cb.Delete().Before("gorm:delete").Register("netbill:before_delete", before)},
		{"raw", cb.Raw().Before("gorm:raw").Register("netbill:before_raw", before)},
		{"create", cb.Create().After("gorm:create").Register("netbill:after_create", after)},
		{"query", cb.Query().After("gorm:query").Register("netbill:after_query", after)},
		{"update", cb.Update().After("gorm:update").Register("netbill:after_update", after)},
		{"delete", cb.Delete().After("gorm:delete").Register("netbill:after_delete", after)},
		{"raw", cb.Raw().After("gorm:raw").Register("netbill:after_raw", after)},
	}
	for _, r := range regs {
		if r.err != nil {
			return r.err
		}
	}

	logger.Info("Database tracing enabled",
		zap.String("db_system", system),
		zap.Bool("log_full_sql", cfg.LogFullSQL),
		zap.Duration("slow_query_threshold", thresh),
	)
	return nil
}

func annotateSlowQuery(tx *gorm.DB, thresh time.Duration) {
	ctx := tx.Statement.Context
	if ctx == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	if tx.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.sql.table", tx.Statement.Table))
	}
	if tx.Error != nil && !errors.Is(tx.Error, gorm.ErrRecordNotFound) {
		RecordError(span, tx.Error)
	}
	start, ok := ctx.Value(queryStartKey{}).(time.Time)
	if !ok {
		return
	}
	if elapsed := time.Since(start); elapsed > thresh {
		span.SetAttributes(attribute.Bool("db.slow_query", true))
		span.AddEvent("slow_query_warning", trace.WithAttributes(
			attribute.Int64("duration_ms", elapsed.Milliseconds()),
			attribute.Int64("threshold_ms", thresh.Milliseconds()),
		))
	}
}
