package event

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/netbill/backend/internal/domain/shared"
	"github.com/netbill/backend/internal/infrastructure/config"
	"github.com/netbill/backend/internal/infrastructure/telemetry"
)

// RelayConfig holds configuration for the outbox relay
type RelayConfig struct {
	BatchSize        int
	PollInterval     time.Duration
	MaxRetries       int
	CleanupRetention time.Duration
	CleanupInterval  time.Duration
	PublishTimeout   time.Duration
}

// DefaultRelayConfig returns default configuration
func DefaultRelayConfig() RelayConfig {
	return RelayConfig{
		BatchSize:        100,
		PollInterval:     5 * time.Second,
		MaxRetries:       shared.DefaultMaxRetries,
		CleanupRetention: 7 * 24 * time.Hour,
		CleanupInterval:  time.Hour,
		PublishTimeout:   defaultPublishTimeout,
	}
}

// RelayConfigFrom maps the outbox section of the application config.
func RelayConfigFrom(cfg config.OutboxConfig) RelayConfig {
	rc := DefaultRelayConfig()
	if cfg.BatchSize > 0 {
		rc.BatchSize = cfg.BatchSize
	}
	if cfg.PollInterval > 0 {
		rc.PollInterval = cfg.PollInterval
	}
	if cfg.MaxRetries > 0 {
		rc.MaxRetries = cfg.MaxRetries
	}
	if cfg.CleanupRetention > 0 {
		rc.CleanupRetention = cfg.CleanupRetention
	}
	return rc
}

// OutboxRelay moves committed outbox entries to a Publisher in the
// background. Delivery is at least once: an entry is marked sent only after
// the publisher accepted it.
type OutboxRelay struct {
	repo      shared.OutboxRepository
	publisher Publisher
	config    RelayConfig
	logger    *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOutboxRelay creates a new relay
func NewOutboxRelay(repo shared.OutboxRepository, publisher Publisher, cfg RelayConfig, logger *zap.Logger) *OutboxRelay {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OutboxRelay{
		repo:      repo,
		publisher: publisher,
		config:    cfg,
		logger:    logger,
	}
}

// Start runs the publish and cleanup loops until Stop or ctx ends.
func (r *OutboxRelay) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	r.wg.Add(2)
	go r.loop(ctx, r.config.PollInterval, func(ctx context.Context) { _, _ = r.RunOnce(ctx) })
	go r.loop(ctx, r.config.CleanupInterval, r.cleanup)

	r.logger.Info("outbox relay started",
		zap.Int("batch_size", r.config.BatchSize),
		zap.Duration("poll_interval", r.config.PollInterval),
	)
}

// Stop gracefully stops the relay
func (r *OutboxRelay) Stop(ctx context.Context) error {
	if r.cancel != nil {
		r.cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("outbox relay stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *OutboxRelay) loop(ctx context.Context, every time.Duration, fn func(context.Context)) {
	defer r.wg.Done()

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}

// RunOnce publishes one batch of pending entries and one batch of entries
// due for retry. It returns how many were sent.
func (r *OutboxRelay) RunOnce(ctx context.Context) (int, error) {
	ctx, span := telemetry.StartSpan(ctx, "outbox.relay")
	defer span.End()

	pending, err := r.repo.FindPending(ctx, r.config.BatchSize)
	if err != nil {
		telemetry.RecordError(span, err)
		r.logger.Error("failed to find pending entries", zap.Error(err))
		return 0, err
	}
	sent := r.publishAll(ctx, pending)

	retryable, err := r.repo.FindRetryable(ctx, time.Now().UTC(), r.config.BatchSize)
	if err != nil {
		telemetry.RecordError(span, err)
		r.logger.Error("failed to find retryable entries", zap.Error(err))
		return sent, err
	}
	sent += r.publishAll(ctx, retryable)

	telemetry.SetAttributes(span, "sent", sent)
	return sent, nil
}

func (r *OutboxRelay) publishAll(ctx context.Context, entries []*shared.OutboxEntry) int {
	if len(entries) == 0 {
		return 0
	}
	ids := make([]uuid.UUID, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}

	claimed, err := r.repo.MarkProcessing(ctx, ids)
	if err != nil {
		r.logger.Error("failed to mark entries as processing", zap.Error(err))
		return 0
	}

	sent := 0
	for _, entry := range claimed {
		if r.publish(ctx, entry) {
			sent++
		}
	}
	return sent
}

func (r *OutboxRelay) publish(ctx context.Context, entry *shared.OutboxEntry) bool {
	if r.config.MaxRetries > 0 {
		entry.MaxRetries = r.config.MaxRetries
	}

	pubCtx, cancel := context.WithTimeout(ctx, r.config.PublishTimeout)
	err := r.publisher.Publish(pubCtx, entry)
	cancel()

	if err != nil {
		entry.MarkFailed(err.Error())
		fields := []zap.Field{
			zap.String("event_id", entry.EventID.String()),
			zap.String("event_type", entry.EventType),
			zap.String("aggregate_id", entry.AggregateID.String()),
			zap.Int("retry_count", entry.RetryCount),
			zap.Error(err),
		}
		if entry.IsDead() {
			r.logger.Warn("event moved to dead letter", fields...)
		} else {
			r.logger.Error("failed to publish event", fields...)
		}
		if updateErr := r.repo.Update(ctx, entry); updateErr != nil {
			r.logger.Error("failed to update entry", zap.Error(updateErr))
		}
		return false
	}

	entry.MarkSent()
	if err := r.repo.Update(ctx, entry); err != nil {
		// The event went out; a stale PROCESSING row is only re-sent by
		// manual recovery, and consumers dedupe on event_id.
		r.logger.Error("failed to mark entry as sent",
			zap.String("event_id", entry.EventID.String()),
			zap.Error(err),
		)
		return true
	}
	r.logger.Debug("event published",
		zap.String("event_id", entry.EventID.String()),
		zap.String("event_type", entry.EventType),
	)
	return true
}

func (r *OutboxRelay) cleanup(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-r.config.CleanupRetention)
	deleted, err := r.repo.DeleteSentBefore(ctx, cutoff)
	if err != nil {
		r.logger.Error("failed to clean up sent entries", zap.Error(err))
		return
	}
	if deleted > 0 {
		r.logger.Info("cleaned up sent outbox entries",
			zap.Int64("deleted", deleted),
			zap.Time("cutoff", cutoff),
		)
	}
}
