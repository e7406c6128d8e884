package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/netbill/backend/internal/infrastructure/telemetry"
)

// Sweep finds records that are due for a state change and applies it one
// record at a time.
type Sweep interface {
	Name() string
	// Due returns up to limit ids that need the change at now.
	Due(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
	// Apply changes one record. It reports false when the record no longer
	// needed the change (another worker or request got there first).
	Apply(ctx context.Context, id uuid.UUID) (bool, error)
}

// SweepFuncs adapts a pair of functions to Sweep.
type SweepFuncs struct {
	SweepName string
	DueFunc   func(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
	ApplyFunc func(ctx context.Context, id uuid.UUID) (bool, error)
}

func (s SweepFuncs) Name() string { return s.SweepName }

func (s SweepFuncs) Due(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	return s.DueFunc(ctx, now, limit)
}

func (s SweepFuncs) Apply(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.ApplyFunc(ctx, id)
}

// SweepResult summarizes one run.
type SweepResult struct {
	Seen    int
	Changed int
	Failed  int
}

// SweepRunner executes sweeps with bounded parallelism.
type SweepRunner struct {
	workers   int
	batchSize int
	maxRounds int
	now       func() time.Time
	metrics   *telemetry.BillingMetrics
	logger    *zap.Logger
}

// RunnerOption configures a SweepRunner.
type RunnerOption func(*SweepRunner)

// WithClock overrides the time source.
func WithClock(now func() time.Time) RunnerOption {
	return func(r *SweepRunner) { r.now = now }
}

// WithMetrics records changed counts per sweep.
func WithMetrics(m *telemetry.BillingMetrics) RunnerOption {
	return func(r *SweepRunner) { r.metrics = m }
}

// NewSweepRunner creates a runner. workers and batchSize must be positive.
func NewSweepRunner(workers, batchSize int, logger *zap.Logger, opts ...RunnerOption) (*SweepRunner, error) {
	if workers <= 0 || batchSize <= 0 {
		return nil, fmt.Errorf("%w: workers and batch size must be positive", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &SweepRunner{
		workers:   workers,
		batchSize: batchSize,
		maxRounds: 50,
		now:       func() time.Time { return time.Now().UTC() },
		logger:    logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run drains s: it fetches due ids in batches and applies them in parallel
// until a batch comes back short or a round changes nothing. Per-record
// failures are logged and counted; only a failed fetch aborts the run.
func (r *SweepRunner) Run(ctx context.Context, s Sweep) (SweepResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "sweep", s.Name())
	defer span.End()

	var total SweepResult
	for round := 0; round < r.maxRounds; round++ {
		ids, err := s.Due(ctx, r.now(), r.batchSize)
		if err != nil {
			telemetry.RecordError(span, err)
			return total, fmt.Errorf("%s: find due records: %w", s.Name(), err)
		}
		if len(ids) == 0 {
			break
		}

		changed, failed := r.applyAll(ctx, s, ids)
		total.Seen += len(ids)
		total.Changed += changed
		total.Failed += failed

		if len(ids) < r.batchSize || changed == 0 {
			break
		}
	}

	r.metrics.RecordSweep(ctx, s.Name(), total.Changed)
	telemetry.SetAttributes(span, "seen", total.Seen, "changed", total.Changed, "failed", total.Failed)
	if total.Seen > 0 {
		r.logger.Info("sweep finished",
			zap.String("sweep", s.Name()),
			zap.Int("seen", total.Seen),
			zap.Int("changed", total.Changed),
			zap.Int("failed", total.Failed),
		)
	}
	return total, ctx.Err()
}

func (r *SweepRunner) applyAll(ctx context.Context, s Sweep, ids []uuid.UUID) (int, int) {
	var changed, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for _, id := range ids {
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			ok, err := s.Apply(gctx, id)
			switch {
			case err != nil:
				failed.Add(1)
				if !errors.Is(err, context.Canceled) {
					r.logger.Warn("sweep apply failed",
						zap.String("sweep", s.Name()),
						zap.String("id", id.String()),
						zap.Error(err),
					)
				}
			case ok:
				changed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()
	return int(changed.Load()), int(failed.Load())
}
