package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	logger *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, zap.Any("details", keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, zap.Error(err), zap.Any("details", keysAndValues))
}

// CronScheduler runs sweeps on cron schedules in UTC. A sweep whose
// previous run is still going is skipped rather than stacked.
type CronScheduler struct {
	cron    *cron.Cron
	runner  *SweepRunner
	logger  *zap.Logger
	timeout time.Duration

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	running bool
}

// NewCronScheduler creates a scheduler. timeout bounds a single sweep run;
// zero means no bound.
func NewCronScheduler(runner *SweepRunner, timeout time.Duration, logger *zap.Logger) *CronScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	cl := cronLogger{logger: logger}
	return &CronScheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		runner:  runner,
		logger:  logger,
		timeout: timeout,
		ctx:     context.Background(),
	}
}

// Schedule registers s under spec, e.g. "@every 1m" or "0 1 * * *".
func (c *CronScheduler) Schedule(spec string, s Sweep) error {
	_, err := c.cron.AddFunc(spec, func() { c.run(s) })
	if err != nil {
		return fmt.Errorf("%w: schedule %s %q: %v", ErrInvalidConfig, s.Name(), spec, err)
	}
	c.logger.Info("sweep scheduled", zap.String("sweep", s.Name()), zap.String("spec", spec))
	return nil
}

func (c *CronScheduler) run(s Sweep) {
	c.mu.Lock()
	ctx := c.ctx
	c.mu.Unlock()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	if _, err := c.runner.Run(ctx, s); err != nil {
		c.logger.Error("sweep failed", zap.String("sweep", s.Name()), zap.Error(err))
	}
}

// Start begins firing schedules. Runs stop when ctx is cancelled or Stop is
// called.
func (c *CronScheduler) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return
	}
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.running = true
	c.cron.Start()
}

// Stop cancels in-flight sweeps and waits for them, or for ctx.
func (c *CronScheduler) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	c.running = false
	c.cancel()
	c.mu.Unlock()

	done := c.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Entries returns the number of registered schedules.
func (c *CronScheduler) Entries() int {
	return len(c.cron.Entries())
}
