package scheduler

import "errors"

var (
	ErrSchedulerNotRunning = errors.New("sweep scheduler is not running")
	// ErrInvalidConfig wraps bad worker counts and cron specs.
	ErrInvalidConfig = errors.New("invalid sweep configuration")
)
