package scheduler

import "errors"

var (
	// ErrSchedulerNotRunning is returned when triggering a stopped sweeper
	ErrSchedulerNotRunning = errors.New("scheduler is not running")

	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid scheduler configuration")

	// ErrSweepInProgress is returned when a manual run overlaps a running sweep
	ErrSweepInProgress = errors.New("overdue sweep already in progress")
)
