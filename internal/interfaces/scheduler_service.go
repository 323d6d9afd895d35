package interfaces

import (
	"context"
	"time"
)

// SchedulerStatus describes the cycle schedule
type SchedulerStatus struct {
	Schedule  string
	Running   bool
	InCycle   bool
	LastRun   *time.Time
	NextRun   *time.Time
	LastError string
}

// SchedulerService triggers ingestion cycles on a cron schedule
type SchedulerService interface {
	// Start the scheduler with a cron expression
	Start(cronExpr string) error

	// Stop the scheduler, waiting for an in-flight cycle to finish
	Stop() error

	// RunNow runs one cycle synchronously unless one is already in flight
	RunNow(ctx context.Context) error

	// IsRunning returns true if scheduler is active
	IsRunning() bool

	// Status returns a snapshot of the schedule state
	Status() SchedulerStatus
}
