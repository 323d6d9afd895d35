package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/specula/internal/common"
	"github.com/ternarybob/specula/internal/interfaces"
	"github.com/ternarybob/specula/internal/models"
)

// ErrCycleInProgress is returned by RunNow while another cycle is executing
var ErrCycleInProgress = errors.New("cycle already in progress")

// CycleRunner executes one ingestion cycle
type CycleRunner interface {
	RunCycle(ctx context.Context) (*models.CycleReport, error)
}

// Service implements SchedulerService interface
type Service struct {
	runner     CycleRunner
	cron       *cron.Cron
	logger     arbor.ILogger
	runOnStart bool

	cycleMu sync.Mutex // Held for the duration of a cycle
	mu      sync.Mutex // Protects the fields below

	running   bool
	inCycle   bool
	schedule  string
	entryID   cron.EntryID
	lastRun   *time.Time
	lastError string
	ctx       context.Context
	cancel    context.CancelFunc
}

// Option configures the scheduler
type Option func(*Service)

// WithRunOnStart runs one cycle immediately after Start
func WithRunOnStart(enabled bool) Option {
	return func(s *Service) {
		s.runOnStart = enabled
	}
}

// NewService creates a new scheduler service
func NewService(runner CycleRunner, logger arbor.ILogger, opts ...Option) interfaces.SchedulerService {
	cronLog := &cronLogger{logger: logger}
	s := &Service{
		runner: runner,
		cron: cron.New(
			cron.WithLogger(cronLog),
			cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
		),
		logger: logger,
		ctx:    context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins the scheduler with the given cron expression
func (s *Service) Start(cronExpr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}
	if err := common.ValidateSchedule(cronExpr); err != nil {
		return err
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())

	id, err := s.cron.AddFunc(cronExpr, s.runScheduledCycle)
	if err != nil {
		s.cancel()
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	s.entryID = id
	s.schedule = cronExpr
	s.cron.Start()
	s.running = true

	s.logger.Info().
		Str("cron_expr", cronExpr).
		Bool("run_on_start", s.runOnStart).
		Msg("Scheduler started")

	if s.runOnStart {
		common.SafeGo(s.logger, "runOnStart", s.runScheduledCycle)
	}

	return nil
}

// Stop halts the scheduler after any in-flight cycle completes
func (s *Service) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.cron.Remove(s.entryID)
	cancel := s.cancel
	s.mu.Unlock()

	// Wait for cron-triggered cycles, then for anything started via RunNow
	<-s.cron.Stop().Done()
	s.cycleMu.Lock()
	s.cycleMu.Unlock()

	cancel()

	s.logger.Info().Msg("Scheduler stopped")
	return nil
}

// RunNow runs one cycle synchronously unless one is already in flight
func (s *Service) RunNow(ctx context.Context) (err error) {
	if !s.cycleMu.TryLock() {
		s.logger.Debug().Msg("Cycle already in progress, skipping")
		return ErrCycleInProgress
	}
	defer s.cycleMu.Unlock()

	s.setInCycle(true)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cycle panicked: %v", r)
			s.logger.Error().
				Str("panic", fmt.Sprintf("%v", r)).
				Msg("PANIC RECOVERED in ingestion cycle")
		}

		finished := time.Now()
		s.mu.Lock()
		s.inCycle = false
		s.lastRun = &finished
		s.lastError = ""
		if err != nil {
			s.lastError = err.Error()
		}
		s.mu.Unlock()
	}()

	s.logger.Info().Msg("Ingestion cycle started")

	report, err := s.runner.RunCycle(ctx)
	if err != nil {
		s.logger.Error().
			Err(err).
			Dur("duration", time.Since(start)).
			Msg("Ingestion cycle failed")
		return err
	}

	event := s.logger.Info().Dur("duration", time.Since(start))
	if report != nil {
		event = event.
			Int("persisted", report.ItemsPersisted).
			Int("analyses", report.AnalysesUpserted)
	}
	event.Msg("Ingestion cycle completed")

	return nil
}

// runScheduledCycle is the cron entry point
func (s *Service) runScheduledCycle() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	if err := s.RunNow(ctx); err != nil && !errors.Is(err, ErrCycleInProgress) {
		s.logger.Warn().Err(err).Msg("Scheduled cycle did not complete")
	}
}

func (s *Service) setInCycle(v bool) {
	s.mu.Lock()
	s.inCycle = v
	s.mu.Unlock()
}

// IsRunning returns true if scheduler is active
func (s *Service) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Status returns a snapshot of the schedule state
func (s *Service) Status() interfaces.SchedulerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := interfaces.SchedulerStatus{
		Schedule:  s.schedule,
		Running:   s.running,
		InCycle:   s.inCycle,
		LastError: s.lastError,
	}
	if s.lastRun != nil {
		lastRun := *s.lastRun
		status.LastRun = &lastRun
	}
	if s.running {
		if next := s.cron.Entry(s.entryID).Next; !next.IsZero() {
			status.NextRun = &next
		}
	}
	return status
}
