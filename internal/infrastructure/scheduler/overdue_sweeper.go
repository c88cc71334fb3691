package scheduler

import (
	"context"
	"sync"
	"time"

	billingapp "github.com/dormitory/backend/internal/application/billing"
	"github.com/dormitory/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// checkInterval is how often the sweeper checks whether its minute has come
const checkInterval = time.Minute

// OverdueMarker flags invoices past their due date as overdue
type OverdueMarker interface {
	MarkOverdue(ctx context.Context, asOf time.Time) (*billingapp.MarkOverdueResponse, error)
}

// OverdueSweepResult describes the last completed sweep
type OverdueSweepResult struct {
	StartedAt time.Time
	Duration  time.Duration
	Marked    int
	Err       error
}

// OverdueSweeper runs MarkOverdue once a day at the configured time
type OverdueSweeper struct {
	schedule   DailySchedule
	jobTimeout time.Duration
	marker     OverdueMarker
	logger     *zap.Logger
	now        func() time.Time
	interval   time.Duration

	cancel      context.CancelFunc
	wg          sync.WaitGroup
	mu          sync.Mutex
	isRunning   bool
	sweeping    bool
	lastRunDate string
	lastResult  *OverdueSweepResult
}

// NewOverdueSweeper creates a sweeper from configuration
func NewOverdueSweeper(cfg config.SchedulerConfig, marker OverdueMarker, logger *zap.Logger) (*OverdueSweeper, error) {
	schedule, err := ParseDailySchedule(cfg.OverdueSweepSchedule)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.JobTimeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &OverdueSweeper{
		schedule:   schedule,
		jobTimeout: timeout,
		marker:     marker,
		logger:     logger.Named("overdue_sweeper"),
		now:        time.Now,
		interval:   checkInterval,
	}, nil
}

// Start begins checking the schedule in the background
func (s *OverdueSweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.runLoop(ctx)

	s.logger.Info("Overdue sweeper started",
		zap.Stringer("schedule", s.schedule),
		zap.Time("next_run_at", s.schedule.Next(s.now())),
	)
	return nil
}

// Stop cancels the loop and waits for a sweep in flight, bounded by ctx
func (s *OverdueSweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Overdue sweeper stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TriggerManualRun sweeps immediately, outside the schedule
func (s *OverdueSweeper) TriggerManualRun(ctx context.Context) (*OverdueSweepResult, error) {
	s.mu.Lock()
	running := s.isRunning
	s.mu.Unlock()
	if !running {
		return nil, ErrSchedulerNotRunning
	}
	return s.sweep(ctx)
}

// LastResult returns the most recent sweep, or nil before the first one
func (s *OverdueSweeper) LastResult() *OverdueSweepResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastResult == nil {
		return nil
	}
	r := *s.lastResult
	return &r
}

func (s *OverdueSweeper) runLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.checkAndRun(ctx)
		}
	}
}

// checkAndRun sweeps when the scheduled minute has come and today's sweep
// has not run yet
func (s *OverdueSweeper) checkAndRun(ctx context.Context) {
	now := s.now()
	if !s.schedule.Due(now) {
		return
	}
	today := now.Format("2006-01-02")

	s.mu.Lock()
	if s.lastRunDate == today {
		s.mu.Unlock()
		return
	}
	s.lastRunDate = today
	s.mu.Unlock()

	_, _ = s.sweep(ctx)
}

func (s *OverdueSweeper) sweep(ctx context.Context) (*OverdueSweepResult, error) {
	s.mu.Lock()
	if s.sweeping {
		s.mu.Unlock()
		return nil, ErrSweepInProgress
	}
	s.sweeping = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.sweeping = false
		s.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(ctx, s.jobTimeout)
	defer cancel()

	started := s.now()
	result := &OverdueSweepResult{StartedAt: started}

	resp, err := s.marker.MarkOverdue(ctx, started)
	result.Duration = s.now().Sub(started)
	if err != nil {
		result.Err = err
		s.logger.Error("Overdue sweep failed", zap.Error(err), zap.Duration("duration", result.Duration))
	} else {
		result.Marked = resp.Marked
		s.logger.Info("Overdue sweep completed",
			zap.Int("marked", resp.Marked),
			zap.Duration("duration", result.Duration),
		)
	}

	s.mu.Lock()
	s.lastResult = result
	s.mu.Unlock()

	return result, err
}
