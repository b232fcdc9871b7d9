package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"SelfLetter/internal/ports"
)

// Batcher runs one bounded batch; *Coordinator satisfies it.
type Batcher interface {
	RunBatch(ctx context.Context) (Report, error)
}

// LastRun describes the most recent scheduled batch.
type LastRun struct {
	Trigger  time.Time
	Duration time.Duration
	Report   Report
	Err      error
}

// Scheduler binds a cron-like driver to recurring inbox batches.
type Scheduler struct {
	driver  ports.Scheduler
	batcher Batcher
	logger  *slog.Logger

	mu   sync.Mutex
	last *LastRun
	runs int
}

// NewScheduler returns a helper to start/stop recurring batches.
func NewScheduler(driver ports.Scheduler, batcher Batcher, log *slog.Logger) *Scheduler {
	return &Scheduler{driver: driver, batcher: batcher, logger: log}
}

// Start registers the batch job with the driver; ctx bounds every run.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.batcher == nil {
		return nil
	}
	return s.driver.Start(ctx, func(trigger time.Time) {
		s.run(ctx, trigger)
	})
}

// Stop tears down the driver, waiting for an in-flight batch.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}
	return s.driver.Stop(ctx)
}

// Last returns the most recent run and how many runs completed.
func (s *Scheduler) Last() (LastRun, int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return LastRun{}, s.runs, false
	}
	return *s.last, s.runs, true
}

func (s *Scheduler) run(ctx context.Context, trigger time.Time) {
	started := time.Now()
	report, err := s.batcher.RunBatch(ctx)
	run := LastRun{Trigger: trigger, Duration: time.Since(started), Report: report, Err: err}

	s.mu.Lock()
	s.last = &run
	s.runs++
	s.mu.Unlock()

	if s.logger == nil {
		return
	}
	if err != nil {
		s.logger.Error("scheduled batch failed", "trigger", trigger, "error", err)
		return
	}
	s.logger.Info("scheduled batch finished",
		"trigger", trigger,
		"duration", run.Duration.Round(time.Millisecond),
		"attempted", report.Attempted,
		"done", report.Done,
	)
}
