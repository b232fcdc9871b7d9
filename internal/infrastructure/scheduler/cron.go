package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"SelfLetter/internal/ports"
)

// CronScheduler runs a job on a cron expression. A tick that fires while the
// previous run is still in progress is skipped.
type CronScheduler struct {
	spec   string
	loc    *time.Location
	logger *slog.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	running sync.Mutex
}

var _ ports.Scheduler = (*CronScheduler)(nil)

// NewCronScheduler builds a scheduler configured via cron expression string.
func NewCronScheduler(spec string, loc *time.Location, log *slog.Logger) *CronScheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &CronScheduler{spec: spec, loc: loc, logger: log}
}

// Start registers the job and starts the cron loop.
func (c *CronScheduler) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cron != nil {
		return nil
	}

	cr := cron.New(cron.WithLocation(c.loc))
	if _, err := cr.AddFunc(c.spec, func() { c.fire(ctx, job) }); err != nil {
		return fmt.Errorf("add cron job %q: %w", c.spec, err)
	}
	cr.Start()
	c.cron = cr

	if c.logger != nil {
		c.logger.Info("cron started", "schedule", c.spec, "timezone", c.loc.String())
	}
	return nil
}

func (c *CronScheduler) fire(ctx context.Context, job func(time.Time)) {
	if ctx.Err() != nil {
		return
	}
	if !c.running.TryLock() {
		if c.logger != nil {
			c.logger.Warn("previous run still in progress, skipping tick")
		}
		return
	}
	defer c.running.Unlock()

	job(time.Now().In(c.loc))
}

// Stop halts the cron loop and waits for a running job or ctx.
func (c *CronScheduler) Stop(ctx context.Context) error {
	c.mu.Lock()
	cr := c.cron
	c.cron = nil
	c.mu.Unlock()

	if cr == nil {
		return nil
	}

	select {
	case <-cr.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
