package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestCronSchedulerRejectsBadSpec(t *testing.T) {
	t.Parallel()

	s := NewCronScheduler("not a cron", time.UTC, nil)
	if err := s.Start(context.Background(), func(time.Time) {}); err == nil {
		t.Fatalf("expected error for invalid expression")
	}
}

func TestCronSchedulerSkipsOverlappingTicks(t *testing.T) {
	t.Parallel()

	s := NewCronScheduler("@every 1h", time.UTC, nil)
	var runs int32
	release := make(chan struct{})
	started := make(chan struct{})

	job := func(time.Time) {
		atomic.AddInt32(&runs, 1)
		close(started)
		<-release
	}

	go s.fire(context.Background(), job)
	<-started

	s.fire(context.Background(), job)
	close(release)

	if got := atomic.LoadInt32(&runs); got != 1 {
		t.Fatalf("expected overlapping tick to be skipped, runs = %d", got)
	}
}

func TestCronSchedulerStartStop(t *testing.T) {
	t.Parallel()

	s := NewCronScheduler("@every 1h", time.UTC, nil)
	if err := s.Start(context.Background(), func(time.Time) {}); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop error: %v", err)
	}
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("second Stop error: %v", err)
	}
}
