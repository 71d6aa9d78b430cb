package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Task is a unit of scheduled work.
type Task func(ctx context.Context) error

// Scheduler runs a single task on a standard five field cron expression.
// Overlapping runs are skipped.
type Scheduler struct {
	name     string
	schedule string
	task     Task
	logger   *zap.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

// NewScheduler builds a scheduler. An empty schedule yields a scheduler that never fires.
func NewScheduler(name, schedule string, task Task, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		name:     name,
		schedule: schedule,
		task:     task,
		logger:   logger,
		cron:     cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
	}
}

// Start registers the task and begins firing. It stops when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.schedule == "" {
		s.logger.Sugar().Infow("schedule not configured, scheduler idle", "scheduler", s.name)
		return nil
	}
	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", s.schedule, err)
	}
	if _, err := s.cron.AddFunc(s.schedule, func() { s.run(ctx) }); err != nil {
		return fmt.Errorf("schedule %s: %w", s.name, err)
	}
	s.cron.Start()
	s.running = true
	s.logger.Sugar().Infow("scheduler started", "scheduler", s.name, "schedule", s.schedule)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// RunOnce executes the task immediately, outside the schedule.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	return s.task(ctx)
}

func (s *Scheduler) run(ctx context.Context) {
	started := time.Now()
	if err := s.task(ctx); err != nil {
		s.logger.Sugar().Errorw("scheduled run failed", "scheduler", s.name, "error", err)
		return
	}
	s.logger.Sugar().Infow("scheduled run finished", "scheduler", s.name, "duration", time.Since(started))
}

// Stop halts the schedule and waits for a running task to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	s.running = false
	s.logger.Sugar().Infow("scheduler stopped", "scheduler", s.name)
}

// IsRunning reports whether the schedule is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns the next fire time, or nil when idle.
func (s *Scheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.cron.Entries()
	if !s.running || len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}
