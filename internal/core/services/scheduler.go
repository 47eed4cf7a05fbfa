package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/custodia-labs/semdex/internal/core/domain"
	"github.com/custodia-labs/semdex/internal/core/ports/driven"
)

const schedulerLockName = "scheduler"

// Scheduler enqueues the periodic maintenance tasks (pending recovery and
// task purge). It runs alongside the workers; when several instances run,
// the distributed lock makes sure only one of them enqueues per cycle.
type Scheduler struct {
	store     driven.SchedulerStore
	taskQueue driven.TaskQueue
	lock      driven.DistributedLock
	logger    *slog.Logger

	mu       sync.Mutex
	running  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
	interval time.Duration

	lockTTL      time.Duration
	lockRequired bool
}

// SchedulerConfig holds configuration for the scheduler.
type SchedulerConfig struct {
	Store        driven.SchedulerStore
	TaskQueue    driven.TaskQueue
	Lock         driven.DistributedLock // Optional
	Logger       *slog.Logger
	PollInterval time.Duration // default: 30s
	LockTTL      time.Duration // default: 60s

	// LockRequired skips the cycle when the lock backend errors.
	// Always true when a lock is configured.
	LockRequired bool
}

// NewScheduler creates a new scheduler.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	lockTTL := cfg.LockTTL
	if lockTTL <= 0 {
		lockTTL = 2 * interval
	}

	return &Scheduler{
		store:        cfg.Store,
		taskQueue:    cfg.TaskQueue,
		lock:         cfg.Lock,
		logger:       logger.With("component", "scheduler"),
		interval:     interval,
		lockTTL:      lockTTL,
		lockRequired: cfg.LockRequired || cfg.Lock != nil,
	}
}

// Seed registers the given schedules. Existing rows are left untouched so
// operators can change intervals or disable a schedule in the database.
func (s *Scheduler) Seed(ctx context.Context, schedules []*domain.ScheduledTask) error {
	for _, st := range schedules {
		if err := s.store.EnsureScheduledTask(ctx, st); err != nil {
			return fmt.Errorf("seed scheduled task %s: %w", st.ID, err)
		}
	}
	return nil
}

// Start begins the scheduler loop. It returns immediately; the loop runs
// until Stop is called or ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	s.logger.Info("scheduler starting", "poll_interval", s.interval)
	go s.run(ctx)
}

// Stop gracefully stops the scheduler and waits for the loop to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	close(s.stopCh)
	done := s.doneCh
	s.mu.Unlock()

	<-done

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce enqueues every due schedule and returns how many tasks were enqueued.
func (s *Scheduler) RunOnce(ctx context.Context) int {
	if s.lock != nil {
		acquired, err := s.lock.Acquire(ctx, schedulerLockName, s.lockTTL)
		switch {
		case err != nil:
			s.logger.Warn("failed to acquire scheduler lock", "error", err)
			if s.lockRequired {
				return 0
			}
		case !acquired:
			s.logger.Debug("scheduler lock held by another instance, skipping cycle")
			return 0
		default:
			defer func() {
				if err := s.lock.Release(ctx, schedulerLockName); err != nil {
					s.logger.Warn("failed to release scheduler lock", "error", err)
				}
			}()
		}
	}

	due, err := s.store.GetDueScheduledTasks(ctx)
	if err != nil {
		s.logger.Error("failed to get due scheduled tasks", "error", err)
		return 0
	}

	enqueued := 0
	for _, scheduled := range due {
		if !scheduled.Enabled || !scheduled.IsDue() {
			continue
		}

		// Maintenance tasks belong to no owner
		task := domain.NewTask(scheduled.Type, "", nil)
		if err := s.taskQueue.Enqueue(ctx, task); err != nil {
			s.logger.Error("failed to enqueue scheduled task", "scheduled_id", scheduled.ID, "error", err)
			_ = s.store.UpdateLastRun(ctx, scheduled.ID, err.Error())
			continue
		}
		enqueued++
		s.logger.Info("enqueued scheduled task",
			"scheduled_id", scheduled.ID, "task_id", task.ID, "task_type", task.Type)

		if err := s.store.UpdateLastRun(ctx, scheduled.ID, ""); err != nil {
			s.logger.Warn("failed to update scheduled task last run", "scheduled_id", scheduled.ID, "error", err)
		}
	}
	return enqueued
}

// ListScheduledTasks lists all registered schedules.
func (s *Scheduler) ListScheduledTasks(ctx context.Context) ([]*domain.ScheduledTask, error) {
	return s.store.ListScheduledTasks(ctx)
}
