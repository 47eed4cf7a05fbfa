package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/custodia-labs/semdex/internal/core/domain"
	"github.com/custodia-labs/semdex/internal/core/ports/driven"
	"github.com/custodia-labs/semdex/internal/core/services"
)

// Processor runs the work behind each task type. *services.Indexer is the
// production implementation.
type Processor interface {
	ProcessTask(ctx context.Context, task *domain.Task) error
	RecoverPending(ctx context.Context) (int, error)
	PurgeTasks(ctx context.Context) (int, error)
}

var _ Processor = (*services.Indexer)(nil)

// settleTimeout bounds the Ack or Nack that records a task's outcome
const settleTimeout = 30 * time.Second

// Worker pulls tasks off the queue with a fixed number of goroutines and
// acks or nacks each one depending on the processor's result.
type Worker struct {
	taskQueue driven.TaskQueue
	processor Processor
	scheduler *services.Scheduler
	logger    *slog.Logger

	concurrency    int
	dequeueTimeout int // seconds
	taskTimeout    time.Duration

	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// WorkerConfig holds configuration for the worker.
type WorkerConfig struct {
	TaskQueue      driven.TaskQueue
	Processor      Processor
	Scheduler      *services.Scheduler // Optional
	Logger         *slog.Logger
	Concurrency    int // Number of concurrent task processors
	DequeueTimeout int // Seconds to wait for a task before checking again

	// TaskTimeout bounds one task. Zero means no bound: an embedding call
	// runs until it returns. When set it should exceed the queue's
	// visibility timeout so a live task is not redelivered.
	TaskTimeout time.Duration
}

// NewWorker creates a new task worker.
func NewWorker(cfg WorkerConfig) *Worker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	dequeueTimeout := cfg.DequeueTimeout
	if dequeueTimeout <= 0 {
		dequeueTimeout = 5
	}
	return &Worker{
		taskQueue:      cfg.TaskQueue,
		processor:      cfg.Processor,
		scheduler:      cfg.Scheduler,
		logger:         logger,
		concurrency:    concurrency,
		dequeueTimeout: dequeueTimeout,
		taskTimeout:    cfg.TaskTimeout,
	}
}

// Start launches the scheduler (if any) and the processing goroutines.
// It returns immediately.
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	w.logger.Info("worker starting",
		"concurrency", w.concurrency,
		"dequeue_timeout", w.dequeueTimeout,
	)

	if w.scheduler != nil {
		w.scheduler.Start(ctx)
	}

	var wg sync.WaitGroup
	for i := 0; i < w.concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			w.processLoop(ctx, workerID)
		}(i)
	}

	go func() {
		wg.Wait()
		close(w.doneCh)
	}()
}

// Stop signals the loops to exit and waits for in-flight tasks to finish.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	close(w.stopCh)
	done := w.doneCh
	w.mu.Unlock()

	if w.scheduler != nil {
		w.scheduler.Stop()
	}

	<-done

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("worker stopped")
}

func (w *Worker) processLoop(ctx context.Context, workerID int) {
	logger := w.logger.With("worker_id", workerID)
	logger.Debug("worker goroutine started")

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		default:
		}

		task, err := w.taskQueue.DequeueWithTimeout(ctx, w.dequeueTimeout)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			logger.Error("failed to dequeue task", "error", err)
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
			case <-w.stopCh:
			}
			continue
		}
		if task == nil {
			continue
		}

		w.processTask(ctx, task, logger)
	}
}

// processTask runs one task. Cancelling the parent context stops the
// dequeue loop but never an in-flight task, so a shutdown does not abandon a
// half-written embedding. The outcome is recorded on a context of its own so
// an expired task deadline cannot leave the task stuck in processing.
func (w *Worker) processTask(ctx context.Context, task *domain.Task, logger *slog.Logger) {
	logger = logger.With("task_id", task.ID, "task_type", task.Type, "attempt", task.Attempts)
	logger.Debug("processing task")

	taskCtx := context.WithoutCancel(ctx)
	if w.taskTimeout > 0 {
		var cancel context.CancelFunc
		taskCtx, cancel = context.WithTimeout(taskCtx, w.taskTimeout)
		defer cancel()
	}

	start := time.Now()
	err := w.dispatch(taskCtx, task)
	duration := time.Since(start)

	settleCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
	defer cancel()

	if err != nil {
		logger.Warn("task failed", "duration", duration, "error", err)
		if nackErr := w.taskQueue.Nack(settleCtx, task.ID, err.Error()); nackErr != nil {
			logger.Error("failed to nack task", "nack_error", nackErr)
		}
		return
	}

	logger.Info("task completed", "duration", duration)
	if ackErr := w.taskQueue.Ack(settleCtx, task.ID); ackErr != nil {
		logger.Error("failed to ack task", "ack_error", ackErr)
	}
}

func (w *Worker) dispatch(ctx context.Context, task *domain.Task) error {
	switch task.Type {
	case domain.TaskTypeEmbedContent:
		return w.processor.ProcessTask(ctx, task)
	case domain.TaskTypeRecoverPending:
		_, err := w.processor.RecoverPending(ctx)
		return err
	case domain.TaskTypePurgeTasks:
		_, err := w.processor.PurgeTasks(ctx)
		return err
	default:
		return fmt.Errorf("unknown task type: %s", task.Type)
	}
}

// HealthCheck fails while the worker loop is not running. Registered as a
// readiness check by the process that runs the worker.
func (w *Worker) HealthCheck(ctx context.Context) error {
	w.mu.RLock()
	running := w.running
	w.mu.RUnlock()
	if !running {
		return errors.New("worker is not running")
	}
	return nil
}
