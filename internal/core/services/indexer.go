package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/custodia-labs/semdex/internal/core/domain"
	"github.com/custodia-labs/semdex/internal/runtime"
)

// Maintenance defaults
const (
	DefaultStalePendingAfter = 10 * time.Minute
	DefaultRecoverBatch      = 100
	DefaultTaskRetention     = 7 * 24 * time.Hour
)

// IndexerConfig holds configuration for the Indexer
type IndexerConfig struct {
	Services *runtime.Services
	Logger   *slog.Logger

	// StalePendingAfter is how long content may sit in pending before the
	// recovery sweep enqueues a fresh task for it.
	StalePendingAfter time.Duration

	// RecoverBatch caps how many items one sweep re-enqueues.
	RecoverBatch int

	// TaskRetention is how long finished tasks are kept before purge.
	TaskRetention time.Duration
}

// Indexer turns pending content into ready content. It is called by the
// worker for each dequeued task. Every step is safe to repeat because the
// queue may deliver a task more than once.
type Indexer struct {
	services      *runtime.Services
	logger        *slog.Logger
	staleAfter    time.Duration
	recoverBatch  int
	taskRetention time.Duration
}

// NewIndexer creates an Indexer
func NewIndexer(cfg IndexerConfig) *Indexer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.StalePendingAfter <= 0 {
		cfg.StalePendingAfter = DefaultStalePendingAfter
	}
	if cfg.RecoverBatch <= 0 {
		cfg.RecoverBatch = DefaultRecoverBatch
	}
	if cfg.TaskRetention <= 0 {
		cfg.TaskRetention = DefaultTaskRetention
	}
	return &Indexer{
		services:      cfg.Services,
		logger:        logger.With("component", "indexer"),
		staleAfter:    cfg.StalePendingAfter,
		recoverBatch:  cfg.RecoverBatch,
		taskRetention: cfg.TaskRetention,
	}
}

// ProcessTask runs one embed_content task. A nil return means the task is
// finished (indexed, permanently failed, or no longer relevant) and should
// be acked. A non-nil return means the attempt failed and may be retried.
func (ix *Indexer) ProcessTask(ctx context.Context, task *domain.Task) error {
	contentID := task.ContentID()
	logger := ix.logger.With("task_id", task.ID, "content_id", contentID, "attempt", task.Attempts)
	if contentID == "" {
		logger.Warn("embed task has no content_id, discarding")
		return nil
	}

	content, err := ix.services.Contents().Get(ctx, contentID)
	if errors.Is(err, domain.ErrNotFound) {
		logger.Info("content was deleted, discarding task")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load content: %w", err)
	}
	if content.Status != domain.ContentStatusPending {
		logger.Debug("content is not pending, nothing to do", "status", content.Status)
		return nil
	}

	data, err := ix.services.Blobs().Get(ctx, content.LogicalPath)
	if errors.Is(err, domain.ErrNotFound) {
		return ix.fail(ctx, logger, content.ID, "content bytes are missing")
	}
	if err != nil {
		return ix.retryOrFail(ctx, logger, task, content.ID, fmt.Errorf("read content bytes: %w", err))
	}

	embedder := ix.services.EmbeddingService()
	vector, err := embedder.Embed(ctx, data, content.Kind)
	if err != nil {
		return ix.retryOrFail(ctx, logger, task, content.ID, fmt.Errorf("%w: %v", domain.ErrEmbeddingFailed, err))
	}

	embedding, err := domain.NewEmbedding(content.ID, vector, embedder.Model(), ix.services.Settings().Dimensions)
	if err != nil {
		return ix.fail(ctx, logger, content.ID, err.Error())
	}

	err = ix.services.Vectors().UpsertAndMarkReady(ctx, embedding)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrNotFound):
		logger.Info("content deleted during embedding, discarding vector")
		return nil
	case errors.Is(err, domain.ErrDimensionMismatch):
		return ix.fail(ctx, logger, content.ID, err.Error())
	default:
		return ix.retryOrFail(ctx, logger, task, content.ID, fmt.Errorf("write embedding: %w", err))
	}

	logger.Info("content indexed", "kind", content.Kind, "model", embedder.Model())
	return nil
}

// retryOrFail hands the error back to the queue while attempts remain and
// records a permanent failure on the last attempt.
func (ix *Indexer) retryOrFail(ctx context.Context, logger *slog.Logger, task *domain.Task, contentID string, cause error) error {
	if task.CanRetry() {
		logger.Warn("embedding attempt failed, will retry", "error", cause, "max_attempts", task.MaxAttempts)
		return cause
	}
	return ix.fail(ctx, logger, contentID, cause.Error())
}

// fail records a terminal failure. The write runs even when ctx has expired,
// since a timed-out last attempt must still leave the content failed.
func (ix *Indexer) fail(ctx context.Context, logger *slog.Logger, contentID, reason string) error {
	err := ix.services.Contents().MarkFailed(context.WithoutCancel(ctx), contentID, reason)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("mark content failed: %w", err)
	}
	logger.Error("content failed to index", "reason", reason)
	return nil
}

// RecoverPending enqueues a new embedding task for content that has been
// pending longer than the stale threshold, which covers lost enqueues and
// tasks purged before completion. Returns the number of tasks enqueued.
func (ix *Indexer) RecoverPending(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-ix.staleAfter)
	stale, err := ix.services.Contents().ClaimStalePending(ctx, cutoff, ix.recoverBatch)
	if err != nil {
		return 0, fmt.Errorf("claim stale content: %w", err)
	}
	if len(stale) == 0 {
		return 0, nil
	}

	maxAttempts := ix.services.Settings().MaxAttempts
	tasks := make([]*domain.Task, 0, len(stale))
	for _, c := range stale {
		tasks = append(tasks, domain.NewEmbedContentTask(c.OwnerID, c.ID).WithMaxAttempts(maxAttempts))
	}
	if err := ix.services.Queue().EnqueueBatch(ctx, tasks); err != nil {
		return 0, fmt.Errorf("enqueue recovery tasks: %w", err)
	}

	ix.logger.Info("re-enqueued stale pending content", "count", len(tasks))
	return len(tasks), nil
}

// PurgeTasks removes finished tasks older than the retention window
func (ix *Indexer) PurgeTasks(ctx context.Context) (int, error) {
	purged, err := ix.services.Queue().PurgeTasks(ctx, int(ix.taskRetention.Seconds()))
	if err != nil {
		return 0, fmt.Errorf("purge tasks: %w", err)
	}
	if purged > 0 {
		ix.logger.Info("purged finished tasks", "count", purged)
	}
	return purged, nil
}
