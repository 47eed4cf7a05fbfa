package domain

import (
	"time"

	"github.com/google/uuid"
)

// DefaultMaxAttempts is how many times a task is tried before it is given up
const DefaultMaxAttempts = 3

// maxBackoff caps the delay between retries
const maxBackoff = 5 * time.Minute

// TaskType identifies the type of background task
type TaskType string

const (
	// TaskTypeEmbedContent computes and stores the embedding for one content item
	TaskTypeEmbedContent TaskType = "embed_content"
	// TaskTypeRecoverPending re-enqueues content stuck in pending
	TaskTypeRecoverPending TaskType = "recover_pending"
	// TaskTypePurgeTasks removes old finished tasks from the queue
	TaskTypePurgeTasks TaskType = "purge_tasks"
)

// TaskStatus represents the current state of a task
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// IsFinished returns true for completed and failed tasks
func (s TaskStatus) IsFinished() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// Task represents a background job to be processed by workers
type Task struct {
	// ID is the unique identifier for this task
	ID string `json:"id"`

	// Type identifies what kind of task this is
	Type TaskType `json:"type"`

	// OwnerID is the user the task works for. Empty for maintenance tasks.
	OwnerID string `json:"owner_id,omitempty"`

	// Payload contains task-specific data
	// For embed_content: {"content_id": "..."}
	Payload map[string]string `json:"payload"`

	// Status is the current state of the task
	Status TaskStatus `json:"status"`

	// Priority determines processing order (higher = more urgent)
	Priority int `json:"priority"`

	// Attempts is how many times this task has been dequeued
	Attempts int `json:"attempts"`

	// MaxAttempts is the maximum number of attempts before giving up
	MaxAttempts int `json:"max_attempts"`

	// Error contains the last error message
	Error string `json:"error,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// ScheduledFor is when the task becomes eligible for processing
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewTask creates a new task with default values
func NewTask(taskType TaskType, ownerID string, payload map[string]string) *Task {
	now := time.Now()
	return &Task{
		ID:           uuid.NewString(),
		Type:         taskType,
		OwnerID:      ownerID,
		Payload:      payload,
		Status:       TaskStatusPending,
		MaxAttempts:  DefaultMaxAttempts,
		CreatedAt:    now,
		UpdatedAt:    now,
		ScheduledFor: now,
	}
}

// NewEmbedContentTask creates the job that embeds a content item
func NewEmbedContentTask(ownerID, contentID string) *Task {
	return NewTask(TaskTypeEmbedContent, ownerID, map[string]string{
		"content_id": contentID,
	})
}

// WithMaxAttempts overrides the retry cap. Values below 1 are ignored.
func (t *Task) WithMaxAttempts(n int) *Task {
	if n > 0 {
		t.MaxAttempts = n
	}
	return t
}

// ContentID extracts the content_id from the payload (for embed_content tasks)
func (t *Task) ContentID() string {
	if t.Payload == nil {
		return ""
	}
	return t.Payload["content_id"]
}

// CanRetry returns true if the task can be retried
func (t *Task) CanRetry() bool {
	return t.Attempts < t.MaxAttempts
}

// IsReady returns true if the task is ready to be processed
func (t *Task) IsReady() bool {
	return t.Status == TaskStatusPending && !time.Now().Before(t.ScheduledFor)
}

// MarkProcessing updates the task to processing state
func (t *Task) MarkProcessing() {
	now := time.Now()
	t.Status = TaskStatusProcessing
	t.StartedAt = &now
	t.UpdatedAt = now
	t.Attempts++
}

// MarkCompleted updates the task to completed state
func (t *Task) MarkCompleted() {
	now := time.Now()
	t.Status = TaskStatusCompleted
	t.CompletedAt = &now
	t.UpdatedAt = now
	t.Error = ""
}

// MarkFailed updates the task to failed state
func (t *Task) MarkFailed(err string) {
	now := time.Now()
	t.Status = TaskStatusFailed
	t.UpdatedAt = now
	t.Error = err
}

// Retry resets the task for retry with exponential backoff
func (t *Task) Retry(err string) {
	now := time.Now()
	t.Status = TaskStatusPending
	t.UpdatedAt = now
	t.Error = err
	t.ScheduledFor = now.Add(RetryBackoff(t.Attempts))
}

// RetryBackoff returns the delay before the next attempt: 1s, 2s, 4s, ... capped at 5 minutes.
func RetryBackoff(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	if attempts > 16 {
		return maxBackoff
	}
	backoff := time.Duration(1<<attempts) * time.Second
	if backoff > maxBackoff {
		backoff = maxBackoff
	}
	return backoff
}

// ScheduledTask represents a recurring maintenance task
type ScheduledTask struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Type      TaskType      `json:"type"`
	Interval  time.Duration `json:"interval"`
	Enabled   bool          `json:"enabled"`
	LastRun   *time.Time    `json:"last_run,omitempty"`
	NextRun   time.Time     `json:"next_run"`
	LastError string        `json:"last_error,omitempty"`
}

// NewScheduledTask creates a new scheduled task
func NewScheduledTask(id, name string, taskType TaskType, interval time.Duration) *ScheduledTask {
	return &ScheduledTask{
		ID:       id,
		Name:     name,
		Type:     taskType,
		Interval: interval,
		Enabled:  true,
		NextRun:  time.Now().Add(interval),
	}
}

// IsDue returns true if the scheduled task should be triggered
func (s *ScheduledTask) IsDue() bool {
	return s.Enabled && !time.Now().Before(s.NextRun)
}

// UpdateNextRun calculates the next run time after execution
func (s *ScheduledTask) UpdateNextRun() {
	now := time.Now()
	s.LastRun = &now
	s.NextRun = now.Add(s.Interval)
}

// DefaultScheduledTasks returns the maintenance schedule seeded at startup
func DefaultScheduledTasks() []*ScheduledTask {
	return []*ScheduledTask{
		NewScheduledTask("recover-pending", "Recover Pending Content", TaskTypeRecoverPending, 5*time.Minute),
		NewScheduledTask("purge-tasks", "Purge Finished Tasks", TaskTypePurgeTasks, 24*time.Hour),
	}
}
