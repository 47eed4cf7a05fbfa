package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/semdex/internal/core/domain"
	"github.com/custodia-labs/semdex/internal/core/ports/driven"
)

const (
	taskStream     = "semdex:tasks"
	taskGroup      = "semdex:workers"
	scheduledTasks = "semdex:scheduled"

	taskKeyPrefix  = "semdex:task:"
	ownerKeyPrefix = "semdex:owner:"
	msgSuffix      = ":msg"

	consumerPrefix = "worker-"

	// claimTimeout is how long a delivered message may stay unacked before
	// another consumer takes it over
	claimTimeout = 5 * time.Minute

	// taskTTL bounds how long a task record outlives purging
	taskTTL = 30 * 24 * time.Hour
)

// Verify interface compliance
var _ driven.TaskQueue = (*Queue)(nil)

// Queue implements TaskQueue on Redis Streams with one consumer group.
// Task records live in string keys; the stream only carries IDs. Delayed
// tasks wait in a sorted set scored by due time in milliseconds and are
// moved onto the stream on the next dequeue after they fall due. Each owner
// has a sorted set of task IDs by creation time for listing.
type Queue struct {
	client       *redis.Client
	consumerName string
	now          func() time.Time
}

// NewQueue creates a new Redis-backed task queue. consumerName should be
// unique per worker process; an empty name gets a generated one.
func NewQueue(ctx context.Context, client *redis.Client, consumerName string) (*Queue, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if consumerName == "" {
		consumerName = fmt.Sprintf("%s%d", consumerPrefix, time.Now().UnixNano())
	}

	q := &Queue{
		client:       client,
		consumerName: consumerName,
		now:          time.Now,
	}

	err := q.client.XGroupCreateMkStream(ctx, taskStream, taskGroup, "0").Err()
	if err != nil && !isGroupExistsError(err) {
		return nil, fmt.Errorf("create consumer group: %w", err)
	}
	return q, nil
}

// Enqueue adds a task to the queue for processing.
func (q *Queue) Enqueue(ctx context.Context, task *domain.Task) error {
	if task == nil {
		return errors.New("task is required")
	}
	return q.EnqueueBatch(ctx, []*domain.Task{task})
}

// EnqueueBatch adds multiple tasks in one MULTI/EXEC transaction.
func (q *Queue) EnqueueBatch(ctx context.Context, tasks []*domain.Task) error {
	if len(tasks) == 0 {
		return nil
	}

	now := q.now()
	_, err := q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, task := range tasks {
			if task == nil {
				continue
			}
			data, err := json.Marshal(task)
			if err != nil {
				return fmt.Errorf("marshal task %s: %w", task.ID, err)
			}

			pipe.Set(ctx, taskKeyPrefix+task.ID, data, taskTTL)
			if task.OwnerID != "" {
				pipe.ZAdd(ctx, ownerKey(task.OwnerID), redis.Z{
					Score:  float64(task.CreatedAt.UnixNano()),
					Member: task.ID,
				})
			}

			if task.ScheduledFor.After(now) {
				pipe.ZAdd(ctx, scheduledTasks, redis.Z{
					Score:  float64(task.ScheduledFor.UnixMilli()),
					Member: task.ID,
				})
			} else {
				pipe.XAdd(ctx, streamEntry(task))
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("enqueue: %w", err)
	}
	return nil
}

// Dequeue returns the next available task without blocking.
func (q *Queue) Dequeue(ctx context.Context) (*domain.Task, error) {
	return q.DequeueWithTimeout(ctx, 0)
}

// DequeueWithTimeout returns the next available task, blocking up to timeout
// seconds on the stream. A timeout of zero does not block.
func (q *Queue) DequeueWithTimeout(ctx context.Context, timeout int) (*domain.Task, error) {
	if err := q.promoteScheduledTasks(ctx); err != nil {
		return nil, fmt.Errorf("promote scheduled tasks: %w", err)
	}

	task, err := q.claimAbandonedTask(ctx)
	if err != nil {
		return nil, err
	}
	if task != nil {
		return task, nil
	}

	block := time.Duration(-1)
	if timeout > 0 {
		block = time.Duration(timeout) * time.Second
	}

	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    taskGroup,
		Consumer: q.consumerName,
		Streams:  []string{taskStream, ">"},
		Count:    1,
		Block:    block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("read stream: %w", err)
	}
	if len(streams) == 0 || len(streams[0].Messages) == 0 {
		return nil, nil
	}

	return q.deliver(ctx, streams[0].Messages[0])
}

// deliver loads the task a stream message points at and marks it processing.
// Messages whose task record is gone are dropped.
func (q *Queue) deliver(ctx context.Context, msg redis.XMessage) (*domain.Task, error) {
	taskID, _ := msg.Values["task_id"].(string)
	task, err := q.loadTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task == nil || task.Status.IsFinished() {
		q.dropMessage(ctx, msg.ID)
		return nil, nil
	}

	task.MarkProcessing()
	data, err := json.Marshal(task)
	if err != nil {
		return nil, fmt.Errorf("marshal task: %w", err)
	}

	pipe := q.client.TxPipeline()
	pipe.Set(ctx, taskKeyPrefix+task.ID, data, taskTTL)
	pipe.Set(ctx, taskKeyPrefix+task.ID+msgSuffix, msg.ID, taskTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("mark processing: %w", err)
	}
	return task, nil
}

// Ack acknowledges successful completion of a task.
func (q *Queue) Ack(ctx context.Context, taskID string) error {
	task, err := q.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	task.MarkCompleted()
	return q.finish(ctx, task, nil)
}

// Nack requeues a task with backoff while attempts remain, otherwise fails it.
func (q *Queue) Nack(ctx context.Context, taskID string, reason string) error {
	task, err := q.GetTask(ctx, taskID)
	if err != nil {
		return err
	}

	if !task.CanRetry() {
		task.MarkFailed(reason)
		return q.finish(ctx, task, nil)
	}

	task.Retry(reason)
	return q.finish(ctx, task, func(pipe redis.Pipeliner) {
		pipe.ZAdd(ctx, scheduledTasks, redis.Z{
			Score:  float64(task.ScheduledFor.UnixMilli()),
			Member: task.ID,
		})
	})
}

// finish stores the task, removes its stream message and runs extra in the
// same transaction.
func (q *Queue) finish(ctx context.Context, task *domain.Task, extra func(redis.Pipeliner)) error {
	msgKey := taskKeyPrefix + task.ID + msgSuffix
	msgID, err := q.client.Get(ctx, msgKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("get message id: %w", err)
	}

	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}

	_, err = q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if msgID != "" {
			pipe.XAck(ctx, taskStream, taskGroup, msgID)
			pipe.XDel(ctx, taskStream, msgID)
		}
		pipe.Set(ctx, taskKeyPrefix+task.ID, data, taskTTL)
		pipe.Del(ctx, msgKey)
		if extra != nil {
			extra(pipe)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("update task %s: %w", task.ID, err)
	}
	return nil
}

// GetTask retrieves a task by ID.
func (q *Queue) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	task, err := q.loadTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, domain.ErrNotFound
	}
	return task, nil
}

// loadTask returns nil, nil for a missing record
func (q *Queue) loadTask(ctx context.Context, taskID string) (*domain.Task, error) {
	if taskID == "" {
		return nil, nil
	}
	data, err := q.client.Get(ctx, taskKeyPrefix+taskID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}

	var task domain.Task
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, fmt.Errorf("unmarshal task: %w", err)
	}
	return &task, nil
}

// ListTasks retrieves tasks matching the filter, newest first. With an
// owner it reads the owner's index; without one it scans every task key.
func (q *Queue) ListTasks(ctx context.Context, filter driven.TaskFilter) ([]*domain.Task, error) {
	var tasks []*domain.Task
	var err error
	if filter.OwnerID != "" {
		tasks, err = q.ownerTasks(ctx, filter.OwnerID)
	} else {
		tasks, err = q.scanTasks(ctx)
	}
	if err != nil {
		return nil, err
	}

	matched := make([]*domain.Task, 0, len(tasks))
	for _, t := range tasks {
		if filter.Matches(t) {
			matched = append(matched, t)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			return []*domain.Task{}, nil
		}
		matched = matched[filter.Offset:]
	}
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

func (q *Queue) ownerTasks(ctx context.Context, ownerID string) ([]*domain.Task, error) {
	ids, err := q.client.ZRevRange(ctx, ownerKey(ownerID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read owner index: %w", err)
	}

	tasks := make([]*domain.Task, 0, len(ids))
	var stale []any
	for _, id := range ids {
		task, err := q.loadTask(ctx, id)
		if err != nil {
			return nil, err
		}
		if task == nil {
			stale = append(stale, id)
			continue
		}
		tasks = append(tasks, task)
	}
	if len(stale) > 0 {
		q.client.ZRem(ctx, ownerKey(ownerID), stale...)
	}
	return tasks, nil
}

// scanTasks walks every task record. O(N); maintenance use only.
func (q *Queue) scanTasks(ctx context.Context) ([]*domain.Task, error) {
	var tasks []*domain.Task
	iter := q.client.Scan(ctx, 0, taskKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if strings.HasSuffix(key, msgSuffix) {
			continue
		}
		task, err := q.loadTask(ctx, strings.TrimPrefix(key, taskKeyPrefix))
		if err != nil || task == nil {
			continue
		}
		tasks = append(tasks, task)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan tasks: %w", err)
	}
	return tasks, nil
}

// CancelTask marks a pending task as failed with reason "cancelled".
func (q *Queue) CancelTask(ctx context.Context, taskID string) error {
	task, err := q.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	if task.Status != domain.TaskStatusPending {
		return fmt.Errorf("%w: task is %s", domain.ErrInvalidInput, task.Status)
	}

	task.MarkFailed("cancelled")
	// A stream message may still point at the task; deliver drops it
	return q.finish(ctx, task, func(pipe redis.Pipeliner) {
		pipe.ZRem(ctx, scheduledTasks, taskID)
	})
}

// PurgeTasks removes completed and failed tasks not touched for olderThanSeconds.
func (q *Queue) PurgeTasks(ctx context.Context, olderThanSeconds int) (int, error) {
	cutoff := q.now().Add(-time.Duration(olderThanSeconds) * time.Second)

	tasks, err := q.scanTasks(ctx)
	if err != nil {
		return 0, err
	}

	var purged int
	for _, task := range tasks {
		if !task.Status.IsFinished() || !task.UpdatedAt.Before(cutoff) {
			continue
		}
		pipe := q.client.TxPipeline()
		pipe.Del(ctx, taskKeyPrefix+task.ID, taskKeyPrefix+task.ID+msgSuffix)
		if task.OwnerID != "" {
			pipe.ZRem(ctx, ownerKey(task.OwnerID), task.ID)
		}
		if _, err := pipe.Exec(ctx); err != nil {
			return purged, fmt.Errorf("purge task %s: %w", task.ID, err)
		}
		purged++
	}
	return purged, nil
}

// Stats returns queue statistics.
func (q *Queue) Stats(ctx context.Context) (*driven.QueueStats, error) {
	tasks, err := q.scanTasks(ctx)
	if err != nil {
		return nil, err
	}

	stats := &driven.QueueStats{}
	now := q.now()
	var oldest time.Time
	for _, task := range tasks {
		switch task.Status {
		case domain.TaskStatusPending:
			stats.PendingCount++
			if oldest.IsZero() || task.CreatedAt.Before(oldest) {
				oldest = task.CreatedAt
			}
		case domain.TaskStatusProcessing:
			stats.ProcessingCount++
		case domain.TaskStatusCompleted:
			stats.CompletedCount++
		case domain.TaskStatusFailed:
			stats.FailedCount++
		}
	}
	if !oldest.IsZero() {
		stats.OldestPendingAge = int64(now.Sub(oldest).Seconds())
	}
	return stats, nil
}

// Ping checks if the queue backend is healthy.
func (q *Queue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

// Close is a no-op; the client is shared with the lock.
func (q *Queue) Close() error {
	return nil
}

// promoteScheduledTasks moves due delayed tasks onto the stream. ZRem
// decides the winner when several consumers promote at once.
func (q *Queue) promoteScheduledTasks(ctx context.Context) error {
	due, err := q.client.ZRangeByScore(ctx, scheduledTasks, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(q.now().UnixMilli(), 10),
	}).Result()
	if err != nil {
		return err
	}

	for _, taskID := range due {
		removed, err := q.client.ZRem(ctx, scheduledTasks, taskID).Result()
		if err != nil {
			return err
		}
		if removed == 0 {
			continue
		}

		task, err := q.loadTask(ctx, taskID)
		if err != nil {
			return err
		}
		if task == nil || task.Status != domain.TaskStatusPending {
			continue
		}
		if err := q.client.XAdd(ctx, streamEntry(task)).Err(); err != nil {
			return err
		}
	}
	return nil
}

// claimAbandonedTask takes over a message another consumer has held past
// claimTimeout, which happens when a worker dies mid-task.
func (q *Queue) claimAbandonedTask(ctx context.Context) (*domain.Task, error) {
	msgs, _, err := q.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   taskStream,
		Group:    taskGroup,
		Consumer: q.consumerName,
		MinIdle:  claimTimeout,
		Start:    "0-0",
		Count:    1,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("claim abandoned: %w", err)
	}
	if len(msgs) == 0 {
		return nil, nil
	}
	return q.deliver(ctx, msgs[0])
}

func (q *Queue) dropMessage(ctx context.Context, msgID string) {
	q.client.XAck(ctx, taskStream, taskGroup, msgID)
	q.client.XDel(ctx, taskStream, msgID)
}

func streamEntry(task *domain.Task) *redis.XAddArgs {
	return &redis.XAddArgs{
		Stream: taskStream,
		Values: map[string]any{
			"task_id":  task.ID,
			"type":     string(task.Type),
			"owner_id": task.OwnerID,
		},
	}
}

func ownerKey(ownerID string) string {
	return ownerKeyPrefix + ownerID + ":tasks"
}

func isGroupExistsError(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "BUSYGROUP")
}
