package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/custodia-labs/semdex/internal/core/domain"
	"github.com/custodia-labs/semdex/internal/core/ports/driven"
	"github.com/custodia-labs/semdex/internal/core/ports/driving"
	"github.com/custodia-labs/semdex/internal/runtime"
)

// cancelledReason is recorded on content whose embedding task was cancelled
const cancelledReason = "embedding cancelled"

// Ensure taskService implements TaskService
var _ driving.TaskService = (*taskService)(nil)

type taskService struct {
	services *runtime.Services
}

// NewTaskService creates a new TaskService
func NewTaskService(services *runtime.Services) driving.TaskService {
	return &taskService{services: services}
}

// GetTask returns the owner's task. Tasks of other owners and maintenance
// tasks are reported as not found.
func (s *taskService) GetTask(ctx context.Context, ownerID, taskID string) (*domain.Task, error) {
	task, err := s.services.Queue().GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if ownerID == "" || task.OwnerID != ownerID {
		return nil, domain.ErrNotFound
	}
	return task, nil
}

func (s *taskService) ListTasks(ctx context.Context, ownerID string, status domain.TaskStatus, limit, offset int) ([]*domain.Task, error) {
	if ownerID == "" {
		return nil, domain.ErrUnauthorized
	}
	switch status {
	case "", domain.TaskStatusPending, domain.TaskStatusProcessing, domain.TaskStatusCompleted, domain.TaskStatusFailed:
	default:
		return nil, fmt.Errorf("%w: unknown task status %q", domain.ErrInvalidInput, status)
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.services.Queue().ListTasks(ctx, driven.TaskFilter{
		OwnerID: ownerID,
		Status:  status,
		Limit:   limit,
		Offset:  offset,
	})
}

// CancelTask removes a pending task from the queue. An embed_content task
// leaves its content pending, so the content is failed with a fixed reason;
// otherwise the recovery sweep would enqueue it again.
func (s *taskService) CancelTask(ctx context.Context, ownerID, taskID string) (*domain.Task, error) {
	task, err := s.GetTask(ctx, ownerID, taskID)
	if err != nil {
		return nil, err
	}
	if err := s.services.Queue().CancelTask(ctx, taskID); err != nil {
		return nil, err
	}

	if task.Type == domain.TaskTypeEmbedContent {
		if contentID := task.ContentID(); contentID != "" {
			err := s.services.Contents().MarkFailed(ctx, contentID, cancelledReason)
			if err != nil && !errors.Is(err, domain.ErrNotFound) {
				return nil, fmt.Errorf("fail cancelled content: %w", err)
			}
		}
	}

	return s.services.Queue().GetTask(ctx, taskID)
}
