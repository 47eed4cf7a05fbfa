package driving

import (
	"context"

	"github.com/custodia-labs/semdex/internal/core/domain"
)

// TaskService exposes the status of a user's background tasks
type TaskService interface {
	GetTask(ctx context.Context, ownerID, taskID string) (*domain.Task, error)
	ListTasks(ctx context.Context, ownerID string, status domain.TaskStatus, limit, offset int) ([]*domain.Task, error)

	// CancelTask cancels a pending task of the owner. Content waiting on a
	// cancelled embedding task is marked failed.
	CancelTask(ctx context.Context, ownerID, taskID string) (*domain.Task, error)
}
