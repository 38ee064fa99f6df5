package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/veranemoloko/media-downloader/internal/domain"
)

// TaskRepo defines the interface for task storage operations.
// Implementations hand out copies; callers write changes back with UpdateTask.
type TaskRepo interface {
	CreateTask(ctx context.Context, task *domain.Task) error
	GetTask(ctx context.Context, id uuid.UUID) (*domain.Task, error)
	UpdateTask(ctx context.Context, task *domain.Task) error
	GetTasksByStatus(ctx context.Context, status domain.TaskStatus) ([]*domain.Task, error)
}
