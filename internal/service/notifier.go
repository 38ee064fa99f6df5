package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/veranemoloko/media-downloader/internal/progress"
	repo "github.com/veranemoloko/media-downloader/internal/repository"
)

// TaskNotifier shows progress and status text on the task record whose id is
// the progress key.
type TaskNotifier struct {
	repo   repo.TaskRepo
	logger *slog.Logger
}

func NewTaskNotifier(taskRepo repo.TaskRepo, logger *slog.Logger) *TaskNotifier {
	return &TaskNotifier{repo: taskRepo, logger: logger}
}

// NotifyProgress implements progress.Notifier.
func (n *TaskNotifier) NotifyProgress(ctx context.Context, u progress.Update) error {
	return n.update(ctx, u.Key, func(msg *string, pct *int) {
		*msg = fmt.Sprintf("Downloading %s\n\n%d%%", u.Title, u.Percent)
		*pct = u.Percent
	})
}

// NotifyStatus replaces the status text of the task.
func (n *TaskNotifier) NotifyStatus(ctx context.Context, key, text string) error {
	return n.update(ctx, key, func(msg *string, _ *int) {
		*msg = text
	})
}

func (n *TaskNotifier) update(ctx context.Context, key string, apply func(msg *string, pct *int)) error {
	id, err := uuid.Parse(key)
	if err != nil {
		return fmt.Errorf("invalid progress key %q: %w", key, err)
	}

	task, err := n.repo.GetTask(ctx, id)
	if err != nil {
		return err
	}
	if task.Status.IsFinished() {
		n.logger.Debug("update for finished task dropped", "task_id", id)
		return nil
	}
	apply(&task.Message, &task.Progress)
	if err := n.repo.UpdateTask(ctx, task); err != nil {
		return err
	}
	n.logger.Debug("task status updated", "task_id", id, "message", task.Message)
	return nil
}
