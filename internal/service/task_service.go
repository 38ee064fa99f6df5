package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/veranemoloko/media-downloader/internal/domain"
	errpkg "github.com/veranemoloko/media-downloader/internal/errors"
	"github.com/veranemoloko/media-downloader/internal/metrics"
	repo "github.com/veranemoloko/media-downloader/internal/repository"
	"github.com/veranemoloko/media-downloader/internal/validation"
	"github.com/veranemoloko/media-downloader/internal/worker"
	"github.com/veranemoloko/media-downloader/internal/ytdlp"
)

const (
	StatusQueued      = "Downloading..."
	StatusDone        = "Done"
	StatusInterrupted = "Download interrupted by a restart, please send the link again"
	StatusShutdown    = "Download cancelled: the service is shutting down"
)

// Runner executes a single download request.
type Runner interface {
	Run(ctx context.Context, req domain.DownloadRequest) (domain.DownloadOutcome, error)
}

// Submitter queues work for background execution.
type Submitter interface {
	Submit(job worker.Job) error
}

// FormatLister lists the selectable formats of a URL.
type FormatLister interface {
	ListFormats(ctx context.Context, url string) ([]domain.FormatOption, error)
}

// Auditor records accepted requests.
type Auditor interface {
	Record(ctx context.Context, req domain.DownloadRequest, taskID string)
}

// CreateTaskParams is a download request as received from a caller.
type CreateTaskParams struct {
	URL         string
	Mode        string
	Format      string
	FormatID    string
	RequesterID int64
}

// TaskService turns requests into task records and runs them on the pool.
type TaskService struct {
	repo        repo.TaskRepo
	pool        Submitter
	runner      Runner
	formats     FormatLister
	policy      *validation.Policy
	audit       Auditor
	maxFilesize int64
	logger      *slog.Logger
}

func NewTaskService(
	taskRepo repo.TaskRepo,
	pool Submitter,
	runner Runner,
	formats FormatLister,
	policy *validation.Policy,
	audit Auditor,
	maxFilesize int64,
	logger *slog.Logger,
) *TaskService {
	return &TaskService{
		repo:        taskRepo,
		pool:        pool,
		runner:      runner,
		formats:     formats,
		policy:      policy,
		audit:       audit,
		maxFilesize: maxFilesize,
		logger:      logger,
	}
}

// CreateTask checks the URL against the policy, stores a pending task and
// queues it. A task that cannot be queued is stored as failed.
func (s *TaskService) CreateTask(ctx context.Context, p CreateTaskParams) (*domain.Task, error) {
	u, err := s.policy.Check(p.URL)
	if err != nil {
		metrics.RequestsRejected.WithLabelValues(rejectReason(err)).Inc()
		return nil, err
	}

	mode, err := domain.ParseMode(p.Mode)
	if err != nil {
		metrics.RequestsRejected.WithLabelValues("mode").Inc()
		return nil, err
	}

	now := time.Now()
	task := &domain.Task{
		ID:          uuid.New(),
		URL:         u.String(),
		Mode:        mode,
		FormatSpec:  p.Format,
		RequesterID: p.RequesterID,
		Status:      domain.TaskStatusPending,
		Message:     StatusQueued,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if p.FormatID != "" {
		task.FormatSpec = ytdlp.WithBestAudio(p.FormatID)
	}
	if task.FormatSpec == "" {
		task.FormatSpec = domain.DefaultFormat
	}

	if err := s.repo.CreateTask(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	metrics.TasksCreated.Inc()

	id := task.ID
	if err := s.pool.Submit(func(ctx context.Context) { s.process(ctx, id) }); err != nil {
		task.Status = domain.TaskStatusFailed
		task.Message = err.Error()
		if updErr := s.repo.UpdateTask(context.WithoutCancel(ctx), task); updErr != nil {
			s.logger.Error("failed to mark unqueued task", "task_id", id, "error", updErr)
		}
		metrics.TasksFailed.Inc()
		return nil, err
	}

	s.logger.Info("task created", "task_id", id, "url", task.URL, "mode", mode, "requester_id", p.RequesterID)
	return task, nil
}

// GetTask returns the task with the given id.
func (s *TaskService) GetTask(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	return s.repo.GetTask(ctx, id)
}

// ListFormats checks the URL against the policy and lists its video formats.
func (s *TaskService) ListFormats(ctx context.Context, rawURL string) ([]domain.FormatOption, error) {
	u, err := s.policy.Check(rawURL)
	if err != nil {
		metrics.RequestsRejected.WithLabelValues(rejectReason(err)).Inc()
		return nil, err
	}
	return s.formats.ListFormats(ctx, u.String())
}

// FailInterrupted marks tasks left pending or in progress by a previous run
// as failed. Tasks are not resumed.
func (s *TaskService) FailInterrupted(ctx context.Context) (int, error) {
	var stale []*domain.Task
	for _, status := range []domain.TaskStatus{domain.TaskStatusPending, domain.TaskStatusInProgress} {
		tasks, err := s.repo.GetTasksByStatus(ctx, status)
		if err != nil {
			return 0, fmt.Errorf("failed to get %s tasks: %w", status, err)
		}
		stale = append(stale, tasks...)
	}

	for _, task := range stale {
		task.Status = domain.TaskStatusFailed
		task.Message = StatusInterrupted
		if err := s.repo.UpdateTask(ctx, task); err != nil {
			return 0, fmt.Errorf("failed to update task %s: %w", task.ID, err)
		}
		s.logger.Info("interrupted task marked failed", "task_id", task.ID)
	}
	return len(stale), nil
}

func (s *TaskService) process(ctx context.Context, id uuid.UUID) {
	// task records outlive the job context
	storeCtx := context.WithoutCancel(ctx)

	task, err := s.repo.GetTask(storeCtx, id)
	if err != nil {
		s.logger.Error("failed to load task", "task_id", id, "error", err)
		return
	}

	if ctx.Err() != nil {
		s.finish(storeCtx, task, domain.TaskStatusFailed, StatusShutdown)
		return
	}

	task.Status = domain.TaskStatusInProgress
	if err := s.repo.UpdateTask(storeCtx, task); err != nil {
		s.logger.Error("failed to update task status", "task_id", id, "error", err)
		return
	}

	req := task.Request()
	s.audit.Record(ctx, req, id.String())

	outcome, runErr := s.runner.Run(ctx, req)

	task, err = s.repo.GetTask(storeCtx, id)
	if err != nil {
		s.logger.Error("failed to reload task", "task_id", id, "error", err)
		return
	}

	if runErr != nil {
		s.logger.Error("download failed", "task_id", id, "url", task.URL, "error", runErr)
		s.finish(storeCtx, task, domain.TaskStatusFailed, UserMessage(runErr, s.maxFilesize))
		return
	}

	task.Title = outcome.Title
	task.Dimensions = outcome.Dimensions
	receipt := outcome.Delivery
	task.Delivery = &receipt
	task.Progress = 100
	s.finish(storeCtx, task, domain.TaskStatusCompleted, StatusDone)
}

func (s *TaskService) finish(ctx context.Context, task *domain.Task, status domain.TaskStatus, message string) {
	task.Status = status
	task.Message = message
	if err := s.repo.UpdateTask(ctx, task); err != nil {
		s.logger.Error("failed to save task result", "task_id", task.ID, "status", status, "error", err)
	}

	if status == domain.TaskStatusCompleted {
		metrics.TasksCompleted.Inc()
		s.logger.Info("task completed", "task_id", task.ID)
	} else {
		metrics.TasksFailed.Inc()
	}
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, errpkg.ErrHostBlocked):
		return "blocked"
	case errors.Is(err, errpkg.ErrInvalidURL):
		return "invalid_url"
	default:
		return "other"
	}
}
