package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veranemoloko/media-downloader/internal/domain"
	errpkg "github.com/veranemoloko/media-downloader/internal/errors"
	"github.com/veranemoloko/media-downloader/internal/progress"
	"github.com/veranemoloko/media-downloader/internal/repository"
	"github.com/veranemoloko/media-downloader/internal/validation"
	"github.com/veranemoloko/media-downloader/internal/worker"
)

// inlineSubmitter runs jobs synchronously with ctx.
type inlineSubmitter struct {
	ctx context.Context
	err error
}

func (s *inlineSubmitter) Submit(job worker.Job) error {
	if s.err != nil {
		return s.err
	}
	ctx := s.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	job(ctx)
	return nil
}

type fakeRunner struct {
	mu      sync.Mutex
	outcome domain.DownloadOutcome
	err     error
	reqs    []domain.DownloadRequest
	onRun   func(req domain.DownloadRequest)
}

func (f *fakeRunner) Run(ctx context.Context, req domain.DownloadRequest) (domain.DownloadOutcome, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()
	if f.onRun != nil {
		f.onRun(req)
	}
	return f.outcome, f.err
}

type fakeAuditor struct{ recorded []string }

func (f *fakeAuditor) Record(ctx context.Context, req domain.DownloadRequest, taskID string) {
	f.recorded = append(f.recorded, taskID)
}

type fakeLister struct {
	urls []string
}

func (f *fakeLister) ListFormats(ctx context.Context, url string) ([]domain.FormatOption, error) {
	f.urls = append(f.urls, url)
	return []domain.FormatOption{{Label: "1920x1080.mp4", FormatID: "137"}}, nil
}

type taskFixture struct {
	repo    *repository.TaskStorage
	pool    *inlineSubmitter
	runner  *fakeRunner
	audit   *fakeAuditor
	lister  *fakeLister
	service *TaskService
}

func newTaskFixture(t *testing.T) *taskFixture {
	t.Helper()
	taskRepo, err := repository.NewTaskStorage(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)

	f := &taskFixture{
		repo:   taskRepo,
		pool:   &inlineSubmitter{},
		runner: &fakeRunner{},
		audit:  &fakeAuditor{},
		lister: &fakeLister{},
	}
	policy := validation.NewPolicy([]string{"blocked.example"})
	f.service = NewTaskService(taskRepo, f.pool, f.runner, f.lister, policy, f.audit, 50_000_000, newTestLogger())
	return f
}

func TestTaskService_CreateTask_Completes(t *testing.T) {
	f := newTaskFixture(t)
	f.runner.outcome = domain.DownloadOutcome{
		Title:      "Clip",
		Dimensions: &domain.Dimensions{Width: 1280, Height: 720},
		Delivery:   domain.DeliveryReceipt{Target: "remote", Location: "https://cloud.test/s/1"},
	}

	task, err := f.service.CreateTask(context.Background(), CreateTaskParams{
		URL:         "  https://vimeo.com/1 ",
		RequesterID: 42,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ModeVideo, task.Mode)

	got, err := f.service.GetTask(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusCompleted, got.Status)
	assert.Equal(t, StatusDone, got.Message)
	assert.Equal(t, 100, got.Progress)
	assert.Equal(t, "Clip", got.Title)
	assert.Equal(t, "https://cloud.test/s/1", got.Delivery.Location)

	require.Len(t, f.runner.reqs, 1)
	req := f.runner.reqs[0]
	assert.Equal(t, "https://vimeo.com/1", req.URL)
	assert.Equal(t, domain.DefaultFormat, req.FormatSpec)
	assert.Equal(t, int64(42), req.RequesterID)
	assert.Equal(t, task.ID.String(), req.ProgressKey)
	assert.Equal(t, []string{task.ID.String()}, f.audit.recorded)
}

func TestTaskService_CreateTask_FormatID(t *testing.T) {
	f := newTaskFixture(t)

	_, err := f.service.CreateTask(context.Background(), CreateTaskParams{URL: "https://vimeo.com/1", FormatID: "137"})
	require.NoError(t, err)
	assert.Equal(t, "137+bestaudio", f.runner.reqs[0].FormatSpec)
}

func TestTaskService_CreateTask_Rejected(t *testing.T) {
	f := newTaskFixture(t)

	_, err := f.service.CreateTask(context.Background(), CreateTaskParams{URL: "https://cdn.blocked.example/v"})
	var blocked *errpkg.HostBlockedError
	require.True(t, errors.As(err, &blocked))
	assert.Equal(t, "cdn.blocked.example", blocked.Host)

	_, err = f.service.CreateTask(context.Background(), CreateTaskParams{URL: "vimeo.com/1"})
	assert.ErrorIs(t, err, errpkg.ErrInvalidURL)

	_, err = f.service.CreateTask(context.Background(), CreateTaskParams{URL: "https://vimeo.com/1", Mode: "gif"})
	assert.Error(t, err)

	pending, err := f.repo.GetTasksByStatus(context.Background(), domain.TaskStatusPending)
	require.NoError(t, err)
	assert.Empty(t, pending)
	assert.Empty(t, f.runner.reqs)
}

func TestTaskService_CreateTask_QueueFull(t *testing.T) {
	f := newTaskFixture(t)
	f.pool.err = errpkg.ErrQueueFull

	_, err := f.service.CreateTask(context.Background(), CreateTaskParams{URL: "https://vimeo.com/1"})
	assert.ErrorIs(t, err, errpkg.ErrQueueFull)

	failed, err := f.repo.GetTasksByStatus(context.Background(), domain.TaskStatusFailed)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, errpkg.ErrQueueFull.Error(), failed[0].Message)
}

func TestTaskService_RunFailureStoresUserMessage(t *testing.T) {
	f := newTaskFixture(t)
	f.runner.err = &errpkg.ExtractionError{URL: "https://vimeo.com/1"}

	task, err := f.service.CreateTask(context.Background(), CreateTaskParams{URL: "https://vimeo.com/1", Mode: "audio"})
	require.NoError(t, err)

	got, err := f.service.GetTask(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusFailed, got.Status)
	assert.Equal(t, "Invalid URL or download error", got.Message)
	assert.Nil(t, got.Delivery)
}

func TestTaskService_ShutdownBeforeStart(t *testing.T) {
	f := newTaskFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f.pool.ctx = ctx

	task, err := f.service.CreateTask(context.Background(), CreateTaskParams{URL: "https://vimeo.com/1"})
	require.NoError(t, err)

	got, err := f.service.GetTask(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusFailed, got.Status)
	assert.Equal(t, StatusShutdown, got.Message)
	assert.Empty(t, f.runner.reqs)
}

func TestTaskService_ProgressIsVisibleWhileRunning(t *testing.T) {
	f := newTaskFixture(t)
	notifier := NewTaskNotifier(f.repo, newTestLogger())

	var during *domain.Task
	f.runner.onRun = func(req domain.DownloadRequest) {
		require.NoError(t, notifier.NotifyProgress(context.Background(), progress.Update{Key: req.ProgressKey, Title: "Clip", Percent: 42}))
		id := uuid.MustParse(req.ProgressKey)
		during, _ = f.repo.GetTask(context.Background(), id)
	}

	_, err := f.service.CreateTask(context.Background(), CreateTaskParams{URL: "https://vimeo.com/1"})
	require.NoError(t, err)

	require.NotNil(t, during)
	assert.Equal(t, domain.TaskStatusInProgress, during.Status)
	assert.Equal(t, "Downloading Clip\n\n42%", during.Message)
	assert.Equal(t, 42, during.Progress)
}

func TestTaskService_ListFormats(t *testing.T) {
	f := newTaskFixture(t)

	opts, err := f.service.ListFormats(context.Background(), "https://vimeo.com/1")
	require.NoError(t, err)
	assert.Equal(t, "137", opts[0].FormatID)

	_, err = f.service.ListFormats(context.Background(), "https://blocked.example/v")
	assert.ErrorIs(t, err, errpkg.ErrHostBlocked)
	assert.Equal(t, []string{"https://vimeo.com/1"}, f.lister.urls)
}

func TestTaskService_FailInterrupted(t *testing.T) {
	f := newTaskFixture(t)
	ctx := context.Background()

	for _, status := range []domain.TaskStatus{domain.TaskStatusPending, domain.TaskStatusInProgress, domain.TaskStatusCompleted} {
		require.NoError(t, f.repo.CreateTask(ctx, &domain.Task{ID: uuid.New(), Status: status, CreatedAt: time.Now()}))
	}

	n, err := f.service.FailInterrupted(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	failed, err := f.repo.GetTasksByStatus(ctx, domain.TaskStatusFailed)
	require.NoError(t, err)
	require.Len(t, failed, 2)
	assert.Equal(t, StatusInterrupted, failed[0].Message)

	completed, err := f.repo.GetTasksByStatus(ctx, domain.TaskStatusCompleted)
	require.NoError(t, err)
	assert.Len(t, completed, 1)
}

func TestTaskNotifier_Errors(t *testing.T) {
	f := newTaskFixture(t)
	notifier := NewTaskNotifier(f.repo, newTestLogger())

	assert.Error(t, notifier.NotifyStatus(context.Background(), "not-a-uuid", "x"))
	assert.ErrorIs(t, notifier.NotifyStatus(context.Background(), uuid.NewString(), "x"), errpkg.ErrTaskNotFound)
}

func TestTaskNotifier_LeavesFinishedTasksAlone(t *testing.T) {
	f := newTaskFixture(t)
	notifier := NewTaskNotifier(f.repo, newTestLogger())
	ctx := context.Background()

	id := uuid.New()
	require.NoError(t, f.repo.CreateTask(ctx, &domain.Task{ID: id, Status: domain.TaskStatusCompleted, Message: StatusDone, Progress: 100, CreatedAt: time.Now()}))

	require.NoError(t, notifier.NotifyProgress(ctx, progress.Update{Key: id.String(), Title: "Clip", Percent: 40}))
	require.NoError(t, notifier.NotifyStatus(ctx, id.String(), StatusProcessing))

	got, err := f.repo.GetTask(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusDone, got.Message)
	assert.Equal(t, 100, got.Progress)
}

func TestCookieService_SaveCookies(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.txt")
	svc := NewCookieService(path, newTestLogger())

	require.NoError(t, svc.SaveCookies([]byte("\n  # Netscape HTTP Cookie File\n.youtube.com\tTRUE\t/\tTRUE\t0\tSID\tabc \n")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "# Netscape HTTP Cookie File\n.youtube.com\tTRUE\t/\tTRUE\t0\tSID\tabc\n", string(data))

	assert.ErrorIs(t, svc.SaveCookies([]byte("  \n")), errpkg.ErrEmptyCookies)
}
