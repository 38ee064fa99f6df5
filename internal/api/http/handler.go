package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/veranemoloko/media-downloader/internal/domain"
	errpkg "github.com/veranemoloko/media-downloader/internal/errors"
	"github.com/veranemoloko/media-downloader/internal/service"
	"github.com/veranemoloko/media-downloader/internal/validation"
)

const maxCookiesBody = 1 << 20

// TaskServiceI defines the interface for task-related business logic.
type TaskServiceI interface {
	CreateTask(ctx context.Context, p service.CreateTaskParams) (*domain.Task, error)
	GetTask(ctx context.Context, id uuid.UUID) (*domain.Task, error)
	ListFormats(ctx context.Context, url string) ([]domain.FormatOption, error)
}

// CookieSaver replaces the extraction engine's cookie file.
type CookieSaver interface {
	SaveCookies(payload []byte) error
}

// FileOpener serves delivered files by name.
type FileOpener interface {
	OpenFile(name string) (*os.File, error)
}

// TaskHandler handles HTTP requests for download tasks.
type TaskHandler struct {
	taskService TaskServiceI
	cookies     CookieSaver
	files       FileOpener
	validator   *validator.Validate
	logger      *slog.Logger
}

// NewTaskHandler creates a new TaskHandler with the provided services and logger.
func NewTaskHandler(taskService TaskServiceI, cookies CookieSaver, files FileOpener, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{
		taskService: taskService,
		cookies:     cookies,
		files:       files,
		validator:   validation.New(),
		logger:      logger,
	}
}

// CreateDownload handles POST /downloads. The task runs in the background;
// the response only carries its id.
func (h *TaskHandler) CreateDownload(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateDownloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode request", "error", err)
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		h.logger.Warn("validation failed", "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	requesterID, _ := RequesterID(r.Context())
	task, err := h.taskService.CreateTask(r.Context(), service.CreateTaskParams{
		URL:         req.URL,
		Mode:        req.Mode,
		Format:      req.Format,
		FormatID:    req.FormatID,
		RequesterID: requesterID,
	})
	if err != nil {
		h.writeServiceError(w, "failed to create task", err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"task_id": task.ID,
		"status":  task.Status,
		"message": task.Message,
	})
}

// GetDownload handles GET /downloads/{taskID}.
func (h *TaskHandler) GetDownload(w http.ResponseWriter, r *http.Request) {
	taskID, err := uuid.Parse(chi.URLParam(r, "taskID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid task ID")
		return
	}

	task, err := h.taskService.GetTask(r.Context(), taskID)
	if err != nil {
		h.writeServiceError(w, "failed to get task", err)
		return
	}

	writeJSON(w, http.StatusOK, domain.NewTaskResponse(task))
}

// ListFormats handles GET /formats?url=.
func (h *TaskHandler) ListFormats(w http.ResponseWriter, r *http.Request) {
	rawURL := r.URL.Query().Get("url")
	if err := h.validator.Var(rawURL, "required,media_url"); err != nil {
		writeError(w, http.StatusBadRequest, "invalid url")
		return
	}

	options, err := h.taskService.ListFormats(r.Context(), rawURL)
	if err != nil {
		h.writeServiceError(w, "failed to list formats", err)
		return
	}
	if options == nil {
		options = []domain.FormatOption{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"formats": options})
}

// PutCookies handles PUT /cookies. The body is the Netscape cookie file.
func (h *TaskHandler) PutCookies(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxCookiesBody+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(payload) > maxCookiesBody {
		writeError(w, http.StatusRequestEntityTooLarge, "cookie file too large")
		return
	}

	if err := h.cookies.SaveCookies(payload); err != nil {
		h.writeServiceError(w, "failed to save cookies", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "Cookies saved successfully"})
}

// GetFile handles GET /files/{name} for inline deliveries.
func (h *TaskHandler) GetFile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if r.URL.RawPath != "" {
		// chi routes on the raw path when one is set
		unescaped, err := url.PathUnescape(name)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid file name")
			return
		}
		name = unescaped
	}
	f, err := h.files.OpenFile(name)
	if err != nil {
		if errors.Is(err, errpkg.ErrInvalidName) {
			writeError(w, http.StatusBadRequest, "invalid file name")
			return
		}
		writeError(w, http.StatusNotFound, "file not found")
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		writeError(w, http.StatusNotFound, "file not found")
		return
	}

	w.Header().Set("Content-Disposition", `attachment; filename="`+filepath.Base(name)+`"`)
	http.ServeContent(w, r, name, info.ModTime(), f)
}

func (h *TaskHandler) writeServiceError(w http.ResponseWriter, msg string, err error) {
	var blocked *errpkg.HostBlockedError
	switch {
	case errors.As(err, &blocked):
		writeError(w, http.StatusForbidden, "Downloads from "+blocked.Host+" are not allowed.")
	case errors.Is(err, errpkg.ErrInvalidURL):
		writeError(w, http.StatusBadRequest, "invalid url")
	case errors.Is(err, errpkg.ErrTaskNotFound):
		writeError(w, http.StatusNotFound, "task not found")
	case errors.Is(err, errpkg.ErrEmptyCookies):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, errpkg.ErrQueueFull), errors.Is(err, errpkg.ErrShuttingDown):
		w.Header().Set("Retry-After", "30")
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		var extErr *errpkg.ExtractionError
		if errors.As(err, &extErr) {
			writeError(w, http.StatusUnprocessableEntity, service.UserMessage(err, 0))
			return
		}
		h.logger.Error(msg, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}
