package domain

import (
	"time"

	"github.com/google/uuid"
)

// CreateDownloadRequest represents the request body for starting a download.
type CreateDownloadRequest struct {
	URL      string `json:"url" validate:"required,media_url"`
	Mode     string `json:"mode" validate:"omitempty,oneof=video audio"`
	Format   string `json:"format" validate:"omitempty,max=256"`
	FormatID string `json:"format_id" validate:"omitempty,max=64,printascii,excludesall=/+"`
}

// TaskResponse is returned for a task lookup.
type TaskResponse struct {
	ID         uuid.UUID        `json:"task_id"`
	URL        string           `json:"url"`
	Mode       DownloadMode     `json:"mode"`
	Status     TaskStatus       `json:"status"`
	Message    string           `json:"message,omitempty"`
	Progress   int              `json:"progress,omitempty"`
	Title      string           `json:"title,omitempty"`
	Dimensions *Dimensions      `json:"dimensions,omitempty"`
	Delivery   *DeliveryReceipt `json:"delivery,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// NewTaskResponse copies the public fields of a task.
func NewTaskResponse(t *Task) TaskResponse {
	return TaskResponse{
		ID:         t.ID,
		URL:        t.URL,
		Mode:       t.Mode,
		Status:     t.Status,
		Message:    t.Message,
		Progress:   t.Progress,
		Title:      t.Title,
		Dimensions: t.Dimensions,
		Delivery:   t.Delivery,
		CreatedAt:  t.CreatedAt,
		UpdatedAt:  t.UpdatedAt,
	}
}

// FormatOption is one selectable format returned by the format listing.
type FormatOption struct {
	Label    string `json:"label"`
	FormatID string `json:"format_id"`
}
