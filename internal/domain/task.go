package domain

import (
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the current state of a download task.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// IsFinished reports whether the task reached a terminal state.
func (s TaskStatus) IsFinished() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// Task is the user-visible record of one download request.
type Task struct {
	ID          uuid.UUID        `json:"id"`
	URL         string           `json:"url"`
	Mode        DownloadMode     `json:"mode"`
	FormatSpec  string           `json:"format"`
	RequesterID int64            `json:"requester_id"`
	Status      TaskStatus       `json:"status"`
	Message     string           `json:"message,omitempty"`
	Progress    int              `json:"progress,omitempty"`
	Title       string           `json:"title,omitempty"`
	Dimensions  *Dimensions      `json:"dimensions,omitempty"`
	Delivery    *DeliveryReceipt `json:"delivery,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// Clone returns a copy that shares nothing mutable with t.
func (t *Task) Clone() *Task {
	c := *t
	if t.Dimensions != nil {
		d := *t.Dimensions
		c.Dimensions = &d
	}
	if t.Delivery != nil {
		r := *t.Delivery
		c.Delivery = &r
	}
	return &c
}

// Request rebuilds the immutable download request for this task.
// The task id doubles as the progress key.
func (t *Task) Request() DownloadRequest {
	return NewDownloadRequest(t.URL, t.Mode, t.FormatSpec, t.RequesterID, t.ID.String())
}
