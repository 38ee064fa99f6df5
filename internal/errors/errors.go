package errors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrTaskNotFound   = errors.New("task not found")
	ErrInvalidURL     = errors.New("invalid URL")
	ErrHostBlocked    = errors.New("host is blocked")
	ErrNotConfigured  = errors.New("remote storage is not configured")
	ErrNoDownloadPath = errors.New("downloaded file path missing")
	ErrQueueFull      = errors.New("download queue is full")
	ErrShuttingDown   = errors.New("service is shutting down")
	ErrUnauthorized   = errors.New("requester is not authorized")
	ErrInvalidName    = errors.New("invalid file name")
	ErrEmptyCookies   = errors.New("cookie payload is empty")
)

// HostBlockedError is returned by the policy filter when the URL host matches
// a blacklisted domain.
type HostBlockedError struct {
	Host string
}

func (e *HostBlockedError) Error() string {
	return fmt.Sprintf("downloads from %s are not allowed", e.Host)
}

func (e *HostBlockedError) Is(target error) bool { return target == ErrHostBlocked }

// ExtractionError is a download failure reported by the extraction engine itself.
type ExtractionError struct {
	URL     string
	Excerpt string
	Err     error
}

func (e *ExtractionError) Error() string {
	if e.Excerpt == "" {
		return fmt.Sprintf("extraction of %s failed: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("extraction of %s failed: %v: %s", e.URL, e.Err, e.Excerpt)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// ConversionError means the transcoder exited non-zero.
type ConversionError struct {
	Source  string
	Excerpt string
	Err     error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("ffmpeg failed for %s: %s", e.Source, e.Excerpt)
}

func (e *ConversionError) Unwrap() error { return e.Err }

// TransportError wraps a network failure talking to remote storage.
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("nextcloud request failed (%s %s): %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError is a non-success status or a malformed response from remote storage.
type ProtocolError struct {
	Op         string
	StatusCode int
	Detail     string
}

func (e *ProtocolError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: %s", e.Op, e.Detail)
	}
	return fmt.Sprintf("%s: %d %s", e.Op, e.StatusCode, e.Detail)
}

// DeliveryError wraps a failure handing the deliverable to its destination.
type DeliveryError struct {
	Target string
	Err    error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery to %s failed: %v", e.Target, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Truncate cuts diagnostic output to at most n bytes without splitting a rune.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.ToValidUTF8(s[:n], "")
}
