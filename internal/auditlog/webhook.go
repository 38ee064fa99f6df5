// Package auditlog reports accepted download requests to an optional webhook.
package auditlog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/veranemoloko/media-downloader/internal/domain"
)

const defaultTimeout = 10 * time.Second

// Entry is the JSON body posted for each request.
type Entry struct {
	Text        string              `json:"text"`
	RequesterID int64               `json:"requester_id"`
	Mode        domain.DownloadMode `json:"mode"`
	URL         string              `json:"url"`
	TaskID      string              `json:"task_id,omitempty"`
	Time        time.Time           `json:"time"`
}

// Webhook posts entries to a URL. A zero URL disables it. Delivery failures
// are logged and never reach the caller.
type Webhook struct {
	url    string
	client *http.Client
	logger *slog.Logger
	now    func() time.Time
}

func NewWebhook(url string, logger *slog.Logger) *Webhook {
	return &Webhook{
		url:    url,
		client: &http.Client{Timeout: defaultTimeout},
		logger: logger,
		now:    time.Now,
	}
}

// Enabled reports whether a webhook URL is configured.
func (w *Webhook) Enabled() bool {
	return w != nil && w.url != ""
}

// Record posts a summary of req. It returns once the post finished or failed.
func (w *Webhook) Record(ctx context.Context, req domain.DownloadRequest, taskID string) {
	if !w.Enabled() {
		return
	}

	entry := Entry{
		Text:        fmt.Sprintf("Download request (%s) from %d\n\n%s", req.Mode, req.RequesterID, req.URL),
		RequesterID: req.RequesterID,
		Mode:        req.Mode,
		URL:         req.URL,
		TaskID:      taskID,
		Time:        w.now().UTC(),
	}
	if err := w.post(ctx, entry); err != nil {
		w.logger.Warn("audit log delivery failed", "error", err)
	}
}

func (w *Webhook) post(ctx context.Context, entry Entry) error {
	body, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("bad status: %s", resp.Status)
	}
	return nil
}
