package auditlog

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veranemoloko/media-downloader/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWebhook_PostsEntry(t *testing.T) {
	received := make(chan Entry, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var e Entry
		require.NoError(t, json.NewDecoder(r.Body).Decode(&e))
		received <- e
	}))
	defer srv.Close()

	hook := NewWebhook(srv.URL, testLogger())
	hook.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	req := domain.NewDownloadRequest("https://vimeo.com/1", domain.ModeAudio, "", 42, "k")
	hook.Record(context.Background(), req, "task-1")

	e := <-received
	assert.Equal(t, "Download request (audio) from 42\n\nhttps://vimeo.com/1", e.Text)
	assert.Equal(t, int64(42), e.RequesterID)
	assert.Equal(t, domain.ModeAudio, e.Mode)
	assert.Equal(t, "task-1", e.TaskID)
	assert.True(t, e.Time.Equal(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)))
}

func TestWebhook_FailuresAreSwallowed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	req := domain.NewDownloadRequest("https://vimeo.com/1", domain.ModeVideo, "", 1, "k")

	assert.NotPanics(t, func() {
		NewWebhook(srv.URL, testLogger()).Record(context.Background(), req, "")
		NewWebhook("http://127.0.0.1:1/unreachable", testLogger()).Record(context.Background(), req, "")
	})
}

func TestWebhook_Disabled(t *testing.T) {
	var nilHook *Webhook
	assert.False(t, nilHook.Enabled())
	assert.False(t, NewWebhook("", testLogger()).Enabled())

	nilHook.Record(context.Background(), domain.DownloadRequest{}, "")
}
