package ytdlp

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errpkg "github.com/veranemoloko/media-downloader/internal/errors"
	"github.com/veranemoloko/media-downloader/internal/progress"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeBinary writes an executable shell script standing in for yt-dlp.
func fakeBinary(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "yt-dlp")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func TestEngine_ExtractParsesProgressInfoAndFiles(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "args")
	bin := fakeBinary(t, `printf '%s\n' "$@" > `+argsFile+`
echo "[progress] downloading 50 100 NA My Clip"
echo "[progress] downloading 100 NA 200 My Clip"
echo "[progress] finished 100 100 NA My Clip"
echo '@@info {"id": "abc", "title": "My Clip", "ext": "webm", "width": 1920, "height": 1080}'
echo '@@file {"filepath": "/tmp/My Clip-abc.mp4", "width": 1920, "height": 1080}'
echo "[debug] noise" >&2
exit 0
`)
	engine := NewEngine(bin, discardLogger())

	var events []progress.Event
	res, err := engine.Extract(context.Background(), "https://x.test/v", ExtractionOptions{Format: "best"}, func(ev progress.Event) {
		events = append(events, ev)
	})
	require.NoError(t, err)

	require.Len(t, events, 3)
	assert.Equal(t, progress.Event{Status: "downloading", DownloadedBytes: 50, TotalBytes: 100, Title: "My Clip"}, events[0])
	assert.Equal(t, int64(200), events[1].TotalBytesEstimate)
	assert.Zero(t, events[1].TotalBytes)
	assert.Equal(t, "finished", events[2].Status)

	assert.Equal(t, "abc", res.Info.ID)
	assert.Equal(t, "My Clip", res.Info.Title)
	require.NotNil(t, res.Info.Width)
	assert.Equal(t, 1920.0, *res.Info.Width)
	require.Len(t, res.RequestedDownloads, 1)
	assert.Equal(t, "/tmp/My Clip-abc.mp4", res.RequestedDownloads[0].FilePath)

	raw, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	args := strings.Split(strings.TrimSpace(string(raw)), "\n")
	assert.Equal(t, []string{"-f", "best"}, args[:2])
	assert.Equal(t, []string{"--", "https://x.test/v"}, args[len(args)-2:])
	assert.Contains(t, args, "--newline")
	assert.Contains(t, args, "--no-simulate")
}

func TestEngine_ExtractFailureCarriesErrorLines(t *testing.T) {
	bin := fakeBinary(t, `echo "[debug] starting" >&2
echo "ERROR: [generic] Unsupported URL: https://x.test/v" >&2
echo "[debug] done" >&2
exit 1
`)
	engine := NewEngine(bin, discardLogger())

	_, err := engine.Extract(context.Background(), "https://x.test/v", ExtractionOptions{}, nil)
	require.Error(t, err)

	var extErr *errpkg.ExtractionError
	require.True(t, errors.As(err, &extErr))
	assert.Equal(t, "https://x.test/v", extErr.URL)
	assert.Equal(t, "ERROR: [generic] Unsupported URL: https://x.test/v", extErr.Excerpt)
}

func TestEngine_ExtractFailureWithoutErrorLinesUsesTail(t *testing.T) {
	bin := fakeBinary(t, `echo "first" >&2
echo "last" >&2
exit 2
`)
	_, err := NewEngine(bin, discardLogger()).Extract(context.Background(), "https://x.test/v", ExtractionOptions{}, nil)

	var extErr *errpkg.ExtractionError
	require.True(t, errors.As(err, &extErr))
	assert.Equal(t, "first\nlast", extErr.Excerpt)
}

func TestEngine_MissingBinaryIsNotExtractionError(t *testing.T) {
	engine := NewEngine(filepath.Join(t.TempDir(), "missing"), discardLogger())

	_, err := engine.Extract(context.Background(), "https://x.test/v", ExtractionOptions{}, nil)
	require.Error(t, err)

	var extErr *errpkg.ExtractionError
	assert.False(t, errors.As(err, &extErr))
}

func TestEngine_ListFormats(t *testing.T) {
	bin := fakeBinary(t, `echo '{"formats": [{"format_id": "140", "ext": "m4a", "video_ext": "none", "resolution": "audio only"}, {"format_id": "137", "ext": "mp4", "video_ext": "mp4", "resolution": "1920x1080"}]}'
`)
	opts, err := NewEngine(bin, discardLogger()).ListFormats(context.Background(), "https://x.test/v")
	require.NoError(t, err)
	assert.Equal(t, "1920x1080.mp4", opts[0].Label)
	assert.Len(t, opts, 1)
}

func TestParseFormats(t *testing.T) {
	data := []byte(`{"formats": [
		{"format_id": "", "ext": "mp4", "resolution": "640x360"},
		{"format_id": "18", "ext": "mp4", "video_ext": "mp4", "resolution": "640x360"},
		{"format_id": "140", "ext": "m4a", "video_ext": "none", "resolution": "audio only"},
		{"format_id": "137", "ext": "mp4", "video_ext": "mp4", "resolution": "1920x1080"},
		{"format_id": "134", "ext": "mp4", "video_ext": "mp4", "resolution": "640x360"},
		{"format_id": "x1", "video_ext": "webm"}
	]}`)

	opts, err := parseFormats(data)
	require.NoError(t, err)

	require.Len(t, opts, 3)
	assert.Equal(t, "640x360.mp4", opts[0].Label)
	assert.Equal(t, "134", opts[0].FormatID, "later format with the same label wins")
	assert.Equal(t, "1920x1080.mp4", opts[1].Label)
	assert.Equal(t, "unknown.mp4", opts[2].Label)

	_, err = parseFormats([]byte("not json"))
	assert.Error(t, err)
}

func TestParseProgress(t *testing.T) {
	ev, ok := parseProgress("downloading 1.5e3 NA NA NA")
	require.True(t, ok)
	assert.Equal(t, int64(1500), ev.DownloadedBytes)
	assert.Empty(t, ev.Title)

	_, ok = parseProgress("downloading 1")
	assert.False(t, ok)
}

func TestResult_PrepareFilename(t *testing.T) {
	r := &Result{Info: Info{ID: "abc", Title: "a/b", Ext: "mp4"}}
	assert.Equal(t, filepath.Join("/out", "a⧸b-abc.mp4"), r.PrepareFilename("/out"))

	r.Info.Title = strings.Repeat("x", 120)
	assert.Equal(t, filepath.Join("/out", strings.Repeat("x", 95)+"-abc.mp4"), r.PrepareFilename("/out"))

	r.Info.Title = `Live: Q&A? <part|1> "x*y"` + "\t\\"
	assert.Equal(t, filepath.Join("/out", "Live： Q&A？ ＜part｜1＞ ＂x＊y＂⧹-abc.mp4"), r.PrepareFilename("/out"))
}
