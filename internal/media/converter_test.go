package media

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
)

func fakeFFmpeg(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ffmpeg")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\nfor last; do :; done\n"+body), 0o755))
	return path
}

func newTestConverter(binary string) *Converter {
	return NewConverter(binary, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestOutputPath(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"/dl/clip-abc.mp4", "/dl/clip-abc_ios.mp4"},
		{"/dl/clip-abc.MP4", "/dl/clip-abc_ios.mp4"},
		{"/dl/clip-abc.webm", "/dl/clip-abc.mp4"},
		{"/dl/clip-abc.mkv", "/dl/clip-abc.mp4"},
		{"clip", "clip.mp4"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, OutputPath(tt.input), tt.input)
	}
}

func TestBuildArgs(t *testing.T) {
	c := newTestConverter("")

	expected := []string{
		"-y", "-nostdin", "-loglevel", "error",
		"-i", "/in.webm",
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-c:a", "aac",
		"-b:a", "192k",
		"-movflags", "+faststart",
		"/in.mp4",
	}
	assert.Equal(t, expected, c.buildArgs("/in.webm", "/in.mp4"))
	assert.Equal(t, "ffmpeg", c.Binary)
}

func TestConvert_Success(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "clip.mp4")
	require.NoError(t, os.WriteFile(src, []byte("raw"), 0o644))

	c := newTestConverter(fakeFFmpeg(t, `echo converted > "$last"`))

	out, err := c.Convert(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "clip_ios.mp4"), out)
	assert.FileExists(t, out)
	assert.FileExists(t, src, "source is left for the caller to clean up")
}

func TestConvert_FailureRemovesPartialOutput(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "clip.webm")
	require.NoError(t, os.WriteFile(src, []byte("raw"), 0o644))

	long := strings.Repeat("e", 600)
	c := newTestConverter(fakeFFmpeg(t, `echo partial > "$last"
echo "`+long+`" >&2
exit 1
`))

	_, err := c.Convert(context.Background(), src)
	require.Error(t, err)

	var convErr *errpkg.ConversionError
	require.True(t, errors.As(err, &convErr))
	assert.Equal(t, src, convErr.Source)
	assert.Len(t, convErr.Excerpt, 400)
	assert.NoFileExists(t, filepath.Join(dir, "clip.mp4"))
}

func TestConvert_MissingBinary(t *testing.T) {
	c := newTestConverter(filepath.Join(t.TempDir(), "nope"))

	_, err := c.Convert(context.Background(), "/tmp/x.webm")
	require.Error(t, err)

	var convErr *errpkg.ConversionError
	assert.False(t, errors.As(err, &convErr))
}
