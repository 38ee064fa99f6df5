// Package media re-encodes downloaded video into an H.264/AAC MP4 that plays
// on mobile clients.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	errpkg "github.com/veranemoloko/media-downloader/internal/errors"
	"github.com/veranemoloko/media-downloader/internal/metrics"
)

const (
	DefaultBinary       = "ffmpeg"
	DefaultPreset       = "veryfast"
	DefaultAudioBitrate = "192k"

	VideoCodec    = "libx264"
	AudioCodec    = "aac"
	FastStartFlag = "+faststart"

	mp4Ext      = ".mp4"
	iosSuffix   = "_ios"
	excerptSize = 400
)

// Converter runs ffmpeg.
type Converter struct {
	Binary       string
	Preset       string
	AudioBitrate string
	logger       *slog.Logger
}

func NewConverter(binary string, logger *slog.Logger) *Converter {
	if binary == "" {
		binary = DefaultBinary
	}
	return &Converter{
		Binary:       binary,
		Preset:       DefaultPreset,
		AudioBitrate: DefaultAudioBitrate,
		logger:       logger,
	}
}

// Convert always re-encodes src and returns the path of the new file.
// On failure the partial output is removed.
func (c *Converter) Convert(ctx context.Context, src string) (string, error) {
	dst := OutputPath(src)
	args := c.buildArgs(src, dst)

	c.logger.Info("converting media", "source", src, "output", dst)
	start := time.Now()

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.Binary, args...)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		metrics.ConversionsFailed.Inc()
		if rmErr := os.Remove(dst); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			c.logger.Warn("failed to remove partial output", "path", dst, "error", rmErr)
		}

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", &errpkg.ConversionError{
				Source:  src,
				Excerpt: errpkg.Truncate(strings.TrimSpace(stderr.String()), excerptSize),
				Err:     err,
			}
		}
		return "", fmt.Errorf("run %s: %w", c.Binary, err)
	}

	metrics.ConversionDuration.Observe(time.Since(start).Seconds())
	c.logger.Info("conversion finished", "output", dst, "duration", time.Since(start))
	return dst, nil
}

func (c *Converter) buildArgs(src, dst string) []string {
	return []string{
		"-y",
		"-nostdin",
		"-loglevel", "error",
		"-i", src,
		"-c:v", VideoCodec,
		"-preset", c.Preset,
		"-c:a", AudioCodec,
		"-b:a", c.AudioBitrate,
		"-movflags", FastStartFlag,
		dst,
	}
}

// OutputPath names the converted file: an .mp4 source gets an "_ios" suffix
// so it is never overwritten in place, anything else just changes extension.
func OutputPath(src string) string {
	ext := filepath.Ext(src)
	stem := strings.TrimSuffix(src, ext)
	if strings.EqualFold(ext, mp4Ext) {
		return stem + iosSuffix + mp4Ext
	}
	return stem + mp4Ext
}
