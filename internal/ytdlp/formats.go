package ytdlp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/veranemoloko/media-downloader/internal/domain"
	errpkg "github.com/veranemoloko/media-downloader/internal/errors"
)

type formatEntry struct {
	FormatID   string `json:"format_id"`
	Resolution string `json:"resolution"`
	Ext        string `json:"ext"`
	VideoExt   string `json:"video_ext"`
}

// ListFormats returns the video formats available for url, labelled
// "<resolution>.<ext>". Later formats with the same label replace earlier ones.
func (e *Engine) ListFormats(ctx context.Context, url string) ([]domain.FormatOption, error) {
	var out strings.Builder
	stderr, err := e.run(ctx, []string{"-J", "--no-warnings", "--", url}, func(line string) {
		out.WriteString(line)
	})
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, &errpkg.ExtractionError{URL: url, Excerpt: errpkg.Truncate(stderr, excerptLen), Err: err}
		}
		return nil, err
	}

	return parseFormats([]byte(out.String()))
}

func parseFormats(data []byte) ([]domain.FormatOption, error) {
	var info struct {
		Formats []formatEntry `json:"formats"`
	}
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("decode format list: %w", err)
	}

	var options []domain.FormatOption
	index := make(map[string]int)
	for _, f := range info.Formats {
		if f.FormatID == "" || f.VideoExt == "none" {
			continue
		}
		resolution := f.Resolution
		if resolution == "" {
			resolution = "unknown"
		}
		ext := f.Ext
		if ext == "" {
			ext = "mp4"
		}
		label := resolution + "." + ext
		if i, ok := index[label]; ok {
			options[i].FormatID = f.FormatID
			continue
		}
		index[label] = len(options)
		options = append(options, domain.FormatOption{Label: label, FormatID: f.FormatID})
	}
	return options, nil
}

// WithBestAudio turns a chosen video format id into a format expression
// that merges it with the best audio stream.
func WithBestAudio(formatID string) string {
	return formatID + "+bestaudio"
}
