package ytdlp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	errpkg "github.com/veranemoloko/media-downloader/internal/errors"
	"github.com/veranemoloko/media-downloader/internal/progress"
)

const (
	progressPrefix = "[progress] "
	infoPrefix     = "@@info "
	filePrefix     = "@@file "

	progressTemplate = "download:" + progressPrefix +
		"%(progress.status)s %(progress.downloaded_bytes)s %(progress.total_bytes)s %(progress.total_bytes_estimate)s %(info.title)s"
	infoTemplate = "video:" + infoPrefix + "%(.{id,title,ext,width,height})j"
	fileTemplate = "after_move:" + filePrefix + "%(.{filepath,width,height})j"

	tailLines  = 40
	excerptLen = 400
	maxLine    = 32 * 1024 * 1024
)

// Info is the descriptive metadata yt-dlp reports for the video.
type Info struct {
	ID     string   `json:"id"`
	Title  string   `json:"title"`
	Ext    string   `json:"ext"`
	Width  *float64 `json:"width"`
	Height *float64 `json:"height"`
}

// RequestedDownload is one file the engine wrote after post-processing.
type RequestedDownload struct {
	FilePath string   `json:"filepath"`
	Width    *float64 `json:"width"`
	Height   *float64 `json:"height"`
}

// Result of one extraction run.
type Result struct {
	Info               Info
	RequestedDownloads []RequestedDownload
}

// PrepareFilename renders OutputTemplate from the metadata the way the
// engine would name the file before post-processing.
func (r *Result) PrepareFilename(dir string) string {
	title := r.Info.Title
	if len(title) > 95 {
		title = strings.ToValidUTF8(title[:95], "")
	}
	title = strings.Map(sanitizeRune, title)
	return filepath.Join(dir, fmt.Sprintf("%s-%s.%s", title, r.Info.ID, r.Info.Ext))
}

// sanitizeRune maps the characters yt-dlp will not put in a file name to
// the full-width forms it uses instead and drops control characters.
func sanitizeRune(r rune) rune {
	switch r {
	case '/':
		return '⧸'
	case '\\':
		return '⧹'
	case '"', '*', ':', '<', '>', '?', '|':
		return r + 0xfee0
	}
	if r < 32 || r == 127 {
		return -1
	}
	return r
}

// ProgressFunc receives engine progress events.
type ProgressFunc func(progress.Event)

// Engine runs the yt-dlp binary.
type Engine struct {
	Binary string
	logger *slog.Logger
}

func NewEngine(binary string, logger *slog.Logger) *Engine {
	if binary == "" {
		binary = "yt-dlp"
	}
	return &Engine{Binary: binary, logger: logger}
}

// Extract downloads url with opts and reports progress to onProgress.
// A non-zero exit of the engine is returned as *errpkg.ExtractionError.
func (e *Engine) Extract(ctx context.Context, url string, opts ExtractionOptions, onProgress ProgressFunc) (*Result, error) {
	args := append(opts.Args(),
		"--newline",
		"--progress",
		"--no-simulate",
		"--progress-template", progressTemplate,
		"--print", infoTemplate,
		"--print", fileTemplate,
		"--", url,
	)

	result := &Result{}
	var parseErr error
	handle := func(line string) {
		switch {
		case strings.HasPrefix(line, progressPrefix):
			if ev, ok := parseProgress(strings.TrimPrefix(line, progressPrefix)); ok && onProgress != nil {
				onProgress(ev)
			}
		case strings.HasPrefix(line, infoPrefix):
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, infoPrefix)), &result.Info); err != nil && parseErr == nil {
				parseErr = fmt.Errorf("decode info record: %w", err)
			}
		case strings.HasPrefix(line, filePrefix):
			var rd RequestedDownload
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, filePrefix)), &rd); err != nil {
				if parseErr == nil {
					parseErr = fmt.Errorf("decode file record: %w", err)
				}
				return
			}
			result.RequestedDownloads = append(result.RequestedDownloads, rd)
		default:
			e.logger.Debug("yt-dlp", "line", line)
		}
	}

	stderr, err := e.run(ctx, args, handle)
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, &errpkg.ExtractionError{
				URL:     url,
				Excerpt: errpkg.Truncate(strings.TrimSpace(stderr), excerptLen),
				Err:     err,
			}
		}
		return nil, err
	}
	if parseErr != nil {
		e.logger.Warn("unexpected yt-dlp output", "url", url, "error", parseErr)
	}
	return result, nil
}

// run starts the binary, feeds every stdout line to onLine and returns the
// stderr diagnostics: the ERROR lines when there are any, otherwise the tail.
func (e *Engine) run(ctx context.Context, args []string, onLine func(string)) (string, error) {
	cmd := exec.CommandContext(ctx, e.Binary, args...)

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("setup stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return "", fmt.Errorf("setup stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("start %s: %w", e.Binary, err)
	}

	diag := &diagnostics{}
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		scan(stdoutPipe, onLine)
	}()
	go func() {
		defer wg.Done()
		scan(stderrPipe, func(line string) {
			diag.add(line)
			e.logger.Debug("yt-dlp stderr", "line", line)
		})
	}()
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		return diag.String(), err
	}
	return diag.String(), nil
}

func scan(r io.Reader, onLine func(string)) {
	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, maxLine)
	scanner.Split(splitByNewlineOrCR)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			onLine(line)
		}
	}
	// keep the pipe drained so the child never blocks on a full buffer
	_, _ = io.Copy(io.Discard, r)
}

// parseProgress reads "status downloaded total estimate title...". Missing
// numbers are printed by yt-dlp as NA and parse as zero.
func parseProgress(s string) (progress.Event, bool) {
	fields := strings.SplitN(s, " ", 5)
	if len(fields) < 4 {
		return progress.Event{}, false
	}
	ev := progress.Event{
		Status:             fields[0],
		DownloadedBytes:    parseBytes(fields[1]),
		TotalBytes:         parseBytes(fields[2]),
		TotalBytesEstimate: parseBytes(fields[3]),
	}
	if len(fields) == 5 && fields[4] != "NA" {
		ev.Title = fields[4]
	}
	return ev, true
}

func parseBytes(s string) int64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return 0
	}
	return int64(f)
}

func splitByNewlineOrCR(data []byte, atEOF bool) (advance int, token []byte, err error) {
	for i := 0; i < len(data); i++ {
		if data[i] == '\n' || data[i] == '\r' {
			if i == 0 {
				return 1, nil, nil
			}
			return i + 1, data[:i], nil
		}
	}
	if atEOF && len(data) > 0 {
		return len(data), data, nil
	}
	return 0, nil, nil
}

type diagnostics struct {
	errors []string
	tail   []string
}

func (d *diagnostics) add(line string) {
	if strings.HasPrefix(line, "ERROR") {
		d.errors = append(d.errors, line)
	}
	d.tail = append(d.tail, line)
	if len(d.tail) > tailLines {
		d.tail = d.tail[1:]
	}
}

func (d *diagnostics) String() string {
	if len(d.errors) > 0 {
		return strings.Join(d.errors, "\n")
	}
	return strings.Join(d.tail, "\n")
}
