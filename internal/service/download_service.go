package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/veranemoloko/media-downloader/internal/delivery"
	"github.com/veranemoloko/media-downloader/internal/domain"
	errpkg "github.com/veranemoloko/media-downloader/internal/errors"
	"github.com/veranemoloko/media-downloader/internal/metrics"
	"github.com/veranemoloko/media-downloader/internal/progress"
	"github.com/veranemoloko/media-downloader/internal/ytdlp"
)

// StatusProcessing is shown while the converter runs.
const StatusProcessing = "Processing file with ffmpeg..."

// Extractor downloads media for a URL.
type Extractor interface {
	Extract(ctx context.Context, url string, opts ytdlp.ExtractionOptions, onProgress ytdlp.ProgressFunc) (*ytdlp.Result, error)
}

// Converter re-encodes a downloaded video.
type Converter interface {
	Convert(ctx context.Context, src string) (string, error)
}

// ProgressTracker receives engine progress and forgets keys when a run ends.
type ProgressTracker interface {
	Observe(ctx context.Context, key string, ev progress.Event)
	Done(key string)
}

// StatusNotifier shows a status line for a progress key.
type StatusNotifier interface {
	NotifyStatus(ctx context.Context, key, text string) error
}

// DownloadService runs one request end to end: extract, convert, deliver,
// and remove every intermediate file.
type DownloadService struct {
	resolver  *ytdlp.Resolver
	extractor Extractor
	converter Converter
	deliverer delivery.Deliverer
	tracker   ProgressTracker
	status    StatusNotifier
	logger    *slog.Logger
}

func NewDownloadService(
	resolver *ytdlp.Resolver,
	extractor Extractor,
	converter Converter,
	deliverer delivery.Deliverer,
	tracker ProgressTracker,
	status StatusNotifier,
	logger *slog.Logger,
) *DownloadService {
	return &DownloadService{
		resolver:  resolver,
		extractor: extractor,
		converter: converter,
		deliverer: deliverer,
		tracker:   tracker,
		status:    status,
		logger:    logger,
	}
}

// Run processes req. Raw and converted files are gone when it returns,
// whatever the outcome.
func (s *DownloadService) Run(ctx context.Context, req domain.DownloadRequest) (domain.DownloadOutcome, error) {
	u, err := url.Parse(req.URL)
	if err != nil {
		return domain.DownloadOutcome{}, fmt.Errorf("%w: %v", errpkg.ErrInvalidURL, err)
	}

	workDir := s.resolver.WorkDir(req)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return domain.DownloadOutcome{}, fmt.Errorf("create output dir: %w", err)
	}
	if workDir != s.resolver.OutputDir() {
		defer func() {
			if err := os.RemoveAll(workDir); err != nil {
				s.logger.Warn("cleanup failed", "path", workDir, "error", err)
			}
		}()
	}

	defer s.tracker.Done(req.ProgressKey)

	var rawFile, finalFile string
	defer func() { s.cleanup(rawFile, finalFile) }()

	opts := s.resolver.Resolve(req, u.Hostname())
	log := s.logger.With("url", req.URL, "mode", req.Mode, "key", req.ProgressKey)
	log.Info("download started", "format", opts.Format)

	start := time.Now()
	result, err := s.extractor.Extract(ctx, req.URL, opts, func(ev progress.Event) {
		s.tracker.Observe(ctx, req.ProgressKey, ev)
	})
	metrics.ExtractionDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ExtractionsFailed.Inc()
		return domain.DownloadOutcome{}, fmt.Errorf("extract: %w", err)
	}

	rawFile = downloadedFile(result, workDir, req.Mode == domain.ModeAudio)
	if rawFile == "" {
		return domain.DownloadOutcome{}, errpkg.ErrNoDownloadPath
	}

	var dims *domain.Dimensions
	if req.Mode == domain.ModeAudio {
		finalFile = rawFile
	} else {
		if err := s.status.NotifyStatus(ctx, req.ProgressKey, StatusProcessing); err != nil {
			log.Warn("status notification failed", "error", err)
		}
		finalFile, err = s.converter.Convert(ctx, rawFile)
		if err != nil {
			return domain.DownloadOutcome{}, fmt.Errorf("convert: %w", err)
		}
		dims = dimensions(result)
	}

	receipt, err := s.deliverer.Deliver(ctx, domain.Deliverable{
		Request:    req,
		Path:       finalFile,
		Dimensions: dims,
		Title:      result.Info.Title,
	})
	if err != nil {
		return domain.DownloadOutcome{}, fmt.Errorf("deliver: %w", err)
	}

	log.Info("download finished", "target", receipt.Target, "duration", time.Since(start))
	return domain.DownloadOutcome{
		LocalPath:  finalFile,
		Dimensions: dims,
		Title:      result.Info.Title,
		Delivery:   receipt,
	}, nil
}

// cleanup removes each distinct path once. Failures are only logged.
func (s *DownloadService) cleanup(paths ...string) {
	seen := make(map[string]bool, len(paths))
	for _, p := range paths {
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("cleanup failed", "path", p, "error", err)
		}
	}
}

// downloadedFile prefers the path the engine reported after post-processing
// and otherwise renders the output template from the metadata.
func downloadedFile(result *ytdlp.Result, outputDir string, audio bool) string {
	for _, rd := range result.RequestedDownloads {
		if rd.FilePath != "" {
			return rd.FilePath
		}
	}
	if result.Info.ID == "" && result.Info.Title == "" {
		return ""
	}
	name := result.PrepareFilename(outputDir)
	if audio {
		name = strings.TrimSuffix(name, filepath.Ext(name)) + ".mp3"
	}
	return name
}

// dimensions takes width and height from the video metadata, falling back
// per field to the first download record.
func dimensions(result *ytdlp.Result) *domain.Dimensions {
	width, height := result.Info.Width, result.Info.Height
	if len(result.RequestedDownloads) > 0 {
		first := result.RequestedDownloads[0]
		if width == nil || *width == 0 {
			width = first.Width
		}
		if height == nil || *height == 0 {
			height = first.Height
		}
	}
	if width == nil || height == nil || *width <= 0 || *height <= 0 {
		return nil
	}
	return &domain.Dimensions{Width: int(*width), Height: int(*height)}
}

// UserMessage maps a failed run to the text shown to the requester.
func UserMessage(err error, maxFilesize int64) string {
	var extErr *errpkg.ExtractionError
	if errors.As(err, &extErr) {
		return "Invalid URL or download error"
	}
	mb := int64(math.Round(float64(maxFilesize) / 1_000_000))
	return fmt.Sprintf("There was an error downloading your video, make sure it doesn't exceed *%dMB*", mb)
}
