// Package delivery hands a finished file to its destination: a local
// directory served over HTTP, or a public link in remote storage.
package delivery

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"

	"github.com/veranemoloko/media-downloader/internal/config"
	"github.com/veranemoloko/media-downloader/internal/domain"
	errpkg "github.com/veranemoloko/media-downloader/internal/errors"
	"github.com/veranemoloko/media-downloader/internal/metrics"
	"github.com/veranemoloko/media-downloader/internal/nextcloud"
	"github.com/veranemoloko/media-downloader/internal/storage"
)

const (
	TargetInline = "inline"
	TargetRemote = "remote"

	// FilesRoute is where inline deliveries are served.
	FilesRoute = "/files/"
)

// Deliverer hands a deliverable to its destination.
type Deliverer interface {
	Deliver(ctx context.Context, d domain.Deliverable) (domain.DeliveryReceipt, error)
}

// Inline copies the deliverable into the delivery directory.
type Inline struct {
	files  *storage.FileStorage
	logger *slog.Logger
}

func NewInline(files *storage.FileStorage, logger *slog.Logger) *Inline {
	return &Inline{files: files, logger: logger}
}

func (d *Inline) Deliver(ctx context.Context, dl domain.Deliverable) (domain.DeliveryReceipt, error) {
	if err := ctx.Err(); err != nil {
		return domain.DeliveryReceipt{}, &errpkg.DeliveryError{Target: TargetInline, Err: err}
	}

	if name, ok := d.alreadyDelivered(dl.Path); ok {
		metrics.Deliveries.WithLabelValues(TargetInline).Inc()
		d.logger.Info("file already delivered", "target", TargetInline, "name", name)
		return domain.DeliveryReceipt{Target: TargetInline, Location: FilesRoute + url.PathEscape(name)}, nil
	}

	name, n, err := d.files.Import(dl.Path)
	if err != nil {
		return domain.DeliveryReceipt{}, &errpkg.DeliveryError{Target: TargetInline, Err: err}
	}

	metrics.Deliveries.WithLabelValues(TargetInline).Inc()
	d.logger.Info("file delivered", "target", TargetInline, "name", name, "bytes", n)
	return domain.DeliveryReceipt{Target: TargetInline, Location: FilesRoute + url.PathEscape(name)}, nil
}

// alreadyDelivered reports whether a file with the same name and size as
// src is already in the delivery directory. Names carry the video id.
func (d *Inline) alreadyDelivered(src string) (string, bool) {
	name := filepath.Base(src)
	if !d.files.FileExists(name) {
		return "", false
	}
	info, err := os.Stat(src)
	if err != nil {
		return "", false
	}
	size, err := d.files.GetFileSize(name)
	return name, err == nil && size == info.Size()
}

// Publisher uploads a local file and returns a public link to it.
type Publisher interface {
	Publish(ctx context.Context, localFile string) (string, error)
}

// Remote publishes the deliverable to remote storage.
type Remote struct {
	publisher Publisher
	logger    *slog.Logger
}

func NewRemote(publisher Publisher, logger *slog.Logger) *Remote {
	return &Remote{publisher: publisher, logger: logger}
}

func (d *Remote) Deliver(ctx context.Context, dl domain.Deliverable) (domain.DeliveryReceipt, error) {
	link, err := d.publisher.Publish(ctx, dl.Path)
	if err != nil {
		return domain.DeliveryReceipt{}, &errpkg.DeliveryError{Target: TargetRemote, Err: err}
	}

	metrics.Deliveries.WithLabelValues(TargetRemote).Inc()
	d.logger.Info("file delivered", "target", TargetRemote, "title", dl.Title)
	return domain.DeliveryReceipt{Target: TargetRemote, Location: link}, nil
}

// Auto picks Remote when Nextcloud credentials are configured and Inline otherwise.
func Auto(cfg *config.Config, files *storage.FileStorage, logger *slog.Logger) (Deliverer, error) {
	if !cfg.NextcloudEnabled() {
		logger.Info("remote storage not configured, delivering inline", "dir", files.Dir())
		return NewInline(files, logger), nil
	}

	publisher, err := nextcloud.NewPublisher(cfg, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("delivering to remote storage", "base_url", cfg.NextcloudBaseURL, "folder", cfg.NextcloudUploadFolder)
	return NewRemote(publisher, logger), nil
}
