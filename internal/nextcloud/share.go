package nextcloud

import (
	"context"
	"log/slog"

	"github.com/veranemoloko/media-downloader/internal/keylock"
	"github.com/veranemoloko/media-downloader/internal/metrics"
)

// ShareAPI is the part of a Session the resolver needs.
type ShareAPI interface {
	ListShares(ctx context.Context, remotePath string) ([]ShareEntry, error)
	CreateShare(ctx context.Context, remotePath string, opts ShareOptions) (ShareEntry, error)
}

// ShareResolver returns the public link of a remote path, reusing an
// existing one when there is one. Concurrent calls for the same path are
// serialized so only one link gets created.
type ShareResolver struct {
	opts   ShareOptions
	locks  *keylock.Mutex
	logger *slog.Logger
}

func NewShareResolver(opts ShareOptions, logger *slog.Logger) *ShareResolver {
	return &ShareResolver{
		opts:   opts,
		locks:  keylock.New(),
		logger: logger,
	}
}

func (r *ShareResolver) Resolve(ctx context.Context, api ShareAPI, remotePath string) (string, error) {
	unlock := r.locks.Lock(remotePath)
	defer unlock()

	shares, err := api.ListShares(ctx, remotePath)
	if err != nil {
		return "", err
	}
	for _, share := range shares {
		if share.ShareType == ShareTypePublicLink && share.URL != "" {
			metrics.Shares.WithLabelValues("reused").Inc()
			r.logger.Debug("reusing public link", "remote_path", remotePath)
			return share.URL, nil
		}
	}

	share, err := api.CreateShare(ctx, remotePath, r.opts)
	if err != nil {
		return "", err
	}
	metrics.Shares.WithLabelValues("created").Inc()
	r.logger.Info("public link created", "remote_path", remotePath)
	return share.URL, nil
}
