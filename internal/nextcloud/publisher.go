package nextcloud

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/veranemoloko/media-downloader/internal/config"
	errpkg "github.com/veranemoloko/media-downloader/internal/errors"
)

// Publisher uploads a local file into the configured folder and returns its
// public link.
type Publisher struct {
	client   *Client
	resolver *ShareResolver
	folder   string
	logger   *slog.Logger
}

// NewPublisher returns errpkg.ErrNotConfigured unless the base URL,
// username and password are all set.
func NewPublisher(cfg *config.Config, logger *slog.Logger) (*Publisher, error) {
	if !cfg.NextcloudEnabled() {
		return nil, errpkg.ErrNotConfigured
	}
	opts := ShareOptions{
		Permissions:  cfg.NextcloudPermissions,
		Password:     cfg.NextcloudSharePassword,
		Label:        cfg.NextcloudShareLabel,
		PublicUpload: cfg.NextcloudPublicUpload,
	}
	return &Publisher{
		client:   NewClient(cfg, logger),
		resolver: NewShareResolver(opts, logger),
		folder:   cfg.NextcloudUploadFolder,
		logger:   logger,
	}, nil
}

// Publish uploads localFile and resolves its share link within one session.
func (p *Publisher) Publish(ctx context.Context, localFile string) (string, error) {
	remotePath := RemotePath(p.folder, filepath.Base(localFile))

	session := p.client.NewSession()
	defer session.Close()

	if err := session.Upload(ctx, localFile, remotePath); err != nil {
		return "", fmt.Errorf("upload %s: %w", remotePath, err)
	}

	link, err := p.resolver.Resolve(ctx, session, remotePath)
	if err != nil {
		return "", fmt.Errorf("share %s: %w", remotePath, err)
	}
	p.logger.Info("file published", "remote_path", remotePath)
	return link, nil
}
