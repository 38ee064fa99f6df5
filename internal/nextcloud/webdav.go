package nextcloud

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	errpkg "github.com/veranemoloko/media-downloader/internal/errors"
	"github.com/veranemoloko/media-downloader/internal/metrics"
)

const (
	methodPropfind = "PROPFIND"
	methodMkcol    = "MKCOL"
)

// EnsureDirectories creates every missing parent folder of remotePath.
// Folders that already exist are left alone.
func (s *Session) EnsureDirectories(ctx context.Context, remotePath string) error {
	segments := strings.Split(remotePath, "/")
	var accumulated []string
	for _, part := range segments[:len(segments)-1] {
		if part == "" {
			continue
		}
		accumulated = append(accumulated, part)
		current := strings.Join(accumulated, "/")
		target := s.client.davBase() + "/" + EncodePath(current)

		resp, err := s.call(ctx, methodPropfind, target, nil, http.Header{"Depth": {"0"}})
		if err != nil {
			return err
		}

		switch resp.StatusCode {
		case http.StatusOK, http.StatusMultiStatus:
			continue
		case http.StatusNotFound:
			mkcol, err := s.call(ctx, methodMkcol, target, nil, nil)
			if err != nil {
				return err
			}
			if mkcol.StatusCode != http.StatusCreated && mkcol.StatusCode != http.StatusMethodNotAllowed {
				return &errpkg.ProtocolError{Op: "create folder " + current, StatusCode: mkcol.StatusCode, Detail: mkcol.snippet()}
			}
			s.client.logger.Info("remote folder created", "path", current)
		default:
			return &errpkg.ProtocolError{Op: "access folder " + current, StatusCode: resp.StatusCode, Detail: resp.snippet()}
		}
	}
	return nil
}

// Upload streams localFile to remotePath in a single PUT after making sure
// the parent folders exist.
func (s *Session) Upload(ctx context.Context, localFile, remotePath string) error {
	if err := s.EnsureDirectories(ctx, remotePath); err != nil {
		return err
	}

	f, err := os.Open(localFile)
	if err != nil {
		return fmt.Errorf("open %s: %w", localFile, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", localFile, err)
	}

	req, err := s.newRequest(ctx, http.MethodPut, s.client.davBase()+"/"+EncodePath(remotePath), f)
	if err != nil {
		return err
	}
	req.ContentLength = info.Size()

	resp, err := s.send(req)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusNoContent {
		return &errpkg.ProtocolError{Op: "upload", StatusCode: resp.StatusCode, Detail: resp.snippet()}
	}

	metrics.UploadBytes.Add(float64(info.Size()))
	s.client.logger.Info("file uploaded", "remote_path", remotePath, "bytes", info.Size())
	return nil
}
