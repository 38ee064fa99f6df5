package service

import (
	"bytes"
	"fmt"
	"log/slog"
	"path/filepath"

	errpkg "github.com/veranemoloko/media-downloader/internal/errors"
	"github.com/veranemoloko/media-downloader/internal/storage"
)

// CookieService replaces the cookie file handed to the extraction engine.
type CookieService struct {
	files  *storage.FileStorage
	name   string
	logger *slog.Logger
}

func NewCookieService(cookiesFile string, logger *slog.Logger) *CookieService {
	return &CookieService{
		files:  storage.NewFileStorage(filepath.Dir(cookiesFile)),
		name:   filepath.Base(cookiesFile),
		logger: logger,
	}
}

// SaveCookies trims payload and writes it with a trailing newline.
func (s *CookieService) SaveCookies(payload []byte) error {
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 {
		return errpkg.ErrEmptyCookies
	}

	data := make([]byte, 0, len(payload)+1)
	data = append(append(data, payload...), '\n')
	if err := s.files.WriteFile(s.name, data, 0o600); err != nil {
		return fmt.Errorf("couldn't save cookies: %w", err)
	}
	s.logger.Info("cookies saved", "path", filepath.Join(s.files.Dir(), s.name), "bytes", len(data))
	return nil
}
