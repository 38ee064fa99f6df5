// Package nextcloud uploads files over WebDAV and publishes them through the
// OCS file sharing API.
package nextcloud

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/veranemoloko/media-downloader/internal/config"
	errpkg "github.com/veranemoloko/media-downloader/internal/errors"
)

const (
	DefaultTimeout = 30 * time.Second

	maxResponseBody = 1 << 20
	snippetLen      = 200
)

// Client holds the server address and credentials. It is safe to share;
// requests go through a Session.
type Client struct {
	BaseURL  string
	Username string
	Password string
	Timeout  time.Duration
	logger   *slog.Logger
}

func NewClient(cfg *config.Config, logger *slog.Logger) *Client {
	timeout := cfg.NextcloudTimeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		BaseURL:  strings.TrimRight(cfg.NextcloudBaseURL, "/"),
		Username: cfg.NextcloudUsername,
		Password: cfg.NextcloudPassword,
		Timeout:  timeout,
		logger:   logger,
	}
}

// NewSession opens a session with its own connection pool.
// Callers must Close it.
func (c *Client) NewSession() *Session {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = c.Timeout
	return &Session{
		client:    c,
		transport: transport,
		http:      &http.Client{Transport: transport},
	}
}

func (c *Client) davBase() string {
	return c.BaseURL + "/remote.php/dav/files/" + url.PathEscape(c.Username)
}

func (c *Client) sharesEndpoint() string {
	return c.BaseURL + "/ocs/v2.php/apps/files_sharing/api/v1/shares"
}

// Session is one authenticated conversation with the server.
type Session struct {
	client    *Client
	transport *http.Transport
	http      *http.Client
}

// Close releases idle connections.
func (s *Session) Close() {
	s.transport.CloseIdleConnections()
}

type response struct {
	StatusCode int
	Body       []byte
}

func (r *response) snippet() string {
	return errpkg.Truncate(string(r.Body), snippetLen)
}

// call performs a small request bounded by the client timeout.
func (s *Session) call(ctx context.Context, method, rawURL string, body io.Reader, header http.Header) (*response, error) {
	ctx, cancel := context.WithTimeout(ctx, s.client.Timeout)
	defer cancel()

	req, err := s.newRequest(ctx, method, rawURL, body)
	if err != nil {
		return nil, err
	}
	for k, v := range header {
		req.Header[k] = v
	}
	return s.send(req)
}

func (s *Session) newRequest(ctx context.Context, method, rawURL string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", method, err)
	}
	req.SetBasicAuth(s.client.Username, s.client.Password)
	return req, nil
}

func (s *Session) send(req *http.Request) (*response, error) {
	resp, err := s.http.Do(req)
	if err != nil {
		return nil, &errpkg.TransportError{Method: req.Method, URL: req.URL.String(), Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, &errpkg.TransportError{Method: req.Method, URL: req.URL.String(), Err: err}
	}
	s.client.logger.Debug("nextcloud response", "method", req.Method, "url", req.URL.Redacted(), "status", resp.StatusCode)
	return &response{StatusCode: resp.StatusCode, Body: data}, nil
}

// EncodePath percent-encodes every segment of a slash separated path and
// drops empty segments.
func EncodePath(p string) string {
	var parts []string
	for _, part := range strings.Split(p, "/") {
		if part == "" {
			continue
		}
		parts = append(parts, url.PathEscape(part))
	}
	return strings.Join(parts, "/")
}

// RemotePath places filename under folder. An empty folder means the root.
func RemotePath(folder, filename string) string {
	folder = strings.Trim(folder, "/")
	if folder == "" {
		return filename
	}
	return folder + "/" + filename
}
