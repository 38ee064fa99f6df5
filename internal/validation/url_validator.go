package validation

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"

	errpkg "github.com/veranemoloko/media-downloader/internal/errors"
)

// New returns a validator with the media_url tag registered.
func New() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("media_url", validateMediaURL)
	return v
}

// Policy rejects URLs before any network work begins.
type Policy struct {
	blacklist []string
}

// NewPolicy normalizes the blacklisted hosts the same way request hosts are
// normalized. Empty entries are dropped.
func NewPolicy(blacklist []string) *Policy {
	p := &Policy{}
	for _, host := range blacklist {
		host = normalizeHost(host)
		if host != "" {
			p.blacklist = append(p.blacklist, host)
		}
	}
	return p
}

// Check parses raw and returns the URL when it is allowed. It fails with
// errpkg.ErrInvalidURL when there is no scheme and with a
// *errpkg.HostBlockedError when the host is, or is a subdomain of, a
// blacklisted host.
func (p *Policy) Check(raw string) (*url.URL, error) {
	u, err := parseMediaURL(raw)
	if err != nil {
		return nil, err
	}

	host := normalizeHost(u.Hostname())
	for _, blocked := range p.blacklist {
		if host == blocked || strings.HasSuffix(host, "."+blocked) {
			return nil, &errpkg.HostBlockedError{Host: host}
		}
	}
	return u, nil
}

// normalizeHost lower-cases host and drops the trailing dot of a fully
// qualified name.
func normalizeHost(host string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(host)), ".")
}

func parseMediaURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errpkg.ErrInvalidURL
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errpkg.ErrInvalidURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errpkg.ErrInvalidURL
	}
	return u, nil
}

func validateMediaURL(fl validator.FieldLevel) bool {
	_, err := parseMediaURL(fl.Field().String())
	return err == nil
}
