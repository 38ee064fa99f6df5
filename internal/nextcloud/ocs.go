package nextcloud

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	errpkg "github.com/veranemoloko/media-downloader/internal/errors"
)

// ShareTypePublicLink is the OCS share type of a public link.
const ShareTypePublicLink = 3

// ShareEntry is one share as reported by the OCS API.
type ShareEntry struct {
	ID        json.RawMessage `json:"id,omitempty"`
	ShareType int             `json:"share_type"`
	Path      string          `json:"path"`
	URL       string          `json:"url"`
}

// ShareOptions are applied when a new public link is created.
type ShareOptions struct {
	Permissions  int
	Password     string
	Label        string
	PublicUpload bool
}

type ocsEnvelope struct {
	OCS *struct {
		Meta struct {
			Status     string `json:"status"`
			StatusCode int    `json:"statuscode"`
			Message    string `json:"message"`
		} `json:"meta"`
		Data json.RawMessage `json:"data"`
	} `json:"ocs"`
}

var ocsHeader = http.Header{"Ocs-Apirequest": {"true"}}

// ListShares returns the shares of remotePath, including reshares.
func (s *Session) ListShares(ctx context.Context, remotePath string) ([]ShareEntry, error) {
	query := url.Values{
		"format":   {"json"},
		"path":     {"/" + strings.Trim(remotePath, "/")},
		"reshares": {"true"},
	}
	resp, err := s.call(ctx, http.MethodGet, s.client.sharesEndpoint()+"?"+query.Encode(), nil, ocsHeader)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, &errpkg.ProtocolError{Op: "list shares", StatusCode: resp.StatusCode, Detail: resp.snippet()}
	}
	return parseShares("list shares", resp)
}

// CreateShare creates a public link for remotePath.
func (s *Session) CreateShare(ctx context.Context, remotePath string, opts ShareOptions) (ShareEntry, error) {
	form := url.Values{
		"format":      {"json"},
		"path":        {"/" + strings.Trim(remotePath, "/")},
		"shareType":   {strconv.Itoa(ShareTypePublicLink)},
		"permissions": {strconv.Itoa(opts.Permissions)},
	}
	if opts.Password != "" {
		form.Set("password", opts.Password)
	}
	if opts.PublicUpload {
		form.Set("publicUpload", "true")
	}
	if opts.Label != "" {
		form.Set("label", opts.Label)
	}

	header := ocsHeader.Clone()
	header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.call(ctx, http.MethodPost, s.client.sharesEndpoint(), strings.NewReader(form.Encode()), header)
	if err != nil {
		return ShareEntry{}, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return ShareEntry{}, &errpkg.ProtocolError{Op: "create share", StatusCode: resp.StatusCode, Detail: resp.snippet()}
	}

	shares, err := parseShares("create share", resp)
	if err != nil {
		return ShareEntry{}, err
	}
	if len(shares) == 0 || shares[0].URL == "" {
		return ShareEntry{}, &errpkg.ProtocolError{Op: "create share", Detail: "share link missing in response"}
	}
	return shares[0], nil
}

// parseShares checks the OCS envelope and normalizes data to a list; some
// servers answer with a bare object when there is a single share.
func parseShares(op string, resp *response) ([]ShareEntry, error) {
	var env ocsEnvelope
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		return nil, &errpkg.ProtocolError{Op: op, Detail: "invalid JSON: " + resp.snippet()}
	}
	if env.OCS == nil {
		return nil, &errpkg.ProtocolError{Op: op, Detail: "response missing ocs object"}
	}
	if code := env.OCS.Meta.StatusCode; code != 100 && code != 200 {
		return nil, &errpkg.ProtocolError{
			Op:     op,
			Detail: "ocs status " + strconv.Itoa(code) + ": " + env.OCS.Meta.Message,
		}
	}

	data := bytes.TrimSpace(env.OCS.Data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		return nil, nil
	case data[0] == '{':
		var entry ShareEntry
		if err := json.Unmarshal(data, &entry); err != nil {
			return nil, &errpkg.ProtocolError{Op: op, Detail: "decode share: " + err.Error()}
		}
		return []ShareEntry{entry}, nil
	default:
		var entries []ShareEntry
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, &errpkg.ProtocolError{Op: op, Detail: "decode shares: " + err.Error()}
		}
		return entries, nil
	}
}
