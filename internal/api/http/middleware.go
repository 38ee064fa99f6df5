package http

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/veranemoloko/media-downloader/internal/config"
	errpkg "github.com/veranemoloko/media-downloader/internal/errors"
)

// RequesterHeader carries the numeric id of the user a request is made for.
const RequesterHeader = "X-Requester-ID"

type requesterKey struct{}

// RequesterID returns the id stored by Authorize.
func RequesterID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(requesterKey{}).(int64)
	return id, ok
}

// Authorize checks the optional bearer token and the requester allow list.
// An empty token disables the token check; an empty list allows every id.
func Authorize(token string, admins config.IDList, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token != "" {
				got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
				if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
					writeError(w, http.StatusUnauthorized, "unauthorized")
					return
				}
			}

			var id int64
			if raw := strings.TrimSpace(r.Header.Get(RequesterHeader)); raw != "" {
				parsed, err := strconv.ParseInt(raw, 10, 64)
				if err != nil {
					writeError(w, http.StatusBadRequest, "invalid "+RequesterHeader)
					return
				}
				id = parsed
			} else if len(admins) > 0 {
				writeError(w, http.StatusForbidden, errpkg.ErrUnauthorized.Error())
				return
			}

			if !admins.Allows(id) {
				logger.Warn("requester rejected", "requester_id", id, "path", r.URL.Path)
				writeError(w, http.StatusForbidden, errpkg.ErrUnauthorized.Error())
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requesterKey{}, id)))
		})
	}
}
