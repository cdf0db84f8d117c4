// Package auth provides the request authentication middleware: API key
// resolution for public endpoints and bearer tokens for the internal
// status monitor.
package auth

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/nexbridge/bridge-middleware/pkg/apikey"
	apperrors "github.com/nexbridge/bridge-middleware/pkg/app/errors"
	apphttp "github.com/nexbridge/bridge-middleware/pkg/app/http"
)

// DefaultAPIKeyHeader is used when no header name is configured.
const DefaultAPIKeyHeader = "X-API-Key"

// RequireAPIKey resolves the caller's API key from the request header,
// rejects missing/unknown/revoked keys, and stores the key in the request
// context for downstream middleware and handlers. Usage accounting is
// best-effort and never blocks the request.
func RequireAPIKey(store apikey.Store, header string, logger *zap.Logger) func(http.Handler) http.Handler {
	if header == "" {
		header = DefaultAPIKeyHeader
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get(header)
			if raw == "" {
				apphttp.DefaultErrorHandler(w, apperrors.UnAuthorizedError(nil, "API key required"))
				return
			}

			key, err := store.GetKeyByHash(r.Context(), apikey.HashKey(raw))
			if err != nil {
				if errors.Is(err, apikey.ErrKeyNotFound) {
					apphttp.DefaultErrorHandler(w, apperrors.UnAuthorizedError(err, "invalid API key"))
					return
				}
				logger.Error("API key lookup failed", zap.Error(err))
				apphttp.DefaultErrorHandler(w, apperrors.GeneralError(err))
				return
			}
			if !key.Active {
				apphttp.DefaultErrorHandler(w, apperrors.ForbiddenError(nil, "API key revoked"))
				return
			}

			go func() {
				// The request context ends with the response; accounting
				// gets its own deadline.
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := store.TouchUsage(ctx, key.ID, time.Now()); err != nil {
					logger.Debug("usage accounting failed",
						zap.String("api_key_id", key.ID), zap.Error(err))
				}
			}()

			next.ServeHTTP(w, r.WithContext(WithAPIKey(r.Context(), key)))
		})
	}
}
