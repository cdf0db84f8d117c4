package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/nexbridge/bridge-middleware/internal/metrics"
	apperrors "github.com/nexbridge/bridge-middleware/pkg/app/errors"
	apphttp "github.com/nexbridge/bridge-middleware/pkg/app/http"
	"github.com/nexbridge/bridge-middleware/pkg/ratelimit"
)

// RateLimit admits or rejects the request against the authenticated key's
// quota. Must run after RequireAPIKey. Rejections carry the violated
// window and a Retry-After header; the violation record is persisted off
// the request path.
func RateLimit(limiter ratelimit.Limiter, recorder ratelimit.ViolationRecorder, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, ok := APIKeyFrom(r.Context())
			if !ok {
				apphttp.DefaultErrorHandler(w, apperrors.UnAuthorizedError(nil, "API key required"))
				return
			}

			decision, err := limiter.Admit(r.Context(), key.ID, key.Quota())
			if err != nil {
				// The admission check must stay cheap; if the counter
				// backend is down we fail open rather than refuse all
				// traffic.
				logger.Error("rate limit check failed, admitting",
					zap.String("api_key_id", key.ID), zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			if decision.Allowed {
				next.ServeHTTP(w, r)
				return
			}

			metrics.RateLimitRejections.WithLabelValues(string(decision.Window)).Inc()
			logger.Warn("request rate limited",
				zap.String("api_key_id", key.ID),
				zap.String("window", string(decision.Window)),
				zap.Duration("retry_after", decision.RetryAfter))

			violation := &ratelimit.Violation{
				APIKeyID:   key.ID,
				Window:     decision.Window,
				Endpoint:   r.URL.Path,
				Remaining:  decision.Remaining[decision.Window],
				OccurredAt: time.Now(),
			}
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := recorder.RecordViolation(ctx, violation); err != nil {
					logger.Error("failed to record rate limit violation", zap.Error(err))
				}
			}()

			writeRateLimited(w, decision)
		})
	}
}

func writeRateLimited(w http.ResponseWriter, decision ratelimit.Decision) {
	retryAfter := int(decision.RetryAfter.Round(time.Second).Seconds())
	if retryAfter < 1 {
		retryAfter = 1
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error":       fmt.Sprintf("rate limit exceeded: requests per %s", decision.Window),
		"code":        http.StatusTooManyRequests,
		"window":      string(decision.Window),
		"retry_after": retryAfter,
	})
}
