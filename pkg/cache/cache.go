// Package cache provides the ranked-result cache. A miss is never an error
// condition for callers; the aggregator recomputes on any Get failure.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/nexbridge/bridge-middleware/pkg/quote"
)

var ErrMiss = errors.New("cache miss")

// ResultCache stores ranked results keyed by request fingerprint (and by
// result ID for operation creation lookups).
type ResultCache interface {
	Get(ctx context.Context, key string) (*quote.RankedResult, error)
	Set(ctx context.Context, key string, result *quote.RankedResult, ttl time.Duration) error
}
