// Package service implements the route discovery business logic.
package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/nexbridge/bridge-middleware/pkg/aggregator"
	apperrors "github.com/nexbridge/bridge-middleware/pkg/app/errors"
	"github.com/nexbridge/bridge-middleware/pkg/health"
	"github.com/nexbridge/bridge-middleware/pkg/quote"
	"github.com/nexbridge/bridge-middleware/pkg/ratelimit"
)

// Aggregator is the quote fan-out interface the service depends on.
type Aggregator interface {
	GetRankedQuotes(ctx context.Context, req *quote.Request) (*quote.RankedResult, error)
}

// HealthSource exposes the current provider breaker states.
type HealthSource interface {
	Snapshot() []health.ProviderHealth
}

// UsageReport is the per-key quota consumption view.
type UsageReport struct {
	Quota ratelimit.Quota          `json:"quota"`
	Used  map[ratelimit.Window]int `json:"used"`
}

// Service defines the route discovery interface.
type Service interface {
	DiscoverRoutes(ctx context.Context, req *quote.Request) (*quote.RankedResult, error)
	ProviderHealth(ctx context.Context) []health.ProviderHealth
	Usage(ctx context.Context, keyID string, quota ratelimit.Quota) (*UsageReport, error)
}

type quoteService struct {
	aggregator Aggregator
	health     HealthSource
	limiter    ratelimit.Limiter
	logger     *zap.Logger
}

// NewService creates the route discovery service.
func NewService(agg Aggregator, healthSource HealthSource, limiter ratelimit.Limiter, logger *zap.Logger) Service {
	return &quoteService{
		aggregator: agg,
		health:     healthSource,
		limiter:    limiter,
		logger:     logger,
	}
}

// DiscoverRoutes returns ranked quotes for the requested route. Partial
// provider failures are invisible here; only a fully empty outcome
// surfaces as an error.
func (s *quoteService) DiscoverRoutes(ctx context.Context, req *quote.Request) (*quote.RankedResult, error) {
	result, err := s.aggregator.GetRankedQuotes(ctx, req)
	if err != nil {
		switch {
		case errors.Is(err, quote.ErrMissingChain),
			errors.Is(err, quote.ErrMissingToken),
			errors.Is(err, quote.ErrInvalidAmount),
			errors.Is(err, quote.ErrInvalidWeights):
			return nil, apperrors.BadRequestError(err, err.Error())
		case errors.Is(err, aggregator.ErrNoQuotesAvailable):
			return nil, apperrors.RecoveringError(err,
				"no quotes available for this route, try again shortly")
		}
		return nil, err
	}
	return result, nil
}

func (s *quoteService) ProviderHealth(_ context.Context) []health.ProviderHealth {
	return s.health.Snapshot()
}

func (s *quoteService) Usage(ctx context.Context, keyID string, quota ratelimit.Quota) (*UsageReport, error) {
	used, err := s.limiter.Usage(ctx, keyID)
	if err != nil {
		return nil, apperrors.GeneralError(err)
	}
	return &UsageReport{Quota: quota, Used: used}, nil
}
