package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/nexbridge/bridge-middleware/pkg/health"
	"github.com/nexbridge/bridge-middleware/pkg/quote"
	"github.com/nexbridge/bridge-middleware/pkg/ratelimit"
)

const serviceName = "QuoteService"

// logService wraps Service with automatic logging of all method calls
type logService struct {
	svc    Service
	logger *zap.Logger
}

// NewLog creates a logging decorator for the quote Service.
func NewLog(svc Service, logger *zap.Logger) Service {
	return &logService{
		svc:    svc,
		logger: logger,
	}
}

func (ls *logService) DiscoverRoutes(ctx context.Context, req *quote.Request) (result *quote.RankedResult, err error) {
	start := time.Now()

	ls.logger.Info("DiscoverRoutes started",
		zap.String("service", serviceName),
		zap.String("method", "DiscoverRoutes"),
		zap.String("source_chain", req.SourceChain),
		zap.String("destination_chain", req.DestinationChain),
		zap.String("source_token", req.SourceToken),
		zap.String("destination_token", req.DestinationToken),
	)

	defer func() {
		duration := time.Since(start)

		if err != nil {
			ls.logger.Error("DiscoverRoutes failed",
				zap.String("service", serviceName),
				zap.String("method", "DiscoverRoutes"),
				zap.String("source_chain", req.SourceChain),
				zap.String("destination_chain", req.DestinationChain),
				zap.Duration("duration", duration),
				zap.Error(err),
			)
		} else {
			ls.logger.Info("DiscoverRoutes completed",
				zap.String("service", serviceName),
				zap.String("method", "DiscoverRoutes"),
				zap.String("result_id", result.ID),
				zap.Int("quote_count", len(result.Quotes)),
				zap.Duration("duration", duration),
			)
		}
	}()

	return ls.svc.DiscoverRoutes(ctx, req)
}

func (ls *logService) ProviderHealth(ctx context.Context) []health.ProviderHealth {
	return ls.svc.ProviderHealth(ctx)
}

func (ls *logService) Usage(ctx context.Context, keyID string, quota ratelimit.Quota) (report *UsageReport, err error) {
	start := time.Now()

	defer func() {
		if err != nil {
			ls.logger.Error("Usage failed",
				zap.String("service", serviceName),
				zap.String("method", "Usage"),
				zap.String("api_key_id", keyID),
				zap.Duration("duration", time.Since(start)),
				zap.Error(err),
			)
		}
	}()

	return ls.svc.Usage(ctx, keyID, quota)
}
