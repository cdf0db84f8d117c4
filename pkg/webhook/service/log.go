package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/nexbridge/bridge-middleware/pkg/webhook"
)

const serviceName = "SubscriptionService"

// logService wraps Service with automatic logging of all method calls
type logService struct {
	svc    Service
	logger *zap.Logger
}

// NewLog creates a logging decorator for the subscription Service.
func NewLog(svc Service, logger *zap.Logger) Service {
	return &logService{
		svc:    svc,
		logger: logger,
	}
}

func (ls *logService) Register(ctx context.Context, req *RegisterRequest) (sub *webhook.Subscription, err error) {
	start := time.Now()

	ls.logger.Info("Register started",
		zap.String("service", serviceName),
		zap.String("method", "Register"),
		zap.String("url", req.URL),
		zap.Strings("events", req.Events),
	)

	defer func() {
		duration := time.Since(start)

		if err != nil {
			ls.logger.Error("Register failed",
				zap.String("service", serviceName),
				zap.String("method", "Register"),
				zap.Duration("duration", duration),
				zap.Error(err),
			)
		} else {
			ls.logger.Info("Register completed",
				zap.String("service", serviceName),
				zap.String("method", "Register"),
				zap.String("subscription_id", sub.ID),
				zap.Duration("duration", duration),
			)
		}
	}()

	return ls.svc.Register(ctx, req)
}

func (ls *logService) Get(ctx context.Context, id string) (sub *webhook.Subscription, err error) {
	start := time.Now()

	defer func() {
		if err != nil {
			ls.logger.Error("Get failed",
				zap.String("service", serviceName),
				zap.String("method", "Get"),
				zap.String("subscription_id", id),
				zap.Duration("duration", time.Since(start)),
				zap.Error(err),
			)
		}
	}()

	return ls.svc.Get(ctx, id)
}

func (ls *logService) Deactivate(ctx context.Context, id string) (err error) {
	start := time.Now()

	defer func() {
		duration := time.Since(start)

		if err != nil {
			ls.logger.Error("Deactivate failed",
				zap.String("service", serviceName),
				zap.String("method", "Deactivate"),
				zap.String("subscription_id", id),
				zap.Duration("duration", duration),
				zap.Error(err),
			)
		} else {
			ls.logger.Info("Deactivate completed",
				zap.String("service", serviceName),
				zap.String("method", "Deactivate"),
				zap.String("subscription_id", id),
				zap.Duration("duration", duration),
			)
		}
	}()

	return ls.svc.Deactivate(ctx, id)
}

func (ls *logService) ListDeliveries(ctx context.Context, subscriptionID string, limit int) (attempts []*webhook.DeliveryAttempt, err error) {
	start := time.Now()

	defer func() {
		if err != nil {
			ls.logger.Error("ListDeliveries failed",
				zap.String("service", serviceName),
				zap.String("method", "ListDeliveries"),
				zap.String("subscription_id", subscriptionID),
				zap.Duration("duration", time.Since(start)),
				zap.Error(err),
			)
		}
	}()

	return ls.svc.ListDeliveries(ctx, subscriptionID, limit)
}
