package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/nexbridge/bridge-middleware/pkg/operation"
)

const serviceName = "OperationService"

// logService wraps Service with automatic logging of all method calls
type logService struct {
	svc    Service
	logger *zap.Logger
}

// NewLog creates a logging decorator for the operation Service.
// It logs method entry/exit, duration, and errors.
func NewLog(svc Service, logger *zap.Logger) Service {
	return &logService{
		svc:    svc,
		logger: logger,
	}
}

func (ls *logService) Create(ctx context.Context, req *CreateRequest) (op *operation.Operation, err error) {
	start := time.Now()

	ls.logger.Info("Create started",
		zap.String("service", serviceName),
		zap.String("method", "Create"),
		zap.String("quote_result_id", req.QuoteResultID),
		zap.Int("quote_index", req.QuoteIndex),
	)

	defer func() {
		duration := time.Since(start)

		if err != nil {
			ls.logger.Error("Create failed",
				zap.String("service", serviceName),
				zap.String("method", "Create"),
				zap.String("quote_result_id", req.QuoteResultID),
				zap.Duration("duration", duration),
				zap.Error(err),
			)
		} else {
			ls.logger.Info("Create completed",
				zap.String("service", serviceName),
				zap.String("method", "Create"),
				zap.String("operation_id", op.ID),
				zap.String("provider", op.Provider),
				zap.Duration("duration", duration),
			)
		}
	}()

	return ls.svc.Create(ctx, req)
}

func (ls *logService) Get(ctx context.Context, id string) (op *operation.Operation, err error) {
	start := time.Now()

	defer func() {
		duration := time.Since(start)

		if err != nil {
			ls.logger.Error("Get failed",
				zap.String("service", serviceName),
				zap.String("method", "Get"),
				zap.String("operation_id", id),
				zap.Duration("duration", duration),
				zap.Error(err),
			)
		} else {
			ls.logger.Debug("Get completed",
				zap.String("service", serviceName),
				zap.String("method", "Get"),
				zap.String("operation_id", id),
				zap.Duration("duration", duration),
			)
		}
	}()

	return ls.svc.Get(ctx, id)
}

func (ls *logService) Advance(ctx context.Context, id string, req *AdvanceRequest) (op *operation.Operation, err error) {
	start := time.Now()

	ls.logger.Info("Advance started",
		zap.String("service", serviceName),
		zap.String("method", "Advance"),
		zap.String("operation_id", id),
		zap.String("to", string(req.Status)),
	)

	defer func() {
		duration := time.Since(start)

		if err != nil {
			ls.logger.Error("Advance failed",
				zap.String("service", serviceName),
				zap.String("method", "Advance"),
				zap.String("operation_id", id),
				zap.String("to", string(req.Status)),
				zap.Duration("duration", duration),
				zap.Error(err),
			)
		} else {
			ls.logger.Info("Advance completed",
				zap.String("service", serviceName),
				zap.String("method", "Advance"),
				zap.String("operation_id", id),
				zap.String("status", string(op.Status)),
				zap.Duration("duration", duration),
			)
		}
	}()

	return ls.svc.Advance(ctx, id, req)
}
