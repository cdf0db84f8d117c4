// Package dispatcher implements app.Runner for the webhook delivery
// sweeper process. It resumes delivery chains that a crashed API server
// left with a scheduled retry and never executed.
package dispatcher

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/nexbridge/bridge-middleware/pkg/config"
	"github.com/nexbridge/bridge-middleware/pkg/pgutil"
	"github.com/nexbridge/bridge-middleware/pkg/webhook"
	"github.com/nexbridge/bridge-middleware/pkg/webhookstore"
)

const sweepBatchSize = 100

// Server holds cfg to init the dispatcher sweeper.
type Server struct {
	cfg *config.Config
}

// NewServer initializes new dispatcher server.
func NewServer(cfg *config.Config) *Server {
	return &Server{cfg: cfg}
}

func (s *Server) Run() error {
	if s.cfg == nil {
		return fmt.Errorf("dispatcher config is nil")
	}
	cfg := s.cfg

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("setup logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting webhook dispatcher sweeper",
		zap.Duration("sweep_interval", cfg.Webhook.SweepInterval))

	db, err := pgutil.ConnectDB(&cfg.Database)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	store := webhookstore.NewStore(db)

	d := webhook.NewDispatcher(webhook.Config{
		DeliveryTimeout: cfg.Webhook.DeliveryTimeout,
		MaxAttempts:     cfg.Webhook.MaxAttempts,
		BackoffBase:     cfg.Webhook.BackoffBase,
		BackoffFactor:   cfg.Webhook.BackoffFactor,
		Workers:         cfg.Webhook.Workers,
	}, store, logger)
	d.Start(ctx)
	defer d.Stop()

	interval := cfg.Webhook.SweepInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Shutdown signal received")
			return nil
		case <-ticker.C:
			s.sweep(ctx, store, d, logger)
		}
	}
}

// sweepStore is the slice of the webhook store the sweeper reads.
type sweepStore interface {
	ListDueRetries(ctx context.Context, cutoff time.Time, limit int) ([]*webhook.DeliveryAttempt, error)
}

func (s *Server) sweep(ctx context.Context, store sweepStore, d *webhook.Dispatcher, logger *zap.Logger) {
	due, err := store.ListDueRetries(ctx, time.Now(), sweepBatchSize)
	if err != nil {
		logger.Error("sweep failed to list due retries", zap.Error(err))
		return
	}
	if len(due) == 0 {
		return
	}

	logger.Info("resuming stalled delivery chains", zap.Int("count", len(due)))
	for _, attempt := range due {
		if err := d.Resume(ctx, attempt); err != nil {
			logger.Error("failed to resume delivery chain",
				zap.Int64("attempt_id", attempt.ID), zap.Error(err))
		}
	}
}
