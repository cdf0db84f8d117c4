// Package api implements app.Runner for the API server process.
package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/nexbridge/bridge-middleware/pkg/aggregator"
	"github.com/nexbridge/bridge-middleware/pkg/apikey"
	apphttp "github.com/nexbridge/bridge-middleware/pkg/app/http"
	"github.com/nexbridge/bridge-middleware/pkg/apikeystore"
	"github.com/nexbridge/bridge-middleware/pkg/auth"
	"github.com/nexbridge/bridge-middleware/pkg/cache"
	"github.com/nexbridge/bridge-middleware/pkg/config"
	"github.com/nexbridge/bridge-middleware/pkg/health"
	operationservice "github.com/nexbridge/bridge-middleware/pkg/operation/service"
	"github.com/nexbridge/bridge-middleware/pkg/opstore"
	"github.com/nexbridge/bridge-middleware/pkg/pgutil"
	"github.com/nexbridge/bridge-middleware/pkg/provider"
	quoteservice "github.com/nexbridge/bridge-middleware/pkg/quote/service"
	"github.com/nexbridge/bridge-middleware/pkg/ratelimit"
	"github.com/nexbridge/bridge-middleware/pkg/webhook"
	webhookservice "github.com/nexbridge/bridge-middleware/pkg/webhook/service"
	"github.com/nexbridge/bridge-middleware/pkg/webhookstore"
)

const defaultRequestTimeout = 60

// Server holds cfg to init the api server.
type Server struct {
	cfg *config.Config
}

// NewServer initializes new api server.
func NewServer(cfg *config.Config) *Server {
	return &Server{cfg: cfg}
}

func (s *Server) Run() error {
	if s.cfg == nil {
		return fmt.Errorf("api server config is nil")
	}
	cfg := s.cfg

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("setup logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting API server",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
	)

	db, err := pgutil.ConnectDB(&cfg.Database)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer func() { _ = redisClient.Close() }()
		logger.Info("Connected to redis", zap.String("addr", cfg.Redis.Addr))
	}

	catalog, err := provider.LoadCatalog(cfg.Providers.CatalogPath)
	if err != nil {
		return fmt.Errorf("load provider catalog: %w", err)
	}
	providers := catalog.Build()
	logger.Info("Provider catalog loaded", zap.Int("providers", len(providers)))

	keyStore := apikeystore.NewStore(db)
	opStore := opstore.NewStore(db)
	webhookStore := webhookstore.NewStore(db)

	registry := health.NewRegistry(health.Config{
		FailureThreshold: cfg.Health.FailureThreshold,
		SuccessThreshold: cfg.Health.SuccessThreshold,
		Cooldown:         cfg.Health.Cooldown,
	}, logger)

	limiter, err := s.buildLimiter(redisClient)
	if err != nil {
		return err
	}

	resultCache := s.buildCache(redisClient)

	agg := aggregator.New(aggregator.Config{
		ProviderTimeout: cfg.Aggregator.ProviderTimeout,
		OverallDeadline: cfg.Aggregator.OverallDeadline,
		CacheTTL:        cfg.Aggregator.CacheTTL,
	}, providers, registry, resultCache, logger)

	dispatcher := webhook.NewDispatcher(webhook.Config{
		DeliveryTimeout: cfg.Webhook.DeliveryTimeout,
		MaxAttempts:     cfg.Webhook.MaxAttempts,
		BackoffBase:     cfg.Webhook.BackoffBase,
		BackoffFactor:   cfg.Webhook.BackoffFactor,
		Workers:         cfg.Webhook.Workers,
	}, webhookStore, logger)
	dispatcher.Start(ctx)
	// Stopped explicitly after ServeAndWait returns so in-flight deliveries
	// drain before the DB closes.

	quoteSvc := quoteservice.NewLog(
		quoteservice.NewService(agg, registry, limiter, logger), logger)
	operationSvc := operationservice.NewLog(
		operationservice.NewService(opStore, agg, dispatcher, logger), logger)
	webhookSvc := webhookservice.NewLog(
		webhookservice.NewService(webhookStore, logger), logger)

	stopMetrics := s.startMetricsServer(logger)
	defer stopMetrics()

	router := s.setupRouter(keyStore, limiter, quoteSvc, operationSvc, webhookSvc, logger)

	err = apphttp.ServeAndWait(ctx, router, logger, &cfg.Server)

	dispatcher.Stop()

	return err
}

func (s *Server) buildLimiter(redisClient *redis.Client) (ratelimit.Limiter, error) {
	switch s.cfg.RateLimit.Backend {
	case "redis":
		if redisClient == nil {
			return nil, fmt.Errorf("rate_limit.backend=redis but redis is not configured")
		}
		return ratelimit.NewRedisLimiter(redisClient), nil
	case "", "memory":
		return ratelimit.NewMemoryLimiter(), nil
	default:
		return nil, fmt.Errorf("unknown rate_limit.backend %q", s.cfg.RateLimit.Backend)
	}
}

func (s *Server) buildCache(redisClient *redis.Client) cache.ResultCache {
	if redisClient != nil {
		return cache.NewRedisCache(redisClient)
	}
	return cache.NewMemoryCache()
}

func (s *Server) startMetricsServer(logger *zap.Logger) func() {
	if !s.cfg.Monitoring.Enabled {
		return func() {}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.cfg.Monitoring.MetricsPort),
		Handler: mux,
	}

	go func() {
		logger.Info("Metrics server listening", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Metrics server error", zap.Error(err))
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
}

// keyAuthStore is what the auth middleware needs from the key store: key
// resolution plus violation audit writes.
type keyAuthStore interface {
	apikey.Store
	ratelimit.ViolationRecorder
}

func (s *Server) setupRouter(
	keyStore keyAuthStore,
	limiter ratelimit.Limiter,
	quoteSvc quoteservice.Service,
	operationSvc operationservice.Service,
	webhookSvc webhookservice.Service,
	logger *zap.Logger,
) chi.Router {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(time.Second * defaultRequestTimeout))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	monitorValidator := auth.NewMonitorValidator(s.cfg.Auth.MonitorSecret, s.cfg.Auth.MonitorIssuer)

	r.Route("/v1", func(r chi.Router) {
		// Public API, behind API key auth and rate limiting.
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAPIKey(keyStore, s.cfg.Auth.APIKeyHeader, logger))
			r.Use(auth.RateLimit(limiter, keyStore, logger))

			quoteservice.RegisterRoutes(r, quoteSvc, logger)
			operationservice.RegisterRoutes(r, operationSvc, logger)
			webhookservice.RegisterRoutes(r, webhookSvc, logger)
		})

		// Status monitor push endpoint, behind bearer tokens.
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireMonitorToken(monitorValidator))
			operationservice.RegisterAdvanceRoute(r, operationSvc, logger)
		})
	})

	return r
}
