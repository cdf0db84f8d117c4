// Package aggregator fans quote requests out to the eligible upstream
// providers, ranks the surviving quotes, and caches the result.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/nexbridge/bridge-middleware/internal/metrics"
	"github.com/nexbridge/bridge-middleware/pkg/cache"
	"github.com/nexbridge/bridge-middleware/pkg/health"
	"github.com/nexbridge/bridge-middleware/pkg/provider"
	"github.com/nexbridge/bridge-middleware/pkg/quote"
	"github.com/nexbridge/bridge-middleware/pkg/ranking"
)

// ErrNoQuotesAvailable means every eligible provider failed, timed out, or
// returned an unusable quote. Callers should treat it as retryable.
var ErrNoQuotesAvailable = errors.New("no quotes available for this route")

const resultKeyPrefix = "result:"

// Config holds the fan-out budgets and cache lifetime.
type Config struct {
	// ProviderTimeout bounds a single upstream call.
	ProviderTimeout time.Duration
	// OverallDeadline bounds the whole fan-out, cap on every provider call.
	OverallDeadline time.Duration
	// CacheTTL is the upper bound on how long a ranked result stays
	// servable from cache.
	CacheTTL time.Duration
}

func (c Config) withDefaults() Config {
	if c.ProviderTimeout <= 0 {
		c.ProviderTimeout = 3 * time.Second
	}
	if c.OverallDeadline <= 0 {
		c.OverallDeadline = 5 * time.Second
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 30 * time.Second
	}
	return c
}

// Aggregator coordinates providers, health state, ranking, and the result
// cache behind a single GetRankedQuotes call.
type Aggregator struct {
	cfg       Config
	providers []provider.Provider
	health    *health.Registry
	cache     cache.ResultCache
	logger    *zap.Logger

	// flights coalesces concurrent identical requests onto one fan-out.
	flights singleflight.Group

	now   func() time.Time
	newID func() string
}

// New creates an aggregator over the given provider set.
func New(cfg Config, providers []provider.Provider, registry *health.Registry, resultCache cache.ResultCache, logger *zap.Logger) *Aggregator {
	return &Aggregator{
		cfg:       cfg.withDefaults(),
		providers: providers,
		health:    registry,
		cache:     resultCache,
		logger:    logger,
		now:       time.Now,
		newID:     func() string { return uuid.NewString() },
	}
}

// GetRankedQuotes returns the ranked quotes for the request, serving from
// cache when a fresh result exists and otherwise fanning out to every
// eligible provider. Concurrent identical requests share one fan-out.
func (a *Aggregator) GetRankedQuotes(ctx context.Context, req *quote.Request) (*quote.RankedResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	fingerprint := req.Fingerprint()

	if cached, err := a.cache.Get(ctx, fingerprint); err == nil {
		if !cached.Expired(a.now()) {
			metrics.CacheRequestsTotal.WithLabelValues("hit").Inc()
			metrics.QuoteRequestsTotal.WithLabelValues("cache_hit").Inc()
			return cached, nil
		}
	} else if !errors.Is(err, cache.ErrMiss) {
		// Cache trouble is never fatal for quote requests.
		a.logger.Warn("result cache lookup failed", zap.Error(err))
	}
	metrics.CacheRequestsTotal.WithLabelValues("miss").Inc()

	resCh := a.flights.DoChan(fingerprint, func() (any, error) {
		// The flight outlives any one caller; it runs on its own deadline
		// so a cancelled joiner cannot kill the shared fan-out.
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.OverallDeadline)
		defer cancel()
		return a.aggregate(flightCtx, req, fingerprint)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-resCh:
		if res.Err != nil {
			if errors.Is(res.Err, ErrNoQuotesAvailable) {
				metrics.QuoteRequestsTotal.WithLabelValues("no_quotes").Inc()
			} else {
				metrics.QuoteRequestsTotal.WithLabelValues("error").Inc()
			}
			return nil, res.Err
		}
		metrics.QuoteRequestsTotal.WithLabelValues("success").Inc()
		return res.Val.(*quote.RankedResult), nil
	}
}

// GetResult fetches a previously returned ranked result by its ID. Used
// when an operation is created from a chosen quote.
func (a *Aggregator) GetResult(ctx context.Context, resultID string) (*quote.RankedResult, error) {
	result, err := a.cache.Get(ctx, resultKeyPrefix+resultID)
	if err != nil {
		if errors.Is(err, cache.ErrMiss) {
			return nil, quote.ErrResultExpired
		}
		return nil, fmt.Errorf("result lookup: %w", err)
	}
	if result.Expired(a.now()) {
		return nil, quote.ErrResultExpired
	}
	return result, nil
}

type providerOutcome struct {
	provider string
	quote    *quote.Quote
	err      error
}

func (a *Aggregator) aggregate(ctx context.Context, req *quote.Request, fingerprint string) (*quote.RankedResult, error) {
	eligible := a.eligibleProviders(req)
	if len(eligible) == 0 {
		a.logger.Warn("no eligible providers for route",
			zap.String("source_chain", req.SourceChain),
			zap.String("destination_chain", req.DestinationChain))
		return nil, ErrNoQuotesAvailable
	}

	outcomes := make(chan providerOutcome, len(eligible))
	for _, p := range eligible {
		go func(p provider.Provider) {
			q, err := a.callProvider(ctx, p, req)
			outcomes <- providerOutcome{provider: p.Name(), quote: q, err: err}
		}(p)
	}

	// Every launched call reports exactly one outcome; a provider that
	// outlives the overall deadline surfaces as a context error here.
	quotes := make([]quote.Quote, 0, len(eligible))
	for range eligible {
		outcome := <-outcomes
		if outcome.err != nil {
			a.health.ReportFailure(outcome.provider)
			metrics.ProviderCallsTotal.WithLabelValues(outcome.provider, "failure").Inc()
			a.logger.Warn("provider call failed",
				zap.String("provider", outcome.provider), zap.Error(outcome.err))
			continue
		}

		a.health.ReportSuccess(outcome.provider)
		if err := outcome.quote.Validate(); err != nil {
			// The provider answered, so its health is fine; the quote is
			// just unusable.
			metrics.ProviderCallsTotal.WithLabelValues(outcome.provider, "invalid").Inc()
			a.logger.Warn("discarding invalid quote",
				zap.String("provider", outcome.provider), zap.Error(err))
			continue
		}
		if !outcome.quote.InBounds(req.Amount) {
			metrics.ProviderCallsTotal.WithLabelValues(outcome.provider, "invalid").Inc()
			a.logger.Warn("discarding quote whose amount bounds exclude the request",
				zap.String("provider", outcome.provider),
				zap.String("amount", req.Amount.String()))
			continue
		}
		metrics.ProviderCallsTotal.WithLabelValues(outcome.provider, "success").Inc()
		quotes = append(quotes, *outcome.quote)
	}

	if len(quotes) == 0 {
		return nil, ErrNoQuotesAvailable
	}

	result := a.buildResult(quotes, req, fingerprint)
	a.storeResult(ctx, result)
	return result, nil
}

func (a *Aggregator) eligibleProviders(req *quote.Request) []provider.Provider {
	eligible := make([]provider.Provider, 0, len(a.providers))
	for _, p := range a.providers {
		if !p.SupportsRoute(req.SourceChain, req.DestinationChain) {
			continue
		}
		if !a.health.Allow(p.Name()) {
			a.logger.Debug("provider excluded by breaker", zap.String("provider", p.Name()))
			continue
		}
		eligible = append(eligible, p)
	}
	return eligible
}

func (a *Aggregator) callProvider(ctx context.Context, p provider.Provider, req *quote.Request) (*quote.Quote, error) {
	timeout := a.cfg.ProviderTimeout
	if tp, ok := p.(interface{ Timeout() time.Duration }); ok && tp.Timeout() > 0 && tp.Timeout() < timeout {
		timeout = tp.Timeout()
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := a.now()
	q, err := p.Quote(callCtx, req)
	metrics.ProviderCallDuration.WithLabelValues(p.Name()).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	if q == nil {
		return nil, fmt.Errorf("provider %s returned no quote", p.Name())
	}
	return q, nil
}

func (a *Aggregator) buildResult(quotes []quote.Quote, req *quote.Request, fingerprint string) *quote.RankedResult {
	now := a.now()
	expiresAt := now.Add(a.cfg.CacheTTL)
	for _, q := range quotes {
		// A result must not outlive its shortest-lived quote.
		if !q.ExpiresAt.IsZero() && q.ExpiresAt.Before(expiresAt) {
			expiresAt = q.ExpiresAt
		}
	}

	return &quote.RankedResult{
		ID:          a.newID(),
		Fingerprint: fingerprint,
		Request:     *req,
		Quotes:      ranking.Rank(quotes, req.Weighting()),
		CreatedAt:   now,
		ExpiresAt:   expiresAt,
	}
}

func (a *Aggregator) storeResult(ctx context.Context, result *quote.RankedResult) {
	ttl := result.ExpiresAt.Sub(a.now())
	if ttl <= 0 {
		return
	}
	// Stored under the fingerprint for repeat requests and under the result
	// ID so operation creation can resolve a chosen quote later.
	if err := a.cache.Set(ctx, result.Fingerprint, result, ttl); err != nil {
		a.logger.Warn("result cache store failed", zap.Error(err))
	}
	if err := a.cache.Set(ctx, resultKeyPrefix+result.ID, result, ttl); err != nil {
		a.logger.Warn("result cache store failed", zap.Error(err))
	}
}
