// Package health tracks per-provider availability with a circuit breaker
// per provider: CLOSED providers take traffic, OPEN providers are excluded
// from fan-out, and after the cooldown a single HALF_OPEN probe decides
// whether the provider recovers.
package health

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nexbridge/bridge-middleware/internal/metrics"
)

// State is the breaker state of one provider.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// Config holds the thresholds shared by every provider breaker.
type Config struct {
	// FailureThreshold is the number of consecutive failures that opens
	// the breaker.
	FailureThreshold int
	// SuccessThreshold is the number of consecutive successes in HALF_OPEN
	// needed to close it again.
	SuccessThreshold int
	// Cooldown is how long an OPEN breaker refuses traffic before allowing
	// a probe.
	Cooldown time.Duration
}

// DefaultConfig returns the standard breaker thresholds.
func DefaultConfig() Config {
	return Config{FailureThreshold: 3, SuccessThreshold: 2, Cooldown: 30 * time.Second}
}

func (c Config) withDefaults() Config {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 3
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = 2
	}
	if c.Cooldown <= 0 {
		c.Cooldown = 30 * time.Second
	}
	return c
}

// ProviderHealth is a point-in-time snapshot of one provider's breaker.
type ProviderHealth struct {
	Provider             string    `json:"provider"`
	State                string    `json:"state"`
	ConsecutiveFailures  int       `json:"consecutive_failures"`
	ConsecutiveSuccesses int       `json:"consecutive_successes"`
	OpenedAt             time.Time `json:"opened_at,omitzero"`
	LastCheckedAt        time.Time `json:"last_checked_at,omitzero"`
}

// breaker is the mutable health record of a single provider. Each breaker
// has its own lock so one provider's state changes never block another's.
type breaker struct {
	mu                   sync.Mutex
	state                State
	consecutiveFailures  int
	consecutiveSuccesses int
	openedAt             time.Time
	lastCheckedAt        time.Time
	// probing is true while the single HALF_OPEN probe is in flight.
	probing bool
}

// Registry holds one breaker per provider.
type Registry struct {
	cfg    Config
	logger *zap.Logger
	now    func() time.Time

	mu       sync.RWMutex
	breakers map[string]*breaker
}

// NewRegistry creates a registry with the given thresholds.
func NewRegistry(cfg Config, logger *zap.Logger) *Registry {
	return &Registry{
		cfg:      cfg.withDefaults(),
		logger:   logger,
		now:      time.Now,
		breakers: make(map[string]*breaker),
	}
}

func (r *Registry) breakerFor(provider string) *breaker {
	r.mu.RLock()
	b, ok := r.breakers[provider]
	r.mu.RUnlock()
	if ok {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok = r.breakers[provider]; ok {
		return b
	}
	b = &breaker{}
	r.breakers[provider] = b
	return b
}

// Allow reports whether the provider may receive a fan-out call right now.
// An OPEN breaker whose cooldown has elapsed moves to HALF_OPEN and grants
// exactly one probe; concurrent callers are refused until the probe
// reports back.
func (r *Registry) Allow(provider string) bool {
	b := r.breakerFor(provider)

	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if r.now().Sub(b.openedAt) < r.cfg.Cooldown {
			return false
		}
		b.state = StateHalfOpen
		b.consecutiveSuccesses = 0
		b.probing = true
		r.logger.Info("provider breaker half-open, probing",
			zap.String("provider", provider))
		metrics.BreakerState.WithLabelValues(provider).Set(float64(StateHalfOpen))
		return true
	case StateHalfOpen:
		if b.probing {
			return false
		}
		b.probing = true
		return true
	}
	return false
}

// ReportSuccess records a successful call outcome for the provider.
func (r *Registry) ReportSuccess(provider string) {
	b := r.breakerFor(provider)

	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastCheckedAt = r.now()
	b.consecutiveFailures = 0
	b.consecutiveSuccesses++
	b.probing = false

	if b.state == StateHalfOpen && b.consecutiveSuccesses >= r.cfg.SuccessThreshold {
		b.state = StateClosed
		r.logger.Info("provider breaker closed",
			zap.String("provider", provider),
			zap.Int("consecutive_successes", b.consecutiveSuccesses))
		metrics.BreakerState.WithLabelValues(provider).Set(float64(StateClosed))
	}
}

// ReportFailure records a failed or timed-out call outcome for the
// provider. In HALF_OPEN a single failure re-opens the breaker and resets
// the cooldown.
func (r *Registry) ReportFailure(provider string) {
	b := r.breakerFor(provider)

	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastCheckedAt = r.now()
	b.consecutiveSuccesses = 0
	b.consecutiveFailures++
	b.probing = false

	shouldOpen := b.state == StateHalfOpen ||
		(b.state == StateClosed && b.consecutiveFailures >= r.cfg.FailureThreshold)
	if shouldOpen {
		b.state = StateOpen
		b.openedAt = r.now()
		r.logger.Warn("provider breaker opened",
			zap.String("provider", provider),
			zap.Int("consecutive_failures", b.consecutiveFailures))
		metrics.BreakerState.WithLabelValues(provider).Set(float64(StateOpen))
	}
}

// Snapshot returns the current health of every known provider, ordered by
// nothing in particular.
func (r *Registry) Snapshot() []ProviderHealth {
	r.mu.RLock()
	names := make([]string, 0, len(r.breakers))
	refs := make([]*breaker, 0, len(r.breakers))
	for name, b := range r.breakers {
		names = append(names, name)
		refs = append(refs, b)
	}
	r.mu.RUnlock()

	out := make([]ProviderHealth, len(refs))
	for i, b := range refs {
		b.mu.Lock()
		out[i] = ProviderHealth{
			Provider:             names[i],
			State:                b.state.String(),
			ConsecutiveFailures:  b.consecutiveFailures,
			ConsecutiveSuccesses: b.consecutiveSuccesses,
			OpenedAt:             b.openedAt,
			LastCheckedAt:        b.lastCheckedAt,
		}
		b.mu.Unlock()
	}
	return out
}
