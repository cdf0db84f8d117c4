package ratelimit

import (
	"context"
	"sync"
	"time"
)

// counter tracks one key's consumption in one window.
type counter struct {
	start time.Time
	count int
}

// keyCounters holds the three window counters for one API key. Each key
// has its own lock; one key's admission never blocks another's.
type keyCounters struct {
	mu      sync.Mutex
	windows map[Window]*counter
}

// MemoryLimiter is the in-process fixed-window limiter. It is the default
// backend for single-process deployments; multi-process deployments use
// the Redis limiter so all processes share counters.
type MemoryLimiter struct {
	mu   sync.RWMutex
	keys map[string]*keyCounters
	now  func() time.Time
}

// NewMemoryLimiter creates an in-process limiter.
func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		keys: make(map[string]*keyCounters),
		now:  time.Now,
	}
}

func (l *MemoryLimiter) countersFor(keyID string) *keyCounters {
	l.mu.RLock()
	kc, ok := l.keys[keyID]
	l.mu.RUnlock()
	if ok {
		return kc
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if kc, ok = l.keys[keyID]; ok {
		return kc
	}
	kc = &keyCounters{windows: make(map[Window]*counter)}
	l.keys[keyID] = kc
	return kc
}

// Admit checks all three windows and consumes one unit from each only if
// every window has capacity.
func (l *MemoryLimiter) Admit(_ context.Context, keyID string, quota Quota) (Decision, error) {
	now := l.now()
	kc := l.countersFor(keyID)

	kc.mu.Lock()
	defer kc.mu.Unlock()

	remaining := make(map[Window]int, len(windows))
	var violated []Window
	for _, w := range windows {
		c := kc.current(w, now)
		left := quota.Ceiling(w) - c.count
		if left < 0 {
			left = 0
		}
		remaining[w] = left
		if c.count >= quota.Ceiling(w) {
			violated = append(violated, w)
		}
	}

	if len(violated) > 0 {
		tightest := tightestWindow(now, violated)
		return Decision{
			Allowed:    false,
			Window:     tightest,
			RetryAfter: retryAfter(now, tightest),
			Remaining:  remaining,
		}, nil
	}

	for _, w := range windows {
		kc.current(w, now).count++
		remaining[w]--
	}
	return Decision{Allowed: true, Remaining: remaining}, nil
}

// Usage returns the consumed counts per window.
func (l *MemoryLimiter) Usage(_ context.Context, keyID string) (map[Window]int, error) {
	now := l.now()
	kc := l.countersFor(keyID)

	kc.mu.Lock()
	defer kc.mu.Unlock()

	usage := make(map[Window]int, len(windows))
	for _, w := range windows {
		usage[w] = kc.current(w, now).count
	}
	return usage, nil
}

// current returns the counter for window w, resetting it if the window
// boundary has passed. Caller holds kc.mu.
func (kc *keyCounters) current(w Window, now time.Time) *counter {
	start := windowStart(now, w)
	c, ok := kc.windows[w]
	if !ok || c.start.Before(start) {
		c = &counter{start: start}
		kc.windows[w] = c
	}
	return c
}

// tightestWindow picks the violated window that resets soonest.
func tightestWindow(now time.Time, violated []Window) Window {
	tightest := violated[0]
	for _, w := range violated[1:] {
		if retryAfter(now, w) < retryAfter(now, tightest) {
			tightest = w
		}
	}
	return tightest
}
