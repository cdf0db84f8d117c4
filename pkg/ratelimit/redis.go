package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter shares fixed-window counters across processes. Keys are
// bucketed by window start so every process agrees on the boundary:
//
//	rate_limit:{key}:{window}:{unix window start}
//
// Admission increments all three counters in one pipeline and compensates
// with decrements when any window is over its ceiling, which keeps the
// counters close to all-or-nothing without a server-side script.
type RedisLimiter struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisLimiter creates a limiter backed by the shared cache.
func NewRedisLimiter(client *redis.Client) *RedisLimiter {
	return &RedisLimiter{client: client, now: time.Now}
}

func bucketKey(keyID string, w Window, start time.Time) string {
	return fmt.Sprintf("rate_limit:%s:%s:%d", keyID, w, start.Unix())
}

// Admit implements Limiter.
func (l *RedisLimiter) Admit(ctx context.Context, keyID string, quota Quota) (Decision, error) {
	now := l.now()

	pipe := l.client.Pipeline()
	incrs := make(map[Window]*redis.IntCmd, len(windows))
	for _, w := range windows {
		start := windowStart(now, w)
		key := bucketKey(keyID, w, start)
		incrs[w] = pipe.Incr(ctx, key)
		// Expire a window past the boundary so Usage can still read the
		// closing bucket briefly; the bucketed key name keeps correctness.
		pipe.Expire(ctx, key, 2*w.Duration())
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, fmt.Errorf("rate limit incr: %w", err)
	}

	remaining := make(map[Window]int, len(windows))
	var violated []Window
	for _, w := range windows {
		count := int(incrs[w].Val())
		left := quota.Ceiling(w) - count
		if left < 0 {
			left = 0
		}
		remaining[w] = left
		if count > quota.Ceiling(w) {
			violated = append(violated, w)
		}
	}

	if len(violated) == 0 {
		return Decision{Allowed: true, Remaining: remaining}, nil
	}

	// Roll back this request's increments so a rejected request consumes
	// no capacity.
	rollback := l.client.Pipeline()
	for _, w := range windows {
		rollback.Decr(ctx, bucketKey(keyID, w, windowStart(now, w)))
	}
	if _, err := rollback.Exec(ctx); err != nil {
		return Decision{}, fmt.Errorf("rate limit rollback: %w", err)
	}

	tightest := tightestWindow(now, violated)
	return Decision{
		Allowed:    false,
		Window:     tightest,
		RetryAfter: retryAfter(now, tightest),
		Remaining:  remaining,
	}, nil
}

// Usage implements Limiter.
func (l *RedisLimiter) Usage(ctx context.Context, keyID string) (map[Window]int, error) {
	now := l.now()

	pipe := l.client.Pipeline()
	gets := make(map[Window]*redis.StringCmd, len(windows))
	for _, w := range windows {
		gets[w] = pipe.Get(ctx, bucketKey(keyID, w, windowStart(now, w)))
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("rate limit usage: %w", err)
	}

	usage := make(map[Window]int, len(windows))
	for _, w := range windows {
		n, err := gets[w].Int()
		if err != nil {
			n = 0
		}
		usage[w] = n
	}
	return usage, nil
}
