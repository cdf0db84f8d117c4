// Package ratelimit implements per-API-key request admission over three
// independent fixed windows (minute, hour, day).
//
// Fixed windows are deliberate: counters reset at each window boundary, so
// a caller can burst up to 2x a ceiling across a window edge. Callers may
// depend on that documented behavior; do not replace this with a sliding
// window without a migration plan.
package ratelimit

import (
	"context"
	"time"
)

// Window identifies one of the three admission windows.
type Window string

const (
	WindowMinute Window = "minute"
	WindowHour   Window = "hour"
	WindowDay    Window = "day"
)

// Duration returns the length of the window.
func (w Window) Duration() time.Duration {
	switch w {
	case WindowHour:
		return time.Hour
	case WindowDay:
		return 24 * time.Hour
	default:
		return time.Minute
	}
}

// windows is the fixed check order. Rejection reporting picks the
// tightest-to-reset violated window, not the first checked.
var windows = []Window{WindowMinute, WindowHour, WindowDay}

// Quota holds the per-window ceilings for one API key.
type Quota struct {
	PerMinute int `json:"per_minute"`
	PerHour   int `json:"per_hour"`
	PerDay    int `json:"per_day"`
}

// Ceiling returns the quota's ceiling for the given window.
func (q Quota) Ceiling(w Window) int {
	switch w {
	case WindowHour:
		return q.PerHour
	case WindowDay:
		return q.PerDay
	default:
		return q.PerMinute
	}
}

// Decision is the outcome of an admission check.
type Decision struct {
	Allowed bool
	// Window is the tightest-to-reset violated window when not allowed.
	Window Window
	// RetryAfter is the time until that window resets.
	RetryAfter time.Duration
	// Remaining holds remaining capacity per window at decision time.
	Remaining map[Window]int
}

// Limiter admits or rejects requests for an API key. Admission consumes
// one unit from all three windows atomically; rejection consumes nothing.
type Limiter interface {
	Admit(ctx context.Context, keyID string, quota Quota) (Decision, error)
	// Usage returns the current consumed counts per window.
	Usage(ctx context.Context, keyID string) (map[Window]int, error)
}

// Violation is an append-only record of a rejected request.
type Violation struct {
	APIKeyID   string    `json:"api_key_id"`
	Window     Window    `json:"window"`
	Endpoint   string    `json:"endpoint"`
	Remaining  int       `json:"remaining"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ViolationRecorder persists Violations for audit.
type ViolationRecorder interface {
	RecordViolation(ctx context.Context, v *Violation) error
}

// windowStart truncates now to the start of the window w.
func windowStart(now time.Time, w Window) time.Time {
	return now.Truncate(w.Duration())
}

// retryAfter is the time from now until window w resets.
func retryAfter(now time.Time, w Window) time.Duration {
	return windowStart(now, w).Add(w.Duration()).Sub(now)
}
