package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T) (*MemoryLimiter, *time.Time) {
	t.Helper()

	now := time.Date(2026, 3, 1, 12, 0, 30, 0, time.UTC)
	l := NewMemoryLimiter()
	l.now = func() time.Time { return now }
	return l, &now
}

func testQuota() Quota {
	return Quota{PerMinute: 60, PerHour: 1000, PerDay: 10000}
}

func TestMemoryLimiter_AdmitWithinQuota(t *testing.T) {
	l, _ := newTestLimiter(t)
	ctx := context.Background()

	d, err := l.Admit(ctx, "key", testQuota())
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 59, d.Remaining[WindowMinute])
	assert.Equal(t, 999, d.Remaining[WindowHour])
	assert.Equal(t, 9999, d.Remaining[WindowDay])
}

func TestMemoryLimiter_SixtyFirstRequestRejected(t *testing.T) {
	l, _ := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 60; i++ {
		d, err := l.Admit(ctx, "key", testQuota())
		require.NoError(t, err)
		require.True(t, d.Allowed, "request %d should be admitted", i+1)
	}

	d, err := l.Admit(ctx, "key", testQuota())
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, WindowMinute, d.Window)
	assert.Equal(t, 0, d.Remaining[WindowMinute])
	assert.Equal(t, 30*time.Second, d.RetryAfter, "window started at :00, now is :30")
}

func TestMemoryLimiter_RejectionConsumesNothing(t *testing.T) {
	l, _ := newTestLimiter(t)
	ctx := context.Background()
	quota := Quota{PerMinute: 1, PerHour: 1000, PerDay: 10000}

	d, err := l.Admit(ctx, "key", quota)
	require.NoError(t, err)
	require.True(t, d.Allowed)

	for i := 0; i < 5; i++ {
		d, err = l.Admit(ctx, "key", quota)
		require.NoError(t, err)
		require.False(t, d.Allowed)
	}

	usage, err := l.Usage(ctx, "key")
	require.NoError(t, err)
	assert.Equal(t, 1, usage[WindowMinute])
	assert.Equal(t, 1, usage[WindowHour])
}

func TestMemoryLimiter_MinuteBoundaryResets(t *testing.T) {
	l, now := newTestLimiter(t)
	ctx := context.Background()
	quota := Quota{PerMinute: 2, PerHour: 1000, PerDay: 10000}

	for i := 0; i < 2; i++ {
		d, err := l.Admit(ctx, "key", quota)
		require.NoError(t, err)
		require.True(t, d.Allowed)
	}
	d, err := l.Admit(ctx, "key", quota)
	require.NoError(t, err)
	require.False(t, d.Allowed)

	// Cross the minute boundary; the hour and day counters keep counting.
	*now = now.Add(30 * time.Second)
	d, err = l.Admit(ctx, "key", quota)
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	usage, err := l.Usage(ctx, "key")
	require.NoError(t, err)
	assert.Equal(t, 1, usage[WindowMinute])
	assert.Equal(t, 3, usage[WindowHour])
	assert.Equal(t, 3, usage[WindowDay])
}

func TestMemoryLimiter_HourCeilingWins(t *testing.T) {
	l, _ := newTestLimiter(t)
	ctx := context.Background()
	quota := Quota{PerMinute: 100, PerHour: 3, PerDay: 10000}

	for i := 0; i < 3; i++ {
		d, err := l.Admit(ctx, "key", quota)
		require.NoError(t, err)
		require.True(t, d.Allowed)
	}

	d, err := l.Admit(ctx, "key", quota)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, WindowHour, d.Window)
}

func TestMemoryLimiter_TightestViolatedWindowReported(t *testing.T) {
	l, _ := newTestLimiter(t)
	ctx := context.Background()
	quota := Quota{PerMinute: 2, PerHour: 2, PerDay: 10000}

	for i := 0; i < 2; i++ {
		d, err := l.Admit(ctx, "key", quota)
		require.NoError(t, err)
		require.True(t, d.Allowed)
	}

	// Both minute and hour are exhausted; the minute window resets sooner.
	d, err := l.Admit(ctx, "key", quota)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, WindowMinute, d.Window)
}

func TestMemoryLimiter_KeysIsolated(t *testing.T) {
	l, _ := newTestLimiter(t)
	ctx := context.Background()
	quota := Quota{PerMinute: 1, PerHour: 1000, PerDay: 10000}

	d, err := l.Admit(ctx, "a", quota)
	require.NoError(t, err)
	require.True(t, d.Allowed)

	d, err = l.Admit(ctx, "a", quota)
	require.NoError(t, err)
	require.False(t, d.Allowed)

	d, err = l.Admit(ctx, "b", quota)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestWindow_Duration(t *testing.T) {
	assert.Equal(t, time.Minute, WindowMinute.Duration())
	assert.Equal(t, time.Hour, WindowHour.Duration())
	assert.Equal(t, 24*time.Hour, WindowDay.Duration())
}
