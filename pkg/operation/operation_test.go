package operation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatus_Valid(t *testing.T) {
	for _, s := range []Status{StatusCreated, StatusSourceConfirmed, StatusInTransit, StatusCompleted, StatusFailed} {
		assert.True(t, s.Valid(), "%s must be valid", s)
	}
	assert.False(t, Status("PENDING").Valid())
	assert.False(t, Status("").Valid())
	assert.False(t, Status("created").Valid(), "statuses are case sensitive")
}

func TestStatus_Terminal(t *testing.T) {
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.False(t, StatusCreated.Terminal())
	assert.False(t, StatusSourceConfirmed.Terminal())
	assert.False(t, StatusInTransit.Terminal())
}

func TestStatus_EventName(t *testing.T) {
	assert.Equal(t, "transaction.created", StatusCreated.EventName())
	assert.Equal(t, "transaction.source_confirmed", StatusSourceConfirmed.EventName())
	assert.Equal(t, "transaction.in_transit", StatusInTransit.EventName())
	assert.Equal(t, "transaction.completed", StatusCompleted.EventName())
	assert.Equal(t, "transaction.failed", StatusFailed.EventName())
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusCreated, StatusSourceConfirmed, true},
		{StatusSourceConfirmed, StatusInTransit, true},
		{StatusInTransit, StatusCompleted, true},

		// FAILED is reachable from any non-terminal status.
		{StatusCreated, StatusFailed, true},
		{StatusSourceConfirmed, StatusFailed, true},
		{StatusInTransit, StatusFailed, true},

		// No skipping forward.
		{StatusCreated, StatusInTransit, false},
		{StatusCreated, StatusCompleted, false},
		{StatusSourceConfirmed, StatusCompleted, false},

		// No moving backward.
		{StatusSourceConfirmed, StatusCreated, false},
		{StatusInTransit, StatusSourceConfirmed, false},

		// Terminal statuses are immutable.
		{StatusCompleted, StatusFailed, false},
		{StatusCompleted, StatusCreated, false},
		{StatusFailed, StatusCreated, false},
		{StatusFailed, StatusCompleted, false},

		// Self transitions are rejected.
		{StatusCreated, StatusCreated, false},
		{StatusInTransit, StatusInTransit, false},

		// Unknown statuses never transition.
		{Status("PENDING"), StatusCreated, false},
		{StatusCreated, Status("PENDING"), false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}
