// Package webhook holds the subscription and delivery model plus the
// dispatcher that pushes operation events to subscribers.
package webhook

import (
	"encoding/json"
	"strings"
	"time"
)

// Subscription is one registered webhook endpoint with its event filter.
type Subscription struct {
	ID     string   `json:"id"`
	URL    string   `json:"url"`
	Secret string   `json:"-"`
	Events []string `json:"events"`
	Active bool     `json:"active"`

	TotalDeliveries      int64      `json:"total_deliveries"`
	SuccessfulDeliveries int64      `json:"successful_deliveries"`
	FailedDeliveries     int64      `json:"failed_deliveries"`
	LastTriggeredAt      *time.Time `json:"last_triggered_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// WantsEvent reports whether the subscription's filter matches the event.
// "*" matches everything and a trailing ".*" matches the event family, so
// "transaction.*" covers "transaction.completed".
func (s *Subscription) WantsEvent(event string) bool {
	if len(s.Events) == 0 {
		return true
	}
	for _, pattern := range s.Events {
		if pattern == "*" || pattern == event {
			return true
		}
		if family, ok := strings.CutSuffix(pattern, ".*"); ok &&
			strings.HasPrefix(event, family+".") {
			return true
		}
	}
	return false
}

// DeliveryAttempt is one immutable record of a delivery try. Attempts are
// never updated after the fact; retries append new rows.
type DeliveryAttempt struct {
	ID             int64           `json:"id"`
	SubscriptionID string          `json:"subscription_id"`
	OperationID    string          `json:"operation_id"`
	Event          string          `json:"event"`
	Payload        json.RawMessage `json:"payload"`
	AttemptNumber  int             `json:"attempt_number"`
	StatusCode     int             `json:"status_code,omitempty"`
	ResponseTimeMs int64           `json:"response_time_ms"`
	Error          string          `json:"error,omitempty"`
	Succeeded      bool            `json:"succeeded"`
	AttemptedAt    time.Time       `json:"attempted_at"`
	// NextRetryAt is set when a further attempt is scheduled; nil on
	// success or permanent failure.
	NextRetryAt *time.Time `json:"next_retry_at,omitempty"`
}
