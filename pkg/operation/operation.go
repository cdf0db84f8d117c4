// Package operation holds the committed-transfer domain model and its
// status state machine.
package operation

import (
	"errors"
	"math/big"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var ErrTransitionRejected = errors.New("status transition rejected")

// Status is the lifecycle stage of an operation. Transitions only move
// forward; terminal statuses never change again.
type Status string

const (
	StatusCreated         Status = "CREATED"
	StatusSourceConfirmed Status = "SOURCE_CONFIRMED"
	StatusInTransit       Status = "IN_TRANSIT"
	StatusCompleted       Status = "COMPLETED"
	StatusFailed          Status = "FAILED"
)

// statusOrder drives the single-step forward rule.
var statusOrder = map[Status]int{
	StatusCreated:         0,
	StatusSourceConfirmed: 1,
	StatusInTransit:       2,
	StatusCompleted:       3,
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	if s == StatusFailed {
		return true
	}
	_, ok := statusOrder[s]
	return ok
}

// Terminal reports whether the status can never change again.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// EventName is the webhook event type emitted when an operation enters
// this status.
func (s Status) EventName() string {
	return "transaction." + strings.ToLower(string(s))
}

// CanTransition reports whether an operation in status from may move to
// status to. Only single-step forward moves are allowed, except FAILED,
// which is reachable from any non-terminal status.
func CanTransition(from, to Status) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	if from.Terminal() {
		return false
	}
	if to == StatusFailed {
		return true
	}
	return statusOrder[to] == statusOrder[from]+1
}

// Operation is one committed transfer, pinned to the quote it was created
// from.
type Operation struct {
	ID            string `json:"id"`
	APIKeyID      string `json:"api_key_id"`
	QuoteResultID string `json:"quote_result_id"`
	QuoteIndex    int    `json:"quote_index"`
	Provider      string `json:"provider"`

	SourceChain      string   `json:"source_chain"`
	DestinationChain string   `json:"destination_chain"`
	SourceToken      string   `json:"source_token"`
	DestinationToken string   `json:"destination_token"`
	Amount           *big.Int `json:"amount"`

	TotalCostUSD         decimal.Decimal `json:"total_cost_usd"`
	EstimatedTimeSeconds int64           `json:"estimated_time_seconds"`

	Status        Status `json:"status"`
	FailureReason string `json:"failure_reason,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
