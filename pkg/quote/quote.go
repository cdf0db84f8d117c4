// Package quote holds the domain model for route quote requests and the
// ranked results produced by the aggregator.
package quote

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount   = errors.New("amount must be a positive integer")
	ErrInvalidWeights  = errors.New("preference weights must be non-negative")
	ErrMissingChain    = errors.New("source and destination chains are required")
	ErrMissingToken    = errors.New("source and destination tokens are required")
	ErrInvalidQuote    = errors.New("quote failed validation")
	ErrResultExpired   = errors.New("ranked result expired")
	ErrQuoteOutOfRange = errors.New("quote index out of range")
)

// Weights are the ranking factor weights. They need not sum to 1; the
// ranking engine normalizes them before use.
type Weights struct {
	Cost        float64 `json:"cost_weight"`
	Speed       float64 `json:"speed_weight"`
	Reliability float64 `json:"reliability_weight"`
	Liquidity   float64 `json:"liquidity_weight"`
}

// DefaultWeights returns the standard ranking weights: cost 40%, speed 30%,
// reliability 20%, liquidity 10%.
func DefaultWeights() Weights {
	return Weights{Cost: 0.40, Speed: 0.30, Reliability: 0.20, Liquidity: 0.10}
}

// IsZero reports whether no weight was supplied at all.
func (w Weights) IsZero() bool {
	return w.Cost == 0 && w.Speed == 0 && w.Reliability == 0 && w.Liquidity == 0
}

// Request is a normalized quote request. Amount is always an integer in the
// token's smallest unit; floating point never enters the domain model.
type Request struct {
	SourceChain      string   `json:"source_chain"`
	DestinationChain string   `json:"destination_chain"`
	SourceToken      string   `json:"source_token"`
	DestinationToken string   `json:"destination_token"`
	Amount           *big.Int `json:"amount"`
	Preferences      Weights  `json:"preferences"`
}

// Validate checks the request fields that every provider call depends on.
func (r *Request) Validate() error {
	if r.SourceChain == "" || r.DestinationChain == "" {
		return ErrMissingChain
	}
	if r.SourceToken == "" || r.DestinationToken == "" {
		return ErrMissingToken
	}
	if r.Amount == nil || r.Amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if w := r.Preferences; w.Cost < 0 || w.Speed < 0 || w.Reliability < 0 || w.Liquidity < 0 {
		return ErrInvalidWeights
	}
	return nil
}

// Weighting returns the caller preferences, falling back to the defaults
// when none were supplied.
func (r *Request) Weighting() Weights {
	if r.Preferences.IsZero() {
		return DefaultWeights()
	}
	return r.Preferences
}

// Step is one required on-chain action within a quoted route.
type Step struct {
	Kind        string `json:"kind"`
	Chain       string `json:"chain"`
	Description string `json:"description,omitempty"`
}

// Quote is one provider's answer to a Request.
type Quote struct {
	Provider             string          `json:"provider"`
	TotalCostUSD         decimal.Decimal `json:"total_cost_usd"`
	EstimatedTimeSeconds int64           `json:"estimated_time_seconds"`
	// SuccessRate is the provider's reliability figure on a 0-100 scale.
	SuccessRate float64 `json:"success_rate"`
	// LiquidityScore is the route liquidity confidence on a 0-100 scale.
	LiquidityScore float64  `json:"liquidity_score"`
	MinAmount      *big.Int `json:"min_amount,omitempty"`
	MaxAmount      *big.Int `json:"max_amount,omitempty"`
	Steps          []Step   `json:"steps,omitempty"`
	ExpiresAt      time.Time `json:"expires_at,omitzero"`
}

// Validate rejects quotes that cannot be scored: non-positive cost or time,
// or a reliability figure outside [0,100].
func (q *Quote) Validate() error {
	if q.Provider == "" {
		return fmt.Errorf("%w: missing provider name", ErrInvalidQuote)
	}
	if q.TotalCostUSD.Sign() <= 0 {
		return fmt.Errorf("%w: cost must be positive, got %s", ErrInvalidQuote, q.TotalCostUSD)
	}
	if q.EstimatedTimeSeconds <= 0 {
		return fmt.Errorf("%w: estimated time must be positive, got %d", ErrInvalidQuote, q.EstimatedTimeSeconds)
	}
	if q.SuccessRate < 0 || q.SuccessRate > 100 {
		return fmt.Errorf("%w: success rate %.2f outside [0,100]", ErrInvalidQuote, q.SuccessRate)
	}
	if q.LiquidityScore < 0 || q.LiquidityScore > 100 {
		return fmt.Errorf("%w: liquidity score %.2f outside [0,100]", ErrInvalidQuote, q.LiquidityScore)
	}
	return nil
}

// InBounds reports whether the quoted amount limits admit the requested
// amount. A nil bound is open-ended.
func (q *Quote) InBounds(amount *big.Int) bool {
	if amount == nil {
		return false
	}
	if q.MinAmount != nil && amount.Cmp(q.MinAmount) < 0 {
		return false
	}
	if q.MaxAmount != nil && amount.Cmp(q.MaxAmount) > 0 {
		return false
	}
	return true
}

// Scored is a Quote together with the score the ranking engine assigned to
// it. Scores are only comparable within one ranking call.
type Scored struct {
	Quote
	Score float64 `json:"score"`
}

// RankedResult is the ordered outcome of one aggregation call. It carries
// the originating request so an operation created from it later keeps the
// route details.
type RankedResult struct {
	ID          string    `json:"id"`
	Fingerprint string    `json:"fingerprint"`
	Request     Request   `json:"request"`
	Quotes      []Scored  `json:"quotes"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Expired reports whether the result may no longer drive an operation.
func (r *RankedResult) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// QuoteAt returns the scored quote at the given rank index.
func (r *RankedResult) QuoteAt(index int) (*Scored, error) {
	if index < 0 || index >= len(r.Quotes) {
		return nil, ErrQuoteOutOfRange
	}
	return &r.Quotes[index], nil
}
