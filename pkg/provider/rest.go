package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nexbridge/bridge-middleware/pkg/quote"
)

const maxQuoteResponseBytes = 1 << 20

// RESTProvider talks to an upstream bridge's quote API over HTTP/JSON.
type RESTProvider struct {
	spec   *Spec
	client *http.Client
}

// NewRESTProvider creates a provider client from a catalog entry.
func NewRESTProvider(spec *Spec, client *http.Client) *RESTProvider {
	if client == nil {
		client = http.DefaultClient
	}
	return &RESTProvider{spec: spec, client: client}
}

func (p *RESTProvider) Name() string { return p.spec.Name }

// Timeout is the per-provider call budget from the catalog. The aggregator
// clamps it to its own fan-out deadline.
func (p *RESTProvider) Timeout() time.Duration { return p.spec.Timeout() }

func (p *RESTProvider) SupportsRoute(sourceChain, destinationChain string) bool {
	for _, r := range p.spec.Routes {
		if r.Matches(sourceChain, destinationChain) {
			return true
		}
	}
	return false
}

type quoteWireRequest struct {
	SourceChain      string `json:"source_chain"`
	DestinationChain string `json:"destination_chain"`
	SourceToken      string `json:"source_token"`
	DestinationToken string `json:"destination_token"`
	Amount           string `json:"amount"`
}

type quoteWireResponse struct {
	TotalCostUSD         decimal.Decimal `json:"total_cost_usd"`
	EstimatedTimeSeconds int64           `json:"estimated_time_seconds"`
	SuccessRate          float64         `json:"success_rate"`
	LiquidityScore       float64         `json:"liquidity_score"`
	MinAmount            string          `json:"min_amount"`
	MaxAmount            string          `json:"max_amount"`
	Steps                []quote.Step    `json:"steps"`
	ExpiresAt            time.Time       `json:"expires_at"`
}

// Quote requests a quote from the upstream provider. Amounts cross the wire
// as decimal strings in the token's smallest unit.
func (p *RESTProvider) Quote(ctx context.Context, req *quote.Request) (*quote.Quote, error) {
	body, err := json.Marshal(&quoteWireRequest{
		SourceChain:      req.SourceChain,
		DestinationChain: req.DestinationChain,
		SourceToken:      req.SourceToken,
		DestinationToken: req.DestinationToken,
		Amount:           req.Amount.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal quote request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.spec.BaseURL+"/quote", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build quote request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.spec.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.spec.APIKey)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("provider %s: %w", p.spec.Name, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		// Drain a little of the body for the error message; upstream error
		// payloads are small.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("provider %s: status %d: %s", p.spec.Name, resp.StatusCode, bytes.TrimSpace(snippet))
	}

	var wire quoteWireResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxQuoteResponseBytes)).Decode(&wire); err != nil {
		return nil, fmt.Errorf("provider %s: decode response: %w", p.spec.Name, err)
	}

	q := &quote.Quote{
		Provider:             p.spec.Name,
		TotalCostUSD:         wire.TotalCostUSD,
		EstimatedTimeSeconds: wire.EstimatedTimeSeconds,
		SuccessRate:          wire.SuccessRate,
		LiquidityScore:       wire.LiquidityScore,
		Steps:                wire.Steps,
		ExpiresAt:            wire.ExpiresAt,
	}
	if wire.MinAmount != "" {
		q.MinAmount, err = parseAmount(wire.MinAmount)
		if err != nil {
			return nil, fmt.Errorf("provider %s: min_amount: %w", p.spec.Name, err)
		}
	}
	if wire.MaxAmount != "" {
		q.MaxAmount, err = parseAmount(wire.MaxAmount)
		if err != nil {
			return nil, fmt.Errorf("provider %s: max_amount: %w", p.spec.Name, err)
		}
	}
	return q, nil
}

func parseAmount(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	return v, nil
}
