package quote

import (
	"math/big"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRequest() *Request {
	return &Request{
		SourceChain:      "ethereum",
		DestinationChain: "polygon",
		SourceToken:      "USDC",
		DestinationToken: "USDC",
		Amount:           big.NewInt(1_000_000),
	}
}

func TestRequest_Validate(t *testing.T) {
	require.NoError(t, validRequest().Validate())

	r := validRequest()
	r.SourceChain = ""
	assert.ErrorIs(t, r.Validate(), ErrMissingChain)

	r = validRequest()
	r.DestinationToken = ""
	assert.ErrorIs(t, r.Validate(), ErrMissingToken)

	r = validRequest()
	r.Amount = nil
	assert.ErrorIs(t, r.Validate(), ErrInvalidAmount)

	r = validRequest()
	r.Amount = big.NewInt(0)
	assert.ErrorIs(t, r.Validate(), ErrInvalidAmount)

	r = validRequest()
	r.Amount = big.NewInt(-5)
	assert.ErrorIs(t, r.Validate(), ErrInvalidAmount)

	r = validRequest()
	r.Preferences = Weights{Cost: -1, Speed: 2}
	assert.ErrorIs(t, r.Validate(), ErrInvalidWeights)

	r = validRequest()
	r.Preferences = Weights{Cost: 2, Speed: 1, Reliability: 1, Liquidity: 1}
	assert.NoError(t, r.Validate())
}

func TestRequest_WeightingFallsBackToDefaults(t *testing.T) {
	r := validRequest()
	assert.Equal(t, DefaultWeights(), r.Weighting())

	r.Preferences = Weights{Cost: 1}
	assert.Equal(t, Weights{Cost: 1}, r.Weighting())
}

func TestFingerprint_Deterministic(t *testing.T) {
	a := validRequest()
	b := validRequest()

	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.Len(t, a.Fingerprint(), 64)
}

func TestFingerprint_CaseInsensitiveChainsAndTokens(t *testing.T) {
	a := validRequest()

	b := validRequest()
	b.SourceChain = "Ethereum"
	b.DestinationChain = "POLYGON"
	b.SourceToken = "usdc"

	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
}

func TestFingerprint_AmountParticipates(t *testing.T) {
	a := validRequest()
	b := validRequest()
	b.Amount = big.NewInt(2_000_000)

	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
}

func TestFingerprint_PreferencesParticipate(t *testing.T) {
	a := validRequest()
	b := validRequest()
	b.Preferences = Weights{Cost: 1}

	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())

	// Explicit defaults and absent preferences collapse to one entry.
	c := validRequest()
	c.Preferences = DefaultWeights()
	assert.Equal(t, a.Fingerprint(), c.Fingerprint())
}

func TestQuote_Validate(t *testing.T) {
	valid := Quote{
		Provider:             "p",
		TotalCostUSD:         decimal.RequireFromString("12.50"),
		EstimatedTimeSeconds: 300,
		SuccessRate:          98,
		LiquidityScore:       85,
	}
	require.NoError(t, valid.Validate())

	cases := []struct {
		name   string
		mutate func(*Quote)
	}{
		{"missing provider", func(q *Quote) { q.Provider = "" }},
		{"zero cost", func(q *Quote) { q.TotalCostUSD = decimal.Zero }},
		{"negative cost", func(q *Quote) { q.TotalCostUSD = decimal.RequireFromString("-1") }},
		{"zero time", func(q *Quote) { q.EstimatedTimeSeconds = 0 }},
		{"success rate above 100", func(q *Quote) { q.SuccessRate = 101 }},
		{"negative success rate", func(q *Quote) { q.SuccessRate = -1 }},
		{"liquidity above 100", func(q *Quote) { q.LiquidityScore = 100.5 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			q := valid
			tc.mutate(&q)
			assert.ErrorIs(t, q.Validate(), ErrInvalidQuote)
		})
	}
}

func TestQuote_InBounds(t *testing.T) {
	amount := big.NewInt(1_000_000)

	unbounded := Quote{}
	assert.True(t, unbounded.InBounds(amount))

	within := Quote{MinAmount: big.NewInt(500_000), MaxAmount: big.NewInt(2_000_000)}
	assert.True(t, within.InBounds(amount))
	assert.True(t, within.InBounds(big.NewInt(500_000)))
	assert.True(t, within.InBounds(big.NewInt(2_000_000)))

	below := Quote{MinAmount: big.NewInt(2_000_000)}
	assert.False(t, below.InBounds(amount))

	above := Quote{MaxAmount: big.NewInt(500_000)}
	assert.False(t, above.InBounds(amount))

	assert.False(t, unbounded.InBounds(nil))
}

func TestRankedResult_Expired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := RankedResult{ExpiresAt: now.Add(30 * time.Second)}

	assert.False(t, r.Expired(now))
	assert.False(t, r.Expired(now.Add(30*time.Second)))
	assert.True(t, r.Expired(now.Add(31*time.Second)))
}

func TestRankedResult_QuoteAt(t *testing.T) {
	r := RankedResult{Quotes: []Scored{
		{Quote: Quote{Provider: "a"}},
		{Quote: Quote{Provider: "b"}},
	}}

	first, err := r.QuoteAt(0)
	require.NoError(t, err)
	assert.Equal(t, "a", first.Provider)

	_, err = r.QuoteAt(2)
	assert.ErrorIs(t, err, ErrQuoteOutOfRange)

	_, err = r.QuoteAt(-1)
	assert.ErrorIs(t, err, ErrQuoteOutOfRange)
}
