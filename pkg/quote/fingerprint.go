package quote

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
)

// fingerprintFields is the canonical form hashed into a request
// fingerprint. Field order is fixed and chains/tokens are lowercased so
// equivalent requests always collide. Preferences deliberately participate:
// different weightings produce different rankings and must not share a
// cache entry.
type fingerprintFields struct {
	SourceChain      string  `json:"source_chain"`
	DestinationChain string  `json:"destination_chain"`
	SourceToken      string  `json:"source_token"`
	DestinationToken string  `json:"destination_token"`
	Amount           string  `json:"amount"`
	Weights          Weights `json:"weights"`
}

// Fingerprint returns the deterministic identity of the request, used as
// the cache and request-coalescing key.
func (r *Request) Fingerprint() string {
	f := fingerprintFields{
		SourceChain:      strings.ToLower(r.SourceChain),
		DestinationChain: strings.ToLower(r.DestinationChain),
		SourceToken:      strings.ToLower(r.SourceToken),
		DestinationToken: strings.ToLower(r.DestinationToken),
		Weights:          r.Weighting(),
	}
	if r.Amount != nil {
		f.Amount = r.Amount.String()
	}

	// encoding/json marshals struct fields in declaration order, so the
	// byte stream is stable.
	raw, _ := json.Marshal(f)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
