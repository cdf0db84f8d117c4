package auth

import (
	"context"

	"github.com/nexbridge/bridge-middleware/pkg/apikey"
)

type contextKey int

const apiKeyContextKey contextKey = iota

// WithAPIKey returns a context carrying the authenticated API key.
func WithAPIKey(ctx context.Context, key *apikey.Key) context.Context {
	return context.WithValue(ctx, apiKeyContextKey, key)
}

// APIKeyFrom extracts the authenticated API key from the context.
func APIKeyFrom(ctx context.Context) (*apikey.Key, bool) {
	key, ok := ctx.Value(apiKeyContextKey).(*apikey.Key)
	return key, ok
}
