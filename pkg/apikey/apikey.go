// Package apikey holds the caller identity model: API keys, their
// per-window quotas, and usage accounting.
package apikey

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/nexbridge/bridge-middleware/pkg/ratelimit"
)

var ErrKeyNotFound = errors.New("api key not found")

// Key is one registered API key. The raw key material is never stored;
// only its SHA-256 digest, so lookups stay deterministic.
type Key struct {
	ID        string
	KeyHash   string
	Name      string
	Tier      string
	PerMinute int
	PerHour   int
	PerDay    int
	Active    bool

	TotalRequests int64
	CreatedAt     time.Time
	LastUsedAt    *time.Time
}

// Quota returns the admission ceilings for this key.
func (k *Key) Quota() ratelimit.Quota {
	return ratelimit.Quota{
		PerMinute: k.PerMinute,
		PerHour:   k.PerHour,
		PerDay:    k.PerDay,
	}
}

// HashKey returns the hex SHA-256 digest under which a raw key is stored
// and looked up.
func HashKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Store is the data-access interface for API keys. Defined here so the
// auth middleware stays decoupled from the postgres implementation.
type Store interface {
	GetKeyByHash(ctx context.Context, keyHash string) (*Key, error)
	CreateKey(ctx context.Context, key *Key) error
	// TouchUsage bumps the request counter and last-used timestamp.
	TouchUsage(ctx context.Context, keyID string, at time.Time) error
}
