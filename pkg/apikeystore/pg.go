package apikeystore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/nexbridge/bridge-middleware/pkg/apikey"
	"github.com/nexbridge/bridge-middleware/pkg/ratelimit"
)

type pgStore struct {
	db *bun.DB
}

// NewStore creates a new postgres implementation of the API key store
func NewStore(db *bun.DB) *pgStore {
	return &pgStore{db: db}
}

func (s *pgStore) CreateKey(ctx context.Context, key *apikey.Key) error {
	dao := toKeyDao(key)

	_, err := s.db.NewInsert().
		Model(dao).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create api key: %w", err)
	}

	return nil
}

func (s *pgStore) GetKeyByHash(ctx context.Context, keyHash string) (*apikey.Key, error) {
	dao := new(APIKeyDao)

	err := s.db.NewSelect().
		Model(dao).
		Where("key_hash = ?", keyHash).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apikey.ErrKeyNotFound
		}
		return nil, fmt.Errorf("failed to get api key: %w", err)
	}

	return toKey(dao), nil
}

func (s *pgStore) GetKeyByID(ctx context.Context, id string) (*apikey.Key, error) {
	dao := new(APIKeyDao)

	err := s.db.NewSelect().
		Model(dao).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apikey.ErrKeyNotFound
		}
		return nil, fmt.Errorf("failed to get api key: %w", err)
	}

	return toKey(dao), nil
}

func (s *pgStore) TouchUsage(ctx context.Context, keyID string, at time.Time) error {
	_, err := s.db.NewUpdate().
		Model((*APIKeyDao)(nil)).
		Set("total_requests = total_requests + 1").
		Set("last_used_at = ?", at).
		Where("id = ?", keyID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to touch key usage: %w", err)
	}
	return nil
}

func (s *pgStore) RecordViolation(ctx context.Context, v *ratelimit.Violation) error {
	dao := toViolationDao(v)

	_, err := s.db.NewInsert().
		Model(dao).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to record violation: %w", err)
	}

	return nil
}

func (s *pgStore) ListViolations(ctx context.Context, apiKeyID string, limit int) ([]*ratelimit.Violation, error) {
	if limit <= 0 {
		limit = 100
	}

	var daos []ViolationDao
	err := s.db.NewSelect().
		Model(&daos).
		Where("api_key_id = ?", apiKeyID).
		Order("occurred_at DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list violations: %w", err)
	}

	violations := make([]*ratelimit.Violation, len(daos))
	for i := range daos {
		violations[i] = toViolation(&daos[i])
	}
	return violations, nil
}
