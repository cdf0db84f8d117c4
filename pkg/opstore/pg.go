package opstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/nexbridge/bridge-middleware/pkg/operation"
)

type pgStore struct {
	db *bun.DB
}

// NewStore creates a new postgres implementation of the operation store
func NewStore(db *bun.DB) *pgStore {
	return &pgStore{db: db}
}

func (s *pgStore) CreateOperation(ctx context.Context, op *operation.Operation) error {
	dao := toOperationDao(op)

	_, err := s.db.NewInsert().
		Model(dao).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create operation: %w", err)
	}

	return nil
}

func (s *pgStore) GetOperation(ctx context.Context, id string) (*operation.Operation, error) {
	dao := new(OperationDao)

	err := s.db.NewSelect().
		Model(dao).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOperationNotFound
		}
		return nil, fmt.Errorf("failed to get operation: %w", err)
	}

	return toOperation(dao), nil
}

// UpdateStatus applies the transition guarded by the expected current
// status, so a concurrent writer cannot be silently overwritten.
func (s *pgStore) UpdateStatus(ctx context.Context, op *operation.Operation, from operation.Status) (bool, error) {
	q := s.db.NewUpdate().
		Model((*OperationDao)(nil)).
		Set("status = ?", string(op.Status)).
		Set("updated_at = ?", op.UpdatedAt).
		Where("id = ?", op.ID).
		Where("status = ?", string(from))

	if op.FailureReason != "" {
		q = q.Set("failure_reason = ?", op.FailureReason)
	}
	if op.CompletedAt != nil {
		q = q.Set("completed_at = ?", op.CompletedAt)
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to update operation status: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return affected > 0, nil
}

func (s *pgStore) ListOperationsByAPIKey(ctx context.Context, apiKeyID string, limit int) ([]*operation.Operation, error) {
	if limit <= 0 {
		limit = 100
	}

	var daos []OperationDao
	err := s.db.NewSelect().
		Model(&daos).
		Where("api_key_id = ?", apiKeyID).
		Order("created_at DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list operations: %w", err)
	}

	ops := make([]*operation.Operation, len(daos))
	for i := range daos {
		ops[i] = toOperation(&daos[i])
	}
	return ops, nil
}
