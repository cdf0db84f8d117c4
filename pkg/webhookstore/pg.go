package webhookstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/nexbridge/bridge-middleware/pkg/webhook"
)

type pgStore struct {
	db *bun.DB
}

// NewStore creates a new postgres implementation of the webhook store
func NewStore(db *bun.DB) *pgStore {
	return &pgStore{db: db}
}

func (s *pgStore) CreateSubscription(ctx context.Context, sub *webhook.Subscription) error {
	dao := toSubscriptionDao(sub)

	_, err := s.db.NewInsert().
		Model(dao).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create subscription: %w", err)
	}

	return nil
}

func (s *pgStore) GetSubscription(ctx context.Context, id string) (*webhook.Subscription, error) {
	dao := new(SubscriptionDao)

	err := s.db.NewSelect().
		Model(dao).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}

	return toSubscription(dao), nil
}

func (s *pgStore) ListActiveSubscriptions(ctx context.Context) ([]*webhook.Subscription, error) {
	var daos []SubscriptionDao
	err := s.db.NewSelect().
		Model(&daos).
		Where("active = TRUE").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}

	subs := make([]*webhook.Subscription, len(daos))
	for i := range daos {
		subs[i] = toSubscription(&daos[i])
	}
	return subs, nil
}

func (s *pgStore) DeactivateSubscription(ctx context.Context, id string) error {
	res, err := s.db.NewUpdate().
		Model((*SubscriptionDao)(nil)).
		Set("active = FALSE").
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to deactivate subscription: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return ErrSubscriptionNotFound
	}
	return nil
}

func (s *pgStore) UpdateSubscriptionStats(ctx context.Context, subscriptionID string, succeeded bool, at time.Time) error {
	outcomeCol := "failed_deliveries"
	if succeeded {
		outcomeCol = "successful_deliveries"
	}

	_, err := s.db.NewUpdate().
		Model((*SubscriptionDao)(nil)).
		Set("total_deliveries = total_deliveries + 1").
		Set(outcomeCol+" = "+outcomeCol+" + 1").
		Set("last_triggered_at = ?", at).
		Where("id = ?", subscriptionID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update subscription stats: %w", err)
	}
	return nil
}

func (s *pgStore) RecordAttempt(ctx context.Context, attempt *webhook.DeliveryAttempt) error {
	dao := toAttemptDao(attempt)
	dao.ID = 0

	_, err := s.db.NewInsert().
		Model(dao).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to record delivery attempt: %w", err)
	}

	attempt.ID = dao.ID
	return nil
}

func (s *pgStore) ListAttemptsBySubscription(ctx context.Context, subscriptionID string, limit int) ([]*webhook.DeliveryAttempt, error) {
	if limit <= 0 {
		limit = 100
	}

	var daos []DeliveryAttemptDao
	err := s.db.NewSelect().
		Model(&daos).
		Where("subscription_id = ?", subscriptionID).
		Order("attempted_at DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list delivery attempts: %w", err)
	}

	attempts := make([]*webhook.DeliveryAttempt, len(daos))
	for i := range daos {
		attempts[i] = toAttempt(&daos[i])
	}
	return attempts, nil
}

// ListDueRetries returns failed attempts whose scheduled retry time has
// passed with no later attempt recorded for the same chain. These are
// chains a crashed process never resumed.
func (s *pgStore) ListDueRetries(ctx context.Context, cutoff time.Time, limit int) ([]*webhook.DeliveryAttempt, error) {
	if limit <= 0 {
		limit = 100
	}

	var daos []DeliveryAttemptDao
	err := s.db.NewSelect().
		Model(&daos).
		Where("d.succeeded = FALSE").
		Where("d.next_retry_at IS NOT NULL").
		Where("d.next_retry_at <= ?", cutoff).
		Where(`NOT EXISTS (
			SELECT 1 FROM delivery_attempts later
			WHERE later.subscription_id = d.subscription_id
			  AND later.operation_id = d.operation_id
			  AND later.event = d.event
			  AND later.attempt_number > d.attempt_number
		)`).
		Order("next_retry_at ASC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list due retries: %w", err)
	}

	attempts := make([]*webhook.DeliveryAttempt, len(daos))
	for i := range daos {
		attempts[i] = toAttempt(&daos[i])
	}
	return attempts, nil
}
