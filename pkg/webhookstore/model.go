package webhookstore

import (
	"encoding/json"
	"time"

	"github.com/uptrace/bun"

	"github.com/nexbridge/bridge-middleware/pkg/webhook"
)

// SubscriptionDao is a data access object that maps directly to the
// 'webhook_subscriptions' table in PostgreSQL.
type SubscriptionDao struct {
	bun.BaseModel `bun:"table:webhook_subscriptions,alias:ws"`

	ID     string   `bun:"id,pk,type:uuid"`
	URL    string   `bun:"url,notnull,type:varchar(2000)"`
	Secret string   `bun:"secret,notnull,type:varchar(255)"`
	Events []string `bun:"events,array,type:varchar(100)[]"`
	Active bool     `bun:"active,notnull,default:true"`

	TotalDeliveries      int64      `bun:"total_deliveries,notnull,default:0"`
	SuccessfulDeliveries int64      `bun:"successful_deliveries,notnull,default:0"`
	FailedDeliveries     int64      `bun:"failed_deliveries,notnull,default:0"`
	LastTriggeredAt      *time.Time `bun:"last_triggered_at"`

	CreatedAt time.Time `bun:"created_at,nullzero,default:current_timestamp"`
}

// toSubscriptionDao converts a webhook.Subscription to SubscriptionDao.
func toSubscriptionDao(sub *webhook.Subscription) *SubscriptionDao {
	return &SubscriptionDao{
		ID:                   sub.ID,
		URL:                  sub.URL,
		Secret:               sub.Secret,
		Events:               sub.Events,
		Active:               sub.Active,
		TotalDeliveries:      sub.TotalDeliveries,
		SuccessfulDeliveries: sub.SuccessfulDeliveries,
		FailedDeliveries:     sub.FailedDeliveries,
		LastTriggeredAt:      sub.LastTriggeredAt,
		CreatedAt:            sub.CreatedAt,
	}
}

// toSubscription converts a SubscriptionDao to webhook.Subscription.
func toSubscription(dao *SubscriptionDao) *webhook.Subscription {
	return &webhook.Subscription{
		ID:                   dao.ID,
		URL:                  dao.URL,
		Secret:               dao.Secret,
		Events:               dao.Events,
		Active:               dao.Active,
		TotalDeliveries:      dao.TotalDeliveries,
		SuccessfulDeliveries: dao.SuccessfulDeliveries,
		FailedDeliveries:     dao.FailedDeliveries,
		LastTriggeredAt:      dao.LastTriggeredAt,
		CreatedAt:            dao.CreatedAt,
	}
}

// DeliveryAttemptDao is a data access object that maps directly to the
// 'delivery_attempts' table in PostgreSQL.
type DeliveryAttemptDao struct {
	bun.BaseModel `bun:"table:delivery_attempts,alias:d"`

	ID             int64           `bun:"id,pk,autoincrement"`
	SubscriptionID string          `bun:"subscription_id,notnull,type:uuid"`
	OperationID    string          `bun:"operation_id,notnull,type:uuid"`
	Event          string          `bun:"event,notnull,type:varchar(100)"`
	Payload        json.RawMessage `bun:"payload,notnull,type:jsonb"`
	AttemptNumber  int             `bun:"attempt_number,notnull"`
	StatusCode     *int            `bun:"status_code"`
	ResponseTimeMs int64           `bun:"response_time_ms,notnull,default:0"`
	Error          *string         `bun:"error,type:varchar(1000)"`
	Succeeded      bool            `bun:"succeeded,notnull,default:false"`
	AttemptedAt    time.Time       `bun:"attempted_at,nullzero,default:current_timestamp"`
	NextRetryAt    *time.Time      `bun:"next_retry_at"`
}

// toAttemptDao converts a webhook.DeliveryAttempt to DeliveryAttemptDao.
func toAttemptDao(attempt *webhook.DeliveryAttempt) *DeliveryAttemptDao {
	dao := &DeliveryAttemptDao{
		ID:             attempt.ID,
		SubscriptionID: attempt.SubscriptionID,
		OperationID:    attempt.OperationID,
		Event:          attempt.Event,
		Payload:        attempt.Payload,
		AttemptNumber:  attempt.AttemptNumber,
		ResponseTimeMs: attempt.ResponseTimeMs,
		Succeeded:      attempt.Succeeded,
		AttemptedAt:    attempt.AttemptedAt,
		NextRetryAt:    attempt.NextRetryAt,
	}

	if attempt.StatusCode != 0 {
		dao.StatusCode = &attempt.StatusCode
	}
	if attempt.Error != "" {
		dao.Error = &attempt.Error
	}

	return dao
}

// toAttempt converts a DeliveryAttemptDao to webhook.DeliveryAttempt.
func toAttempt(dao *DeliveryAttemptDao) *webhook.DeliveryAttempt {
	attempt := &webhook.DeliveryAttempt{
		ID:             dao.ID,
		SubscriptionID: dao.SubscriptionID,
		OperationID:    dao.OperationID,
		Event:          dao.Event,
		Payload:        dao.Payload,
		AttemptNumber:  dao.AttemptNumber,
		ResponseTimeMs: dao.ResponseTimeMs,
		Succeeded:      dao.Succeeded,
		AttemptedAt:    dao.AttemptedAt,
		NextRetryAt:    dao.NextRetryAt,
	}

	if dao.StatusCode != nil {
		attempt.StatusCode = *dao.StatusCode
	}
	if dao.Error != nil {
		attempt.Error = *dao.Error
	}

	return attempt
}
