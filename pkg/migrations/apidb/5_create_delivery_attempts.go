package apidb

import (
	"context"
	"log"

	"github.com/uptrace/bun"

	mghelper "github.com/nexbridge/bridge-middleware/pkg/pgutil/migrations"
	"github.com/nexbridge/bridge-middleware/pkg/webhookstore"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		log.Println("creating delivery_attempts table...")
		if err := mghelper.CreateSchema(ctx, db, &webhookstore.DeliveryAttemptDao{}); err != nil {
			return err
		}
		return mghelper.CreateModelIndexes(ctx, db, &webhookstore.DeliveryAttemptDao{}, "subscription_id", "next_retry_at")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping delivery_attempts table...")
		return mghelper.DropTables(ctx, db, &webhookstore.DeliveryAttemptDao{})
	})
}
