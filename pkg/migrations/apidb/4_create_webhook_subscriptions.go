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
		log.Println("creating webhook_subscriptions table...")
		if err := mghelper.CreateSchema(ctx, db, &webhookstore.SubscriptionDao{}); err != nil {
			return err
		}
		return mghelper.CreateModelIndexes(ctx, db, &webhookstore.SubscriptionDao{}, "active")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping webhook_subscriptions table...")
		return mghelper.DropTables(ctx, db, &webhookstore.SubscriptionDao{})
	})
}
