package apidb

import (
	"context"
	"log"

	"github.com/uptrace/bun"

	"github.com/nexbridge/bridge-middleware/pkg/apikeystore"
	mghelper "github.com/nexbridge/bridge-middleware/pkg/pgutil/migrations"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		log.Println("creating rate_limit_violations table...")
		if err := mghelper.CreateSchema(ctx, db, &apikeystore.ViolationDao{}); err != nil {
			return err
		}
		return mghelper.CreateModelIndexes(ctx, db, &apikeystore.ViolationDao{}, "api_key_id", "occurred_at")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping rate_limit_violations table...")
		return mghelper.DropTables(ctx, db, &apikeystore.ViolationDao{})
	})
}
