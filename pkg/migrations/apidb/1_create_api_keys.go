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
		log.Println("creating api_keys table...")
		if err := mghelper.CreateSchema(ctx, db, &apikeystore.APIKeyDao{}); err != nil {
			return err
		}
		return mghelper.CreateModelUniqueIndexes(ctx, db, &apikeystore.APIKeyDao{}, "key_hash")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping api_keys table...")
		return mghelper.DropTables(ctx, db, &apikeystore.APIKeyDao{})
	})
}
