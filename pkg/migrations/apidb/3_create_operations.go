package apidb

import (
	"context"
	"log"

	"github.com/uptrace/bun"

	"github.com/nexbridge/bridge-middleware/pkg/opstore"
	mghelper "github.com/nexbridge/bridge-middleware/pkg/pgutil/migrations"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		log.Println("creating operations table...")
		if err := mghelper.CreateSchema(ctx, db, &opstore.OperationDao{}); err != nil {
			return err
		}
		return mghelper.CreateModelIndexes(ctx, db, &opstore.OperationDao{}, "api_key_id", "status")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping operations table...")
		return mghelper.DropTables(ctx, db, &opstore.OperationDao{})
	})
}
