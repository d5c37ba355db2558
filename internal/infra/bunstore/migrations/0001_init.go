// Package migrations registers the schema history for the result store.
// Evolution is additive-only: later migrations add nullable columns, never
// rewrite or drop existing ones.
package migrations

import (
	"context"
	_ "embed"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

//go:embed 0001_init.sql
var initSQL string

var Migrations = migrate.NewMigrations()

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, initSQL)
			return err
		},
		func(ctx context.Context, db *bun.DB) error {
			if _, err := db.ExecContext(ctx, `DROP TABLE IF EXISTS results`); err != nil {
				return err
			}
			_, err := db.ExecContext(ctx, `DROP TABLE IF EXISTS campaigns`)
			return err
		},
	)
}
