package eventmigrations

import (
	"context"
	"fmt"

	eventdb "github.com/Black-And-White-Club/arena-ranking/app/modules/event/infrastructure/repositories"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			fmt.Println("Creating events table...")
			return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
				if _, err := tx.NewCreateTable().
					Model((*eventdb.Event)(nil)).
					IfNotExists().
					ForeignKey(`(season_id) REFERENCES seasons (id) ON DELETE SET NULL`).
					Exec(ctx); err != nil {
					return fmt.Errorf("failed to create events table: %w", err)
				}
				if _, err := tx.ExecContext(ctx, `
					CREATE INDEX IF NOT EXISTS idx_events_season ON events (season_id, event_date DESC);
				`); err != nil {
					return fmt.Errorf("failed to create events indexes: %w", err)
				}
				fmt.Println("events table created successfully!")
				return nil
			})
		},
		func(ctx context.Context, db *bun.DB) error {
			fmt.Println("Dropping events table...")
			if _, err := db.NewDropTable().Model((*eventdb.Event)(nil)).IfExists().Cascade().Exec(ctx); err != nil {
				return err
			}
			fmt.Println("events table dropped successfully!")
			return nil
		},
	)
}
