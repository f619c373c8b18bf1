package playermigrations

import (
	"context"
	"fmt"

	playerdb "github.com/Black-And-White-Club/arena-ranking/app/modules/player/infrastructure/repositories"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			fmt.Println("Creating players table...")
			return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
				if _, err := tx.NewCreateTable().Model((*playerdb.Player)(nil)).IfNotExists().Exec(ctx); err != nil {
					return fmt.Errorf("failed to create players table: %w", err)
				}
				if _, err := tx.ExecContext(ctx, `
					ALTER TABLE players
						ADD CONSTRAINT players_lifetime_points_nonnegative CHECK (lifetime_points >= 0),
						ADD CONSTRAINT players_season_points_nonnegative CHECK (season_points >= 0);
					CREATE INDEX IF NOT EXISTS idx_players_lifetime_points ON players (lifetime_points DESC);
					CREATE INDEX IF NOT EXISTS idx_players_season_points ON players (season_points DESC);
				`); err != nil {
					return fmt.Errorf("failed to add players constraints: %w", err)
				}
				fmt.Println("players table created successfully!")
				return nil
			})
		},
		func(ctx context.Context, db *bun.DB) error {
			fmt.Println("Dropping players table...")
			if _, err := db.NewDropTable().Model((*playerdb.Player)(nil)).IfExists().Cascade().Exec(ctx); err != nil {
				return err
			}
			fmt.Println("players table dropped successfully!")
			return nil
		},
	)
}
