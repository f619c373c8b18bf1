package seasonmigrations

import (
	"context"
	"fmt"

	seasondb "github.com/Black-And-White-Club/arena-ranking/app/modules/season/infrastructure/repositories"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			fmt.Println("Creating seasons tables...")
			return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
				if _, err := tx.NewCreateTable().Model((*seasondb.Season)(nil)).IfNotExists().Exec(ctx); err != nil {
					return fmt.Errorf("failed to create seasons table: %w", err)
				}
				if _, err := tx.NewCreateTable().
					Model((*seasondb.FinalStanding)(nil)).
					IfNotExists().
					ForeignKey(`(season_id) REFERENCES seasons (id)`).
					ForeignKey(`(player_id) REFERENCES players (id) ON DELETE SET NULL`).
					Exec(ctx); err != nil {
					return fmt.Errorf("failed to create season_final_standings table: %w", err)
				}
				if _, err := tx.ExecContext(ctx, `
					CREATE UNIQUE INDEX IF NOT EXISTS uniq_seasons_single_active ON seasons (is_active) WHERE is_active;
					CREATE INDEX IF NOT EXISTS idx_season_final_standings_season ON season_final_standings (season_id, rank);
				`); err != nil {
					return fmt.Errorf("failed to create season indexes: %w", err)
				}
				if _, err := tx.ExecContext(ctx, `
					INSERT INTO seasons (name, slug, is_active, start_date)
					SELECT 'Season 1', 'season-1', true, now()
					WHERE NOT EXISTS (SELECT 1 FROM seasons);
				`); err != nil {
					return fmt.Errorf("failed to seed first season: %w", err)
				}
				fmt.Println("seasons tables created successfully!")
				return nil
			})
		},
		func(ctx context.Context, db *bun.DB) error {
			fmt.Println("Dropping seasons tables...")
			if _, err := db.NewDropTable().Model((*seasondb.FinalStanding)(nil)).IfExists().Cascade().Exec(ctx); err != nil {
				return err
			}
			if _, err := db.NewDropTable().Model((*seasondb.Season)(nil)).IfExists().Cascade().Exec(ctx); err != nil {
				return err
			}
			fmt.Println("seasons tables dropped successfully!")
			return nil
		},
	)
}
