package ledgermigrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Creating ledger_entries table...")

		return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			if _, err := tx.ExecContext(ctx, `
				CREATE TABLE IF NOT EXISTS ledger_entries (
					id BIGSERIAL PRIMARY KEY,
					player_id BIGINT NOT NULL,
					event_id BIGINT,
					points INTEGER NOT NULL,
					position INTEGER,
					reason TEXT NOT NULL DEFAULT '',
					source VARCHAR(16) NOT NULL DEFAULT 'manual',
					batch_id UUID,
					added_by VARCHAR(64) NOT NULL,
					added_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					CONSTRAINT ledger_entries_player_id_fkey FOREIGN KEY (player_id) REFERENCES players (id) ON DELETE CASCADE,
					CONSTRAINT ledger_entries_event_id_fkey FOREIGN KEY (event_id) REFERENCES events (id),
					CONSTRAINT ledger_entries_source_check CHECK (source IN ('manual', 'bulk')),
					CONSTRAINT ledger_entries_position_check CHECK (position IS NULL OR position > 0)
				);
			`); err != nil {
				return fmt.Errorf("failed to create ledger_entries table: %w", err)
			}

			// One bulk-originated entry per (player, event).
			if _, err := tx.ExecContext(ctx, `
				CREATE UNIQUE INDEX IF NOT EXISTS uniq_ledger_entries_bulk_player_event
					ON ledger_entries (player_id, event_id) WHERE source = 'bulk';
				CREATE INDEX IF NOT EXISTS idx_ledger_entries_player ON ledger_entries (player_id, added_at DESC);
				CREATE INDEX IF NOT EXISTS idx_ledger_entries_event ON ledger_entries (event_id);
				CREATE INDEX IF NOT EXISTS idx_ledger_entries_added_at ON ledger_entries (added_at DESC);
			`); err != nil {
				return fmt.Errorf("failed to create ledger_entries indexes: %w", err)
			}
			fmt.Println("ledger_entries table created successfully!")
			return nil
		})
	}, func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Dropping ledger_entries table...")
		if _, err := db.ExecContext(ctx, `DROP TABLE IF EXISTS ledger_entries CASCADE;`); err != nil {
			return fmt.Errorf("failed to drop ledger_entries table: %w", err)
		}
		fmt.Println("ledger_entries table dropped successfully!")
		return nil
	})
}
