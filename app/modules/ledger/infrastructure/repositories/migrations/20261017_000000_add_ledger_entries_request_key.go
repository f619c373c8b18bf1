package ledgermigrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Adding ledger_entries.request_key...")

		return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			if _, err := tx.ExecContext(ctx, `
				ALTER TABLE ledger_entries ADD COLUMN IF NOT EXISTS request_key VARCHAR(64);
				CREATE UNIQUE INDEX IF NOT EXISTS uniq_ledger_entries_request_key
					ON ledger_entries (request_key) WHERE request_key IS NOT NULL;
			`); err != nil {
				return fmt.Errorf("failed to add ledger_entries.request_key: %w", err)
			}
			fmt.Println("ledger_entries.request_key added successfully!")
			return nil
		})
	}, func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Dropping ledger_entries.request_key...")
		if _, err := db.ExecContext(ctx, `
			DROP INDEX IF EXISTS uniq_ledger_entries_request_key;
			ALTER TABLE ledger_entries DROP COLUMN IF EXISTS request_key;
		`); err != nil {
			return fmt.Errorf("failed to drop ledger_entries.request_key: %w", err)
		}
		fmt.Println("ledger_entries.request_key dropped successfully!")
		return nil
	})
}
