//go:build integration

package testutils

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"

	eventmigrations "github.com/Black-And-White-Club/arena-ranking/app/modules/event/infrastructure/repositories/migrations"
	ledgermigrations "github.com/Black-And-White-Club/arena-ranking/app/modules/ledger/infrastructure/repositories/migrations"
	playermigrations "github.com/Black-And-White-Club/arena-ranking/app/modules/player/infrastructure/repositories/migrations"
	seasonqueue "github.com/Black-And-White-Club/arena-ranking/app/modules/season/infrastructure/queue"
	seasonmigrations "github.com/Black-And-White-Club/arena-ranking/app/modules/season/infrastructure/repositories/migrations"
)

// runMigrations applies every module's migrations in foreign key order, then the River schema.
func runMigrations(ctx context.Context, db *bun.DB, pool *pgxpool.Pool) error {
	orderedModules := []struct {
		name       string
		migrations *migrate.Migrations
	}{
		{"player", playermigrations.Migrations},
		{"season", seasonmigrations.Migrations},
		{"event", eventmigrations.Migrations},
		{"ledger", ledgermigrations.Migrations},
	}

	for _, mod := range orderedModules {
		if err := runModuleMigrations(ctx, db, mod.migrations, mod.name); err != nil {
			return err
		}
	}

	if err := seasonqueue.Migrate(ctx, pool); err != nil {
		return fmt.Errorf("failed to run River migrations: %w", err)
	}
	log.Println("All migrations ran successfully")
	return nil
}

func runModuleMigrations(ctx context.Context, db *bun.DB, migrations *migrate.Migrations, name string) error {
	migrator := migrate.NewMigrator(db, migrations,
		migrate.WithTableName("bun_migrations_"+name),
		migrate.WithLocksTableName("bun_migration_locks_"+name),
	)
	if err := migrator.Init(ctx); err != nil {
		return fmt.Errorf("failed to initialize %s migration tables: %w", name, err)
	}
	group, err := migrator.Migrate(ctx)
	if err != nil {
		return fmt.Errorf("failed to run %s migrations: %w", name, err)
	}
	if group.ID == 0 {
		log.Printf("No %s migrations to run", name)
	} else {
		log.Printf("Ran %s migrations group #%d", name, group.ID)
	}
	return nil
}

var appTables = []string{"ledger_entries", "season_final_standings", "events", "seasons", "players"}

// CleanupRiverJobs deletes all jobs from the River queue.
func CleanupRiverJobs(ctx context.Context, db bun.IDB) error {
	_, err := db.ExecContext(ctx, "DELETE FROM river_job")
	return err
}

// CleanupDatabase truncates every application table, restarts their sequences and clears the
// River queue.
func CleanupDatabase(ctx context.Context, db bun.IDB) error {
	if err := TruncateTables(ctx, db, appTables...); err != nil {
		return err
	}
	if err := CleanupRiverJobs(ctx, db); err != nil && !strings.Contains(err.Error(), "does not exist") {
		return fmt.Errorf("failed to cleanup river jobs: %w", err)
	}
	return nil
}

// TruncateTables truncates the given tables with CASCADE.
func TruncateTables(ctx context.Context, db bun.IDB, tables ...string) error {
	if len(tables) == 0 {
		return nil
	}
	quoted := make([]string, len(tables))
	for i, table := range tables {
		quoted[i] = fmt.Sprintf("%q", table)
	}
	query := "TRUNCATE TABLE " + strings.Join(quoted, ", ") + " RESTART IDENTITY CASCADE"
	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to truncate tables %v: %w", tables, err)
	}
	return nil
}
