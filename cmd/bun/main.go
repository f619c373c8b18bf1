package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"strings"

	eventmigrations "github.com/Black-And-White-Club/arena-ranking/app/modules/event/infrastructure/repositories/migrations"
	ledgermigrations "github.com/Black-And-White-Club/arena-ranking/app/modules/ledger/infrastructure/repositories/migrations"
	playermigrations "github.com/Black-And-White-Club/arena-ranking/app/modules/player/infrastructure/repositories/migrations"
	seasonqueue "github.com/Black-And-White-Club/arena-ranking/app/modules/season/infrastructure/queue"
	seasonmigrations "github.com/Black-And-White-Club/arena-ranking/app/modules/season/infrastructure/repositories/migrations"
	"github.com/Black-And-White-Club/arena-ranking/config"
	"github.com/Black-And-White-Club/arena-ranking/db/bundb"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
	"github.com/urfave/cli/v2"
)

// moduleMigrator pairs a module with its migrator. Order matters: later modules reference
// tables of earlier ones.
type moduleMigrator struct {
	name     string
	migrator *migrate.Migrator
}

func newMigrators(db *bun.DB) []moduleMigrator {
	modules := []struct {
		name       string
		migrations *migrate.Migrations
	}{
		{"player", playermigrations.Migrations},
		{"season", seasonmigrations.Migrations},
		{"event", eventmigrations.Migrations},
		{"ledger", ledgermigrations.Migrations},
	}
	out := make([]moduleMigrator, 0, len(modules))
	for _, m := range modules {
		out = append(out, moduleMigrator{
			name: m.name,
			migrator: migrate.NewMigrator(db, m.migrations,
				migrate.WithTableName("bun_migrations_"+m.name),
				migrate.WithLocksTableName("bun_migration_locks_"+m.name),
			),
		})
	}
	return out
}

func main() {
	var db *bun.DB
	var migrators []moduleMigrator

	cliApp := &cli.App{
		Name:  "bun",
		Usage: "arena-ranking database migrations",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Value: "config.yaml", Usage: "Path to the configuration file"},
		},
		Before: func(c *cli.Context) error {
			if err := config.LoadDotEnv(); err != nil {
				return err
			}
			cfg, err := config.LoadConfig(c.String("config"))
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			pgdb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.DSN)))
			db = bun.NewDB(pgdb, pgdialect.New())
			migrators = newMigrators(db)
			c.App.Metadata["dsn"] = cfg.Postgres.DSN
			return nil
		},
		After: func(*cli.Context) error {
			if db != nil {
				return db.Close()
			}
			return nil
		},
		Commands: []*cli.Command{
			newMultiModuleDBCommand(func() []moduleMigrator { return migrators }),
		},
	}
	cliApp.Metadata = map[string]interface{}{}

	if err := cliApp.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func find(migrators []moduleMigrator, name string) (*migrate.Migrator, error) {
	for _, m := range migrators {
		if m.name == name {
			return m.migrator, nil
		}
	}
	return nil, fmt.Errorf("invalid module name: %s", name)
}

func newMultiModuleDBCommand(migrators func() []moduleMigrator) *cli.Command {
	return &cli.Command{
		Name:  "db",
		Usage: "database migrations",
		Subcommands: []*cli.Command{
			{
				Name:  "init",
				Usage: "create migration tables",
				Action: func(c *cli.Context) error {
					for _, m := range migrators() {
						fmt.Printf("Initializing migrations for module: %s\n", m.name)
						if err := m.migrator.Init(c.Context); err != nil {
							return fmt.Errorf("module %s: %w", m.name, err)
						}
					}
					return nil
				},
			},
			{
				Name:  "migrate",
				Usage: "migrate database, including the job queue schema",
				Action: func(c *cli.Context) error {
					for _, m := range migrators() {
						if err := m.migrator.Lock(c.Context); err != nil {
							return fmt.Errorf("module %s: %w", m.name, err)
						}
						group, err := m.migrator.Migrate(c.Context)
						_ = m.migrator.Unlock(c.Context)
						if err != nil {
							return fmt.Errorf("module %s: %w", m.name, err)
						}
						if group.IsZero() {
							fmt.Printf("No new migrations to run for module: %s\n", m.name)
						} else {
							fmt.Printf("Migrated module: %s to %s\n", m.name, group)
						}
					}

					pool, err := bundb.NewPool(c.Context, c.App.Metadata["dsn"].(string))
					if err != nil {
						return err
					}
					defer pool.Close()
					if err := seasonqueue.Migrate(c.Context, pool); err != nil {
						return err
					}
					fmt.Println("Job queue schema is up to date")
					return nil
				},
			},
			{
				Name:  "rollback",
				Usage: "rollback the last migration group of every module, newest module first",
				Action: func(c *cli.Context) error {
					ms := migrators()
					for i := len(ms) - 1; i >= 0; i-- {
						m := ms[i]
						group, err := m.migrator.Rollback(c.Context)
						if err != nil {
							return fmt.Errorf("module %s: %w", m.name, err)
						}
						if group.IsZero() {
							fmt.Printf("No groups to roll back for module: %s\n", m.name)
						} else {
							fmt.Printf("Rolled back module: %s to %s\n", m.name, group)
						}
					}
					return nil
				},
			},
			{
				Name:      "create_go",
				Usage:     "create Go migration",
				ArgsUsage: "MODULE NAME...",
				Action: func(c *cli.Context) error {
					moduleName := c.Args().First()
					migrator, err := find(migrators(), moduleName)
					if err != nil {
						return err
					}

					name := strings.Join(c.Args().Tail(), "_")
					mf, err := migrator.CreateGoMigration(c.Context, name)
					if err != nil {
						return err
					}
					fmt.Printf("Created migration for module %s: %s (%s)\n", moduleName, mf.Name, mf.Path)
					return nil
				},
			},
			{
				Name:  "status",
				Usage: "print migrations status",
				Action: func(c *cli.Context) error {
					for _, m := range migrators() {
						ms, err := m.migrator.MigrationsWithStatus(c.Context)
						if err != nil {
							return err
						}
						fmt.Printf("Migrations for module: %s\n", m.name)
						fmt.Printf("  %s\n", ms)
						fmt.Printf("  Applied: %s\n", ms.Applied())
						fmt.Printf("  Unapplied: %s\n", ms.Unapplied())
					}
					return nil
				},
			},
		},
	}
}
