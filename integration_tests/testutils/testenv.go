//go:build integration

package testutils

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/uptrace/bun"

	"github.com/Black-And-White-Club/arena-ranking/config"
	"github.com/Black-And-White-Club/arena-ranking/db/bundb"
	"github.com/Black-And-White-Club/arena-ranking/integration_tests/containers"
)

// TestEnvironment holds a migrated Postgres container and the connections to it.
type TestEnvironment struct {
	Ctx           context.Context
	CancelContext context.CancelFunc
	PgContainer   *postgres.PostgresContainer
	ConnStr       string
	DB            *bun.DB
	DBService     *bundb.DBService
	Pool          *pgxpool.Pool
	Logger        *slog.Logger
}

// NewTestEnvironment starts Postgres, opens bun and pgx connections and runs every migration.
func NewTestEnvironment() (*TestEnvironment, error) {
	ctx, cancel := context.WithCancel(context.Background())
	env := &TestEnvironment{
		Ctx:           ctx,
		CancelContext: cancel,
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	pgContainer, connStr, err := containers.SetupPostgresContainer(ctx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to setup postgres container: %w", err)
	}
	env.PgContainer = pgContainer
	env.ConnStr = connStr

	dbService, err := bundb.NewBunDBService(ctx, config.PostgresConfig{DSN: connStr}, env.Logger)
	if err != nil {
		env.Cleanup()
		return nil, fmt.Errorf("failed to open bun DB: %w", err)
	}
	env.DBService = dbService
	env.DB = dbService.GetDB()

	pool, err := bundb.NewPool(ctx, connStr)
	if err != nil {
		env.Cleanup()
		return nil, fmt.Errorf("failed to open pgx pool: %w", err)
	}
	env.Pool = pool

	if err := runMigrations(ctx, env.DB, pool); err != nil {
		env.Cleanup()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return env, nil
}

// Reset empties every table so the next test starts from a clean database.
func (env *TestEnvironment) Reset(ctx context.Context) error {
	return CleanupDatabase(ctx, env.DB)
}

// Cleanup closes the connections and terminates the container.
func (env *TestEnvironment) Cleanup() {
	if env.Pool != nil {
		env.Pool.Close()
	}
	if env.DBService != nil {
		if err := env.DBService.Close(); err != nil {
			log.Printf("Error closing DB: %v", err)
		}
	}
	if env.PgContainer != nil {
		if err := env.PgContainer.Terminate(context.Background()); err != nil {
			log.Printf("Error terminating postgres container: %v", err)
		}
	}
	if env.CancelContext != nil {
		env.CancelContext()
	}
}

var (
	sharedEnv     *TestEnvironment
	sharedEnvOnce sync.Once
	sharedEnvErr  error
)

// GetTestEnv returns the package-wide environment, starting it on first use, and resets the
// database before handing it out.
func GetTestEnv(t *testing.T) *TestEnvironment {
	t.Helper()

	sharedEnvOnce.Do(func() {
		sharedEnv, sharedEnvErr = NewTestEnvironment()
	})
	if sharedEnvErr != nil {
		t.Fatalf("test environment initialization failed: %v", sharedEnvErr)
	}
	if err := sharedEnv.Reset(sharedEnv.Ctx); err != nil {
		t.Fatalf("failed to reset environment: %v", err)
	}
	return sharedEnv
}

// ShutdownTestEnv tears down the package-wide environment if one was started. Call it from
// TestMain after m.Run.
func ShutdownTestEnv() {
	if sharedEnv != nil {
		sharedEnv.Cleanup()
	}
}
