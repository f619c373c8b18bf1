// Package bundb opens the Postgres connections the ranking runs on.
package bundb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	eventdb "github.com/Black-And-White-Club/arena-ranking/app/modules/event/infrastructure/repositories"
	ledgerdb "github.com/Black-And-White-Club/arena-ranking/app/modules/ledger/infrastructure/repositories"
	playerdb "github.com/Black-And-White-Club/arena-ranking/app/modules/player/infrastructure/repositories"
	seasondb "github.com/Black-And-White-Club/arena-ranking/app/modules/season/infrastructure/repositories"
	"github.com/Black-And-White-Club/arena-ranking/config"
	"github.com/Black-And-White-Club/arena-ranking/pkg/attr"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// DBService holds the repositories of every module on one connection pool.
type DBService struct {
	PlayerDB playerdb.Repository
	SeasonDB seasondb.Repository
	EventDB  eventdb.Repository
	LedgerDB ledgerdb.Repository
	db       *bun.DB
}

// GetDB returns the underlying database connection pool.
func (s *DBService) GetDB() *bun.DB {
	return s.db
}

// Close closes the pool.
func (s *DBService) Close() error {
	return s.db.Close()
}

// NewBunDBService connects to Postgres and builds the repositories.
func NewBunDBService(ctx context.Context, cfg config.PostgresConfig, logger *slog.Logger) (*DBService, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres dsn is not configured")
	}

	sqldb, err := pgConn(ctx, cfg.DSN)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to connect to PostgreSQL", attr.Error(err))
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db := bun.NewDB(sqldb, pgdialect.New())
	return NewDBService(db), nil
}

// NewDBService wraps an open bun.DB.
func NewDBService(db *bun.DB) *DBService {
	db.RegisterModel(
		(*playerdb.Player)(nil),
		(*seasondb.Season)(nil),
		(*seasondb.FinalStanding)(nil),
		(*eventdb.Event)(nil),
		(*ledgerdb.Entry)(nil),
	)
	return &DBService{
		PlayerDB: playerdb.NewRepository(db),
		SeasonDB: seasondb.NewRepository(db),
		EventDB:  eventdb.NewRepository(db),
		LedgerDB: ledgerdb.NewRepository(db),
		db:       db,
	}
}

func pgConn(ctx context.Context, dsn string) (*sql.DB, error) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))

	if err := sqldb.PingContext(ctx); err != nil {
		_ = sqldb.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return sqldb, nil
}

// NewPool opens the pgx pool River runs on.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}
