// Package app assembles the ranking modules into a running process.
package app

import (
	"context"
	"fmt"
	"log/slog"

	eventservice "github.com/Black-And-White-Club/arena-ranking/app/modules/event/application"
	"github.com/Black-And-White-Club/arena-ranking/app/modules/ledger"
	playerservice "github.com/Black-And-White-Club/arena-ranking/app/modules/player/application"
	"github.com/Black-And-White-Club/arena-ranking/app/modules/season"
	"github.com/Black-And-White-Club/arena-ranking/config"
	"github.com/Black-And-White-Club/arena-ranking/db/bundb"
	"github.com/Black-And-White-Club/arena-ranking/pkg/attr"
	"github.com/Black-And-White-Club/arena-ranking/pkg/clock"
	"github.com/Black-And-White-Club/arena-ranking/pkg/eventbus"
	"github.com/Black-And-White-Club/arena-ranking/pkg/jwt"
	"github.com/Black-And-White-Club/arena-ranking/pkg/metrics"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"
)

const serviceName = "arena-ranking"

// App holds every long-lived component of the process.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Registry *prometheus.Registry
	DB       *bundb.DBService
	Pool     *pgxpool.Pool
	EventBus eventbus.EventBus
	Router   *message.Router
	Tokens   jwt.Service

	PlayerService playerservice.Service
	EventService  eventservice.Service
	LedgerModule  *ledger.Module
	SeasonModule  *season.Module
}

// NewApp connects to Postgres and the event bus and builds every module. Nothing runs until
// Start is called.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	app := &App{Config: cfg, Logger: logger}
	if err := app.initialize(ctx); err != nil {
		_ = app.Close(ctx)
		return nil, err
	}
	return app, nil
}

func (app *App) initialize(ctx context.Context) error {
	cfg := app.Config
	logger := app.Logger
	tracer := otel.Tracer(serviceName)

	app.Registry = prometheus.NewRegistry()
	app.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewPrometheus(app.Registry, "arena_ranking")

	dbService, err := bundb.NewBunDBService(ctx, cfg.Postgres, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database service: %w", err)
	}
	app.DB = dbService
	db := dbService.GetDB()

	pool, err := bundb.NewPool(ctx, cfg.Postgres.DSN)
	if err != nil {
		logger.WarnContext(ctx, "Job pool unavailable", attr.Error(err))
	} else {
		app.Pool = pool
	}

	if cfg.NATS.URL == "" {
		logger.InfoContext(ctx, "No NATS URL configured; using in-process event bus")
		app.EventBus = eventbus.NewInMemoryEventBus(logger)
	} else {
		bus, err := eventbus.NewNATSEventBus(cfg.NATS.URL, cfg.NATS.DurablePrefix, logger)
		if err != nil {
			return fmt.Errorf("failed to create event bus: %w", err)
		}
		app.EventBus = bus
	}

	router, err := message.NewRouter(message.RouterConfig{}, watermill.NewSlogLogger(logger))
	if err != nil {
		return fmt.Errorf("failed to create message router: %w", err)
	}
	app.Router = router

	app.Tokens = jwt.NewService(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.DefaultTTL, nil)

	app.PlayerService = playerservice.NewPlayerService(dbService.PlayerDB, logger, m, tracer, db)
	app.EventService = eventservice.NewEventService(dbService.EventDB, dbService.SeasonDB, logger, m, tracer, clock.RealClock{})

	app.LedgerModule, err = ledger.NewLedgerModule(ctx, cfg, ledger.Deps{
		Logger:   logger,
		Metrics:  m,
		Registry: app.Registry,
		Tracer:   tracer,
		DB:       db,
		Repo:     dbService.LedgerDB,
		Players:  dbService.PlayerDB,
		Events:   dbService.EventDB,
		Finder:   app.PlayerService,
		EventBus: app.EventBus,
		Router:   router,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize ledger module: %w", err)
	}

	app.SeasonModule, err = season.NewSeasonModule(ctx, cfg, season.Deps{
		Logger:    logger,
		Metrics:   m,
		Tracer:    tracer,
		DB:        db,
		Pool:      app.Pool,
		Repo:      dbService.SeasonDB,
		Points:    dbService.LedgerDB,
		Events:    dbService.EventDB,
		Publisher: app.EventBus,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize season module: %w", err)
	}

	logger.InfoContext(ctx, "Application initialized")
	return nil
}

// Close releases every connection. It is safe on a partially initialized App.
func (app *App) Close(ctx context.Context) error {
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if app.SeasonModule != nil {
		keep(app.SeasonModule.Close(ctx))
	}
	if app.LedgerModule != nil {
		keep(app.LedgerModule.Close())
	}
	if app.Router != nil {
		keep(app.Router.Close())
	}
	if app.EventBus != nil {
		keep(app.EventBus.Close())
	}
	if app.Pool != nil {
		app.Pool.Close()
	}
	if app.DB != nil {
		keep(app.DB.Close())
	}
	return firstErr
}
