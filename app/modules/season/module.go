package season

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	seasonservice "github.com/Black-And-White-Club/arena-ranking/app/modules/season/application"
	seasonqueue "github.com/Black-And-White-Club/arena-ranking/app/modules/season/infrastructure/queue"
	seasondb "github.com/Black-And-White-Club/arena-ranking/app/modules/season/infrastructure/repositories"
	"github.com/Black-And-White-Club/arena-ranking/config"
	"github.com/Black-And-White-Club/arena-ranking/pkg/attr"
	"github.com/Black-And-White-Club/arena-ranking/pkg/clock"
	"github.com/Black-And-White-Club/arena-ranking/pkg/eventbus"
	"github.com/Black-And-White-Club/arena-ranking/pkg/metrics"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/trace"
)

// Deps are the collaborators the season module is built from. A nil Pool disables scheduled
// rotation.
type Deps struct {
	Logger    *slog.Logger
	Metrics   metrics.OperationMetrics
	Tracer    trace.Tracer
	DB        *bun.DB
	Pool      *pgxpool.Pool
	Repo      seasondb.Repository
	Points    seasonservice.Accumulators
	Events    seasonservice.SeasonEvents
	Publisher eventbus.Publisher
	Clock     clock.Clock
}

// Module represents the season module.
type Module struct {
	SeasonService seasonservice.Service
	Queue         seasonqueue.QueueService
	logger        *slog.Logger
	cancelFunc    context.CancelFunc
}

// NewSeasonModule wires the season service and, when a pool is available, the River queue that
// runs scheduled rotations.
func NewSeasonModule(ctx context.Context, cfg *config.Config, deps Deps) (*Module, error) {
	logger := deps.Logger
	logger.InfoContext(ctx, "season.NewSeasonModule called")

	service := seasonservice.NewSeasonService(
		deps.Repo,
		deps.Points,
		deps.Events,
		deps.Publisher,
		logger,
		deps.Metrics,
		deps.Tracer,
		deps.DB,
		deps.Clock,
	)
	m := &Module{SeasonService: service, logger: logger}

	if deps.Pool == nil {
		logger.WarnContext(ctx, "No job pool configured; scheduled season rotation disabled")
		return m, nil
	}
	if err := seasonqueue.Migrate(ctx, deps.Pool); err != nil {
		return nil, err
	}
	queue, err := seasonqueue.NewService(deps.Pool, deps.DB, service, logger, deps.Metrics, cfg.Jobs.SeasonQueueWorkers)
	if err != nil {
		return nil, fmt.Errorf("failed to create season queue: %w", err)
	}
	service.SetScheduler(queue)
	m.Queue = queue
	return m, nil
}

// Run starts the queue workers and blocks until ctx is canceled.
func (m *Module) Run(ctx context.Context, wg *sync.WaitGroup) {
	m.logger.InfoContext(ctx, "Starting season module")

	ctx, cancel := context.WithCancel(ctx)
	m.cancelFunc = cancel
	defer cancel()

	if wg != nil {
		defer wg.Done()
	}

	if m.Queue != nil {
		if err := m.Queue.Start(ctx); err != nil {
			m.logger.ErrorContext(ctx, "Failed to start season queue", attr.Error(err))
		}
	}

	<-ctx.Done()
	m.logger.InfoContext(ctx, "Season module goroutine stopped")
}

// Close drains the queue.
func (m *Module) Close(ctx context.Context) error {
	m.logger.Info("Stopping season module")

	if m.Queue != nil {
		if err := m.Queue.Stop(ctx); err != nil {
			return fmt.Errorf("error stopping season queue: %w", err)
		}
	}
	if m.cancelFunc != nil {
		m.cancelFunc()
	}

	m.logger.Info("Season module stopped")
	return nil
}
