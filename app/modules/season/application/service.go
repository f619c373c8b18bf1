package seasonservice

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	eventdb "github.com/Black-And-White-Club/arena-ranking/app/modules/event/infrastructure/repositories"
	ledgerdb "github.com/Black-And-White-Club/arena-ranking/app/modules/ledger/infrastructure/repositories"
	seasondb "github.com/Black-And-White-Club/arena-ranking/app/modules/season/infrastructure/repositories"
	"github.com/Black-And-White-Club/arena-ranking/pkg/attr"
	"github.com/Black-And-White-Club/arena-ranking/pkg/clock"
	"github.com/Black-And-White-Club/arena-ranking/pkg/eventbus"
	"github.com/Black-And-White-Club/arena-ranking/pkg/metrics"
	"github.com/Black-And-White-Club/arena-ranking/pkg/results"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const serviceName = "season"

// Accumulators is the part of the ledger store that season transitions drive. Season code never
// writes player points directly.
type Accumulators interface {
	LockAccumulators(ctx context.Context, db bun.IDB) error
	CountSeasonScorers(ctx context.Context, db bun.IDB) (int, error)
	ResetSeasonPoints(ctx context.Context, db bun.IDB) (int, error)
	ResetAll(ctx context.Context, db bun.IDB) (playersReset int, entriesDeleted int, err error)
	Ranking(ctx context.Context, db bun.IDB, order ledgerdb.Order, limit int) ([]ledgerdb.Standing, error)
	Aggregates(ctx context.Context, db bun.IDB) (ledgerdb.Aggregates, error)
}

// SeasonEvents lists the events held during a season.
type SeasonEvents interface {
	ListForSeason(ctx context.Context, db bun.IDB, seasonID int64) ([]eventdb.Event, error)
}

// EndScheduler enqueues a deferred EndAndRotate.
type EndScheduler interface {
	EnqueueEnd(ctx context.Context, currentID int64, nextID *int64, at time.Time) (*ScheduledEnd, error)
}

// Service is the season manager.
type Service interface {
	Create(ctx context.Context, name string) (SeasonResult, error)
	Activate(ctx context.Context, seasonID int64) (SeasonResult, error)
	EndAndRotate(ctx context.Context, currentID int64, nextID *int64) (RotationResult, error)
	HardReset(ctx context.Context, confirmation string) (HardResetResult, error)
	ScheduleEnd(ctx context.Context, currentID int64, nextID *int64, at time.Time) (ScheduleResult, error)

	GetSeason(ctx context.Context, seasonID int64) (SeasonResult, error)
	GetActive(ctx context.Context) (SeasonResult, error)
	List(ctx context.Context) ([]seasondb.Season, error)
	Stats(ctx context.Context, seasonID int64) (results.OperationResult[*Stats, error], error)
}

var _ Service = (*SeasonService)(nil)

// SeasonService implements the Service interface.
type SeasonService struct {
	repo      seasondb.Repository
	points    Accumulators
	events    SeasonEvents
	scheduler EndScheduler
	publisher eventbus.Publisher
	logger    *slog.Logger
	metrics   metrics.OperationMetrics
	tracer    trace.Tracer
	db        *bun.DB
	clock     clock.Clock

	// mu serializes season transitions within this process. Row locks cover other processes.
	mu sync.Mutex
}

// NewSeasonService creates a new SeasonService. publisher may be nil.
func NewSeasonService(
	repo seasondb.Repository,
	points Accumulators,
	events SeasonEvents,
	publisher eventbus.Publisher,
	logger *slog.Logger,
	m metrics.OperationMetrics,
	tracer trace.Tracer,
	db *bun.DB,
	c clock.Clock,
) *SeasonService {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer(serviceName)
	}
	if m == nil {
		m = metrics.NewNoop()
	}
	return &SeasonService{
		repo:      repo,
		points:    points,
		events:    events,
		publisher: publisher,
		logger:    logger,
		metrics:   m,
		tracer:    tracer,
		db:        db,
		clock:     clock.Or(c),
	}
}

// SetScheduler enables ScheduleEnd. The scheduler usually depends on the service itself, so it is
// attached after construction.
func (s *SeasonService) SetScheduler(scheduler EndScheduler) {
	s.scheduler = scheduler
}

// operationFunc is the generic signature for service operation functions.
type operationFunc[S any, F any] func(ctx context.Context) (results.OperationResult[S, F], error)

// withTelemetry wraps a service operation with tracing, metrics, and panic recovery.
func withTelemetry[S any, F any](
	s *SeasonService,
	ctx context.Context,
	operationName string,
	seasonID int64,
	op operationFunc[S, F],
) (result results.OperationResult[S, F], err error) {
	ctx, span := s.tracer.Start(ctx, operationName, trace.WithAttributes(
		attribute.String("operation", operationName),
		attribute.Int64("season_id", seasonID),
	))
	defer span.End()

	s.metrics.RecordOperationAttempt(ctx, operationName, serviceName)

	startTime := time.Now()
	defer func() {
		s.metrics.RecordOperationDuration(ctx, operationName, serviceName, time.Since(startTime))
	}()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s: %v", operationName, r)
			s.logger.ErrorContext(ctx, "Critical panic recovered",
				attr.SeasonID(seasonID),
				attr.ExtractCorrelationID(ctx),
				attr.Error(err),
			)
			s.metrics.RecordOperationFailure(ctx, operationName, serviceName)
			span.RecordError(err)
			result = results.OperationResult[S, F]{}
		}
	}()

	result, err = op(ctx)

	if err != nil {
		wrappedErr := fmt.Errorf("%s: %w", operationName, err)
		s.logger.ErrorContext(ctx, "Operation failed with error",
			attr.ExtractCorrelationID(ctx),
			attr.String("operation", operationName),
			attr.SeasonID(seasonID),
			attr.Error(wrappedErr),
		)
		s.metrics.RecordOperationFailure(ctx, operationName, serviceName)
		span.RecordError(wrappedErr)
		return result, wrappedErr
	}

	if result.IsFailure() {
		s.logger.WarnContext(ctx, "Operation returned failure result",
			attr.ExtractCorrelationID(ctx),
			attr.String("operation", operationName),
			attr.SeasonID(seasonID),
			attr.Any("failure_payload", *result.Failure),
		)
	} else {
		s.metrics.RecordOperationSuccess(ctx, operationName, serviceName)
	}

	return result, nil
}

var errRollback = errors.New("rollback on failure result")

// runInTx runs fn in a transaction that is rolled back when fn returns a failure result.
func runInTx[S any, F any](
	s *SeasonService,
	ctx context.Context,
	fn func(ctx context.Context, db bun.IDB) (results.OperationResult[S, F], error),
) (results.OperationResult[S, F], error) {
	if s.db == nil {
		return fn(ctx, nil)
	}

	var result results.OperationResult[S, F]
	err := s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		var txErr error
		result, txErr = fn(ctx, tx)
		if txErr == nil && result.IsFailure() {
			return errRollback
		}
		return txErr
	})
	if errors.Is(err, errRollback) {
		return result, nil
	}
	return result, err
}

func (s *SeasonService) publish(ctx context.Context, topic string, payload any) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, topic, payload); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish season event",
			attr.String("topic", topic),
			attr.ExtractCorrelationID(ctx),
			attr.Error(err),
		)
	}
}
