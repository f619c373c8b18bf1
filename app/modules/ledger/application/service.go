package ledgerservice

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	eventdb "github.com/Black-And-White-Club/arena-ranking/app/modules/event/infrastructure/repositories"
	ledgerdomain "github.com/Black-And-White-Club/arena-ranking/app/modules/ledger/domain"
	ledgerdb "github.com/Black-And-White-Club/arena-ranking/app/modules/ledger/infrastructure/repositories"
	playerdb "github.com/Black-And-White-Club/arena-ranking/app/modules/player/infrastructure/repositories"
	"github.com/Black-And-White-Club/arena-ranking/pkg/attr"
	"github.com/Black-And-White-Club/arena-ranking/pkg/clock"
	"github.com/Black-And-White-Club/arena-ranking/pkg/eventbus"
	"github.com/Black-And-White-Club/arena-ranking/pkg/keylock"
	"github.com/Black-And-White-Club/arena-ranking/pkg/metrics"
	"github.com/Black-And-White-Club/arena-ranking/pkg/results"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const serviceName = "ledger"

// PlayerDirectory is the part of the player store the ledger reads.
type PlayerDirectory interface {
	GetByNick(ctx context.Context, db bun.IDB, nickFolded string) (*playerdb.Player, error)
	Count(ctx context.Context, db bun.IDB) (int, error)
}

// EventCatalog is the part of the event store the ledger reads.
type EventCatalog interface {
	GetByID(ctx context.Context, db bun.IDB, id int64) (*eventdb.Event, error)
	Count(ctx context.Context, db bun.IDB) (int, error)
}

// TextRecognizer extracts raw text lines from a results screenshot.
type TextRecognizer interface {
	Recognize(ctx context.Context, image []byte) (string, error)
}

// Service is the points ledger.
type Service interface {
	Award(ctx context.Context, req AwardRequest) (AwardResult, error)
	Remove(ctx context.Context, entryID int64, actor string) (RemovalResult, error)
	AwardIfAbsent(ctx context.Context, req AwardRequest) (AwardResult, error)
	TotalFor(ctx context.Context, playerID int64) (results.OperationResult[ledgerdomain.Totals, error], error)
	RankOf(ctx context.Context, playerID int64) (results.OperationResult[int, error], error)
	BulkAward(ctx context.Context, req BulkRequest) (BulkResult, error)

	Ranking(ctx context.Context, order ledgerdb.Order, limit int) ([]ledgerdb.Standing, error)
	History(ctx context.Context, playerID int64, limit int) ([]ledgerdb.HistoryEntry, error)
	Dashboard(ctx context.Context) (*Dashboard, error)
	ExportCSV(ctx context.Context, w io.Writer) error
	ExportXLSX(ctx context.Context, w io.Writer) error
	ExportFilename(ext string) string
	AuditDrift(ctx context.Context) (int, error)
	PointsChart(ctx context.Context, playerID int64) ([]byte, error)

	RecognizeResults(ctx context.Context, image []byte) (results.OperationResult[*RecognizedResults, error], error)
	ParseResultsSpreadsheet(ctx context.Context, r io.Reader) (results.OperationResult[[]ledgerdomain.ResultRow, error], error)
}

var _ Service = (*LedgerService)(nil)

// LedgerService implements the Service interface.
type LedgerService struct {
	repo       ledgerdb.Repository
	players    PlayerDirectory
	events     EventCatalog
	publisher  eventbus.Publisher
	recognizer TextRecognizer
	logger     *slog.Logger
	metrics    metrics.DomainMetrics
	tracer     trace.Tracer
	db         *bun.DB
	clock      clock.Clock

	awardLocks keylock.Map[awardKey]
}

type awardKey struct {
	playerID int64
	eventID  int64
}

// Option customizes a LedgerService.
type Option func(*LedgerService)

// WithRecognizer enables screenshot text recognition.
func WithRecognizer(r TextRecognizer) Option {
	return func(s *LedgerService) { s.recognizer = r }
}

// WithClock overrides the clock used for timestamps and export names.
func WithClock(c clock.Clock) Option {
	return func(s *LedgerService) { s.clock = clock.Or(c) }
}

// NewLedgerService creates a new LedgerService. publisher may be nil, in which case no domain
// events are emitted.
func NewLedgerService(
	repo ledgerdb.Repository,
	players PlayerDirectory,
	events EventCatalog,
	publisher eventbus.Publisher,
	logger *slog.Logger,
	m metrics.DomainMetrics,
	tracer trace.Tracer,
	db *bun.DB,
	opts ...Option,
) *LedgerService {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer(serviceName)
	}
	if m == nil {
		m = metrics.NewNoop()
	}
	s := &LedgerService{
		repo:      repo,
		players:   players,
		events:    events,
		publisher: publisher,
		logger:    logger,
		metrics:   m,
		tracer:    tracer,
		db:        db,
		clock:     clock.RealClock{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// operationFunc is the generic signature for service operation functions.
type operationFunc[S any, F any] func(ctx context.Context) (results.OperationResult[S, F], error)

// withTelemetry wraps a service operation with tracing, metrics, and panic recovery.
func withTelemetry[S any, F any](
	s *LedgerService,
	ctx context.Context,
	operationName string,
	playerID int64,
	op operationFunc[S, F],
) (result results.OperationResult[S, F], err error) {
	ctx, span := s.tracer.Start(ctx, operationName, trace.WithAttributes(
		attribute.String("operation", operationName),
		attribute.Int64("player_id", playerID),
	))
	defer span.End()

	s.metrics.RecordOperationAttempt(ctx, operationName, serviceName)

	startTime := time.Now()
	defer func() {
		s.metrics.RecordOperationDuration(ctx, operationName, serviceName, time.Since(startTime))
	}()

	s.logger.InfoContext(ctx, operationName+" triggered",
		attr.String("operation", operationName),
		attr.PlayerID(playerID),
		attr.ExtractCorrelationID(ctx),
	)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s: %v", operationName, r)
			s.logger.ErrorContext(ctx, "Critical panic recovered",
				attr.PlayerID(playerID),
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
			attr.PlayerID(playerID),
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
			attr.PlayerID(playerID),
			attr.Any("failure_payload", *result.Failure),
		)
	}

	if result.IsSuccess() {
		s.logger.InfoContext(ctx, operationName+" completed successfully",
			attr.String("operation", operationName),
			attr.PlayerID(playerID),
			attr.ExtractCorrelationID(ctx),
		)
		s.metrics.RecordOperationSuccess(ctx, operationName, serviceName)
	}

	return result, nil
}

// errRollback aborts a transaction whose operation produced a domain failure.
var errRollback = errors.New("rollback on failure result")

// runInTx runs fn in a transaction. A failure result rolls the transaction back, so a rejected
// operation never leaves partial writes.
func runInTx[S any, F any](
	s *LedgerService,
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

// publish emits a domain event after commit. Failures are logged, never returned.
func (s *LedgerService) publish(ctx context.Context, topic string, payload any) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, topic, payload); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish domain event",
			attr.String("topic", topic),
			attr.ExtractCorrelationID(ctx),
			attr.Error(err),
		)
	}
}
