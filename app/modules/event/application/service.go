package eventservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	eventdomain "github.com/Black-And-White-Club/arena-ranking/app/modules/event/domain"
	eventdb "github.com/Black-And-White-Club/arena-ranking/app/modules/event/infrastructure/repositories"
	seasondb "github.com/Black-And-White-Club/arena-ranking/app/modules/season/infrastructure/repositories"
	"github.com/Black-And-White-Club/arena-ranking/app/shared"
	"github.com/Black-And-White-Club/arena-ranking/pkg/attr"
	"github.com/Black-And-White-Club/arena-ranking/pkg/clock"
	"github.com/Black-And-White-Club/arena-ranking/pkg/metrics"
	"github.com/Black-And-White-Club/arena-ranking/pkg/results"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const serviceName = "event"

// EventResult is the result shape of event operations.
type EventResult = results.OperationResult[*eventdb.Event, error]

// ActiveSeasonLookup resolves the season new events belong to.
type ActiveSeasonLookup interface {
	GetActive(ctx context.Context, db bun.IDB) (*seasondb.Season, error)
}

// Service manages events.
type Service interface {
	CreateEvent(ctx context.Context, name, date, description, actor string) (EventResult, error)
	GetEvent(ctx context.Context, id int64) (EventResult, error)
	ListEvents(ctx context.Context, limit int) ([]eventdb.Event, error)
	ListForSeason(ctx context.Context, seasonID int64) ([]eventdb.Event, error)
	CountEvents(ctx context.Context) (int, error)
}

// EventService implements the Service interface.
type EventService struct {
	repo    eventdb.Repository
	seasons ActiveSeasonLookup
	logger  *slog.Logger
	metrics metrics.OperationMetrics
	tracer  trace.Tracer
	clock   clock.Clock
}

// NewEventService creates a new EventService.
func NewEventService(
	repo eventdb.Repository,
	seasons ActiveSeasonLookup,
	logger *slog.Logger,
	m metrics.OperationMetrics,
	tracer trace.Tracer,
	clk clock.Clock,
) *EventService {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer(serviceName)
	}
	if m == nil {
		m = metrics.NewNoop()
	}
	return &EventService{
		repo:    repo,
		seasons: seasons,
		logger:  logger,
		metrics: m,
		tracer:  tracer,
		clock:   clock.Or(clk),
	}
}

func (s *EventService) observe(ctx context.Context, operationName, ref string, op func(ctx context.Context) (EventResult, error)) (result EventResult, err error) {
	ctx, span := s.tracer.Start(ctx, operationName, trace.WithAttributes(
		attribute.String("operation", operationName),
		attribute.String("event", ref),
	))
	defer span.End()

	s.metrics.RecordOperationAttempt(ctx, operationName, serviceName)
	start := time.Now()
	defer func() {
		s.metrics.RecordOperationDuration(ctx, operationName, serviceName, time.Since(start))
	}()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s: %v", operationName, r)
			s.logger.ErrorContext(ctx, "Critical panic recovered", attr.ExtractCorrelationID(ctx), attr.Error(err))
			s.metrics.RecordOperationFailure(ctx, operationName, serviceName)
			span.RecordError(err)
			result = EventResult{}
		}
	}()

	result, err = op(ctx)
	switch {
	case err != nil:
		err = fmt.Errorf("%s: %w", operationName, err)
		s.logger.ErrorContext(ctx, "Operation failed with error",
			attr.String("operation", operationName),
			attr.String("event", ref),
			attr.ExtractCorrelationID(ctx),
			attr.Error(err),
		)
		s.metrics.RecordOperationFailure(ctx, operationName, serviceName)
		span.RecordError(err)
	case result.IsFailure():
		s.logger.WarnContext(ctx, "Operation returned failure result",
			attr.String("operation", operationName),
			attr.String("event", ref),
			attr.Error(*result.Failure),
		)
	default:
		s.metrics.RecordOperationSuccess(ctx, operationName, serviceName)
	}
	return result, err
}

// CreateEvent records an event and attaches it to the active season, if there is one.
func (s *EventService) CreateEvent(ctx context.Context, name, date, description, actor string) (EventResult, error) {
	name = strings.TrimSpace(name)
	return s.observe(ctx, "CreateEvent", name, func(ctx context.Context) (EventResult, error) {
		if name == "" {
			return results.FailureResult[*eventdb.Event, error](shared.Invalid("name", "is required")), nil
		}
		if strings.TrimSpace(actor) == "" {
			return results.FailureResult[*eventdb.Event, error](shared.Invalid("actor", "is required")), nil
		}
		eventDate, err := eventdomain.ParseEventDate(date, s.clock.Now())
		if err != nil {
			return results.FailureResult[*eventdb.Event, error](shared.Invalid("date", "is not a recognizable date")), nil
		}

		event := &eventdb.Event{
			Name:        name,
			EventDate:   eventDate,
			Description: strings.TrimSpace(description),
			CreatedBy:   actor,
		}
		if s.seasons != nil {
			season, err := s.seasons.GetActive(ctx, nil)
			switch {
			case err == nil:
				event.SeasonID = &season.ID
			case errors.Is(err, seasondb.ErrNotFound):
			default:
				return EventResult{}, err
			}
		}
		if err := s.repo.Create(ctx, nil, event); err != nil {
			return EventResult{}, err
		}
		s.logger.InfoContext(ctx, "Event created",
			attr.EventID(event.ID),
			attr.String("name", event.Name),
			attr.Time("event_date", event.EventDate),
		)
		return results.SuccessResult[*eventdb.Event, error](event), nil
	})
}

// GetEvent returns an event by id.
func (s *EventService) GetEvent(ctx context.Context, id int64) (EventResult, error) {
	return s.observe(ctx, "GetEvent", strconv.FormatInt(id, 10), func(ctx context.Context) (EventResult, error) {
		event, err := s.repo.GetByID(ctx, nil, id)
		if err != nil {
			if errors.Is(err, eventdb.ErrNotFound) {
				return results.FailureResult[*eventdb.Event, error](shared.NotFoundf("event %d", id)), nil
			}
			return EventResult{}, err
		}
		return results.SuccessResult[*eventdb.Event, error](event), nil
	})
}

func (s *EventService) ListEvents(ctx context.Context, limit int) ([]eventdb.Event, error) {
	return s.repo.List(ctx, nil, limit)
}

func (s *EventService) ListForSeason(ctx context.Context, seasonID int64) ([]eventdb.Event, error) {
	return s.repo.ListForSeason(ctx, nil, seasonID)
}

func (s *EventService) CountEvents(ctx context.Context) (int, error) {
	return s.repo.Count(ctx, nil)
}

var _ Service = (*EventService)(nil)
