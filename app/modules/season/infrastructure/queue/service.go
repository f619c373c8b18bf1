package seasonqueue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	seasonservice "github.com/Black-And-White-Club/arena-ranking/app/modules/season/application"
	"github.com/Black-And-White-Club/arena-ranking/pkg/attr"
	"github.com/Black-And-White-Club/arena-ranking/pkg/metrics"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/riverqueue/river/rivertype"
	"github.com/uptrace/bun"
)

const (
	queueName     = "season"
	componentName = "river"
)

// uniqueStates leaves completed jobs out so a reactivated season can be scheduled to end again.
var uniqueStates = []rivertype.JobState{
	rivertype.JobStateAvailable,
	rivertype.JobStatePending,
	rivertype.JobStateRetryable,
	rivertype.JobStateRunning,
	rivertype.JobStateScheduled,
}

// QueueService schedules deferred season work.
type QueueService interface {
	EnqueueEnd(ctx context.Context, currentID int64, nextID *int64, at time.Time) (*seasonservice.ScheduledEnd, error)
	ScheduledJobs(ctx context.Context, seasonID int64) ([]JobInfo, error)
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

var _ QueueService = (*Service)(nil)

// Service handles job scheduling for the season module using River.
type Service struct {
	client  *river.Client[pgx.Tx]
	logger  *slog.Logger
	db      *bun.DB
	metrics metrics.OperationMetrics
}

// Migrate applies River's schema migrations.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		return fmt.Errorf("failed to create River migrator: %w", err)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, &rivermigrate.MigrateOpts{}); err != nil {
		return fmt.Errorf("failed to run River migrations: %w", err)
	}
	return nil
}

// NewService creates a River client with the season workers registered. db is used to inspect
// the river_job table.
func NewService(pool *pgxpool.Pool, db *bun.DB, rotator Rotator, logger *slog.Logger, m metrics.OperationMetrics, maxWorkers int) (*Service, error) {
	logger = logger.With(attr.String("component", "season_queue"))
	if maxWorkers <= 0 {
		maxWorkers = 1
	}

	workers := river.NewWorkers()
	river.AddWorker(workers, NewSeasonEndWorker(rotator, logger))

	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			queueName: {MaxWorkers: maxWorkers},
		},
		Workers: workers,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create River client: %w", err)
	}

	return &Service{client: client, logger: logger, db: db, metrics: m}, nil
}

func (s *Service) observe(ctx context.Context, operation string, fn func() error) error {
	start := time.Now()
	s.metrics.RecordOperationAttempt(ctx, operation, componentName)
	err := fn()
	s.metrics.RecordOperationDuration(ctx, operation, componentName, time.Since(start))
	if err != nil {
		s.metrics.RecordOperationFailure(ctx, operation, componentName)
		s.logger.ErrorContext(ctx, "Queue operation failed", attr.String("operation", operation), attr.Error(err))
		return err
	}
	s.metrics.RecordOperationSuccess(ctx, operation, componentName)
	return nil
}

// Start starts the River workers.
func (s *Service) Start(ctx context.Context) error {
	return s.observe(ctx, "start_service", func() error {
		if err := s.client.Start(ctx); err != nil {
			return fmt.Errorf("failed to start River client: %w", err)
		}
		s.logger.InfoContext(ctx, "Season queue started")
		return nil
	})
}

// Stop waits for running jobs and stops the River client.
func (s *Service) Stop(ctx context.Context) error {
	return s.observe(ctx, "stop_service", func() error {
		if err := s.client.Stop(ctx); err != nil {
			return fmt.Errorf("failed to stop River client: %w", err)
		}
		s.logger.InfoContext(ctx, "Season queue stopped")
		return nil
	})
}

// EnqueueEnd schedules a SeasonEndJob. Scheduling the same rotation while a job for it is still
// pending returns that job and its original time.
func (s *Service) EnqueueEnd(ctx context.Context, currentID int64, nextID *int64, at time.Time) (*seasonservice.ScheduledEnd, error) {
	var scheduled *seasonservice.ScheduledEnd
	err := s.observe(ctx, "schedule_season_end", func() error {
		res, err := s.client.Insert(ctx, SeasonEndJob{SeasonID: currentID, NextSeasonID: nextID}, &river.InsertOpts{
			Queue:       queueName,
			ScheduledAt: at,
			UniqueOpts:  river.UniqueOpts{ByArgs: true, ByState: uniqueStates},
		})
		if err != nil {
			return fmt.Errorf("failed to schedule season end job: %w", err)
		}
		scheduled = &seasonservice.ScheduledEnd{
			JobID:     res.Job.ID,
			At:        res.Job.ScheduledAt.UTC(),
			Duplicate: res.UniqueSkippedAsDuplicate,
		}
		if scheduled.Duplicate {
			s.logger.InfoContext(ctx, "Season end already scheduled",
				attr.SeasonID(currentID),
				attr.Time("requested_at", at),
				attr.Time("at", scheduled.At),
				attr.Int64("job_id", scheduled.JobID),
			)
			return nil
		}
		s.logger.InfoContext(ctx, "Season end scheduled",
			attr.SeasonID(currentID),
			attr.Time("at", scheduled.At),
			attr.Int64("job_id", scheduled.JobID),
		)
		return nil
	})
	return scheduled, err
}

// ScheduledJobs lists the jobs recorded for a season.
func (s *Service) ScheduledJobs(ctx context.Context, seasonID int64) ([]JobInfo, error) {
	type riverJobRow struct {
		ID          int64      `bun:"id"`
		Kind        string     `bun:"kind"`
		State       string     `bun:"state"`
		ScheduledAt *time.Time `bun:"scheduled_at"`
		Attempt     int16      `bun:"attempt"`
		MaxAttempts int16      `bun:"max_attempts"`
	}

	var rows []riverJobRow
	err := s.observe(ctx, "get_scheduled_jobs", func() error {
		return s.db.NewSelect().
			Table("river_job").
			Column("id", "kind", "state", "scheduled_at", "attempt", "max_attempts").
			Where("kind = ?", SeasonEndJob{}.Kind()).
			Where("(args->>'season_id')::bigint = ?", seasonID).
			Order("scheduled_at ASC NULLS LAST").
			Scan(ctx, &rows)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query scheduled jobs: %w", err)
	}

	out := make([]JobInfo, len(rows))
	for i, r := range rows {
		scheduledAt := ""
		if r.ScheduledAt != nil {
			scheduledAt = r.ScheduledAt.Format(time.RFC3339)
		}
		out[i] = JobInfo{
			ID:          r.ID,
			Kind:        r.Kind,
			SeasonID:    seasonID,
			State:       r.State,
			ScheduledAt: scheduledAt,
			Attempt:     int(r.Attempt),
			MaxAttempts: int(r.MaxAttempts),
		}
	}
	return out, nil
}
