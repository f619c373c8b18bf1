package seasonqueue

import (
	"context"
	"log/slog"

	seasonservice "github.com/Black-And-White-Club/arena-ranking/app/modules/season/application"
	"github.com/Black-And-White-Club/arena-ranking/pkg/attr"
	"github.com/riverqueue/river"
)

// Rotator runs the season rotation a job asks for.
type Rotator interface {
	EndAndRotate(ctx context.Context, currentID int64, nextID *int64) (seasonservice.RotationResult, error)
}

// SeasonEndWorker executes SeasonEndJob.
type SeasonEndWorker struct {
	river.WorkerDefaults[SeasonEndJob]
	rotator Rotator
	logger  *slog.Logger
}

func NewSeasonEndWorker(rotator Rotator, logger *slog.Logger) *SeasonEndWorker {
	return &SeasonEndWorker{rotator: rotator, logger: logger}
}

// Work rotates the season. Infrastructure errors are retried; a rejected rotation (the season
// was already ended by hand, for instance) cancels the job.
func (w *SeasonEndWorker) Work(ctx context.Context, job *river.Job[SeasonEndJob]) error {
	logger := w.logger.With(
		attr.Int64("job_id", job.ID),
		attr.SeasonID(job.Args.SeasonID),
	)
	logger.InfoContext(ctx, "Running scheduled season end")

	result, err := w.rotator.EndAndRotate(ctx, job.Args.SeasonID, job.Args.NextSeasonID)
	if err != nil {
		logger.ErrorContext(ctx, "Scheduled season end failed", attr.Error(err))
		return err
	}
	if result.IsFailure() {
		logger.WarnContext(ctx, "Scheduled season end rejected", attr.Error(result.FailureErr()))
		return river.JobCancel(result.FailureErr())
	}

	logger.InfoContext(ctx, "Scheduled season end completed",
		attr.Int("players_reset", result.Unwrap().PlayersReset),
	)
	return nil
}
