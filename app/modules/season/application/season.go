package seasonservice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	eventdb "github.com/Black-And-White-Club/arena-ranking/app/modules/event/infrastructure/repositories"
	ledgerdb "github.com/Black-And-White-Club/arena-ranking/app/modules/ledger/infrastructure/repositories"
	seasondomain "github.com/Black-And-White-Club/arena-ranking/app/modules/season/domain"
	seasonevents "github.com/Black-And-White-Club/arena-ranking/app/modules/season/domain/events"
	seasondb "github.com/Black-And-White-Club/arena-ranking/app/modules/season/infrastructure/repositories"
	"github.com/Black-And-White-Club/arena-ranking/app/shared"
	"github.com/Black-And-White-Club/arena-ranking/pkg/attr"
	"github.com/Black-And-White-Club/arena-ranking/pkg/results"
	"github.com/uptrace/bun"
)

const (
	// MaxNameLength bounds season names.
	MaxNameLength = 100
	// maxSlugAttempts bounds the numeric suffixes tried when a slug is taken.
	maxSlugAttempts = 50
)

// ErrSchedulingDisabled is the failure ScheduleEnd returns when no job queue is running.
var ErrSchedulingDisabled = errors.New("season scheduling is not available")

type SeasonResult = results.OperationResult[*seasondb.Season, error]

// Rotation is the outcome of EndAndRotate.
type Rotation struct {
	EndedSeasonID     int64  `json:"ended_season_id"`
	NextSeasonID      *int64 `json:"next_season_id,omitempty"`
	PlayersReset      int    `json:"players_reset"`
	StandingsCaptured int    `json:"standings_captured"`
}

type RotationResult = results.OperationResult[*Rotation, error]

// HardResetReport is the outcome of HardReset.
type HardResetReport struct {
	PlayersReset   int `json:"players_reset"`
	EntriesDeleted int `json:"entries_deleted"`
}

type HardResetResult = results.OperationResult[*HardResetReport, error]

// ScheduledEnd is a queued rotation. When the same rotation was already queued, Duplicate is set
// and At is the existing job's time rather than the requested one.
type ScheduledEnd struct {
	JobID     int64     `json:"job_id"`
	At        time.Time `json:"at"`
	Duplicate bool      `json:"duplicate"`
}

type ScheduleResult = results.OperationResult[*ScheduledEnd, error]

// StandingRow is one line of a season leaderboard.
type StandingRow struct {
	Rank           int    `json:"rank"`
	PlayerID       *int64 `json:"player_id,omitempty"`
	Nick           string `json:"nick"`
	SeasonPoints   int    `json:"season_points"`
	LifetimePoints int    `json:"lifetime_points"`
}

// Stats summarizes a season. Active seasons read live points; ended seasons read the standings
// captured when they ended.
type Stats struct {
	Season            *seasondb.Season   `json:"season"`
	State             seasondomain.State `json:"state"`
	Top               []StandingRow      `json:"top"`
	Events            []eventdb.Event    `json:"events"`
	TotalSeasonPoints int                `json:"total_season_points"`
}

func seasonNotFound(id int64) error {
	return shared.NotFoundf("season %d", id)
}

// Create registers a pending season with a unique slug derived from its name.
func (s *SeasonService) Create(ctx context.Context, name string) (SeasonResult, error) {
	return withTelemetry[*seasondb.Season, error](s, ctx, "CreateSeason", 0, func(ctx context.Context) (SeasonResult, error) {
		name = strings.TrimSpace(name)
		if name == "" {
			return results.FailureResult[*seasondb.Season, error](shared.Invalid("name", "required")), nil
		}
		if len(name) > MaxNameLength {
			return results.FailureResult[*seasondb.Season, error](shared.Invalid("name", "too long")), nil
		}

		slug, err := s.uniqueSlug(ctx, seasondomain.Slug(name))
		if err != nil {
			return SeasonResult{}, err
		}

		season := &seasondb.Season{Name: name, Slug: slug}
		if err := s.repo.Create(ctx, s.db, season); err != nil {
			if errors.Is(err, seasondb.ErrConflict) {
				return results.FailureResult[*seasondb.Season, error](shared.Invalid("name", "a season with this name already exists")), nil
			}
			return SeasonResult{}, err
		}
		return results.SuccessResult[*seasondb.Season, error](season), nil
	})
}

func (s *SeasonService) uniqueSlug(ctx context.Context, base string) (string, error) {
	candidate := base
	for i := 2; i <= maxSlugAttempts+1; i++ {
		taken, err := s.repo.SlugExists(ctx, s.db, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
	return candidate, nil
}

// Activate makes seasonID the only active season. Reactivating an ended season clears its end date.
func (s *SeasonService) Activate(ctx context.Context, seasonID int64) (SeasonResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := withTelemetry[*seasondb.Season, error](s, ctx, "ActivateSeason", seasonID, func(ctx context.Context) (SeasonResult, error) {
		return runInTx[*seasondb.Season, error](s, ctx, func(ctx context.Context, db bun.IDB) (SeasonResult, error) {
			if err := s.repo.LockAll(ctx, db); err != nil {
				return SeasonResult{}, err
			}
			if _, err := s.repo.GetByID(ctx, db, seasonID); err != nil {
				if errors.Is(err, seasondb.ErrNotFound) {
					return results.FailureResult[*seasondb.Season, error](seasonNotFound(seasonID)), nil
				}
				return SeasonResult{}, err
			}
			if err := s.activateLocked(ctx, db, seasonID, false); err != nil {
				return SeasonResult{}, err
			}
			season, err := s.repo.GetByID(ctx, db, seasonID)
			if err != nil {
				return SeasonResult{}, err
			}
			return results.SuccessResult[*seasondb.Season, error](season), nil
		})
	})
	if err == nil && result.IsSuccess() {
		season := result.Unwrap()
		s.publish(ctx, seasonevents.SeasonActivatedV1, seasonevents.SeasonActivatedPayloadV1{
			SeasonID: season.ID,
			Name:     season.Name,
			At:       s.clock.Now(),
		})
	}
	return result, err
}

// activateLocked deactivates every season and activates id. Callers hold the season row locks.
func (s *SeasonService) activateLocked(ctx context.Context, db bun.IDB, id int64, overwriteStart bool) error {
	if err := s.repo.DeactivateAll(ctx, db); err != nil {
		return err
	}
	return s.repo.Activate(ctx, db, id, s.clock.Now(), overwriteStart)
}

// EndAndRotate closes the current season in one transaction: standings are captured, the season
// is stamped ended, every player's season points go to zero and nextID, when given, becomes the
// active season. Lifetime points and ledger entries are untouched. Awards wait on the player
// accumulator lock until the rotation commits.
func (s *SeasonService) EndAndRotate(ctx context.Context, currentID int64, nextID *int64) (RotationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var endedAt time.Time
	result, err := withTelemetry[*Rotation, error](s, ctx, "EndAndRotate", currentID, func(ctx context.Context) (RotationResult, error) {
		if nextID != nil && *nextID == currentID {
			return results.FailureResult[*Rotation, error](shared.Invalid("next_season_id", "must differ from the season being ended")), nil
		}

		return runInTx[*Rotation, error](s, ctx, func(ctx context.Context, db bun.IDB) (RotationResult, error) {
			if err := s.repo.LockAll(ctx, db); err != nil {
				return RotationResult{}, err
			}

			current, err := s.repo.GetByID(ctx, db, currentID)
			if err != nil {
				if errors.Is(err, seasondb.ErrNotFound) {
					return results.FailureResult[*Rotation, error](seasonNotFound(currentID)), nil
				}
				return RotationResult{}, err
			}
			if !seasondomain.CanEnd(current.State()) {
				return results.FailureResult[*Rotation, error](shared.Invalid("season", "is not active")), nil
			}
			if nextID != nil {
				if _, err := s.repo.GetByID(ctx, db, *nextID); err != nil {
					if errors.Is(err, seasondb.ErrNotFound) {
						return results.FailureResult[*Rotation, error](seasonNotFound(*nextID)), nil
					}
					return RotationResult{}, err
				}
			}

			if err := s.points.LockAccumulators(ctx, db); err != nil {
				return RotationResult{}, err
			}
			endedAt = s.clock.Now()

			scorers, err := s.points.CountSeasonScorers(ctx, db)
			if err != nil {
				return RotationResult{}, err
			}
			captured, err := s.repo.SnapshotStandings(ctx, db, currentID, endedAt)
			if err != nil {
				return RotationResult{}, err
			}
			if err := s.repo.End(ctx, db, currentID, endedAt); err != nil {
				return RotationResult{}, err
			}
			if _, err := s.points.ResetSeasonPoints(ctx, db); err != nil {
				return RotationResult{}, err
			}
			if nextID != nil {
				if err := s.activateLocked(ctx, db, *nextID, true); err != nil {
					return RotationResult{}, err
				}
			}

			return results.SuccessResult[*Rotation, error](&Rotation{
				EndedSeasonID:     currentID,
				NextSeasonID:      nextID,
				PlayersReset:      scorers,
				StandingsCaptured: captured,
			}), nil
		})
	})
	if err == nil && result.IsSuccess() {
		rotation := result.Unwrap()
		s.logger.InfoContext(ctx, "Season ended",
			attr.SeasonID(currentID),
			attr.Int("players_reset", rotation.PlayersReset),
			attr.Int("standings_captured", rotation.StandingsCaptured),
			attr.ExtractCorrelationID(ctx),
		)
		s.publish(ctx, seasonevents.SeasonEndedV1, seasonevents.SeasonEndedPayloadV1{
			SeasonID:     currentID,
			NextSeasonID: nextID,
			PlayersReset: rotation.PlayersReset,
			EndedAt:      endedAt,
		})
		if nextID != nil {
			s.publish(ctx, seasonevents.SeasonActivatedV1, seasonevents.SeasonActivatedPayloadV1{
				SeasonID: *nextID,
				At:       endedAt,
			})
		}
	}
	return result, err
}

// HardReset zeroes every accumulator and deletes every ledger entry. It requires the literal
// confirmation token and changes nothing otherwise.
func (s *SeasonService) HardReset(ctx context.Context, confirmation string) (HardResetResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := withTelemetry[*HardResetReport, error](s, ctx, "HardReset", 0, func(ctx context.Context) (HardResetResult, error) {
		if confirmation != seasondomain.ResetConfirmation {
			return results.FailureResult[*HardResetReport, error](shared.ErrInvalidConfirmation), nil
		}
		return runInTx[*HardResetReport, error](s, ctx, func(ctx context.Context, db bun.IDB) (HardResetResult, error) {
			if err := s.points.LockAccumulators(ctx, db); err != nil {
				return HardResetResult{}, err
			}
			players, entries, err := s.points.ResetAll(ctx, db)
			if err != nil {
				return HardResetResult{}, err
			}
			return results.SuccessResult[*HardResetReport, error](&HardResetReport{
				PlayersReset:   players,
				EntriesDeleted: entries,
			}), nil
		})
	})
	if err == nil && result.IsSuccess() {
		report := result.Unwrap()
		s.logger.WarnContext(ctx, "Hard reset applied",
			attr.Int("players_reset", report.PlayersReset),
			attr.Int("entries_deleted", report.EntriesDeleted),
			attr.ExtractCorrelationID(ctx),
		)
		s.publish(ctx, seasonevents.SeasonHardResetV1, seasonevents.SeasonHardResetPayloadV1{
			PlayersReset:   report.PlayersReset,
			EntriesDeleted: report.EntriesDeleted,
			At:             s.clock.Now(),
		})
	}
	return result, err
}

// ScheduleEnd enqueues EndAndRotate to run at the given time. Scheduling a rotation that is
// already queued returns the existing job unchanged.
func (s *SeasonService) ScheduleEnd(ctx context.Context, currentID int64, nextID *int64, at time.Time) (ScheduleResult, error) {
	return withTelemetry[*ScheduledEnd, error](s, ctx, "ScheduleEnd", currentID, func(ctx context.Context) (ScheduleResult, error) {
		if s.scheduler == nil {
			return results.FailureResult[*ScheduledEnd, error](ErrSchedulingDisabled), nil
		}
		if !at.After(s.clock.Now()) {
			return results.FailureResult[*ScheduledEnd, error](shared.Invalid("at", "must be in the future")), nil
		}
		if nextID != nil && *nextID == currentID {
			return results.FailureResult[*ScheduledEnd, error](shared.Invalid("next_season_id", "must differ from the season being ended")), nil
		}

		current, err := s.repo.GetByID(ctx, s.db, currentID)
		if err != nil {
			if errors.Is(err, seasondb.ErrNotFound) {
				return results.FailureResult[*ScheduledEnd, error](seasonNotFound(currentID)), nil
			}
			return ScheduleResult{}, err
		}
		if !seasondomain.CanEnd(current.State()) {
			return results.FailureResult[*ScheduledEnd, error](shared.Invalid("season", "is not active")), nil
		}
		if nextID != nil {
			if _, err := s.repo.GetByID(ctx, s.db, *nextID); err != nil {
				if errors.Is(err, seasondb.ErrNotFound) {
					return results.FailureResult[*ScheduledEnd, error](seasonNotFound(*nextID)), nil
				}
				return ScheduleResult{}, err
			}
		}

		scheduled, err := s.scheduler.EnqueueEnd(ctx, currentID, nextID, at)
		if err != nil {
			return ScheduleResult{}, err
		}
		return results.SuccessResult[*ScheduledEnd, error](scheduled), nil
	})
}

// GetSeason returns a season by id.
func (s *SeasonService) GetSeason(ctx context.Context, seasonID int64) (SeasonResult, error) {
	return withTelemetry[*seasondb.Season, error](s, ctx, "GetSeason", seasonID, func(ctx context.Context) (SeasonResult, error) {
		season, err := s.repo.GetByID(ctx, s.db, seasonID)
		if err != nil {
			if errors.Is(err, seasondb.ErrNotFound) {
				return results.FailureResult[*seasondb.Season, error](seasonNotFound(seasonID)), nil
			}
			return SeasonResult{}, err
		}
		return results.SuccessResult[*seasondb.Season, error](season), nil
	})
}

// GetActive returns the active season. The failure is shared.ErrNotFound when none is active.
func (s *SeasonService) GetActive(ctx context.Context) (SeasonResult, error) {
	return withTelemetry[*seasondb.Season, error](s, ctx, "GetActiveSeason", 0, func(ctx context.Context) (SeasonResult, error) {
		season, err := s.repo.GetActive(ctx, s.db)
		if err != nil {
			if errors.Is(err, seasondb.ErrNotFound) {
				return results.FailureResult[*seasondb.Season, error](shared.NotFoundf("active season")), nil
			}
			return SeasonResult{}, err
		}
		return results.SuccessResult[*seasondb.Season, error](season), nil
	})
}

// List returns every season, newest first.
func (s *SeasonService) List(ctx context.Context) ([]seasondb.Season, error) {
	return s.repo.List(ctx, s.db)
}

// Stats reports the leaders, events and points of a season.
func (s *SeasonService) Stats(ctx context.Context, seasonID int64) (results.OperationResult[*Stats, error], error) {
	return withTelemetry[*Stats, error](s, ctx, "SeasonStats", seasonID, func(ctx context.Context) (results.OperationResult[*Stats, error], error) {
		season, err := s.repo.GetByID(ctx, s.db, seasonID)
		if err != nil {
			if errors.Is(err, seasondb.ErrNotFound) {
				return results.FailureResult[*Stats, error](seasonNotFound(seasonID)), nil
			}
			return results.OperationResult[*Stats, error]{}, err
		}

		events, err := s.events.ListForSeason(ctx, s.db, seasonID)
		if err != nil {
			return results.OperationResult[*Stats, error]{}, err
		}

		stats := &Stats{Season: season, State: season.State(), Top: []StandingRow{}, Events: events}
		switch stats.State {
		case seasondomain.StateActive:
			if err := s.liveStats(ctx, stats); err != nil {
				return results.OperationResult[*Stats, error]{}, err
			}
		case seasondomain.StateEnded:
			if err := s.finalStats(ctx, stats); err != nil {
				return results.OperationResult[*Stats, error]{}, err
			}
		}
		return results.SuccessResult[*Stats, error](stats), nil
	})
}

func (s *SeasonService) liveStats(ctx context.Context, stats *Stats) error {
	standings, err := s.points.Ranking(ctx, s.db, ledgerdb.BySeason, seasondomain.TopStandingsLimit)
	if err != nil {
		return err
	}
	for _, st := range standings {
		if st.SeasonPoints <= 0 {
			break
		}
		id := st.PlayerID
		stats.Top = append(stats.Top, StandingRow{
			Rank:           st.Rank,
			PlayerID:       &id,
			Nick:           st.Nick,
			SeasonPoints:   st.SeasonPoints,
			LifetimePoints: st.LifetimePoints,
		})
	}
	agg, err := s.points.Aggregates(ctx, s.db)
	if err != nil {
		return err
	}
	stats.TotalSeasonPoints = agg.SeasonPoints
	return nil
}

func (s *SeasonService) finalStats(ctx context.Context, stats *Stats) error {
	final, err := s.repo.FinalStandings(ctx, s.db, stats.Season.ID)
	if err != nil {
		return err
	}
	for i, fs := range final {
		stats.TotalSeasonPoints += fs.SeasonPoints
		if i < seasondomain.TopStandingsLimit {
			stats.Top = append(stats.Top, StandingRow{
				Rank:           fs.Rank,
				PlayerID:       fs.PlayerID,
				Nick:           fs.Nick,
				SeasonPoints:   fs.SeasonPoints,
				LifetimePoints: fs.LifetimePoints,
			})
		}
	}
	return nil
}
