package seasondb

import (
	"context"
	"time"

	"github.com/uptrace/bun"
)

// Repository defines the contract for season persistence.
//
// Error semantics:
//   - ErrNotFound: the season (or an active season) does not exist
//   - ErrConflict: the slug is already taken
//   - Other errors: infrastructure failures
type Repository interface {
	Create(ctx context.Context, db bun.IDB, season *Season) error
	GetByID(ctx context.Context, db bun.IDB, id int64) (*Season, error)
	GetActive(ctx context.Context, db bun.IDB) (*Season, error)
	List(ctx context.Context, db bun.IDB) ([]Season, error)
	SlugExists(ctx context.Context, db bun.IDB, slug string) (bool, error)

	// LockAll takes row locks on every season for the rest of the transaction.
	LockAll(ctx context.Context, db bun.IDB) error

	// DeactivateAll clears is_active on every season.
	DeactivateAll(ctx context.Context, db bun.IDB) error

	// Activate marks a season active and clears its end date. startDate is written only when
	// overwriteStart is set or the season has never started.
	Activate(ctx context.Context, db bun.IDB, id int64, startDate time.Time, overwriteStart bool) error

	// End marks a season inactive with the given end date.
	End(ctx context.Context, db bun.IDB, id int64, endDate time.Time) error

	// SnapshotStandings replaces the season's rows in season_final_standings with every player
	// holding positive season points and returns how many rows were written.
	SnapshotStandings(ctx context.Context, db bun.IDB, seasonID int64, at time.Time) (int, error)

	// FinalStandings returns the snapshot of an ended season ordered by rank.
	FinalStandings(ctx context.Context, db bun.IDB, seasonID int64) ([]FinalStanding, error)
}
