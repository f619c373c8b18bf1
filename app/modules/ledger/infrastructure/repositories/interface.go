package ledgerdb

import (
	"context"

	ledgerdomain "github.com/Black-And-White-Club/arena-ranking/app/modules/ledger/domain"
	"github.com/uptrace/bun"
)

// Order selects the accumulator a ranking is sorted by.
type Order string

const (
	ByLifetime Order = "lifetime_points"
	BySeason   Order = "season_points"
)

// Repository defines the contract for ledger persistence. Only this repository writes
// players.lifetime_points and players.season_points.
//
// Error semantics:
//   - ErrPlayerNotFound, ErrEntryNotFound, ErrEventNotFound: referenced rows do not exist
//   - ErrDuplicateAward: a bulk entry for (player, event) already exists
//   - ErrDuplicateRequest: an entry with the same request key already exists
//   - Other errors: infrastructure failures
type Repository interface {
	// LockPlayer reads a player's totals with a row lock held until the transaction ends.
	LockPlayer(ctx context.Context, db bun.IDB, playerID int64) (*PlayerTotals, error)

	GetTotals(ctx context.Context, db bun.IDB, playerID int64) (*PlayerTotals, error)

	InsertEntry(ctx context.Context, db bun.IDB, entry *Entry) error

	GetEntry(ctx context.Context, db bun.IDB, entryID int64) (*Entry, error)

	// GetEntryByRequestKey returns the entry recorded for an idempotent request.
	GetEntryByRequestKey(ctx context.Context, db bun.IDB, key string) (*Entry, error)

	// DeleteEntry removes an entry and returns it.
	DeleteEntry(ctx context.Context, db bun.IDB, entryID int64) (*Entry, error)

	// ApplyDelta adds delta to both accumulators, clamping each at zero, and returns the new totals.
	ApplyDelta(ctx context.Context, db bun.IDB, playerID int64, delta int) (ledgerdomain.Totals, error)

	// HasEventEntry reports whether any entry exists for (player, event).
	HasEventEntry(ctx context.Context, db bun.IDB, playerID, eventID int64) (bool, error)

	// CountAbove counts players with lifetime points strictly greater than points.
	CountAbove(ctx context.Context, db bun.IDB, points int) (int, error)

	// Ranking lists players by the given accumulator, highest first, with competition ranks.
	// A limit of 0 means no limit.
	Ranking(ctx context.Context, db bun.IDB, order Order, limit int) ([]Standing, error)

	// History lists a player's entries newest first. A limit of 0 means no limit.
	History(ctx context.Context, db bun.IDB, playerID int64, limit int) ([]HistoryEntry, error)

	// RecentEntries lists the latest entries across all players.
	RecentEntries(ctx context.Context, db bun.IDB, limit int) ([]HistoryEntry, error)

	Aggregates(ctx context.Context, db bun.IDB) (Aggregates, error)

	// LockAccumulators takes an exclusive lock on the players table for the rest of the
	// transaction. LockPlayer blocks until it is released, so no award or removal interleaves
	// with a reset.
	LockAccumulators(ctx context.Context, db bun.IDB) error

	// CountSeasonScorers counts players with positive season points.
	CountSeasonScorers(ctx context.Context, db bun.IDB) (int, error)

	// ResetSeasonPoints zeroes every player's season points and returns how many players it wrote.
	ResetSeasonPoints(ctx context.Context, db bun.IDB) (int, error)

	// ResetAll zeroes both accumulators for every player and deletes every entry. It returns the
	// number of players written and entries deleted.
	ResetAll(ctx context.Context, db bun.IDB) (playersReset int, entriesDeleted int, err error)

	// CountDrift counts players whose lifetime total differs from the floored sum of their entries.
	CountDrift(ctx context.Context, db bun.IDB) (int, error)
}
