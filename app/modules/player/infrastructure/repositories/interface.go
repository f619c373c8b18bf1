package playerdb

import (
	"context"

	"github.com/uptrace/bun"
)

// Repository defines the contract for player persistence.
//
// Error semantics:
//   - ErrNotFound: no player matches
//   - ErrConflict: a unique column (handle, chat id, nick, email) is taken
//   - Other errors: infrastructure failures
type Repository interface {
	// Create inserts a player and fills its ID.
	Create(ctx context.Context, db bun.IDB, player *Player) error

	GetByID(ctx context.Context, db bun.IDB, id int64) (*Player, error)

	// GetByNick matches on the folded nick.
	GetByNick(ctx context.Context, db bun.IDB, nickFolded string) (*Player, error)

	// FindConflicts lists the unique fields already used by a player other than excludeID.
	FindConflicts(ctx context.Context, db bun.IDB, c ConflictQuery) ([]string, error)

	// Search matches handle, nick or chat id as a case-insensitive substring.
	Search(ctx context.Context, db bun.IDB, query string, limit int) ([]Player, error)

	UpdateProfile(ctx context.Context, db bun.IDB, id int64, nick, nickFolded string, email *string, bio string) error

	// Delete removes a player; ledger entries go with it through the foreign key.
	Delete(ctx context.Context, db bun.IDB, id int64) error

	Count(ctx context.Context, db bun.IDB) (int, error)
}

// ConflictQuery carries the unique values to check. Empty fields are skipped.
type ConflictQuery struct {
	Handle     string
	ChatID     string
	NickFolded string
	Email      string
	ExcludeID  int64
}
