package eventdb

import (
	"context"

	"github.com/uptrace/bun"
)

// Repository defines the contract for event persistence.
type Repository interface {
	Create(ctx context.Context, db bun.IDB, event *Event) error

	// GetByID returns ErrNotFound for unknown ids.
	GetByID(ctx context.Context, db bun.IDB, id int64) (*Event, error)

	// List returns events newest first. A limit of 0 means no limit.
	List(ctx context.Context, db bun.IDB, limit int) ([]Event, error)

	ListForSeason(ctx context.Context, db bun.IDB, seasonID int64) ([]Event, error)

	Count(ctx context.Context, db bun.IDB) (int, error)
}
