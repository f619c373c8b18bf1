package eventdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"
)

// ErrNotFound is returned when an event is not found.
var ErrNotFound = errors.New("event not found")

// Impl implements the Repository interface using Bun ORM.
type Impl struct {
	db bun.IDB
}

// NewRepository creates a new event repository.
func NewRepository(db bun.IDB) Repository {
	return &Impl{db: db}
}

func (r *Impl) resolveDB(db bun.IDB) bun.IDB {
	if db == nil {
		return r.db
	}
	return db
}

func (r *Impl) Create(ctx context.Context, db bun.IDB, event *Event) error {
	db = r.resolveDB(db)
	if _, err := db.NewInsert().Model(event).Returning("*").Exec(ctx); err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}
	return nil
}

func (r *Impl) GetByID(ctx context.Context, db bun.IDB, id int64) (*Event, error) {
	db = r.resolveDB(db)
	event := new(Event)
	if err := db.NewSelect().Model(event).Where("e.id = ?", id).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return event, nil
}

func (r *Impl) List(ctx context.Context, db bun.IDB, limit int) ([]Event, error) {
	db = r.resolveDB(db)
	var events []Event
	q := db.NewSelect().Model(&events).OrderExpr("e.event_date DESC, e.id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return events, nil
}

func (r *Impl) ListForSeason(ctx context.Context, db bun.IDB, seasonID int64) ([]Event, error) {
	db = r.resolveDB(db)
	var events []Event
	err := db.NewSelect().
		Model(&events).
		Where("e.season_id = ?", seasonID).
		OrderExpr("e.event_date DESC, e.id DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list season events: %w", err)
	}
	return events, nil
}

func (r *Impl) Count(ctx context.Context, db bun.IDB) (int, error) {
	db = r.resolveDB(db)
	n, err := db.NewSelect().Model((*Event)(nil)).Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return n, nil
}
