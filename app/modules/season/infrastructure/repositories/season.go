package seasondb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Black-And-White-Club/arena-ranking/pkg/pgerr"
	"github.com/uptrace/bun"
)

var (
	// ErrNotFound is returned when a season is not found.
	ErrNotFound = errors.New("season not found")
	// ErrConflict is returned when a season slug is taken.
	ErrConflict = errors.New("season slug already in use")
)

// Impl implements the Repository interface using Bun ORM.
type Impl struct {
	db bun.IDB
}

// NewRepository creates a new season repository.
func NewRepository(db bun.IDB) Repository {
	return &Impl{db: db}
}

func (r *Impl) resolveDB(db bun.IDB) bun.IDB {
	if db == nil {
		return r.db
	}
	return db
}

func (r *Impl) Create(ctx context.Context, db bun.IDB, season *Season) error {
	db = r.resolveDB(db)
	if _, err := db.NewInsert().Model(season).Returning("*").Exec(ctx); err != nil {
		if pgerr.IsUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("failed to create season: %w", err)
	}
	return nil
}

func (r *Impl) GetByID(ctx context.Context, db bun.IDB, id int64) (*Season, error) {
	db = r.resolveDB(db)
	season := new(Season)
	if err := db.NewSelect().Model(season).Where("s.id = ?", id).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get season: %w", err)
	}
	return season, nil
}

func (r *Impl) GetActive(ctx context.Context, db bun.IDB) (*Season, error) {
	db = r.resolveDB(db)
	season := new(Season)
	err := db.NewSelect().Model(season).Where("s.is_active").OrderExpr("s.id DESC").Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get active season: %w", err)
	}
	return season, nil
}

func (r *Impl) List(ctx context.Context, db bun.IDB) ([]Season, error) {
	db = r.resolveDB(db)
	var seasons []Season
	if err := db.NewSelect().Model(&seasons).OrderExpr("s.id DESC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to list seasons: %w", err)
	}
	return seasons, nil
}

func (r *Impl) SlugExists(ctx context.Context, db bun.IDB, slug string) (bool, error) {
	db = r.resolveDB(db)
	exists, err := db.NewSelect().Model((*Season)(nil)).Where("slug = ?", slug).Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to check season slug: %w", err)
	}
	return exists, nil
}

func (r *Impl) LockAll(ctx context.Context, db bun.IDB) error {
	db = r.resolveDB(db)
	var ids []int64
	if err := db.NewSelect().Model((*Season)(nil)).Column("id").For("UPDATE").Scan(ctx, &ids); err != nil {
		return fmt.Errorf("failed to lock seasons: %w", err)
	}
	return nil
}

func (r *Impl) DeactivateAll(ctx context.Context, db bun.IDB) error {
	db = r.resolveDB(db)
	_, err := db.NewUpdate().
		Model((*Season)(nil)).
		Set("is_active = false").
		Where("is_active").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to deactivate seasons: %w", err)
	}
	return nil
}

func (r *Impl) Activate(ctx context.Context, db bun.IDB, id int64, startDate time.Time, overwriteStart bool) error {
	db = r.resolveDB(db)
	q := db.NewUpdate().
		Model((*Season)(nil)).
		Set("is_active = true").
		Set("end_date = NULL").
		Where("id = ?", id)
	if overwriteStart {
		q = q.Set("start_date = ?", startDate)
	} else {
		q = q.Set("start_date = COALESCE(start_date, ?)", startDate)
	}
	res, err := q.Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to activate season: %w", err)
	}
	return requireRow(res)
}

func (r *Impl) End(ctx context.Context, db bun.IDB, id int64, endDate time.Time) error {
	db = r.resolveDB(db)
	res, err := db.NewUpdate().
		Model((*Season)(nil)).
		Set("is_active = false").
		Set("end_date = ?", endDate).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to end season: %w", err)
	}
	return requireRow(res)
}

func (r *Impl) SnapshotStandings(ctx context.Context, db bun.IDB, seasonID int64, at time.Time) (int, error) {
	db = r.resolveDB(db)
	if _, err := db.NewDelete().
		Model((*FinalStanding)(nil)).
		Where("sfs.season_id = ?", seasonID).
		Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to clear previous standings: %w", err)
	}
	res, err := db.NewRaw(`
		INSERT INTO season_final_standings (season_id, player_id, rank, nick, season_points, lifetime_points, captured_at)
		SELECT ?, p.id,
			RANK() OVER (ORDER BY p.season_points DESC),
			p.nick, p.season_points, p.lifetime_points, ?
		FROM players AS p
		WHERE p.season_points > 0`, seasonID, at).Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to snapshot season standings: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(n), nil
}

func (r *Impl) FinalStandings(ctx context.Context, db bun.IDB, seasonID int64) ([]FinalStanding, error) {
	db = r.resolveDB(db)
	var standings []FinalStanding
	err := db.NewSelect().
		Model(&standings).
		Where("sfs.season_id = ?", seasonID).
		OrderExpr("sfs.rank ASC, sfs.nick ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get final standings: %w", err)
	}
	return standings, nil
}

func requireRow(res sql.Result) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}
