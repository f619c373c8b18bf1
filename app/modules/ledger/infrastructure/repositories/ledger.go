package ledgerdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	ledgerdomain "github.com/Black-And-White-Club/arena-ranking/app/modules/ledger/domain"
	"github.com/Black-And-White-Club/arena-ranking/pkg/pgerr"
	"github.com/uptrace/bun"
)

var (
	ErrPlayerNotFound = errors.New("player not found")
	ErrEntryNotFound  = errors.New("ledger entry not found")
	ErrEventNotFound  = errors.New("event not found")
	ErrDuplicateAward = errors.New("bulk award already recorded for player and event")
	// ErrDuplicateRequest is returned when an entry with the same request key exists.
	ErrDuplicateRequest = errors.New("ledger entry already recorded for request")
)

const requestKeyIndex = "uniq_ledger_entries_request_key"

// Impl implements the Repository interface using Bun ORM.
type Impl struct {
	db bun.IDB
}

// NewRepository creates a new ledger repository.
func NewRepository(db bun.IDB) Repository {
	return &Impl{db: db}
}

func (r *Impl) resolveDB(db bun.IDB) bun.IDB {
	if db == nil {
		return r.db
	}
	return db
}

func (r *Impl) LockPlayer(ctx context.Context, db bun.IDB, playerID int64) (*PlayerTotals, error) {
	return r.selectPlayer(ctx, db, playerID, true)
}

func (r *Impl) GetTotals(ctx context.Context, db bun.IDB, playerID int64) (*PlayerTotals, error) {
	return r.selectPlayer(ctx, db, playerID, false)
}

func (r *Impl) selectPlayer(ctx context.Context, db bun.IDB, playerID int64, lock bool) (*PlayerTotals, error) {
	db = r.resolveDB(db)
	p := new(PlayerTotals)
	q := db.NewSelect().Model(p).Where("p.id = ?", playerID)
	if lock {
		q = q.For("UPDATE")
	}
	if err := q.Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPlayerNotFound
		}
		return nil, fmt.Errorf("failed to read player totals: %w", err)
	}
	return p, nil
}

func (r *Impl) InsertEntry(ctx context.Context, db bun.IDB, entry *Entry) error {
	db = r.resolveDB(db)
	if _, err := db.NewInsert().Model(entry).Returning("*").Exec(ctx); err != nil {
		switch {
		case pgerr.IsUniqueViolation(err) && pgerr.Constraint(err) == requestKeyIndex:
			return ErrDuplicateRequest
		case pgerr.IsUniqueViolation(err):
			return ErrDuplicateAward
		case pgerr.IsForeignKeyViolation(err) && pgerr.Constraint(err) == "ledger_entries_event_id_fkey":
			return ErrEventNotFound
		case pgerr.IsForeignKeyViolation(err):
			return ErrPlayerNotFound
		}
		return fmt.Errorf("failed to insert ledger entry: %w", err)
	}
	return nil
}

func (r *Impl) GetEntry(ctx context.Context, db bun.IDB, entryID int64) (*Entry, error) {
	db = r.resolveDB(db)
	entry := new(Entry)
	if err := db.NewSelect().Model(entry).Where("le.id = ?", entryID).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, fmt.Errorf("failed to get ledger entry: %w", err)
	}
	return entry, nil
}

func (r *Impl) GetEntryByRequestKey(ctx context.Context, db bun.IDB, key string) (*Entry, error) {
	db = r.resolveDB(db)
	entry := new(Entry)
	if err := db.NewSelect().Model(entry).Where("le.request_key = ?", key).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, fmt.Errorf("failed to get ledger entry by request key: %w", err)
	}
	return entry, nil
}

func (r *Impl) DeleteEntry(ctx context.Context, db bun.IDB, entryID int64) (*Entry, error) {
	db = r.resolveDB(db)
	entry := new(Entry)
	_, err := db.NewDelete().
		Model(entry).
		Where("id = ?", entryID).
		Returning("*").
		Exec(ctx, entry)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, fmt.Errorf("failed to delete ledger entry: %w", err)
	}
	if entry.ID == 0 {
		return nil, ErrEntryNotFound
	}
	return entry, nil
}

func (r *Impl) ApplyDelta(ctx context.Context, db bun.IDB, playerID int64, delta int) (ledgerdomain.Totals, error) {
	db = r.resolveDB(db)
	var totals struct {
		Lifetime int `bun:"lifetime_points"`
		Season   int `bun:"season_points"`
	}
	_, err := db.NewUpdate().
		Model((*PlayerTotals)(nil)).
		Set("lifetime_points = GREATEST(lifetime_points + ?, 0)", delta).
		Set("season_points = GREATEST(season_points + ?, 0)", delta).
		Where("id = ?", playerID).
		Returning("lifetime_points, season_points").
		Exec(ctx, &totals)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ledgerdomain.Totals{}, ErrPlayerNotFound
		}
		return ledgerdomain.Totals{}, fmt.Errorf("failed to apply points delta: %w", err)
	}
	return ledgerdomain.Totals{Lifetime: totals.Lifetime, Season: totals.Season}, nil
}

func (r *Impl) HasEventEntry(ctx context.Context, db bun.IDB, playerID, eventID int64) (bool, error) {
	db = r.resolveDB(db)
	exists, err := db.NewSelect().
		Model((*Entry)(nil)).
		Where("player_id = ?", playerID).
		Where("event_id = ?", eventID).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to check existing award: %w", err)
	}
	return exists, nil
}

func (r *Impl) CountAbove(ctx context.Context, db bun.IDB, points int) (int, error) {
	db = r.resolveDB(db)
	n, err := db.NewSelect().
		Model((*PlayerTotals)(nil)).
		Where("lifetime_points > ?", points).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count players above: %w", err)
	}
	return n, nil
}

func (r *Impl) Ranking(ctx context.Context, db bun.IDB, order Order, limit int) ([]Standing, error) {
	db = r.resolveDB(db)
	column := string(ByLifetime)
	if order == BySeason {
		column = string(BySeason)
	}
	var standings []Standing
	q := db.NewSelect().
		Model((*PlayerTotals)(nil)).
		Column("p.id", "p.handle", "p.chat_id", "p.nick", "p.lifetime_points", "p.season_points", "p.created_at").
		ColumnExpr("RANK() OVER (ORDER BY ? DESC) AS rank", bun.Ident("p."+column)).
		OrderExpr("? DESC, p.id ASC", bun.Ident("p."+column))
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx, &standings); err != nil {
		return nil, fmt.Errorf("failed to load ranking: %w", err)
	}
	return standings, nil
}

func (r *Impl) historyQuery(db bun.IDB, dest *[]HistoryEntry) *bun.SelectQuery {
	return db.NewSelect().
		Model(dest).
		ColumnExpr("le.*").
		ColumnExpr("p.nick AS player_nick").
		ColumnExpr("e.name AS event_name").
		Join("JOIN players AS p ON p.id = le.player_id").
		Join("LEFT JOIN events AS e ON e.id = le.event_id").
		OrderExpr("le.added_at DESC, le.id DESC")
}

func (r *Impl) History(ctx context.Context, db bun.IDB, playerID int64, limit int) ([]HistoryEntry, error) {
	db = r.resolveDB(db)
	var entries []HistoryEntry
	q := r.historyQuery(db, &entries).Where("le.player_id = ?", playerID)
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to load player history: %w", err)
	}
	return entries, nil
}

func (r *Impl) RecentEntries(ctx context.Context, db bun.IDB, limit int) ([]HistoryEntry, error) {
	db = r.resolveDB(db)
	var entries []HistoryEntry
	if err := r.historyQuery(db, &entries).Limit(limit).Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to load recent entries: %w", err)
	}
	return entries, nil
}

func (r *Impl) Aggregates(ctx context.Context, db bun.IDB) (Aggregates, error) {
	db = r.resolveDB(db)
	var agg Aggregates
	err := db.NewRaw(`
		SELECT
			(SELECT COALESCE(SUM(points), 0) FROM ledger_entries) AS total_points,
			(SELECT COUNT(*) FROM ledger_entries) AS entry_count,
			(SELECT COALESCE(SUM(season_points), 0) FROM players) AS season_points`).
		Scan(ctx, &agg.TotalPoints, &agg.EntryCount, &agg.SeasonPoints)
	if err != nil {
		return Aggregates{}, fmt.Errorf("failed to load ledger aggregates: %w", err)
	}
	return agg, nil
}

func (r *Impl) LockAccumulators(ctx context.Context, db bun.IDB) error {
	db = r.resolveDB(db)
	if _, err := db.NewRaw("LOCK TABLE players IN EXCLUSIVE MODE").Exec(ctx); err != nil {
		return fmt.Errorf("failed to lock player accumulators: %w", err)
	}
	return nil
}

func (r *Impl) CountSeasonScorers(ctx context.Context, db bun.IDB) (int, error) {
	db = r.resolveDB(db)
	n, err := db.NewSelect().Model((*PlayerTotals)(nil)).Where("season_points > 0").Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count season scorers: %w", err)
	}
	return n, nil
}

func (r *Impl) ResetSeasonPoints(ctx context.Context, db bun.IDB) (int, error) {
	db = r.resolveDB(db)
	res, err := db.NewUpdate().
		Model((*PlayerTotals)(nil)).
		Set("season_points = 0").
		Where("TRUE").
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to reset season points: %w", err)
	}
	return rowsAffected(res)
}

func (r *Impl) ResetAll(ctx context.Context, db bun.IDB) (int, int, error) {
	db = r.resolveDB(db)
	res, err := db.NewUpdate().
		Model((*PlayerTotals)(nil)).
		Set("lifetime_points = 0").
		Set("season_points = 0").
		Where("TRUE").
		Exec(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to reset player totals: %w", err)
	}
	players, err := rowsAffected(res)
	if err != nil {
		return 0, 0, err
	}
	res, err = db.NewDelete().Model((*Entry)(nil)).Where("TRUE").Exec(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to delete ledger entries: %w", err)
	}
	entries, err := rowsAffected(res)
	if err != nil {
		return 0, 0, err
	}
	return players, entries, nil
}

func (r *Impl) CountDrift(ctx context.Context, db bun.IDB) (int, error) {
	db = r.resolveDB(db)
	var n int
	err := db.NewRaw(`
		SELECT COUNT(*)
		FROM players AS p
		LEFT JOIN (
			SELECT player_id, SUM(points) AS total
			FROM ledger_entries
			GROUP BY player_id
		) AS s ON s.player_id = p.id
		WHERE p.lifetime_points <> GREATEST(COALESCE(s.total, 0), 0)`).
		Scan(ctx, &n)
	if err != nil {
		return 0, fmt.Errorf("failed to count ledger drift: %w", err)
	}
	return n, nil
}

func rowsAffected(res sql.Result) (int, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(n), nil
}
