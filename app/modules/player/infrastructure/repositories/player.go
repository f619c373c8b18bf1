package playerdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Black-And-White-Club/arena-ranking/pkg/pgerr"
	"github.com/uptrace/bun"
)

var (
	// ErrNotFound is returned when a player is not found.
	ErrNotFound = errors.New("player not found")
	// ErrConflict is returned when a unique player field is already taken.
	ErrConflict = errors.New("player field already in use")
)

// Impl implements the Repository interface using Bun ORM.
type Impl struct {
	db bun.IDB
}

// NewRepository creates a new player repository.
func NewRepository(db bun.IDB) Repository {
	return &Impl{db: db}
}

func (r *Impl) resolveDB(db bun.IDB) bun.IDB {
	if db == nil {
		return r.db
	}
	return db
}

func (r *Impl) Create(ctx context.Context, db bun.IDB, player *Player) error {
	db = r.resolveDB(db)
	_, err := db.NewInsert().Model(player).Returning("*").Exec(ctx)
	if err != nil {
		if pgerr.IsUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrConflict, pgerr.Constraint(err))
		}
		return fmt.Errorf("failed to create player: %w", err)
	}
	return nil
}

func (r *Impl) GetByID(ctx context.Context, db bun.IDB, id int64) (*Player, error) {
	db = r.resolveDB(db)
	player := new(Player)
	err := db.NewSelect().Model(player).Where("p.id = ?", id).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get player by id: %w", err)
	}
	return player, nil
}

func (r *Impl) GetByNick(ctx context.Context, db bun.IDB, nickFolded string) (*Player, error) {
	db = r.resolveDB(db)
	player := new(Player)
	err := db.NewSelect().Model(player).Where("p.nick_folded = ?", nickFolded).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get player by nick: %w", err)
	}
	return player, nil
}

func (r *Impl) FindConflicts(ctx context.Context, db bun.IDB, c ConflictQuery) ([]string, error) {
	if c.Handle == "" && c.ChatID == "" && c.NickFolded == "" && c.Email == "" {
		return nil, nil
	}
	db = r.resolveDB(db)
	var taken []Player
	q := db.NewSelect().Model(&taken).Column("handle", "chat_id", "nick_folded", "email")
	q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
		if c.Handle != "" {
			q = q.WhereOr("handle = ?", c.Handle)
		}
		if c.ChatID != "" {
			q = q.WhereOr("chat_id = ?", c.ChatID)
		}
		if c.NickFolded != "" {
			q = q.WhereOr("nick_folded = ?", c.NickFolded)
		}
		if c.Email != "" {
			q = q.WhereOr("lower(email) = lower(?)", c.Email)
		}
		return q
	})
	if c.ExcludeID != 0 {
		q = q.Where("id <> ?", c.ExcludeID)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to check player conflicts: %w", err)
	}

	seen := map[string]bool{}
	var fields []string
	add := func(field string) {
		if !seen[field] {
			seen[field] = true
			fields = append(fields, field)
		}
	}
	for _, p := range taken {
		if c.Handle != "" && p.Handle == c.Handle {
			add("handle")
		}
		if c.ChatID != "" && p.ChatID == c.ChatID {
			add("chat_id")
		}
		if c.NickFolded != "" && p.NickFolded == c.NickFolded {
			add("nick")
		}
		if c.Email != "" && p.Email != nil && strings.EqualFold(*p.Email, c.Email) {
			add("email")
		}
	}
	return fields, nil
}

func (r *Impl) Search(ctx context.Context, db bun.IDB, query string, limit int) ([]Player, error) {
	db = r.resolveDB(db)
	pattern := "%" + escapeLike(strings.TrimSpace(query)) + "%"
	var players []Player
	err := db.NewSelect().
		Model(&players).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("p.handle ILIKE ?", pattern).
				WhereOr("p.nick ILIKE ?", pattern).
				WhereOr("p.chat_id ILIKE ?", pattern)
		}).
		OrderExpr("p.lifetime_points DESC, p.id ASC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to search players: %w", err)
	}
	return players, nil
}

func (r *Impl) UpdateProfile(ctx context.Context, db bun.IDB, id int64, nick, nickFolded string, email *string, bio string) error {
	db = r.resolveDB(db)
	res, err := db.NewUpdate().
		Model((*Player)(nil)).
		Set("nick = ?", nick).
		Set("nick_folded = ?", nickFolded).
		Set("email = ?", email).
		Set("bio = ?", bio).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		if pgerr.IsUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrConflict, pgerr.Constraint(err))
		}
		return fmt.Errorf("failed to update player profile: %w", err)
	}
	return requireRow(res)
}

func (r *Impl) Delete(ctx context.Context, db bun.IDB, id int64) error {
	db = r.resolveDB(db)
	res, err := db.NewDelete().Model((*Player)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete player: %w", err)
	}
	return requireRow(res)
}

func (r *Impl) Count(ctx context.Context, db bun.IDB) (int, error) {
	db = r.resolveDB(db)
	n, err := db.NewSelect().Model((*Player)(nil)).Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count players: %w", err)
	}
	return n, nil
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

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }
