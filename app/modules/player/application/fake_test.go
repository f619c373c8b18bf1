package playerservice

import (
	"context"

	playerdb "github.com/Black-And-White-Club/arena-ranking/app/modules/player/infrastructure/repositories"
	"github.com/uptrace/bun"
)

// ------------------------
// Fake Player Repo
// ------------------------

type FakePlayerRepo struct {
	trace []string

	CreateFunc        func(ctx context.Context, db bun.IDB, player *playerdb.Player) error
	GetByIDFunc       func(ctx context.Context, db bun.IDB, id int64) (*playerdb.Player, error)
	GetByNickFunc     func(ctx context.Context, db bun.IDB, nickFolded string) (*playerdb.Player, error)
	FindConflictsFunc func(ctx context.Context, db bun.IDB, c playerdb.ConflictQuery) ([]string, error)
	SearchFunc        func(ctx context.Context, db bun.IDB, query string, limit int) ([]playerdb.Player, error)
	UpdateProfileFunc func(ctx context.Context, db bun.IDB, id int64, nick, nickFolded string, email *string, bio string) error
	DeleteFunc        func(ctx context.Context, db bun.IDB, id int64) error
	CountFunc         func(ctx context.Context, db bun.IDB) (int, error)
}

func NewFakePlayerRepo() *FakePlayerRepo {
	return &FakePlayerRepo{trace: []string{}}
}

func (f *FakePlayerRepo) record(step string) {
	f.trace = append(f.trace, step)
}

func (f *FakePlayerRepo) Create(ctx context.Context, db bun.IDB, player *playerdb.Player) error {
	f.record("Create")
	if f.CreateFunc != nil {
		return f.CreateFunc(ctx, db, player)
	}
	player.ID = 1
	return nil
}

func (f *FakePlayerRepo) GetByID(ctx context.Context, db bun.IDB, id int64) (*playerdb.Player, error) {
	f.record("GetByID")
	if f.GetByIDFunc != nil {
		return f.GetByIDFunc(ctx, db, id)
	}
	return nil, playerdb.ErrNotFound
}

func (f *FakePlayerRepo) GetByNick(ctx context.Context, db bun.IDB, nickFolded string) (*playerdb.Player, error) {
	f.record("GetByNick")
	if f.GetByNickFunc != nil {
		return f.GetByNickFunc(ctx, db, nickFolded)
	}
	return nil, playerdb.ErrNotFound
}

func (f *FakePlayerRepo) FindConflicts(ctx context.Context, db bun.IDB, c playerdb.ConflictQuery) ([]string, error) {
	f.record("FindConflicts")
	if f.FindConflictsFunc != nil {
		return f.FindConflictsFunc(ctx, db, c)
	}
	return nil, nil
}

func (f *FakePlayerRepo) Search(ctx context.Context, db bun.IDB, query string, limit int) ([]playerdb.Player, error) {
	f.record("Search")
	if f.SearchFunc != nil {
		return f.SearchFunc(ctx, db, query, limit)
	}
	return nil, nil
}

func (f *FakePlayerRepo) UpdateProfile(ctx context.Context, db bun.IDB, id int64, nick, nickFolded string, email *string, bio string) error {
	f.record("UpdateProfile")
	if f.UpdateProfileFunc != nil {
		return f.UpdateProfileFunc(ctx, db, id, nick, nickFolded, email, bio)
	}
	return nil
}

func (f *FakePlayerRepo) Delete(ctx context.Context, db bun.IDB, id int64) error {
	f.record("Delete")
	if f.DeleteFunc != nil {
		return f.DeleteFunc(ctx, db, id)
	}
	return nil
}

func (f *FakePlayerRepo) Count(ctx context.Context, db bun.IDB) (int, error) {
	f.record("Count")
	if f.CountFunc != nil {
		return f.CountFunc(ctx, db)
	}
	return 0, nil
}

func (f *FakePlayerRepo) Trace() []string {
	out := make([]string, len(f.trace))
	copy(out, f.trace)
	return out
}

var _ playerdb.Repository = (*FakePlayerRepo)(nil)
