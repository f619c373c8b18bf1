package eventservice

import (
	"context"

	eventdb "github.com/Black-And-White-Club/arena-ranking/app/modules/event/infrastructure/repositories"
	seasondb "github.com/Black-And-White-Club/arena-ranking/app/modules/season/infrastructure/repositories"
	"github.com/uptrace/bun"
)

type FakeEventRepo struct {
	trace []string

	CreateFunc        func(ctx context.Context, db bun.IDB, event *eventdb.Event) error
	GetByIDFunc       func(ctx context.Context, db bun.IDB, id int64) (*eventdb.Event, error)
	ListFunc          func(ctx context.Context, db bun.IDB, limit int) ([]eventdb.Event, error)
	ListForSeasonFunc func(ctx context.Context, db bun.IDB, seasonID int64) ([]eventdb.Event, error)
	CountFunc         func(ctx context.Context, db bun.IDB) (int, error)
}

func NewFakeEventRepo() *FakeEventRepo {
	return &FakeEventRepo{trace: []string{}}
}

func (f *FakeEventRepo) record(step string) { f.trace = append(f.trace, step) }

func (f *FakeEventRepo) Create(ctx context.Context, db bun.IDB, event *eventdb.Event) error {
	f.record("Create")
	if f.CreateFunc != nil {
		return f.CreateFunc(ctx, db, event)
	}
	event.ID = 1
	return nil
}

func (f *FakeEventRepo) GetByID(ctx context.Context, db bun.IDB, id int64) (*eventdb.Event, error) {
	f.record("GetByID")
	if f.GetByIDFunc != nil {
		return f.GetByIDFunc(ctx, db, id)
	}
	return nil, eventdb.ErrNotFound
}

func (f *FakeEventRepo) List(ctx context.Context, db bun.IDB, limit int) ([]eventdb.Event, error) {
	f.record("List")
	if f.ListFunc != nil {
		return f.ListFunc(ctx, db, limit)
	}
	return nil, nil
}

func (f *FakeEventRepo) ListForSeason(ctx context.Context, db bun.IDB, seasonID int64) ([]eventdb.Event, error) {
	f.record("ListForSeason")
	if f.ListForSeasonFunc != nil {
		return f.ListForSeasonFunc(ctx, db, seasonID)
	}
	return nil, nil
}

func (f *FakeEventRepo) Count(ctx context.Context, db bun.IDB) (int, error) {
	f.record("Count")
	if f.CountFunc != nil {
		return f.CountFunc(ctx, db)
	}
	return 0, nil
}

func (f *FakeEventRepo) Trace() []string {
	out := make([]string, len(f.trace))
	copy(out, f.trace)
	return out
}

var _ eventdb.Repository = (*FakeEventRepo)(nil)

type fakeSeasons struct {
	active *seasondb.Season
	err    error
}

func (f fakeSeasons) GetActive(ctx context.Context, db bun.IDB) (*seasondb.Season, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.active == nil {
		return nil, seasondb.ErrNotFound
	}
	return f.active, nil
}
