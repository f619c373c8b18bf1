package seasonservice

import (
	"context"
	"sort"
	"sync"
	"time"

	eventdb "github.com/Black-And-White-Club/arena-ranking/app/modules/event/infrastructure/repositories"
	ledgerdb "github.com/Black-And-White-Club/arena-ranking/app/modules/ledger/infrastructure/repositories"
	seasondb "github.com/Black-And-White-Club/arena-ranking/app/modules/season/infrastructure/repositories"
	"github.com/uptrace/bun"
)

// ------------------------
// Fake Season Repo
// ------------------------

// FakeSeasonRepo keeps seasons in memory and shares a player table with FakePoints so
// snapshots see the same points the reset clears.
type FakeSeasonRepo struct {
	mu     sync.Mutex
	trace  []string
	nextID int64

	seasons   map[int64]*seasondb.Season
	standings []seasondb.FinalStanding
	points    *FakePoints

	SlugExistsFunc func(ctx context.Context, db bun.IDB, slug string) (bool, error)
	EndFunc        func(ctx context.Context, db bun.IDB, id int64, endDate time.Time) error
}

func NewFakeSeasonRepo(points *FakePoints) *FakeSeasonRepo {
	return &FakeSeasonRepo{trace: []string{}, seasons: map[int64]*seasondb.Season{}, points: points}
}

func (f *FakeSeasonRepo) record(step string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trace = append(f.trace, step)
}

func (f *FakeSeasonRepo) Trace() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.trace...)
}

// Seed adds a season directly.
func (f *FakeSeasonRepo) Seed(name string, active bool, ended *time.Time) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.seasons[f.nextID] = &seasondb.Season{ID: f.nextID, Name: name, Slug: name, IsActive: active, EndDate: ended}
	return f.nextID
}

func (f *FakeSeasonRepo) Season(id int64) seasondb.Season {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.seasons[id]
}

func (f *FakeSeasonRepo) ActiveIDs() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []int64
	for id, s := range f.seasons {
		if s.IsActive {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (f *FakeSeasonRepo) Create(ctx context.Context, db bun.IDB, season *seasondb.Season) error {
	f.record("Create")
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.seasons {
		if s.Slug == season.Slug {
			return seasondb.ErrConflict
		}
	}
	f.nextID++
	season.ID = f.nextID
	cp := *season
	f.seasons[season.ID] = &cp
	return nil
}

func (f *FakeSeasonRepo) GetByID(ctx context.Context, db bun.IDB, id int64) (*seasondb.Season, error) {
	f.record("GetByID")
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.seasons[id]
	if !ok {
		return nil, seasondb.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *FakeSeasonRepo) GetActive(ctx context.Context, db bun.IDB) (*seasondb.Season, error) {
	f.record("GetActive")
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.seasons {
		if s.IsActive {
			cp := *s
			return &cp, nil
		}
	}
	return nil, seasondb.ErrNotFound
}

func (f *FakeSeasonRepo) List(ctx context.Context, db bun.IDB) ([]seasondb.Season, error) {
	f.record("List")
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]seasondb.Season, 0, len(f.seasons))
	for _, s := range f.seasons {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (f *FakeSeasonRepo) SlugExists(ctx context.Context, db bun.IDB, slug string) (bool, error) {
	f.record("SlugExists")
	if f.SlugExistsFunc != nil {
		return f.SlugExistsFunc(ctx, db, slug)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.seasons {
		if s.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}

func (f *FakeSeasonRepo) LockAll(ctx context.Context, db bun.IDB) error {
	f.record("LockAll")
	return nil
}

func (f *FakeSeasonRepo) DeactivateAll(ctx context.Context, db bun.IDB) error {
	f.record("DeactivateAll")
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.seasons {
		s.IsActive = false
	}
	return nil
}

func (f *FakeSeasonRepo) Activate(ctx context.Context, db bun.IDB, id int64, startDate time.Time, overwriteStart bool) error {
	f.record("Activate")
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.seasons[id]
	if !ok {
		return seasondb.ErrNotFound
	}
	s.IsActive = true
	s.EndDate = nil
	if overwriteStart || s.StartDate == nil {
		start := startDate
		s.StartDate = &start
	}
	return nil
}

func (f *FakeSeasonRepo) End(ctx context.Context, db bun.IDB, id int64, endDate time.Time) error {
	f.record("End")
	if f.EndFunc != nil {
		return f.EndFunc(ctx, db, id, endDate)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.seasons[id]
	if !ok {
		return seasondb.ErrNotFound
	}
	s.IsActive = false
	end := endDate
	s.EndDate = &end
	return nil
}

func (f *FakeSeasonRepo) SnapshotStandings(ctx context.Context, db bun.IDB, seasonID int64, at time.Time) (int, error) {
	f.record("SnapshotStandings")
	standings, _ := f.points.Ranking(ctx, db, ledgerdb.BySeason, 0)
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.standings[:0]
	for _, fs := range f.standings {
		if fs.SeasonID != seasonID {
			kept = append(kept, fs)
		}
	}
	f.standings = kept
	n := 0
	for _, st := range standings {
		if st.SeasonPoints <= 0 {
			continue
		}
		id := st.PlayerID
		f.standings = append(f.standings, seasondb.FinalStanding{
			SeasonID:       seasonID,
			PlayerID:       &id,
			Rank:           st.Rank,
			Nick:           st.Nick,
			SeasonPoints:   st.SeasonPoints,
			LifetimePoints: st.LifetimePoints,
			CapturedAt:     at,
		})
		n++
	}
	return n, nil
}

func (f *FakeSeasonRepo) FinalStandings(ctx context.Context, db bun.IDB, seasonID int64) ([]seasondb.FinalStanding, error) {
	f.record("FinalStandings")
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []seasondb.FinalStanding
	for _, fs := range f.standings {
		if fs.SeasonID == seasonID {
			out = append(out, fs)
		}
	}
	return out, nil
}

var _ seasondb.Repository = (*FakeSeasonRepo)(nil)

// ------------------------
// Fake Points
// ------------------------

type fakePlayer struct {
	id       int64
	nick     string
	lifetime int
	season   int
}

// FakePoints holds player accumulators and an entry count.
type FakePoints struct {
	mu      sync.Mutex
	trace   []string
	players []*fakePlayer
	entries int

	LockAccumulatorsFunc func(ctx context.Context, db bun.IDB) error
}

func (f *FakePoints) Trace() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.trace...)
}

func (f *FakePoints) LockAccumulators(ctx context.Context, db bun.IDB) error {
	f.mu.Lock()
	f.trace = append(f.trace, "LockAccumulators")
	f.mu.Unlock()
	if f.LockAccumulatorsFunc != nil {
		return f.LockAccumulatorsFunc(ctx, db)
	}
	return nil
}

func (f *FakePoints) Add(id int64, nick string, lifetime, season int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.players = append(f.players, &fakePlayer{id: id, nick: nick, lifetime: lifetime, season: season})
	f.entries++
}

func (f *FakePoints) Totals(id int64) (lifetime, season int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.players {
		if p.id == id {
			return p.lifetime, p.season
		}
	}
	return 0, 0
}

func (f *FakePoints) CountSeasonScorers(ctx context.Context, db bun.IDB) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trace = append(f.trace, "CountSeasonScorers")
	n := 0
	for _, p := range f.players {
		if p.season > 0 {
			n++
		}
	}
	return n, nil
}

func (f *FakePoints) ResetSeasonPoints(ctx context.Context, db bun.IDB) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trace = append(f.trace, "ResetSeasonPoints")
	for _, p := range f.players {
		p.season = 0
	}
	return len(f.players), nil
}

func (f *FakePoints) ResetAll(ctx context.Context, db bun.IDB) (int, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trace = append(f.trace, "ResetAll")
	for _, p := range f.players {
		p.lifetime, p.season = 0, 0
	}
	deleted := f.entries
	f.entries = 0
	return len(f.players), deleted, nil
}

func (f *FakePoints) Ranking(ctx context.Context, db bun.IDB, order ledgerdb.Order, limit int) ([]ledgerdb.Standing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	score := func(p *fakePlayer) int {
		if order == ledgerdb.BySeason {
			return p.season
		}
		return p.lifetime
	}
	ps := append([]*fakePlayer(nil), f.players...)
	sort.SliceStable(ps, func(i, j int) bool { return score(ps[i]) > score(ps[j]) })
	var out []ledgerdb.Standing
	for i, p := range ps {
		rank := i + 1
		if i > 0 && score(ps[i-1]) == score(p) {
			rank = out[i-1].Rank
		}
		out = append(out, ledgerdb.Standing{Rank: rank, PlayerID: p.id, Nick: p.nick, LifetimePoints: p.lifetime, SeasonPoints: p.season})
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *FakePoints) Aggregates(ctx context.Context, db bun.IDB) (ledgerdb.Aggregates, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var agg ledgerdb.Aggregates
	for _, p := range f.players {
		agg.TotalPoints += p.lifetime
		agg.SeasonPoints += p.season
	}
	agg.EntryCount = f.entries
	return agg, nil
}

var _ Accumulators = (*FakePoints)(nil)

type fakeEvents struct {
	bySeason map[int64][]eventdb.Event
}

func (f *fakeEvents) ListForSeason(ctx context.Context, db bun.IDB, seasonID int64) ([]eventdb.Event, error) {
	return f.bySeason[seasonID], nil
}

// fakeScheduler keeps the first time queued per season, the way a unique job insert does.
type fakeScheduler struct {
	calls  []time.Time
	queued map[int64]*ScheduledEnd
}

func (f *fakeScheduler) EnqueueEnd(ctx context.Context, currentID int64, nextID *int64, at time.Time) (*ScheduledEnd, error) {
	f.calls = append(f.calls, at)
	if f.queued == nil {
		f.queued = map[int64]*ScheduledEnd{}
	}
	if existing, ok := f.queued[currentID]; ok {
		return &ScheduledEnd{JobID: existing.JobID, At: existing.At, Duplicate: true}, nil
	}
	scheduled := &ScheduledEnd{JobID: int64(len(f.queued) + 1), At: at}
	f.queued[currentID] = scheduled
	return scheduled, nil
}

type fakePublisher struct {
	mu     sync.Mutex
	topics []string
}

func (f *fakePublisher) Publish(ctx context.Context, topic string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.topics = append(f.topics, topic)
	return nil
}
