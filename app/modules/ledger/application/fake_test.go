package ledgerservice

import (
	"context"
	"sort"
	"sync"
	"time"

	eventdb "github.com/Black-And-White-Club/arena-ranking/app/modules/event/infrastructure/repositories"
	ledgerdomain "github.com/Black-And-White-Club/arena-ranking/app/modules/ledger/domain"
	ledgerdb "github.com/Black-And-White-Club/arena-ranking/app/modules/ledger/infrastructure/repositories"
	playerdomain "github.com/Black-And-White-Club/arena-ranking/app/modules/player/domain"
	playerdb "github.com/Black-And-White-Club/arena-ranking/app/modules/player/infrastructure/repositories"
	"github.com/uptrace/bun"
)

var fakeEpoch = time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

// ------------------------
// Fake Ledger Repo
// ------------------------

// FakeLedgerRepo is an in-memory ledger. Func fields override individual methods.
type FakeLedgerRepo struct {
	mu     sync.Mutex
	trace  []string
	nextID int64

	players map[int64]*ledgerdb.PlayerTotals
	entries map[int64]*ledgerdb.Entry
	// knownEvents restricts which event ids InsertEntry accepts. nil accepts every id.
	knownEvents map[int64]bool

	InsertEntryFunc   func(ctx context.Context, db bun.IDB, entry *ledgerdb.Entry) error
	HasEventEntryFunc func(ctx context.Context, db bun.IDB, playerID, eventID int64) (bool, error)
	RankingFunc       func(ctx context.Context, db bun.IDB, order ledgerdb.Order, limit int) ([]ledgerdb.Standing, error)
	CountDriftFunc    func(ctx context.Context, db bun.IDB) (int, error)
}

func NewFakeLedgerRepo() *FakeLedgerRepo {
	return &FakeLedgerRepo{
		trace:   []string{},
		players: map[int64]*ledgerdb.PlayerTotals{},
		entries: map[int64]*ledgerdb.Entry{},
	}
}

// AddPlayer seeds a player with the given totals.
func (f *FakeLedgerRepo) AddPlayer(id int64, nick string, lifetime, season int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.players[id] = &ledgerdb.PlayerTotals{
		ID:             id,
		Handle:         nick,
		ChatID:         nick + "#chat",
		Nick:           nick,
		LifetimePoints: lifetime,
		SeasonPoints:   season,
		CreatedAt:      fakeEpoch,
	}
}

func (f *FakeLedgerRepo) record(step string) {
	f.trace = append(f.trace, step)
}

func (f *FakeLedgerRepo) Trace() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.trace...)
}

// Totals returns a player's accumulators.
func (f *FakeLedgerRepo) Totals(id int64) ledgerdomain.Totals {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.players[id].Totals()
}

// Entries returns every stored entry ordered by id.
func (f *FakeLedgerRepo) Entries() []ledgerdb.Entry {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]ledgerdb.Entry, 0, len(f.entries))
	for _, e := range f.entries {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f *FakeLedgerRepo) LockPlayer(ctx context.Context, db bun.IDB, playerID int64) (*ledgerdb.PlayerTotals, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("LockPlayer")
	p, ok := f.players[playerID]
	if !ok {
		return nil, ledgerdb.ErrPlayerNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *FakeLedgerRepo) GetTotals(ctx context.Context, db bun.IDB, playerID int64) (*ledgerdb.PlayerTotals, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetTotals")
	p, ok := f.players[playerID]
	if !ok {
		return nil, ledgerdb.ErrPlayerNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *FakeLedgerRepo) InsertEntry(ctx context.Context, db bun.IDB, entry *ledgerdb.Entry) error {
	if f.InsertEntryFunc != nil {
		f.mu.Lock()
		f.record("InsertEntry")
		f.mu.Unlock()
		return f.InsertEntryFunc(ctx, db, entry)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("InsertEntry")
	if _, ok := f.players[entry.PlayerID]; !ok {
		return ledgerdb.ErrPlayerNotFound
	}
	if entry.RequestKey != nil {
		for _, e := range f.entries {
			if e.RequestKey != nil && *e.RequestKey == *entry.RequestKey {
				return ledgerdb.ErrDuplicateRequest
			}
		}
	}
	if entry.EventID != nil {
		if f.knownEvents != nil && !f.knownEvents[*entry.EventID] {
			return ledgerdb.ErrEventNotFound
		}
		if entry.Source == ledgerdomain.SourceBulk {
			for _, e := range f.entries {
				if e.Source == ledgerdomain.SourceBulk && e.PlayerID == entry.PlayerID && e.EventID != nil && *e.EventID == *entry.EventID {
					return ledgerdb.ErrDuplicateAward
				}
			}
		}
	}
	f.nextID++
	entry.ID = f.nextID
	entry.AddedAt = fakeEpoch.Add(time.Duration(entry.ID) * time.Minute)
	cp := *entry
	f.entries[entry.ID] = &cp
	return nil
}

func (f *FakeLedgerRepo) GetEntry(ctx context.Context, db bun.IDB, entryID int64) (*ledgerdb.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetEntry")
	e, ok := f.entries[entryID]
	if !ok {
		return nil, ledgerdb.ErrEntryNotFound
	}
	cp := *e
	return &cp, nil
}

func (f *FakeLedgerRepo) GetEntryByRequestKey(ctx context.Context, db bun.IDB, key string) (*ledgerdb.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetEntryByRequestKey")
	for _, e := range f.entries {
		if e.RequestKey != nil && *e.RequestKey == key {
			cp := *e
			return &cp, nil
		}
	}
	return nil, ledgerdb.ErrEntryNotFound
}

func (f *FakeLedgerRepo) DeleteEntry(ctx context.Context, db bun.IDB, entryID int64) (*ledgerdb.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DeleteEntry")
	e, ok := f.entries[entryID]
	if !ok {
		return nil, ledgerdb.ErrEntryNotFound
	}
	delete(f.entries, entryID)
	return e, nil
}

func (f *FakeLedgerRepo) ApplyDelta(ctx context.Context, db bun.IDB, playerID int64, delta int) (ledgerdomain.Totals, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ApplyDelta")
	p, ok := f.players[playerID]
	if !ok {
		return ledgerdomain.Totals{}, ledgerdb.ErrPlayerNotFound
	}
	p.LifetimePoints = max(p.LifetimePoints+delta, 0)
	p.SeasonPoints = max(p.SeasonPoints+delta, 0)
	return p.Totals(), nil
}

func (f *FakeLedgerRepo) HasEventEntry(ctx context.Context, db bun.IDB, playerID, eventID int64) (bool, error) {
	if f.HasEventEntryFunc != nil {
		f.mu.Lock()
		f.record("HasEventEntry")
		f.mu.Unlock()
		return f.HasEventEntryFunc(ctx, db, playerID, eventID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("HasEventEntry")
	for _, e := range f.entries {
		if e.PlayerID == playerID && e.EventID != nil && *e.EventID == eventID {
			return true, nil
		}
	}
	return false, nil
}

func (f *FakeLedgerRepo) CountAbove(ctx context.Context, db bun.IDB, points int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CountAbove")
	n := 0
	for _, p := range f.players {
		if p.LifetimePoints > points {
			n++
		}
	}
	return n, nil
}

func (f *FakeLedgerRepo) Ranking(ctx context.Context, db bun.IDB, order ledgerdb.Order, limit int) ([]ledgerdb.Standing, error) {
	if f.RankingFunc != nil {
		return f.RankingFunc(ctx, db, order, limit)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("Ranking")
	score := func(p *ledgerdb.PlayerTotals) int {
		if order == ledgerdb.BySeason {
			return p.SeasonPoints
		}
		return p.LifetimePoints
	}
	ps := make([]*ledgerdb.PlayerTotals, 0, len(f.players))
	for _, p := range f.players {
		ps = append(ps, p)
	}
	sort.Slice(ps, func(i, j int) bool {
		if score(ps[i]) != score(ps[j]) {
			return score(ps[i]) > score(ps[j])
		}
		return ps[i].ID < ps[j].ID
	})
	var out []ledgerdb.Standing
	for i, p := range ps {
		rank := i + 1
		if i > 0 && score(ps[i-1]) == score(p) {
			rank = out[i-1].Rank
		}
		out = append(out, ledgerdb.Standing{
			Rank:           rank,
			PlayerID:       p.ID,
			Handle:         p.Handle,
			ChatID:         p.ChatID,
			Nick:           p.Nick,
			LifetimePoints: p.LifetimePoints,
			SeasonPoints:   p.SeasonPoints,
			CreatedAt:      p.CreatedAt,
		})
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *FakeLedgerRepo) history(match func(*ledgerdb.Entry) bool, limit int) []ledgerdb.HistoryEntry {
	var out []ledgerdb.HistoryEntry
	for _, e := range f.entries {
		if match(e) {
			nick := ""
			if p, ok := f.players[e.PlayerID]; ok {
				nick = p.Nick
			}
			out = append(out, ledgerdb.HistoryEntry{Entry: *e, PlayerNick: nick})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (f *FakeLedgerRepo) History(ctx context.Context, db bun.IDB, playerID int64, limit int) ([]ledgerdb.HistoryEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("History")
	return f.history(func(e *ledgerdb.Entry) bool { return e.PlayerID == playerID }, limit), nil
}

func (f *FakeLedgerRepo) RecentEntries(ctx context.Context, db bun.IDB, limit int) ([]ledgerdb.HistoryEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("RecentEntries")
	return f.history(func(*ledgerdb.Entry) bool { return true }, limit), nil
}

func (f *FakeLedgerRepo) Aggregates(ctx context.Context, db bun.IDB) (ledgerdb.Aggregates, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("Aggregates")
	var agg ledgerdb.Aggregates
	for _, e := range f.entries {
		agg.TotalPoints += e.Points
		agg.EntryCount++
	}
	for _, p := range f.players {
		agg.SeasonPoints += p.SeasonPoints
	}
	return agg, nil
}

func (f *FakeLedgerRepo) CountSeasonScorers(ctx context.Context, db bun.IDB) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CountSeasonScorers")
	n := 0
	for _, p := range f.players {
		if p.SeasonPoints > 0 {
			n++
		}
	}
	return n, nil
}

func (f *FakeLedgerRepo) LockAccumulators(ctx context.Context, db bun.IDB) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("LockAccumulators")
	return nil
}

func (f *FakeLedgerRepo) ResetSeasonPoints(ctx context.Context, db bun.IDB) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ResetSeasonPoints")
	for _, p := range f.players {
		p.SeasonPoints = 0
	}
	return len(f.players), nil
}

func (f *FakeLedgerRepo) ResetAll(ctx context.Context, db bun.IDB) (int, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ResetAll")
	for _, p := range f.players {
		p.LifetimePoints, p.SeasonPoints = 0, 0
	}
	deleted := len(f.entries)
	f.entries = map[int64]*ledgerdb.Entry{}
	return len(f.players), deleted, nil
}

func (f *FakeLedgerRepo) CountDrift(ctx context.Context, db bun.IDB) (int, error) {
	if f.CountDriftFunc != nil {
		return f.CountDriftFunc(ctx, db)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CountDrift")
	sums := map[int64]int{}
	for _, e := range f.entries {
		sums[e.PlayerID] += e.Points
	}
	n := 0
	for id, p := range f.players {
		if p.LifetimePoints != max(sums[id], 0) {
			n++
		}
	}
	return n, nil
}

var _ ledgerdb.Repository = (*FakeLedgerRepo)(nil)

// ------------------------
// Fake lookups
// ------------------------

type fakePlayers struct {
	byNick   map[string]*playerdb.Player
	nickErr  error
	countVal int
}

func newFakePlayers(players ...*playerdb.Player) *fakePlayers {
	f := &fakePlayers{byNick: map[string]*playerdb.Player{}}
	for _, p := range players {
		f.byNick[playerdomain.FoldNick(p.Nick)] = p
	}
	f.countVal = len(players)
	return f
}

func (f *fakePlayers) GetByNick(ctx context.Context, db bun.IDB, nickFolded string) (*playerdb.Player, error) {
	if f.nickErr != nil {
		return nil, f.nickErr
	}
	p, ok := f.byNick[nickFolded]
	if !ok {
		return nil, playerdb.ErrNotFound
	}
	return p, nil
}

func (f *fakePlayers) Count(ctx context.Context, db bun.IDB) (int, error) {
	return f.countVal, nil
}

type fakeEvents struct {
	known map[int64]bool
}

func (f *fakeEvents) GetByID(ctx context.Context, db bun.IDB, id int64) (*eventdb.Event, error) {
	if !f.known[id] {
		return nil, eventdb.ErrNotFound
	}
	return &eventdb.Event{ID: id, Name: "Weekly"}, nil
}

func (f *fakeEvents) Count(ctx context.Context, db bun.IDB) (int, error) {
	return len(f.known), nil
}

type publishedEvent struct {
	Topic   string
	Payload any
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (f *fakePublisher) Publish(ctx context.Context, topic string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, publishedEvent{Topic: topic, Payload: payload})
	return f.err
}

func (f *fakePublisher) Topics() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	topics := make([]string, len(f.events))
	for i, e := range f.events {
		topics[i] = e.Topic
	}
	return topics
}

type fakeRecognizer struct {
	text string
	err  error
}

func (f fakeRecognizer) Recognize(ctx context.Context, image []byte) (string, error) {
	return f.text, f.err
}
