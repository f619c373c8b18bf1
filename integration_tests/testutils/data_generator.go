//go:build integration

package testutils

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/uptrace/bun"

	eventdb "github.com/Black-And-White-Club/arena-ranking/app/modules/event/infrastructure/repositories"
	playerdomain "github.com/Black-And-White-Club/arena-ranking/app/modules/player/domain"
	playerdb "github.com/Black-And-White-Club/arena-ranking/app/modules/player/infrastructure/repositories"
	seasondomain "github.com/Black-And-White-Club/arena-ranking/app/modules/season/domain"
	seasondb "github.com/Black-And-White-Club/arena-ranking/app/modules/season/infrastructure/repositories"
)

// TestDataGenerator builds realistic rows for integration tests.
type TestDataGenerator struct {
	faker *gofakeit.Faker
	seq   int
}

// NewTestDataGenerator creates a generator; pass a seed to make the data reproducible.
func NewTestDataGenerator(seed ...int64) *TestDataGenerator {
	s := time.Now().UnixNano()
	if len(seed) > 0 {
		s = seed[0]
	}
	return &TestDataGenerator{faker: gofakeit.New(uint64(s))}
}

// GeneratePlayer returns an unsaved player whose handle, chat id and nick are unique within
// this generator.
func (g *TestDataGenerator) GeneratePlayer() playerdb.Player {
	g.seq++
	nick := fmt.Sprintf("%s%d", g.faker.FirstName(), g.seq)
	email := fmt.Sprintf("%d.%s", g.seq, g.faker.Email())
	return playerdb.Player{
		Handle:     fmt.Sprintf("%s_%d", g.faker.Username(), g.seq),
		ChatID:     fmt.Sprintf("%s%d", g.faker.Numerify("#########"), g.seq),
		Nick:       nick,
		NickFolded: playerdomain.FoldNick(nick),
		Email:      &email,
		Bio:        g.faker.Sentence(6),
	}
}

// GenerateEventName returns a plausible tournament name.
func (g *TestDataGenerator) GenerateEventName() string {
	return fmt.Sprintf("%s %s Open", g.faker.City(), g.faker.Color())
}

// InsertPlayers creates n players and returns them with their ids filled.
func (g *TestDataGenerator) InsertPlayers(t *testing.T, db bun.IDB, n int) []playerdb.Player {
	t.Helper()
	players := make([]playerdb.Player, n)
	for i := range players {
		players[i] = g.GeneratePlayer()
	}
	if _, err := db.NewInsert().Model(&players).Exec(context.Background()); err != nil {
		t.Fatalf("failed to insert players: %v", err)
	}
	return players
}

// InsertEvent creates an event held today, optionally attached to a season.
func (g *TestDataGenerator) InsertEvent(t *testing.T, db bun.IDB, seasonID *int64) *eventdb.Event {
	t.Helper()
	event := &eventdb.Event{
		Name:        g.GenerateEventName(),
		EventDate:   time.Now().UTC().Truncate(24 * time.Hour),
		Description: g.faker.Sentence(8),
		SeasonID:    seasonID,
		CreatedBy:   "integration",
	}
	if _, err := db.NewInsert().Model(event).Exec(context.Background()); err != nil {
		t.Fatalf("failed to insert event: %v", err)
	}
	return event
}

// InsertSeason creates a season; active seasons get a start date of now.
func (g *TestDataGenerator) InsertSeason(t *testing.T, db bun.IDB, name string, active bool) *seasondb.Season {
	t.Helper()
	season := &seasondb.Season{Name: name, Slug: seasondomain.Slug(name), IsActive: active}
	if active {
		now := time.Now().UTC()
		season.StartDate = &now
	}
	if _, err := db.NewInsert().Model(season).Exec(context.Background()); err != nil {
		t.Fatalf("failed to insert season: %v", err)
	}
	return season
}

// SetPoints overwrites a player's accumulators without writing ledger entries.
func SetPoints(t *testing.T, db bun.IDB, playerID int64, lifetime, season int) {
	t.Helper()
	_, err := db.NewUpdate().
		Model((*playerdb.Player)(nil)).
		Set("lifetime_points = ?", lifetime).
		Set("season_points = ?", season).
		Where("id = ?", playerID).
		Exec(context.Background())
	if err != nil {
		t.Fatalf("failed to set points for player %d: %v", playerID, err)
	}
}

// ReadPlayer reloads a player row.
func ReadPlayer(t *testing.T, db bun.IDB, playerID int64) *playerdb.Player {
	t.Helper()
	p := new(playerdb.Player)
	if err := db.NewSelect().Model(p).Where("id = ?", playerID).Scan(context.Background()); err != nil {
		t.Fatalf("failed to read player %d: %v", playerID, err)
	}
	return p
}

// CountRows counts the rows of a table.
func CountRows(t *testing.T, db bun.IDB, table string) int {
	t.Helper()
	n, err := db.NewSelect().Table(table).Count(context.Background())
	if err != nil {
		t.Fatalf("failed to count %s: %v", table, err)
	}
	return n
}
