package ledgerservice

import (
	"context"

	ledgerdb "github.com/Black-And-White-Club/arena-ranking/app/modules/ledger/infrastructure/repositories"
)

const (
	// DashboardRecentEntries is how many of the latest entries the dashboard shows.
	DashboardRecentEntries = 15
	// DashboardTopPlayers is how many leaders the dashboard shows.
	DashboardTopPlayers = 3
)

// Dashboard is the admin overview.
type Dashboard struct {
	Players     int                     `json:"players"`
	Events      int                     `json:"events"`
	TotalPoints int                     `json:"total_points"`
	Entries     int                     `json:"entries"`
	Recent      []ledgerdb.HistoryEntry `json:"recent"`
	Top         []ledgerdb.Standing     `json:"top"`
}

// Ranking lists players by the chosen accumulator with competition ranks.
func (s *LedgerService) Ranking(ctx context.Context, order ledgerdb.Order, limit int) ([]ledgerdb.Standing, error) {
	if order != ledgerdb.BySeason {
		order = ledgerdb.ByLifetime
	}
	return s.repo.Ranking(ctx, s.db, order, limit)
}

// History lists a player's entries, newest first.
func (s *LedgerService) History(ctx context.Context, playerID int64, limit int) ([]ledgerdb.HistoryEntry, error) {
	return s.repo.History(ctx, s.db, playerID, limit)
}

// Dashboard gathers the admin overview counters.
func (s *LedgerService) Dashboard(ctx context.Context) (*Dashboard, error) {
	players, err := s.players.Count(ctx, s.db)
	if err != nil {
		return nil, err
	}
	events, err := s.events.Count(ctx, s.db)
	if err != nil {
		return nil, err
	}
	agg, err := s.repo.Aggregates(ctx, s.db)
	if err != nil {
		return nil, err
	}
	recent, err := s.repo.RecentEntries(ctx, s.db, DashboardRecentEntries)
	if err != nil {
		return nil, err
	}
	top, err := s.repo.Ranking(ctx, s.db, ledgerdb.ByLifetime, DashboardTopPlayers)
	if err != nil {
		return nil, err
	}
	return &Dashboard{
		Players:     players,
		Events:      events,
		TotalPoints: agg.TotalPoints,
		Entries:     agg.EntryCount,
		Recent:      recent,
		Top:         top,
	}, nil
}

// AuditDrift counts players whose lifetime total no longer matches their entries and reports it
// on the drift gauge.
func (s *LedgerService) AuditDrift(ctx context.Context) (int, error) {
	n, err := s.repo.CountDrift(ctx, s.db)
	if err != nil {
		return 0, err
	}
	s.metrics.SetLedgerDrift(ctx, n)
	return n, nil
}
