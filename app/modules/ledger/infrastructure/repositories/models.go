package ledgerdb

import (
	"time"

	ledgerdomain "github.com/Black-And-White-Club/arena-ranking/app/modules/ledger/domain"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Entry is one signed points adjustment for a player.
type Entry struct {
	bun.BaseModel `bun:"table:ledger_entries,alias:le"`
	ID            int64               `bun:"id,pk,autoincrement" json:"id"`
	PlayerID      int64               `bun:"player_id,notnull" json:"player_id"`
	EventID       *int64              `bun:"event_id" json:"event_id,omitempty"`
	Points        int                 `bun:"points,notnull" json:"points"`
	Position      *int                `bun:"position" json:"position,omitempty"`
	Reason        string              `bun:"reason,notnull,default:''" json:"reason"`
	Source        ledgerdomain.Source `bun:"source,notnull,type:varchar(16)" json:"source"`
	BatchID       *uuid.UUID          `bun:"batch_id,type:uuid" json:"batch_id,omitempty"`
	AddedBy       string              `bun:"added_by,notnull,type:varchar(64)" json:"added_by"`
	RequestKey    *string             `bun:"request_key,type:varchar(64)" json:"request_key,omitempty"`
	AddedAt       time.Time           `bun:"added_at,nullzero,notnull,default:current_timestamp" json:"added_at"`
}

// PlayerTotals is the ledger's view of a player row.
type PlayerTotals struct {
	bun.BaseModel  `bun:"table:players,alias:p"`
	ID             int64     `bun:"id,pk" json:"id"`
	Handle         string    `bun:"handle" json:"handle"`
	ChatID         string    `bun:"chat_id" json:"chat_id"`
	Nick           string    `bun:"nick" json:"nick"`
	LifetimePoints int       `bun:"lifetime_points" json:"lifetime_points"`
	SeasonPoints   int       `bun:"season_points" json:"season_points"`
	CreatedAt      time.Time `bun:"created_at" json:"created_at"`
}

// Totals returns the accumulators.
func (p *PlayerTotals) Totals() ledgerdomain.Totals {
	return ledgerdomain.Totals{Lifetime: p.LifetimePoints, Season: p.SeasonPoints}
}

// Standing is a ranked player row.
type Standing struct {
	Rank           int       `bun:"rank" json:"rank"`
	PlayerID       int64     `bun:"id" json:"player_id"`
	Handle         string    `bun:"handle" json:"handle"`
	ChatID         string    `bun:"chat_id" json:"chat_id"`
	Nick           string    `bun:"nick" json:"nick"`
	LifetimePoints int       `bun:"lifetime_points" json:"lifetime_points"`
	SeasonPoints   int       `bun:"season_points" json:"season_points"`
	CreatedAt      time.Time `bun:"created_at" json:"created_at"`
}

// HistoryEntry is an entry joined with its player nick and event name.
type HistoryEntry struct {
	Entry      `bun:",extend"`
	PlayerNick string  `bun:"player_nick" json:"player_nick"`
	EventName  *string `bun:"event_name" json:"event_name,omitempty"`
}

// Aggregates are ledger-wide counters.
type Aggregates struct {
	TotalPoints  int `json:"total_points"`
	EntryCount   int `json:"entry_count"`
	SeasonPoints int `json:"season_points"`
}
