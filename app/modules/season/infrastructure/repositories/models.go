package seasondb

import (
	"time"

	seasondomain "github.com/Black-And-White-Club/arena-ranking/app/modules/season/domain"
	"github.com/uptrace/bun"
)

// Season is a competitive period. At most one row has IsActive set.
type Season struct {
	bun.BaseModel `bun:"table:seasons,alias:s"`
	ID            int64      `bun:"id,pk,autoincrement" json:"id"`
	Name          string     `bun:"name,notnull,type:varchar(100)" json:"name"`
	Slug          string     `bun:"slug,notnull,unique,type:varchar(120)" json:"slug"`
	IsActive      bool       `bun:"is_active,notnull,default:false" json:"is_active"`
	StartDate     *time.Time `bun:"start_date,nullzero" json:"start_date,omitempty"`
	EndDate       *time.Time `bun:"end_date,nullzero" json:"end_date,omitempty"`
	CreatedAt     time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
}

// State derives the lifecycle state.
func (s *Season) State() seasondomain.State {
	return seasondomain.StateOf(s.IsActive, s.EndDate)
}

// FinalStanding is a player's standing captured when a season ended.
type FinalStanding struct {
	bun.BaseModel  `bun:"table:season_final_standings,alias:sfs"`
	ID             int64     `bun:"id,pk,autoincrement" json:"id"`
	SeasonID       int64     `bun:"season_id,notnull" json:"season_id"`
	PlayerID       *int64    `bun:"player_id" json:"player_id,omitempty"`
	Rank           int       `bun:"rank,notnull" json:"rank"`
	Nick           string    `bun:"nick,notnull" json:"nick"`
	SeasonPoints   int       `bun:"season_points,notnull" json:"season_points"`
	LifetimePoints int       `bun:"lifetime_points,notnull" json:"lifetime_points"`
	CapturedAt     time.Time `bun:"captured_at,notnull" json:"captured_at"`
}
