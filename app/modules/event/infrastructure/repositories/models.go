package eventdb

import (
	"time"

	"github.com/uptrace/bun"
)

// Event is a competition whose results feed the ledger. Events are append-only.
type Event struct {
	bun.BaseModel `bun:"table:events,alias:e"`
	ID            int64     `bun:"id,pk,autoincrement" json:"id"`
	Name          string    `bun:"name,notnull,type:varchar(150)" json:"name"`
	EventDate     time.Time `bun:"event_date,notnull,type:date" json:"event_date"`
	Description   string    `bun:"description,notnull,default:''" json:"description"`
	SeasonID      *int64    `bun:"season_id" json:"season_id,omitempty"`
	CreatedBy     string    `bun:"created_by,notnull,type:varchar(64)" json:"created_by"`
	CreatedAt     time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
}
