package playerdb

import (
	"time"

	"github.com/uptrace/bun"
)

// Player is a registered competitor. LifetimePoints and SeasonPoints are maintained by the ledger.
type Player struct {
	bun.BaseModel  `bun:"table:players,alias:p"`
	ID             int64     `bun:"id,pk,autoincrement" json:"id"`
	Handle         string    `bun:"handle,notnull,unique,type:varchar(64)" json:"handle"`
	ChatID         string    `bun:"chat_id,notnull,unique,type:varchar(64)" json:"chat_id"`
	Nick           string    `bun:"nick,notnull,type:varchar(64)" json:"nick"`
	NickFolded     string    `bun:"nick_folded,notnull,unique,type:varchar(64)" json:"-"`
	Email          *string   `bun:"email,unique,type:varchar(255)" json:"email,omitempty"`
	Bio            string    `bun:"bio,notnull,default:''" json:"bio"`
	LifetimePoints int       `bun:"lifetime_points,notnull,default:0" json:"lifetime_points"`
	SeasonPoints   int       `bun:"season_points,notnull,default:0" json:"season_points"`
	CreatedAt      time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
}
