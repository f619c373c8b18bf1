// Package seasonevents declares the topics and payloads published by the season manager.
package seasonevents

import "time"

const (
	SeasonActivatedV1 = "ranking.season.activated.v1"
	SeasonEndedV1     = "ranking.season.ended.v1"
	SeasonHardResetV1 = "ranking.season.hard_reset.v1"
)

// SeasonActivatedPayloadV1 is published after a season becomes the active one.
type SeasonActivatedPayloadV1 struct {
	SeasonID int64     `json:"season_id"`
	Name     string    `json:"name"`
	At       time.Time `json:"at"`
}

// SeasonEndedPayloadV1 is published after EndAndRotate commits.
type SeasonEndedPayloadV1 struct {
	SeasonID     int64     `json:"season_id"`
	NextSeasonID *int64    `json:"next_season_id,omitempty"`
	PlayersReset int       `json:"players_reset"`
	EndedAt      time.Time `json:"ended_at"`
}

// SeasonHardResetPayloadV1 is published after a hard reset.
type SeasonHardResetPayloadV1 struct {
	PlayersReset   int       `json:"players_reset"`
	EntriesDeleted int       `json:"entries_deleted"`
	At             time.Time `json:"at"`
}
