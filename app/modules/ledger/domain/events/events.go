// Package ledgerevents declares the topics and payloads the ledger publishes and consumes.
package ledgerevents

import (
	"time"

	ledgerdomain "github.com/Black-And-White-Club/arena-ranking/app/modules/ledger/domain"
)

const (
	PointsAwardedV1 = "ranking.points.awarded.v1"
	PointsRemovedV1 = "ranking.points.removed.v1"
	BulkCompletedV1 = "ranking.bulk.completed.v1"

	PointsAwardRequestedV1 = "ranking.points.award.requested.v1"
	PointsAwardSucceededV1 = "ranking.points.award.succeeded.v1"
	PointsAwardFailedV1    = "ranking.points.award.failed.v1"

	BulkRequestedV1 = "ranking.bulk.requested.v1"
	BulkSucceededV1 = "ranking.bulk.succeeded.v1"
	BulkFailedV1    = "ranking.bulk.failed.v1"
)

// PointsAwardedPayloadV1 is published after an award commits.
type PointsAwardedPayloadV1 struct {
	EntryID  int64               `json:"entry_id"`
	PlayerID int64               `json:"player_id"`
	EventID  *int64              `json:"event_id,omitempty"`
	Points   int                 `json:"points"`
	Position *int                `json:"position,omitempty"`
	Reason   string              `json:"reason"`
	Source   ledgerdomain.Source `json:"source"`
	AddedBy  string              `json:"added_by"`
	Totals   ledgerdomain.Totals `json:"totals"`
	At       time.Time           `json:"at"`
}

// PointsRemovedPayloadV1 is published after an entry is removed.
type PointsRemovedPayloadV1 struct {
	EntryID  int64               `json:"entry_id"`
	PlayerID int64               `json:"player_id"`
	Points   int                 `json:"points"`
	Totals   ledgerdomain.Totals `json:"totals"`
}

// BulkCompletedPayloadV1 carries the bulk report.
type BulkCompletedPayloadV1 struct {
	Report ledgerdomain.BulkReport `json:"report"`
}

// PointsAwardRequestedPayloadV1 asks for a manual award. Nick is used when PlayerID is zero.
type PointsAwardRequestedPayloadV1 struct {
	PlayerID int64  `json:"player_id,omitempty"`
	Nick     string `json:"nick,omitempty"`
	EventID  *int64 `json:"event_id,omitempty"`
	Points   int    `json:"points"`
	Reason   string `json:"reason"`
	Actor    string `json:"actor"`
	// RequestID makes the request idempotent. The bus message id is used when it is empty.
	RequestID string `json:"request_id,omitempty"`
}

// BulkRequestedPayloadV1 asks for a bulk award. Either Rows or Text is set; Text is parsed as results.
type BulkRequestedPayloadV1 struct {
	EventID int64                    `json:"event_id"`
	Rows    []ledgerdomain.ResultRow `json:"rows,omitempty"`
	Text    string                   `json:"text,omitempty"`
	Actor   string                   `json:"actor"`
}

// RequestFailedPayloadV1 is the reply to a command that could not be applied.
type RequestFailedPayloadV1 struct {
	Reason string `json:"reason"`
}
