package ledgerhandlers

import (
	"context"
	"log/slog"

	ledgerservice "github.com/Black-And-White-Club/arena-ranking/app/modules/ledger/application"
	ledgerevents "github.com/Black-And-White-Club/arena-ranking/app/modules/ledger/domain/events"
	playerservice "github.com/Black-And-White-Club/arena-ranking/app/modules/player/application"
	"github.com/Black-And-White-Club/arena-ranking/pkg/handlerwrapper"
)

// Handlers processes ledger commands arriving on the message bus.
type Handlers interface {
	HandlePointsAwardRequested(ctx context.Context, payload *ledgerevents.PointsAwardRequestedPayloadV1) ([]handlerwrapper.Result, error)
	HandleBulkRequested(ctx context.Context, payload *ledgerevents.BulkRequestedPayloadV1) ([]handlerwrapper.Result, error)
}

// PlayerFinder resolves a nick to a player.
type PlayerFinder interface {
	FindByNick(ctx context.Context, nick string) (playerservice.PlayerResult, error)
}

// LedgerHandlers implements Handlers.
type LedgerHandlers struct {
	service ledgerservice.Service
	players PlayerFinder
	logger  *slog.Logger
}

// NewLedgerHandlers creates a new LedgerHandlers.
func NewLedgerHandlers(service ledgerservice.Service, players PlayerFinder, logger *slog.Logger) *LedgerHandlers {
	return &LedgerHandlers{service: service, players: players, logger: logger}
}

var _ Handlers = (*LedgerHandlers)(nil)

func failed(topic string, err error) []handlerwrapper.Result {
	return []handlerwrapper.Result{{
		Topic:   topic,
		Payload: ledgerevents.RequestFailedPayloadV1{Reason: err.Error()},
	}}
}
