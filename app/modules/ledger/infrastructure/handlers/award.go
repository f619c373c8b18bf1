package ledgerhandlers

import (
	"context"
	"errors"
	"strings"

	ledgerservice "github.com/Black-And-White-Club/arena-ranking/app/modules/ledger/application"
	ledgerdomain "github.com/Black-And-White-Club/arena-ranking/app/modules/ledger/domain"
	ledgerevents "github.com/Black-And-White-Club/arena-ranking/app/modules/ledger/domain/events"
	"github.com/Black-And-White-Club/arena-ranking/app/shared"
	"github.com/Black-And-White-Club/arena-ranking/pkg/attr"
	"github.com/Black-And-White-Club/arena-ranking/pkg/handlerwrapper"
)

// HandlePointsAwardRequested applies a manual award requested by the chat bot. The player is
// addressed by id or, when the id is zero, by nick. The request id, or the message id when none
// is given, keys the award so a redelivered request is applied once.
func (h *LedgerHandlers) HandlePointsAwardRequested(ctx context.Context, payload *ledgerevents.PointsAwardRequestedPayloadV1) ([]handlerwrapper.Result, error) {
	playerID := payload.PlayerID
	if playerID == 0 {
		nick := strings.TrimSpace(payload.Nick)
		if nick == "" {
			return failed(ledgerevents.PointsAwardFailedV1, shared.Invalid("player", "player_id or nick required")), nil
		}
		found, err := h.players.FindByNick(ctx, nick)
		if err != nil {
			return nil, err
		}
		if found.IsFailure() {
			return failed(ledgerevents.PointsAwardFailedV1, found.FailureErr()), nil
		}
		playerID = found.Unwrap().ID
	}

	key := strings.TrimSpace(payload.RequestID)
	if key == "" {
		key = handlerwrapper.MessageID(ctx)
	}

	result, err := h.service.Award(ctx, ledgerservice.AwardRequest{
		PlayerID:   playerID,
		EventID:    payload.EventID,
		Points:     payload.Points,
		Reason:     payload.Reason,
		Actor:      payload.Actor,
		RequestKey: key,
	})
	if err != nil {
		return nil, err
	}
	if result.IsFailure() {
		h.logger.InfoContext(ctx, "Award request rejected",
			attr.PlayerID(playerID),
			attr.Error(result.FailureErr()),
			attr.ExtractCorrelationID(ctx),
		)
		return failed(ledgerevents.PointsAwardFailedV1, result.FailureErr()), nil
	}

	receipt := result.Unwrap()
	e := receipt.Entry
	return []handlerwrapper.Result{{
		Topic: ledgerevents.PointsAwardSucceededV1,
		Payload: ledgerevents.PointsAwardedPayloadV1{
			EntryID:  e.ID,
			PlayerID: e.PlayerID,
			EventID:  e.EventID,
			Points:   e.Points,
			Position: e.Position,
			Reason:   e.Reason,
			Source:   e.Source,
			AddedBy:  e.AddedBy,
			Totals:   receipt.Totals,
			At:       e.AddedAt,
		},
	}}, nil
}

// HandleBulkRequested runs a bulk award from explicit rows or from pasted results text.
func (h *LedgerHandlers) HandleBulkRequested(ctx context.Context, payload *ledgerevents.BulkRequestedPayloadV1) ([]handlerwrapper.Result, error) {
	rows := payload.Rows
	if len(rows) == 0 && payload.Text != "" {
		rows = ledgerdomain.ParseResultsText(payload.Text)
	}

	result, err := h.service.BulkAward(ctx, ledgerservice.BulkRequest{
		EventID: payload.EventID,
		Rows:    rows,
		Actor:   payload.Actor,
	})
	if err != nil {
		return nil, err
	}
	if result.IsFailure() {
		failure := result.FailureErr()
		if errors.Is(failure, shared.ErrNotFound) {
			h.logger.WarnContext(ctx, "Bulk request for unknown event",
				attr.EventID(payload.EventID),
				attr.ExtractCorrelationID(ctx),
			)
		}
		return failed(ledgerevents.BulkFailedV1, failure), nil
	}

	return []handlerwrapper.Result{{
		Topic:   ledgerevents.BulkSucceededV1,
		Payload: ledgerevents.BulkCompletedPayloadV1{Report: *result.Unwrap()},
	}}, nil
}
