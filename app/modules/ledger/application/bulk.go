package ledgerservice

import (
	"context"
	"errors"
	"strings"

	eventdb "github.com/Black-And-White-Club/arena-ranking/app/modules/event/infrastructure/repositories"
	ledgerdomain "github.com/Black-And-White-Club/arena-ranking/app/modules/ledger/domain"
	ledgerevents "github.com/Black-And-White-Club/arena-ranking/app/modules/ledger/domain/events"
	playerdomain "github.com/Black-And-White-Club/arena-ranking/app/modules/player/domain"
	playerdb "github.com/Black-And-White-Club/arena-ranking/app/modules/player/infrastructure/repositories"
	"github.com/Black-And-White-Club/arena-ranking/app/shared"
	"github.com/Black-And-White-Club/arena-ranking/pkg/attr"
	"github.com/Black-And-White-Club/arena-ranking/pkg/results"
	"github.com/google/uuid"
)

// BulkRequest awards points for an event from a list of finishing positions.
type BulkRequest struct {
	EventID int64
	Rows    []ledgerdomain.ResultRow
	Actor   string
}

type BulkResult = results.OperationResult[*ledgerdomain.BulkReport, error]

// Bulk row outcomes, used as metric labels.
const (
	outcomeAssigned = "assigned"
	outcomeNotFound = "not_found"
	outcomeAlready  = "already"
	outcomeFailed   = "failed"
)

// BulkAward processes each row on its own: the nick is matched case-insensitively, the position
// is priced from the points table and the award goes through AwardIfAbsent. Rows worth zero
// points are skipped. A failing row is reported and never aborts the batch.
func (s *LedgerService) BulkAward(ctx context.Context, req BulkRequest) (BulkResult, error) {
	result, err := withTelemetry[*ledgerdomain.BulkReport, error](s, ctx, "BulkAward", 0, func(ctx context.Context) (BulkResult, error) {
		actor := strings.TrimSpace(req.Actor)
		if len(req.Rows) == 0 {
			return results.FailureResult[*ledgerdomain.BulkReport, error](shared.Invalid("rows", "no results to process")), nil
		}
		if verr := validActor(actor); verr != nil {
			return results.FailureResult[*ledgerdomain.BulkReport, error](verr), nil
		}

		if _, err := s.events.GetByID(ctx, s.db, req.EventID); err != nil {
			if errors.Is(err, eventdb.ErrNotFound) {
				return results.FailureResult[*ledgerdomain.BulkReport, error](shared.NotFoundf("event %d", req.EventID)), nil
			}
			return BulkResult{}, err
		}

		batchID := uuid.New()
		report := ledgerdomain.NewBulkReport(req.EventID, batchID.String())
		for _, row := range req.Rows {
			s.processRow(ctx, report, row, req.EventID, batchID, actor)
		}
		return results.SuccessResult[*ledgerdomain.BulkReport, error](report), nil
	})

	if err == nil && result.IsSuccess() {
		report := result.Unwrap()
		s.metrics.RecordBulkRows(ctx, outcomeAssigned, len(report.Assigned))
		s.metrics.RecordBulkRows(ctx, outcomeNotFound, len(report.NotFound))
		s.metrics.RecordBulkRows(ctx, outcomeAlready, len(report.Already))
		s.metrics.RecordBulkRows(ctx, outcomeFailed, len(report.Failed))
		s.logger.InfoContext(ctx, "Bulk award finished",
			attr.EventID(report.EventID),
			attr.String("batch_id", report.BatchID),
			attr.Int("assigned", len(report.Assigned)),
			attr.Int("not_found", len(report.NotFound)),
			attr.Int("already", len(report.Already)),
			attr.Int("failed", len(report.Failed)),
			attr.Int("points", report.TotalAssigned()),
			attr.ExtractCorrelationID(ctx),
		)
		s.publish(ctx, ledgerevents.BulkCompletedV1, ledgerevents.BulkCompletedPayloadV1{Report: *report})
	}
	return result, err
}

func (s *LedgerService) processRow(
	ctx context.Context,
	report *ledgerdomain.BulkReport,
	row ledgerdomain.ResultRow,
	eventID int64,
	batchID uuid.UUID,
	actor string,
) {
	nick := strings.TrimSpace(row.Nick)
	if nick == "" {
		report.NotFound = append(report.NotFound, row.Nick)
		return
	}

	player, err := s.players.GetByNick(ctx, s.db, playerdomain.FoldNick(nick))
	if err != nil {
		if errors.Is(err, playerdb.ErrNotFound) {
			report.NotFound = append(report.NotFound, nick)
			return
		}
		report.Failed = append(report.Failed, ledgerdomain.FailedRow{Nick: nick, Reason: err.Error()})
		return
	}

	points := ledgerdomain.PointsForPosition(row.Position)
	if points == 0 {
		return
	}

	position := row.Position
	award, err := s.AwardIfAbsent(ctx, AwardRequest{
		PlayerID: player.ID,
		EventID:  &eventID,
		Points:   points,
		Position: &position,
		Reason:   ledgerdomain.PositionReason(row.Position),
		Actor:    actor,
		BatchID:  &batchID,
	})
	switch {
	case err != nil:
		report.Failed = append(report.Failed, ledgerdomain.FailedRow{Nick: nick, Reason: err.Error()})
	case award.IsSuccess():
		report.Assigned = append(report.Assigned, ledgerdomain.AssignedRow{Nick: nick, Points: points, Position: row.Position})
	case errors.Is(award.FailureErr(), shared.ErrAlreadyAwarded):
		report.Already = append(report.Already, nick)
	case errors.Is(award.FailureErr(), shared.ErrNotFound):
		report.NotFound = append(report.NotFound, nick)
	default:
		report.Failed = append(report.Failed, ledgerdomain.FailedRow{Nick: nick, Reason: award.FailureErr().Error()})
	}
}
