package ledgerservice

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	ledgerdomain "github.com/Black-And-White-Club/arena-ranking/app/modules/ledger/domain"
	ledgerevents "github.com/Black-And-White-Club/arena-ranking/app/modules/ledger/domain/events"
	ledgerdb "github.com/Black-And-White-Club/arena-ranking/app/modules/ledger/infrastructure/repositories"
	"github.com/Black-And-White-Club/arena-ranking/app/shared"
	"github.com/Black-And-White-Club/arena-ranking/pkg/attr"
	"github.com/Black-And-White-Club/arena-ranking/pkg/results"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const (
	// MaxReasonLength bounds the free-text reason stored on an entry.
	MaxReasonLength = 255
	// MaxActorLength bounds the actor recorded as added_by, in characters.
	MaxActorLength = 64
	// MaxRequestKeyLength bounds AwardRequest.RequestKey.
	MaxRequestKeyLength = 64
)

func validActor(actor string) error {
	switch {
	case actor == "":
		return shared.Invalid("actor", "required")
	case utf8.RuneCountInString(actor) > MaxActorLength:
		return shared.Invalid("actor", "too long")
	}
	return nil
}

// AwardRequest describes one points adjustment.
type AwardRequest struct {
	PlayerID int64
	EventID  *int64
	Points   int
	Position *int
	Reason   string
	Actor    string

	// BatchID groups the entries of one bulk run.
	BatchID *uuid.UUID

	// RequestKey makes a manual award idempotent: a second award with the same key returns the
	// first entry and changes nothing.
	RequestKey string
}

// AwardReceipt is the committed entry and the player's totals after it was applied. Replayed is
// set when the request key matched an earlier entry and nothing was applied.
type AwardReceipt struct {
	Entry    *ledgerdb.Entry     `json:"entry"`
	Totals   ledgerdomain.Totals `json:"totals"`
	Replayed bool                `json:"replayed,omitempty"`
}

// Removal is the deleted entry and the player's totals after it was reverted.
type Removal struct {
	Entry  *ledgerdb.Entry     `json:"entry"`
	Totals ledgerdomain.Totals `json:"totals"`
}

type (
	AwardResult   = results.OperationResult[*AwardReceipt, error]
	RemovalResult = results.OperationResult[*Removal, error]
)

func (r *AwardRequest) validate(requireEvent bool) error {
	r.Reason = strings.TrimSpace(r.Reason)
	r.Actor = strings.TrimSpace(r.Actor)
	switch {
	case r.PlayerID <= 0:
		return shared.Invalid("player_id", "required")
	case r.Points == 0:
		return shared.Invalid("points", "must not be zero")
	}
	if err := validActor(r.Actor); err != nil {
		return err
	}
	switch {
	case r.Position != nil && *r.Position <= 0:
		return shared.Invalid("position", "must be positive")
	case utf8.RuneCountInString(r.Reason) > MaxReasonLength:
		return shared.Invalid("reason", "too long")
	case utf8.RuneCountInString(r.RequestKey) > MaxRequestKeyLength:
		return shared.Invalid("request_key", "too long")
	}
	if requireEvent {
		if r.EventID == nil {
			return shared.Invalid("event_id", "required")
		}
		if r.Points < 0 {
			return shared.Invalid("points", "must be positive")
		}
	}
	return nil
}

func (r *AwardRequest) entry(source ledgerdomain.Source) *ledgerdb.Entry {
	var key *string
	if r.RequestKey != "" {
		k := r.RequestKey
		key = &k
	}
	return &ledgerdb.Entry{
		RequestKey: key,
		PlayerID:   r.PlayerID,
		EventID:    r.EventID,
		Points:     r.Points,
		Position:   r.Position,
		Reason:     r.Reason,
		Source:     source,
		BatchID:    r.BatchID,
		AddedBy:    r.Actor,
	}
}

// insertFailure maps repository errors raised by InsertEntry to domain failures. It returns nil
// for errors that are not domain failures.
func insertFailure(err error, req AwardRequest) error {
	switch {
	case errors.Is(err, ledgerdb.ErrPlayerNotFound):
		return shared.NotFoundf("player %d", req.PlayerID)
	case errors.Is(err, ledgerdb.ErrEventNotFound):
		return shared.NotFoundf("event %d", derefID(req.EventID))
	case errors.Is(err, ledgerdb.ErrDuplicateAward), errors.Is(err, ledgerdb.ErrDuplicateRequest):
		return shared.ErrAlreadyAwarded
	}
	return nil
}

func derefID(id *int64) int64 {
	if id == nil {
		return 0
	}
	return *id
}

// Award inserts a manual entry and applies it to both accumulators in one transaction.
// Negative adjustments are allowed; accumulators never drop below zero. Requests carrying a
// RequestKey are applied at most once.
func (s *LedgerService) Award(ctx context.Context, req AwardRequest) (AwardResult, error) {
	result, err := withTelemetry[*AwardReceipt, error](s, ctx, "Award", req.PlayerID, func(ctx context.Context) (AwardResult, error) {
		if verr := req.validate(false); verr != nil {
			return results.FailureResult[*AwardReceipt, error](verr), nil
		}
		return runInTx[*AwardReceipt, error](s, ctx, func(ctx context.Context, db bun.IDB) (AwardResult, error) {
			return s.applyAward(ctx, db, req, ledgerdomain.SourceManual)
		})
	})
	if err == nil && result.IsSuccess() {
		receipt := result.Unwrap()
		if receipt.Replayed {
			s.logger.InfoContext(ctx, "Award request already applied",
				attr.String("request_key", req.RequestKey),
				attr.Int64("entry_id", receipt.Entry.ID),
				attr.ExtractCorrelationID(ctx),
			)
			return result, nil
		}
		s.afterAward(ctx, receipt)
	}
	return result, err
}

// AwardIfAbsent awards points for an event unless the player already has an entry for it.
// Concurrent calls for the same (player, event) are serialized, so exactly one succeeds.
func (s *LedgerService) AwardIfAbsent(ctx context.Context, req AwardRequest) (AwardResult, error) {
	result, err := withTelemetry[*AwardReceipt, error](s, ctx, "AwardIfAbsent", req.PlayerID, func(ctx context.Context) (AwardResult, error) {
		if verr := req.validate(true); verr != nil {
			return results.FailureResult[*AwardReceipt, error](verr), nil
		}

		unlock := s.awardLocks.Lock(awardKey{playerID: req.PlayerID, eventID: *req.EventID})
		defer unlock()

		return runInTx[*AwardReceipt, error](s, ctx, func(ctx context.Context, db bun.IDB) (AwardResult, error) {
			if _, err := s.repo.LockPlayer(ctx, db, req.PlayerID); err != nil {
				if errors.Is(err, ledgerdb.ErrPlayerNotFound) {
					return results.FailureResult[*AwardReceipt, error](shared.NotFoundf("player %d", req.PlayerID)), nil
				}
				return AwardResult{}, err
			}

			exists, err := s.repo.HasEventEntry(ctx, db, req.PlayerID, *req.EventID)
			if err != nil {
				return AwardResult{}, err
			}
			if exists {
				return results.FailureResult[*AwardReceipt, error](shared.ErrAlreadyAwarded), nil
			}

			return s.insertAndApply(ctx, db, req, ledgerdomain.SourceBulk)
		})
	})
	if err == nil && result.IsSuccess() {
		s.afterAward(ctx, result.Unwrap())
	}
	return result, err
}

// applyAward locks the player row, inserts the entry and moves the accumulators. A request key
// that already has an entry returns that entry with the player's current totals.
func (s *LedgerService) applyAward(ctx context.Context, db bun.IDB, req AwardRequest, source ledgerdomain.Source) (AwardResult, error) {
	player, err := s.repo.LockPlayer(ctx, db, req.PlayerID)
	if err != nil {
		if errors.Is(err, ledgerdb.ErrPlayerNotFound) {
			return results.FailureResult[*AwardReceipt, error](shared.NotFoundf("player %d", req.PlayerID)), nil
		}
		return AwardResult{}, err
	}

	if req.RequestKey != "" {
		existing, err := s.repo.GetEntryByRequestKey(ctx, db, req.RequestKey)
		switch {
		case err == nil:
			totals := player.Totals()
			if existing.PlayerID != player.ID {
				current, err := s.repo.GetTotals(ctx, db, existing.PlayerID)
				if err != nil {
					return AwardResult{}, err
				}
				totals = current.Totals()
			}
			return results.SuccessResult[*AwardReceipt, error](&AwardReceipt{Entry: existing, Totals: totals, Replayed: true}), nil
		case !errors.Is(err, ledgerdb.ErrEntryNotFound):
			return AwardResult{}, err
		}
	}

	return s.insertAndApply(ctx, db, req, source)
}

// insertAndApply inserts the entry and moves the accumulators. The player row must already be locked.
func (s *LedgerService) insertAndApply(ctx context.Context, db bun.IDB, req AwardRequest, source ledgerdomain.Source) (AwardResult, error) {
	entry := req.entry(source)
	if err := s.repo.InsertEntry(ctx, db, entry); err != nil {
		if failure := insertFailure(err, req); failure != nil {
			return results.FailureResult[*AwardReceipt, error](failure), nil
		}
		return AwardResult{}, err
	}

	totals, err := s.repo.ApplyDelta(ctx, db, req.PlayerID, req.Points)
	if err != nil {
		return AwardResult{}, err
	}

	return results.SuccessResult[*AwardReceipt, error](&AwardReceipt{Entry: entry, Totals: totals}), nil
}

func (s *LedgerService) afterAward(ctx context.Context, receipt *AwardReceipt) {
	e := receipt.Entry
	s.metrics.RecordPointsAwarded(ctx, string(e.Source), e.Points)
	at := e.AddedAt
	if at.IsZero() {
		at = s.clock.Now()
	}
	s.publish(ctx, ledgerevents.PointsAwardedV1, ledgerevents.PointsAwardedPayloadV1{
		EntryID:  e.ID,
		PlayerID: e.PlayerID,
		EventID:  e.EventID,
		Points:   e.Points,
		Position: e.Position,
		Reason:   e.Reason,
		Source:   e.Source,
		AddedBy:  e.AddedBy,
		Totals:   receipt.Totals,
		At:       at,
	})
}

// Remove deletes an entry and subtracts its points from both accumulators, flooring at zero.
func (s *LedgerService) Remove(ctx context.Context, entryID int64, actor string) (RemovalResult, error) {
	result, err := withTelemetry[*Removal, error](s, ctx, "Remove", 0, func(ctx context.Context) (RemovalResult, error) {
		return runInTx[*Removal, error](s, ctx, func(ctx context.Context, db bun.IDB) (RemovalResult, error) {
			entry, err := s.repo.GetEntry(ctx, db, entryID)
			if err != nil {
				if errors.Is(err, ledgerdb.ErrEntryNotFound) {
					return results.FailureResult[*Removal, error](shared.NotFoundf("entry %d", entryID)), nil
				}
				return RemovalResult{}, err
			}

			if _, err := s.repo.LockPlayer(ctx, db, entry.PlayerID); err != nil {
				return RemovalResult{}, err
			}

			deleted, err := s.repo.DeleteEntry(ctx, db, entryID)
			if err != nil {
				if errors.Is(err, ledgerdb.ErrEntryNotFound) {
					return results.FailureResult[*Removal, error](shared.NotFoundf("entry %d", entryID)), nil
				}
				return RemovalResult{}, err
			}

			totals, err := s.repo.ApplyDelta(ctx, db, deleted.PlayerID, -deleted.Points)
			if err != nil {
				return RemovalResult{}, err
			}
			return results.SuccessResult[*Removal, error](&Removal{Entry: deleted, Totals: totals}), nil
		})
	})
	if err == nil && result.IsSuccess() {
		removal := result.Unwrap()
		s.logger.InfoContext(ctx, "Ledger entry removed",
			attr.Int64("entry_id", entryID),
			attr.PlayerID(removal.Entry.PlayerID),
			attr.String("actor", actor),
			attr.ExtractCorrelationID(ctx),
		)
		s.publish(ctx, ledgerevents.PointsRemovedV1, ledgerevents.PointsRemovedPayloadV1{
			EntryID:  removal.Entry.ID,
			PlayerID: removal.Entry.PlayerID,
			Points:   removal.Entry.Points,
			Totals:   removal.Totals,
		})
	}
	return result, err
}

// TotalFor returns a player's lifetime and season points.
func (s *LedgerService) TotalFor(ctx context.Context, playerID int64) (results.OperationResult[ledgerdomain.Totals, error], error) {
	return withTelemetry[ledgerdomain.Totals, error](s, ctx, "TotalFor", playerID, func(ctx context.Context) (results.OperationResult[ledgerdomain.Totals, error], error) {
		p, err := s.repo.GetTotals(ctx, s.db, playerID)
		if err != nil {
			if errors.Is(err, ledgerdb.ErrPlayerNotFound) {
				return results.FailureResult[ledgerdomain.Totals, error](shared.NotFoundf("player %d", playerID)), nil
			}
			return results.OperationResult[ledgerdomain.Totals, error]{}, err
		}
		return results.SuccessResult[ledgerdomain.Totals, error](p.Totals()), nil
	})
}

// RankOf returns 1 + the number of players with strictly more lifetime points. Tied players share a rank.
func (s *LedgerService) RankOf(ctx context.Context, playerID int64) (results.OperationResult[int, error], error) {
	return withTelemetry[int, error](s, ctx, "RankOf", playerID, func(ctx context.Context) (results.OperationResult[int, error], error) {
		p, err := s.repo.GetTotals(ctx, s.db, playerID)
		if err != nil {
			if errors.Is(err, ledgerdb.ErrPlayerNotFound) {
				return results.FailureResult[int, error](shared.NotFoundf("player %d", playerID)), nil
			}
			return results.OperationResult[int, error]{}, err
		}
		above, err := s.repo.CountAbove(ctx, s.db, p.LifetimePoints)
		if err != nil {
			return results.OperationResult[int, error]{}, err
		}
		return results.SuccessResult[int, error](above + 1), nil
	})
}
