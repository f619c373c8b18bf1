package playerservice

import (
	"context"
	"errors"
	"strconv"
	"strings"

	playerdomain "github.com/Black-And-White-Club/arena-ranking/app/modules/player/domain"
	playerdb "github.com/Black-And-White-Club/arena-ranking/app/modules/player/infrastructure/repositories"
	"github.com/Black-And-White-Club/arena-ranking/app/shared"
	"github.com/Black-And-White-Club/arena-ranking/pkg/results"
	"github.com/uptrace/bun"
)

// MaxSearchResults caps Search.
const MaxSearchResults = 10

// Register creates a player after checking every unique field.
func (s *PlayerService) Register(ctx context.Context, handle, chatID, nick, email string) (PlayerResult, error) {
	reg := playerdomain.Registration{Handle: handle, ChatID: chatID, Nick: nick, Email: email}.Normalize()

	return withTelemetry[*playerdb.Player, error](s, ctx, "Register", reg.Handle, func(ctx context.Context) (PlayerResult, error) {
		if field, reason := reg.Validate(); field != "" {
			return results.FailureResult[*playerdb.Player, error](shared.Invalid(field, reason)), nil
		}

		return runInTx(s, ctx, func(ctx context.Context, db bun.IDB) (PlayerResult, error) {
			folded := playerdomain.FoldNick(reg.Nick)
			conflicts, err := s.repo.FindConflicts(ctx, db, playerdb.ConflictQuery{
				Handle:     reg.Handle,
				ChatID:     reg.ChatID,
				NickFolded: folded,
				Email:      reg.Email,
			})
			if err != nil {
				return PlayerResult{}, err
			}
			if len(conflicts) > 0 {
				return results.FailureResult[*playerdb.Player, error](
					shared.Invalid(conflicts[0], "is already registered")), nil
			}

			player := &playerdb.Player{
				Handle:     reg.Handle,
				ChatID:     reg.ChatID,
				Nick:       reg.Nick,
				NickFolded: folded,
				Email:      optional(reg.Email),
			}
			if err := s.repo.Create(ctx, db, player); err != nil {
				if errors.Is(err, playerdb.ErrConflict) {
					return results.FailureResult[*playerdb.Player, error](
						shared.Invalid("player", "is already registered")), nil
				}
				return PlayerResult{}, err
			}
			return results.SuccessResult[*playerdb.Player, error](player), nil
		})
	})
}

// GetPlayer returns a player by id.
func (s *PlayerService) GetPlayer(ctx context.Context, id int64) (PlayerResult, error) {
	return withTelemetry[*playerdb.Player, error](s, ctx, "GetPlayer", strconv.FormatInt(id, 10), func(ctx context.Context) (PlayerResult, error) {
		return s.lookup(s.repo.GetByID(ctx, nil, id))
	})
}

// FindByNick resolves an in-game nick case-insensitively.
func (s *PlayerService) FindByNick(ctx context.Context, nick string) (PlayerResult, error) {
	return withTelemetry[*playerdb.Player, error](s, ctx, "FindByNick", nick, func(ctx context.Context) (PlayerResult, error) {
		if strings.TrimSpace(nick) == "" {
			return results.FailureResult[*playerdb.Player, error](shared.Invalid("nick", "is required")), nil
		}
		return s.lookup(s.repo.GetByNick(ctx, nil, playerdomain.FoldNick(nick)))
	})
}

func (s *PlayerService) lookup(player *playerdb.Player, err error) (PlayerResult, error) {
	if err != nil {
		if errors.Is(err, playerdb.ErrNotFound) {
			return results.FailureResult[*playerdb.Player, error](shared.NotFoundf("player")), nil
		}
		return PlayerResult{}, err
	}
	return results.SuccessResult[*playerdb.Player, error](player), nil
}

// Search finds up to limit players by handle, nick or chat id. Blank queries return nothing.
func (s *PlayerService) Search(ctx context.Context, query string, limit int) ([]playerdb.Player, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []playerdb.Player{}, nil
	}
	if limit <= 0 || limit > MaxSearchResults {
		limit = MaxSearchResults
	}
	return s.repo.Search(ctx, nil, query, limit)
}

// UpdateProfile edits nick, email and bio.
func (s *PlayerService) UpdateProfile(ctx context.Context, id int64, nick, email, bio string) (PlayerResult, error) {
	upd := playerdomain.ProfileUpdate{Nick: strings.TrimSpace(nick), Email: strings.TrimSpace(email), Bio: strings.TrimSpace(bio)}

	return withTelemetry[*playerdb.Player, error](s, ctx, "UpdateProfile", strconv.FormatInt(id, 10), func(ctx context.Context) (PlayerResult, error) {
		if field, reason := upd.Validate(); field != "" {
			return results.FailureResult[*playerdb.Player, error](shared.Invalid(field, reason)), nil
		}

		return runInTx(s, ctx, func(ctx context.Context, db bun.IDB) (PlayerResult, error) {
			if _, err := s.repo.GetByID(ctx, db, id); err != nil {
				return s.lookup(nil, err)
			}
			folded := playerdomain.FoldNick(upd.Nick)
			conflicts, err := s.repo.FindConflicts(ctx, db, playerdb.ConflictQuery{
				NickFolded: folded,
				Email:      upd.Email,
				ExcludeID:  id,
			})
			if err != nil {
				return PlayerResult{}, err
			}
			if len(conflicts) > 0 {
				return results.FailureResult[*playerdb.Player, error](
					shared.Invalid(conflicts[0], "is already in use")), nil
			}
			if err := s.repo.UpdateProfile(ctx, db, id, upd.Nick, folded, optional(upd.Email), upd.Bio); err != nil {
				if errors.Is(err, playerdb.ErrConflict) {
					return results.FailureResult[*playerdb.Player, error](shared.Invalid("player", "is already in use")), nil
				}
				return s.lookup(nil, err)
			}
			return s.lookup(s.repo.GetByID(ctx, db, id))
		})
	})
}

// DeletePlayer removes a player and, through the schema, their ledger entries. It returns the
// player as it was before deletion.
func (s *PlayerService) DeletePlayer(ctx context.Context, id int64) (PlayerResult, error) {
	return withTelemetry[*playerdb.Player, error](s, ctx, "DeletePlayer", strconv.FormatInt(id, 10), func(ctx context.Context) (PlayerResult, error) {
		return runInTx(s, ctx, func(ctx context.Context, db bun.IDB) (PlayerResult, error) {
			player, err := s.repo.GetByID(ctx, db, id)
			if err != nil {
				return s.lookup(nil, err)
			}
			if err := s.repo.Delete(ctx, db, id); err != nil {
				return s.lookup(nil, err)
			}
			return results.SuccessResult[*playerdb.Player, error](player), nil
		})
	})
}

// CountPlayers returns the number of registered players.
func (s *PlayerService) CountPlayers(ctx context.Context) (int, error) {
	return s.repo.Count(ctx, nil)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

var _ Service = (*PlayerService)(nil)
