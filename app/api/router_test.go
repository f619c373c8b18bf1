package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	eventservice "github.com/Black-And-White-Club/arena-ranking/app/modules/event/application"
	eventdb "github.com/Black-And-White-Club/arena-ranking/app/modules/event/infrastructure/repositories"
	ledgerservice "github.com/Black-And-White-Club/arena-ranking/app/modules/ledger/application"
	ledgerdomain "github.com/Black-And-White-Club/arena-ranking/app/modules/ledger/domain"
	ledgerdb "github.com/Black-And-White-Club/arena-ranking/app/modules/ledger/infrastructure/repositories"
	playerservice "github.com/Black-And-White-Club/arena-ranking/app/modules/player/application"
	playerdb "github.com/Black-And-White-Club/arena-ranking/app/modules/player/infrastructure/repositories"
	seasonservice "github.com/Black-And-White-Club/arena-ranking/app/modules/season/application"
	"github.com/Black-And-White-Club/arena-ranking/app/shared"
	"github.com/Black-And-White-Club/arena-ranking/pkg/jwt"
	"github.com/Black-And-White-Club/arena-ranking/pkg/results"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	ledger  *FakeLedger
	players *FakePlayers
	events  *FakeEvents
	seasons *FakeSeasons
	tokens  jwt.Service
	router  http.Handler
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	h := &harness{
		ledger:  &FakeLedger{},
		players: &FakePlayers{},
		events:  &FakeEvents{},
		seasons: &FakeSeasons{},
		tokens:  jwt.NewService("test-secret", "arena-ranking", time.Hour, nil),
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h.router = NewRouter(Services{
		Ledger:  h.ledger,
		Players: h.players,
		Events:  h.events,
		Seasons: h.seasons,
		Tokens:  h.tokens,
	}, logger, opts)
	return h
}

func (h *harness) token(t *testing.T, role jwt.Role) string {
	t.Helper()
	tok, err := h.tokens.GenerateToken("ops", role, 0)
	require.NoError(t, err)
	return tok
}

func (h *harness) do(t *testing.T, method, path, token string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.router.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func TestAdminAuthentication(t *testing.T) {
	h := newHarness(t, Options{})

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "no header", want: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic abc", want: http.StatusUnauthorized},
		{name: "bad token", header: "Bearer nope", want: http.StatusUnauthorized},
		{name: "viewer role", header: "Bearer " + h.token(t, jwt.RoleViewer), want: http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin/dashboard", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			h.router.ServeHTTP(rr, req)
			assert.Equal(t, tt.want, rr.Code)
		})
	}
	assert.Empty(t, h.ledger.trace)
}

func TestGetRanking(t *testing.T) {
	h := newHarness(t, Options{})
	var gotOrder ledgerdb.Order
	var gotLimit int
	h.ledger.RankingFunc = func(_ context.Context, order ledgerdb.Order, limit int) ([]ledgerdb.Standing, error) {
		gotOrder, gotLimit = order, limit
		return []ledgerdb.Standing{{Rank: 1, PlayerID: 3, Nick: "Ace", SeasonPoints: 40}}, nil
	}

	rr := h.do(t, http.MethodGet, "/ranking?order=season&limit=10000", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, ledgerdb.BySeason, gotOrder)
	assert.Equal(t, maxRankingLimit, gotLimit)

	got := decode[rankingResponse](t, rr)
	require.Len(t, got.Standings, 1)
	assert.Equal(t, "Ace", got.Standings[0].Nick)
}

func TestAwardPoints(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		result   func(req ledgerservice.AwardRequest) (ledgerservice.AwardResult, error)
		want     int
		wantBody string
		verify   func(t *testing.T, req ledgerservice.AwardRequest)
	}{
		{
			name:   "position fills points and reason",
			body:   `{"player_id":4,"event_id":9,"position":1}`,
			result: func(req ledgerservice.AwardRequest) (ledgerservice.AwardResult, error) { return receipt(req), nil },
			want:   http.StatusCreated,
			verify: func(t *testing.T, req ledgerservice.AwardRequest) {
				assert.Equal(t, 25, req.Points)
				assert.Equal(t, "Position #1", req.Reason)
				assert.Equal(t, "ops", req.Actor)
				require.NotNil(t, req.EventID)
				assert.Equal(t, int64(9), *req.EventID)
			},
		},
		{
			name:   "explicit points win over position",
			body:   `{"player_id":4,"points":-3,"position":2,"reason":"penalty"}`,
			result: func(req ledgerservice.AwardRequest) (ledgerservice.AwardResult, error) { return receipt(req), nil },
			want:   http.StatusCreated,
			verify: func(t *testing.T, req ledgerservice.AwardRequest) {
				assert.Equal(t, -3, req.Points)
				assert.Equal(t, "penalty", req.Reason)
			},
		},
		{
			name: "validation failure",
			body: `{"player_id":4,"points":0}`,
			result: func(ledgerservice.AwardRequest) (ledgerservice.AwardResult, error) {
				return results.FailureResult[*ledgerservice.AwardReceipt, error](shared.Invalid("points", "must not be zero")), nil
			},
			want:     http.StatusBadRequest,
			wantBody: `"field":"points"`,
		},
		{
			name: "unknown player",
			body: `{"player_id":99,"points":5}`,
			result: func(ledgerservice.AwardRequest) (ledgerservice.AwardResult, error) {
				return results.FailureResult[*ledgerservice.AwardReceipt, error](shared.NotFoundf("player 99")), nil
			},
			want: http.StatusNotFound,
		},
		{
			name: "already awarded",
			body: `{"player_id":4,"event_id":9,"points":5}`,
			result: func(ledgerservice.AwardRequest) (ledgerservice.AwardResult, error) {
				return results.FailureResult[*ledgerservice.AwardReceipt, error](shared.ErrAlreadyAwarded), nil
			},
			want: http.StatusConflict,
		},
		{
			name: "infrastructure error is hidden",
			body: `{"player_id":4,"points":5}`,
			result: func(ledgerservice.AwardRequest) (ledgerservice.AwardResult, error) {
				return ledgerservice.AwardResult{}, errors.New("connection refused")
			},
			want:     http.StatusInternalServerError,
			wantBody: `"error":"internal error"`,
		},
		{
			name: "unknown field",
			body: `{"player":4}`,
			want: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, Options{})
			var got ledgerservice.AwardRequest
			h.ledger.AwardFunc = func(_ context.Context, req ledgerservice.AwardRequest) (ledgerservice.AwardResult, error) {
				got = req
				return tt.result(req)
			}

			rr := h.do(t, http.MethodPost, "/admin/points", h.token(t, jwt.RoleAdmin), tt.body)
			assert.Equal(t, tt.want, rr.Code, rr.Body.String())
			if tt.wantBody != "" {
				assert.Contains(t, rr.Body.String(), tt.wantBody)
			}
			if tt.result == nil {
				assert.Empty(t, h.ledger.trace)
			}
			if tt.verify != nil {
				tt.verify(t, got)
			}
		})
	}
}

func TestRemovePoints(t *testing.T) {
	h := newHarness(t, Options{})
	h.ledger.RemoveFunc = func(_ context.Context, entryID int64, actor string) (ledgerservice.RemovalResult, error) {
		assert.Equal(t, "ops", actor)
		if entryID != 12 {
			return results.FailureResult[*ledgerservice.Removal, error](shared.NotFoundf("entry %d", entryID)), nil
		}
		return results.SuccessResult[*ledgerservice.Removal, error](&ledgerservice.Removal{
			Entry:  &ledgerdb.Entry{ID: 12, Points: 5},
			Totals: ledgerdomain.Totals{},
		}), nil
	}
	admin := h.token(t, jwt.RoleAdmin)

	assert.Equal(t, http.StatusOK, h.do(t, http.MethodDelete, "/admin/points/12", admin, "").Code)
	assert.Equal(t, http.StatusNotFound, h.do(t, http.MethodDelete, "/admin/points/13", admin, "").Code)
	assert.Equal(t, http.StatusBadRequest, h.do(t, http.MethodDelete, "/admin/points/abc", admin, "").Code)
	assert.Equal(t, []string{"Remove", "Remove"}, h.ledger.trace)
}

func TestBulkAwardParsesText(t *testing.T) {
	h := newHarness(t, Options{})
	var got ledgerservice.BulkRequest
	h.ledger.BulkAwardFunc = func(_ context.Context, req ledgerservice.BulkRequest) (ledgerservice.BulkResult, error) {
		got = req
		return results.SuccessResult[*ledgerdomain.BulkReport, error](&ledgerdomain.BulkReport{
			EventID:  req.EventID,
			Assigned: []ledgerdomain.AssignedRow{{Nick: "Ace", Points: 25, Position: 1}},
			NotFound: []string{"Ghost"},
			Already:  []string{},
		}), nil
	}

	rr := h.do(t, http.MethodPost, "/admin/bulk", h.token(t, jwt.RoleAdmin),
		`{"event_id":7,"text":"1. Ace\n2. Ghost\nnot a result"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	assert.Equal(t, int64(7), got.EventID)
	assert.Equal(t, "ops", got.Actor)
	assert.Equal(t, []ledgerdomain.ResultRow{{Position: 1, Nick: "Ace"}, {Position: 2, Nick: "Ghost"}}, got.Rows)

	report := decode[ledgerdomain.BulkReport](t, rr)
	assert.Equal(t, []string{"Ghost"}, report.NotFound)
}

func TestParseResults(t *testing.T) {
	h := newHarness(t, Options{})
	rr := h.do(t, http.MethodPost, "/admin/results/parse", h.token(t, jwt.RoleAdmin), `{"text":"#3 Bo\n200. Nobody"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	got := decode[rowsResponse](t, rr)
	assert.Equal(t, []ledgerdomain.ResultRow{{Position: 3, Nick: "Bo"}}, got.Rows)
}

func TestRecognizeResultsUnsupported(t *testing.T) {
	h := newHarness(t, Options{})
	h.ledger.RecognizeResultsFunc = func(context.Context, []byte) (results.OperationResult[*ledgerservice.RecognizedResults, error], error) {
		return results.FailureResult[*ledgerservice.RecognizedResults, error](shared.ErrOCRUnsupported), nil
	}
	rr := h.do(t, http.MethodPost, "/admin/results/ocr", h.token(t, jwt.RoleAdmin), "\x89PNG")
	assert.Equal(t, http.StatusNotImplemented, rr.Code)
}

func TestExportCSV(t *testing.T) {
	h := newHarness(t, Options{})
	h.ledger.ExportCSVFunc = func(_ context.Context, w io.Writer) error {
		_, err := io.WriteString(w, "#,Handle\n1,ace\n")
		return err
	}
	rr := h.do(t, http.MethodGet, "/admin/export.csv", h.token(t, jwt.RoleAdmin), "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, `attachment; filename="ranking_20261017_1800.csv"`, rr.Header().Get("Content-Disposition"))
	assert.Equal(t, "#,Handle\n1,ace\n", rr.Body.String())
}

func TestExportFailureReturnsCleanError(t *testing.T) {
	h := newHarness(t, Options{})
	h.ledger.ExportCSVFunc = func(_ context.Context, w io.Writer) error {
		_, _ = io.WriteString(w, "#,Handle\n")
		return errors.New("query canceled")
	}
	rr := h.do(t, http.MethodGet, "/admin/export.csv", h.token(t, jwt.RoleAdmin), "")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Empty(t, rr.Header().Get("Content-Disposition"))
}

func TestGetPlayerDetail(t *testing.T) {
	email := "ace@example.com"
	h := newHarness(t, Options{})
	h.players.GetPlayerFunc = func(_ context.Context, id int64) (playerservice.PlayerResult, error) {
		if id != 3 {
			return results.FailureResult[*playerdb.Player, error](shared.NotFoundf("player")), nil
		}
		return results.SuccessResult[*playerdb.Player, error](&playerdb.Player{ID: 3, Nick: "Ace", Email: &email, LifetimePoints: 40}), nil
	}
	h.ledger.RankOfFunc = func(context.Context, int64) (results.OperationResult[int, error], error) {
		return results.SuccessResult[int, error](2), nil
	}
	h.ledger.HistoryFunc = func(_ context.Context, _ int64, limit int) ([]ledgerdb.HistoryEntry, error) {
		assert.Equal(t, playerHistoryLimit, limit)
		return nil, nil
	}

	public := h.do(t, http.MethodGet, "/players/3", "", "")
	require.Equal(t, http.StatusOK, public.Code)
	got := decode[playerDetail](t, public)
	assert.Equal(t, 2, got.Rank)
	assert.Nil(t, got.Player.Email)
	assert.NotNil(t, got.History)

	admin := h.do(t, http.MethodGet, "/admin/players/3", h.token(t, jwt.RoleAdmin), "")
	require.Equal(t, http.StatusOK, admin.Code)
	got = decode[playerDetail](t, admin)
	require.NotNil(t, got.Player.Email)
	assert.Equal(t, email, *got.Player.Email)

	assert.Equal(t, http.StatusNotFound, h.do(t, http.MethodGet, "/players/4", "", "").Code)
}

func TestGetPlayerChart(t *testing.T) {
	h := newHarness(t, Options{})
	h.ledger.PointsChartFunc = func(_ context.Context, id int64) ([]byte, error) {
		if id == 1 {
			return []byte("\x89PNG"), nil
		}
		return nil, shared.NotFoundf("player %d", id)
	}
	admin := h.token(t, jwt.RoleAdmin)

	rr := h.do(t, http.MethodGet, "/admin/players/1/chart.png", admin, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "image/png", rr.Header().Get("Content-Type"))

	assert.Equal(t, http.StatusNotFound, h.do(t, http.MethodGet, "/admin/players/2/chart.png", admin, "").Code)
}

func TestSeasonEndpoints(t *testing.T) {
	h := newHarness(t, Options{})
	admin := h.token(t, jwt.RoleAdmin)

	t.Run("end without body", func(t *testing.T) {
		h.seasons.EndAndRotateFunc = func(_ context.Context, currentID int64, nextID *int64) (seasonservice.RotationResult, error) {
			assert.Equal(t, int64(2), currentID)
			assert.Nil(t, nextID)
			return results.SuccessResult[*seasonservice.Rotation, error](&seasonservice.Rotation{EndedSeasonID: 2, PlayersReset: 5}), nil
		}
		rr := h.do(t, http.MethodPost, "/admin/seasons/2/end", admin, "")
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		assert.Equal(t, 5, decode[seasonservice.Rotation](t, rr).PlayersReset)
	})

	t.Run("end with successor", func(t *testing.T) {
		h.seasons.EndAndRotateFunc = func(_ context.Context, _ int64, nextID *int64) (seasonservice.RotationResult, error) {
			require.NotNil(t, nextID)
			assert.Equal(t, int64(3), *nextID)
			return results.SuccessResult[*seasonservice.Rotation, error](&seasonservice.Rotation{EndedSeasonID: 2, NextSeasonID: nextID}), nil
		}
		rr := h.do(t, http.MethodPost, "/admin/seasons/2/end", admin, `{"next_season_id":3}`)
		assert.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	})

	t.Run("reset needs confirmation", func(t *testing.T) {
		h.seasons.HardResetFunc = func(_ context.Context, confirmation string) (seasonservice.HardResetResult, error) {
			if confirmation != "RESET" {
				return results.FailureResult[*seasonservice.HardResetReport, error](shared.ErrInvalidConfirmation), nil
			}
			return results.SuccessResult[*seasonservice.HardResetReport, error](&seasonservice.HardResetReport{PlayersReset: 3, EntriesDeleted: 9}), nil
		}
		assert.Equal(t, http.StatusConflict, h.do(t, http.MethodPost, "/admin/seasons/reset", admin, `{"confirmation":"reset"}`).Code)
		rr := h.do(t, http.MethodPost, "/admin/seasons/reset", admin, `{"confirmation":"RESET"}`)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, 9, decode[seasonservice.HardResetReport](t, rr).EntriesDeleted)
	})

	t.Run("schedule end", func(t *testing.T) {
		at := time.Date(2026, 12, 31, 23, 0, 0, 0, time.UTC)
		h.seasons.ScheduleEndFunc = func(_ context.Context, currentID int64, _ *int64, gotAt time.Time) (seasonservice.ScheduleResult, error) {
			assert.True(t, at.Equal(gotAt))
			return results.SuccessResult[*seasonservice.ScheduledEnd, error](&seasonservice.ScheduledEnd{JobID: 77, At: gotAt}), nil
		}
		rr := h.do(t, http.MethodPost, "/admin/seasons/2/schedule-end", admin, `{"at":"2026-12-31T23:00:00Z"}`)
		require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
		assert.Equal(t, int64(77), decode[seasonservice.ScheduledEnd](t, rr).JobID)
	})

	t.Run("schedule end already queued", func(t *testing.T) {
		queued := time.Date(2026, 12, 1, 9, 0, 0, 0, time.UTC)
		h.seasons.ScheduleEndFunc = func(context.Context, int64, *int64, time.Time) (seasonservice.ScheduleResult, error) {
			return results.SuccessResult[*seasonservice.ScheduledEnd, error](&seasonservice.ScheduledEnd{JobID: 77, At: queued, Duplicate: true}), nil
		}
		rr := h.do(t, http.MethodPost, "/admin/seasons/2/schedule-end", admin, `{"at":"2026-12-31T23:00:00Z"}`)
		require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
		got := decode[seasonservice.ScheduledEnd](t, rr)
		assert.True(t, got.Duplicate)
		assert.True(t, queued.Equal(got.At), "response must carry the queued time, got %s", got.At)
	})

	t.Run("scheduling disabled", func(t *testing.T) {
		h.seasons.ScheduleEndFunc = func(context.Context, int64, *int64, time.Time) (seasonservice.ScheduleResult, error) {
			return results.FailureResult[*seasonservice.ScheduledEnd, error](seasonservice.ErrSchedulingDisabled), nil
		}
		rr := h.do(t, http.MethodPost, "/admin/seasons/2/schedule-end", admin, `{"at":"2026-12-31T23:00:00Z"}`)
		assert.Equal(t, http.StatusNotImplemented, rr.Code)
	})
}

func TestRateLimit(t *testing.T) {
	h := newHarness(t, Options{RateLimit: 0.001, RateBurst: 1})
	h.ledger.RankingFunc = func(context.Context, ledgerdb.Order, int) ([]ledgerdb.Standing, error) { return nil, nil }

	first := h.do(t, http.MethodGet, "/ranking", "", "")
	second := h.do(t, http.MethodGet, "/ranking", "", "")
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)

	// Another client has its own bucket.
	req := httptest.NewRequest(http.MethodGet, "/ranking", nil)
	req.RemoteAddr = "203.0.113.9:4242"
	rr := httptest.NewRecorder()
	h.router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)

	// Health checks bypass the limiter.
	assert.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/healthz", "", "").Code)
}

func TestIPRateLimiterPrunesIdleClients(t *testing.T) {
	l := NewIPRateLimiter(1, 1)
	now := time.Date(2026, 10, 17, 18, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	for i := 0; i <= cleanupThreshold; i++ {
		l.Limiter("10.0.0." + string(rune('a'+i%26)) + strings.Repeat("x", i/26))
	}
	require.Equal(t, cleanupThreshold+1, l.Len())

	now = now.Add(maxIdleAge + time.Minute)
	l.Limiter("192.0.2.1")
	assert.Equal(t, 1, l.Len())
}

func TestCreateEventUsesActor(t *testing.T) {
	h := newHarness(t, Options{})
	var gotActor, gotDate string
	h.events.CreateEventFunc = func(_ context.Context, name, date, _, actor string) (eventservice.EventResult, error) {
		gotActor, gotDate = actor, date
		return results.FailureResult[*eventdb.Event, error](shared.Invalid("name", "is required")), nil
	}
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(eventBody{Date: "next saturday"}))
	rr := h.do(t, http.MethodPost, "/admin/events", h.token(t, jwt.RoleAdmin), buf.String())
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "ops", gotActor)
	assert.Equal(t, "next saturday", gotDate)
}
