package api

import (
	"context"
	"io"
	"time"

	eventservice "github.com/Black-And-White-Club/arena-ranking/app/modules/event/application"
	eventdb "github.com/Black-And-White-Club/arena-ranking/app/modules/event/infrastructure/repositories"
	ledgerservice "github.com/Black-And-White-Club/arena-ranking/app/modules/ledger/application"
	ledgerdomain "github.com/Black-And-White-Club/arena-ranking/app/modules/ledger/domain"
	ledgerdb "github.com/Black-And-White-Club/arena-ranking/app/modules/ledger/infrastructure/repositories"
	playerservice "github.com/Black-And-White-Club/arena-ranking/app/modules/player/application"
	seasonservice "github.com/Black-And-White-Club/arena-ranking/app/modules/season/application"
	"github.com/Black-And-White-Club/arena-ranking/pkg/results"
)

// The fakes embed the service interfaces; calling a method without an override panics.

type FakeLedger struct {
	ledgerservice.Service

	AwardFunc            func(ctx context.Context, req ledgerservice.AwardRequest) (ledgerservice.AwardResult, error)
	RemoveFunc           func(ctx context.Context, entryID int64, actor string) (ledgerservice.RemovalResult, error)
	BulkAwardFunc        func(ctx context.Context, req ledgerservice.BulkRequest) (ledgerservice.BulkResult, error)
	RankingFunc          func(ctx context.Context, order ledgerdb.Order, limit int) ([]ledgerdb.Standing, error)
	RankOfFunc           func(ctx context.Context, playerID int64) (results.OperationResult[int, error], error)
	HistoryFunc          func(ctx context.Context, playerID int64, limit int) ([]ledgerdb.HistoryEntry, error)
	ExportCSVFunc        func(ctx context.Context, w io.Writer) error
	PointsChartFunc      func(ctx context.Context, playerID int64) ([]byte, error)
	RecognizeResultsFunc func(ctx context.Context, image []byte) (results.OperationResult[*ledgerservice.RecognizedResults, error], error)

	trace []string
}

func (f *FakeLedger) Award(ctx context.Context, req ledgerservice.AwardRequest) (ledgerservice.AwardResult, error) {
	f.trace = append(f.trace, "Award")
	return f.AwardFunc(ctx, req)
}

func (f *FakeLedger) Remove(ctx context.Context, entryID int64, actor string) (ledgerservice.RemovalResult, error) {
	f.trace = append(f.trace, "Remove")
	return f.RemoveFunc(ctx, entryID, actor)
}

func (f *FakeLedger) BulkAward(ctx context.Context, req ledgerservice.BulkRequest) (ledgerservice.BulkResult, error) {
	f.trace = append(f.trace, "BulkAward")
	return f.BulkAwardFunc(ctx, req)
}

func (f *FakeLedger) Ranking(ctx context.Context, order ledgerdb.Order, limit int) ([]ledgerdb.Standing, error) {
	f.trace = append(f.trace, "Ranking")
	return f.RankingFunc(ctx, order, limit)
}

func (f *FakeLedger) RankOf(ctx context.Context, playerID int64) (results.OperationResult[int, error], error) {
	f.trace = append(f.trace, "RankOf")
	return f.RankOfFunc(ctx, playerID)
}

func (f *FakeLedger) History(ctx context.Context, playerID int64, limit int) ([]ledgerdb.HistoryEntry, error) {
	f.trace = append(f.trace, "History")
	return f.HistoryFunc(ctx, playerID, limit)
}

func (f *FakeLedger) ExportCSV(ctx context.Context, w io.Writer) error {
	f.trace = append(f.trace, "ExportCSV")
	return f.ExportCSVFunc(ctx, w)
}

func (f *FakeLedger) ExportFilename(ext string) string {
	return "ranking_20261017_1800." + ext
}

func (f *FakeLedger) PointsChart(ctx context.Context, playerID int64) ([]byte, error) {
	f.trace = append(f.trace, "PointsChart")
	return f.PointsChartFunc(ctx, playerID)
}

func (f *FakeLedger) RecognizeResults(ctx context.Context, image []byte) (results.OperationResult[*ledgerservice.RecognizedResults, error], error) {
	f.trace = append(f.trace, "RecognizeResults")
	return f.RecognizeResultsFunc(ctx, image)
}

type FakePlayers struct {
	playerservice.Service

	GetPlayerFunc func(ctx context.Context, id int64) (playerservice.PlayerResult, error)
	RegisterFunc  func(ctx context.Context, handle, chatID, nick, email string) (playerservice.PlayerResult, error)
}

func (f *FakePlayers) GetPlayer(ctx context.Context, id int64) (playerservice.PlayerResult, error) {
	return f.GetPlayerFunc(ctx, id)
}

func (f *FakePlayers) Register(ctx context.Context, handle, chatID, nick, email string) (playerservice.PlayerResult, error) {
	return f.RegisterFunc(ctx, handle, chatID, nick, email)
}

type FakeEvents struct {
	eventservice.Service

	CreateEventFunc func(ctx context.Context, name, date, description, actor string) (eventservice.EventResult, error)
	ListEventsFunc  func(ctx context.Context, limit int) ([]eventdb.Event, error)
}

func (f *FakeEvents) CreateEvent(ctx context.Context, name, date, description, actor string) (eventservice.EventResult, error) {
	return f.CreateEventFunc(ctx, name, date, description, actor)
}

func (f *FakeEvents) ListEvents(ctx context.Context, limit int) ([]eventdb.Event, error) {
	return f.ListEventsFunc(ctx, limit)
}

type FakeSeasons struct {
	seasonservice.Service

	EndAndRotateFunc func(ctx context.Context, currentID int64, nextID *int64) (seasonservice.RotationResult, error)
	HardResetFunc    func(ctx context.Context, confirmation string) (seasonservice.HardResetResult, error)
	ScheduleEndFunc  func(ctx context.Context, currentID int64, nextID *int64, at time.Time) (seasonservice.ScheduleResult, error)
}

func (f *FakeSeasons) EndAndRotate(ctx context.Context, currentID int64, nextID *int64) (seasonservice.RotationResult, error) {
	return f.EndAndRotateFunc(ctx, currentID, nextID)
}

func (f *FakeSeasons) HardReset(ctx context.Context, confirmation string) (seasonservice.HardResetResult, error) {
	return f.HardResetFunc(ctx, confirmation)
}

func (f *FakeSeasons) ScheduleEnd(ctx context.Context, currentID int64, nextID *int64, at time.Time) (seasonservice.ScheduleResult, error) {
	return f.ScheduleEndFunc(ctx, currentID, nextID, at)
}

func receipt(req ledgerservice.AwardRequest) ledgerservice.AwardResult {
	return results.SuccessResult[*ledgerservice.AwardReceipt, error](&ledgerservice.AwardReceipt{
		Entry: &ledgerdb.Entry{
			ID:       1,
			PlayerID: req.PlayerID,
			EventID:  req.EventID,
			Points:   req.Points,
			Position: req.Position,
			Reason:   req.Reason,
			AddedBy:  req.Actor,
		},
		Totals: ledgerdomain.Totals{Lifetime: req.Points, Season: req.Points},
	})
}
