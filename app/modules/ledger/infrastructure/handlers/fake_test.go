package ledgerhandlers

import (
	"context"

	ledgerservice "github.com/Black-And-White-Club/arena-ranking/app/modules/ledger/application"
	playerservice "github.com/Black-And-White-Club/arena-ranking/app/modules/player/application"
)

// FakeLedgerService implements the calls the handlers make. Other methods panic through the
// embedded nil interface.
type FakeLedgerService struct {
	ledgerservice.Service

	AwardFunc     func(ctx context.Context, req ledgerservice.AwardRequest) (ledgerservice.AwardResult, error)
	BulkAwardFunc func(ctx context.Context, req ledgerservice.BulkRequest) (ledgerservice.BulkResult, error)

	awardCalls []ledgerservice.AwardRequest
	bulkCalls  []ledgerservice.BulkRequest
}

func (f *FakeLedgerService) Award(ctx context.Context, req ledgerservice.AwardRequest) (ledgerservice.AwardResult, error) {
	f.awardCalls = append(f.awardCalls, req)
	return f.AwardFunc(ctx, req)
}

func (f *FakeLedgerService) BulkAward(ctx context.Context, req ledgerservice.BulkRequest) (ledgerservice.BulkResult, error) {
	f.bulkCalls = append(f.bulkCalls, req)
	return f.BulkAwardFunc(ctx, req)
}

type fakePlayerFinder struct {
	FindByNickFunc func(ctx context.Context, nick string) (playerservice.PlayerResult, error)
}

func (f *fakePlayerFinder) FindByNick(ctx context.Context, nick string) (playerservice.PlayerResult, error) {
	return f.FindByNickFunc(ctx, nick)
}
