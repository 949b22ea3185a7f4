package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fantaleague/auction-system/models"
)

func TestDebitWritesLedgerEntry(t *testing.T) {
	f := newAuctionFixture()
	f.addLeague(1)
	f.addPlayer(10, models.RoleForward)
	f.addParticipant(100, 1, 1000, 500)

	ctx := context.Background()
	playerID := 10
	entry, err := f.budget.Debit(ctx, nil, 100, 120, models.LedgerEntrySettlement, &playerID)
	require.NoError(t, err)

	assert.Equal(t, int64(-120), entry.Amount)
	assert.Equal(t, int64(380), entry.BalanceAfter)
	assert.NotEmpty(t, entry.Reference)
	assert.Equal(t, int64(120), f.participant(100).SpentCredits)
}

func TestDebitRejectsOverdraft(t *testing.T) {
	f := newAuctionFixture()
	f.addLeague(1)
	f.addParticipant(100, 1, 1000, 100)

	ctx := context.Background()
	_, err := f.budget.Debit(ctx, nil, 100, 101, models.LedgerEntrySettlement, nil)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	_, err = f.budget.Debit(ctx, nil, 100, 0, models.LedgerEntrySettlement, nil)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	entries, err := f.ledger.ListByParticipant(ctx, nil, 100, 0)
	require.NoError(t, err)
	assert.Empty(t, entries, "неудачное списание не должно оставлять записей")
	assert.Equal(t, int64(0), f.participant(100).SpentCredits)
}

func TestRecomputeReservedIgnoresInactiveAndSold(t *testing.T) {
	f := newAuctionFixture()
	f.addLeague(1)
	f.addPlayer(10, models.RoleForward)
	f.addPlayer(11, models.RoleForward)
	f.addParticipant(100, 1, 1000, 500)

	ctx := context.Background()

	snapA, err := f.bids.PlaceBid(ctx, 1, 10, 1000, 10, models.BidKindManual, ptrInt64(50))
	require.NoError(t, err)
	_, err = f.bids.PlaceBid(ctx, 1, 11, 1000, 10, models.BidKindManual, ptrInt64(70))
	require.NoError(t, err)
	assert.Equal(t, int64(120), f.participant(100).ReservedCredits)

	// продажа первого лота выводит его потолок из резерва, даже если
	// поручение не было явно погашено
	f.store.mu.Lock()
	f.store.lots[snapA.LotID].Status = models.LotStatusSold
	f.store.mu.Unlock()

	sum, err := f.budget.RecomputeReserved(ctx, nil, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(70), sum)
	assert.Equal(t, int64(70), f.participant(100).ReservedCredits)
}

func TestBudgetViewAndHistory(t *testing.T) {
	f := newAuctionFixture()
	f.addLeague(1)
	f.addPlayer(10, models.RoleForward)
	f.addParticipant(100, 1, 1000, 500)

	ctx := context.Background()
	_, err := f.bids.PlaceBid(ctx, 1, 10, 1000, 10, models.BidKindManual, ptrInt64(40))
	require.NoError(t, err)

	view, err := f.budget.View(ctx, 1000, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(500), view.TotalBudget)
	assert.Equal(t, int64(40), view.ReservedCredits)
	assert.Equal(t, int64(460), view.AvailableCredits)

	_, err = f.budget.View(ctx, 9999, 1)
	assert.ErrorIs(t, err, ErrNotLeagueMember)

	_, err = f.budget.History(ctx, 9999, 1, 10)
	assert.ErrorIs(t, err, ErrNotLeagueMember)
}
