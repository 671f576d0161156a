package database

import (
	"context"
	"testing"
	"time"

	"deposit-reconciler-go/internal/models"
	"deposit-reconciler-go/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	ethAddress = "0xAbC0000000000000000000000000000000000001"
	btcAddress = "bc1qcustody0000000000000000000000000000000"
)

func TestCreateClaimAndGetDeposit(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	claim, err := svc.CreateClaim(ctx, store.CreateClaimParams{
		UserId:         "user-1",
		Asset:          models.AssetETH,
		ClaimedAmount:  decimal.RequireFromString("1.25"),
		CustodyAddress: ethAddress,
		TxHash:         "0xclaimed",
	})
	require.NoError(t, err)

	got, err := svc.GetDeposit(ctx, claim.Id)
	require.NoError(t, err)
	assert.Equal(t, models.DepositStatusPending, got.Status)
	require.NotNil(t, got.UserId)
	assert.Equal(t, "user-1", *got.UserId)
	assert.True(t, got.ClaimedAmount.Equal(decimal.RequireFromString("1.25")))
	assert.False(t, got.CreditedAmount.Valid)
	assert.Nil(t, got.TxHash)
	require.NotNil(t, got.ClaimedTxHash)
	assert.Equal(t, "0xclaimed", *got.ClaimedTxHash)

	byHash, err := svc.GetDepositByTxHash(ctx, "", "0xclaimed")
	require.NoError(t, err)
	assert.Equal(t, claim.Id, byHash.Id)

	_, err = svc.GetDeposit(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrDepositNotFound)
}

func TestCreateClaimRejectsInvalidInput(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateClaim(ctx, store.CreateClaimParams{
		UserId: "user-1", Asset: models.AssetBTC, ClaimedAmount: decimal.Zero, CustodyAddress: btcAddress,
	})
	assert.Error(t, err)

	_, err = svc.CreateClaim(ctx, store.CreateClaimParams{
		Asset: models.AssetBTC, ClaimedAmount: decimal.NewFromInt(1), CustodyAddress: btcAddress,
	})
	assert.Error(t, err)
}

func TestListPendingClaimsFiltersByPair(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	older := createClaim(t, svc, "user-1", models.AssetETH, "1", ethAddress, base)
	newer := createClaim(t, svc, "user-2", models.AssetETH, "2", ethAddress, base.Add(time.Minute))
	createClaim(t, svc, "user-3", models.AssetUSDT, "100", ethAddress, base)
	createClaim(t, svc, "user-4", models.AssetBTC, "0.1", btcAddress, base)

	claims, err := svc.ListPendingClaims(ctx, "0xabc0000000000000000000000000000000000001", models.AssetETH)
	require.NoError(t, err)
	require.Len(t, claims, 2)
	assert.Equal(t, newer.Id, claims[0].Id)
	assert.Equal(t, older.Id, claims[1].Id)

	_, err = svc.RejectClaim(ctx, older.Id, "wrong network")
	require.NoError(t, err)

	claims, err = svc.ListPendingClaims(ctx, ethAddress, models.AssetETH)
	require.NoError(t, err)
	require.Len(t, claims, 1)
	assert.Equal(t, newer.Id, claims[0].Id)
}

func TestListPendingPairsIsDistinct(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	ts := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	createClaim(t, svc, "user-1", models.AssetETH, "1", ethAddress, ts)
	createClaim(t, svc, "user-2", models.AssetETH, "3", ethAddress, ts)
	createClaim(t, svc, "user-1", models.AssetUSDT, "10", ethAddress, ts)
	createClaim(t, svc, "user-1", models.AssetBTC, "0.5", btcAddress, ts)

	pairs, err := svc.ListPendingPairs(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []models.WatchPair{
		{Address: btcAddress, Asset: models.AssetBTC},
		{Address: ethAddress, Asset: models.AssetETH},
		{Address: ethAddress, Asset: models.AssetUSDT},
	}, pairs)
}

func TestListUserDepositsNewestFirst(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	ts := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	first := createClaim(t, svc, "user-1", models.AssetETH, "1", ethAddress, ts)
	second := createClaim(t, svc, "user-1", models.AssetBTC, "0.5", btcAddress, ts.Add(time.Hour))
	createClaim(t, svc, "user-2", models.AssetBTC, "0.5", btcAddress, ts)

	deposits, err := svc.ListUserDeposits(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, deposits, 2)
	assert.Equal(t, second.Id, deposits[0].Id)
	assert.Equal(t, first.Id, deposits[1].Id)
}
