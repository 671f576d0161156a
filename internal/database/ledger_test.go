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

func TestBalanceAccumulatesAcrossCredits(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	amounts := []string{"0.1", "0.2", "1.05"}
	for i, amount := range amounts {
		claim := createClaim(t, svc, "user-1", models.AssetBTC, amount, btcAddress, time.Now().UTC())
		_, err := svc.ConfirmClaim(ctx, store.ConfirmClaimParams{
			ClaimId: claim.Id,
			TxHash:  string(rune('a' + i)),
			Asset:   models.AssetBTC,
			Amount:  decimal.RequireFromString(amount),
		})
		require.NoError(t, err)
	}

	balance, err := svc.GetUserBalance(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, balance.Balance.Equal(decimal.RequireFromString("1.35")), balance.Balance.String())
	assert.Equal(t, int64(4), balance.Version)

	history, err := svc.GetLedgerHistory(ctx, "user-1", 10, 0)
	require.NoError(t, err)
	require.Len(t, history, 3)
	for _, entry := range history {
		assert.True(t, entry.BalanceAfter.Equal(entry.BalanceBefore.Add(entry.Amount)))
	}

	page, err := svc.GetLedgerHistory(ctx, "user-1", 2, 2)
	require.NoError(t, err)
	assert.Len(t, page, 1)

	assert.NoError(t, svc.ReconcileUserBalance(ctx, "user-1"))
}

func TestGetUserBalanceUnknownUserIsZero(t *testing.T) {
	svc := newTestService(t)

	balance, err := svc.GetUserBalance(context.Background(), "nobody")
	require.NoError(t, err)
	assert.True(t, balance.Balance.IsZero())
	assert.NoError(t, svc.ReconcileUserBalance(context.Background(), "nobody"))
}

func TestReconcileUserBalanceDetectsDrift(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	claim := createClaim(t, svc, "user-1", models.AssetETH, "2", ethAddress, time.Now().UTC())
	_, err := svc.ConfirmClaim(ctx, store.ConfirmClaimParams{ClaimId: claim.Id, TxHash: "0xdrift", Asset: models.AssetETH, Amount: decimal.NewFromInt(2)})
	require.NoError(t, err)

	_, err = svc.db.ExecContext(ctx, "UPDATE user_balances SET balance = '5' WHERE user_id = ?", "user-1")
	require.NoError(t, err)

	assert.Error(t, svc.ReconcileUserBalance(ctx, "user-1"))
}

func TestNotifications(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.CreateNotification(ctx, models.Notification{
		UserId:  "user-1",
		Type:    models.NotificationDepositConfirmed,
		Title:   "Deposit Confirmed",
		Message: "Your deposit of 1 ETH has been confirmed",
		Data:    `{"tx_hash":"0x1"}`,
	}))

	notifications, err := svc.ListNotifications(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	assert.Equal(t, models.NotificationDepositConfirmed, notifications[0].Type)
	assert.False(t, notifications[0].Read)
	assert.NotEmpty(t, notifications[0].Id)
}
