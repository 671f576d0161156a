package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"deposit-reconciler-go/internal/models"

	"go.uber.org/zap"
)

// NotificationStore persists user notifications.
type NotificationStore interface {
	CreateNotification(ctx context.Context, n models.Notification) error
}

// Recorder writes a deposit_confirmed notification for every credited deposit.
// Delivery to the user is handled elsewhere.
type Recorder struct {
	store NotificationStore
}

func NewRecorder(store NotificationStore) *Recorder {
	return &Recorder{store: store}
}

type depositData struct {
	DepositId  string `json:"deposit_id"`
	TxHash     string `json:"tx_hash"`
	Amount     string `json:"amount"`
	CryptoType string `json:"crypto_type"`
	NewBalance string `json:"new_balance"`
}

func (r *Recorder) DepositConfirmed(ctx context.Context, result models.ReconcileResult) error {
	if result.UserId == "" {
		return fmt.Errorf("cannot notify deposit %s without a user", result.DepositId)
	}

	data, err := json.Marshal(depositData{
		DepositId:  result.DepositId,
		TxHash:     result.TxHash,
		Amount:     result.Amount.String(),
		CryptoType: result.Asset.String(),
		NewBalance: result.NewBalance.String(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode notification data: %w", err)
	}

	n := models.Notification{
		UserId:  result.UserId,
		Type:    models.NotificationDepositConfirmed,
		Title:   "Deposit Confirmed",
		Message: fmt.Sprintf("Your deposit of %s %s has been confirmed and credited to your account.", result.Amount.String(), result.Asset),
		Data:    string(data),
	}
	if err := r.store.CreateNotification(ctx, n); err != nil {
		return err
	}

	zap.L().Debug("Deposit notification recorded",
		zap.String("user_id", result.UserId),
		zap.String("deposit_id", result.DepositId))
	return nil
}
