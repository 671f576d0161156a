package formance

import (
	"context"
	"fmt"

	"deposit-reconciler-go/internal/models"

	"github.com/formancehq/formance-sdk-go/v3/pkg/models/operations"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/shared"
	"go.uber.org/zap"
)

const numscriptDepositCredited = `vars {
  asset $asset
  number $amount
  account $user_id
  string $deposit_id
  string $tx_hash
  string $amount_human
}

send [$asset $amount] (
  source = @world
  destination = @users:$user_id
)

set_tx_meta("event_type", "deposit_credited")
set_tx_meta("deposit_id", $deposit_id)
set_tx_meta("tx_hash", $tx_hash)
set_tx_meta("amount_human", $amount_human)
`

// DepositConfirmed posts the credit. The deposit id is the transaction
// reference, so replays are accepted as already mirrored.
func (m *Mirror) DepositConfirmed(ctx context.Context, result models.ReconcileResult) error {
	postTx, err := creditTransaction(result)
	if err != nil {
		return err
	}

	_, err = m.ledgerApi.CreateTransaction(ctx, operations.V2CreateTransactionRequest{
		Ledger:            m.ledger,
		V2PostTransaction: postTx,
	})
	if err != nil {
		if isConflictError(err) {
			zap.L().Debug("Credit already mirrored to Formance", zap.String("deposit_id", result.DepositId))
			return nil
		}
		return fmt.Errorf("error mirroring credit to formance: %w", err)
	}

	zap.L().Info("Credit mirrored to Formance",
		zap.String("deposit_id", result.DepositId),
		zap.String("user_id", result.UserId),
		zap.String("asset", result.Asset.String()),
		zap.String("amount", result.Amount.String()))
	return nil
}

func creditTransaction(result models.ReconcileResult) (shared.V2PostTransaction, error) {
	if result.DepositId == "" || result.UserId == "" {
		return shared.V2PostTransaction{}, fmt.Errorf("credit without deposit or user cannot be mirrored")
	}

	smallest := result.Amount.Shift(int32(precisionFor(result.Asset)))
	if !smallest.Equal(smallest.Truncate(0)) {
		return shared.V2PostTransaction{}, fmt.Errorf("amount %s exceeds %s precision", result.Amount, result.Asset)
	}

	reference := "deposit-" + result.DepositId
	return shared.V2PostTransaction{
		Reference: &reference,
		Script: &shared.V2PostTransactionScript{
			Plain: numscriptDepositCredited,
			Vars: map[string]string{
				"asset":        formanceAsset(result.Asset),
				"amount":       smallest.BigInt().String(),
				"user_id":      result.UserId,
				"deposit_id":   result.DepositId,
				"tx_hash":      result.TxHash,
				"amount_human": result.Amount.String(),
			},
		},
	}, nil
}
