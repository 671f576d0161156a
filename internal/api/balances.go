package api

import (
	"context"
	"fmt"

	"deposit-reconciler-go/internal/models"
)

// UserBalance returns the stored balance and whether it equals the sum of the
// user's ledger entries.
func (s *DepositService) UserBalance(ctx context.Context, userId string) (*models.BalanceView, error) {
	if userId == "" {
		return nil, fmt.Errorf("%w: userId is required", ErrInvalidRequest)
	}

	balance, err := s.db.GetUserBalance(ctx, userId)
	if err != nil {
		return nil, err
	}

	view := &models.BalanceView{
		UserId:     userId,
		Balance:    balance.Balance,
		Version:    balance.Version,
		Consistent: true,
	}
	if err := s.db.ReconcileUserBalance(ctx, userId); err != nil {
		view.Consistent = false
		view.Error = err.Error()
	}
	return view, nil
}

func (s *DepositService) LedgerHistory(ctx context.Context, userId string, limit int) ([]models.LedgerEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.db.GetLedgerHistory(ctx, userId, limit, 0)
}
