package api

import (
	"context"
	"fmt"
	"strings"
	"time"

	"deposit-reconciler-go/internal/models"

	"go.uber.org/zap"
)

func (s *DepositService) ListOrphans(ctx context.Context) ([]models.Deposit, error) {
	orphans, err := s.db.ListOrphans(ctx)
	if err != nil {
		return nil, err
	}
	if orphans == nil {
		orphans = []models.Deposit{}
	}
	return orphans, nil
}

// AssignOrphan gives an unmatched deposit to a user and credits it.
func (s *DepositService) AssignOrphan(ctx context.Context, depositId, userId string) (*models.CreditResult, error) {
	if strings.TrimSpace(userId) == "" {
		return nil, fmt.Errorf("%w: userId is required", ErrInvalidRequest)
	}
	credit, err := s.db.AssignOrphan(ctx, depositId, userId)
	if err != nil {
		return nil, err
	}
	s.notifyCredit(ctx, credit)
	return credit, nil
}

// ApproveClaim confirms a pending claim without an observed transfer.
func (s *DepositService) ApproveClaim(ctx context.Context, claimId, txHash string) (*models.CreditResult, error) {
	credit, err := s.db.ApproveClaim(ctx, claimId, strings.TrimSpace(txHash))
	if err != nil {
		return nil, err
	}
	s.notifyCredit(ctx, credit)
	return credit, nil
}

func (s *DepositService) RejectClaim(ctx context.Context, claimId, reason string) (*models.Deposit, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, fmt.Errorf("%w: reason is required", ErrInvalidRequest)
	}
	return s.db.RejectClaim(ctx, claimId, reason)
}

func (s *DepositService) notifyCredit(ctx context.Context, credit *models.CreditResult) {
	if s.notifier == nil {
		return
	}

	result := models.ReconcileResult{
		Outcome:    models.OutcomeMatched,
		DepositId:  credit.DepositId,
		UserId:     credit.UserId,
		Amount:     credit.Amount,
		NewBalance: credit.BalanceAfter,
	}
	if deposit, err := s.db.GetDeposit(ctx, credit.DepositId); err == nil {
		result.Asset = deposit.Asset
		if deposit.TxHash != nil {
			result.TxHash = *deposit.TxHash
		}
	}

	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.notifier.DepositConfirmed(notifyCtx, result); err != nil {
		zap.L().Warn("Failed to record deposit notification",
			zap.String("deposit_id", credit.DepositId),
			zap.Error(err))
	}
}
