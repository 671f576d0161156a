package api

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"deposit-reconciler-go/internal/models"
	"deposit-reconciler-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SubmitClaim records a user's pending deposit claim.
func (s *DepositService) SubmitClaim(ctx context.Context, userId, asset, address string, amount decimal.Decimal, txHash string) (*models.Deposit, error) {
	parsed, err := models.ParseAsset(asset)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if userId == "" || address == "" || !amount.IsPositive() {
		return nil, fmt.Errorf("%w: user, address and a positive amount are required", ErrInvalidRequest)
	}

	return s.db.CreateClaim(ctx, store.CreateClaimParams{
		UserId:         userId,
		Asset:          parsed,
		ClaimedAmount:  amount,
		CustodyAddress: strings.TrimSpace(address),
		TxHash:         strings.TrimSpace(txHash),
	})
}

// DepositStatus finds a deposit by id or hash. For a pending claim that names
// a hash, the current confirmation depth is read from the chain.
func (s *DepositService) DepositStatus(ctx context.Context, req models.StatusRequest) (*models.DepositStatusView, error) {
	var (
		deposit *models.Deposit
		err     error
	)
	switch {
	case req.DepositId != "":
		deposit, err = s.db.GetDeposit(ctx, req.DepositId)
	case req.TxHash != "":
		var asset models.Asset
		if req.Asset != "" {
			if asset, err = models.ParseAsset(req.Asset); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
			}
		}
		deposit, err = s.db.GetDepositByTxHash(ctx, asset, req.TxHash)
	default:
		return nil, fmt.Errorf("%w: depositId or txHash is required", ErrInvalidRequest)
	}
	if err != nil {
		return nil, err
	}

	view := &models.DepositStatusView{
		Deposit:               deposit,
		RequiredConfirmations: s.policy.RequiredConfirmations(deposit.Asset),
	}
	if deposit.Status == models.DepositStatusConfirmed {
		view.Confirmations = view.RequiredConfirmations
	}

	hash := ""
	if deposit.ClaimedTxHash != nil {
		hash = *deposit.ClaimedTxHash
	}
	if !deposit.IsPending() || hash == "" || s.reader == nil {
		return view, nil
	}

	transfers, err := s.reader.FetchTransfers(ctx, deposit.CustodyAddress, deposit.Asset)
	if err != nil {
		zap.L().Warn("Live confirmation lookup failed",
			zap.String("deposit_id", deposit.Id),
			zap.String("tx_hash", hash),
			zap.Error(err))
		view.Error = err.Error()
		return view, nil
	}
	for _, t := range transfers {
		if strings.EqualFold(t.TxHash, hash) {
			view.Confirmations = t.Confirmations
			view.ConfirmationsLive = true
			break
		}
	}
	return view, nil
}

// UserDeposits lists a user's deposits, newest first.
func (s *DepositService) UserDeposits(ctx context.Context, userId string) ([]models.Deposit, error) {
	if userId == "" {
		return nil, fmt.Errorf("%w: userId is required", ErrInvalidRequest)
	}
	deposits, err := s.db.ListUserDeposits(ctx, userId)
	if err != nil {
		return nil, err
	}
	if deposits == nil {
		deposits = []models.Deposit{}
	}
	return deposits, nil
}

// IsNotFound reports whether err means the deposit does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, store.ErrDepositNotFound)
}
