/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"deposit-reconciler-go/internal/models"
	"deposit-reconciler-go/internal/store"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// TransferExists reports whether a transfer has already been credited or recorded as an orphan.
func (s *Service) TransferExists(ctx context.Context, asset models.Asset, txHash string) (bool, error) {
	var id string
	err := s.db.GetContext(ctx, &id, s.rebind(queryTransferExists), txHash, asset)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check for existing transfer: %w", err)
	}
	return true, nil
}

func checkDuplicate(ctx context.Context, tx *sqlx.Tx, asset models.Asset, txHash string) error {
	var existingId string
	err := tx.GetContext(ctx, &existingId, tx.Rebind(queryTransferExists), txHash, asset)
	if err == nil {
		zap.L().Warn("Duplicate transfer detected, skipping",
			zap.String("tx_hash", txHash),
			zap.String("asset", asset.String()),
			zap.String("existing_deposit_id", existingId))
		return fmt.Errorf("%w: %s transfer %s already recorded", store.ErrDuplicateTransaction, asset, txHash)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to check for duplicate transfer: %w", err)
	}
	return nil
}

// ConfirmClaim binds the transfer to the claim and credits the observed amount in one transaction.
// A claim that stopped being pending since it was read yields ErrConcurrentModification.
func (s *Service) ConfirmClaim(ctx context.Context, params store.ConfirmClaimParams) (*models.CreditResult, error) {
	zap.L().Info("Confirming claim",
		zap.String("deposit_id", params.ClaimId),
		zap.String("tx_hash", params.TxHash),
		zap.String("asset", params.Asset.String()),
		zap.String("amount", params.Amount.String()))

	var credit *models.CreditResult
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := checkDuplicate(ctx, tx, params.Asset, params.TxHash); err != nil {
			return err
		}

		var claim models.Deposit
		err := tx.GetContext(ctx, &claim, tx.Rebind(queryGetDeposit), params.ClaimId)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", store.ErrDepositNotFound, params.ClaimId)
		}
		if err != nil {
			return fmt.Errorf("failed to load claim: %w", err)
		}
		if !claim.IsPending() || claim.UserId == nil {
			return fmt.Errorf("%w: claim %s is %s", store.ErrConcurrentModification, claim.Id, claim.Status)
		}

		var fromAddress *string
		if params.FromAddress != "" {
			fromAddress = &params.FromAddress
		}

		ts := now()
		result, err := tx.ExecContext(ctx, tx.Rebind(queryConfirmClaim),
			params.TxHash, params.Amount.String(), fromAddress, ts, ts, params.ClaimId)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: %s transfer %s already recorded", store.ErrDuplicateTransaction, params.Asset, params.TxHash)
			}
			return fmt.Errorf("failed to confirm claim: %w", err)
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to check rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return fmt.Errorf("claim update failed - %w", store.ErrConcurrentModification)
		}

		credit, err = s.creditBalance(ctx, tx, creditParams{
			UserId:    *claim.UserId,
			DepositId: claim.Id,
			Asset:     params.Asset,
			Amount:    params.Amount,
			Reference: fmt.Sprintf("deposit %s %s", params.Asset, params.TxHash),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Claim confirmed and credited",
		zap.String("deposit_id", credit.DepositId),
		zap.String("user_id", credit.UserId),
		zap.String("old_balance", credit.BalanceBefore.String()),
		zap.String("new_balance", credit.BalanceAfter.String()))
	return credit, nil
}

// RecordOrphan stores a final transfer that matched no claim so it can be assigned later.
func (s *Service) RecordOrphan(ctx context.Context, transfer models.ExternalTransfer) (*models.Deposit, error) {
	id := uuid.New().String()

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := checkDuplicate(ctx, tx, transfer.Asset, transfer.TxHash); err != nil {
			return err
		}

		var fromAddress *string
		if transfer.FromAddress != "" {
			fromAddress = &transfer.FromAddress
		}

		ts := now()
		_, err := tx.ExecContext(ctx, tx.Rebind(queryInsertOrphan),
			id, transfer.Asset, transfer.Amount.String(), transfer.ToAddress, fromAddress,
			transfer.TxHash, ts, ts, ts)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: %s transfer %s already recorded", store.ErrDuplicateTransaction, transfer.Asset, transfer.TxHash)
			}
			return fmt.Errorf("failed to insert orphaned deposit: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Warn("Transfer recorded as orphaned deposit",
		zap.String("deposit_id", id),
		zap.String("tx_hash", transfer.TxHash),
		zap.String("asset", transfer.Asset.String()),
		zap.String("address", transfer.ToAddress),
		zap.String("amount", transfer.Amount.String()))

	return s.GetDeposit(ctx, id)
}
