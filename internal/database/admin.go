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

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

func (s *Service) loadDeposit(ctx context.Context, tx *sqlx.Tx, depositId string) (*models.Deposit, error) {
	var deposit models.Deposit
	err := tx.GetContext(ctx, &deposit, tx.Rebind(queryGetDeposit), depositId)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", store.ErrDepositNotFound, depositId)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load deposit: %w", err)
	}
	return &deposit, nil
}

// AssignOrphan attaches an orphaned deposit to a user and credits its observed amount.
func (s *Service) AssignOrphan(ctx context.Context, depositId, userId string) (*models.CreditResult, error) {
	if userId == "" {
		return nil, fmt.Errorf("user id is required")
	}

	var credit *models.CreditResult
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		deposit, err := s.loadDeposit(ctx, tx, depositId)
		if err != nil {
			return err
		}
		if !deposit.IsOrphan() {
			return fmt.Errorf("%w: %s", store.ErrNotOrphan, depositId)
		}

		result, err := tx.ExecContext(ctx, tx.Rebind(queryAssignOrphan),
			userId, deposit.ClaimedAmount.String(), now(), depositId)
		if err != nil {
			return fmt.Errorf("failed to assign orphan: %w", err)
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to check rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return fmt.Errorf("orphan assignment failed - %w", store.ErrConcurrentModification)
		}

		credit, err = s.creditBalance(ctx, tx, creditParams{
			UserId:    userId,
			DepositId: depositId,
			Asset:     deposit.Asset,
			Amount:    deposit.ClaimedAmount,
			Reference: fmt.Sprintf("orphan assignment %s", depositId),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Orphaned deposit assigned",
		zap.String("deposit_id", depositId),
		zap.String("user_id", userId),
		zap.String("amount", credit.Amount.String()),
		zap.String("new_balance", credit.BalanceAfter.String()))
	return credit, nil
}

// ApproveClaim confirms a pending claim by hand and credits the claimed amount.
// txHash is optional; when given it takes part in the duplicate check like any observed transfer.
func (s *Service) ApproveClaim(ctx context.Context, claimId, txHash string) (*models.CreditResult, error) {
	var credit *models.CreditResult
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		claim, err := s.loadDeposit(ctx, tx, claimId)
		if err != nil {
			return err
		}
		if !claim.IsPending() || claim.UserId == nil {
			return fmt.Errorf("%w: %s is %s", store.ErrClaimNotPending, claimId, claim.Status)
		}

		var hash *string
		if txHash != "" {
			if err := checkDuplicate(ctx, tx, claim.Asset, txHash); err != nil {
				return err
			}
			hash = &txHash
		}

		ts := now()
		result, err := tx.ExecContext(ctx, tx.Rebind(queryConfirmClaim),
			hash, claim.ClaimedAmount.String(), claim.FromAddress, ts, ts, claimId)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: %s transfer %s already recorded", store.ErrDuplicateTransaction, claim.Asset, txHash)
			}
			return fmt.Errorf("failed to approve claim: %w", err)
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to check rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return fmt.Errorf("claim approval failed - %w", store.ErrConcurrentModification)
		}

		credit, err = s.creditBalance(ctx, tx, creditParams{
			UserId:    *claim.UserId,
			DepositId: claimId,
			Asset:     claim.Asset,
			Amount:    claim.ClaimedAmount,
			Reference: fmt.Sprintf("manual approval %s", claimId),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Claim approved manually",
		zap.String("deposit_id", claimId),
		zap.String("user_id", credit.UserId),
		zap.String("amount", credit.Amount.String()))
	return credit, nil
}

// RejectClaim moves a pending claim to rejected. Balances are not touched.
func (s *Service) RejectClaim(ctx context.Context, claimId, reason string) (*models.Deposit, error) {
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		claim, err := s.loadDeposit(ctx, tx, claimId)
		if err != nil {
			return err
		}
		if !claim.IsPending() {
			return fmt.Errorf("%w: %s is %s", store.ErrClaimNotPending, claimId, claim.Status)
		}

		result, err := tx.ExecContext(ctx, tx.Rebind(queryRejectClaim), reason, now(), claimId)
		if err != nil {
			return fmt.Errorf("failed to reject claim: %w", err)
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to check rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return fmt.Errorf("claim rejection failed - %w", store.ErrConcurrentModification)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Claim rejected", zap.String("deposit_id", claimId), zap.String("reason", reason))
	return s.GetDeposit(ctx, claimId)
}
