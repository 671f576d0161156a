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
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type creditParams struct {
	UserId    string
	DepositId string
	Asset     models.Asset
	Amount    decimal.Decimal
	Reference string
}

// creditBalance adds amount to the user's balance with a version compare-and-swap and
// records the ledger entry. Must run inside the caller's transaction.
func (s *Service) creditBalance(ctx context.Context, tx *sqlx.Tx, params creditParams) (*models.CreditResult, error) {
	if !params.Amount.IsPositive() {
		return nil, fmt.Errorf("credit amount must be positive, got %s", params.Amount)
	}

	balance, err := s.loadBalanceForUpdate(ctx, tx, params.UserId)
	if err != nil {
		return nil, err
	}

	newBalance := balance.Balance.Add(params.Amount)
	entryId := uuid.New().String()
	ts := now()

	_, err = tx.ExecContext(ctx, tx.Rebind(queryInsertLedgerEntry),
		entryId, params.UserId, params.DepositId, params.Asset,
		params.Amount.String(), balance.Balance.String(), newBalance.String(),
		params.Reference, ts)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: deposit %s already credited", store.ErrDuplicateTransaction, params.DepositId)
		}
		return nil, fmt.Errorf("failed to insert ledger entry: %w", err)
	}

	result, err := tx.ExecContext(ctx, tx.Rebind(queryUpdateBalance),
		newBalance.String(), entryId, ts, params.UserId, balance.Version)
	if err != nil {
		return nil, fmt.Errorf("failed to update balance: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, fmt.Errorf("balance update failed - %w", store.ErrConcurrentModification)
	}

	return &models.CreditResult{
		DepositId:     params.DepositId,
		UserId:        params.UserId,
		Amount:        params.Amount,
		BalanceBefore: balance.Balance,
		BalanceAfter:  newBalance,
		EntryId:       entryId,
	}, nil
}

func (s *Service) loadBalanceForUpdate(ctx context.Context, tx *sqlx.Tx, userId string) (*models.UserBalance, error) {
	var balance models.UserBalance
	err := tx.GetContext(ctx, &balance, tx.Rebind(queryGetBalance), userId)
	if errors.Is(err, sql.ErrNoRows) {
		if _, err := tx.ExecContext(ctx, tx.Rebind(queryInsertBalance), userId, now()); err != nil {
			return nil, fmt.Errorf("failed to create balance: %w", err)
		}
		err = tx.GetContext(ctx, &balance, tx.Rebind(queryGetBalance), userId)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get current balance: %w", err)
	}
	return &balance, nil
}

// GetUserBalance returns the user's balance; a user with no credits has a zero balance.
func (s *Service) GetUserBalance(ctx context.Context, userId string) (*models.UserBalance, error) {
	zap.L().Debug("Getting balance", zap.String("user_id", userId))

	var balance models.UserBalance
	err := s.db.GetContext(ctx, &balance, s.rebind(queryGetBalance), userId)
	if errors.Is(err, sql.ErrNoRows) {
		return &models.UserBalance{UserId: userId, Balance: decimal.Zero}, nil
	}
	if err != nil {
		zap.L().Error("Failed to get balance", zap.String("user_id", userId), zap.Error(err))
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}
	return &balance, nil
}

// GetLedgerHistory returns paginated ledger entries for a user, newest first
func (s *Service) GetLedgerHistory(ctx context.Context, userId string, limit, offset int) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	err := s.db.SelectContext(ctx, &entries, s.rebind(queryGetLedgerHistory), userId, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger history: %w", err)
	}
	return entries, nil
}

// ReconcileUserBalance verifies that the current balance matches the sum of all ledger entries
func (s *Service) ReconcileUserBalance(ctx context.Context, userId string) error {
	zap.L().Info("Reconciling balance", zap.String("user_id", userId))

	current, err := s.GetUserBalance(ctx, userId)
	if err != nil {
		return fmt.Errorf("failed to get current balance: %w", err)
	}

	rows, err := s.db.QueryxContext(ctx, s.rebind(queryGetLedgerAmounts), userId)
	if err != nil {
		return fmt.Errorf("failed to load ledger entries: %w", err)
	}
	defer func(rows *sqlx.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	calculated := decimal.Zero
	for rows.Next() {
		var amount decimal.Decimal
		if err := rows.Scan(&amount); err != nil {
			return fmt.Errorf("failed to scan ledger amount: %w", err)
		}
		calculated = calculated.Add(amount)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating ledger rows: %w", err)
	}

	if !current.Balance.Equal(calculated) {
		zap.L().Error("Balance reconciliation failed",
			zap.String("user_id", userId),
			zap.String("current_balance", current.Balance.String()),
			zap.String("calculated_balance", calculated.String()),
			zap.String("difference", current.Balance.Sub(calculated).String()))
		return fmt.Errorf("balance mismatch: current=%s, calculated=%s", current.Balance.String(), calculated.String())
	}

	zap.L().Info("Balance reconciliation successful",
		zap.String("user_id", userId),
		zap.String("balance", current.Balance.String()))
	return nil
}
