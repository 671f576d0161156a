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
	"go.uber.org/zap"
)

// CreateClaim records a user's pending deposit claim.
func (s *Service) CreateClaim(ctx context.Context, params store.CreateClaimParams) (*models.Deposit, error) {
	if params.UserId == "" {
		return nil, fmt.Errorf("user id is required")
	}
	if params.CustodyAddress == "" {
		return nil, fmt.Errorf("custody address is required")
	}
	if !params.ClaimedAmount.IsPositive() {
		return nil, fmt.Errorf("claimed amount must be positive, got %s", params.ClaimedAmount)
	}

	createdAt := params.CreatedAt
	if createdAt.IsZero() {
		createdAt = now()
	}

	var claimedTxHash *string
	if params.TxHash != "" {
		claimedTxHash = &params.TxHash
	}

	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx, s.rebind(queryInsertClaim),
		id, params.UserId, params.Asset, params.ClaimedAmount.String(), params.CustodyAddress,
		claimedTxHash, createdAt, createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert claim: %w", err)
	}

	zap.L().Info("Pending claim recorded",
		zap.String("deposit_id", id),
		zap.String("user_id", params.UserId),
		zap.String("asset", params.Asset.String()),
		zap.String("amount", params.ClaimedAmount.String()),
		zap.String("address", params.CustodyAddress))

	return s.GetDeposit(ctx, id)
}

func (s *Service) GetDeposit(ctx context.Context, depositId string) (*models.Deposit, error) {
	var deposit models.Deposit
	err := s.db.GetContext(ctx, &deposit, s.rebind(queryGetDeposit), depositId)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", store.ErrDepositNotFound, depositId)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get deposit: %w", err)
	}
	return &deposit, nil
}

// GetDepositByTxHash finds a deposit by credited or claimed hash. An empty asset matches any asset.
func (s *Service) GetDepositByTxHash(ctx context.Context, asset models.Asset, txHash string) (*models.Deposit, error) {
	var deposit models.Deposit
	err := s.db.GetContext(ctx, &deposit, s.rebind(queryGetDepositByTxHash), txHash, txHash, string(asset), string(asset))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: tx %s", store.ErrDepositNotFound, txHash)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get deposit by tx hash: %w", err)
	}
	return &deposit, nil
}

func (s *Service) ListPendingClaims(ctx context.Context, address string, asset models.Asset) ([]models.Deposit, error) {
	var claims []models.Deposit
	if err := s.db.SelectContext(ctx, &claims, s.rebind(queryListPendingClaims), asset, address); err != nil {
		return nil, fmt.Errorf("failed to list pending claims: %w", err)
	}
	zap.L().Debug("Listed pending claims",
		zap.String("address", address),
		zap.String("asset", asset.String()),
		zap.Int("count", len(claims)))
	return claims, nil
}

// ListPendingPairs returns the distinct (custody address, asset) pairs that still have a pending claim.
func (s *Service) ListPendingPairs(ctx context.Context) ([]models.WatchPair, error) {
	var pairs []models.WatchPair
	if err := s.db.SelectContext(ctx, &pairs, queryListPendingPairs); err != nil {
		return nil, fmt.Errorf("failed to list pending pairs: %w", err)
	}
	return pairs, nil
}

func (s *Service) ListUserDeposits(ctx context.Context, userId string) ([]models.Deposit, error) {
	var deposits []models.Deposit
	if err := s.db.SelectContext(ctx, &deposits, s.rebind(queryListUserDeposits), userId); err != nil {
		return nil, fmt.Errorf("failed to list user deposits: %w", err)
	}
	return deposits, nil
}

func (s *Service) ListOrphans(ctx context.Context) ([]models.Deposit, error) {
	var orphans []models.Deposit
	if err := s.db.SelectContext(ctx, &orphans, queryListOrphans); err != nil {
		return nil, fmt.Errorf("failed to list orphaned deposits: %w", err)
	}
	return orphans, nil
}
