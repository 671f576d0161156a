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

// Package reconciler turns observed transfers into ledger mutations: a credit
// against the matching pending claim, an orphan record, or nothing at all.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"deposit-reconciler-go/internal/matcher"
	"deposit-reconciler-go/internal/metrics"
	"deposit-reconciler-go/internal/models"
	"deposit-reconciler-go/internal/policy"
	"deposit-reconciler-go/internal/store"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

// ErrInvalidTransfer is returned for transfers missing a hash, an address or a positive amount.
var ErrInvalidTransfer = errors.New("invalid transfer")

const notifyTimeout = 5 * time.Second

// Notifier is told about every credited deposit. Its failures never undo the credit.
type Notifier interface {
	DepositConfirmed(ctx context.Context, result models.ReconcileResult) error
}

type RetryConfig struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

type Config struct {
	Store    store.LedgerStore
	Policy   *policy.Policy
	Notifier Notifier
	Metrics  *metrics.Metrics
	Retry    RetryConfig
}

type Reconciler struct {
	store    store.LedgerStore
	policy   *policy.Policy
	matcher  *matcher.Matcher
	notifier Notifier
	metrics  *metrics.Metrics
	retry    RetryConfig
}

func New(cfg Config) (*Reconciler, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("ledger store is required")
	}
	if cfg.Policy == nil {
		cfg.Policy = policy.Default()
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry.MaxAttempts = 5
	}
	if cfg.Retry.InitialInterval <= 0 {
		cfg.Retry.InitialInterval = 50 * time.Millisecond
	}
	if cfg.Retry.MaxInterval <= 0 {
		cfg.Retry.MaxInterval = time.Second
	}

	return &Reconciler{
		store:    cfg.Store,
		policy:   cfg.Policy,
		matcher:  matcher.New(cfg.Policy),
		notifier: cfg.Notifier,
		metrics:  cfg.Metrics,
		retry:    cfg.Retry,
	}, nil
}

func (r *Reconciler) Policy() *policy.Policy {
	return r.policy
}

// Reconcile applies one observed transfer. Replaying the same transfer any number
// of times credits it at most once.
func (r *Reconciler) Reconcile(ctx context.Context, t models.ExternalTransfer) (*models.ReconcileResult, error) {
	if err := validateTransfer(t); err != nil {
		return nil, err
	}

	exists, err := r.store.TransferExists(ctx, t.Asset, t.TxHash)
	if err != nil {
		return nil, err
	}
	if exists {
		return r.finish(t, resultFor(t, models.OutcomeDuplicate)), nil
	}

	if !r.policy.IsFinal(t) {
		zap.L().Debug("Transfer below confirmation threshold, holding",
			zap.String("tx_hash", t.TxHash),
			zap.String("asset", t.Asset.String()),
			zap.Int("confirmations", t.Confirmations),
			zap.Int("required", r.policy.RequiredConfirmations(t.Asset)))
		return r.finish(t, resultFor(t, models.OutcomeHeld)), nil
	}

	result, err := backoff.Retry(ctx, func() (*models.ReconcileResult, error) {
		res, err := r.attempt(ctx, t)
		if errors.Is(err, store.ErrConcurrentModification) {
			r.metrics.ObserveConflictRetry()
			zap.L().Warn("Ledger write conflict, retrying",
				zap.String("tx_hash", t.TxHash),
				zap.Error(err))
			return nil, err
		}
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		return res, nil
	}, backoff.WithBackOff(r.newBackOff()), backoff.WithMaxTries(uint(r.retry.MaxAttempts)))

	if errors.Is(err, store.ErrConcurrentModification) {
		zap.L().Error("Ledger write conflict persisted, recording transfer as orphan",
			zap.String("tx_hash", t.TxHash),
			zap.String("asset", t.Asset.String()),
			zap.Int("attempts", r.retry.MaxAttempts))
		result, err = r.recordOrphan(ctx, t)
	}
	if err != nil {
		return nil, err
	}

	if result.Outcome == models.OutcomeMatched {
		r.notify(ctx, *result)
	}
	return r.finish(t, result), nil
}

// attempt runs one match-and-credit pass against fresh claim data.
func (r *Reconciler) attempt(ctx context.Context, t models.ExternalTransfer) (*models.ReconcileResult, error) {
	claims, err := r.store.ListPendingClaims(ctx, t.ToAddress, t.Asset)
	if err != nil {
		return nil, err
	}

	candidate := r.matcher.FindCandidateClaim(t, claims)
	if candidate == nil {
		return r.recordOrphan(ctx, t)
	}

	credit, err := r.store.ConfirmClaim(ctx, store.ConfirmClaimParams{
		ClaimId:     candidate.Id,
		TxHash:      t.TxHash,
		Asset:       t.Asset,
		Amount:      t.Amount,
		FromAddress: t.FromAddress,
		ObservedAt:  t.ObservedAt,
	})
	if errors.Is(err, store.ErrDuplicateTransaction) {
		return resultFor(t, models.OutcomeDuplicate), nil
	}
	if err != nil {
		return nil, err
	}

	result := resultFor(t, models.OutcomeMatched)
	result.DepositId = credit.DepositId
	result.UserId = credit.UserId
	result.NewBalance = credit.BalanceAfter
	return result, nil
}

func (r *Reconciler) recordOrphan(ctx context.Context, t models.ExternalTransfer) (*models.ReconcileResult, error) {
	orphan, err := r.store.RecordOrphan(ctx, t)
	if errors.Is(err, store.ErrDuplicateTransaction) {
		return resultFor(t, models.OutcomeDuplicate), nil
	}
	if err != nil {
		return nil, err
	}

	result := resultFor(t, models.OutcomeUnmatched)
	result.DepositId = orphan.Id
	return result, nil
}

func (r *Reconciler) notify(ctx context.Context, result models.ReconcileResult) {
	if r.notifier == nil {
		return
	}
	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	if err := r.notifier.DepositConfirmed(notifyCtx, result); err != nil {
		zap.L().Warn("Failed to record deposit notification",
			zap.String("deposit_id", result.DepositId),
			zap.String("user_id", result.UserId),
			zap.Error(err))
	}
}

func (r *Reconciler) finish(t models.ExternalTransfer, result *models.ReconcileResult) *models.ReconcileResult {
	r.metrics.ObserveOutcome(t.Asset, result.Outcome)
	if result.Outcome != models.OutcomeHeld {
		zap.L().Info("Transfer reconciled",
			zap.String("tx_hash", t.TxHash),
			zap.String("asset", t.Asset.String()),
			zap.String("amount", t.Amount.String()),
			zap.String("outcome", string(result.Outcome)),
			zap.String("deposit_id", result.DepositId))
	}
	return result
}

func (r *Reconciler) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.retry.InitialInterval
	b.MaxInterval = r.retry.MaxInterval
	return b
}

func resultFor(t models.ExternalTransfer, outcome models.Outcome) *models.ReconcileResult {
	return &models.ReconcileResult{
		Outcome: outcome,
		TxHash:  t.TxHash,
		Asset:   t.Asset,
		Amount:  t.Amount,
	}
}

func validateTransfer(t models.ExternalTransfer) error {
	if t.TxHash == "" {
		return fmt.Errorf("%w: missing tx hash", ErrInvalidTransfer)
	}
	if t.ToAddress == "" {
		return fmt.Errorf("%w: missing receiving address for %s", ErrInvalidTransfer, t.TxHash)
	}
	if asset, err := models.ParseAsset(string(t.Asset)); err != nil || asset != t.Asset {
		return fmt.Errorf("%w: unsupported asset %q", ErrInvalidTransfer, t.Asset)
	}
	if !t.Amount.IsPositive() {
		return fmt.Errorf("%w: non-positive amount %s for %s", ErrInvalidTransfer, t.Amount, t.TxHash)
	}
	return nil
}
