package listener

import (
	"context"
	"errors"

	"deposit-reconciler-go/internal/chain"
	"deposit-reconciler-go/internal/models"

	"go.uber.org/zap"
)

// SweepPair fetches the transfers for one pair and reconciles them in upstream
// order. A held pair lock means another sweep is on it and the pair is skipped.
func (d *DepositListener) SweepPair(ctx context.Context, pair models.WatchPair) models.PairResult {
	result := models.PairResult{Address: pair.Address, Asset: pair.Asset}
	defer func() { d.metrics.ObservePair(result) }()

	unlock, ok, err := d.locker.TryLock(ctx, pair.Key())
	if err != nil {
		result.Error = err.Error()
		zap.L().Error("Failed to acquire pair lock", zap.String("pair", pair.Key()), zap.Error(err))
		return result
	}
	if !ok {
		result.Skipped = true
		zap.L().Debug("Pair already being swept, skipping", zap.String("pair", pair.Key()))
		return result
	}
	defer unlock()

	pairCtx, cancel := context.WithTimeout(ctx, d.pairTimeout)
	defer cancel()

	transfers, err := d.reader.FetchTransfers(pairCtx, pair.Address, pair.Asset)
	if err != nil {
		if errors.Is(err, chain.ErrUpstreamUnavailable) || errors.Is(err, context.DeadlineExceeded) {
			d.metrics.ObserveUpstreamError(pair.Asset)
		}
		result.Error = err.Error()
		zap.L().Warn("Failed to fetch transfers, will retry next sweep",
			zap.String("address", pair.Address),
			zap.String("asset", pair.Asset.String()),
			zap.Error(err))
		return result
	}

	result.Transfers = len(transfers)
	result.Outcomes = make(map[models.Outcome]int)
	for _, t := range transfers {
		outcome, err := d.reconciler.Reconcile(pairCtx, t)
		if err != nil {
			result.Error = err.Error()
			zap.L().Error("Failed to reconcile transfer",
				zap.String("tx_hash", t.TxHash),
				zap.String("address", pair.Address),
				zap.String("asset", pair.Asset.String()),
				zap.Error(err))
			return result
		}
		result.Outcomes[outcome.Outcome]++
	}

	result.Success = true
	return result
}
