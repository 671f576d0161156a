package chain

import (
	"context"
	"fmt"
	"time"

	"deposit-reconciler-go/internal/models"
	"deposit-reconciler-go/internal/policy"

	"go.uber.org/zap"
)

const primeWalletType = "TRADING"

// CustodySource is the subset of the Prime service the reader needs.
type CustodySource interface {
	ListWallets(ctx context.Context, portfolioId, walletType string, symbols []string) ([]models.Wallet, error)
	ListWalletDeposits(ctx context.Context, portfolioId, walletId string, start time.Time) ([]models.CustodyDeposit, error)
}

// PrimeReader reports deposits seen by the Prime custodian. Imported deposits are
// reported at the policy's required depth; anything else at zero confirmations.
type PrimeReader struct {
	source      CustodySource
	portfolioId string
	policy      *policy.Policy
	lookback    time.Duration
	now         func() time.Time
}

func NewPrimeReader(source CustodySource, portfolioId string, p *policy.Policy, lookback time.Duration) *PrimeReader {
	if lookback <= 0 {
		lookback = 72 * time.Hour
	}
	return &PrimeReader{
		source:      source,
		portfolioId: portfolioId,
		policy:      p,
		lookback:    lookback,
		now:         time.Now,
	}
}

func (r *PrimeReader) FetchTransfers(ctx context.Context, address string, asset models.Asset) ([]models.ExternalTransfer, error) {
	wallets, err := r.source.ListWallets(ctx, r.portfolioId, primeWalletType, []string{asset.String()})
	if err != nil {
		return nil, upstreamError("prime", err)
	}

	start := r.now().UTC().Add(-r.lookback)
	var transfers []models.ExternalTransfer
	for _, wallet := range wallets {
		deposits, err := r.source.ListWalletDeposits(ctx, r.portfolioId, wallet.Id, start)
		if err != nil {
			return nil, upstreamError("prime", fmt.Errorf("wallet %s: %w", wallet.Id, err))
		}

		for _, deposit := range deposits {
			if !asset.SameAddress(deposit.ToAddress, address) || !deposit.Amount.IsPositive() {
				continue
			}

			txHash := deposit.TransactionId
			if txHash == "" {
				txHash = deposit.Id
			}

			confirmations := 0
			if deposit.Final() {
				confirmations = r.policy.RequiredConfirmations(asset)
			}

			transfers = append(transfers, models.ExternalTransfer{
				TxHash:        txHash,
				FromAddress:   deposit.FromAddress,
				ToAddress:     deposit.ToAddress,
				Amount:        deposit.Amount,
				Confirmations: confirmations,
				Asset:         asset,
				ObservedAt:    deposit.CreatedAt.UTC(),
			})
		}
	}

	zap.L().Debug("Fetched Prime custody deposits",
		zap.String("address", address),
		zap.String("asset", asset.String()),
		zap.Int("wallets", len(wallets)),
		zap.Int("incoming", len(transfers)))
	return transfers, nil
}
