package chain

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"deposit-reconciler-go/internal/models"

	"go.uber.org/zap"
)

const (
	BlockstreamMainnetURL = "https://blockstream.info/api"
	BlockstreamTestnetURL = "https://blockstream.info/testnet/api"
)

type esploraTx struct {
	Txid string `json:"txid"`
	Vin  []struct {
		Prevout *struct {
			ScriptpubkeyAddress string `json:"scriptpubkey_address"`
		} `json:"prevout"`
	} `json:"vin"`
	Vout []struct {
		ScriptpubkeyAddress string `json:"scriptpubkey_address"`
		Value               int64  `json:"value"`
	} `json:"vout"`
	Status struct {
		Confirmed   bool  `json:"confirmed"`
		BlockHeight int64 `json:"block_height"`
		BlockTime   int64 `json:"block_time"`
	} `json:"status"`
}

// EsploraReader reads BTC transfers from a Blockstream-compatible Esplora API.
type EsploraReader struct {
	baseURL string
	fetcher *fetcher
	now     func() time.Time
}

func NewEsploraReader(baseURL string, client *http.Client, requestsPerSec float64) *EsploraReader {
	return &EsploraReader{
		baseURL: strings.TrimRight(baseURL, "/"),
		fetcher: newFetcher("esplora", client, requestsPerSec),
		now:     time.Now,
	}
}

func (r *EsploraReader) FetchTransfers(ctx context.Context, address string, asset models.Asset) ([]models.ExternalTransfer, error) {
	if asset != models.AssetBTC {
		return nil, fmt.Errorf("esplora reader does not support %s", asset)
	}

	var txs []esploraTx
	if err := r.fetcher.getJSON(ctx, r.baseURL+"/address/"+url.PathEscape(address)+"/txs", &txs); err != nil {
		return nil, err
	}

	var tip int64
	for _, tx := range txs {
		if tx.Status.Confirmed {
			if err := r.fetcher.getJSON(ctx, r.baseURL+"/blocks/tip/height", &tip); err != nil {
				return nil, err
			}
			break
		}
	}

	transfers := make([]models.ExternalTransfer, 0, len(txs))
	for _, tx := range txs {
		var sats int64
		for _, out := range tx.Vout {
			if out.ScriptpubkeyAddress == address {
				sats += out.Value
			}
		}
		if sats <= 0 {
			continue
		}

		transfer := models.ExternalTransfer{
			TxHash:     tx.Txid,
			ToAddress:  address,
			Amount:     satoshisToBTC(sats),
			Asset:      models.AssetBTC,
			ObservedAt: r.now().UTC(),
		}
		if len(tx.Vin) > 0 && tx.Vin[0].Prevout != nil {
			transfer.FromAddress = tx.Vin[0].Prevout.ScriptpubkeyAddress
		}
		if tx.Status.Confirmed && tx.Status.BlockHeight > 0 {
			if depth := tip - tx.Status.BlockHeight + 1; depth > 0 {
				transfer.Confirmations = int(depth)
			}
			if tx.Status.BlockTime > 0 {
				transfer.ObservedAt = time.Unix(tx.Status.BlockTime, 0).UTC()
			}
		}
		transfers = append(transfers, transfer)
	}

	zap.L().Debug("Fetched BTC transfers",
		zap.String("address", address),
		zap.Int("transactions", len(txs)),
		zap.Int("incoming", len(transfers)),
		zap.Int64("tip_height", tip))
	return transfers, nil
}
