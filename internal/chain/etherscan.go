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

package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"deposit-reconciler-go/internal/models"

	"go.uber.org/zap"
)

const (
	EtherscanMainnetURL = "https://api.etherscan.io/api"
	EtherscanTestnetURL = "https://api-sepolia.etherscan.io/api"

	// USDTMainnetContract is Tether's ERC-20 contract on Ethereum mainnet.
	USDTMainnetContract = "0xdAC17F958D2ee523a2206206994597C13D831ec7"

	etherscanNoTransactions = "No transactions found"
)

type etherscanEnvelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

type etherscanTx struct {
	Hash            string `json:"hash"`
	From            string `json:"from"`
	To              string `json:"to"`
	Value           string `json:"value"`
	Confirmations   string `json:"confirmations"`
	TimeStamp       string `json:"timeStamp"`
	IsError         string `json:"isError"`
	ContractAddress string `json:"contractAddress"`
	TokenDecimal    string `json:"tokenDecimal"`
}

type EtherscanConfig struct {
	BaseURL        string
	ApiKey         string
	USDTContract   string
	Client         *http.Client
	RequestsPerSec float64
}

// EtherscanReader reads ETH (txlist) and USDT (tokentx) transfers from an Etherscan-compatible API.
type EtherscanReader struct {
	baseURL      string
	apiKey       string
	usdtContract string
	fetcher      *fetcher
}

func NewEtherscanReader(cfg EtherscanConfig) *EtherscanReader {
	contract := cfg.USDTContract
	if contract == "" {
		contract = USDTMainnetContract
	}
	return &EtherscanReader{
		baseURL:      cfg.BaseURL,
		apiKey:       cfg.ApiKey,
		usdtContract: contract,
		fetcher:      newFetcher("etherscan", cfg.Client, cfg.RequestsPerSec),
	}
}

func (r *EtherscanReader) FetchTransfers(ctx context.Context, address string, asset models.Asset) ([]models.ExternalTransfer, error) {
	params := url.Values{}
	params.Set("module", "account")
	params.Set("address", address)
	params.Set("startblock", "0")
	params.Set("endblock", "99999999")
	params.Set("sort", "desc")
	if r.apiKey != "" {
		params.Set("apikey", r.apiKey)
	}

	switch asset {
	case models.AssetETH:
		params.Set("action", "txlist")
	case models.AssetUSDT:
		params.Set("action", "tokentx")
		params.Set("contractaddress", r.usdtContract)
	default:
		return nil, fmt.Errorf("etherscan reader does not support %s", asset)
	}

	var envelope etherscanEnvelope
	if err := r.fetcher.getJSON(ctx, r.baseURL+"?"+params.Encode(), &envelope); err != nil {
		return nil, err
	}

	if envelope.Status != "1" {
		if strings.EqualFold(envelope.Message, etherscanNoTransactions) {
			return []models.ExternalTransfer{}, nil
		}
		return nil, upstreamError("etherscan", fmt.Errorf("status %q: %s", envelope.Status, envelope.Message))
	}

	var rows []etherscanTx
	if err := json.Unmarshal(envelope.Result, &rows); err != nil {
		return nil, upstreamError("etherscan", fmt.Errorf("unmarshal result: %w", err))
	}

	transfers := make([]models.ExternalTransfer, 0, len(rows))
	for _, row := range rows {
		if !strings.EqualFold(row.To, address) {
			continue
		}
		if asset == models.AssetETH && row.IsError == "1" {
			continue
		}
		if asset == models.AssetUSDT && !strings.EqualFold(row.ContractAddress, r.usdtContract) {
			continue
		}

		transfer, err := r.toTransfer(row, asset)
		if err != nil {
			return nil, upstreamError("etherscan", err)
		}
		if transfer.Amount.IsZero() {
			continue
		}
		transfers = append(transfers, transfer)
	}

	zap.L().Debug("Fetched EVM transfers",
		zap.String("address", address),
		zap.String("asset", asset.String()),
		zap.Int("rows", len(rows)),
		zap.Int("incoming", len(transfers)))
	return transfers, nil
}

func (r *EtherscanReader) toTransfer(row etherscanTx, asset models.Asset) (models.ExternalTransfer, error) {
	decimals := int64(ethDecimals)
	if asset == models.AssetUSDT {
		var err error
		decimals, err = strconv.ParseInt(row.TokenDecimal, 10, 32)
		if err != nil {
			return models.ExternalTransfer{}, fmt.Errorf("invalid tokenDecimal %q for %s", row.TokenDecimal, row.Hash)
		}
	}

	amount, err := ToWholeUnits(row.Value, int32(decimals))
	if err != nil {
		return models.ExternalTransfer{}, err
	}

	confirmations, err := strconv.Atoi(row.Confirmations)
	if err != nil {
		return models.ExternalTransfer{}, fmt.Errorf("invalid confirmations %q for %s", row.Confirmations, row.Hash)
	}

	observedAt := time.Now().UTC()
	if ts, err := strconv.ParseInt(row.TimeStamp, 10, 64); err == nil && ts > 0 {
		observedAt = time.Unix(ts, 0).UTC()
	}

	return models.ExternalTransfer{
		TxHash:        row.Hash,
		FromAddress:   row.From,
		ToAddress:     row.To,
		Amount:        amount,
		Confirmations: confirmations,
		Asset:         asset,
		ObservedAt:    observedAt,
	}, nil
}
