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

package prime

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"deposit-reconciler-go/internal/models"

	"github.com/coinbase-samples/prime-sdk-go/client"
	"github.com/coinbase-samples/prime-sdk-go/credentials"
	"github.com/coinbase-samples/prime-sdk-go/model"
	"github.com/coinbase-samples/prime-sdk-go/portfolios"
	"github.com/coinbase-samples/prime-sdk-go/transactions"
	"github.com/coinbase-samples/prime-sdk-go/wallets"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const defaultPortfolioName = "Default Portfolio"

// Service reads custody wallets and their deposits from Coinbase Prime.
type Service struct {
	client          client.RestClient
	portfoliosSvc   portfolios.PortfoliosService
	walletsSvc      wallets.WalletsService
	transactionsSvc transactions.TransactionsService
}

func NewService(creds *credentials.Credentials, httpClient *http.Client) (*Service, error) {
	if creds == nil {
		return nil, fmt.Errorf("prime credentials are required")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}

	restClient := client.NewRestClient(creds, *httpClient)

	return &Service{
		client:          restClient,
		portfoliosSvc:   portfolios.NewPortfoliosService(restClient),
		walletsSvc:      wallets.NewWalletsService(restClient),
		transactionsSvc: transactions.NewTransactionsService(restClient),
	}, nil
}

// LoadCredentials reads PRIME_ACCESS_KEY, PRIME_PASSPHRASE and PRIME_SIGNING_KEY.
// ok is false when none are set, so the Prime source can stay disabled.
func LoadCredentials() (creds *credentials.Credentials, ok bool, err error) {
	accessKey := os.Getenv("PRIME_ACCESS_KEY")
	passphrase := os.Getenv("PRIME_PASSPHRASE")
	signingKey := os.Getenv("PRIME_SIGNING_KEY")

	if accessKey == "" && passphrase == "" && signingKey == "" {
		return nil, false, nil
	}
	if accessKey == "" || passphrase == "" || signingKey == "" {
		return nil, false, fmt.Errorf("incomplete Prime API credentials: PRIME_ACCESS_KEY, PRIME_PASSPHRASE and PRIME_SIGNING_KEY are all required")
	}

	return &credentials.Credentials{
		AccessKey:  accessKey,
		Passphrase: passphrase,
		SigningKey: signingKey,
	}, true, nil
}

func (s *Service) ListPortfolios(ctx context.Context) ([]models.Portfolio, error) {
	response, err := s.portfoliosSvc.ListPortfolios(ctx, &portfolios.ListPortfoliosRequest{})
	if err != nil {
		return nil, fmt.Errorf("unable to list portfolios: %w", err)
	}

	portfolioList := make([]models.Portfolio, len(response.Portfolios))
	for i, p := range response.Portfolios {
		portfolioList[i] = models.Portfolio{Id: p.Id, Name: p.Name}
	}
	return portfolioList, nil
}

func (s *Service) FindDefaultPortfolio(ctx context.Context) (*models.Portfolio, error) {
	portfolioList, err := s.ListPortfolios(ctx)
	if err != nil {
		return nil, err
	}

	for _, portfolio := range portfolioList {
		if portfolio.Name == defaultPortfolioName {
			return &portfolio, nil
		}
	}
	return nil, fmt.Errorf("default portfolio not found")
}

func (s *Service) ListWallets(ctx context.Context, portfolioId, walletType string, symbols []string) ([]models.Wallet, error) {
	request := &wallets.ListWalletsRequest{
		PortfolioId: portfolioId,
		Type:        walletType,
		Symbols:     symbols,
	}

	response, err := s.walletsSvc.ListWallets(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("unable to list wallets: %w", err)
	}

	walletList := make([]models.Wallet, len(response.Wallets))
	for i, w := range response.Wallets {
		walletList[i] = models.Wallet{
			Id:     w.Id,
			Name:   w.Name,
			Symbol: w.Symbol,
			Type:   w.Type,
		}
	}
	return walletList, nil
}

// ListWalletDeposits returns the wallet's deposits created since start.
func (s *Service) ListWalletDeposits(ctx context.Context, portfolioId, walletId string, start time.Time) ([]models.CustodyDeposit, error) {
	request := &transactions.ListWalletTransactionsRequest{
		PortfolioId: portfolioId,
		WalletId:    walletId,
		Start:       start,
		Types:       []string{"DEPOSIT"},
		Pagination: &model.PaginationParams{
			Limit: 500,
		},
	}

	response, err := s.transactionsSvc.ListWalletTransactions(ctx, request)
	if err != nil {
		zap.L().Error("Failed to list wallet transactions",
			zap.String("wallet_id", walletId),
			zap.Error(err))
		return nil, fmt.Errorf("unable to list wallet transactions: %w", err)
	}

	deposits := make([]models.CustodyDeposit, 0, len(response.Transactions))
	for _, tx := range response.Transactions {
		if !strings.EqualFold(tx.Type, "DEPOSIT") {
			continue
		}

		amount, err := decimal.NewFromString(tx.Amount)
		if err != nil {
			zap.L().Warn("Skipping Prime deposit with unparseable amount",
				zap.String("id", tx.Id),
				zap.String("amount", tx.Amount))
			continue
		}

		deposit := models.CustodyDeposit{
			Id:            tx.Id,
			WalletId:      walletId,
			Symbol:        tx.Symbol,
			Status:        tx.Status,
			Amount:        amount.Abs(),
			TransactionId: tx.TransactionId,
			Network:       tx.Network,
			CreatedAt:     tx.Created,
		}
		if tx.TransferTo != nil {
			deposit.ToAddress = tx.TransferTo.Address
		}
		if tx.TransferFrom != nil {
			deposit.FromAddress = tx.TransferFrom.Address
		}
		deposits = append(deposits, deposit)
	}

	zap.L().Debug("Prime deposits received",
		zap.String("wallet_id", walletId),
		zap.Int("count", len(deposits)))
	return deposits, nil
}
