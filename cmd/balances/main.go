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

package main

import (
	"context"
	"flag"
	"fmt"

	"deposit-reconciler-go/internal/api"
	"deposit-reconciler-go/internal/common"
	"deposit-reconciler-go/internal/config"
	"deposit-reconciler-go/internal/models"

	"go.uber.org/zap"
)

func printEntries(entries []models.LedgerEntry) {
	for i, entry := range entries {
		fmt.Printf("%s %-5s %+18s  %18s -> %-18s %s  %s\n",
			common.BoxPrefix(i == len(entries)-1),
			entry.Asset,
			entry.Amount.String(),
			entry.BalanceBefore.String(),
			entry.BalanceAfter.String(),
			entry.CreatedAt.Format("2006-01-02 15:04:05"),
			entry.Reference)
	}
}

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	userFlag := flag.String("user", "", "User id to report on (required)")
	limitFlag := flag.Int("limit", 20, "Number of ledger entries to show")
	flag.Parse()

	if *userFlag == "" {
		logger.Fatal("--user is required")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	// read-only: no chain readers needed
	logger.Info("Connecting to database", zap.String("driver", cfg.Database.Driver))
	dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	service := api.NewDepositService(dbService, nil, nil, nil)

	view, err := service.UserBalance(ctx, *userFlag)
	if err != nil {
		logger.Fatal("Failed to load balance", zap.Error(err))
	}
	entries, err := service.LedgerHistory(ctx, *userFlag, *limitFlag)
	if err != nil {
		logger.Fatal("Failed to load ledger history", zap.Error(err))
	}

	common.PrintHeader("USER BALANCE REPORT", common.DefaultWidth)
	fmt.Printf("\n┌─ User: %s\n", view.UserId)
	fmt.Printf("│  Balance: %s (v%d)\n", view.Balance.String(), view.Version)
	common.PrintBoxSeparator(78)
	printEntries(entries)

	check := "OK, balance equals the sum of ledger entries"
	if !view.Consistent {
		check = "MISMATCH: " + view.Error
	}
	common.PrintFooter("LEDGER CHECK: "+check, common.DefaultWidth)

	logger.Info("Balance query completed",
		zap.String("user_id", view.UserId),
		zap.Int("entries_shown", len(entries)),
		zap.Bool("consistent", view.Consistent))
}
