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

	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	assignFlag := flag.String("assign", "", "Orphaned deposit id to assign")
	userFlag := flag.String("user", "", "User id receiving the orphaned deposit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	notifier, err := common.BuildNotifier(ctx, cfg, dbService)
	if err != nil {
		logger.Fatal("Failed to initialize notifier", zap.Error(err))
	}

	service := api.NewDepositService(dbService, nil, nil, notifier)

	if *assignFlag != "" {
		credit, err := service.AssignOrphan(ctx, *assignFlag, *userFlag)
		if err != nil {
			logger.Fatal("Failed to assign orphaned deposit",
				zap.String("deposit_id", *assignFlag),
				zap.String("user_id", *userFlag),
				zap.Error(err))
		}
		common.PrintFooter(fmt.Sprintf("Assigned %s to %s: credited %s, new balance %s",
			credit.DepositId, credit.UserId, credit.Amount, credit.BalanceAfter), common.WideWidth)
		return
	}

	orphans, err := service.ListOrphans(ctx)
	if err != nil {
		logger.Fatal("Failed to list orphaned deposits", zap.Error(err))
	}

	common.PrintHeader("ORPHANED DEPOSITS", common.WideWidth)
	for i, d := range orphans {
		fmt.Printf("%s%s  to=%s\n", common.BoxPrefix(i == len(orphans)-1), common.FormatDeposit(d), d.CustodyAddress)
	}
	common.PrintFooter(fmt.Sprintf("%d orphaned deposits awaiting assignment", len(orphans)), common.WideWidth)
}
