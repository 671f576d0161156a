package main

import (
	"context"
	"flag"
	"fmt"

	"deposit-reconciler-go/internal/api"
	"deposit-reconciler-go/internal/common"
	"deposit-reconciler-go/internal/config"
	"deposit-reconciler-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	userFlag := flag.String("user", "", "User id submitting the claim")
	assetFlag := flag.String("asset", "", "Asset: BTC, ETH or USDT")
	addressFlag := flag.String("address", "", "Custody address the user paid into")
	amountFlag := flag.String("amount", "", "Claimed amount in whole units")
	txFlag := flag.String("tx", "", "Transaction hash the user reported (optional)")
	showFlag := flag.String("show", "", "Print a deposit by id instead of creating one")
	listFlag := flag.Bool("list", false, "List the user's deposits instead of creating one")
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

	service := api.NewDepositService(dbService, nil, nil, nil)

	switch {
	case *showFlag != "":
		view, err := service.DepositStatus(ctx, models.StatusRequest{DepositId: *showFlag})
		if err != nil {
			logger.Fatal("Failed to load deposit", zap.Error(err))
		}
		common.PrintHeader("DEPOSIT", common.WideWidth)
		fmt.Println(common.FormatDeposit(*view.Deposit))
		if view.Deposit.RejectionReason != nil {
			fmt.Printf("rejected: %s\n", *view.Deposit.RejectionReason)
		}

	case *listFlag:
		deposits, err := service.UserDeposits(ctx, *userFlag)
		if err != nil {
			logger.Fatal("Failed to list deposits", zap.Error(err))
		}
		common.PrintHeader(fmt.Sprintf("DEPOSITS FOR %s", *userFlag), common.WideWidth)
		for _, d := range deposits {
			fmt.Println(common.FormatDeposit(d))
		}
		common.PrintFooter(fmt.Sprintf("%d deposits", len(deposits)), common.WideWidth)

	default:
		amount, err := decimal.NewFromString(*amountFlag)
		if err != nil {
			logger.Fatal("Invalid --amount", zap.String("amount", *amountFlag), zap.Error(err))
		}
		claim, err := service.SubmitClaim(ctx, *userFlag, *assetFlag, *addressFlag, amount, *txFlag)
		if err != nil {
			logger.Fatal("Failed to submit claim", zap.Error(err))
		}
		common.PrintHeader("PENDING CLAIM RECORDED", common.WideWidth)
		fmt.Println(common.FormatDeposit(*claim))
	}
}
