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
	"os"
	"os/signal"
	"syscall"

	"deposit-reconciler-go/internal/api"
	"deposit-reconciler-go/internal/common"
	"deposit-reconciler-go/internal/config"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	assetsFile := flag.String("assets", "", "Optional path to assets.yaml overriding per-asset explorer settings")
	noListener := flag.Bool("no-listener", false, "Serve HTTP only; rely on webhooks and the cron trigger")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		_, _ = zap.NewProduction()
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}
	if *assetsFile != "" {
		cfg.Listener.AssetsFile = *assetsFile
	}
	if *noListener {
		cfg.Listener.Enabled = false
	}

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	zap.L().Info("Starting deposit reconciler")

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	if cfg.Server.CronSecret == "" {
		zap.L().Warn("CRON_SECRET not set, GET /api/v1/deposits/monitor will reject every request")
	}
	if cfg.Server.AdminToken == "" {
		zap.L().Warn("ADMIN_TOKEN not set, admin routes are disabled")
	}
	if cfg.Server.WebhookSecret == "" {
		zap.L().Warn("WEBHOOK_SECRET not set, webhook signatures are not verified")
	}

	depositService := api.NewDepositService(services.DbService, services.Router, services.Policy, services.Notifier)

	gin.SetMode(gin.ReleaseMode)
	router := api.NewRouter(api.RouterConfig{
		Handlers:   api.NewHandlers(depositService, services.Ingestor, services.Listener),
		CronSecret: cfg.Server.CronSecret,
		AdminToken: cfg.Server.AdminToken,
		Gatherer:   services.Registry,
	})
	server := api.NewServer(cfg.Server.Addr, router, cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout)
	serverErrs := server.Start()

	if cfg.Listener.Enabled {
		if err := services.Listener.Start(ctx); err != nil {
			zap.L().Fatal("Failed to start deposit listener", zap.Error(err))
		}
	} else {
		zap.L().Info("Polling scheduler disabled")
	}

	zap.L().Info("Deposit reconciler running", zap.String("addr", cfg.Server.Addr))
	zap.L().Info("Press Ctrl+C to stop")

	select {
	case <-ctx.Done():
		zap.L().Info("Shutdown signal received, stopping...")
	case err := <-serverErrs:
		zap.L().Error("HTTP server stopped unexpectedly", zap.Error(err))
	}

	services.Listener.Stop()
	if err := server.Shutdown(context.Background()); err != nil {
		zap.L().Warn("Forced HTTP shutdown after timeout", zap.Error(err))
	}
	zap.L().Info("Deposit reconciler stopped")
}
