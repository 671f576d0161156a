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

package listener

import (
	"context"
	"fmt"
	"sync"
	"time"

	"deposit-reconciler-go/internal/models"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Start registers the sweep on the configured schedule. A tick that fires while
// the previous sweep is still running is skipped.
func (d *DepositListener) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cron != nil {
		return fmt.Errorf("deposit listener already started")
	}

	logger := cronLogger{}
	c := cron.New(cron.WithLogger(logger), cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)))

	runCtx, cancel := context.WithCancel(ctx)
	if _, err := c.AddFunc(d.schedule, func() {
		if _, err := d.SweepAll(runCtx); err != nil {
			zap.L().Error("Deposit sweep failed", zap.Error(err))
		}
	}); err != nil {
		cancel()
		return fmt.Errorf("invalid listener schedule %q: %w", d.schedule, err)
	}

	d.cron = c
	d.stopCancel = cancel
	c.Start()

	zap.L().Info("Deposit listener started",
		zap.String("schedule", d.schedule),
		zap.Int("max_concurrency", d.maxConcurrency),
		zap.Duration("pair_timeout", d.pairTimeout))
	return nil
}

// Stop gracefully stops the deposit listener, waiting for a running sweep.
func (d *DepositListener) Stop() {
	d.mu.Lock()
	c, cancel := d.cron, d.stopCancel
	d.cron = nil
	d.mu.Unlock()

	if c == nil {
		return
	}

	zap.L().Info("Stopping deposit listener")
	cancel()
	<-c.Stop().Done()
	zap.L().Info("Deposit listener stopped")
}

// SweepAll checks every (address, asset) pair that has at least one pending
// claim. Pairs run in parallel up to the concurrency limit; one pair failing
// never stops the others.
func (d *DepositListener) SweepAll(ctx context.Context) (*models.SweepReport, error) {
	started := time.Now().UTC()

	pairs, err := d.store.ListPendingPairs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending pairs: %w", err)
	}

	report := &models.SweepReport{StartedAt: started, Pairs: make([]models.PairResult, 0, len(pairs))}
	if len(pairs) == 0 {
		zap.L().Debug("No pending claims to sweep")
		report.Duration = time.Since(started).String()
		return report, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.maxConcurrency)

	for _, pair := range pairs {
		g.Go(func() error {
			result := d.SweepPair(gctx, pair)
			mu.Lock()
			report.Add(result)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	elapsed := time.Since(started)
	report.Duration = elapsed.String()
	d.metrics.ObserveSweep(elapsed)

	fields := []zap.Field{
		zap.Int("pairs", len(pairs)),
		zap.Int("succeeded", report.Succeeded),
		zap.Int("failed", report.Failed),
		zap.Int("skipped", report.Skipped),
		zap.Duration("duration", elapsed),
	}
	if report.Failed > 0 {
		zap.L().Warn("Deposit sweep completed with failures", fields...)
	} else {
		zap.L().Info("Deposit sweep completed", fields...)
	}
	return report, nil
}

type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	zap.S().Debugw(msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	zap.S().Errorw(msg, append(keysAndValues, "error", err)...)
}
