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

	"deposit-reconciler-go/internal/chain"
	"deposit-reconciler-go/internal/lock"
	"deposit-reconciler-go/internal/metrics"
	"deposit-reconciler-go/internal/models"
	"deposit-reconciler-go/internal/store"

	"github.com/robfig/cron/v3"
)

const (
	DefaultSchedule       = "@every 30s"
	DefaultMaxConcurrency = 8
	DefaultPairTimeout    = 20 * time.Second
)

// Reconciler is satisfied by *reconciler.Reconciler.
type Reconciler interface {
	Reconcile(ctx context.Context, t models.ExternalTransfer) (*models.ReconcileResult, error)
}

// DepositListenerConfig contains configuration for DepositListener
type DepositListenerConfig struct {
	Store          store.LedgerStore
	Reader         chain.Reader
	Reconciler     Reconciler
	Locker         lock.Locker
	Metrics        *metrics.Metrics
	Schedule       string
	MaxConcurrency int
	PairTimeout    time.Duration
}

// DepositListener periodically sweeps every custody address that has an open
// claim and reconciles whatever the chain reader reports for it.
type DepositListener struct {
	store      store.LedgerStore
	reader     chain.Reader
	reconciler Reconciler
	locker     lock.Locker
	metrics    *metrics.Metrics

	schedule       string
	maxConcurrency int
	pairTimeout    time.Duration

	mu   sync.Mutex
	cron *cron.Cron
	// cancelled by Stop so an in-flight sweep winds down
	stopCancel context.CancelFunc
}

// NewDepositListener creates a new deposit listener
func NewDepositListener(cfg DepositListenerConfig) (*DepositListener, error) {
	if cfg.Store == nil || cfg.Reader == nil || cfg.Reconciler == nil {
		return nil, fmt.Errorf("store, reader and reconciler are required")
	}
	if cfg.Locker == nil {
		cfg.Locker = lock.NewMemoryLocker()
	}
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSchedule
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = DefaultMaxConcurrency
	}
	if cfg.PairTimeout <= 0 {
		cfg.PairTimeout = DefaultPairTimeout
	}

	return &DepositListener{
		store:          cfg.Store,
		reader:         cfg.Reader,
		reconciler:     cfg.Reconciler,
		locker:         cfg.Locker,
		metrics:        cfg.Metrics,
		schedule:       cfg.Schedule,
		maxConcurrency: cfg.MaxConcurrency,
		pairTimeout:    cfg.PairTimeout,
	}, nil
}
