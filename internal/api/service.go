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

package api

import (
	"context"
	"errors"
	"fmt"

	"deposit-reconciler-go/internal/chain"
	"deposit-reconciler-go/internal/policy"
	"deposit-reconciler-go/internal/reconciler"
	"deposit-reconciler-go/internal/store"
)

// ErrInvalidRequest marks caller mistakes that map to 400.
var ErrInvalidRequest = errors.New("invalid request")

// DepositService is the query and administration surface over the ledger store.
type DepositService struct {
	db       store.LedgerStore
	reader   chain.Reader
	policy   *policy.Policy
	notifier reconciler.Notifier
}

// NewDepositService builds the service. reader and notifier may be nil for
// tools that only read the ledger.
func NewDepositService(db store.LedgerStore, reader chain.Reader, p *policy.Policy, notifier reconciler.Notifier) *DepositService {
	if p == nil {
		p = policy.Default()
	}
	return &DepositService{
		db:       db,
		reader:   reader,
		policy:   p,
		notifier: notifier,
	}
}

func (s *DepositService) HealthCheck(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}
