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

// Package chain reads incoming transfers for custody addresses from public
// block explorers and from the Prime custodian.
package chain

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"deposit-reconciler-go/internal/models"
)

// ErrUpstreamUnavailable is returned for any network, status, decode or timeout failure.
// Callers must never read it as "no transfers".
var ErrUpstreamUnavailable = errors.New("upstream unavailable")

// Reader lists transfers received by address, in whole-coin units, in upstream order.
type Reader interface {
	FetchTransfers(ctx context.Context, address string, asset models.Asset) ([]models.ExternalTransfer, error)
}

func upstreamError(source string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrUpstreamUnavailable, source, err)
}

// Router dispatches to the reader registered for each asset.
type Router struct {
	mu      sync.RWMutex
	readers map[models.Asset]Reader
}

func NewRouter() *Router {
	return &Router{readers: make(map[models.Asset]Reader)}
}

func (r *Router) Register(asset models.Asset, reader Reader) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.readers[asset] = reader
}

func (r *Router) Supports(asset models.Asset) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.readers[asset]
	return ok
}

func (r *Router) FetchTransfers(ctx context.Context, address string, asset models.Asset) ([]models.ExternalTransfer, error) {
	r.mu.RLock()
	reader, ok := r.readers[asset]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no chain reader configured for %s", asset)
	}
	return reader.FetchTransfers(ctx, address, asset)
}
