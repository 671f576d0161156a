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

package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Asset is a supported on-chain asset
type Asset string

const (
	AssetBTC  Asset = "BTC"
	AssetETH  Asset = "ETH"
	AssetUSDT Asset = "USDT"
)

// SupportedAssets lists every asset the reconciler watches
var SupportedAssets = []Asset{AssetBTC, AssetETH, AssetUSDT}

// ParseAsset accepts any casing of a supported asset symbol
func ParseAsset(s string) (Asset, error) {
	a := Asset(strings.ToUpper(strings.TrimSpace(s)))
	switch a {
	case AssetBTC, AssetETH, AssetUSDT:
		return a, nil
	}
	return "", fmt.Errorf("unsupported asset: %q", s)
}

func (a Asset) String() string {
	return string(a)
}

// IsEVM reports whether the asset lives on Ethereum, where hex addresses are case-insensitive
func (a Asset) IsEVM() bool {
	return a == AssetETH || a == AssetUSDT
}

// SameAddress compares two addresses using the asset's address rules
func (a Asset) SameAddress(x, y string) bool {
	if a.IsEVM() {
		return strings.EqualFold(x, y)
	}
	return x == y
}

// DepositStatus is the lifecycle state of a deposit row
type DepositStatus string

const (
	DepositStatusPending   DepositStatus = "pending"
	DepositStatusConfirmed DepositStatus = "confirmed"
	DepositStatusRejected  DepositStatus = "rejected"
)

// ExternalTransfer is a transfer observed on a public chain or pushed by a webhook.
// Amount is in whole-coin units.
type ExternalTransfer struct {
	TxHash        string          `json:"tx_hash"`
	FromAddress   string          `json:"from_address,omitempty"`
	ToAddress     string          `json:"to_address"`
	Amount        decimal.Decimal `json:"amount"`
	Confirmations int             `json:"confirmations"`
	Asset         Asset           `json:"asset"`
	ObservedAt    time.Time       `json:"observed_at"`
}

// Deposit is a row of the deposits table. A pending row is a user claim;
// a confirmed row without a user is an orphaned deposit.
type Deposit struct {
	Id              string              `db:"id" json:"id"`
	UserId          *string             `db:"user_id" json:"user_id"`
	Asset           Asset               `db:"asset" json:"asset"`
	ClaimedAmount   decimal.Decimal     `db:"claimed_amount" json:"claimed_amount"`
	CreditedAmount  decimal.NullDecimal `db:"credited_amount" json:"credited_amount"`
	CustodyAddress  string              `db:"custody_address" json:"custody_address"`
	FromAddress     *string             `db:"from_address" json:"from_address,omitempty"`
	Status          DepositStatus       `db:"status" json:"status"`
	TxHash          *string             `db:"tx_hash" json:"tx_hash,omitempty"`
	ClaimedTxHash   *string             `db:"claimed_tx_hash" json:"claimed_tx_hash,omitempty"`
	RejectionReason *string             `db:"rejection_reason" json:"rejection_reason,omitempty"`
	CreatedAt       time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time           `db:"updated_at" json:"updated_at"`
	ConfirmedAt     *time.Time          `db:"confirmed_at" json:"confirmed_at,omitempty"`
}

func (d *Deposit) IsPending() bool {
	return d.Status == DepositStatusPending
}

func (d *Deposit) IsOrphan() bool {
	return d.Status == DepositStatusConfirmed && d.UserId == nil
}

// WatchPair is a custody address with at least one pending claim for the asset
type WatchPair struct {
	Address string `db:"custody_address" json:"address"`
	Asset   Asset  `db:"asset" json:"asset"`
}

func (p WatchPair) Key() string {
	return fmt.Sprintf("%s:%s", p.Asset, strings.ToLower(p.Address))
}

// Outcome is the result of reconciling one external transfer
type Outcome string

const (
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeMatched   Outcome = "matched"
	OutcomeUnmatched Outcome = "unmatched"
	// OutcomeHeld means the transfer is below its confirmation threshold; nothing was written.
	OutcomeHeld Outcome = "held"
)

// ReconcileResult describes what happened to a transfer
type ReconcileResult struct {
	Outcome    Outcome         `json:"outcome"`
	TxHash     string          `json:"tx_hash"`
	Asset      Asset           `json:"asset"`
	DepositId  string          `json:"deposit_id,omitempty"`
	UserId     string          `json:"user_id,omitempty"`
	Amount     decimal.Decimal `json:"amount"`
	NewBalance decimal.Decimal `json:"new_balance,omitempty"`
}
