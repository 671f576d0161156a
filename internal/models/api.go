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
	"github.com/shopspring/decimal"
)

// MonitorRequest triggers an immediate sweep of one (address, asset) pair
type MonitorRequest struct {
	WalletAddress string `json:"walletAddress" binding:"required"`
	CryptoType    string `json:"cryptoType" binding:"required,oneof=BTC ETH USDT btc eth usdt"`
	UserId        string `json:"userId,omitempty"`
}

// StatusRequest looks up a deposit by id or by transaction hash
type StatusRequest struct {
	DepositId string `json:"depositId,omitempty"`
	TxHash    string `json:"txHash,omitempty"`
	Asset     string `json:"asset,omitempty"`
}

// AssignOrphanRequest attaches an orphaned deposit to a user
type AssignOrphanRequest struct {
	UserId string `json:"userId" binding:"required"`
}

// ApproveRequest manually confirms a pending claim
type ApproveRequest struct {
	TxHash string `json:"txHash,omitempty"`
}

// RejectRequest manually rejects a pending claim
type RejectRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}

// DepositStatusView is a deposit with live chain data attached when still pending
type DepositStatusView struct {
	Deposit               *Deposit `json:"deposit"`
	Confirmations         int      `json:"confirmations"`
	RequiredConfirmations int      `json:"required_confirmations"`
	ConfirmationsLive     bool     `json:"confirmations_live"`
	Error                 string   `json:"error,omitempty"`
}

// BalanceView is a user's balance with the result of the ledger check
type BalanceView struct {
	UserId     string          `json:"user_id"`
	Balance    decimal.Decimal `json:"balance"`
	Version    int64           `json:"version"`
	Consistent bool            `json:"consistent"`
	Error      string          `json:"error,omitempty"`
}

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details,omitempty"`
}
