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

package database

// Queries are written with ? placeholders and rebound per driver.

const schema = `
	-- Deposits: pending claims, credited claims and orphaned transfers
	CREATE TABLE IF NOT EXISTS deposits (
		id TEXT PRIMARY KEY,
		user_id TEXT,
		asset TEXT NOT NULL,
		claimed_amount TEXT NOT NULL,
		credited_amount TEXT,
		custody_address TEXT NOT NULL,
		from_address TEXT,
		status TEXT NOT NULL DEFAULT 'pending',
		tx_hash TEXT,
		claimed_tx_hash TEXT,
		rejection_reason TEXT,
		created_at {{timestamp}} NOT NULL,
		updated_at {{timestamp}} NOT NULL,
		confirmed_at {{timestamp}}
	);

	-- One credit per on-chain transfer
	CREATE UNIQUE INDEX IF NOT EXISTS idx_deposits_tx_hash_asset ON deposits(tx_hash, asset);
	CREATE INDEX IF NOT EXISTS idx_deposits_pending ON deposits(status, asset, custody_address);
	CREATE INDEX IF NOT EXISTS idx_deposits_user_id ON deposits(user_id);
	CREATE INDEX IF NOT EXISTS idx_deposits_claimed_tx_hash ON deposits(claimed_tx_hash);

	-- User Balances (Current State - Hot Data)
	CREATE TABLE IF NOT EXISTS user_balances (
		user_id TEXT PRIMARY KEY,
		balance TEXT NOT NULL DEFAULT '0',
		last_entry_id TEXT,
		version INTEGER NOT NULL DEFAULT 1,
		updated_at {{timestamp}} NOT NULL
	);

	-- Ledger Entries (Audit Trail - Cold Data)
	CREATE TABLE IF NOT EXISTS ledger_entries (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		deposit_id TEXT NOT NULL UNIQUE,
		asset TEXT NOT NULL,
		amount TEXT NOT NULL,
		balance_before TEXT NOT NULL,
		balance_after TEXT NOT NULL,
		reference TEXT NOT NULL DEFAULT '',
		created_at {{timestamp}} NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_ledger_entries_user_id ON ledger_entries(user_id, created_at);

	CREATE TABLE IF NOT EXISTS notifications (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		type TEXT NOT NULL,
		title TEXT NOT NULL,
		message TEXT NOT NULL,
		data TEXT NOT NULL DEFAULT '{}',
		is_read BOOLEAN NOT NULL DEFAULT FALSE,
		created_at {{timestamp}} NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_notifications_user_id ON notifications(user_id, created_at);
`

const depositColumns = `id, user_id, asset, claimed_amount, credited_amount, custody_address, from_address,
	status, tx_hash, claimed_tx_hash, rejection_reason, created_at, updated_at, confirmed_at`

const (
	// Claim queries
	queryInsertClaim = `
		INSERT INTO deposits (id, user_id, asset, claimed_amount, custody_address, status, claimed_tx_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 'pending', ?, ?, ?)`

	queryGetDeposit = `
		SELECT ` + depositColumns + ` FROM deposits WHERE id = ?`

	queryGetDepositByTxHash = `
		SELECT ` + depositColumns + ` FROM deposits
		WHERE (tx_hash = ? OR claimed_tx_hash = ?) AND (? = '' OR asset = ?)
		ORDER BY CASE WHEN tx_hash IS NULL THEN 1 ELSE 0 END, created_at DESC
		LIMIT 1`

	queryListPendingClaims = `
		SELECT ` + depositColumns + ` FROM deposits
		WHERE status = 'pending' AND asset = ? AND LOWER(custody_address) = LOWER(?)
		ORDER BY created_at DESC`

	queryListPendingPairs = `
		SELECT DISTINCT custody_address, asset FROM deposits
		WHERE status = 'pending'
		ORDER BY asset, custody_address`

	queryListUserDeposits = `
		SELECT ` + depositColumns + ` FROM deposits
		WHERE user_id = ?
		ORDER BY created_at DESC`

	queryListOrphans = `
		SELECT ` + depositColumns + ` FROM deposits
		WHERE status = 'confirmed' AND user_id IS NULL
		ORDER BY created_at DESC`

	// Reconciliation queries
	queryTransferExists = `
		SELECT id FROM deposits WHERE tx_hash = ? AND asset = ?`

	queryConfirmClaim = `
		UPDATE deposits
		SET status = 'confirmed', tx_hash = ?, credited_amount = ?, from_address = ?, confirmed_at = ?, updated_at = ?
		WHERE id = ? AND status = 'pending'`

	queryInsertOrphan = `
		INSERT INTO deposits (id, user_id, asset, claimed_amount, custody_address, from_address, status, tx_hash, created_at, updated_at, confirmed_at)
		VALUES (?, NULL, ?, ?, ?, ?, 'confirmed', ?, ?, ?, ?)`

	// Administrative queries
	queryAssignOrphan = `
		UPDATE deposits SET user_id = ?, credited_amount = ?, updated_at = ?
		WHERE id = ? AND status = 'confirmed' AND user_id IS NULL`

	queryRejectClaim = `
		UPDATE deposits SET status = 'rejected', rejection_reason = ?, updated_at = ?
		WHERE id = ? AND status = 'pending'`

	// Balance queries
	queryGetBalance = `
		SELECT user_id, balance, COALESCE(last_entry_id, '') AS last_entry_id, version, updated_at
		FROM user_balances WHERE user_id = ?`

	queryInsertBalance = `
		INSERT INTO user_balances (user_id, balance, version, updated_at)
		VALUES (?, '0', 1, ?)
		ON CONFLICT (user_id) DO NOTHING`

	queryUpdateBalance = `
		UPDATE user_balances
		SET balance = ?, last_entry_id = ?, version = version + 1, updated_at = ?
		WHERE user_id = ? AND version = ?`

	queryInsertLedgerEntry = `
		INSERT INTO ledger_entries (id, user_id, deposit_id, asset, amount, balance_before, balance_after, reference, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetLedgerHistory = `
		SELECT id, user_id, deposit_id, asset, amount, balance_before, balance_after, reference, created_at
		FROM ledger_entries
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?`

	queryGetLedgerAmounts = `
		SELECT amount FROM ledger_entries WHERE user_id = ?`

	// Notification queries
	queryInsertNotification = `
		INSERT INTO notifications (id, user_id, type, title, message, data, is_read, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	queryListNotifications = `
		SELECT id, user_id, type, title, message, data, is_read, created_at
		FROM notifications
		WHERE user_id = ?
		ORDER BY created_at DESC`
)
