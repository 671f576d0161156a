package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// UserBalance represents current balance state (hot data)
type UserBalance struct {
	UserId      string          `db:"user_id" json:"user_id"`
	Balance     decimal.Decimal `db:"balance" json:"balance"`
	LastEntryId string          `db:"last_entry_id" json:"last_entry_id"`
	Version     int64           `db:"version" json:"version"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

// LedgerEntry represents an immutable balance credit (cold data)
type LedgerEntry struct {
	Id            string          `db:"id" json:"id"`
	UserId        string          `db:"user_id" json:"user_id"`
	DepositId     string          `db:"deposit_id" json:"deposit_id"`
	Asset         Asset           `db:"asset" json:"asset"`
	Amount        decimal.Decimal `db:"amount" json:"amount"`
	BalanceBefore decimal.Decimal `db:"balance_before" json:"balance_before"`
	BalanceAfter  decimal.Decimal `db:"balance_after" json:"balance_after"`
	Reference     string          `db:"reference" json:"reference"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}

// CreditResult is returned by every store operation that credits a balance
type CreditResult struct {
	DepositId     string
	UserId        string
	Amount        decimal.Decimal
	BalanceBefore decimal.Decimal
	BalanceAfter  decimal.Decimal
	EntryId       string
}

const NotificationDepositConfirmed = "deposit_confirmed"

// Notification is a user-facing message recorded after a credit
type Notification struct {
	Id        string    `db:"id" json:"id"`
	UserId    string    `db:"user_id" json:"user_id"`
	Type      string    `db:"type" json:"type"`
	Title     string    `db:"title" json:"title"`
	Message   string    `db:"message" json:"message"`
	Data      string    `db:"data" json:"data"`
	Read      bool      `db:"is_read" json:"read"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
