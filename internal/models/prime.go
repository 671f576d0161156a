package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Portfolio represents a Prime portfolio
type Portfolio struct {
	Id   string
	Name string
}

// Wallet represents a Prime wallet
type Wallet struct {
	Id     string
	Name   string
	Symbol string
	Type   string
}

// CustodyDeposit is a deposit as reported by the Prime custodian
type CustodyDeposit struct {
	Id            string
	WalletId      string
	Symbol        string
	Status        string
	Amount        decimal.Decimal
	ToAddress     string
	FromAddress   string
	TransactionId string
	Network       string
	CreatedAt     time.Time
}

// Final reports whether Prime has finished importing the deposit
func (d CustodyDeposit) Final() bool {
	return d.Status == "TRANSACTION_IMPORTED"
}
