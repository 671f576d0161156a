package store

import (
	"context"
	"errors"
	"time"

	"deposit-reconciler-go/internal/models"

	"github.com/shopspring/decimal"
)

// Sentinel errors shared across all backend implementations.
var (
	ErrDuplicateTransaction   = errors.New("duplicate transaction")
	ErrConcurrentModification = errors.New("concurrent modification detected")
	ErrDepositNotFound        = errors.New("deposit not found")
	ErrClaimNotPending        = errors.New("deposit is not pending")
	ErrNotOrphan              = errors.New("deposit is not an orphan")
)

// CreateClaimParams contains the parameters for recording a user's pending deposit claim.
type CreateClaimParams struct {
	UserId         string
	Asset          models.Asset
	ClaimedAmount  decimal.Decimal
	CustodyAddress string
	TxHash         string // optional, supplied by some clients at submission
	CreatedAt      time.Time
}

// ConfirmClaimParams binds an observed transfer to a pending claim.
type ConfirmClaimParams struct {
	ClaimId     string
	TxHash      string
	Asset       models.Asset
	Amount      decimal.Decimal // observed amount, credited in full
	FromAddress string
	ObservedAt  time.Time
}

// LedgerStore defines the contract that every backend (SQLite, Postgres, ...) must satisfy.
//
// ConfirmClaim, RecordOrphan, AssignOrphan and ApproveClaim are atomic: either the
// deposit row, the balance and the ledger entry all change, or none do.
type LedgerStore interface {
	// --- Claims ---
	CreateClaim(ctx context.Context, params CreateClaimParams) (*models.Deposit, error)
	GetDeposit(ctx context.Context, depositId string) (*models.Deposit, error)
	GetDepositByTxHash(ctx context.Context, asset models.Asset, txHash string) (*models.Deposit, error)
	ListPendingClaims(ctx context.Context, address string, asset models.Asset) ([]models.Deposit, error)
	ListPendingPairs(ctx context.Context) ([]models.WatchPair, error)
	ListUserDeposits(ctx context.Context, userId string) ([]models.Deposit, error)
	ListOrphans(ctx context.Context) ([]models.Deposit, error)

	// --- Reconciliation ---
	TransferExists(ctx context.Context, asset models.Asset, txHash string) (bool, error)
	ConfirmClaim(ctx context.Context, params ConfirmClaimParams) (*models.CreditResult, error)
	RecordOrphan(ctx context.Context, transfer models.ExternalTransfer) (*models.Deposit, error)

	// --- Administration ---
	AssignOrphan(ctx context.Context, depositId, userId string) (*models.CreditResult, error)
	ApproveClaim(ctx context.Context, claimId, txHash string) (*models.CreditResult, error)
	RejectClaim(ctx context.Context, claimId, reason string) (*models.Deposit, error)

	// --- Balances ---
	GetUserBalance(ctx context.Context, userId string) (*models.UserBalance, error)
	GetLedgerHistory(ctx context.Context, userId string, limit, offset int) ([]models.LedgerEntry, error)
	ReconcileUserBalance(ctx context.Context, userId string) error

	// --- Notifications ---
	CreateNotification(ctx context.Context, n models.Notification) error
	ListNotifications(ctx context.Context, userId string) ([]models.Notification, error)

	// --- Lifecycle ---
	Ping(ctx context.Context) error
	Close()
}
