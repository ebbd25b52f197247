package store

import (
	"context"
	"errors"

	"bridge-settlement-go/internal/models"
)

// Sentinel errors shared across ledger implementations.
var (
	ErrDuplicateSwap   = errors.New("duplicate swap deposit hash")
	ErrAccountNotFound = errors.New("client account not found")
)

// Ledger is the system of record for client accounts and swaps. All
// multi-row writes are atomic: a sweep batch or settlement batch either
// lands completely or not at all.
type Ledger interface {
	// --- Client accounts ---
	GetClientAccounts(ctx context.Context, accountType models.ChainType) ([]models.ClientAccount, error)
	GetClientAccount(ctx context.Context, address string, addressType models.ChainType) (*models.ClientAccount, error)
	GetClientAccountForUuid(ctx context.Context, uuid string) (*models.ClientAccount, error)
	InsertClientAccount(ctx context.Context, address string, addressType models.ChainType, account models.AccountPayload) (*models.ClientAccount, error)

	// --- Swaps ---
	GetAllSwapDepositHashes(ctx context.Context, direction models.SwapDirection) ([]string, error)
	GetAllSwaps(ctx context.Context, direction models.SwapDirection) ([]models.Swap, error)
	GetPendingSwaps(ctx context.Context, direction models.SwapDirection) ([]models.Swap, error)
	GetSwapsForClientAccount(ctx context.Context, uuid string) ([]models.Swap, error)
	InsertSwap(ctx context.Context, tx models.NormalizedTransaction, account models.ClientAccount) (*models.Swap, error)
	InsertSwaps(ctx context.Context, txs []models.NormalizedTransaction, account models.ClientAccount) ([]models.Swap, error)
	InsertSwapsForAccounts(ctx context.Context, deposits []AccountDeposit) ([]models.Swap, error)
	UpdateSwapsTransferTransactionHash(ctx context.Context, uuids []string, joinedHashes string) error

	// --- Lifecycle ---
	Close()
}

// AccountDeposit pairs a normalized deposit with the client account it
// resolved to, so a whole sweep batch can be inserted in one transaction.
type AccountDeposit struct {
	Transaction models.NormalizedTransaction
	Account     models.ClientAccount
}
