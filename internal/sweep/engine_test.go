package sweep

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"bridge-settlement-go/internal/database"
	"bridge-settlement-go/internal/memochain"
	"bridge-settlement-go/internal/models"

	_ "github.com/mattn/go-sqlite3"
)

type fakeNormalizer struct {
	// wallet deposits keyed by deposit address
	walletTxs map[string][]models.NormalizedTransaction
	walletErr map[string]error

	memoTxs []memochain.RawTransaction
	memoErr error
}

func (f *fakeNormalizer) GetIncomingTransactions(ctx context.Context, account models.AccountPayload, accountType models.ChainType) ([]models.NormalizedTransaction, error) {
	if err := f.walletErr[account.DepositAddress]; err != nil {
		return nil, err
	}
	return f.walletTxs[account.DepositAddress], nil
}

func (f *fakeNormalizer) GetIncomingMemoTransactions(ctx context.Context, sinceMs int64) ([]memochain.RawTransaction, error) {
	return f.memoTxs, f.memoErr
}

func setupTestDB(t *testing.T) (*database.Service, func()) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	service, err := database.NewServiceWithDB(db)
	if err != nil {
		t.Fatalf("Failed to initialize schema: %v", err)
	}
	return service, func() { db.Close() }
}

func walletAccount(t *testing.T, service *database.Service, payoutAddress, depositAddress string) *models.ClientAccount {
	t.Helper()
	account, err := service.InsertClientAccount(context.Background(), payoutAddress, models.ChainMemo,
		models.AccountPayload{DepositAddress: depositAddress, AddressIndex: depositAddress})
	if err != nil {
		t.Fatalf("Failed to insert client account: %v", err)
	}
	return account
}

func memoAccount(t *testing.T, service *database.Service, payoutAddress, memo string) *models.ClientAccount {
	t.Helper()
	account, err := service.InsertClientAccount(context.Background(), payoutAddress, models.ChainWallet,
		models.AccountPayload{DepositAddress: "bridge-address", Memo: memo})
	if err != nil {
		t.Fatalf("Failed to insert client account: %v", err)
	}
	return account
}

func TestSweepWalletDeposits_RecordsNewDeposits(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	walletAccount(t, service, "payout1", "dep1")
	walletAccount(t, service, "payout2", "dep2")

	normalizer := &fakeNormalizer{walletTxs: map[string][]models.NormalizedTransaction{
		"dep1": {{Hash: "tx1", Amount: 100, Timestamp: 1700000000}},
		"dep2": {{Hash: "tx2", Amount: 200, Timestamp: 1700000001}},
	}}

	engine := NewEngine(service, normalizer)
	if err := engine.SweepPending(ctx, models.WalletToMemo); err != nil {
		t.Fatalf("SweepPending failed: %v", err)
	}

	pending, err := service.GetPendingSwaps(ctx, models.WalletToMemo)
	if err != nil {
		t.Fatalf("GetPendingSwaps failed: %v", err)
	}
	if len(pending) != 2 {
		t.Errorf("Expected 2 pending swaps, got %d", len(pending))
	}
}

func TestSweepPending_SecondRunInsertsNothing(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	walletAccount(t, service, "payout1", "dep1")

	normalizer := &fakeNormalizer{walletTxs: map[string][]models.NormalizedTransaction{
		"dep1": {{Hash: "tx1", Amount: 100, Timestamp: 1700000000}},
	}}

	engine := NewEngine(service, normalizer)
	for i := 0; i < 2; i++ {
		if err := engine.SweepPending(ctx, models.WalletToMemo); err != nil {
			t.Fatalf("SweepPending run %d failed: %v", i+1, err)
		}
	}

	pending, err := service.GetPendingSwaps(ctx, models.WalletToMemo)
	if err != nil {
		t.Fatalf("GetPendingSwaps failed: %v", err)
	}
	if len(pending) != 1 {
		t.Errorf("Repeated sweep should be idempotent, got %d swaps", len(pending))
	}
}

func TestSweepWalletDeposits_FailedAccountFetchSkipsAccount(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	walletAccount(t, service, "payout1", "dep1")
	walletAccount(t, service, "payout2", "dep2")

	normalizer := &fakeNormalizer{
		walletTxs: map[string][]models.NormalizedTransaction{
			"dep1": {{Hash: "tx1", Amount: 100, Timestamp: 1700000000}},
		},
		walletErr: map[string]error{"dep2": errors.New("rpc timeout")},
	}

	engine := NewEngine(service, normalizer)
	if err := engine.SweepPending(ctx, models.WalletToMemo); err != nil {
		t.Fatalf("SweepPending failed: %v", err)
	}

	pending, err := service.GetPendingSwaps(ctx, models.WalletToMemo)
	if err != nil {
		t.Fatalf("GetPendingSwaps failed: %v", err)
	}
	if len(pending) != 1 {
		t.Errorf("Expected 1 swap from the healthy account, got %d", len(pending))
	}
}

func TestSweepMemoDeposits_MatchesMemoToAccount(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	memo := strings.Repeat("a", 64)
	memoAccount(t, service, "wallet-payout", memo)

	normalizer := &fakeNormalizer{memoTxs: []memochain.RawTransaction{
		{TxHash: "memo-tx1", Value: "500", Memo: memo, TimeStamp: "2025-01-02T03:04:05Z"},
		{TxHash: "memo-tx2", Value: "700", Memo: strings.Repeat("b", 64)}, // unknown memo
		{TxHash: "memo-tx3", Value: "900", Memo: "short"},                 // wrong length
	}}

	engine := NewEngine(service, normalizer)
	if err := engine.SweepPending(ctx, models.MemoToWallet); err != nil {
		t.Fatalf("SweepPending failed: %v", err)
	}

	pending, err := service.GetPendingSwaps(ctx, models.MemoToWallet)
	if err != nil {
		t.Fatalf("GetPendingSwaps failed: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("Expected 1 matched deposit, got %d", len(pending))
	}
	if pending[0].DepositTransactionHash != "memo-tx1" {
		t.Errorf("Expected memo-tx1, got %s", pending[0].DepositTransactionHash)
	}
	if pending[0].Amount != "500" {
		t.Errorf("Expected amount 500, got %s", pending[0].Amount)
	}
}

func TestSweepMemoDeposits_MemoWhitespaceTrimmed(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	memo := strings.Repeat("c", 64)
	memoAccount(t, service, "wallet-payout", memo)

	normalizer := &fakeNormalizer{memoTxs: []memochain.RawTransaction{
		{TxHash: "memo-tx1", Value: "500", Memo: "  " + memo + "  "},
	}}

	engine := NewEngine(service, normalizer)
	if err := engine.SweepPending(ctx, models.MemoToWallet); err != nil {
		t.Fatalf("SweepPending failed: %v", err)
	}

	pending, err := service.GetPendingSwaps(ctx, models.MemoToWallet)
	if err != nil {
		t.Fatalf("GetPendingSwaps failed: %v", err)
	}
	if len(pending) != 1 {
		t.Errorf("Expected padded memo to match, got %d swaps", len(pending))
	}
}

func TestSweepPending_InvalidDirection(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	engine := NewEngine(service, &fakeNormalizer{})
	if err := engine.SweepPending(context.Background(), "sideways"); err == nil {
		t.Error("Expected error for invalid direction")
	}
}

func TestSweepAllPending_IsolatesDirectionFailures(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	walletAccount(t, service, "payout1", "dep1")

	normalizer := &fakeNormalizer{
		walletTxs: map[string][]models.NormalizedTransaction{
			"dep1": {{Hash: "tx1", Amount: 100, Timestamp: 1700000000}},
		},
		memoErr: errors.New("api down"),
	}

	engine := NewEngine(service, normalizer)
	if err := engine.SweepAllPending(ctx); err == nil {
		t.Error("Expected the memo-side failure to surface")
	}

	// The wallet side must still have swept
	pending, err := service.GetPendingSwaps(ctx, models.WalletToMemo)
	if err != nil {
		t.Fatalf("GetPendingSwaps failed: %v", err)
	}
	if len(pending) != 1 {
		t.Errorf("Wallet sweep should have completed, got %d swaps", len(pending))
	}
}
