package registry

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"bridge-settlement-go/internal/database"
	"bridge-settlement-go/internal/models"
	"bridge-settlement-go/internal/store"
	"bridge-settlement-go/internal/walletrpc"

	_ "github.com/mattn/go-sqlite3"
)

type fakeValidator struct {
	valid bool
	err   error
}

func (f *fakeValidator) ValidateAddress(ctx context.Context, address string) (bool, error) {
	return f.valid, f.err
}

type fakeAccountCreator struct {
	next int
}

func (f *fakeAccountCreator) CreateAccount(ctx context.Context) (*walletrpc.Account, error) {
	f.next++
	address := "sub-address-" + string(rune('0'+f.next))
	return &walletrpc.Account{Address: address, AddressIndex: address}, nil
}

type fakeFetcher struct {
	txs []models.NormalizedTransaction
	err error
}

func (f *fakeFetcher) GetIncomingTransactions(ctx context.Context, account models.AccountPayload, accountType models.ChainType) ([]models.NormalizedTransaction, error) {
	return f.txs, f.err
}

func setupService(t *testing.T, fetcher *fakeFetcher) (*Service, *database.Service, func()) {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	ledger, err := database.NewServiceWithDB(db)
	if err != nil {
		t.Fatalf("Failed to initialize schema: %v", err)
	}

	valid := &fakeValidator{valid: true}
	service := NewService(ledger, &fakeAccountCreator{}, fetcher, valid, valid, "bridge-memo-address")
	return service, ledger, func() { db.Close() }
}

func TestRegisterClientAccount_WalletDirectionGetsMemo(t *testing.T) {
	service, _, cleanup := setupService(t, &fakeFetcher{})
	defer cleanup()

	// memo->wallet deposits arrive at the shared bridge address with a memo
	account, err := service.RegisterClientAccount(context.Background(), models.MemoToWallet, "wallet-payout")
	if err != nil {
		t.Fatalf("RegisterClientAccount failed: %v", err)
	}

	if account.Account.DepositAddress != "bridge-memo-address" {
		t.Errorf("Expected shared bridge address, got %s", account.Account.DepositAddress)
	}
	if len(account.Account.Memo) != memoLength {
		t.Errorf("Expected %d-char memo, got %d", memoLength, len(account.Account.Memo))
	}
	if account.AccountType != models.ChainMemo {
		t.Errorf("Expected memo-chain account, got %s", account.AccountType)
	}
}

func TestRegisterClientAccount_MemoDirectionGetsSubAddress(t *testing.T) {
	service, _, cleanup := setupService(t, &fakeFetcher{})
	defer cleanup()

	account, err := service.RegisterClientAccount(context.Background(), models.WalletToMemo, "memo-payout")
	if err != nil {
		t.Fatalf("RegisterClientAccount failed: %v", err)
	}

	if account.Account.DepositAddress != "sub-address-1" {
		t.Errorf("Expected generated sub-address, got %s", account.Account.DepositAddress)
	}
	if account.Account.Memo != "" {
		t.Errorf("Wallet-chain deposits need no memo, got %s", account.Account.Memo)
	}
}

func TestRegisterClientAccount_ExistingAddressReturnsSameAccount(t *testing.T) {
	service, _, cleanup := setupService(t, &fakeFetcher{})
	defer cleanup()

	ctx := context.Background()
	first, err := service.RegisterClientAccount(ctx, models.WalletToMemo, "memo-payout")
	if err != nil {
		t.Fatalf("First registration failed: %v", err)
	}
	second, err := service.RegisterClientAccount(ctx, models.WalletToMemo, "memo-payout")
	if err != nil {
		t.Fatalf("Second registration failed: %v", err)
	}

	if first.Uuid != second.Uuid {
		t.Errorf("Re-registering should return the same account: %s vs %s", first.Uuid, second.Uuid)
	}
}

func TestRegisterClientAccount_InvalidAddress(t *testing.T) {
	service, _, cleanup := setupService(t, &fakeFetcher{})
	defer cleanup()

	service.validators[models.ChainMemo] = &fakeValidator{valid: false}

	_, err := service.RegisterClientAccount(context.Background(), models.WalletToMemo, "junk")
	if !errors.Is(err, ErrInvalidAddress) {
		t.Errorf("Expected ErrInvalidAddress, got %v", err)
	}
}

func TestRegisterClientAccount_InvalidDirection(t *testing.T) {
	service, _, cleanup := setupService(t, &fakeFetcher{})
	defer cleanup()

	if _, err := service.RegisterClientAccount(context.Background(), "sideways", "addr"); err == nil {
		t.Error("Expected error for invalid direction")
	}
}

func TestFinalizeSwap_RecordsOnlyFreshDeposits(t *testing.T) {
	fetcher := &fakeFetcher{txs: []models.NormalizedTransaction{
		{Hash: "old", Amount: 100, Timestamp: 1700000000},
		{Hash: "new", Amount: 200, Timestamp: 1700000100},
	}}
	service, ledger, cleanup := setupService(t, fetcher)
	defer cleanup()

	ctx := context.Background()
	account, err := service.RegisterClientAccount(ctx, models.WalletToMemo, "memo-payout")
	if err != nil {
		t.Fatalf("RegisterClientAccount failed: %v", err)
	}

	// Pre-record the old deposit
	if _, err := ledger.InsertSwap(ctx, models.NormalizedTransaction{Hash: "old", Amount: 100, Timestamp: 1700000000}, *account); err != nil {
		t.Fatalf("Seed insert failed: %v", err)
	}

	swaps, err := service.FinalizeSwap(ctx, account.Uuid)
	if err != nil {
		t.Fatalf("FinalizeSwap failed: %v", err)
	}
	if len(swaps) != 1 {
		t.Fatalf("Expected 1 new swap, got %d", len(swaps))
	}
	if swaps[0].DepositTransactionHash != "new" {
		t.Errorf("Expected the fresh deposit, got %s", swaps[0].DepositTransactionHash)
	}
}

func TestFinalizeSwap_NoDepositsIsNoop(t *testing.T) {
	service, _, cleanup := setupService(t, &fakeFetcher{})
	defer cleanup()

	ctx := context.Background()
	account, err := service.RegisterClientAccount(ctx, models.WalletToMemo, "memo-payout")
	if err != nil {
		t.Fatalf("RegisterClientAccount failed: %v", err)
	}

	swaps, err := service.FinalizeSwap(ctx, account.Uuid)
	if err != nil {
		t.Fatalf("FinalizeSwap failed: %v", err)
	}
	if swaps != nil {
		t.Errorf("Expected no swaps, got %v", swaps)
	}
}

func TestFinalizeSwap_UnknownAccount(t *testing.T) {
	service, _, cleanup := setupService(t, &fakeFetcher{})
	defer cleanup()

	_, err := service.FinalizeSwap(context.Background(), "no-such-uuid")
	if !errors.Is(err, store.ErrAccountNotFound) {
		t.Errorf("Expected ErrAccountNotFound, got %v", err)
	}
}

func TestGenerateMemo(t *testing.T) {
	memo, err := generateMemo(memoLength)
	if err != nil {
		t.Fatalf("generateMemo failed: %v", err)
	}
	if len(memo) != memoLength {
		t.Fatalf("Expected %d chars, got %d", memoLength, len(memo))
	}

	other, err := generateMemo(memoLength)
	if err != nil {
		t.Fatalf("generateMemo failed: %v", err)
	}
	if memo == other {
		t.Error("Two generated memos should not collide")
	}
}
