package database

import (
	"context"
	"testing"

	"bridge-settlement-go/internal/models"
)

func TestInsertClientAccount_DerivesOppositeAccountType(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	account := insertTestAccount(t, service, "wallet-payout", models.ChainWallet)
	if account.AccountType != models.ChainMemo {
		t.Errorf("Wallet payout address should get a memo-chain account, got %s", account.AccountType)
	}

	account = insertTestAccount(t, service, "memo-payout", models.ChainMemo)
	if account.AccountType != models.ChainWallet {
		t.Errorf("Memo payout address should get a wallet-chain account, got %s", account.AccountType)
	}
}

func TestInsertClientAccount_DuplicateAddressRejected(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	insertTestAccount(t, service, "payout-addr", models.ChainWallet)

	_, err := service.InsertClientAccount(ctx, "payout-addr", models.ChainWallet, models.AccountPayload{DepositAddress: "x"})
	if err == nil {
		t.Error("Expected unique constraint violation for duplicate (address, addressType)")
	}
}

func TestGetClientAccount_MissingReturnsNil(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	account, err := service.GetClientAccount(context.Background(), "nobody", models.ChainWallet)
	if err != nil {
		t.Fatalf("GetClientAccount failed: %v", err)
	}
	if account != nil {
		t.Errorf("Expected nil for unknown address, got %+v", account)
	}
}

func TestGetClientAccounts_FiltersByAccountType(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	// A memo payout address means deposits arrive on the wallet chain
	insertTestAccount(t, service, "memo-payout", models.ChainMemo)
	insertTestAccount(t, service, "wallet-payout", models.ChainWallet)

	walletSide, err := service.GetClientAccounts(context.Background(), models.ChainWallet)
	if err != nil {
		t.Fatalf("GetClientAccounts failed: %v", err)
	}
	if len(walletSide) != 1 {
		t.Fatalf("Expected 1 wallet-side account, got %d", len(walletSide))
	}
	if walletSide[0].Address != "memo-payout" {
		t.Errorf("Expected memo-payout, got %s", walletSide[0].Address)
	}
}

func TestClientAccount_PayloadRoundTrip(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	inserted := insertTestAccount(t, service, "payout-addr", models.ChainMemo)

	fetched, err := service.GetClientAccountForUuid(context.Background(), inserted.Uuid)
	if err != nil {
		t.Fatalf("GetClientAccountForUuid failed: %v", err)
	}
	if fetched == nil {
		t.Fatal("Expected account")
	}
	if fetched.Account.DepositAddress != "sub-payout-addr" {
		t.Errorf("Expected deposit address sub-payout-addr, got %s", fetched.Account.DepositAddress)
	}
	if fetched.Account.AddressIndex != "idx-payout-addr" {
		t.Errorf("Expected address index idx-payout-addr, got %s", fetched.Account.AddressIndex)
	}
}
