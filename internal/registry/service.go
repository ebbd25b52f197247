/**
 * Copyright 2025-present Bridge Settlement Authors.
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

package registry

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"bridge-settlement-go/internal/models"
	"bridge-settlement-go/internal/store"
	"bridge-settlement-go/internal/walletrpc"

	"go.uber.org/zap"
)

const memoLength = 64

var ErrInvalidAddress = errors.New("invalid payout address")

// AddressValidator checks a payout address on one chain.
type AddressValidator interface {
	ValidateAddress(ctx context.Context, address string) (bool, error)
}

// AccountCreator hands out fresh wallet-chain deposit sub-addresses.
type AccountCreator interface {
	CreateAccount(ctx context.Context) (*walletrpc.Account, error)
}

// DepositFetcher provides fresh normalized deposits for one client account.
type DepositFetcher interface {
	GetIncomingTransactions(ctx context.Context, account models.AccountPayload, accountType models.ChainType) ([]models.NormalizedTransaction, error)
}

// Service registers client accounts and records their deposits on demand.
// A registration binds the user's payout address on one chain to a unique
// deposit identity on the other.
type Service struct {
	ledger         store.Ledger
	wallet         AccountCreator
	normalizer     DepositFetcher
	validators     map[models.ChainType]AddressValidator
	ourMemoAddress string
}

func NewService(ledger store.Ledger, wallet AccountCreator, normalizer DepositFetcher, walletValidator, memoValidator AddressValidator, ourMemoAddress string) *Service {
	return &Service{
		ledger:     ledger,
		wallet:     wallet,
		normalizer: normalizer,
		validators: map[models.ChainType]AddressValidator{
			models.ChainWallet: walletValidator,
			models.ChainMemo:   memoValidator,
		},
		ourMemoAddress: ourMemoAddress,
	}
}

// RegisterClientAccount binds a payout address to a deposit identity for
// the given direction. Registering an address that already has an account
// returns the existing account unchanged.
func (s *Service) RegisterClientAccount(ctx context.Context, direction models.SwapDirection, address string) (*models.ClientAccount, error) {
	if !direction.Valid() {
		return nil, fmt.Errorf("invalid direction %q", direction)
	}

	// The user's address lives on the payout chain.
	addressType := direction.PayoutChain()
	valid, err := s.validators[addressType].ValidateAddress(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("address validation failed: %w", err)
	}
	if !valid {
		return nil, ErrInvalidAddress
	}

	existing, err := s.ledger.GetClientAccount(ctx, address, addressType)
	if err != nil {
		return nil, fmt.Errorf("account lookup failed: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	payload, err := s.newDepositIdentity(ctx, direction.DepositChain())
	if err != nil {
		return nil, err
	}

	account, err := s.ledger.InsertClientAccount(ctx, address, addressType, payload)
	if err != nil {
		return nil, fmt.Errorf("account insert failed: %w", err)
	}

	zap.L().Info("Registered client account",
		zap.String("account", account.Uuid),
		zap.String("address_type", string(addressType)))
	return account, nil
}

// newDepositIdentity creates the receiving identity on the deposit chain:
// a fresh wallet sub-address or our shared memo-chain address with a
// random memo.
func (s *Service) newDepositIdentity(ctx context.Context, depositChain models.ChainType) (models.AccountPayload, error) {
	if depositChain == models.ChainWallet {
		created, err := s.wallet.CreateAccount(ctx)
		if err != nil {
			return models.AccountPayload{}, fmt.Errorf("failed to create wallet account: %w", err)
		}
		return models.AccountPayload{DepositAddress: created.Address, AddressIndex: created.AddressIndex}, nil
	}

	memo, err := generateMemo(memoLength)
	if err != nil {
		return models.AccountPayload{}, fmt.Errorf("failed to generate memo: %w", err)
	}
	return models.AccountPayload{DepositAddress: s.ourMemoAddress, Memo: memo}, nil
}

// FinalizeSwap fetches fresh deposits for one client account and records
// any that are not in the ledger yet. Returns the newly recorded swaps.
func (s *Service) FinalizeSwap(ctx context.Context, accountUuid string) ([]models.Swap, error) {
	account, err := s.ledger.GetClientAccountForUuid(ctx, accountUuid)
	if err != nil {
		return nil, fmt.Errorf("account lookup failed: %w", err)
	}
	if account == nil {
		return nil, store.ErrAccountNotFound
	}

	transactions, err := s.normalizer.GetIncomingTransactions(ctx, account.Account, account.AccountType)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch deposits: %w", err)
	}
	if len(transactions) == 0 {
		return nil, nil
	}

	recorded, err := s.ledger.GetSwapsForClientAccount(ctx, account.Uuid)
	if err != nil {
		return nil, fmt.Errorf("failed to load recorded swaps: %w", err)
	}
	seen := make(map[string]struct{}, len(recorded))
	for _, swap := range recorded {
		seen[swap.DepositTransactionHash] = struct{}{}
	}

	var fresh []models.NormalizedTransaction
	for _, tx := range transactions {
		if _, ok := seen[tx.Hash]; ok {
			continue
		}
		fresh = append(fresh, tx)
	}
	if len(fresh) == 0 {
		return nil, nil
	}

	swaps, err := s.ledger.InsertSwaps(ctx, fresh, *account)
	if err != nil {
		return nil, fmt.Errorf("failed to record swaps: %w", err)
	}
	return swaps, nil
}

const memoAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz123456789"

// generateMemo builds a random memo from an unambiguous alphabet.
func generateMemo(length int) (string, error) {
	max := big.NewInt(int64(len(memoAlphabet)))
	memo := make([]byte, length)
	for i := range memo {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		memo[i] = memoAlphabet[n.Int64()]
	}
	return string(memo), nil
}
