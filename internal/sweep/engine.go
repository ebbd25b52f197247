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

package sweep

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"bridge-settlement-go/internal/memochain"
	"bridge-settlement-go/internal/models"
	"bridge-settlement-go/internal/normalize"
	"bridge-settlement-go/internal/store"

	"go.uber.org/zap"
)

// memoLength is the length of bridge-generated attribution memos; incoming
// transfers with any other memo length cannot belong to a client account.
const memoLength = 64

// Normalizer is the transaction surface the sweep engine consumes.
type Normalizer interface {
	GetIncomingTransactions(ctx context.Context, account models.AccountPayload, accountType models.ChainType) ([]models.NormalizedTransaction, error)
	GetIncomingMemoTransactions(ctx context.Context, sinceMs int64) ([]memochain.RawTransaction, error)
}

// Engine detects new deposits on either chain and records them exactly once
// as pending swaps. Stateless between passes: dedup state lives in the
// ledger's deposit-hash set.
type Engine struct {
	ledger     store.Ledger
	normalizer Normalizer
}

func NewEngine(ledger store.Ledger, normalizer Normalizer) *Engine {
	return &Engine{ledger: ledger, normalizer: normalizer}
}

// SweepPending runs one sweep pass for the given direction. Re-running with
// no new upstream transactions is a no-op.
func (e *Engine) SweepPending(ctx context.Context, direction models.SwapDirection) error {
	switch direction {
	case models.WalletToMemo:
		return e.sweepWalletDeposits(ctx)
	case models.MemoToWallet:
		return e.sweepMemoDeposits(ctx)
	default:
		return fmt.Errorf("invalid swap direction %q", direction)
	}
}

// SweepAllPending sweeps both directions, isolating failures per direction.
func (e *Engine) SweepAllPending(ctx context.Context) error {
	var firstErr error
	for _, direction := range []models.SwapDirection{models.WalletToMemo, models.MemoToWallet} {
		if err := e.SweepPending(ctx, direction); err != nil {
			zap.L().Error("Sweep pass failed",
				zap.String("direction", string(direction)),
				zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

type taggedDeposit struct {
	tx      models.NormalizedTransaction
	account models.ClientAccount
}

// sweepWalletDeposits detects confirmed wallet-chain deposits into client
// sub-addresses and records them as pending wallet->memo swaps.
func (e *Engine) sweepWalletDeposits(ctx context.Context) error {
	zap.L().Info("Sweeping pending deposits", zap.String("direction", string(models.WalletToMemo)))

	accounts, err := e.ledger.GetClientAccounts(ctx, models.ChainWallet)
	if err != nil {
		return fmt.Errorf("failed to load client accounts: %w", err)
	}

	// Independent chain reads for each account run concurrently; a failed
	// fetch skips that account for this pass and the next sweep catches up.
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		deposits []taggedDeposit
	)
	for _, account := range accounts {
		wg.Add(1)
		go func(account models.ClientAccount) {
			defer wg.Done()

			transactions, err := e.normalizer.GetIncomingTransactions(ctx, account.Account, models.ChainWallet)
			if err != nil {
				zap.L().Error("Failed to fetch deposits for account",
					zap.String("client_account", account.Uuid),
					zap.String("deposit_address", account.Account.DepositAddress),
					zap.Error(err))
				return
			}

			mu.Lock()
			for _, tx := range transactions {
				deposits = append(deposits, taggedDeposit{tx: tx, account: account})
			}
			mu.Unlock()
		}(account)
	}
	wg.Wait()

	return e.recordNewDeposits(ctx, models.WalletToMemo, deposits)
}

// sweepMemoDeposits detects memo-chain transfers into the bridge address and
// records the memo-matched ones as pending memo->wallet swaps.
func (e *Engine) sweepMemoDeposits(ctx context.Context) error {
	zap.L().Info("Sweeping pending deposits", zap.String("direction", string(models.MemoToWallet)))

	transactions, err := e.normalizer.GetIncomingMemoTransactions(ctx, 0)
	if err != nil {
		return fmt.Errorf("failed to fetch memo-chain transactions: %w", err)
	}

	accounts, err := e.ledger.GetClientAccounts(ctx, models.ChainMemo)
	if err != nil {
		return fmt.Errorf("failed to load client accounts: %w", err)
	}
	accountsByMemo := make(map[string]models.ClientAccount, len(accounts))
	for _, account := range accounts {
		accountsByMemo[strings.TrimSpace(account.Account.Memo)] = account
	}

	var deposits []taggedDeposit
	for _, raw := range transactions {
		memo := strings.TrimSpace(raw.Memo)
		if len(memo) != memoLength {
			continue
		}
		account, ok := accountsByMemo[memo]
		if !ok {
			// Not yet claimed by any client account; the deposit stays
			// on-chain until someone registers the memo.
			zap.L().Warn("Dropping deposit with unknown memo",
				zap.String("tx_hash", raw.TxHash),
				zap.String("memo", memo))
			continue
		}
		deposits = append(deposits, taggedDeposit{tx: normalize.NormalizeMemoTransaction(raw), account: account})
	}

	return e.recordNewDeposits(ctx, models.MemoToWallet, deposits)
}

// recordNewDeposits diffs observed deposits against the recorded hash set and
// inserts the remainder as one atomic batch.
func (e *Engine) recordNewDeposits(ctx context.Context, direction models.SwapDirection, deposits []taggedDeposit) error {
	hashes, err := e.ledger.GetAllSwapDepositHashes(ctx, direction)
	if err != nil {
		return fmt.Errorf("failed to load deposit hashes: %w", err)
	}
	recorded := make(map[string]struct{}, len(hashes))
	for _, hash := range hashes {
		recorded[hash] = struct{}{}
	}

	batch := make([]store.AccountDeposit, 0, len(deposits))
	for _, deposit := range deposits {
		if _, seen := recorded[deposit.tx.Hash]; seen {
			continue
		}
		batch = append(batch, store.AccountDeposit{Transaction: deposit.tx, Account: deposit.account})
	}

	if len(batch) == 0 {
		zap.L().Info("No new transactions", zap.String("direction", string(direction)))
		return nil
	}

	inserted, err := e.ledger.InsertSwapsForAccounts(ctx, batch)
	if err != nil {
		return fmt.Errorf("failed to insert swap batch: %w", err)
	}

	zap.L().Info("Inserted swaps",
		zap.String("direction", string(direction)),
		zap.Int("count", len(inserted)))
	return nil
}
