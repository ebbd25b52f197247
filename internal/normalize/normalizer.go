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

package normalize

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"bridge-settlement-go/internal/memochain"
	"bridge-settlement-go/internal/models"
	"bridge-settlement-go/internal/walletrpc"
)

// WalletChain is the wallet-chain query surface the normalizer needs.
type WalletChain interface {
	GetIncomingTransactions(ctx context.Context, depositAddress string) ([]walletrpc.RawTransaction, error)
}

// MemoChain is the memo-chain query surface the normalizer needs.
type MemoChain interface {
	GetIncomingTransactions(ctx context.Context, address string, sinceMs int64) ([]memochain.RawTransaction, error)
}

// Normalizer converts each chain's native transaction shape into the common
// normalized form and applies the per-chain finality gate: a confirmation
// threshold on the wallet chain, an exact memo match on the memo chain.
type Normalizer struct {
	wallet WalletChain
	memo   MemoChain

	// ourMemoAddress is the bridge's single receiving address on the memo chain.
	ourMemoAddress   string
	minConfirmations int64
}

func NewNormalizer(wallet WalletChain, memo MemoChain, ourMemoAddress string, minConfirmations int64) *Normalizer {
	return &Normalizer{
		wallet:           wallet,
		memo:             memo,
		ourMemoAddress:   ourMemoAddress,
		minConfirmations: minConfirmations,
	}
}

// GetIncomingTransactions returns the final deposits made to the given
// receiving identity.
func (n *Normalizer) GetIncomingTransactions(ctx context.Context, account models.AccountPayload, accountType models.ChainType) ([]models.NormalizedTransaction, error) {
	switch accountType {
	case models.ChainWallet:
		transactions, err := n.GetIncomingWalletTransactions(ctx, account.AddressIndex)
		if err != nil {
			return nil, err
		}
		final := make([]models.NormalizedTransaction, 0, len(transactions))
		for _, tx := range transactions {
			if tx.Confirmations >= n.minConfirmations {
				final = append(final, tx)
			}
		}
		return final, nil

	case models.ChainMemo:
		transactions, err := n.memo.GetIncomingTransactions(ctx, n.ourMemoAddress, 0)
		if err != nil {
			return nil, err
		}
		memo := strings.TrimSpace(account.Memo)
		final := make([]models.NormalizedTransaction, 0, len(transactions))
		for _, tx := range transactions {
			if strings.TrimSpace(tx.Memo) != memo {
				continue
			}
			final = append(final, normalizeMemoTransaction(tx))
		}
		return final, nil

	default:
		return nil, fmt.Errorf("unknown account type %q", accountType)
	}
}

// GetIncomingWalletTransactions maps wallet-chain deposits to the normalized
// shape without the confirmation gate. Reconciliation applies its own filter.
func (n *Normalizer) GetIncomingWalletTransactions(ctx context.Context, depositAddress string) ([]models.NormalizedTransaction, error) {
	raw, err := n.wallet.GetIncomingTransactions(ctx, depositAddress)
	if err != nil {
		return nil, err
	}

	transactions := make([]models.NormalizedTransaction, 0, len(raw))
	for _, tx := range raw {
		transactions = append(transactions, models.NormalizedTransaction{
			Hash: tx.TxID,
			// Display units to integer 1e9 units.
			Amount:        int64(math.Round(tx.Amount * 1e9)),
			Timestamp:     tx.Time,
			Confirmations: tx.Confirmations,
		})
	}
	return transactions, nil
}

// GetIncomingMemoTransactions maps every transfer received at the bridge's
// memo-chain address, regardless of memo.
func (n *Normalizer) GetIncomingMemoTransactions(ctx context.Context, sinceMs int64) ([]memochain.RawTransaction, error) {
	return n.memo.GetIncomingTransactions(ctx, n.ourMemoAddress, sinceMs)
}

// OurMemoAddress returns the bridge's receiving address on the memo chain.
func (n *Normalizer) OurMemoAddress() string {
	return n.ourMemoAddress
}

func normalizeMemoTransaction(tx memochain.RawTransaction) models.NormalizedTransaction {
	return models.NormalizedTransaction{
		Hash:      tx.TxHash,
		Amount:    parseAmount(tx.Value),
		Timestamp: parseTimestamp(tx.TimeStamp),
	}
}

// NormalizeMemoTransaction is the single-transaction mapping used by the
// sweep and reconciliation passes.
func NormalizeMemoTransaction(tx memochain.RawTransaction) models.NormalizedTransaction {
	return normalizeMemoTransaction(tx)
}

func parseAmount(value string) int64 {
	amount, err := strconv.ParseInt(value, 10, 64)
	if err == nil {
		return amount
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return int64(math.Round(f))
}

// parseTimestamp converts the chain API's string timestamp to epoch seconds.
func parseTimestamp(value string) int64 {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05"} {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts.Unix()
		}
	}
	return 0
}
