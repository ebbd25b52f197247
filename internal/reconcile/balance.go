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

package reconcile

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"bridge-settlement-go/internal/models"
	"bridge-settlement-go/internal/store"

	"go.uber.org/zap"
)

// window is how far back deposits are compared against recorded swaps.
const window = 48 * time.Hour

// Normalizer provides chain-side deposits for one client account.
type Normalizer interface {
	GetIncomingTransactions(ctx context.Context, account models.AccountPayload, accountType models.ChainType) ([]models.NormalizedTransaction, error)
}

// Report compares what the chains saw against what the ledger recorded for
// one deposit direction over the reconciliation window.
type Report struct {
	Direction   models.SwapDirection
	ChainTotal  int64
	LedgerTotal int64
	WindowStart time.Time
	Accounts    int
	FetchErrors int
}

// Balanced reports whether both sides agree.
func (r Report) Balanced() bool {
	return r.ChainTotal == r.LedgerTotal && r.FetchErrors == 0
}

// Checker sums recent chain deposits per direction and compares them with
// the recorded swap amounts for the same window.
type Checker struct {
	ledger     store.Ledger
	normalizer Normalizer
}

func NewChecker(ledger store.Ledger, normalizer Normalizer) *Checker {
	return &Checker{ledger: ledger, normalizer: normalizer}
}

// CheckDirection builds the reconciliation report for one direction. A
// per-account fetch failure is counted and the account skipped rather than
// aborting, so a partial report is still useful.
func (c *Checker) CheckDirection(ctx context.Context, direction models.SwapDirection) (*Report, error) {
	if !direction.Valid() {
		return nil, fmt.Errorf("invalid direction %q", direction)
	}

	since := time.Now().UTC().Add(-window)
	depositChain := direction.DepositChain()

	accounts, err := c.ledger.GetClientAccounts(ctx, depositChain)
	if err != nil {
		return nil, fmt.Errorf("failed to load client accounts: %w", err)
	}

	report := &Report{Direction: direction, WindowStart: since, Accounts: len(accounts)}

	for _, account := range accounts {
		transactions, err := c.normalizer.GetIncomingTransactions(ctx, account.Account, depositChain)
		if err != nil {
			zap.L().Warn("Reconcile fetch failed, skipping account",
				zap.String("account", account.Uuid), zap.Error(err))
			report.FetchErrors++
			continue
		}
		for _, tx := range transactions {
			if tx.Timestamp < since.Unix() {
				continue
			}
			report.ChainTotal += tx.Amount
		}
	}

	swaps, err := c.ledger.GetAllSwaps(ctx, direction)
	if err != nil {
		return nil, fmt.Errorf("failed to load swaps: %w", err)
	}
	for _, swap := range swaps {
		if swap.DepositTransactionCreated.Before(since) {
			continue
		}
		if amount, err := strconv.ParseInt(swap.Amount, 10, 64); err == nil {
			report.LedgerTotal += amount
		}
	}

	if report.Balanced() {
		zap.L().Info("Reconciliation balanced",
			zap.String("direction", string(direction)),
			zap.Int64("total", report.ChainTotal))
	} else {
		zap.L().Warn("Reconciliation mismatch",
			zap.String("direction", string(direction)),
			zap.Int64("chain_total", report.ChainTotal),
			zap.Int64("ledger_total", report.LedgerTotal),
			zap.Int("fetch_errors", report.FetchErrors))
	}

	return report, nil
}

// CheckAll reconciles both directions, continuing past per-direction
// failures and returning the first error encountered.
func (c *Checker) CheckAll(ctx context.Context) ([]Report, error) {
	var reports []Report
	var firstErr error
	for _, direction := range []models.SwapDirection{models.WalletToMemo, models.MemoToWallet} {
		report, err := c.CheckDirection(ctx, direction)
		if err != nil {
			zap.L().Error("Reconciliation failed", zap.String("direction", string(direction)), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		reports = append(reports, *report)
	}
	return reports, firstErr
}
