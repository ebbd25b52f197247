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

package settlement

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"bridge-settlement-go/internal/memochain"
	"bridge-settlement-go/internal/models"
	"bridge-settlement-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Expected business conditions a driving loop catches per-direction and
// skips past without aborting the whole run. Everything else is fatal for
// the pass and leaves the ledger untouched.
var (
	ErrPriceFetchFailed = errors.New("price fetch failed")
	ErrNoSwapsToProcess = errors.New("no swaps to process")
	ErrDailyLimitHit    = errors.New("daily value limit hit")
	ErrInvalidDirection = errors.New("invalid swap direction")
)

// WalletSender dispatches wallet-chain payouts; amounts in display units.
type WalletSender interface {
	MultiSend(ctx context.Context, destinations map[string]float64) ([]string, error)
}

// MemoSender dispatches memo-chain payouts; amounts in integer 1e9 units.
type MemoSender interface {
	MultiSend(ctx context.Context, signingKey string, outputs []memochain.Output, note string) ([]string, error)
}

// PriceOracle provides the reference USD price of the wallet-chain asset.
type PriceOracle interface {
	GetUSDPrice(ctx context.Context) (float64, error)
}

// Config carries the per-currency settlement parameters.
type Config struct {
	// Fees in integer 1e9 units, charged once per aggregated payout address
	// in the destination currency.
	WalletFee int64
	MemoFee   int64

	// MemoSymbol is the denom used in memo-chain payout outputs.
	MemoSymbol string
	// MemoSigningKey authorizes memo-chain multi-sends.
	MemoSigningKey string
}

// Transaction is one aggregated logical payout: every pending swap to the
// same destination address collapses into it.
type Transaction struct {
	Address string
	Amount  int64
}

// Result is the outcome of a completed settlement pass.
type Result struct {
	Swaps       []models.Swap
	TotalAmount int64
	TotalFee    int64
}

// AutoResult additionally reports the USD value this pass added to the
// rolling settlement period.
type AutoResult struct {
	Result
	TotalUSD decimal.Decimal
}

// Engine aggregates pending swaps, deducts fees, dispatches batched payouts
// and marks swaps settled. Passes are serialized: two concurrent passes
// could dispatch the same pending swap set twice.
type Engine struct {
	ledger store.Ledger
	wallet WalletSender
	memo   MemoSender
	oracle PriceOracle
	cfg    Config

	runMu sync.Mutex
}

func NewEngine(ledger store.Ledger, wallet WalletSender, memo MemoSender, oracle PriceOracle, cfg Config) *Engine {
	return &Engine{ledger: ledger, wallet: wallet, memo: memo, oracle: oracle, cfg: cfg}
}

// payoutFee is the fee charged per aggregated address in the destination
// currency of the given direction.
func (e *Engine) payoutFee(direction models.SwapDirection) int64 {
	if direction == models.WalletToMemo {
		return e.cfg.MemoFee
	}
	return e.cfg.WalletFee
}

// parseAmount reads a stored swap amount; non-numeric amounts count as zero.
func parseAmount(value string) int64 {
	if amount, err := strconv.ParseInt(value, 10, 64); err == nil {
		return amount
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return int64(f)
	}
	return 0
}

// GetTransactions combines swaps going to the same destination address into
// one logical payout each, preserving first-seen address order.
func GetTransactions(swaps []models.Swap) []Transaction {
	amounts := make(map[string]int64, len(swaps))
	order := make([]string, 0, len(swaps))

	for _, swap := range swaps {
		if _, seen := amounts[swap.Address]; !seen {
			order = append(order, swap.Address)
		}
		amounts[swap.Address] += parseAmount(swap.Amount)
	}

	transactions := make([]Transaction, 0, len(order))
	for _, address := range order {
		transactions = append(transactions, Transaction{Address: address, Amount: amounts[address]})
	}
	return transactions
}

// GetValidSwaps drops every swap whose aggregated address total does not
// exceed the payout fee. Those swaps stay pending until the address
// accumulates enough value.
func (e *Engine) GetValidSwaps(swaps []models.Swap, direction models.SwapDirection) []models.Swap {
	fee := e.payoutFee(direction)

	invalid := make(map[string]struct{})
	for _, tx := range GetTransactions(swaps) {
		if tx.Amount-fee <= 0 {
			invalid[tx.Address] = struct{}{}
		}
	}
	if len(invalid) == 0 {
		return swaps
	}

	valid := make([]models.Swap, 0, len(swaps))
	for _, swap := range swaps {
		if _, skip := invalid[swap.Address]; skip {
			zap.L().Info("Swap below fee threshold, left pending",
				zap.String("swap", swap.Uuid),
				zap.String("address", swap.Address))
			continue
		}
		valid = append(valid, swap)
	}
	return valid
}

// ProcessAllOfType settles every currently pending swap for the direction.
// Returns nil when there is nothing to process.
func (e *Engine) ProcessAllOfType(ctx context.Context, direction models.SwapDirection) (*Result, error) {
	if !direction.Valid() {
		return nil, ErrInvalidDirection
	}

	e.runMu.Lock()
	defer e.runMu.Unlock()

	swaps, err := e.ledger.GetPendingSwaps(ctx, direction)
	if err != nil {
		return nil, fmt.Errorf("failed to load pending swaps: %w", err)
	}

	result, err := e.processSwaps(ctx, swaps, direction)
	if errors.Is(err, ErrNoSwapsToProcess) {
		return nil, nil
	}
	return result, err
}

// ProcessAutoSwaps settles pending swaps up to a rolling USD value cap.
// currentPeriodValue is the USD value already settled this period; the
// batch is filled greedily from the smallest aggregated payout up, and the
// payout that first reaches the cap is still included, so the period can
// overflow by at most one transaction.
func (e *Engine) ProcessAutoSwaps(ctx context.Context, currentPeriodValue, periodLimit decimal.Decimal, direction models.SwapDirection) (*AutoResult, error) {
	if !direction.Valid() {
		return nil, ErrInvalidDirection
	}

	usdPrice, err := e.oracle.GetUSDPrice(ctx)
	if err != nil || usdPrice <= 0 {
		zap.L().Warn("Reference price unavailable", zap.Float64("price", usdPrice), zap.Error(err))
		return nil, ErrPriceFetchFailed
	}
	price := decimal.NewFromFloat(usdPrice)

	e.runMu.Lock()
	defer e.runMu.Unlock()

	pendingSwaps, err := e.ledger.GetPendingSwaps(ctx, direction)
	if err != nil {
		return nil, fmt.Errorf("failed to load pending swaps: %w", err)
	}

	pending := GetTransactions(pendingSwaps)
	sort.SliceStable(pending, func(i, j int) bool { return pending[i].Amount < pending[j].Amount })

	if len(pending) == 0 {
		return nil, ErrNoSwapsToProcess
	}

	currentAmount := currentPeriodValue
	if currentAmount.GreaterThanOrEqual(periodLimit) {
		return nil, ErrDailyLimitHit
	}

	// Greedy fill with exact decimal arithmetic; float accumulation drifts.
	total := decimal.Zero
	oneBillion := decimal.New(1, 9)
	var selected []Transaction
	for _, tx := range pending {
		if currentAmount.GreaterThanOrEqual(periodLimit) {
			break
		}
		usdAmount := decimal.NewFromInt(tx.Amount).Div(oneBillion).Mul(price)
		selected = append(selected, tx)
		currentAmount = currentAmount.Add(usdAmount)
		total = total.Add(usdAmount)
	}

	// Map the selected aggregated payouts back to their swaps.
	var swaps []models.Swap
	for _, tx := range selected {
		for _, swap := range pendingSwaps {
			if swap.Address == tx.Address {
				swaps = append(swaps, swap)
			}
		}
	}

	result, err := e.processSwaps(ctx, swaps, direction)
	if err != nil {
		return nil, err
	}

	return &AutoResult{Result: *result, TotalUSD: total}, nil
}

// processSwaps is one settlement pass over the given swaps: filter, send,
// record. A failure before the ledger update leaves every swap pending so
// the pass can be retried safely.
func (e *Engine) processSwaps(ctx context.Context, swaps []models.Swap, direction models.SwapDirection) (*Result, error) {
	validSwaps := e.GetValidSwaps(swaps, direction)

	transactions := GetTransactions(validSwaps)
	if len(transactions) == 0 {
		return nil, ErrNoSwapsToProcess
	}

	ids := make([]string, len(validSwaps))
	for i, swap := range validSwaps {
		ids[i] = swap.Uuid
	}

	txHashes, err := e.send(ctx, direction, transactions)
	if err != nil {
		return nil, err
	}

	joined := strings.Join(txHashes, ",")

	// A crash between send and this write leaves the payout on-chain with
	// the swaps still pending: at-least-once payout, reconciled manually.
	if err := e.ledger.UpdateSwapsTransferTransactionHash(ctx, ids, joined); err != nil {
		return nil, fmt.Errorf("ledger update after payout failed: %w", err)
	}

	var transactionAmount int64
	for _, tx := range transactions {
		transactionAmount += tx.Amount
	}

	// Fee is charged once per aggregated address (one payout per user).
	totalFee := e.payoutFee(direction) * int64(len(transactions))
	totalAmount := transactionAmount - totalFee

	zap.L().Info("Settlement pass completed",
		zap.String("direction", string(direction)),
		zap.Int("swaps", len(validSwaps)),
		zap.Int64("total_amount", totalAmount),
		zap.Int64("total_fee", totalFee),
		zap.String("transfer_hashes", joined))

	return &Result{Swaps: validSwaps, TotalAmount: totalAmount, TotalFee: totalFee}, nil
}

// send dispatches one multi-destination payout on the destination chain,
// deducting the per-address fee from each output.
func (e *Engine) send(ctx context.Context, direction models.SwapDirection, transactions []Transaction) ([]string, error) {
	switch direction {
	case models.WalletToMemo:
		fee := e.cfg.MemoFee
		outputs := make([]memochain.Output, len(transactions))
		for i, tx := range transactions {
			outputs[i] = memochain.Output{
				To:    tx.Address,
				Coins: []memochain.Coin{{Denom: e.cfg.MemoSymbol, Amount: tx.Amount - fee}},
			}
		}
		return e.memo.MultiSend(ctx, e.cfg.MemoSigningKey, outputs, "")

	case models.MemoToWallet:
		fee := e.cfg.WalletFee
		destinations := make(map[string]float64, len(transactions))
		for _, tx := range transactions {
			amount := float64(tx.Amount-fee) / 1e9
			if amount < 0 {
				amount = 0
			}
			destinations[tx.Address] = amount
		}
		return e.wallet.MultiSend(ctx, destinations)

	default:
		return nil, ErrInvalidDirection
	}
}
