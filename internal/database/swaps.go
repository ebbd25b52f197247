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

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"bridge-settlement-go/internal/models"
	"bridge-settlement-go/internal/store"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

func scanSwap(rows *sql.Rows) (*models.Swap, error) {
	var swap models.Swap
	var transferHash sql.NullString
	var processed sql.NullTime
	err := rows.Scan(
		&swap.Uuid,
		&swap.Type,
		&swap.Amount,
		&swap.ClientAccountUuid,
		&swap.Address,
		&swap.DepositTransactionHash,
		&swap.DepositTransactionCreated,
		&transferHash,
		&processed,
		&swap.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if transferHash.Valid {
		swap.TransferTransactionHash = &transferHash.String
	}
	if processed.Valid {
		swap.Processed = &processed.Time
	}
	return &swap, nil
}

func (s *Service) querySwaps(ctx context.Context, query string, args ...any) ([]models.Swap, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query swaps: %w", err)
	}
	defer rows.Close()

	var swaps []models.Swap
	for rows.Next() {
		swap, err := scanSwap(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan swap: %w", err)
		}
		swaps = append(swaps, *swap)
	}
	return swaps, rows.Err()
}

// GetAllSwapDepositHashes returns every deposit hash recorded for the given
// direction. The sweep engine diffs chain data against this set.
func (s *Service) GetAllSwapDepositHashes(ctx context.Context, direction models.SwapDirection) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, queryGetAllSwapDepositHashes, string(direction))
	if err != nil {
		return nil, fmt.Errorf("failed to query deposit hashes: %w", err)
	}
	defer rows.Close()

	var hashes []string
	for rows.Next() {
		var hash string
		if err := rows.Scan(&hash); err != nil {
			return nil, fmt.Errorf("failed to scan deposit hash: %w", err)
		}
		hashes = append(hashes, hash)
	}
	return hashes, rows.Err()
}

func (s *Service) GetAllSwaps(ctx context.Context, direction models.SwapDirection) ([]models.Swap, error) {
	return s.querySwaps(ctx, queryGetAllSwaps, string(direction))
}

func (s *Service) GetPendingSwaps(ctx context.Context, direction models.SwapDirection) ([]models.Swap, error) {
	return s.querySwaps(ctx, queryGetPendingSwaps, string(direction))
}

func (s *Service) GetSwapsForClientAccount(ctx context.Context, accountUuid string) ([]models.Swap, error) {
	return s.querySwaps(ctx, queryGetSwapsForClientAccount, accountUuid)
}

// swapDirectionFor is the direction a deposit into the given receiving
// identity settles in: a wallet-chain deposit pays out on the memo chain.
func swapDirectionFor(accountType models.ChainType) models.SwapDirection {
	if accountType == models.ChainWallet {
		return models.WalletToMemo
	}
	return models.MemoToWallet
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}
	return false
}

func insertSwapTx(ctx context.Context, tx *sql.Tx, deposit models.NormalizedTransaction, account models.ClientAccount) (string, error) {
	direction := swapDirectionFor(account.AccountType)

	var existing string
	err := tx.QueryRowContext(ctx, queryCheckDuplicateSwap, deposit.Hash, string(direction)).Scan(&existing)
	if err == nil {
		return "", store.ErrDuplicateSwap
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("failed to check duplicate deposit: %w", err)
	}

	id := uuid.New().String()
	created := time.Unix(deposit.Timestamp, 0).UTC()
	_, err = tx.ExecContext(ctx, queryInsertSwap,
		id, string(direction), strconv.FormatInt(deposit.Amount, 10),
		account.Uuid, deposit.Hash, created)
	if err != nil {
		if isUniqueViolation(err) {
			return "", store.ErrDuplicateSwap
		}
		return "", fmt.Errorf("failed to insert swap: %w", err)
	}
	return id, nil
}

// InsertSwap records a single observed deposit as a pending swap.
func (s *Service) InsertSwap(ctx context.Context, deposit models.NormalizedTransaction, account models.ClientAccount) (*models.Swap, error) {
	swaps, err := s.InsertSwapsForAccounts(ctx, []store.AccountDeposit{{Transaction: deposit, Account: account}})
	if err != nil {
		return nil, err
	}
	return &swaps[0], nil
}

// InsertSwaps records several deposits for one client account atomically.
func (s *Service) InsertSwaps(ctx context.Context, deposits []models.NormalizedTransaction, account models.ClientAccount) ([]models.Swap, error) {
	batch := make([]store.AccountDeposit, len(deposits))
	for i, deposit := range deposits {
		batch[i] = store.AccountDeposit{Transaction: deposit, Account: account}
	}
	return s.InsertSwapsForAccounts(ctx, batch)
}

// InsertSwapsForAccounts writes a whole sweep batch in one transaction.
// If any row is a duplicate deposit the entire batch is rolled back.
func (s *Service) InsertSwapsForAccounts(ctx context.Context, deposits []store.AccountDeposit) ([]models.Swap, error) {
	if len(deposits) == 0 {
		return nil, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	swaps := make([]models.Swap, 0, len(deposits))
	for _, deposit := range deposits {
		id, err := insertSwapTx(ctx, tx, deposit.Transaction, deposit.Account)
		if err != nil {
			return nil, err
		}
		swaps = append(swaps, models.Swap{
			Uuid:                      id,
			Type:                      swapDirectionFor(deposit.Account.AccountType),
			Amount:                    strconv.FormatInt(deposit.Transaction.Amount, 10),
			ClientAccountUuid:         deposit.Account.Uuid,
			Address:                   deposit.Account.Address,
			DepositTransactionHash:    deposit.Transaction.Hash,
			DepositTransactionCreated: time.Unix(deposit.Transaction.Timestamp, 0).UTC(),
			CreatedAt:                 time.Now().UTC(),
		})
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit swap batch: %w", err)
	}

	zap.L().Info("Swap batch inserted", zap.Int("count", len(swaps)))
	return swaps, nil
}

// UpdateSwapsTransferTransactionHash marks the given swaps settled with the
// comma-joined payout hashes, in one transaction. Already-settled swaps are
// never overwritten.
func (s *Service) UpdateSwapsTransferTransactionHash(ctx context.Context, uuids []string, joinedHashes string) error {
	if len(uuids) == 0 {
		return nil
	}
	if strings.TrimSpace(joinedHashes) == "" {
		return fmt.Errorf("transfer transaction hash cannot be empty")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, id := range uuids {
		if _, err := tx.ExecContext(ctx, queryUpdateSwapTransferHash, joinedHashes, id); err != nil {
			return fmt.Errorf("failed to update swap %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit settlement update: %w", err)
	}

	zap.L().Info("Swaps marked settled",
		zap.Int("count", len(uuids)),
		zap.String("transfer_hashes", joinedHashes))
	return nil
}
