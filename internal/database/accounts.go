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

	"bridge-settlement-go/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func scanClientAccount(row interface{ Scan(...any) error }) (*models.ClientAccount, error) {
	var account models.ClientAccount
	err := row.Scan(
		&account.Uuid,
		&account.Address,
		&account.AddressType,
		&account.AccountType,
		&account.Account.DepositAddress,
		&account.Account.AddressIndex,
		&account.Account.Memo,
		&account.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// GetClientAccounts returns every client account whose generated receiving
// identity lives on the given chain.
func (s *Service) GetClientAccounts(ctx context.Context, accountType models.ChainType) ([]models.ClientAccount, error) {
	rows, err := s.db.QueryContext(ctx, queryGetClientAccountsByType, string(accountType))
	if err != nil {
		return nil, fmt.Errorf("failed to query client accounts: %w", err)
	}
	defer rows.Close()

	var accounts []models.ClientAccount
	for rows.Next() {
		account, err := scanClientAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan client account: %w", err)
		}
		accounts = append(accounts, *account)
	}
	return accounts, rows.Err()
}

// GetClientAccount returns the account for an exact (address, addressType)
// pair, or nil if none exists.
func (s *Service) GetClientAccount(ctx context.Context, address string, addressType models.ChainType) (*models.ClientAccount, error) {
	row := s.db.QueryRowContext(ctx, queryGetClientAccount, address, string(addressType))
	account, err := scanClientAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get client account: %w", err)
	}
	return account, nil
}

func (s *Service) GetClientAccountForUuid(ctx context.Context, accountUuid string) (*models.ClientAccount, error) {
	row := s.db.QueryRowContext(ctx, queryGetClientAccountForUuid, accountUuid)
	account, err := scanClientAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get client account %s: %w", accountUuid, err)
	}
	return account, nil
}

// InsertClientAccount creates the mapping from a user payout address to a
// generated receiving identity. The account type is the opposite chain of
// the address type.
func (s *Service) InsertClientAccount(ctx context.Context, address string, addressType models.ChainType, payload models.AccountPayload) (*models.ClientAccount, error) {
	accountType := models.ChainWallet
	if addressType == models.ChainWallet {
		accountType = models.ChainMemo
	}

	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx, queryInsertClientAccount,
		id, address, string(addressType), string(accountType),
		payload.DepositAddress, payload.AddressIndex, payload.Memo)
	if err != nil {
		return nil, fmt.Errorf("failed to insert client account: %w", err)
	}

	zap.L().Info("Client account created",
		zap.String("uuid", id),
		zap.String("address", address),
		zap.String("address_type", string(addressType)),
		zap.String("account_type", string(accountType)))

	return s.GetClientAccountForUuid(ctx, id)
}
