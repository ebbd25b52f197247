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
	"fmt"

	"bridge-settlement-go/internal/models"
	"bridge-settlement-go/internal/store"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Compile-time check: *Service must satisfy store.Ledger.
var _ store.Ledger = (*Service)(nil)

type Service struct {
	db *sql.DB
}

func NewService(ctx context.Context, cfg models.DatabaseConfig) (*Service, error) {
	// Validate configuration
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if cfg.MaxOpenConns <= 0 {
		return nil, fmt.Errorf("max open connections must be positive, got %d", cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns < 0 {
		return nil, fmt.Errorf("max idle connections cannot be negative, got %d", cfg.MaxIdleConns)
	}
	if cfg.PingTimeout <= 0 {
		return nil, fmt.Errorf("ping timeout must be positive, got %v", cfg.PingTimeout)
	}

	zap.L().Info("Opening SQLite database", zap.String("file", cfg.Path))
	db, err := sql.Open("sqlite3", cfg.Path+"?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=1000")
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	// Set connection timeouts and limits
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// Test connection with timeout
	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, closeErr
		}
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	service := &Service{db: db}
	if err := service.initSchema(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, closeErr
		}
		return nil, fmt.Errorf("unable to initialize schema: %w", err)
	}

	zap.L().Info("Database service initialized successfully")
	return service, nil
}

// NewServiceWithDB wraps an already-open database. Used by tests with an
// in-memory SQLite handle.
func NewServiceWithDB(db *sql.DB) (*Service, error) {
	service := &Service{db: db}
	if err := service.initSchema(); err != nil {
		return nil, fmt.Errorf("unable to initialize schema: %w", err)
	}
	return service, nil
}

func (s *Service) Close() {
	if err := s.db.Close(); err != nil {
		zap.L().Warn("Failed to close database connection", zap.Error(err))
	}
}

func (s *Service) initSchema() error {
	schema := `
	-- One row per user-supplied payout address. The generated receiving
	-- identity lives in deposit_address/address_index (wallet chain) or
	-- memo (memo chain).
	CREATE TABLE IF NOT EXISTS client_accounts (
		uuid TEXT PRIMARY KEY,
		address TEXT NOT NULL,
		address_type TEXT NOT NULL,
		account_type TEXT NOT NULL,
		deposit_address TEXT NOT NULL DEFAULT '',
		address_index TEXT NOT NULL DEFAULT '',
		memo TEXT NOT NULL DEFAULT '',
		created TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	-- Exactly one client account per (address, address_type) pair
	CREATE UNIQUE INDEX IF NOT EXISTS idx_client_accounts_address ON client_accounts(address, address_type);
	CREATE INDEX IF NOT EXISTS idx_client_accounts_type ON client_accounts(account_type);
	CREATE INDEX IF NOT EXISTS idx_client_accounts_memo ON client_accounts(memo);

	CREATE TABLE IF NOT EXISTS swaps (
		uuid TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		amount TEXT NOT NULL,
		client_account_uuid TEXT NOT NULL REFERENCES client_accounts(uuid),
		deposit_transaction_hash TEXT NOT NULL,
		deposit_transaction_created TIMESTAMP,
		transfer_transaction_hash TEXT,
		processed TIMESTAMP,
		created TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	-- The dedup key preventing double-crediting the same deposit
	CREATE UNIQUE INDEX IF NOT EXISTS idx_swaps_deposit_hash ON swaps(deposit_transaction_hash, type);
	CREATE INDEX IF NOT EXISTS idx_swaps_pending ON swaps(type, transfer_transaction_hash);
	CREATE INDEX IF NOT EXISTS idx_swaps_client_account ON swaps(client_account_uuid);
	`

	_, err := s.db.Exec(schema)
	return err
}
