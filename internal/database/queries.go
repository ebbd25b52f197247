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

const (
	// Client account queries
	queryGetClientAccountsByType = `
		SELECT uuid, address, address_type, account_type, deposit_address, address_index, memo, created
		FROM client_accounts
		WHERE account_type = ?
		ORDER BY created`

	queryGetClientAccount = `
		SELECT uuid, address, address_type, account_type, deposit_address, address_index, memo, created
		FROM client_accounts
		WHERE address = ? AND address_type = ?`

	queryGetClientAccountForUuid = `
		SELECT uuid, address, address_type, account_type, deposit_address, address_index, memo, created
		FROM client_accounts
		WHERE uuid = ?`

	queryInsertClientAccount = `
		INSERT INTO client_accounts (uuid, address, address_type, account_type, deposit_address, address_index, memo)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	// Swap queries
	queryGetAllSwapDepositHashes = `
		SELECT deposit_transaction_hash
		FROM swaps
		WHERE type = ?`

	queryGetAllSwaps = `
		SELECT s.uuid, s.type, s.amount, s.client_account_uuid, c.address,
		       s.deposit_transaction_hash, s.deposit_transaction_created,
		       s.transfer_transaction_hash, s.processed, s.created
		FROM swaps s
		JOIN client_accounts c ON c.uuid = s.client_account_uuid
		WHERE s.type = ?
		ORDER BY s.created`

	queryGetPendingSwaps = `
		SELECT s.uuid, s.type, s.amount, s.client_account_uuid, c.address,
		       s.deposit_transaction_hash, s.deposit_transaction_created,
		       s.transfer_transaction_hash, s.processed, s.created
		FROM swaps s
		JOIN client_accounts c ON c.uuid = s.client_account_uuid
		WHERE s.type = ? AND s.transfer_transaction_hash IS NULL
		ORDER BY s.created`

	queryGetSwapsForClientAccount = `
		SELECT s.uuid, s.type, s.amount, s.client_account_uuid, c.address,
		       s.deposit_transaction_hash, s.deposit_transaction_created,
		       s.transfer_transaction_hash, s.processed, s.created
		FROM swaps s
		JOIN client_accounts c ON c.uuid = s.client_account_uuid
		WHERE s.client_account_uuid = ?
		ORDER BY s.created`

	queryCheckDuplicateSwap = `
		SELECT uuid FROM swaps WHERE deposit_transaction_hash = ? AND type = ? LIMIT 1`

	queryInsertSwap = `
		INSERT INTO swaps (uuid, type, amount, client_account_uuid, deposit_transaction_hash, deposit_transaction_created)
		VALUES (?, ?, ?, ?, ?, ?)`

	queryUpdateSwapTransferHash = `
		UPDATE swaps
		SET transfer_transaction_hash = ?, processed = CURRENT_TIMESTAMP
		WHERE uuid = ? AND transfer_transaction_hash IS NULL`
)
