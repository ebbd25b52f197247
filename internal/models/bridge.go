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

package models

import "time"

// ChainType identifies which of the two bridged ledgers an address or
// receiving identity belongs to.
type ChainType string

const (
	ChainWallet ChainType = "wallet"
	ChainMemo   ChainType = "memo"
)

// SwapDirection is the direction of a settlement unit.
type SwapDirection string

const (
	// WalletToMemo: user deposits on the wallet chain, is paid out on the memo chain.
	WalletToMemo SwapDirection = "wallet_to_memo"
	// MemoToWallet: user deposits on the memo chain, is paid out on the wallet chain.
	MemoToWallet SwapDirection = "memo_to_wallet"
)

// DepositChain returns the chain the user deposits on for this direction.
func (d SwapDirection) DepositChain() ChainType {
	if d == WalletToMemo {
		return ChainWallet
	}
	return ChainMemo
}

// PayoutChain returns the chain payouts are dispatched on for this direction.
func (d SwapDirection) PayoutChain() ChainType {
	if d == WalletToMemo {
		return ChainMemo
	}
	return ChainWallet
}

// Valid reports whether d is one of the two known directions.
func (d SwapDirection) Valid() bool {
	return d == WalletToMemo || d == MemoToWallet
}

// AccountPayload is the bridge-generated receiving identity on the deposit
// chain. Exactly one of the two shapes is populated: a wallet-chain
// sub-address with its index, or a memo-chain attribution memo.
type AccountPayload struct {
	DepositAddress string `db:"deposit_address"`
	AddressIndex   string `db:"address_index"`
	Memo           string `db:"memo"`
}

// ClientAccount maps a user-supplied payout address on one chain to the
// generated receiving identity on the other. Immutable once created.
type ClientAccount struct {
	Uuid        string         `db:"uuid"`
	Address     string         `db:"address"`
	AddressType ChainType      `db:"address_type"`
	AccountType ChainType      `db:"account_type"`
	Account     AccountPayload `db:"account"`
	CreatedAt   time.Time      `db:"created"`
}

// Swap is one deposit-to-payout settlement record. Amount is kept as text in
// integer 1e9 units; the settlement engine parses non-numeric amounts as zero.
type Swap struct {
	Uuid                      string        `db:"uuid"`
	Type                      SwapDirection `db:"type"`
	Amount                    string        `db:"amount"`
	ClientAccountUuid         string        `db:"client_account_uuid"`
	Address                   string        `db:"address"`
	DepositTransactionHash    string        `db:"deposit_transaction_hash"`
	DepositTransactionCreated time.Time     `db:"deposit_transaction_created"`
	TransferTransactionHash   *string       `db:"transfer_transaction_hash"`
	Processed                 *time.Time    `db:"processed"`
	CreatedAt                 time.Time     `db:"created"`
}

// Pending reports whether the swap still awaits settlement.
func (s Swap) Pending() bool {
	return s.TransferTransactionHash == nil
}

// NormalizedTransaction is the common shape both chains' raw transactions are
// mapped to during a sweep or reconciliation pass. Never persisted.
type NormalizedTransaction struct {
	Hash      string
	Amount    int64 // integer 1e9 units
	Timestamp int64 // epoch seconds
	// Confirmations is only meaningful for wallet-chain deposits; memo-chain
	// transactions are final once observed.
	Confirmations int64
}
