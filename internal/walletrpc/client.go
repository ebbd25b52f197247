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

package walletrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"

	"bridge-settlement-go/internal/models"

	"go.uber.org/zap"
)

const (
	// walletUnlockCode/-Message identify the node's "wallet locked" error.
	walletUnlockCode    = -13
	walletUnlockMessage = "Error: Please enter the wallet passphrase with walletpassphrase first."

	// maxUnlockRetries bounds the unlock-then-retry loop so a passphrase
	// failure can never recurse forever.
	maxUnlockRetries = 3

	// unlockWindowSeconds is how long walletpassphrase keeps the wallet open.
	unlockWindowSeconds = 60
)

// RPCError is a typed wallet-chain RPC failure. Network-level failures are
// reported with Code -1.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("wallet rpc error %d: %s", e.Code, e.Message)
}

func (e *RPCError) walletLocked() bool {
	return e.Code == walletUnlockCode && e.Message == walletUnlockMessage
}

// RawTransaction is a wallet-chain transaction as listtransactions reports it.
type RawTransaction struct {
	TxID          string  `json:"txid"`
	Address       string  `json:"address"`
	Category      string  `json:"category"`
	Amount        float64 `json:"amount"`
	Confirmations int64   `json:"confirmations"`
	Time          int64   `json:"time"`
}

// Account is a newly generated deposit sub-address.
type Account struct {
	Address      string
	AddressIndex string
}

// Client talks JSON-RPC 2.0 over HTTP with basic auth to the wallet-chain
// node. Wallet open/unlock operations are serialized: the node keeps a single
// logical wallet session and opening a wallet closes any previously open one.
type Client struct {
	endpoint     string
	username     string
	password     string
	walletPass   string
	accountIndex string
	httpClient   *http.Client

	walletMu sync.Mutex
}

func NewClient(cfg models.WalletRPCConfig) *Client {
	return &Client{
		endpoint:     fmt.Sprintf("http://%s:%d", cfg.Host, cfg.Port),
		username:     cfg.Username,
		password:     cfg.Password,
		walletPass:   cfg.WalletPassword,
		accountIndex: strconv.Itoa(cfg.AccountIndex),
		httpClient:   &http.Client{Timeout: cfg.Timeout},
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

// Request performs a single RPC round-trip. If the node reports a locked
// wallet the client transparently unlocks it and retries, bounded to
// maxUnlockRetries attempts; all other errors are returned to the caller,
// which owns retry policy.
func (c *Client) Request(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	return c.request(ctx, method, params, 0)
}

func (c *Client) request(ctx context.Context, method string, params []any, callCount int) (json.RawMessage, error) {
	result, rpcErr := c.roundTrip(ctx, method, params)
	if rpcErr == nil {
		return result, nil
	}

	if rpcErr.walletLocked() && c.walletPass != "" && callCount < maxUnlockRetries {
		if err := c.OpenWallet(ctx); err != nil {
			return nil, err
		}
		return c.request(ctx, method, params, callCount+1)
	}

	return nil, rpcErr
}

func (c *Client) roundTrip(ctx context.Context, method string, params []any) (json.RawMessage, *RPCError) {
	if params == nil {
		params = []any{}
	}
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: "0", Method: method, Params: params})
	if err != nil {
		return nil, &RPCError{Code: -1, Message: fmt.Sprintf("marshal request: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &RPCError{Code: -1, Message: fmt.Sprintf("create request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.username, c.password)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &RPCError{Code: -1, Message: fmt.Sprintf("http request: %v", err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RPCError{Code: -1, Message: fmt.Sprintf("read response: %v", err)}
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return nil, &RPCError{Code: resp.StatusCode, Message: fmt.Sprintf("unmarshal response: %v", err)}
	}

	if rpcResp.Error != nil {
		return nil, rpcResp.Error
	}
	return rpcResp.Result, nil
}

// OpenWallet unlocks the configured wallet for a short window, locking any
// previously open wallet first. Serialized: never runs concurrently with
// another in-flight wallet open.
func (c *Client) OpenWallet(ctx context.Context) error {
	if c.walletPass == "" {
		return nil
	}

	c.walletMu.Lock()
	defer c.walletMu.Unlock()

	// Close any open wallet. A failure here is not fatal: the node reports
	// an error when no wallet is unlocked yet.
	if _, err := c.roundTrip(ctx, "walletlock", []any{}); err != nil {
		zap.L().Debug("walletlock before unlock failed", zap.Error(err))
	}

	if _, err := c.roundTrip(ctx, "walletpassphrase", []any{c.walletPass, unlockWindowSeconds}); err != nil {
		return fmt.Errorf("failed to open wallet: %w", err)
	}
	return nil
}

// CreateAccount generates a new deposit sub-address in the bridge account.
func (c *Client) CreateAccount(ctx context.Context) (*Account, error) {
	result, err := c.Request(ctx, "getnewaddress", c.accountIndex)
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	var address string
	if err := json.Unmarshal(result, &address); err != nil {
		return nil, fmt.Errorf("unexpected getnewaddress result: %w", err)
	}

	// The node does not expose a numeric sub-address index; the address
	// doubles as the index for bookkeeping.
	return &Account{Address: address, AddressIndex: address}, nil
}

// GetIncomingTransactions returns the receive-category transactions sent to
// the given deposit address.
func (c *Client) GetIncomingTransactions(ctx context.Context, depositAddress string) ([]RawTransaction, error) {
	result, err := c.Request(ctx, "listtransactions", c.accountIndex)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	var all []RawTransaction
	if err := json.Unmarshal(result, &all); err != nil {
		return nil, fmt.Errorf("unexpected listtransactions result: %w", err)
	}

	incoming := make([]RawTransaction, 0, len(all))
	for _, tx := range all {
		if tx.Category == "receive" && tx.Address == depositAddress {
			incoming = append(incoming, tx)
		}
	}
	return incoming, nil
}

// ValidateAddress reports whether the node considers the address valid.
func (c *Client) ValidateAddress(ctx context.Context, address string) (bool, error) {
	result, err := c.Request(ctx, "validateaddress", address)
	if err != nil {
		return false, fmt.Errorf("failed to validate address: %w", err)
	}

	var out struct {
		IsValid bool `json:"isvalid"`
	}
	if err := json.Unmarshal(result, &out); err != nil {
		return false, fmt.Errorf("unexpected validateaddress result: %w", err)
	}
	return out.IsValid, nil
}

// GetBalance returns the bridge account balance in display units.
func (c *Client) GetBalance(ctx context.Context) (float64, error) {
	result, err := c.Request(ctx, "getbalance", c.accountIndex)
	if err != nil {
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}

	var balance float64
	if err := json.Unmarshal(result, &balance); err != nil {
		return 0, fmt.Errorf("unexpected getbalance result: %w", err)
	}
	return balance, nil
}

// MultiSend dispatches one payout covering every destination via sendmany.
// Amounts are display units. Returns the produced transaction hashes.
func (c *Client) MultiSend(ctx context.Context, destinations map[string]float64) ([]string, error) {
	if len(destinations) == 0 {
		return nil, fmt.Errorf("no destinations to send to")
	}

	result, err := c.Request(ctx, "sendmany", c.accountIndex, destinations)
	if err != nil {
		return nil, fmt.Errorf("failed to send transactions: %w", err)
	}

	var hash string
	if err := json.Unmarshal(result, &hash); err != nil {
		return nil, fmt.Errorf("unexpected sendmany result: %w", err)
	}
	if hash == "" {
		return nil, fmt.Errorf("sendmany returned no transaction hash")
	}

	zap.L().Info("Wallet-chain payout dispatched",
		zap.Int("destinations", len(destinations)),
		zap.String("tx_hash", hash))

	// sendmany produces a single on-chain transaction.
	return []string{hash}, nil
}
