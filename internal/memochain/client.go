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

package memochain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"bridge-settlement-go/internal/models"

	"go.uber.org/zap"
)

// RawTransaction is an incoming memo-chain transfer as the chain API
// reports it. Value is in integer smallest units; TimeStamp is RFC3339.
type RawTransaction struct {
	TxHash    string `json:"txHash"`
	Value     string `json:"value"`
	Memo      string `json:"memo"`
	TimeStamp string `json:"timeStamp"`
}

// Coin is one denomination/amount pair inside a multi-send output.
type Coin struct {
	Denom  string `json:"denom"`
	Amount int64  `json:"amount"`
}

// Output is one destination of a batched multi-send.
type Output struct {
	To    string `json:"to"`
	Coins []Coin `json:"coins"`
}

// Client queries the account/memo chain's REST API. Stateless: no session or
// unlock machinery, every call is a single round-trip.
type Client struct {
	apiUrl     string
	httpClient *http.Client
}

func NewClient(cfg models.MemoChainConfig) *Client {
	return &Client{
		apiUrl:     strings.TrimRight(cfg.ApiUrl, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// GetIncomingTransactions returns transfers received by the given address.
// sinceMs optionally bounds the query to transactions after that epoch
// millisecond timestamp; zero means no lower bound.
func (c *Client) GetIncomingTransactions(ctx context.Context, address string, sinceMs int64) ([]RawTransaction, error) {
	query := url.Values{}
	query.Set("address", address)
	query.Set("side", "RECEIVE")
	if sinceMs > 0 {
		query.Set("startTime", strconv.FormatInt(sinceMs, 10))
	}

	endpoint := fmt.Sprintf("%s/api/v1/transactions?%s", c.apiUrl, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("transaction query failed with status %d: %s", resp.StatusCode, string(body))
	}

	var out struct {
		Tx []RawTransaction `json:"tx"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	return out.Tx, nil
}

// ValidateAddress is a local format check; the memo chain has no remote
// validation endpoint.
func ValidateAddress(address string) bool {
	if len(address) < 39 || len(address) > 45 {
		return false
	}
	prefix, rest, found := strings.Cut(address, "1")
	if !found || prefix == "" || rest == "" {
		return false
	}
	for _, r := range rest {
		if !strings.ContainsRune("qpzry9x8gf2tvdw0s3jn54khce6mua7l", r) {
			return false
		}
	}
	return true
}

// ValidateAddress on the client satisfies the same contract as the
// wallet-chain client's remote check.
func (c *Client) ValidateAddress(_ context.Context, address string) (bool, error) {
	return ValidateAddress(address), nil
}

// MultiSend dispatches one batched payout covering every output. Every
// output must pass validation or the whole send is rejected; the chain
// offers no partial-send semantics and the bridge never truncates a batch.
func (c *Client) MultiSend(ctx context.Context, signingKey string, outputs []Output, note string) ([]string, error) {
	if len(outputs) == 0 {
		return nil, fmt.Errorf("no outputs to send")
	}
	for i, output := range outputs {
		if !ValidateAddress(output.To) {
			return nil, fmt.Errorf("output %d: invalid destination address %q", i, output.To)
		}
		if len(output.Coins) == 0 {
			return nil, fmt.Errorf("output %d: no coins", i)
		}
		for _, coin := range output.Coins {
			if coin.Amount <= 0 {
				return nil, fmt.Errorf("output %d: non-positive amount %d %s", i, coin.Amount, coin.Denom)
			}
		}
	}

	payload, err := json.Marshal(struct {
		Key     string   `json:"key"`
		Outputs []Output `json:"outputs"`
		Memo    string   `json:"memo"`
	}{Key: signingKey, Outputs: outputs, Memo: note})
	if err != nil {
		return nil, fmt.Errorf("marshal multi-send: %w", err)
	}

	endpoint := c.apiUrl + "/api/v1/broadcast/multisend"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("multi-send rejected with status %d: %s", resp.StatusCode, string(body))
	}

	var out struct {
		TxHashes []string `json:"txHashes"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if len(out.TxHashes) == 0 {
		return nil, fmt.Errorf("multi-send returned no transaction hashes")
	}

	zap.L().Info("Memo-chain payout dispatched",
		zap.Int("outputs", len(outputs)),
		zap.Strings("tx_hashes", out.TxHashes))
	return out.TxHashes, nil
}
