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

package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"bridge-settlement-go/internal/models"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Client fetches the reference USD price for the wallet-chain asset. Calls
// go through a circuit breaker so a dead oracle fails settlement passes fast
// instead of stalling every run on timeouts.
type Client struct {
	url        string
	assetId    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
}

func NewClient(cfg models.OracleConfig) *Client {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "price-oracle",
		Timeout: 2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			zap.L().Warn("Price oracle breaker state change",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return &Client{
		url:        cfg.Url,
		assetId:    cfg.AssetId,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breaker:    breaker,
	}
}

// GetUSDPrice returns the current USD price of the wallet-chain asset.
// A missing price field, non-2xx status, or open breaker is a fetch failure.
func (c *Client) GetUSDPrice(ctx context.Context) (float64, error) {
	result, err := c.breaker.Execute(func() (any, error) {
		return c.fetch(ctx)
	})
	if err != nil {
		return 0, err
	}
	return result.(float64), nil
}

func (c *Client) fetch(ctx context.Context) (float64, error) {
	query := url.Values{}
	query.Set("ids", c.assetId)
	query.Set("vs_currencies", "usd")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url+"?"+query.Encode(), nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("price query failed with status %d", resp.StatusCode)
	}

	// Response shape: {"<assetId>": {"usd": 0.123}}
	var out map[string]map[string]float64
	if err := json.Unmarshal(body, &out); err != nil {
		return 0, fmt.Errorf("unmarshal response: %w", err)
	}

	prices, ok := out[c.assetId]
	if !ok {
		return 0, fmt.Errorf("price response missing asset %q", c.assetId)
	}
	price, ok := prices["usd"]
	if !ok {
		return 0, fmt.Errorf("price response missing usd field for %q", c.assetId)
	}
	return price, nil
}
