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

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"bridge-settlement-go/internal/models"
)

func Load() (*models.Config, error) {
	rpcTimeout, err := getEnvDuration("WALLET_RPC_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}

	memoTimeout, err := getEnvDuration("MEMO_CHAIN_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}

	oracleTimeout, err := getEnvDuration("ORACLE_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}

	connMaxLifetime, err := getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute)
	if err != nil {
		return nil, err
	}

	connMaxIdleTime, err := getEnvDuration("DB_CONN_MAX_IDLE_TIME", 30*time.Second)
	if err != nil {
		return nil, err
	}

	pingTimeout, err := getEnvDuration("DB_PING_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}

	return &models.Config{
		Database: models.DatabaseConfig{
			Path:            getEnvString("DATABASE_PATH", "bridge.db"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: connMaxLifetime,
			ConnMaxIdleTime: connMaxIdleTime,
			PingTimeout:     pingTimeout,
		},
		WalletRPC: models.WalletRPCConfig{
			Host:           getEnvString("WALLET_RPC_HOST", "localhost"),
			Port:           getEnvInt("WALLET_RPC_PORT", 8332),
			Username:       os.Getenv("WALLET_RPC_USERNAME"),
			Password:       os.Getenv("WALLET_RPC_PASSWORD"),
			WalletPassword: os.Getenv("WALLET_PASSPHRASE"),
			AccountIndex:   getEnvInt("WALLET_ACCOUNT_INDEX", 0),
			Timeout:        rpcTimeout,
		},
		MemoChain: models.MemoChainConfig{
			ApiUrl:     getEnvString("MEMO_CHAIN_API_URL", "http://localhost:8080"),
			OurAddress: os.Getenv("MEMO_CHAIN_BRIDGE_ADDRESS"),
			SigningKey: os.Getenv("MEMO_CHAIN_SIGNING_KEY"),
			Timeout:    memoTimeout,
		},
		Oracle: models.OracleConfig{
			Url:     getEnvString("ORACLE_URL", "https://api.coingecko.com/api/v3/simple/price"),
			AssetId: getEnvString("ORACLE_ASSET_ID", "wagerr"),
			Timeout: oracleTimeout,
		},
		Processor: models.ProcessorConfig{
			SweepSchedule:     getEnvString("SWEEP_SCHEDULE", "@every 2m"),
			SettleSchedule:    getEnvString("SETTLE_SCHEDULE", "@every 10m"),
			ReconcileSchedule: getEnvString("RECONCILE_SCHEDULE", "@every 1h"),
			ChainsFile:        getEnvString("CHAINS_FILE", "chains.yaml"),
			AutoSettle:        getEnvBool("AUTO_SETTLE", true),
		},
	}, nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	if value := os.Getenv(key); value != "" {
		duration, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for %s: %q (%w)", key, value, err)
		}
		return duration, nil
	}
	return defaultValue, nil
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
