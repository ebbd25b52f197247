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

package main

import (
	"context"
	"errors"
	"flag"

	"bridge-settlement-go/internal/common"
	"bridge-settlement-go/internal/config"
	"bridge-settlement-go/internal/models"
	"bridge-settlement-go/internal/settlement"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func settleAuto(ctx context.Context, services *common.Services, periodUsed string, direction models.SwapDirection, logger *zap.Logger) {
	if services.Chains.DailyLimitUSD == "" {
		logger.Fatal("Auto mode requires dailyLimitUSD in the chains config")
	}
	limit, err := decimal.NewFromString(services.Chains.DailyLimitUSD)
	if err != nil {
		logger.Fatal("Invalid daily limit", zap.String("limit", services.Chains.DailyLimitUSD), zap.Error(err))
	}
	used, err := decimal.NewFromString(periodUsed)
	if err != nil {
		logger.Fatal("Invalid period-used value", zap.String("period_used", periodUsed), zap.Error(err))
	}

	result, err := services.Settler.ProcessAutoSwaps(ctx, used, limit, direction)
	switch {
	case errors.Is(err, settlement.ErrNoSwapsToProcess):
		logger.Info("No swaps to settle", zap.String("direction", string(direction)))
	case errors.Is(err, settlement.ErrDailyLimitHit):
		logger.Info("Daily settlement limit reached", zap.String("direction", string(direction)))
	case err != nil:
		logger.Error("Settlement failed", zap.String("direction", string(direction)), zap.Error(err))
	default:
		logger.Info("Settled swaps",
			zap.String("direction", string(direction)),
			zap.Int("swaps", len(result.Swaps)),
			zap.Int64("total_amount", result.TotalAmount),
			zap.String("usd_value", result.TotalUSD.StringFixed(2)))
	}
}

func settleAll(ctx context.Context, services *common.Services, direction models.SwapDirection, logger *zap.Logger) {
	result, err := services.Settler.ProcessAllOfType(ctx, direction)
	if err != nil {
		logger.Error("Settlement failed", zap.String("direction", string(direction)), zap.Error(err))
		return
	}
	if result == nil {
		logger.Info("No swaps to settle", zap.String("direction", string(direction)))
		return
	}
	logger.Info("Settled swaps",
		zap.String("direction", string(direction)),
		zap.Int("swaps", len(result.Swaps)),
		zap.Int64("total_amount", result.TotalAmount))
}

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	directionFlag := flag.String("direction", "", "Settle a single direction (wallet_to_memo or memo_to_wallet)")
	autoFlag := flag.Bool("auto", false, "Apply the daily USD value cap")
	periodUsedFlag := flag.String("period-used", "0", "USD value already settled this period (auto mode)")
	flag.Parse()

	logger.Info("Starting settlement run")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	directions := []models.SwapDirection{models.WalletToMemo, models.MemoToWallet}
	if *directionFlag != "" {
		direction := models.SwapDirection(*directionFlag)
		if !direction.Valid() {
			logger.Fatal("Invalid direction", zap.String("direction", *directionFlag))
		}
		directions = []models.SwapDirection{direction}
	}

	for _, direction := range directions {
		if *autoFlag {
			settleAuto(ctx, services, *periodUsedFlag, direction, logger)
		} else {
			settleAll(ctx, services, direction, logger)
		}
	}
}
