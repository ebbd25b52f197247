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
	"flag"
	"fmt"

	"bridge-settlement-go/internal/common"
	"bridge-settlement-go/internal/config"
	"bridge-settlement-go/internal/models"

	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	directionFlag := flag.String("direction", "", "Swap direction (wallet_to_memo or memo_to_wallet)")
	addressFlag := flag.String("address", "", "Payout address to register")
	finalizeFlag := flag.String("finalize", "", "Record fresh deposits for an existing client account uuid")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	if *finalizeFlag != "" {
		swaps, err := services.Registry.FinalizeSwap(ctx, *finalizeFlag)
		if err != nil {
			logger.Fatal("Finalize failed", zap.Error(err))
		}
		fmt.Printf("Recorded %d new swap(s)\n", len(swaps))
		for _, swap := range swaps {
			fmt.Printf("  %s  %s units (deposit %s)\n", swap.Uuid, swap.Amount, swap.DepositTransactionHash)
		}
		return
	}

	if *directionFlag == "" || *addressFlag == "" {
		logger.Fatal("Both -direction and -address are required")
	}
	direction := models.SwapDirection(*directionFlag)
	if !direction.Valid() {
		logger.Fatal("Invalid direction", zap.String("direction", *directionFlag))
	}

	account, err := services.Registry.RegisterClientAccount(ctx, direction, *addressFlag)
	if err != nil {
		logger.Fatal("Registration failed", zap.Error(err))
	}

	fmt.Printf("Client account: %s\n", account.Uuid)
	fmt.Printf("Deposit address: %s\n", account.Account.DepositAddress)
	if account.Account.Memo != "" {
		fmt.Printf("Deposit memo: %s\n", account.Account.Memo)
	}
}
