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
	"fmt"

	"bridge-settlement-go/internal/common"
	"bridge-settlement-go/internal/config"
	"bridge-settlement-go/internal/reconcile"

	"go.uber.org/zap"
)

func printReport(report reconcile.Report, isLast bool) {
	symbol := common.BoxPrefix(isLast)
	status := "OK"
	if !report.Balanced() {
		status = "MISMATCH"
	}

	fmt.Printf("%s %-15s: chain %20d ledger %20d  %s\n",
		symbol,
		report.Direction,
		report.ChainTotal,
		report.LedgerTotal,
		status)
	if report.FetchErrors > 0 {
		fmt.Printf("%s   (%d account fetches failed, chain total is partial)\n", symbol, report.FetchErrors)
	}
}

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	logger.Info("Starting balance report")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	walletBalance, err := services.WalletClient.GetBalance(ctx)
	if err != nil {
		logger.Warn("Failed to fetch wallet balance", zap.Error(err))
	}

	reports, err := services.Checker.CheckAll(ctx)
	if err != nil {
		logger.Warn("Reconciliation incomplete", zap.Error(err))
	}

	common.PrintHeader("Bridge balances", common.DefaultWidth)
	fmt.Printf("\n┌─ Wallet chain balance: %f\n", walletBalance)
	common.PrintBoxSeparator(common.DefaultWidth - 2)
	for i, report := range reports {
		printReport(report, i == len(reports)-1)
	}
	fmt.Println()
}
