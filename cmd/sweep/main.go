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

	"bridge-settlement-go/internal/common"
	"bridge-settlement-go/internal/config"
	"bridge-settlement-go/internal/models"

	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	directionFlag := flag.String("direction", "", "Sweep a single direction (wallet_to_memo or memo_to_wallet)")
	flag.Parse()

	logger.Info("Starting deposit sweep")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	if *directionFlag != "" {
		direction := models.SwapDirection(*directionFlag)
		if !direction.Valid() {
			logger.Fatal("Invalid direction", zap.String("direction", *directionFlag))
		}
		if err := services.Sweeper.SweepPending(ctx, direction); err != nil {
			logger.Fatal("Sweep failed", zap.Error(err))
		}
	} else if err := services.Sweeper.SweepAllPending(ctx); err != nil {
		logger.Fatal("Sweep failed", zap.Error(err))
	}

	logger.Info("Sweep complete")
}
