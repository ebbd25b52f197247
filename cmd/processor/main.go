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
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"bridge-settlement-go/internal/common"
	"bridge-settlement-go/internal/config"
	"bridge-settlement-go/internal/models"
	"bridge-settlement-go/internal/settlement"

	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// periodTracker accumulates the USD value settled in the current UTC day.
// The counter resets when the day rolls over.
type periodTracker struct {
	mu    sync.Mutex
	day   string
	value decimal.Decimal
}

func (t *periodTracker) current() decimal.Decimal {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.roll()
	return t.value
}

func (t *periodTracker) add(amount decimal.Decimal) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.roll()
	t.value = t.value.Add(amount)
}

func (t *periodTracker) roll() {
	today := time.Now().UTC().Format("2006-01-02")
	if t.day != today {
		t.day = today
		t.value = decimal.Zero
	}
}

func settleDirection(ctx context.Context, services *common.Services, tracker *periodTracker, limit decimal.Decimal, auto bool, direction models.SwapDirection, logger *zap.Logger) {
	if auto {
		result, err := services.Settler.ProcessAutoSwaps(ctx, tracker.current(), limit, direction)
		switch {
		case errors.Is(err, settlement.ErrNoSwapsToProcess):
			logger.Info("No swaps to settle", zap.String("direction", string(direction)))
		case errors.Is(err, settlement.ErrDailyLimitHit):
			logger.Info("Daily settlement limit reached", zap.String("direction", string(direction)))
		case errors.Is(err, settlement.ErrPriceFetchFailed):
			logger.Warn("Skipping settlement, no reference price", zap.String("direction", string(direction)))
		case err != nil:
			logger.Error("Settlement failed", zap.String("direction", string(direction)), zap.Error(err))
		default:
			tracker.add(result.TotalUSD)
			logger.Info("Settled swaps",
				zap.String("direction", string(direction)),
				zap.Int("swaps", len(result.Swaps)),
				zap.String("usd_value", result.TotalUSD.StringFixed(2)))
		}
		return
	}

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
		zap.Int("swaps", len(result.Swaps)))
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	logger.Info("Starting bridge processor")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	// An empty daily limit disables the cap entirely.
	auto := cfg.Processor.AutoSettle && services.Chains.DailyLimitUSD != ""
	var limit decimal.Decimal
	if auto {
		limit, err = decimal.NewFromString(services.Chains.DailyLimitUSD)
		if err != nil {
			logger.Fatal("Invalid daily limit", zap.String("limit", services.Chains.DailyLimitUSD), zap.Error(err))
		}
	}

	tracker := &periodTracker{}
	directions := []models.SwapDirection{models.WalletToMemo, models.MemoToWallet}

	// SkipIfStillRunning keeps passes from overlapping when a tick fires
	// while the previous run still holds the engine.
	runner := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))

	_, err = runner.AddFunc(cfg.Processor.SweepSchedule, func() {
		if err := services.Sweeper.SweepAllPending(ctx); err != nil {
			logger.Error("Sweep run failed", zap.Error(err))
		}
	})
	if err != nil {
		logger.Fatal("Invalid sweep schedule", zap.Error(err))
	}

	_, err = runner.AddFunc(cfg.Processor.SettleSchedule, func() {
		for _, direction := range directions {
			settleDirection(ctx, services, tracker, limit, auto, direction, logger)
		}
	})
	if err != nil {
		logger.Fatal("Invalid settle schedule", zap.Error(err))
	}

	_, err = runner.AddFunc(cfg.Processor.ReconcileSchedule, func() {
		if _, err := services.Checker.CheckAll(ctx); err != nil {
			logger.Error("Reconcile run failed", zap.Error(err))
		}
	})
	if err != nil {
		logger.Fatal("Invalid reconcile schedule", zap.Error(err))
	}

	runner.Start()
	logger.Info("Processor scheduled",
		zap.String("sweep", cfg.Processor.SweepSchedule),
		zap.String("settle", cfg.Processor.SettleSchedule),
		zap.String("reconcile", cfg.Processor.ReconcileSchedule),
		zap.Bool("auto_settle", auto))

	<-ctx.Done()
	logger.Info("Shutting down")

	stopCtx := runner.Stop()
	<-stopCtx.Done()
}
