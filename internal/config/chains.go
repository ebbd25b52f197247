package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"bridge-settlement-go/internal/models"

	"gopkg.in/yaml.v2"
)

// LoadChainsConfig reads per-chain settlement settings from a yaml file:
//
//	wallet:
//	  symbol: WGR
//	  withdrawalFee: "0.5"
//	  minConfirmations: 6
//	memo:
//	  symbol: B-WGR
//	  withdrawalFee: "0.1"
//	dailyLimitUSD: "25000"
func LoadChainsConfig(chainsFile string) (*models.ChainsConfig, error) {
	var chainsPath string
	if filepath.IsAbs(chainsFile) {
		chainsPath = chainsFile
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		chainsPath = filepath.Join(wd, chainsFile)
	}

	data, err := os.ReadFile(chainsPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", chainsFile, err)
	}

	var cfg models.ChainsConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unable to parse %s: %w", chainsFile, err)
	}

	if cfg.Wallet.Symbol == "" {
		return nil, fmt.Errorf("%s: wallet chain missing symbol", chainsFile)
	}
	if cfg.Memo.Symbol == "" {
		return nil, fmt.Errorf("%s: memo chain missing symbol", chainsFile)
	}
	if cfg.Wallet.MinConfirmations < 0 {
		return nil, fmt.Errorf("%s: minConfirmations cannot be negative", chainsFile)
	}

	for _, fee := range []string{cfg.Wallet.WithdrawalFee, cfg.Memo.WithdrawalFee} {
		if fee == "" {
			continue
		}
		if _, err := strconv.ParseFloat(fee, 64); err != nil {
			return nil, fmt.Errorf("%s: invalid withdrawalFee %q: %w", chainsFile, fee, err)
		}
	}

	return &cfg, nil
}

// FeeUnits converts a display-unit withdrawal fee to integer 1e9 units.
// An empty or unparseable fee is zero.
func FeeUnits(fee string) int64 {
	f, err := strconv.ParseFloat(fee, 64)
	if err != nil {
		return 0
	}
	return int64(f * 1e9)
}
