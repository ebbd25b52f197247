package common

import (
	"context"
	"log"
	"strings"

	"bridge-settlement-go/internal/config"
	"bridge-settlement-go/internal/database"
	"bridge-settlement-go/internal/memochain"
	"bridge-settlement-go/internal/models"
	"bridge-settlement-go/internal/normalize"
	"bridge-settlement-go/internal/oracle"
	"bridge-settlement-go/internal/reconcile"
	"bridge-settlement-go/internal/registry"
	"bridge-settlement-go/internal/settlement"
	"bridge-settlement-go/internal/sweep"
	"bridge-settlement-go/internal/walletrpc"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// init loads environment variables from .env file if it exists
func init() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Note: No .env file found or unable to load it: %v\n", err)
	}
}

type Services struct {
	DbService    *database.Service
	WalletClient *walletrpc.Client
	MemoClient   *memochain.Client
	Oracle       *oracle.Client
	Normalizer   *normalize.Normalizer
	Sweeper      *sweep.Engine
	Settler      *settlement.Engine
	Checker      *reconcile.Checker
	Registry     *registry.Service
	Chains       *models.ChainsConfig
}

func InitializeLogger() (*zap.Logger, func()) {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	zap.ReplaceGlobals(logger)

	cleanup := func() {
		if err := logger.Sync(); err != nil {
			if !isIgnorableSyncError(err) {
				log.Printf("Failed to sync logger: %v\n", err)
			}
		}
	}

	return logger, cleanup
}

// InitializeServices wires the full processing stack from configuration.
func InitializeServices(ctx context.Context, cfg *models.Config) (*Services, error) {
	chains, err := config.LoadChainsConfig(cfg.Processor.ChainsFile)
	if err != nil {
		return nil, err
	}

	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	walletClient := walletrpc.NewClient(cfg.WalletRPC)
	memoClient := memochain.NewClient(cfg.MemoChain)
	oracleClient := oracle.NewClient(cfg.Oracle)

	normalizer := normalize.NewNormalizer(walletClient, memoClient,
		cfg.MemoChain.OurAddress, chains.Wallet.MinConfirmations)

	settler := settlement.NewEngine(dbService, walletClient, memoClient, oracleClient, settlement.Config{
		WalletFee:      config.FeeUnits(chains.Wallet.WithdrawalFee),
		MemoFee:        config.FeeUnits(chains.Memo.WithdrawalFee),
		MemoSymbol:     chains.Memo.Symbol,
		MemoSigningKey: cfg.MemoChain.SigningKey,
	})

	return &Services{
		DbService:    dbService,
		WalletClient: walletClient,
		MemoClient:   memoClient,
		Oracle:       oracleClient,
		Normalizer:   normalizer,
		Sweeper:      sweep.NewEngine(dbService, normalizer),
		Settler:      settler,
		Checker:      reconcile.NewChecker(dbService, normalizer),
		Registry: registry.NewService(dbService, walletClient, normalizer,
			walletClient, memoClient, cfg.MemoChain.OurAddress),
		Chains: chains,
	}, nil
}

// InitializeDatabaseOnly initializes just the ledger service.
// Useful for read-only operations like querying balances.
func InitializeDatabaseOnly(ctx context.Context, cfg *models.Config) (*database.Service, error) {
	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	return dbService, nil
}

func (cs *Services) Close() {
	if cs.DbService != nil {
		cs.DbService.Close()
	}
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "sync /dev/stderr: inappropriate ioctl for device") ||
		strings.Contains(msg, "sync /dev/stdout: inappropriate ioctl for device")
}
