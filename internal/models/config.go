package models

import "time"

// Config represents the application configuration
type Config struct {
	Database  DatabaseConfig
	WalletRPC WalletRPCConfig
	MemoChain MemoChainConfig
	Oracle    OracleConfig
	Processor ProcessorConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

// WalletRPCConfig holds wallet-chain JSON-RPC settings.
type WalletRPCConfig struct {
	Host           string
	Port           int
	Username       string
	Password       string
	WalletPassword string
	AccountIndex   int
	Timeout        time.Duration
}

// MemoChainConfig holds account/memo-chain API settings.
type MemoChainConfig struct {
	ApiUrl string
	// OurAddress is the single bridge receiving address deposits arrive at.
	OurAddress string
	// SigningKey authorizes outbound multi-sends.
	SigningKey string
	Timeout    time.Duration
}

// OracleConfig holds price oracle settings.
type OracleConfig struct {
	Url     string
	AssetId string
	Timeout time.Duration
}

// ProcessorConfig holds scheduled processing settings.
type ProcessorConfig struct {
	SweepSchedule     string
	SettleSchedule    string
	ReconcileSchedule string
	ChainsFile        string
	AutoSettle        bool
}

// ChainConfig holds per-chain settlement settings loaded from chains.yaml.
type ChainConfig struct {
	// WithdrawalFee is the per-payout fee in display units; converted to
	// integer 1e9 units at load time.
	WithdrawalFee string `yaml:"withdrawalFee"`
	Symbol        string `yaml:"symbol"`
	// MinConfirmations only applies to the wallet chain.
	MinConfirmations int64 `yaml:"minConfirmations"`
}

// ChainsConfig is the parsed chains.yaml.
type ChainsConfig struct {
	Wallet ChainConfig `yaml:"wallet"`
	Memo   ChainConfig `yaml:"memo"`
	// DailyLimitUSD caps the aggregate USD value of auto-settled payouts per
	// period. Empty disables the cap.
	DailyLimitUSD string `yaml:"dailyLimitUSD"`
}
