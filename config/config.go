package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// Defaults for the periodic tasks. Every interval can be overridden per
// deployment through the environment.
const (
	DefaultBlockInterval      = 12 * time.Second
	DefaultMaxBlockRange      = 2000
	DefaultTrackerInterval    = 30 * time.Second
	DefaultTrackerTTL         = time.Hour
	DefaultStaleSweepSpec     = "@every 60s"
	DefaultStaleThreshold     = 5 * time.Minute
	DefaultStaleBatchSize     = 50
	DefaultMaxSubsPerIntent   = 100
	DefaultMaxSubsPerProcess  = 2000
	DefaultBridgeAPITimeout   = 10 * time.Second
	DefaultReceiptScanWindow  = 5000
)

// ChainConfig holds the per-chain settings for the watcher.
type ChainConfig struct {
	ChainID           uint64
	Name              string
	RPCURL            string
	RouterAddress     string
	SettlementAddress string
	BlockInterval     time.Duration
	MaxBlockRange     uint64
}

// Config holds all configuration for the application
type Config struct {
	Port            string
	DatabaseURL     string
	AllowedOrigins  string
	ShutdownTimeout time.Duration

	BridgeAPIURL     string
	BridgeAPITimeout time.Duration

	TrackerInterval time.Duration
	TrackerTTL      time.Duration

	StaleSweepSpec string
	StaleThreshold time.Duration
	StaleBatchSize int

	MaxSubscribersPerIntent  int
	MaxSubscribersPerProcess int

	ChainConfigs map[uint64]*ChainConfig
}

// LoadConfig loads configuration from environment variables.
// A .env file is honored when present.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:            getEnvOrDefault("PORT", "8080"),
		DatabaseURL:     getEnvOrDefault("DATABASE_URL", "postgresql://localhost:5432/swapflow?sslmode=disable"),
		AllowedOrigins:  getEnvOrDefault("ALLOWED_ORIGINS", ""),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 0),

		BridgeAPIURL:     getEnvOrDefault("BRIDGE_API_URL", "https://api.bridgescan.io"),
		BridgeAPITimeout: getEnvDuration("BRIDGE_API_TIMEOUT", DefaultBridgeAPITimeout),

		TrackerInterval: getEnvDuration("TRACKER_SWEEP_INTERVAL", DefaultTrackerInterval),
		TrackerTTL:      getEnvDuration("TRACKER_MESSAGE_TTL", DefaultTrackerTTL),

		StaleSweepSpec: getEnvOrDefault("STALE_SWEEP_SPEC", DefaultStaleSweepSpec),
		StaleThreshold: getEnvDuration("STALE_THRESHOLD", DefaultStaleThreshold),
		StaleBatchSize: getEnvInt("STALE_BATCH_SIZE", DefaultStaleBatchSize),

		MaxSubscribersPerIntent:  getEnvInt("MAX_SUBSCRIBERS_PER_INTENT", DefaultMaxSubsPerIntent),
		MaxSubscribersPerProcess: getEnvInt("MAX_SUBSCRIBERS_PER_PROCESS", DefaultMaxSubsPerProcess),
	}

	chains, err := resolveChainConfigs()
	if err != nil {
		return nil, errors.Wrap(err, "failed to resolve chain configs")
	}
	cfg.ChainConfigs = chains

	return cfg, nil
}

// resolveChainConfigs builds the per-chain config from CHAIN_IDS plus the
// per-chain RPC_URL_<id> variables. Contract addresses default to the
// registry in chains.go and can be overridden the same way.
func resolveChainConfigs() (map[uint64]*ChainConfig, error) {
	defaultChains := testnetDefaultChains
	if getEnvOrDefault("NETWORK", "testnet") == "mainnet" {
		defaultChains = mainnetDefaultChains
	}

	raw := getEnvOrDefault("CHAIN_IDS", defaultChains)
	configs := make(map[uint64]*ChainConfig)

	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		chainID, err := strconv.ParseUint(part, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid chain id %q in CHAIN_IDS", part)
		}

		name, err := chainNameFromID(chainID)
		if err != nil {
			return nil, err
		}

		rpcURL := os.Getenv(fmt.Sprintf("RPC_URL_%d", chainID))
		if rpcURL == "" {
			return nil, errors.Errorf("RPC_URL_%d is required for chain %d", chainID, chainID)
		}

		configs[chainID] = &ChainConfig{
			ChainID:           chainID,
			Name:              name,
			RPCURL:            rpcURL,
			RouterAddress:     getEnvOrDefault(fmt.Sprintf("ROUTER_ADDRESS_%d", chainID), routerAddressByChain[chainID]),
			SettlementAddress: getEnvOrDefault(fmt.Sprintf("SETTLEMENT_ADDRESS_%d", chainID), settlementAddressByChain[chainID]),
			BlockInterval:     getEnvDuration(fmt.Sprintf("BLOCK_INTERVAL_%d", chainID), DefaultBlockInterval),
			MaxBlockRange:     uint64(getEnvInt(fmt.Sprintf("MAX_BLOCK_RANGE_%d", chainID), DefaultMaxBlockRange)),
		}
	}

	if len(configs) == 0 {
		return nil, errors.New("no chains configured")
	}

	return configs, nil
}

// getEnvOrDefault returns the value of an environment variable or a default value
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(raw)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(raw)
	if err != nil {
		return defaultValue
	}
	return value
}
