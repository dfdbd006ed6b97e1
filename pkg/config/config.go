package config

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Config holds all configuration for the relayer service.
//
// CRITICAL: this service only reads these specific variable names:
//   - SOURCE_RPC_URL (not ETH_RPC_URL or SOURCE_NODE_URL)
//   - TARGET_RPC_URL (not ROFL_RPC_URL)
//   - LOCAL_PRIVATE_KEY (only consulted when running with --local)
//
// All other similarly-named variables are ignored by this service.
//
// SECURITY: required variables have no defaults and must be explicitly set.
// Call Validate() after Load() to ensure all required configuration is present.
type Config struct {
	// Chain endpoints
	SourceRPCURL string
	TargetRPCURL string

	// Contract addresses
	SourceEmitterAddress  common.Address // emits the source-chain ping event
	TargetVerifierAddress common.Address // receives the receipt proof
	TargetAttestorAddress common.Address // emits the header-attestation event

	// Polling behavior
	PollingInterval time.Duration
	LookbackBlocks  uint64
	RequestTimeout  time.Duration
	RetryCount      int
	MaxBlockRange   uint64

	// Bounded-state capacities
	MaxPendingPings  int
	MaxProcessed     int
	MaxStoredHashes  int

	// Signing
	LocalMode       bool // set by --local flag
	LocalPrivateKey string
	EnclaveSocket   string // unix socket or http URL for the enclave signer daemon

	// Service identity / observability
	NetworkName string
	LogLevel    string
	HealthAddr  string // empty disables the health/metrics server
}

// Load reads configuration from environment variables and CLI flags.
// fs is typically flag.CommandLine; args is typically os.Args[1:].
func Load(fs *flag.FlagSet, args []string) (*Config, error) {
	local := fs.Bool("local", false, "sign and broadcast transactions locally instead of via the enclave daemon")
	logLevel := fs.String("log-level", "", "override LOG_LEVEL")
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	level := getEnv("LOG_LEVEL", "INFO")
	if *logLevel != "" {
		level = *logLevel
	}

	cfg := &Config{
		SourceRPCURL: getEnv("SOURCE_RPC_URL", ""),
		TargetRPCURL: getEnv("TARGET_RPC_URL", ""),

		PollingInterval: getEnvDuration("POLLING_INTERVAL", 12*time.Second),
		LookbackBlocks:  getEnvUint64("LOOKBACK_BLOCKS", 100),
		RequestTimeout:  getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),
		RetryCount:      getEnvInt("RETRY_COUNT", 3),
		MaxBlockRange:   getEnvUint64("MAX_BLOCK_RANGE", 2000),

		MaxPendingPings: getEnvInt("MAX_PENDING_PINGS", 10000),
		MaxProcessed:    getEnvInt("MAX_PROCESSED", 10000),
		MaxStoredHashes: getEnvInt("MAX_STORED_HASHES", 10000),

		LocalMode:       *local,
		LocalPrivateKey: getEnv("LOCAL_PRIVATE_KEY", ""),
		EnclaveSocket:   getEnv("ROFL_ENCLAVE_SOCKET", "/run/rofl-appd.sock"),

		NetworkName: getEnv("NETWORK", "sapphire-testnet"),
		LogLevel:    level,
		HealthAddr:  getEnv("HEALTH_ADDR", ":8090"),
	}

	for _, addr := range []struct {
		envs []string
		dest *common.Address
	}{
		{[]string{"SOURCE_CONTRACT_ADDRESS", "PING_SENDER_ADDRESS"}, &cfg.SourceEmitterAddress},
		{[]string{"CONTRACT_ADDRESS", "PING_RECEIVER_ADDRESS"}, &cfg.TargetVerifierAddress},
		{[]string{"ROFL_ADAPTER_ADDRESS"}, &cfg.TargetAttestorAddress},
	} {
		var v, matchedEnv string
		for _, env := range addr.envs {
			if v = getEnv(env, ""); v != "" {
				matchedEnv = env
				break
			}
		}
		if v == "" {
			continue
		}
		if !common.IsHexAddress(v) {
			return nil, fmt.Errorf("%s is not a valid address: %q", matchedEnv, v)
		}
		*addr.dest = common.HexToAddress(v)
	}

	return cfg, nil
}

// Validate checks that all required configuration is present and internally
// consistent. Must be called after Load() before starting the service.
func (c *Config) Validate() error {
	var errs []string

	if c.SourceRPCURL == "" {
		errs = append(errs, "SOURCE_RPC_URL is required but not set")
	} else if err := validateScheme(c.SourceRPCURL); err != nil {
		errs = append(errs, "SOURCE_RPC_URL: "+err.Error())
	}

	if c.TargetRPCURL == "" {
		errs = append(errs, "TARGET_RPC_URL is required but not set")
	} else if err := validateScheme(c.TargetRPCURL); err != nil {
		errs = append(errs, "TARGET_RPC_URL: "+err.Error())
	}

	if c.SourceEmitterAddress == (common.Address{}) {
		errs = append(errs, "SOURCE_CONTRACT_ADDRESS is required but not set")
	}
	if c.TargetVerifierAddress == (common.Address{}) {
		errs = append(errs, "CONTRACT_ADDRESS is required but not set")
	}
	if c.TargetAttestorAddress == (common.Address{}) {
		errs = append(errs, "ROFL_ADAPTER_ADDRESS is required but not set")
	}

	if c.LocalMode {
		key := strings.TrimPrefix(c.LocalPrivateKey, "0x")
		if key == "" {
			errs = append(errs, "LOCAL_PRIVATE_KEY is required when running with --local")
		} else if len(key) != 64 {
			errs = append(errs, "LOCAL_PRIVATE_KEY must be 32 bytes of hex (64 hex characters)")
		} else if _, err := hex.DecodeString(key); err != nil {
			errs = append(errs, "LOCAL_PRIVATE_KEY must be 32 bytes of hex (64 hex characters)")
		}
	}

	if c.PollingInterval <= 0 || c.PollingInterval > 300*time.Second {
		errs = append(errs, "POLLING_INTERVAL must be in (0, 300s]")
	}
	if c.LookbackBlocks == 0 || c.LookbackBlocks > 1000 {
		errs = append(errs, "LOOKBACK_BLOCKS must be in (0, 1000]")
	}
	if c.RetryCount < 0 || c.RetryCount > 10 {
		errs = append(errs, "RETRY_COUNT must be in [0, 10]")
	}

	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG", "INFO", "WARNING", "ERROR", "CRITICAL":
	default:
		errs = append(errs, "LOG_LEVEL must be one of DEBUG, INFO, WARNING, ERROR, CRITICAL")
	}

	switch c.NetworkName {
	case "sapphire-localnet", "sapphire-testnet", "sapphire-mainnet":
	default:
		errs = append(errs, "NETWORK must be one of sapphire-localnet, sapphire-testnet, sapphire-mainnet")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func validateScheme(rawurl string) error {
	for _, scheme := range []string{"http://", "https://", "ws://", "wss://"} {
		if strings.HasPrefix(rawurl, scheme) {
			return nil
		}
	}
	return fmt.Errorf("must start with http://, https://, ws://, or wss://, got %q", rawurl)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvUint64(key string, defaultValue uint64) uint64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseUint(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
