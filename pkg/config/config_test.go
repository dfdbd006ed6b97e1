package config

import (
	"flag"
	"os"
	"testing"
	"time"
)

func clearRelayerEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"SOURCE_RPC_URL", "TARGET_RPC_URL", "SOURCE_CONTRACT_ADDRESS",
		"CONTRACT_ADDRESS", "ROFL_ADAPTER_ADDRESS", "POLLING_INTERVAL",
		"LOOKBACK_BLOCKS", "RETRY_COUNT", "LOCAL_PRIVATE_KEY", "LOG_LEVEL",
	} {
		os.Unsetenv(k)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	clearRelayerEnv(t)
	os.Setenv("SOURCE_RPC_URL", "https://source.example/rpc")
	os.Setenv("TARGET_RPC_URL", "https://target.example/rpc")
	defer clearRelayerEnv(t)

	cfg, err := Load(flag.NewFlagSet("test", flag.ContinueOnError), nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.PollingInterval != 12*time.Second {
		t.Errorf("PollingInterval default = %v, want 12s", cfg.PollingInterval)
	}
	if cfg.LookbackBlocks != 100 {
		t.Errorf("LookbackBlocks default = %d, want 100", cfg.LookbackBlocks)
	}
	if cfg.MaxPendingPings != 10000 {
		t.Errorf("MaxPendingPings default = %d, want 10000", cfg.MaxPendingPings)
	}
}

func TestLoadRejectsInvalidAddress(t *testing.T) {
	clearRelayerEnv(t)
	os.Setenv("SOURCE_CONTRACT_ADDRESS", "not-an-address")
	defer clearRelayerEnv(t)

	_, err := Load(flag.NewFlagSet("test", flag.ContinueOnError), nil)
	if err == nil {
		t.Fatal("expected error for malformed SOURCE_CONTRACT_ADDRESS")
	}
}

func TestLoadAcceptsAliasAddressVars(t *testing.T) {
	clearRelayerEnv(t)
	os.Setenv("SOURCE_RPC_URL", "https://source.example/rpc")
	os.Setenv("TARGET_RPC_URL", "https://target.example/rpc")
	os.Setenv("PING_SENDER_ADDRESS", "0x0000000000000000000000000000000000000001")
	os.Setenv("PING_RECEIVER_ADDRESS", "0x0000000000000000000000000000000000000002")
	os.Setenv("ROFL_ADAPTER_ADDRESS", "0x0000000000000000000000000000000000000003")
	defer func() {
		clearRelayerEnv(t)
		os.Unsetenv("PING_SENDER_ADDRESS")
		os.Unsetenv("PING_RECEIVER_ADDRESS")
	}()

	cfg, err := Load(flag.NewFlagSet("test", flag.ContinueOnError), nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.SourceEmitterAddress.Hex() != "0x0000000000000000000000000000000000000001" {
		t.Errorf("SourceEmitterAddress = %s, want fallback from PING_SENDER_ADDRESS", cfg.SourceEmitterAddress.Hex())
	}
	if cfg.TargetVerifierAddress.Hex() != "0x0000000000000000000000000000000000000002" {
		t.Errorf("TargetVerifierAddress = %s, want fallback from PING_RECEIVER_ADDRESS", cfg.TargetVerifierAddress.Hex())
	}
}

func TestValidateRequiresCoreFields(t *testing.T) {
	cfg := &Config{}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for empty config")
	}
}

func TestValidateRequiresLocalKeyInLocalMode(t *testing.T) {
	clearRelayerEnv(t)
	os.Setenv("SOURCE_RPC_URL", "https://source.example/rpc")
	os.Setenv("TARGET_RPC_URL", "https://target.example/rpc")
	os.Setenv("SOURCE_CONTRACT_ADDRESS", "0x0000000000000000000000000000000000000001")
	os.Setenv("CONTRACT_ADDRESS", "0x0000000000000000000000000000000000000002")
	os.Setenv("ROFL_ADAPTER_ADDRESS", "0x0000000000000000000000000000000000000003")
	defer clearRelayerEnv(t)

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg, err := Load(fs, []string{"--local"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error: --local without LOCAL_PRIVATE_KEY")
	}

	os.Setenv("LOCAL_PRIVATE_KEY", "0x"+"11"+"22"+"33"+"44"+"55"+"66"+"77"+"88"+"99"+"00"+"aa"+"bb"+"cc"+"dd"+"ee"+"ff"+"00"+"11"+"22"+"33"+"44"+"55"+"66"+"77"+"88"+"99"+"00"+"aa"+"bb"+"cc"+"dd"+"ee")
	cfg2, err := Load(flag.NewFlagSet("test2", flag.ContinueOnError), []string{"--local"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg2.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateRangeChecks(t *testing.T) {
	clearRelayerEnv(t)
	os.Setenv("SOURCE_RPC_URL", "https://source.example/rpc")
	os.Setenv("TARGET_RPC_URL", "https://target.example/rpc")
	os.Setenv("SOURCE_CONTRACT_ADDRESS", "0x0000000000000000000000000000000000000001")
	os.Setenv("CONTRACT_ADDRESS", "0x0000000000000000000000000000000000000002")
	os.Setenv("ROFL_ADAPTER_ADDRESS", "0x0000000000000000000000000000000000000003")
	os.Setenv("LOOKBACK_BLOCKS", "5000")
	defer clearRelayerEnv(t)

	cfg, err := Load(flag.NewFlagSet("test", flag.ContinueOnError), nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error: LOOKBACK_BLOCKS out of range")
	}
}

func TestValidateRejectsUnknownNetwork(t *testing.T) {
	clearRelayerEnv(t)
	os.Setenv("SOURCE_RPC_URL", "https://source.example/rpc")
	os.Setenv("TARGET_RPC_URL", "https://target.example/rpc")
	os.Setenv("SOURCE_CONTRACT_ADDRESS", "0x0000000000000000000000000000000000000001")
	os.Setenv("CONTRACT_ADDRESS", "0x0000000000000000000000000000000000000002")
	os.Setenv("ROFL_ADAPTER_ADDRESS", "0x0000000000000000000000000000000000000003")
	os.Setenv("NETWORK", "ethereum-mainnet")
	defer func() {
		clearRelayerEnv(t)
		os.Unsetenv("NETWORK")
	}()

	cfg, err := Load(flag.NewFlagSet("test", flag.ContinueOnError), nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error: NETWORK=ethereum-mainnet is not a recognized network")
	}
}

func TestValidateRejectsUnknownLogLevel(t *testing.T) {
	clearRelayerEnv(t)
	os.Setenv("SOURCE_RPC_URL", "https://source.example/rpc")
	os.Setenv("TARGET_RPC_URL", "https://target.example/rpc")
	os.Setenv("SOURCE_CONTRACT_ADDRESS", "0x0000000000000000000000000000000000000001")
	os.Setenv("CONTRACT_ADDRESS", "0x0000000000000000000000000000000000000002")
	os.Setenv("ROFL_ADAPTER_ADDRESS", "0x0000000000000000000000000000000000000003")
	os.Setenv("LOG_LEVEL", "VERBOSE")
	defer clearRelayerEnv(t)

	cfg, err := Load(flag.NewFlagSet("test", flag.ContinueOnError), nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error: LOG_LEVEL=VERBOSE is not a recognized level")
	}
}
