// Command relayer runs the cross-chain ping relayer: it watches a source
// chain for Ping events, waits for a header-oracle attestation of the
// block each ping landed in, then builds a receipts-trie proof and
// submits it to a verifier contract on the target chain.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/rofl-hashi/relayer/pkg/chainclient"
	"github.com/rofl-hashi/relayer/pkg/config"
	"github.com/rofl-hashi/relayer/pkg/httpserver"
	"github.com/rofl-hashi/relayer/pkg/listener"
	"github.com/rofl-hashi/relayer/pkg/processor"
	"github.com/rofl-hashi/relayer/pkg/proofbuilder"
	"github.com/rofl-hashi/relayer/pkg/submitter"
)

// attestationEventSignature is the target-chain header-oracle event this
// relayer trusts as proof that a source block has landed: a claim that
// block_id has block_hash, per the glossary's definition of Attestation.
const attestationEventSignature = "BlockHashAttested(uint256,bytes32)"

const statusReportInterval = 30 * time.Second

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	cfg, err := config.Load(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Printf("configuration invalid:\n%v", err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		log.Printf("fatal: %v", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	sourceClient, err := dialWithTimeout(cfg.SourceRPCURL, cfg.RequestTimeout)
	if err != nil {
		return fmt.Errorf("dial source chain: %w", err)
	}
	targetClient, err := dialWithTimeout(cfg.TargetRPCURL, cfg.RequestTimeout)
	if err != nil {
		return fmt.Errorf("dial target chain: %w", err)
	}
	log.Printf("connected: source chain id %s, target chain id %s", sourceClient.ChainID(), targetClient.ChainID())

	sub, err := newSubmitter(cfg, targetClient)
	if err != nil {
		return fmt.Errorf("construct submitter: %w", err)
	}

	builder := proofbuilder.New(sourceClient)

	pingTopic0 := crypto.Keccak256Hash([]byte(proofbuilder.PingEventSignature))
	attestationTopic0 := crypto.Keccak256Hash([]byte(attestationEventSignature))

	procLogger := log.New(log.Writer(), "[processor] ", log.LstdFlags)
	proc := processor.New(processor.Config{
		PingTopic0:        pingTopic0,
		AttestationTopic0: attestationTopic0,
		MaxProcessed:      cfg.MaxProcessed,
		MaxPendingPings:   cfg.MaxPendingPings,
		MaxStoredHashes:   cfg.MaxStoredHashes,
	}, builder, sub, procLogger)

	sourceListener := listener.New("source", sourceClient, listener.Config{
		ContractAddress: cfg.SourceEmitterAddress,
		Topics:          [][]common.Hash{{pingTopic0}},
		PollInterval:    cfg.PollingInterval,
		LookbackBlocks:  cfg.LookbackBlocks,
		MaxBlockRange:   cfg.MaxBlockRange,
		RetryCount:      cfg.RetryCount,
		RetryDelay:      2 * time.Second,
	}, proc.ProcessSourceEvent, nil)

	targetListener := listener.New("target", targetClient, listener.Config{
		ContractAddress: cfg.TargetAttestorAddress,
		Topics:          [][]common.Hash{{attestationTopic0}},
		PollInterval:    cfg.PollingInterval,
		LookbackBlocks:  cfg.LookbackBlocks,
		MaxBlockRange:   cfg.MaxBlockRange,
		RetryCount:      cfg.RetryCount,
		RetryDelay:      2 * time.Second,
	}, proc.ProcessTargetEvent, nil)

	var healthSrv *httpserver.Server
	if cfg.HealthAddr != "" {
		healthSrv = httpserver.New(cfg.HealthAddr, proc, nil)
		healthSrv.SetReady(false)
		go func() {
			if err := healthSrv.ListenAndServe(); err != nil {
				log.Printf("health server stopped: %v", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initial sync is performed synchronously here, in listener order, so
	// a failure surfaces before we claim readiness or spawn the steady
	// state pollers — mirrors the orchestrator's "construct, then spawn"
	// sequencing.
	if err := sourceListener.Start(ctx); err != nil {
		return fmt.Errorf("start source listener: %w", err)
	}
	if err := targetListener.Start(ctx); err != nil {
		sourceListener.Stop()
		return fmt.Errorf("start target listener: %w", err)
	}
	if healthSrv != nil {
		healthSrv.SetReady(true)
	}
	log.Printf("relayer running: network=%s local_mode=%v polling_interval=%s log_level=%s", cfg.NetworkName, cfg.LocalMode, cfg.PollingInterval, cfg.LogLevel)

	statusDone := make(chan struct{})
	go runStatusReporter(ctx, proc, statusDone)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Printf("shutdown signal received, stopping")
	if healthSrv != nil {
		healthSrv.SetReady(false)
	}
	cancel()
	sourceListener.Stop()
	targetListener.Stop()
	<-statusDone

	if healthSrv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := healthSrv.Shutdown(shutdownCtx); err != nil {
			log.Printf("health server shutdown error: %v", err)
		}
	}

	log.Printf("stopped")
	return nil
}

func dialWithTimeout(url string, timeout time.Duration) (*chainclient.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return chainclient.Dial(ctx, url)
}

func newSubmitter(cfg *config.Config, targetClient *chainclient.Client) (*submitter.Submitter, error) {
	subCfg := submitter.DefaultConfig(cfg.TargetVerifierAddress)
	if cfg.LocalMode {
		return submitter.NewLocal(targetClient, subCfg, cfg.LocalPrivateKey)
	}
	return submitter.NewEnclave(targetClient, subCfg, cfg.EnclaveSocket)
}

// runStatusReporter implements the orchestrator's third concurrent task:
// every statusReportInterval, if there is pending work, emit a one-line
// summary. It exits as soon as ctx is cancelled, closing done so the
// caller can wait for it during shutdown.
func runStatusReporter(ctx context.Context, proc *processor.Processor, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(statusReportInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := proc.GetStats()
			if stats.Pending > 0 {
				log.Printf("status: pending=%d processed=%d stored=%d duplicated=%d invalid=%d filtered=%d",
					stats.Pending, stats.Processed, stats.Stored, stats.Duplicated, stats.Invalid, stats.Filtered)
			}
		}
	}
}
