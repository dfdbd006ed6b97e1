// Package listener polls a single contract address for a fixed set of
// event topics and dispatches each matching log, in emission order, to a
// caller-supplied callback. It is deliberately ignorant of what the logs
// mean — parsing and coordination belong to the processor package.
package listener

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"sync"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/rofl-hashi/relayer/pkg/chainclient"
	"github.com/rofl-hashi/relayer/pkg/metrics"
)

// maxRetryBackoff caps the exponential backoff applied between transport
// retries, per the design's retry policy (§5): "exponential backoff capped
// at 60s".
const maxRetryBackoff = 60 * time.Second

// Callback processes a single log, in the order it was emitted on chain.
// A returned error aborts dispatch of the remaining logs in the current
// chunk and leaves the cursor at the end of the last chunk that dispatched
// fully, so the failing chunk and everything after it are retried on the
// next tick. During Start's initial sync the error is returned from Start.
type Callback func(ctx context.Context, log types.Log) error

// Config parameterizes a Listener for one contract/topic-set pair. The
// same Listener type serves both the source ping listener and the target
// attestation listener; only Config and Callback differ between them.
type Config struct {
	ContractAddress common.Address
	Topics          [][]common.Hash
	PollInterval    time.Duration
	LookbackBlocks  uint64
	MaxBlockRange   uint64
	RetryCount      int
	RetryDelay      time.Duration
}

// DefaultConfig fills in the polling cadence and retry behavior the
// relayer uses everywhere except for ContractAddress/Topics, which the
// caller must set.
func DefaultConfig() Config {
	return Config{
		PollInterval:   12 * time.Second,
		LookbackBlocks: 100,
		MaxBlockRange:  2000,
		RetryCount:     3,
		RetryDelay:     2 * time.Second,
	}
}

// Listener runs one polling loop against a single chain client.
type Listener struct {
	name     string
	cfg      Config
	client   *chainclient.Client
	callback Callback
	logger   *log.Logger

	mu            sync.RWMutex
	lastProcessed uint64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs a Listener. name is used only for log prefixes (e.g.
// "source", "target").
func New(name string, client *chainclient.Client, cfg Config, callback Callback, logger *log.Logger) *Listener {
	if logger == nil {
		logger = log.New(log.Writer(), fmt.Sprintf("[listener:%s] ", name), log.LstdFlags)
	}
	return &Listener{name: name, cfg: cfg, client: client, callback: callback, logger: logger}
}

// Start performs the initial lookback sync and launches the steady-state
// polling goroutine. The returned error is from the initial sync only;
// steady-state errors are logged and retried, never returned.
func (l *Listener) Start(ctx context.Context) error {
	l.ctx, l.cancel = context.WithCancel(ctx)

	head, err := l.client.BlockNumber(l.ctx)
	if err != nil {
		return fmt.Errorf("listener %s: read head block: %w", l.name, err)
	}

	var from uint64
	if head > l.cfg.LookbackBlocks {
		from = head - l.cfg.LookbackBlocks
	}

	if err := l.dispatchRange(l.ctx, from, head); err != nil {
		return fmt.Errorf("listener %s: initial sync: %w", l.name, err)
	}
	l.setLastProcessed(head)

	l.wg.Add(1)
	go l.pollLoop()
	return nil
}

// Stop cancels the polling loop and waits for it to exit.
func (l *Listener) Stop() {
	if l.cancel != nil {
		l.cancel()
	}
	l.wg.Wait()
}

// LastProcessed returns the most recent block number this listener has
// fully dispatched, for observability.
func (l *Listener) LastProcessed() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lastProcessed
}

func (l *Listener) setLastProcessed(n uint64) {
	l.mu.Lock()
	l.lastProcessed = n
	l.mu.Unlock()
	metrics.ListenerLastProcessedBlock.WithLabelValues(l.name).Set(float64(n))
}

func (l *Listener) pollLoop() {
	defer l.wg.Done()

	ticker := time.NewTicker(l.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.ctx.Done():
			return
		case <-ticker.C:
			if err := l.poll(l.ctx); err != nil {
				l.logger.Printf("poll failed, will retry next tick: %v", err)
			}
		}
	}
}

// poll queries (lastProcessed, head] and dispatches it in chunks no wider
// than MaxBlockRange, advancing the cursor after each chunk that
// dispatches successfully. A chunk failure stops here; everything from
// that point on is retried on the next tick.
func (l *Listener) poll(ctx context.Context) error {
	head, err := l.client.BlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("read head block: %w", err)
	}

	from := l.LastProcessed() + 1
	if from > head {
		return nil
	}

	for from <= head {
		to := head
		if l.cfg.MaxBlockRange > 0 && to-from+1 > l.cfg.MaxBlockRange {
			to = from + l.cfg.MaxBlockRange - 1
		}

		if err := l.dispatchRange(ctx, from, to); err != nil {
			return fmt.Errorf("dispatch range [%d,%d]: %w", from, to, err)
		}
		l.setLastProcessed(to)
		from = to + 1
	}
	return nil
}

// dispatchRange fetches logs for [from, to] and feeds them to the
// callback in the order returned (which, for eth_getLogs, is emission
// order). It retries the fetch itself up to RetryCount times; a callback
// error aborts the remaining logs in the range immediately.
func (l *Listener) dispatchRange(ctx context.Context, from, to uint64) error {
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: []common.Address{l.cfg.ContractAddress},
		Topics:    l.cfg.Topics,
	}

	var logs []types.Log
	var err error
	delay := l.cfg.RetryDelay
	for attempt := 0; attempt <= l.cfg.RetryCount; attempt++ {
		logs, err = l.client.FilterLogs(ctx, query)
		if err == nil {
			break
		}
		if attempt < l.cfg.RetryCount {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
			if delay > maxRetryBackoff {
				delay = maxRetryBackoff
			}
		}
	}
	if err != nil {
		return fmt.Errorf("filter logs after %d attempts: %w", l.cfg.RetryCount+1, err)
	}

	for _, lg := range logs {
		if err := l.callback(ctx, lg); err != nil {
			return fmt.Errorf("callback for tx %s log %d: %w", lg.TxHash, lg.Index, err)
		}
	}

	if len(logs) > 0 {
		l.logger.Printf("dispatched %d log(s) from block %d to %d", len(logs), from, to)
	}
	return nil
}
