// Package processor holds the relayer's mutable coordination state and
// turns raw chain logs into submissions. It is the only place that state
// (processed set, pending table, stored hashes) is mutated; listeners
// feed it logs, it calls the submitter when a ping and its attestation
// line up.
package processor

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"

	"github.com/rofl-hashi/relayer/pkg/metrics"
	"github.com/rofl-hashi/relayer/pkg/proofbuilder"
	"github.com/rofl-hashi/relayer/pkg/state"
	"github.com/rofl-hashi/relayer/pkg/submitter"
)

// Stats is the observability snapshot returned by GetStats.
type Stats struct {
	Processed  uint64
	Pending    int
	Stored     int
	Filtered   uint64
	Duplicated uint64
	Invalid    uint64
}

// Config bounds the processor's internal state and names the two topics
// it recognizes.
type Config struct {
	PingTopic0        common.Hash
	AttestationTopic0 common.Hash
	MaxProcessed      int
	MaxPendingPings   int
	MaxStoredHashes   int
}

// Processor holds all mutable coordination state behind a single mutex,
// per the design's "global mutable state lives in one place" rule.
type Processor struct {
	cfg Config

	builder   *proofbuilder.Builder
	submitter *submitter.Submitter
	logger    *log.Logger

	mu        sync.Mutex
	processed *state.ProcessedSet
	pending   *state.PendingTable
	stored    *state.StoredHashes

	statProcessed  atomic.Uint64
	statFiltered   atomic.Uint64
	statDuplicated atomic.Uint64
	statInvalid    atomic.Uint64
}

// New constructs a Processor. builder and submitter are used to turn a
// matched (ping, attestation) pair into an on-chain submission.
func New(cfg Config, builder *proofbuilder.Builder, sub *submitter.Submitter, logger *log.Logger) *Processor {
	if logger == nil {
		logger = log.New(log.Writer(), "[processor] ", log.LstdFlags)
	}
	return &Processor{
		cfg:       cfg,
		builder:   builder,
		submitter: sub,
		logger:    logger,
		processed: state.NewProcessedSet(cfg.MaxProcessed),
		pending:   state.NewPendingTable(cfg.MaxPendingPings),
		stored:    state.NewStoredHashes(cfg.MaxStoredHashes),
	}
}

// ProcessSourceEvent implements step 4.7's process_source_event: it
// dedupes by transaction hash, parses sender/block-number out of the
// indexed topics, and appends the resulting PingEvent to the pending
// table. Logs whose topic-0 is not this processor's PingTopic0 are counted
// as filtered and ignored (nil error), so callers can wire this directly
// as a listener.Callback without a separate topic filter.
func (p *Processor) ProcessSourceEvent(ctx context.Context, lg types.Log) error {
	if len(lg.Topics) == 0 || lg.Topics[0] != p.cfg.PingTopic0 {
		p.statFiltered.Add(1)
		metrics.FilteredTotal.Inc()
		return nil
	}
	if len(lg.Topics) < 3 {
		p.statInvalid.Add(1)
		metrics.InvalidTotal.Inc()
		p.logger.Printf("dropping malformed ping log: missing indexed topics (have %d, want 3)", len(lg.Topics))
		return nil
	}

	txHash := lg.TxHash
	if txHash == (common.Hash{}) {
		p.statInvalid.Add(1)
		metrics.InvalidTotal.Inc()
		p.logger.Printf("dropping malformed ping log: missing transaction hash")
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	key := txHash.Hex()
	if p.processed.Contains(key) {
		p.statDuplicated.Add(1)
		metrics.DuplicateTotal.Inc()
		return nil
	}
	p.processed.Add(key)

	sender := common.BytesToAddress(lg.Topics[1].Bytes())
	blockNumber := lg.Topics[2].Big().Uint64()

	ping := &state.PingEvent{
		TxHash:      txHash,
		BlockNumber: blockNumber,
		Sender:      sender,
		Timestamp:   0,
		PingID:      pingID(txHash, sender, blockNumber),
	}

	if evicted := p.pending.Insert(ping); evicted != nil {
		p.logger.Printf("pending table at capacity, evicted oldest ping %s (tx %s)", evicted.PingID, evicted.TxHash)
	}
	p.statProcessed.Add(1)
	metrics.ProcessedTotal.Inc()
	metrics.PendingPings.Set(float64(p.pending.Len()))

	p.logger.Printf("ping observed: tx=%s block=%d sender=%s", txHash, blockNumber, sender)
	return nil
}

// ProcessTargetEvent implements process_target_event: it records the
// attested block hash, then for every pending ping whose block number
// matches, builds and submits a proof. A submission failure is logged
// and the ping stays pending for the next attestation or sweep.
func (p *Processor) ProcessTargetEvent(ctx context.Context, lg types.Log) error {
	if len(lg.Topics) == 0 || lg.Topics[0] != p.cfg.AttestationTopic0 {
		p.statFiltered.Add(1)
		metrics.FilteredTotal.Inc()
		return nil
	}
	if len(lg.Topics) < 3 {
		p.statInvalid.Add(1)
		metrics.InvalidTotal.Inc()
		p.logger.Printf("dropping malformed attestation log: missing indexed topics (have %d, want 3)", len(lg.Topics))
		return nil
	}

	blockID := lg.Topics[1].Big().Uint64()
	blockHash := lg.Topics[2]

	p.mu.Lock()
	p.stored.Put(blockID, blockHash)
	matched := p.pending.TakeForBlock(blockID)
	metrics.StoredHashes.Set(float64(p.stored.Len()))
	p.mu.Unlock()

	if len(matched) == 0 {
		return nil
	}
	p.logger.Printf("attestation for block %d (%s) matches %d pending ping(s)", blockID, blockHash, len(matched))

	for _, ping := range matched {
		correlationID := uuid.New()
		if err := p.submitOne(ctx, correlationID, ping); err != nil {
			p.logger.Printf("[%s] submission failed for ping %s, left pending: %v", correlationID, ping.PingID, err)
			metrics.SubmissionsTotal.WithLabelValues(metrics.ResultFailure).Inc()
			continue
		}
		metrics.SubmissionsTotal.WithLabelValues(metrics.ResultSuccess).Inc()
		p.mu.Lock()
		p.pending.Remove(ping)
		metrics.PendingPings.Set(float64(p.pending.Len()))
		p.mu.Unlock()
	}
	return nil
}

// submitOne carries correlationID through the build+submit round trip
// purely for log correlation — it is not part of the proof or the
// on-chain call, just a per-attempt tracking ID in the teacher's style.
func (p *Processor) submitOne(ctx context.Context, correlationID uuid.UUID, ping *state.PingEvent) error {
	p.logger.Printf("[%s] building proof for ping %s (tx %s, block %d)", correlationID, ping.PingID, ping.TxHash, ping.BlockNumber)
	proof, err := p.builder.Generate(ctx, ping)
	if err != nil {
		return fmt.Errorf("build proof: %w", err)
	}
	txHash, err := p.submitter.Submit(ctx, proof)
	if err != nil {
		return fmt.Errorf("submit proof: %w", err)
	}
	p.logger.Printf("[%s] submitted ping %s: target tx %s", correlationID, ping.PingID, txHash)
	return nil
}

// GetStats returns a point-in-time snapshot of the processor's counters.
// Counters are read with relaxed consistency, as documented — they are
// for observability only, not coordination.
func (p *Processor) GetStats() Stats {
	p.mu.Lock()
	pending := p.pending.Len()
	stored := p.stored.Len()
	p.mu.Unlock()

	return Stats{
		Processed:  p.statProcessed.Load(),
		Pending:    pending,
		Stored:     stored,
		Filtered:   p.statFiltered.Load(),
		Duplicated: p.statDuplicated.Load(),
		Invalid:    p.statInvalid.Load(),
	}
}

// pingID mirrors the reference implementation's
// keccak(f"{tx_hash}-{sender}-{block_number}") scheme, giving a
// human-debuggable preimage instead of a structured encoding.
func pingID(txHash common.Hash, sender common.Address, blockNumber uint64) common.Hash {
	preimage := fmt.Sprintf("%s-%s-%d", txHash.Hex(), sender.Hex(), blockNumber)
	return crypto.Keccak256Hash([]byte(preimage))
}
