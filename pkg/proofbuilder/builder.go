// Package proofbuilder orchestrates the receipt/header fetch, receipts
// trie construction, and RLP header encoding needed to produce the eight
// position ReceiptProof tuple a verifier contract can check on-chain.
package proofbuilder

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/rofl-hashi/relayer/pkg/chainclient"
	"github.com/rofl-hashi/relayer/pkg/metrics"
	"github.com/rofl-hashi/relayer/pkg/receiptstrie"
	"github.com/rofl-hashi/relayer/pkg/rlpenc"
	"github.com/rofl-hashi/relayer/pkg/state"
)

// ErrChainDataUnavailable wraps fetch failures (missing receipt/block) —
// the caller may retry the corresponding transport operation later, but
// should not treat this as a permanent failure for the ping.
var ErrChainDataUnavailable = errors.New("proofbuilder: chain data unavailable")

// PingEventSignature is the source-chain event this relayer proves
// inclusion of. It is hashed with Keccak256, matching how the EVM itself
// computes a log's topic-0 — unlike a SHA256-based shortcut, this value
// is directly comparable against on-chain log topics.
const PingEventSignature = "Ping(address,uint256)"

var pingTopic0 = crypto.Keccak256Hash([]byte(PingEventSignature))

// ReceiptProof is the eight-position tuple the verifier contract expects.
// AncestralBlockNumber and AncestralBlockHeaders are reserved for a future
// ancestral-block chain proof and are always emitted as zero/empty to
// keep the on-chain ABI stable.
//
// LogIndex is the position of the matching log within its *transaction's*
// receipt, not its position within the whole block — this assumption is
// recorded as an explicit open question; confirm it against the deployed
// verifier before depending on it in production.
type ReceiptProof struct {
	ChainID               *big.Int
	BlockNumber           *big.Int
	BlockHeader           []byte
	AncestralBlockNumber  *big.Int
	AncestralBlockHeaders [][]byte
	MerkleProof           [][]byte
	TransactionIndex      []byte
	LogIndex              *big.Int
}

// Builder generates ReceiptProofs for pings observed on a single source
// chain.
type Builder struct {
	source *chainclient.Client
}

// New constructs a Builder reading block and receipt data from source.
func New(source *chainclient.Client) *Builder {
	return &Builder{source: source}
}

// Generate produces the ReceiptProof for ping. A failed receipt, block or
// block-receipts fetch (transport failures included; the client's error
// is kept in the message, not wrapped) or a transaction missing from its
// block returns an error wrapping ErrChainDataUnavailable. A rebuilt root
// that disagrees with the header returns receiptstrie's ErrRootMismatch
// (do not retry — an encoding bug or non-standard network). Other errors
// come from receipt encoding, proof extraction or header encoding. The
// encoded header is checked against the block hash and a mismatch is
// logged.
func (b *Builder) Generate(ctx context.Context, ping *state.PingEvent) (*ReceiptProof, error) {
	start := time.Now()
	defer func() { metrics.ProofBuildDuration.Observe(time.Since(start).Seconds()) }()

	receipt, err := b.source.TransactionReceipt(ctx, ping.TxHash)
	if err != nil {
		return nil, fmt.Errorf("%w: receipt for %s: %v", ErrChainDataUnavailable, ping.TxHash, err)
	}

	logIndex, found := locatePingLog(receipt, ping.Sender, ping.BlockNumber)
	if !found {
		log.Printf("proofbuilder: no matching Ping log found in receipt for tx %s, defaulting log index to 0", ping.TxHash)
	}

	blockNumber := new(big.Int).SetUint64(ping.BlockNumber)
	block, err := b.source.BlockByNumber(ctx, blockNumber)
	if err != nil {
		return nil, fmt.Errorf("%w: block %d: %v", ErrChainDataUnavailable, ping.BlockNumber, err)
	}

	receipts, err := b.source.BlockReceipts(ctx, blockNumber)
	if err != nil {
		return nil, fmt.Errorf("%w: receipts for block %d: %v", ErrChainDataUnavailable, ping.BlockNumber, err)
	}

	txIndex, err := locateTransactionIndex(block, ping.TxHash)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrChainDataUnavailable, err)
	}

	built, err := receiptstrie.Build(receipts, block.Header().ReceiptHash)
	if err != nil {
		return nil, err // ErrRootMismatch: permanent, do not retry
	}

	proofNodes, err := built.Prove(txIndex)
	if err != nil {
		return nil, fmt.Errorf("proofbuilder: extract merkle proof: %w", err)
	}

	headerOK, encodedHeader, err := rlpenc.HeaderSelfCheck(block.Header())
	if err != nil {
		return nil, fmt.Errorf("proofbuilder: encode header: %w", err)
	}
	if !headerOK {
		log.Printf("proofbuilder: encoded header for block %d does not hash to %s; header field order or presence does not match this network", ping.BlockNumber, block.Hash())
	}

	return &ReceiptProof{
		ChainID:               b.source.ChainID(),
		BlockNumber:           blockNumber,
		BlockHeader:           encodedHeader,
		AncestralBlockNumber:  new(big.Int),
		AncestralBlockHeaders: nil,
		MerkleProof:           proofNodes,
		TransactionIndex:      rlpenc.EncodeTransactionIndex(txIndex),
		LogIndex:              new(big.Int).SetUint64(uint64(logIndex)),
	}, nil
}

// locatePingLog scans receipt's logs for the Ping event matching sender
// and blockNumber, returning its intra-transaction index and whether a
// match was found. Callers default to index 0 and log a warning on a miss
// — this mirrors the degraded-but-non-fatal behavior called for by the
// design.
func locatePingLog(receipt *types.Receipt, sender common.Address, blockNumber uint64) (uint, bool) {
	wantTopic1 := common.BytesToHash(sender.Bytes())
	wantTopic2 := common.BigToHash(new(big.Int).SetUint64(blockNumber))

	for i, entry := range receipt.Logs {
		if len(entry.Topics) < 3 {
			continue
		}
		if entry.Topics[0] != pingTopic0 {
			continue
		}
		if entry.Topics[1] != wantTopic1 {
			continue
		}
		if entry.Topics[2] != wantTopic2 {
			continue
		}
		return uint(i), true
	}
	return 0, false
}

func locateTransactionIndex(block *types.Block, txHash common.Hash) (uint64, error) {
	for i, tx := range block.Transactions() {
		if tx.Hash() == txHash {
			return uint64(i), nil
		}
	}
	return 0, fmt.Errorf("transaction %s not found in block %d", txHash, block.NumberU64())
}
