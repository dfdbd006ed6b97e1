// Package submitter encodes a ReceiptProof as a verifier contract call and
// routes it through one of two signing modes: direct local signing
// (go-ethereum's own signer, as the teacher's EVM strategy does), or
// hand-off to an external enclave daemon over its wire protocol.
package submitter

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/rofl-hashi/relayer/pkg/chainclient"
	"github.com/rofl-hashi/relayer/pkg/proofbuilder"
)

// ErrSubmissionFailed is returned when the verifier rejected the proof
// (reverted on-chain) or the enclave daemon reported an error response.
// The caller should leave the ping pending so a later attestation can
// re-trigger a fresh attempt.
var ErrSubmissionFailed = errors.New("submitter: submission failed")

// verifierABIJSON describes the single entry point this relayer calls. Field
// names on abiReceiptProof below are capitalized exactly as go-ethereum's
// struct-argument packer expects (first letter of each ABI component name
// upper-cased, the rest left alone) — they intentionally do not match
// proofbuilder.ReceiptProof's more idiomatic Go field names.
const verifierABIJSON = `[{
	"inputs": [{
		"components": [
			{"name": "chainId", "type": "uint256"},
			{"name": "blockNumber", "type": "uint256"},
			{"name": "blockHeader", "type": "bytes"},
			{"name": "ancestralBlockNumber", "type": "uint256"},
			{"name": "ancestralBlockHeaders", "type": "bytes[]"},
			{"name": "receiptProof", "type": "bytes[]"},
			{"name": "transactionIndex", "type": "bytes"},
			{"name": "logIndex", "type": "uint256"}
		],
		"internalType": "struct ReceiptProof",
		"name": "proof",
		"type": "tuple"
	}],
	"name": "receivePing",
	"outputs": [],
	"stateMutability": "nonpayable",
	"type": "function"
}]`

const receivePingMethod = "receivePing"

type abiReceiptProof struct {
	ChainId               *big.Int
	BlockNumber           *big.Int
	BlockHeader           []byte
	AncestralBlockNumber  *big.Int
	AncestralBlockHeaders [][]byte
	ReceiptProof          [][]byte
	TransactionIndex      []byte
	LogIndex              *big.Int
}

func toABIStruct(p *proofbuilder.ReceiptProof) abiReceiptProof {
	return abiReceiptProof{
		ChainId:               p.ChainID,
		BlockNumber:           p.BlockNumber,
		BlockHeader:           p.BlockHeader,
		AncestralBlockNumber:  p.AncestralBlockNumber,
		AncestralBlockHeaders: p.AncestralBlockHeaders,
		ReceiptProof:          p.MerkleProof,
		TransactionIndex:      p.TransactionIndex,
		LogIndex:              p.LogIndex,
	}
}

// Config controls gas headroom and confirmation waiting, mirroring the
// teacher's EVMStrategyConfig defaults.
type Config struct {
	VerifierAddress common.Address
	GasLimit        uint64
	MaxGasPriceGwei int64
	ReceiptTimeout  time.Duration
}

// DefaultConfig mirrors the teacher's DefaultEVMStrategyConfig values,
// adjusted for this design's receipt-wait bound (§4.5: "wait for receipt
// up to 30 s").
func DefaultConfig(verifier common.Address) Config {
	return Config{
		VerifierAddress: verifier,
		GasLimit:        3_000_000,
		MaxGasPriceGwei: 100,
		ReceiptTimeout:  30 * time.Second,
	}
}

// Submitter sends ReceiptProofs to the verifier contract, either by
// signing locally or by handing the call off to an enclave daemon.
type Submitter struct {
	cfg    Config
	target *chainclient.Client
	abi    abi.ABI

	local   *localSigner   // nil in enclave mode
	enclave *enclaveSigner // nil in local mode
}

type localSigner struct {
	auth *bind.TransactOpts
}

// NewLocal constructs a Submitter that signs and broadcasts transactions
// itself using privateKeyHex.
func NewLocal(target *chainclient.Client, cfg Config, privateKeyHex string) (*Submitter, error) {
	parsedABI, err := abi.JSON(strings.NewReader(verifierABIJSON))
	if err != nil {
		return nil, fmt.Errorf("submitter: parse verifier abi: %w", err)
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("submitter: parse local private key: %w", err)
	}

	auth, err := bind.NewKeyedTransactorWithChainID(key, target.ChainID())
	if err != nil {
		return nil, fmt.Errorf("submitter: build transactor: %w", err)
	}
	auth.GasLimit = cfg.GasLimit

	return &Submitter{
		cfg:    cfg,
		target: target,
		abi:    parsedABI,
		local:  &localSigner{auth: auth},
	}, nil
}

// NewEnclave constructs a Submitter that hands unsigned calls off to an
// enclave signer daemon reachable at socketPath (a Unix socket path or an
// http(s) URL).
func NewEnclave(target *chainclient.Client, cfg Config, socketPath string) (*Submitter, error) {
	parsedABI, err := abi.JSON(strings.NewReader(verifierABIJSON))
	if err != nil {
		return nil, fmt.Errorf("submitter: parse verifier abi: %w", err)
	}

	return &Submitter{
		cfg:     cfg,
		target:  target,
		abi:     parsedABI,
		enclave: newEnclaveSigner(socketPath),
	}, nil
}

// Submit encodes proof as a receivePing call and routes it through the
// configured signing mode. It returns the transaction hash on success (or
// the empty hash for an enclave submission reporting provisional success
// without one).
func (s *Submitter) Submit(ctx context.Context, proof *proofbuilder.ReceiptProof) (common.Hash, error) {
	callData, err := s.abi.Pack(receivePingMethod, toABIStruct(proof))
	if err != nil {
		return common.Hash{}, fmt.Errorf("submitter: pack call: %w", err)
	}

	if s.local != nil {
		return s.submitLocal(ctx, callData)
	}
	return s.submitEnclave(ctx, callData)
}

func (s *Submitter) submitLocal(ctx context.Context, callData []byte) (common.Hash, error) {
	gasPrice, err := s.target.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("submitter: suggest gas price: %w", err)
	}
	maxGasPrice := new(big.Int).Mul(big.NewInt(s.cfg.MaxGasPriceGwei), big.NewInt(1_000_000_000))
	if gasPrice.Cmp(maxGasPrice) > 0 {
		gasPrice = maxGasPrice
	}

	nonce, err := s.target.PendingNonceAt(ctx, s.local.auth.From)
	if err != nil {
		return common.Hash{}, fmt.Errorf("submitter: pending nonce: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &s.cfg.VerifierAddress,
		Value:    big.NewInt(0),
		Gas:      s.cfg.GasLimit,
		GasPrice: gasPrice,
		Data:     callData,
	})

	signedTx, err := s.local.auth.Signer(s.local.auth.From, tx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("submitter: sign transaction: %w", err)
	}

	if err := s.target.SendTransaction(ctx, signedTx); err != nil {
		return common.Hash{}, fmt.Errorf("submitter: send transaction: %w", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, s.cfg.ReceiptTimeout)
	defer cancel()
	receipt, err := s.target.WaitMined(waitCtx, signedTx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("submitter: wait for receipt: %w", err)
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		return signedTx.Hash(), fmt.Errorf("%w: verifier reverted tx %s", ErrSubmissionFailed, signedTx.Hash())
	}
	return signedTx.Hash(), nil
}

func (s *Submitter) submitEnclave(ctx context.Context, callData []byte) (common.Hash, error) {
	req := enclaveTxRequest{
		Kind: "eth",
		Data: enclaveTxData{
			GasLimit: s.cfg.GasLimit,
			To:       strings.TrimPrefix(s.cfg.VerifierAddress.Hex(), "0x"),
			Value:    "0",
			Data:     common.Bytes2Hex(callData),
		},
	}

	resp, err := s.enclave.signAndSubmit(ctx, req)
	if err != nil {
		return common.Hash{}, fmt.Errorf("submitter: enclave daemon: %w", err)
	}

	switch resp.outcome {
	case enclaveOutcomeFailure:
		return common.Hash{}, fmt.Errorf("%w: enclave reported error: %s", ErrSubmissionFailed, resp.message)
	case enclaveOutcomeUnknown:
		// Neither "ok" nor "error" present: treated as provisional
		// success per the documented open question, with the result's
		// message logged as a warning.
		log.Printf("submitter: warning: %s", resp.message)
		return common.Hash{}, nil
	default:
		return resp.txHash, nil
	}
}
