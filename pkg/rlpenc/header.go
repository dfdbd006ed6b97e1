package rlpenc

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

// rlpHeader is our own struct describing a block header's RLP shape,
// independent of go-ethereum's types.Header encoding path. Keeping a
// separate struct makes the keccak self-check in EncodeBlockHeader a real
// cross-check of field order and presence rather than a tautology.
//
// Field order is fixed by the protocol: the 15 legacy fields, then any of
// the post-London fields present on this network, in the order each
// hardfork introduced them. rlp:"optional" fields are omitted entirely
// from the encoding when this struct's trailing fields are left at their
// zero value AND no later optional field is set (go-ethereum's rlp package
// requires optional fields be a suffix-contiguous run of zero values).
type rlpHeader struct {
	ParentHash  common.Hash
	UncleHash   common.Hash
	Coinbase    common.Address
	Root        common.Hash
	TxHash      common.Hash
	ReceiptHash common.Hash
	Bloom       types.Bloom
	Difficulty  *big.Int
	Number      *big.Int
	GasLimit    uint64
	GasUsed     uint64
	Time        uint64
	Extra       []byte
	MixDigest   common.Hash
	Nonce       types.BlockNonce

	BaseFee               *big.Int     `rlp:"optional"` // EIP-1559 / London
	WithdrawalsHash       *common.Hash `rlp:"optional"` // EIP-4895 / Shanghai
	BlobGasUsed           *uint64      `rlp:"optional"` // EIP-4844 / Cancun
	ExcessBlobGas         *uint64      `rlp:"optional"` // EIP-4844 / Cancun
	ParentBeaconBlockRoot *common.Hash `rlp:"optional"` // EIP-4788 / Cancun
	RequestsHash          *common.Hash `rlp:"optional"` // EIP-7685 / Prague
}

// HeaderSelfCheck reports whether the RLP encoding this package would
// produce for h hashes to h.Hash() — go-ethereum's own canonical hash,
// computed independently of this package. A mismatch means a field was
// dropped, reordered, or a newer hardfork field is missing; see
// EncodeBlockHeader's doc comment.
func HeaderSelfCheck(h *types.Header) (bool, []byte, error) {
	encoded, err := EncodeBlockHeader(h)
	if err != nil {
		return false, nil, err
	}
	got := crypto.Keccak256Hash(encoded)
	return got == h.Hash(), encoded, nil
}

// EncodeBlockHeader RLP-encodes a block header the way the receipts-trie
// verification needs it: the 15 legacy fields followed by whichever
// hardfork fields this header actually carries, in protocol order.
//
// Run HeaderSelfCheck against the result when operating against an
// unfamiliar network for the first time; a mismatch there, not here, is
// where a missing trailing field (e.g. a network adding fields beyond
// RequestsHash) will surface.
func EncodeBlockHeader(h *types.Header) ([]byte, error) {
	if h == nil {
		return nil, fmt.Errorf("rlpenc: nil header")
	}

	out := rlpHeader{
		ParentHash:  h.ParentHash,
		UncleHash:   h.UncleHash,
		Coinbase:    h.Coinbase,
		Root:        h.Root,
		TxHash:      h.TxHash,
		ReceiptHash: h.ReceiptHash,
		Bloom:       h.Bloom,
		Difficulty:  nonNilBig(h.Difficulty),
		Number:      nonNilBig(h.Number),
		GasLimit:    h.GasLimit,
		GasUsed:     h.GasUsed,
		Time:        h.Time,
		Extra:       h.Extra,
		MixDigest:   h.MixDigest,
		Nonce:       h.Nonce,
	}

	if h.BaseFee != nil {
		out.BaseFee = h.BaseFee
	}
	if h.WithdrawalsHash != nil {
		out.WithdrawalsHash = h.WithdrawalsHash
	}
	if h.BlobGasUsed != nil {
		out.BlobGasUsed = h.BlobGasUsed
	}
	if h.ExcessBlobGas != nil {
		out.ExcessBlobGas = h.ExcessBlobGas
	}
	if h.ParentBeaconRoot != nil {
		out.ParentBeaconBlockRoot = h.ParentBeaconRoot
	}
	if h.RequestsHash != nil {
		out.RequestsHash = h.RequestsHash
	}

	return rlp.EncodeToBytes(out)
}

func nonNilBig(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
