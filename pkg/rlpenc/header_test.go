package rlpenc

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

func legacyHeader() *types.Header {
	return &types.Header{
		ParentHash:  common.HexToHash("0x01"),
		UncleHash:   types.EmptyUncleHash,
		Coinbase:    common.HexToAddress("0x02"),
		Root:        common.HexToHash("0x03"),
		TxHash:      common.HexToHash("0x04"),
		ReceiptHash: common.HexToHash("0x05"),
		Difficulty:  big.NewInt(1),
		Number:      big.NewInt(100),
		GasLimit:    30_000_000,
		GasUsed:     21_000,
		Time:        1700000000,
		Extra:       []byte{},
		MixDigest:   common.HexToHash("0x06"),
	}
}

func TestHeaderSelfCheckLegacy(t *testing.T) {
	h := legacyHeader()
	ok, _, err := HeaderSelfCheck(h)
	if err != nil {
		t.Fatalf("HeaderSelfCheck: %v", err)
	}
	if !ok {
		t.Fatal("legacy header self-check mismatch: field order or presence is wrong")
	}
}

func TestHeaderSelfCheckLondon(t *testing.T) {
	h := legacyHeader()
	h.BaseFee = big.NewInt(7)
	ok, _, err := HeaderSelfCheck(h)
	if err != nil {
		t.Fatalf("HeaderSelfCheck: %v", err)
	}
	if !ok {
		t.Fatal("London header (baseFeePerGas) self-check mismatch")
	}
}

func TestHeaderSelfCheckCancun(t *testing.T) {
	h := legacyHeader()
	h.BaseFee = big.NewInt(7)
	wr := common.HexToHash("0x07")
	h.WithdrawalsHash = &wr
	blobUsed := uint64(10)
	excess := uint64(20)
	h.BlobGasUsed = &blobUsed
	h.ExcessBlobGas = &excess
	pbr := common.HexToHash("0x08")
	h.ParentBeaconRoot = &pbr

	ok, _, err := HeaderSelfCheck(h)
	if err != nil {
		t.Fatalf("HeaderSelfCheck: %v", err)
	}
	if !ok {
		t.Fatal("Cancun header self-check mismatch: trailing optional field order is wrong")
	}
}

func TestEncodeBlockHeaderNilFails(t *testing.T) {
	if _, err := EncodeBlockHeader(nil); err == nil {
		t.Fatal("expected error for nil header")
	}
}
