package receiptstrie

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

func sampleReceipts() []*types.Receipt {
	return []*types.Receipt{
		{
			Type:              types.LegacyTxType,
			Status:            types.ReceiptStatusSuccessful,
			CumulativeGasUsed: 21000,
		},
		{
			Type:              types.DynamicFeeTxType,
			Status:            types.ReceiptStatusSuccessful,
			CumulativeGasUsed: 63000,
			Logs: []*types.Log{
				{
					Address: common.HexToAddress("0x1111111111111111111111111111111111111111"),
					Topics:  []common.Hash{common.HexToHash("0xbeef")},
					Data:    []byte{1, 2, 3},
				},
			},
		},
	}
}

func TestBuildRejectsWrongRoot(t *testing.T) {
	receipts := sampleReceipts()
	if _, err := Build(receipts, common.Hash{}); err == nil {
		t.Fatal("expected ErrRootMismatch for a deliberately wrong root")
	}
}

func TestBuildAndProveRoundTrip(t *testing.T) {
	receipts := sampleReceipts()

	unverified, err := buildTrie(receipts)
	if err != nil {
		t.Fatalf("buildTrie: %v", err)
	}
	root := unverified.root

	built, err := Build(receipts, root)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if built.Root() != root {
		t.Fatalf("Root() = %s, want %s", built.Root(), root)
	}

	proof0, err := built.Prove(0)
	if err != nil {
		t.Fatalf("Prove(0): %v", err)
	}
	if len(proof0) == 0 {
		t.Fatal("expected at least one proof node for index 0")
	}

	proof1, err := built.Prove(1)
	if err != nil {
		t.Fatalf("Prove(1): %v", err)
	}
	if len(proof1) == 0 {
		t.Fatal("expected at least one proof node for index 1")
	}
}

func TestProveUnknownIndexFails(t *testing.T) {
	receipts := sampleReceipts()
	unverified, err := buildTrie(receipts)
	if err != nil {
		t.Fatalf("buildTrie: %v", err)
	}
	built, err := Build(receipts, unverified.root)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if _, err := built.Prove(99); err == nil {
		t.Fatal("expected error for out-of-range transaction index")
	}
}

func TestDifferentTransactionsProduceDistinctRoots(t *testing.T) {
	a, err := buildTrie(sampleReceipts()[:1])
	if err != nil {
		t.Fatalf("buildTrie: %v", err)
	}
	b, err := buildTrie(sampleReceipts())
	if err != nil {
		t.Fatalf("buildTrie: %v", err)
	}
	if a.root == b.root {
		t.Fatal("expected different receipt sets to produce different roots")
	}
}
