// Package rlpenc provides the RLP encodings the relayer needs to reproduce
// independently of go-ethereum's own (unexported-field-heavy) marshaling:
// receipts keyed for the receipts trie, and block headers across hardforks.
package rlpenc

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"
)

// rlpLog mirrors the three-field RLP shape of a log entry: address, topics,
// data. Field order matters and must match go-ethereum's own encoding.
type rlpLog struct {
	Address common.Address
	Topics  []common.Hash
	Data    []byte
}

// EncodeReceipt produces the canonical RLP for a transaction receipt,
// prefixed with the EIP-2718 type byte for non-legacy transaction types.
//
// The payload itself is the 4-element legacy receipt RLP list
// [status, cumulativeGasUsed, logsBloom, logs] — Byzantium onward always
// carries the status field, never the pre-Byzantium intermediate state root,
// which this relayer does not need to support (sources old enough to predate
// Byzantium cannot run the contracts this relayer watches).
func EncodeReceipt(r *types.Receipt) ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("rlpenc: nil receipt")
	}

	logs := make([]rlpLog, len(r.Logs))
	for i, lg := range r.Logs {
		if lg == nil {
			return nil, fmt.Errorf("rlpenc: nil log at index %d", i)
		}
		logs[i] = rlpLog{Address: lg.Address, Topics: lg.Topics, Data: lg.Data}
	}

	payload := struct {
		Status            uint64
		CumulativeGasUsed uint64
		Bloom             types.Bloom
		Logs              []rlpLog
	}{
		Status:            r.Status,
		CumulativeGasUsed: r.CumulativeGasUsed,
		Bloom:             r.Bloom,
		Logs:              logs,
	}

	body, err := rlp.EncodeToBytes(payload)
	if err != nil {
		return nil, fmt.Errorf("rlpenc: encode receipt body: %w", err)
	}

	if r.Type == types.LegacyTxType {
		return body, nil
	}

	out := make([]byte, 0, len(body)+1)
	out = append(out, r.Type)
	out = append(out, body...)
	return out, nil
}

// EncodeTransactionIndex applies Ethereum's RLP-key quirk for trie paths:
// index 0 is keyed by the RLP encoding of the empty byte string (0x80).
// go-ethereum's RLP already encodes the integer 0 as that same byte, so
// the special case only makes the rule explicit; every other index is
// encoded as the unsigned integer (137 encodes as 0x8189).
func EncodeTransactionIndex(i uint64) []byte {
	if i == 0 {
		return []byte{0x80}
	}
	return rlp.AppendUint64(nil, i)
}
