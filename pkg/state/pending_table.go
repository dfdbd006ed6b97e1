package state

import (
	"container/list"

	"github.com/ethereum/go-ethereum/common"
)

// PingEvent is the immutable record of a single observed source-chain
// event awaiting proof generation and submission.
type PingEvent struct {
	TxHash      common.Hash
	BlockNumber uint64
	Sender      common.Address
	Timestamp   uint64
	PingID      common.Hash
}

// PendingTable is the block-indexed, insertion-ordered collection of
// pending pings described in the data model: a map keyed by block number
// for O(1) lookup by block, plus a FIFO ordering across all pending pings
// for O(1) oldest-first eviction. The two views are kept in lock-step —
// every entry in one is reachable from the other.
type PendingTable struct {
	capacity int
	order    *list.List // of *pendingEntry, oldest first
	byBlock  map[uint64][]*pendingEntry
}

type pendingEntry struct {
	ping *PingEvent
	elem *list.Element
}

// NewPendingTable constructs a PendingTable holding at most capacity
// pings in total across all blocks. capacity <= 0 is treated as 1.
func NewPendingTable(capacity int) *PendingTable {
	if capacity <= 0 {
		capacity = 1
	}
	return &PendingTable{
		capacity: capacity,
		order:    list.New(),
		byBlock:  make(map[uint64][]*pendingEntry),
	}
}

// Insert appends ping to the table, evicting the oldest pending ping
// first if the table is already at capacity. It returns the evicted ping,
// or nil if nothing was evicted.
func (t *PendingTable) Insert(ping *PingEvent) *PingEvent {
	var evicted *PingEvent
	if t.order.Len() >= t.capacity {
		evicted = t.evictOldestLocked()
	}

	entry := &pendingEntry{ping: ping}
	entry.elem = t.order.PushBack(entry)
	t.byBlock[ping.BlockNumber] = append(t.byBlock[ping.BlockNumber], entry)

	return evicted
}

func (t *PendingTable) evictOldestLocked() *PingEvent {
	oldest := t.order.Front()
	if oldest == nil {
		return nil
	}
	entry := oldest.Value.(*pendingEntry)
	t.removeEntry(entry)
	return entry.ping
}

func (t *PendingTable) removeEntry(entry *pendingEntry) {
	t.order.Remove(entry.elem)

	bucket := t.byBlock[entry.ping.BlockNumber]
	for i, e := range bucket {
		if e == entry {
			bucket = append(bucket[:i], bucket[i+1:]...)
			break
		}
	}
	if len(bucket) == 0 {
		delete(t.byBlock, entry.ping.BlockNumber)
	} else {
		t.byBlock[entry.ping.BlockNumber] = bucket
	}
}

// TakeForBlock returns a copy of all pings currently pending for
// blockNumber, in insertion order, without removing them. Use Remove
// once a ping's submission has succeeded.
func (t *PendingTable) TakeForBlock(blockNumber uint64) []*PingEvent {
	bucket := t.byBlock[blockNumber]
	if len(bucket) == 0 {
		return nil
	}
	out := make([]*PingEvent, len(bucket))
	for i, e := range bucket {
		out[i] = e.ping
	}
	return out
}

// Remove deletes ping from both the block index and the FIFO ordering.
// It is a no-op if ping is not present (e.g. already removed).
func (t *PendingTable) Remove(ping *PingEvent) {
	for _, e := range t.byBlock[ping.BlockNumber] {
		if e.ping.PingID == ping.PingID {
			t.removeEntry(e)
			return
		}
	}
}

// Len returns the total number of pending pings across all blocks.
func (t *PendingTable) Len() int {
	return t.order.Len()
}
