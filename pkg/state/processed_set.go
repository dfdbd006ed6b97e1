// Package state implements the three bounded, insertion-ordered
// collections the relayer's coordination core depends on: a FIFO dedupe
// set of seen transaction hashes, a block-indexed pending-ping table, and
// an insertion-ordered table of attested block hashes. Each evicts its
// oldest entry in O(1) once its configured capacity is exceeded.
package state

import "container/list"

// ProcessedSet is an insertion-ordered set of transaction-hash strings
// with bounded capacity, used to make source-event ingestion idempotent.
type ProcessedSet struct {
	capacity int
	order    *list.List
	index    map[string]*list.Element
}

// NewProcessedSet constructs a ProcessedSet that holds at most capacity
// entries. capacity <= 0 is treated as 1.
func NewProcessedSet(capacity int) *ProcessedSet {
	if capacity <= 0 {
		capacity = 1
	}
	return &ProcessedSet{
		capacity: capacity,
		order:    list.New(),
		index:    make(map[string]*list.Element, capacity),
	}
}

// Contains reports whether txHash has already been recorded.
func (s *ProcessedSet) Contains(txHash string) bool {
	_, ok := s.index[txHash]
	return ok
}

// Add records txHash as processed, evicting the oldest entry if the set
// is already at capacity. Adding an already-present hash is a no-op.
func (s *ProcessedSet) Add(txHash string) {
	if s.Contains(txHash) {
		return
	}
	if s.order.Len() >= s.capacity {
		s.evictOldest()
	}
	elem := s.order.PushBack(txHash)
	s.index[txHash] = elem
}

func (s *ProcessedSet) evictOldest() {
	oldest := s.order.Front()
	if oldest == nil {
		return
	}
	s.order.Remove(oldest)
	delete(s.index, oldest.Value.(string))
}

// Len returns the number of currently tracked transaction hashes.
func (s *ProcessedSet) Len() int {
	return s.order.Len()
}
