package state

import (
	"container/list"

	"github.com/ethereum/go-ethereum/common"
)

// StoredHashes is the insertion-ordered, bounded mapping from source
// block number to the block hash attested for it on the target chain.
type StoredHashes struct {
	capacity int
	order    *list.List // of uint64 block numbers, oldest first
	elems    map[uint64]*list.Element
	hashes   map[uint64]common.Hash
}

// NewStoredHashes constructs a StoredHashes table holding at most
// capacity entries. capacity <= 0 is treated as 1.
func NewStoredHashes(capacity int) *StoredHashes {
	if capacity <= 0 {
		capacity = 1
	}
	return &StoredHashes{
		capacity: capacity,
		order:    list.New(),
		elems:    make(map[uint64]*list.Element, capacity),
		hashes:   make(map[uint64]common.Hash, capacity),
	}
}

// Put records blockHash as the attested hash for blockNumber, evicting
// the oldest entry first if the table is already at capacity. Re-putting
// an existing block number overwrites its hash without affecting
// eviction order.
func (s *StoredHashes) Put(blockNumber uint64, blockHash common.Hash) {
	if elem, ok := s.elems[blockNumber]; ok {
		s.hashes[blockNumber] = blockHash
		_ = elem
		return
	}

	if s.order.Len() >= s.capacity {
		oldest := s.order.Front()
		if oldest != nil {
			num := oldest.Value.(uint64)
			s.order.Remove(oldest)
			delete(s.elems, num)
			delete(s.hashes, num)
		}
	}

	elem := s.order.PushBack(blockNumber)
	s.elems[blockNumber] = elem
	s.hashes[blockNumber] = blockHash
}

// Get returns the attested hash for blockNumber, if known.
func (s *StoredHashes) Get(blockNumber uint64) (common.Hash, bool) {
	h, ok := s.hashes[blockNumber]
	return h, ok
}

// Len returns the number of attested blocks currently tracked.
func (s *StoredHashes) Len() int {
	return s.order.Len()
}
