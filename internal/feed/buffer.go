// Package feed holds the bounded, hash-unique, newest-first list of enriched transactions.
package feed

import (
	"slices"
	"sync"

	"github.com/sand/chain-feed/backend/internal/core/ports"
	"github.com/sand/chain-feed/backend/internal/entities"
)

// Buffer is safe for concurrent use. Every mutation happens under one lock,
// so readers never observe a partially applied upsert or merge.
type Buffer struct {
	mu       sync.RWMutex
	capacity int
	live     []entities.EnrichedTransaction

	// snapshot is the frozen view; valid only while frozen is set.
	snapshot []entities.EnrichedTransaction
	frozen   bool

	onChange func()
}

// NewBuffer creates a buffer holding at most capacity entries. onChange, if set,
// is called after each mutation outside the lock.
func NewBuffer(capacity int, onChange func()) *Buffer {
	if capacity <= 0 {
		capacity = ports.DefaultFeedCapacity
	}
	return &Buffer{
		capacity: capacity,
		live:     make([]entities.EnrichedTransaction, 0, capacity),
		onChange: onChange,
	}
}

// Upsert removes any entry with the same hash, prepends tx and drops the oldest overflow.
// It applies to the live list even while frozen.
func (b *Buffer) Upsert(tx entities.EnrichedTransaction) {
	b.mu.Lock()
	b.live = slices.DeleteFunc(b.live, func(e entities.EnrichedTransaction) bool {
		return e.Hash == tx.Hash
	})
	b.live = slices.Insert(b.live, 0, tx)
	if len(b.live) > b.capacity {
		b.live = b.live[:b.capacity]
	}
	b.mu.Unlock()

	b.notify()
}

// Freeze captures the current contents as the displayed view. Freezing twice keeps the first snapshot.
func (b *Buffer) Freeze() {
	b.mu.Lock()
	if b.frozen {
		b.mu.Unlock()
		return
	}
	b.snapshot = slices.Clone(b.live)
	b.frozen = true
	b.mu.Unlock()

	b.notify()
}

// Thaw merges the snapshot with the live list: union by hash with live entries winning,
// newest observedAt first, truncated to capacity. The snapshot is discarded.
func (b *Buffer) Thaw() {
	b.mu.Lock()
	if !b.frozen {
		b.mu.Unlock()
		return
	}

	merged := make([]entities.EnrichedTransaction, 0, len(b.live)+len(b.snapshot))
	seen := make(map[string]struct{}, len(b.live)+len(b.snapshot))
	for _, tx := range b.live {
		if _, ok := seen[tx.Hash]; ok {
			continue
		}
		seen[tx.Hash] = struct{}{}
		merged = append(merged, tx)
	}
	for _, tx := range b.snapshot {
		if _, ok := seen[tx.Hash]; ok {
			continue
		}
		seen[tx.Hash] = struct{}{}
		merged = append(merged, tx)
	}

	slices.SortStableFunc(merged, func(a, c entities.EnrichedTransaction) int {
		return c.ObservedAt.Compare(a.ObservedAt)
	})
	if len(merged) > b.capacity {
		merged = merged[:b.capacity]
	}

	b.live = merged
	b.snapshot = nil
	b.frozen = false
	b.mu.Unlock()

	b.notify()
}

// View returns a copy of what should be displayed: the snapshot while frozen, the live list otherwise.
func (b *Buffer) View() []entities.EnrichedTransaction {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.frozen {
		return slices.Clone(b.snapshot)
	}
	return slices.Clone(b.live)
}

// Live returns a copy of the live list regardless of freeze state.
func (b *Buffer) Live() []entities.EnrichedTransaction {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Clone(b.live)
}

func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.live)
}

func (b *Buffer) Frozen() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.frozen
}

func (b *Buffer) Capacity() int {
	return b.capacity
}

func (b *Buffer) notify() {
	if b.onChange != nil {
		b.onChange()
	}
}
