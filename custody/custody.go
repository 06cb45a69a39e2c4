// Package custody maps content items to their current custodian
// distributor and maintains the reverse enumerable set per distributor.
//
// A content item has at most one custodian at any time. Reassignment
// removes the item from the previous custodian's set in the same
// operation, using swap-with-last removal so membership updates stay
// O(1) regardless of custodial load. Iteration order of a custodian's
// registry is consequently unspecified.
package custody

import "sync"

// Assignment tracks custody of content items.
type Assignment struct {
	mu        sync.RWMutex
	custodian map[uint64]uint64         // contentID → distributorID
	registry  map[uint64][]uint64       // distributorID → contentIDs
	index     map[uint64]map[uint64]int // distributorID → contentID → position in registry
}

// NewAssignment creates an empty custody assignment.
func NewAssignment() *Assignment {
	return &Assignment{
		custodian: make(map[uint64]uint64),
		registry:  make(map[uint64][]uint64),
		index:     make(map[uint64]map[uint64]int),
	}
}

// Grant assigns custody of contentID to distributorID, removing the
// item from the previous custodian's set if one exists. Granting to the
// current custodian is a no-op.
func (a *Assignment) Grant(contentID, distributorID uint64) error {
	if distributorID == 0 {
		return ErrInvalidDistributor
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if prev, ok := a.custodian[contentID]; ok {
		if prev == distributorID {
			return nil
		}
		a.remove(prev, contentID)
	}

	a.custodian[contentID] = distributorID
	if a.index[distributorID] == nil {
		a.index[distributorID] = make(map[uint64]int)
	}
	a.index[distributorID][contentID] = len(a.registry[distributorID])
	a.registry[distributorID] = append(a.registry[distributorID], contentID)
	return nil
}

// remove deletes contentID from distributorID's set by swapping the
// last element into its slot and truncating. Must be called with the
// lock held; the pair must exist.
func (a *Assignment) remove(distributorID, contentID uint64) {
	idx := a.index[distributorID]
	set := a.registry[distributorID]
	pos := idx[contentID]
	last := len(set) - 1
	if pos != last {
		moved := set[last]
		set[pos] = moved
		idx[moved] = pos
	}
	a.registry[distributorID] = set[:last]
	delete(idx, contentID)
}

// Custodian returns the current custodian of contentID.
func (a *Assignment) Custodian(contentID uint64) (uint64, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	d, ok := a.custodian[contentID]
	return d, ok
}

// Count returns how many content items distributorID currently custodies.
func (a *Assignment) Count(distributorID uint64) uint64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return uint64(len(a.registry[distributorID]))
}

// Registry returns a copy of the content ids custodied by distributorID.
func (a *Assignment) Registry(distributorID uint64) []uint64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	set := a.registry[distributorID]
	out := make([]uint64, len(set))
	copy(out, set)
	return out
}
