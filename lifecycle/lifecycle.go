// Package lifecycle implements a generic four-state registration ledger.
//
// Entities move Pending → Waiting on registration, Waiting → Active on
// approval, Waiting → Pending on a voluntary quit, and Active → Blocked
// on revocation. Blocked is terminal. The ledger knows nothing about
// what an entity represents and owns no timers; time-boxed expiry is
// layered on top by the enrollment manager.
package lifecycle

import "sync"

// Status is the registration state of an entity.
type Status uint8

const (
	// StatusPending is the initial state; unknown entities read as Pending.
	StatusPending Status = iota

	// StatusWaiting means the entity has registered and awaits approval.
	StatusWaiting

	// StatusActive means the entity has been approved.
	StatusActive

	// StatusBlocked means the entity has been revoked. Terminal.
	StatusBlocked
)

// String returns a human-readable status name.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusWaiting:
		return "waiting"
	case StatusActive:
		return "active"
	case StatusBlocked:
		return "blocked"
	default:
		return "unknown"
	}
}

// Ledger tracks the registration status of entities keyed by numeric id.
type Ledger struct {
	mu     sync.RWMutex
	states map[uint64]Status
}

// NewLedger creates an empty registration ledger.
func NewLedger() *Ledger {
	return &Ledger{states: make(map[uint64]Status)}
}

// StatusOf returns the current status of id. Entities that have never
// registered read as StatusPending.
func (l *Ledger) StatusOf(id uint64) Status {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.states[id]
}

// Register transitions id from Pending to Waiting.
// Returns ErrAlreadyPending if id is in any other state.
func (l *Ledger) Register(id uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.states[id] != StatusPending {
		return ErrAlreadyPending
	}
	l.states[id] = StatusWaiting
	return nil
}

// Approve transitions id from Waiting to Active.
// Returns ErrNotWaiting if id is in any other state.
func (l *Ledger) Approve(id uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.states[id] != StatusWaiting {
		return ErrNotWaiting
	}
	l.states[id] = StatusActive
	return nil
}

// Quit transitions id from Waiting back to Pending.
// Returns ErrNotWaiting if id is in any other state.
func (l *Ledger) Quit(id uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.states[id] != StatusWaiting {
		return ErrNotWaiting
	}
	l.states[id] = StatusPending
	return nil
}

// Revoke transitions id from Active to Blocked. There is no path back.
// Returns ErrNotActive if id is in any other state.
func (l *Ledger) Revoke(id uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.states[id] != StatusActive {
		return ErrNotActive
	}
	l.states[id] = StatusBlocked
	return nil
}
