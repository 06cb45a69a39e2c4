// Package events defines the domain events the engine emits and the
// recorder that buffers them until the owning operation commits.
//
// Delivery guarantees are intentionally minimal: an event is published
// iff the operation that produced it committed. Failed operations leave
// no events behind.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Type names a domain event.
type Type string

const (
	TypeRegistered       Type = "registered"
	TypeApproved         Type = "approved"
	TypeResigned         Type = "resigned"
	TypeRevoked          Type = "revoked"
	TypeCustodyGranted   Type = "custody_granted"
	TypeAccessGranted    Type = "access_granted"
	TypePolicyRegistered Type = "policy_registered"
)

// Event is a committed domain event. ID and Time are assigned at
// commit; the remaining fields carry whichever ids and amounts the
// operation touched.
type Event struct {
	ID   string
	Type Type
	Time time.Time

	DistributorID uint64
	ContentID     uint64
	AccountID     uint64
	PolicyID      uint64
	Amount        uint64
	Currency      string
}

// Sink receives committed events. Implementations must not block the
// publishing operation for long; there is no redelivery.
type Sink interface {
	Publish(Event)
}

// Recorder buffers the events of an in-flight operation and publishes
// them to the sink only when the operation commits.
type Recorder struct {
	mu      sync.Mutex
	pending []Event
	sink    Sink
	now     func() time.Time
}

// NewRecorder creates a recorder publishing to sink. A nil sink
// discards committed events. clock may be nil, in which case time.Now
// is used.
func NewRecorder(sink Sink, clock func() time.Time) *Recorder {
	if clock == nil {
		clock = time.Now
	}
	return &Recorder{sink: sink, now: clock}
}

// Record buffers an event for the current operation.
func (r *Recorder) Record(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = append(r.pending, e)
}

// Commit stamps and publishes all buffered events in record order.
func (r *Recorder) Commit() {
	r.mu.Lock()
	batch := r.pending
	r.pending = nil
	r.mu.Unlock()

	if r.sink == nil {
		return
	}
	for _, e := range batch {
		e.ID = uuid.NewString()
		e.Time = r.now()
		r.sink.Publish(e)
	}
}

// Discard drops all buffered events; called when an operation fails.
func (r *Recorder) Discard() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = nil
}

// MemorySink collects published events, for tests and local observers.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

// Publish appends the event.
func (s *MemorySink) Publish(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

// Events returns a copy of everything published so far.
func (s *MemorySink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}
