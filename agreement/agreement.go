// Package agreement implements content-access agreement records and the
// settlement broker that disburses the three-way fee split.
//
// An agreement binds a total, a currency, a holder, and an account
// under a deterministic proof digest. Its immutable fields never change
// after creation; the active flag flips exactly once, on settlement.
package agreement

import (
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"golang.org/x/crypto/sha3"
)

// ProofSize is the byte length of an agreement proof digest.
const ProofSize = 32

// Proof is the deterministic digest identifying an agreement.
type Proof [ProofSize]byte

// Agreement is an immutable record of a proposed content-access
// purchase, closed exactly once by settlement.
type Agreement struct {
	Proof     Proof
	Total     uint64
	Currency  string
	HolderID  uint64
	AccountID uint64
	Active    bool
	CreatedAt time.Time
}

// ComputeProof derives the agreement digest from the immutable fields
// and the creation timestamp (unix nanoseconds).
func ComputeProof(total uint64, currency string, holderID, accountID uint64, ts int64) Proof {
	h := sha3.New256()
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], total)
	h.Write(buf[:])
	h.Write([]byte(currency))
	binary.BigEndian.PutUint64(buf[:], holderID)
	h.Write(buf[:])
	binary.BigEndian.PutUint64(buf[:], accountID)
	h.Write(buf[:])
	binary.BigEndian.PutUint64(buf[:], uint64(ts))
	h.Write(buf[:])

	var p Proof
	h.Sum(p[:0])
	return p
}

// Book tracks agreements by proof.
type Book struct {
	mu         sync.RWMutex
	agreements map[Proof]*Agreement
	now        func() time.Time
}

// NewBook creates an empty agreement book. clock may be nil, in which
// case time.Now is used.
func NewBook(clock func() time.Time) *Book {
	if clock == nil {
		clock = time.Now
	}
	return &Book{agreements: make(map[Proof]*Agreement), now: clock}
}

// Create stores a new active agreement and returns it. The proof is
// derived from the immutable fields plus the creation timestamp.
func (b *Book) Create(total uint64, currency string, holderID, accountID uint64) (Agreement, error) {
	if total == 0 {
		return Agreement{}, ErrZeroTotal
	}
	if currency == "" {
		return Agreement{}, ErrEmptyCurrency
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	created := b.now()
	proof := ComputeProof(total, currency, holderID, accountID, created.UnixNano())
	if _, exists := b.agreements[proof]; exists {
		return Agreement{}, fmt.Errorf("%w: %x", ErrDuplicateAgreement, proof[:8])
	}
	a := &Agreement{
		Proof:     proof,
		Total:     total,
		Currency:  currency,
		HolderID:  holderID,
		AccountID: accountID,
		Active:    true,
		CreatedAt: created,
	}
	b.agreements[proof] = a
	return *a, nil
}

// Get returns a copy of the agreement identified by proof.
func (b *Book) Get(proof Proof) (Agreement, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	a, ok := b.agreements[proof]
	if !ok {
		return Agreement{}, false
	}
	return *a, true
}

// Close flips the agreement inactive. An agreement closes exactly once;
// closing an already-closed agreement fails.
func (b *Book) Close(proof Proof) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	a, ok := b.agreements[proof]
	if !ok {
		return fmt.Errorf("%w: %x", ErrAgreementNotFound, proof[:8])
	}
	if !a.Active {
		return fmt.Errorf("%w: %x", ErrAgreementClosed, proof[:8])
	}
	a.Active = false
	return nil
}

// List returns copies of all agreements in unspecified order.
func (b *Book) List() []Agreement {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Agreement, 0, len(b.agreements))
	for _, a := range b.agreements {
		out = append(out, *a)
	}
	return out
}
