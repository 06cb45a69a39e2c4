// Package policy implements the per-account policy registry and the
// LIFO compliance evaluator.
//
// Each account carries an ordered set of policy ids. Evaluation walks
// the set from the most recently registered policy backward and stops
// at the first one that complies. Compliance calls go out to untrusted
// code, so evaluation works on a snapshot taken under the lock and
// never holds it across an external call.
package policy

import (
	"fmt"
	"sync"

	"github.com/rightsorg/librights-go/component"
)

// Registry tracks registered access policies per account.
type Registry struct {
	mu       sync.RWMutex
	sets     map[uint64][]uint64 // accountID → policy ids, insertion order
	policies map[uint64]component.Policy
	maxSet   int
}

// NewRegistry creates an empty policy registry. maxPerAccount bounds
// the number of policies an account can carry; zero means unbounded.
func NewRegistry(maxPerAccount int) *Registry {
	return &Registry{
		sets:     make(map[uint64][]uint64),
		policies: make(map[uint64]component.Policy),
		maxSet:   maxPerAccount,
	}
}

// Register adds policy p under policyID to accountID's set. The target
// must expose the policy capability surface: non-nil with a non-empty
// name. Registering an id the account already carries is a no-op.
func (r *Registry) Register(accountID, policyID uint64, p component.Policy) error {
	if p == nil {
		return ErrInvalidPolicy
	}
	if p.Name() == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidPolicy)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	set := r.sets[accountID]
	for _, id := range set {
		if id == policyID {
			return nil
		}
	}
	if r.maxSet > 0 && len(set) >= r.maxSet {
		return fmt.Errorf("%w: account %d", ErrTooManyPolicies, accountID)
	}
	r.sets[accountID] = append(set, policyID)
	r.policies[policyID] = p
	return nil
}

// Revoke removes policyID from accountID's set, preserving the order of
// the remaining entries.
func (r *Registry) Revoke(accountID, policyID uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	set := r.sets[accountID]
	for i, id := range set {
		if id == policyID {
			r.sets[accountID] = append(set[:i], set[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: policy %d for account %d", ErrPolicyNotFound, policyID, accountID)
}

// Policies returns a copy of accountID's policy ids in insertion order.
func (r *Registry) Policies(accountID uint64) []uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.sets[accountID]
	out := make([]uint64, len(set))
	copy(out, set)
	return out
}

// Policy returns the registered implementation for policyID.
func (r *Registry) Policy(policyID uint64) (component.Policy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.policies[policyID]
	return p, ok
}

// ActivePolicy evaluates accountID's policies newest-first and returns
// the id of the first one whose Comply accepts (accountID, contentID).
// Returns (0, false) when the account has no policies or none comply.
//
// Compliance calls run outside the registry lock against a snapshot of
// the set; a policy mutating the registry mid-evaluation does not
// affect the scan in progress.
func (r *Registry) ActivePolicy(accountID, contentID uint64) (uint64, bool) {
	r.mu.RLock()
	set := r.sets[accountID]
	ids := make([]uint64, len(set))
	copy(ids, set)
	impls := make([]component.Policy, len(ids))
	for i, id := range ids {
		impls[i] = r.policies[id]
	}
	r.mu.RUnlock()

	for i := len(ids) - 1; i >= 0; i-- {
		if impls[i] == nil {
			continue
		}
		if impls[i].Comply(accountID, contentID) {
			return ids[i], true
		}
	}
	return 0, false
}
