package agreement

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rightsorg/librights-go/component"
	"github.com/rightsorg/librights-go/custody"
	"github.com/rightsorg/librights-go/enroll"
	"github.com/rightsorg/librights-go/fees"
	"github.com/rightsorg/librights-go/policy"
)

// Condition carries the caller-supplied inputs to a settlement.
type Condition struct {
	// Proof identifies the agreement being settled.
	Proof Proof

	// Caller is the account invoking settlement; must be the holder.
	Caller uint64
}

// Settlement is the committed outcome of a settle operation.
type Settlement struct {
	Proof       Proof
	ContentID   uint64
	AccountID   uint64
	HolderID    uint64
	CustodianID uint64
	PolicyID    uint64
	Currency    string
	Total       uint64
	Split       Split
	SettledAt   time.Time
}

// grantKey identifies a recorded access grant.
type grantKey struct {
	AccountID uint64
	ContentID uint64
}

// Broker settles agreements: it verifies preconditions, computes the
// three-way split, disburses it all-or-nothing, records the compliant
// policy, and closes the agreement.
//
// Settlement interleaves state mutation with calls into untrusted code
// (the custodian's fee surface, the funds primitive, policy Comply), so
// the whole operation runs under a non-reentrant guard and rolls back
// in full on any failure.
type Broker struct {
	book      *Book
	custody   *custody.Assignment
	fees      *fees.Registry
	policies  *policy.Registry
	enroll    *enroll.Manager
	funds     component.Funds
	ownership component.Ownership

	treasuryID uint64
	now        func() time.Time

	guard atomic.Bool

	mu     sync.RWMutex
	grants map[grantKey]uint64 // account+content → compliant policy id
}

// BrokerOptions configures a Broker.
type BrokerOptions struct {
	Book      *Book
	Custody   *custody.Assignment
	Fees      *fees.Registry
	Policies  *policy.Registry
	Enroll    *enroll.Manager
	Funds     component.Funds
	Ownership component.Ownership

	// TreasuryID is the component id the treasury cut is paid to.
	TreasuryID uint64

	// Clock overrides time.Now, for tests.
	Clock func() time.Time
}

// NewBroker creates a settlement broker.
func NewBroker(opts BrokerOptions) (*Broker, error) {
	if opts.Book == nil || opts.Custody == nil || opts.Fees == nil ||
		opts.Policies == nil || opts.Enroll == nil || opts.Funds == nil ||
		opts.Ownership == nil {
		return nil, ErrNilDependency
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	return &Broker{
		book:       opts.Book,
		custody:    opts.Custody,
		fees:       opts.Fees,
		policies:   opts.Policies,
		enroll:     opts.Enroll,
		funds:      opts.Funds,
		ownership:  opts.Ownership,
		treasuryID: opts.TreasuryID,
		now:        now,
		grants:     make(map[grantKey]uint64),
	}, nil
}

// Settle disburses the agreement identified by cond.Proof for access to
// contentID by accountID.
//
// Preconditions, all checked before any effect: the agreement exists,
// is active, and binds accountID; the content has a custodian; the
// caller is the content holder named in the agreement; the custodian is
// effectively active. The treasury cut uses the engine's own fee
// registry entry for the agreement currency, the custodian cut uses the
// custodian's declared fee. All three transfers apply or none do.
func (br *Broker) Settle(contentID, accountID uint64, cond Condition) (Settlement, error) {
	if !br.guard.CompareAndSwap(false, true) {
		return Settlement{}, ErrReentrantCall
	}
	defer br.guard.Store(false)

	a, ok := br.book.Get(cond.Proof)
	if !ok {
		return Settlement{}, fmt.Errorf("%w: %x", ErrAgreementNotFound, cond.Proof[:8])
	}
	if !a.Active {
		return Settlement{}, fmt.Errorf("%w: %x", ErrAgreementClosed, cond.Proof[:8])
	}
	if a.AccountID != accountID {
		return Settlement{}, fmt.Errorf("%w: agreement binds account %d", ErrAccountMismatch, a.AccountID)
	}

	custodianID, ok := br.custody.Custodian(contentID)
	if !ok {
		return Settlement{}, fmt.Errorf("%w: content %d", ErrNoCustodian, contentID)
	}
	owner, err := br.ownership.OwnerOf(contentID)
	if err != nil {
		return Settlement{}, fmt.Errorf("agreement: ownership lookup: %w", err)
	}
	if cond.Caller != a.HolderID || cond.Caller != owner {
		return Settlement{}, fmt.Errorf("%w: caller %d", ErrNotHolder, cond.Caller)
	}
	if !br.enroll.IsActive(custodianID) {
		return Settlement{}, fmt.Errorf("%w: distributor %d", ErrCustodianInactive, custodianID)
	}

	dist, ok := br.enroll.Distributor(custodianID)
	if !ok {
		return Settlement{}, fmt.Errorf("%w: distributor %d", ErrCustodianInactive, custodianID)
	}
	custodianBps, err := dist.Fee(a.Currency)
	if err != nil {
		return Settlement{}, fmt.Errorf("agreement: custodian fee: %w", err)
	}
	treasuryBps, err := br.fees.Fee(a.Currency)
	if err != nil {
		return Settlement{}, err
	}

	split, err := ComputeSplit(a.Total, treasuryBps, custodianBps)
	if err != nil {
		return Settlement{}, err
	}

	if err := br.disburse(a, dist.Manager(), split); err != nil {
		return Settlement{}, err
	}

	policyID, ok := br.policies.ActivePolicy(accountID, contentID)
	if !ok {
		// No policy admits the account; pull the disbursement back.
		br.compensate(a, dist.Manager(), split)
		return Settlement{}, fmt.Errorf("%w: account %d content %d", ErrNoCompliantPolicy, accountID, contentID)
	}

	if err := br.book.Close(cond.Proof); err != nil {
		br.compensate(a, dist.Manager(), split)
		return Settlement{}, err
	}

	br.mu.Lock()
	br.grants[grantKey{AccountID: accountID, ContentID: contentID}] = policyID
	br.mu.Unlock()

	return Settlement{
		Proof:       a.Proof,
		ContentID:   contentID,
		AccountID:   accountID,
		HolderID:    a.HolderID,
		CustodianID: custodianID,
		PolicyID:    policyID,
		Currency:    a.Currency,
		Total:       a.Total,
		Split:       split,
		SettledAt:   br.now(),
	}, nil
}

// disburse applies the three transfers all-or-nothing: on failure the
// already-applied transfers are pulled back before returning.
func (br *Broker) disburse(a Agreement, custodianAccount uint64, split Split) error {
	type leg struct {
		amount uint64
		to     uint64
	}
	legs := []leg{
		{split.HolderCut, a.HolderID},
		{split.CustodianCut, custodianAccount},
		{split.TreasuryCut, br.treasuryID},
	}
	for i, l := range legs {
		if l.amount == 0 {
			continue
		}
		if err := br.funds.Transfer(l.amount, a.Currency, l.to); err != nil {
			for _, undo := range legs[:i] {
				if undo.amount == 0 {
					continue
				}
				_, _ = br.funds.Deposit(undo.to, undo.amount, a.Currency)
			}
			return fmt.Errorf("%w: leg to %d: %w", ErrDisbursementFailed, l.to, err)
		}
	}
	return nil
}

// compensate pulls a fully applied disbursement back.
func (br *Broker) compensate(a Agreement, custodianAccount uint64, split Split) {
	if split.HolderCut > 0 {
		_, _ = br.funds.Deposit(a.HolderID, split.HolderCut, a.Currency)
	}
	if split.CustodianCut > 0 {
		_, _ = br.funds.Deposit(custodianAccount, split.CustodianCut, a.Currency)
	}
	if split.TreasuryCut > 0 {
		_, _ = br.funds.Deposit(br.treasuryID, split.TreasuryCut, a.Currency)
	}
}

// AccessPolicy returns the policy id recorded when accountID gained
// access to contentID through settlement.
func (br *Broker) AccessPolicy(accountID, contentID uint64) (uint64, bool) {
	br.mu.RLock()
	defer br.mu.RUnlock()
	id, ok := br.grants[grantKey{AccountID: accountID, ContentID: contentID}]
	return id, ok
}
