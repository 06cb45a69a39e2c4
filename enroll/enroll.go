// Package enroll implements the distributor enrollment manager.
//
// Enrollment is deposit-backed and time-boxed: registering collects the
// currency's configured fee from the distributor's manager account and
// opens an enrollment window. Approval forfeits the deposit to the
// system; quitting refunds it minus a penalty; revocation is terminal
// and touches no funds. A distributor is effectively active only while
// its ledger status is Active and the window has not elapsed; expiry
// is evaluated lazily on read and never stored as a state transition.
//
// The refund transfer calls out to untrusted code, so every mutating
// operation takes a non-reentrant guard and follows
// checks-effects-interactions: state is settled before funds move, and
// rolled back in full if the movement fails.
package enroll

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rightsorg/librights-go/component"
	"github.com/rightsorg/librights-go/endpoint"
	"github.com/rightsorg/librights-go/fees"
	"github.com/rightsorg/librights-go/lifecycle"
)

// Enrollment is a distributor's deposit-backed registration record.
type Enrollment struct {
	DistributorID uint64
	Manager       uint64
	Currency      string
	Deposit       uint64 // amount actually received, zeroed on approve/quit
	ExpiresAt     time.Time
}

// DepositKey identifies a deposit ledger entry.
type DepositKey struct {
	Manager  uint64
	Currency string
}

// Options configures a Manager.
type Options struct {
	// Period is the enrollment window length.
	Period time.Duration

	// PenaltyBps is the default quit penalty in basis points.
	PenaltyBps uint64

	// Clock overrides time.Now, for tests.
	Clock func() time.Time

	// VerifyEndpoint overrides endpoint.Validate, for tests or for
	// DNS-backed verification.
	VerifyEndpoint func(string) error
}

// Manager runs the distributor enrollment lifecycle on top of the
// registration ledger and the fee registry.
type Manager struct {
	ledger *lifecycle.Ledger
	fees   *fees.Registry
	funds  component.Funds

	period         time.Duration
	penaltyBps     uint64
	now            func() time.Time
	verifyEndpoint func(string) error

	guard atomic.Bool // rejects re-entrant mutating calls

	mu           sync.RWMutex
	enrollments  map[uint64]*Enrollment
	deposits     map[DepositKey]uint64
	distributors map[uint64]component.Distributor
	penalties    map[string]uint64 // per-currency penalty override
}

// NewManager creates an enrollment manager.
func NewManager(ledger *lifecycle.Ledger, feeRegistry *fees.Registry, funds component.Funds, opts Options) (*Manager, error) {
	if ledger == nil || feeRegistry == nil || funds == nil {
		return nil, ErrNilDependency
	}
	if opts.Period <= 0 {
		return nil, fmt.Errorf("%w: period %v", ErrInvalidPeriod, opts.Period)
	}
	if opts.PenaltyBps > fees.BpsDenominator {
		return nil, fmt.Errorf("%w: %d", fees.ErrInvalidBasisPoints, opts.PenaltyBps)
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	verify := opts.VerifyEndpoint
	if verify == nil {
		verify = endpoint.Validate
	}
	return &Manager{
		ledger:         ledger,
		fees:           feeRegistry,
		funds:          funds,
		period:         opts.Period,
		penaltyBps:     opts.PenaltyBps,
		now:            now,
		verifyEndpoint: verify,
		enrollments:    make(map[uint64]*Enrollment),
		deposits:       make(map[DepositKey]uint64),
		distributors:   make(map[uint64]component.Distributor),
		penalties:      make(map[string]uint64),
	}, nil
}

// begin takes the non-reentrant guard or fails.
func (m *Manager) begin() error {
	if !m.guard.CompareAndSwap(false, true) {
		return ErrReentrantCall
	}
	return nil
}

func (m *Manager) end() { m.guard.Store(false) }

// Register enrolls a distributor: validates its capability surface,
// collects the currency's configured fee from the declared manager
// account as a deposit, opens the enrollment window, and moves the
// ledger Pending → Waiting. Returns a copy of the enrollment record.
func (m *Manager) Register(distributorID uint64, dist component.Distributor, currency string) (Enrollment, error) {
	if err := m.begin(); err != nil {
		return Enrollment{}, err
	}
	defer m.end()

	if dist == nil {
		return Enrollment{}, ErrInvalidDistributor
	}
	manager := dist.Manager()
	if manager == 0 {
		return Enrollment{}, fmt.Errorf("%w: zero manager account", ErrInvalidDistributor)
	}
	if err := m.verifyEndpoint(dist.Endpoint()); err != nil {
		return Enrollment{}, fmt.Errorf("%w: %w", ErrInvalidDistributor, err)
	}
	if _, err := dist.Fee(currency); err != nil {
		return Enrollment{}, fmt.Errorf("%w: fee surface: %w", ErrInvalidDistributor, err)
	}

	deposit, err := m.fees.Fee(currency)
	if err != nil {
		return Enrollment{}, err
	}
	if st := m.ledger.StatusOf(distributorID); st != lifecycle.StatusPending {
		return Enrollment{}, fmt.Errorf("%w: status %s", lifecycle.ErrAlreadyPending, st)
	}

	received, err := m.funds.Deposit(manager, deposit, currency)
	if err != nil {
		return Enrollment{}, fmt.Errorf("enroll: collect deposit: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ledger.Register(distributorID); err != nil {
		// Cannot happen while the guard is held; hand the deposit back.
		_ = m.funds.Transfer(received, currency, manager)
		return Enrollment{}, err
	}
	e := &Enrollment{
		DistributorID: distributorID,
		Manager:       manager,
		Currency:      currency,
		Deposit:       received,
		ExpiresAt:     m.now().Add(m.period),
	}
	m.enrollments[distributorID] = e
	m.deposits[DepositKey{Manager: manager, Currency: currency}] += received
	m.distributors[distributorID] = dist
	return *e, nil
}

// Approve moves the distributor Waiting → Active and forfeits the
// manager's deposit ledger entry to the system. Returns the forfeited
// amount.
func (m *Manager) Approve(distributorID uint64) (uint64, error) {
	if err := m.begin(); err != nil {
		return 0, err
	}
	defer m.end()

	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.enrollments[distributorID]
	if !ok {
		return 0, fmt.Errorf("%w: distributor %d", ErrNotEnrolled, distributorID)
	}
	if err := m.ledger.Approve(distributorID); err != nil {
		return 0, err
	}
	key := DepositKey{Manager: e.Manager, Currency: e.Currency}
	forfeited := m.deposits[key]
	delete(m.deposits, key)
	e.Deposit = 0
	return forfeited, nil
}

// Quit resigns a waiting distributor. The deposit ledger entry is
// zeroed and the expiry cleared before the refund (deposit minus
// penalty) is transferred back to the manager; a failed transfer rolls
// the operation back in full. Returns the refunded amount.
func (m *Manager) Quit(distributorID uint64, currency string) (uint64, error) {
	if err := m.begin(); err != nil {
		return 0, err
	}
	defer m.end()

	m.mu.Lock()
	e, ok := m.enrollments[distributorID]
	if !ok {
		m.mu.Unlock()
		return 0, fmt.Errorf("%w: distributor %d", ErrNotEnrolled, distributorID)
	}
	if e.Currency != currency {
		m.mu.Unlock()
		return 0, fmt.Errorf("%w: enrolled with %q, got %q", ErrCurrencyMismatch, e.Currency, currency)
	}
	key := DepositKey{Manager: e.Manager, Currency: currency}
	amount := m.deposits[key]

	// Checks done; apply all effects before the refund interaction.
	if err := m.ledger.Quit(distributorID); err != nil {
		m.mu.Unlock()
		return 0, err
	}
	penalty := amount * m.penaltyFor(currency) / fees.BpsDenominator
	refund := amount - penalty
	delete(m.deposits, key)
	delete(m.enrollments, distributorID)
	dist := m.distributors[distributorID]
	delete(m.distributors, distributorID)
	m.mu.Unlock()

	if refund > 0 {
		if err := m.funds.Transfer(refund, currency, e.Manager); err != nil {
			m.mu.Lock()
			m.deposits[key] = amount
			m.enrollments[distributorID] = e
			m.distributors[distributorID] = dist
			_ = m.ledger.Register(distributorID)
			m.mu.Unlock()
			return 0, fmt.Errorf("enroll: refund: %w", err)
		}
	}
	return refund, nil
}

// Revoke moves an active distributor to Blocked. Irreversible; funds
// are not touched.
func (m *Manager) Revoke(distributorID uint64) error {
	if err := m.begin(); err != nil {
		return err
	}
	defer m.end()
	return m.ledger.Revoke(distributorID)
}

// SetPenalty sets a per-currency quit penalty override in basis points.
func (m *Manager) SetPenalty(currency string, bps uint64) error {
	if err := m.begin(); err != nil {
		return err
	}
	defer m.end()
	if bps > fees.BpsDenominator {
		return fmt.Errorf("%w: %d", fees.ErrInvalidBasisPoints, bps)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.penalties[currency] = bps
	return nil
}

// penaltyFor returns the quit penalty for currency. Caller holds mu.
func (m *Manager) penaltyFor(currency string) uint64 {
	if bps, ok := m.penalties[currency]; ok {
		return bps
	}
	return m.penaltyBps
}

// IsActive reports whether the distributor is effectively active:
// ledger status Active and the enrollment window not yet elapsed.
func (m *Manager) IsActive(distributorID uint64) bool {
	m.mu.RLock()
	e, ok := m.enrollments[distributorID]
	m.mu.RUnlock()
	if !ok {
		return false
	}
	return m.ledger.StatusOf(distributorID) == lifecycle.StatusActive && m.now().Before(e.ExpiresAt)
}

// Enrollment returns a copy of the distributor's enrollment record.
func (m *Manager) Enrollment(distributorID uint64) (Enrollment, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.enrollments[distributorID]
	if !ok {
		return Enrollment{}, false
	}
	return *e, true
}

// Distributor returns the capability surface of an enrolled distributor.
func (m *Manager) Distributor(distributorID uint64) (component.Distributor, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.distributors[distributorID]
	return d, ok
}

// DepositOf returns the current deposit ledger entry for a manager
// account and currency.
func (m *Manager) DepositOf(manager uint64, currency string) uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.deposits[DepositKey{Manager: manager, Currency: currency}]
}
