package component

import (
	"errors"
	"fmt"
	"sync"
)

// MockDistributor is a test double for Distributor. Static fields cover
// the common cases; NegotiateFn overrides negotiation when set.
type MockDistributor struct {
	ManagerID   uint64
	Addr        string
	Fees        map[string]uint64 // currency → bps
	NegotiateFn func(proposedAmount uint64, currency string, custodyCount uint64) (uint64, error)
}

func (m *MockDistributor) Manager() uint64  { return m.ManagerID }
func (m *MockDistributor) Endpoint() string { return m.Addr }

func (m *MockDistributor) Fee(currency string) (uint64, error) {
	bps, ok := m.Fees[currency]
	if !ok {
		return 0, fmt.Errorf("mock distributor: no fee for %q", currency)
	}
	return bps, nil
}

func (m *MockDistributor) Negotiate(proposedAmount uint64, currency string, custodyCount uint64) (uint64, error) {
	if m.NegotiateFn != nil {
		return m.NegotiateFn(proposedAmount, currency, custodyCount)
	}
	bps, err := m.Fee(currency)
	if err != nil {
		return 0, err
	}
	return proposedAmount * bps / 10000, nil
}

// MockPolicy is a test double for Policy. ComplyFn overrides the static
// Allow decision when set.
type MockPolicy struct {
	PolicyName string
	Allow      bool
	ComplyFn   func(accountID, contentID uint64) bool
	TermsData  []byte

	mu    sync.Mutex
	calls int
}

func (m *MockPolicy) Name() string { return m.PolicyName }

func (m *MockPolicy) Comply(accountID, contentID uint64) bool {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.ComplyFn != nil {
		return m.ComplyFn(accountID, contentID)
	}
	return m.Allow
}

func (m *MockPolicy) Terms(accountID, contentID uint64) []byte { return m.TermsData }

// Calls returns how many times Comply was invoked.
func (m *MockPolicy) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// MockOwnership is a test double for Ownership backed by a static map.
type MockOwnership struct {
	Owners map[uint64]uint64 // contentID → accountID
}

// ErrUnknownContent is returned by MockOwnership for unmapped content.
var ErrUnknownContent = errors.New("mock ownership: unknown content")

func (m *MockOwnership) OwnerOf(contentID uint64) (uint64, error) {
	owner, ok := m.Owners[contentID]
	if !ok {
		return 0, ErrUnknownContent
	}
	return owner, nil
}

// MockTransfer records a single outbound transfer made through MockFunds.
type MockTransfer struct {
	Amount   uint64
	Currency string
	To       uint64
}

// MockDeposit records a single deposit pulled through MockFunds.
type MockDeposit struct {
	From     uint64
	Amount   uint64
	Currency string
}

// MockFunds is a test double for Funds. It keeps a running engine
// balance per currency and records every movement. TransferFn and
// DepositFn override the default behavior when set.
type MockFunds struct {
	TransferFn func(amount uint64, currency string, to uint64) error
	DepositFn  func(from uint64, amount uint64, currency string) (uint64, error)

	mu        sync.Mutex
	Balances  map[string]uint64
	Transfers []MockTransfer
	Deposits  []MockDeposit
}

func (m *MockFunds) Transfer(amount uint64, currency string, to uint64) error {
	if m.TransferFn != nil {
		if err := m.TransferFn(amount, currency, to); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Balances != nil {
		if m.Balances[currency] < amount {
			return errors.New("mock funds: insufficient balance")
		}
		m.Balances[currency] -= amount
	}
	m.Transfers = append(m.Transfers, MockTransfer{Amount: amount, Currency: currency, To: to})
	return nil
}

func (m *MockFunds) BalanceOf(currency string) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Balances[currency], nil
}

func (m *MockFunds) Deposit(from uint64, amount uint64, currency string) (uint64, error) {
	received := amount
	if m.DepositFn != nil {
		var err error
		received, err = m.DepositFn(from, amount, currency)
		if err != nil {
			return 0, err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Balances == nil {
		m.Balances = make(map[string]uint64)
	}
	m.Balances[currency] += received
	m.Deposits = append(m.Deposits, MockDeposit{From: from, Amount: received, Currency: currency})
	return received, nil
}

// MockResolver is a test double for Resolver backed by a static map.
type MockResolver struct {
	Roles map[string]uint64
}

// ErrUnknownRole is returned by MockResolver for unmapped roles.
var ErrUnknownRole = errors.New("mock resolver: unknown role")

func (m *MockResolver) Resolve(role string) (uint64, error) {
	id, ok := m.Roles[role]
	if !ok {
		return 0, ErrUnknownRole
	}
	return id, nil
}
