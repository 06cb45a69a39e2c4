package enroll

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rightsorg/librights-go/component"
	"github.com/rightsorg/librights-go/fees"
	"github.com/rightsorg/librights-go/lifecycle"
)

const currencyX = "X"

type fixture struct {
	ledger  *lifecycle.Ledger
	fees    *fees.Registry
	funds   *component.MockFunds
	manager *Manager
	clock   *time.Time
}

// newFixture builds a manager with currency X configured at fee 300 and
// a 10% quit penalty, matching the reference economics.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ledger := lifecycle.NewLedger()
	feeReg := fees.NewRegistry()
	require.NoError(t, feeReg.SetFee(currencyX, 300))
	funds := &component.MockFunds{Balances: make(map[string]uint64)}

	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	clock := &now

	m, err := NewManager(ledger, feeReg, funds, Options{
		Period:     180 * 24 * time.Hour,
		PenaltyBps: 1000,
		Clock:      func() time.Time { return *clock },
	})
	require.NoError(t, err)
	return &fixture{ledger: ledger, fees: feeReg, funds: funds, manager: m, clock: clock}
}

func newDistributor(manager uint64) *component.MockDistributor {
	return &component.MockDistributor{
		ManagerID: manager,
		Addr:      "dist.example.com:8443",
		Fees:      map[string]uint64{currencyX: 1000},
	}
}

func TestNewManager_Validation(t *testing.T) {
	ledger := lifecycle.NewLedger()
	feeReg := fees.NewRegistry()
	funds := &component.MockFunds{}

	_, err := NewManager(nil, feeReg, funds, Options{Period: time.Hour})
	assert.ErrorIs(t, err, ErrNilDependency)

	_, err = NewManager(ledger, feeReg, funds, Options{Period: 0})
	assert.ErrorIs(t, err, ErrInvalidPeriod)

	_, err = NewManager(ledger, feeReg, funds, Options{Period: time.Hour, PenaltyBps: 10001})
	assert.ErrorIs(t, err, fees.ErrInvalidBasisPoints)
}

func TestRegister_CollectsDepositAndOpensWindow(t *testing.T) {
	f := newFixture(t)

	e, err := f.manager.Register(1, newDistributor(77), currencyX)
	require.NoError(t, err)

	assert.Equal(t, uint64(300), e.Deposit)
	assert.Equal(t, uint64(77), e.Manager)
	assert.Equal(t, f.clock.Add(180*24*time.Hour), e.ExpiresAt)
	assert.Equal(t, lifecycle.StatusWaiting, f.ledger.StatusOf(1))
	assert.Equal(t, uint64(300), f.manager.DepositOf(77, currencyX))

	require.Len(t, f.funds.Deposits, 1)
	assert.Equal(t, component.MockDeposit{From: 77, Amount: 300, Currency: currencyX}, f.funds.Deposits[0])
}

func TestRegister_SurfaceValidation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		dist component.Distributor
	}{
		{"nil distributor", nil},
		{"zero manager", &component.MockDistributor{Addr: "a.example.com:1", Fees: map[string]uint64{currencyX: 1}}},
		{"empty endpoint", &component.MockDistributor{ManagerID: 7, Fees: map[string]uint64{currencyX: 1}}},
		{"malformed endpoint", &component.MockDistributor{ManagerID: 7, Addr: "no-port", Fees: map[string]uint64{currencyX: 1}}},
		{"no fee surface", &component.MockDistributor{ManagerID: 7, Addr: "a.example.com:1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.manager.Register(1, tt.dist, currencyX)
			assert.ErrorIs(t, err, ErrInvalidDistributor)
			// Rejected before any mutation.
			assert.Equal(t, lifecycle.StatusPending, f.ledger.StatusOf(1))
			assert.Empty(t, f.funds.Deposits)
		})
	}
}

func TestRegister_UnsupportedCurrency(t *testing.T) {
	f := newFixture(t)

	_, err := f.manager.Register(1, newDistributor(77), "XYZ")
	assert.ErrorIs(t, err, fees.ErrUnsupportedCurrency)
	assert.Empty(t, f.funds.Deposits)
}

func TestRegister_Twice(t *testing.T) {
	f := newFixture(t)

	_, err := f.manager.Register(1, newDistributor(77), currencyX)
	require.NoError(t, err)

	_, err = f.manager.Register(1, newDistributor(77), currencyX)
	assert.ErrorIs(t, err, lifecycle.ErrAlreadyPending)
	// No second deposit was pulled.
	assert.Len(t, f.funds.Deposits, 1)
}

func TestRegister_DepositFailure(t *testing.T) {
	f := newFixture(t)
	f.funds.DepositFn = func(from, amount uint64, currency string) (uint64, error) {
		return 0, errors.New("insufficient allowance")
	}

	_, err := f.manager.Register(1, newDistributor(77), currencyX)
	require.Error(t, err)
	assert.Equal(t, lifecycle.StatusPending, f.ledger.StatusOf(1))
	assert.Equal(t, uint64(0), f.manager.DepositOf(77, currencyX))
}

func TestRegister_TransferFeeCurrency(t *testing.T) {
	f := newFixture(t)
	// The currency skims 10% on deposit; the ledger records what arrived.
	f.funds.DepositFn = func(from, amount uint64, currency string) (uint64, error) {
		return amount - amount/10, nil
	}

	e, err := f.manager.Register(1, newDistributor(77), currencyX)
	require.NoError(t, err)
	assert.Equal(t, uint64(270), e.Deposit)
	assert.Equal(t, uint64(270), f.manager.DepositOf(77, currencyX))
}

func TestApprove_ForfeitsDeposit(t *testing.T) {
	f := newFixture(t)

	_, err := f.manager.Register(1, newDistributor(77), currencyX)
	require.NoError(t, err)

	forfeited, err := f.manager.Approve(1)
	require.NoError(t, err)
	assert.Equal(t, uint64(300), forfeited)
	assert.Equal(t, lifecycle.StatusActive, f.ledger.StatusOf(1))
	assert.Equal(t, uint64(0), f.manager.DepositOf(77, currencyX))

	e, ok := f.manager.Enrollment(1)
	require.True(t, ok)
	assert.Zero(t, e.Deposit)
}

func TestApprove_NotEnrolled(t *testing.T) {
	f := newFixture(t)
	_, err := f.manager.Approve(9)
	assert.ErrorIs(t, err, ErrNotEnrolled)
}

// Reference economics: deposit 300, penalty 1000 bps → refund 270,
// retained 30, ledger entry reset, status Pending, expiry cleared.
func TestQuit_PenaltyEconomics(t *testing.T) {
	f := newFixture(t)

	_, err := f.manager.Register(1, newDistributor(77), currencyX)
	require.NoError(t, err)
	assert.Equal(t, uint64(300), f.manager.DepositOf(77, currencyX))

	refund, err := f.manager.Quit(1, currencyX)
	require.NoError(t, err)
	assert.Equal(t, uint64(270), refund)

	assert.Equal(t, lifecycle.StatusPending, f.ledger.StatusOf(1))
	assert.Equal(t, uint64(0), f.manager.DepositOf(77, currencyX))
	_, ok := f.manager.Enrollment(1)
	assert.False(t, ok)

	require.Len(t, f.funds.Transfers, 1)
	assert.Equal(t, component.MockTransfer{Amount: 270, Currency: currencyX, To: 77}, f.funds.Transfers[0])
	// The 30 retained stays with the engine.
	balance, _ := f.funds.BalanceOf(currencyX)
	assert.Equal(t, uint64(30), balance)
}

func TestQuit_PerCurrencyPenaltyOverride(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.manager.SetPenalty(currencyX, 5000))

	_, err := f.manager.Register(1, newDistributor(77), currencyX)
	require.NoError(t, err)

	refund, err := f.manager.Quit(1, currencyX)
	require.NoError(t, err)
	assert.Equal(t, uint64(150), refund)
}

func TestQuit_IllegalStates(t *testing.T) {
	f := newFixture(t)

	_, err := f.manager.Quit(1, currencyX)
	assert.ErrorIs(t, err, ErrNotEnrolled)

	_, err = f.manager.Register(1, newDistributor(77), currencyX)
	require.NoError(t, err)

	_, err = f.manager.Quit(1, "XYZ")
	assert.ErrorIs(t, err, ErrCurrencyMismatch)

	_, err = f.manager.Approve(1)
	require.NoError(t, err)

	// Quit is legal only from Waiting.
	_, err = f.manager.Quit(1, currencyX)
	assert.ErrorIs(t, err, lifecycle.ErrNotWaiting)
	assert.Equal(t, lifecycle.StatusActive, f.ledger.StatusOf(1))
}

func TestQuit_RefundFailureRollsBack(t *testing.T) {
	f := newFixture(t)

	_, err := f.manager.Register(1, newDistributor(77), currencyX)
	require.NoError(t, err)

	f.funds.TransferFn = func(amount uint64, currency string, to uint64) error {
		return errors.New("transfer rejected")
	}

	_, err = f.manager.Quit(1, currencyX)
	require.Error(t, err)

	// No observable effect from the failed operation.
	assert.Equal(t, lifecycle.StatusWaiting, f.ledger.StatusOf(1))
	assert.Equal(t, uint64(300), f.manager.DepositOf(77, currencyX))
	e, ok := f.manager.Enrollment(1)
	require.True(t, ok)
	assert.Equal(t, uint64(300), e.Deposit)
	assert.Empty(t, f.funds.Transfers)
}

func TestQuit_ReentrantRefundRejected(t *testing.T) {
	f := newFixture(t)

	_, err := f.manager.Register(1, newDistributor(77), currencyX)
	require.NoError(t, err)

	var nestedErr error
	f.funds.TransferFn = func(amount uint64, currency string, to uint64) error {
		// The refund recipient calls back into the manager.
		_, nestedErr = f.manager.Quit(1, currencyX)
		return nil
	}

	refund, err := f.manager.Quit(1, currencyX)
	require.NoError(t, err)
	assert.Equal(t, uint64(270), refund)
	assert.ErrorIs(t, nestedErr, ErrReentrantCall)
}

func TestRevoke(t *testing.T) {
	f := newFixture(t)

	_, err := f.manager.Register(1, newDistributor(77), currencyX)
	require.NoError(t, err)
	_, err = f.manager.Approve(1)
	require.NoError(t, err)

	require.NoError(t, f.manager.Revoke(1))
	assert.Equal(t, lifecycle.StatusBlocked, f.ledger.StatusOf(1))
	assert.False(t, f.manager.IsActive(1))

	// Revoke is legal only from Active.
	assert.ErrorIs(t, f.manager.Revoke(1), lifecycle.ErrNotActive)
}

func TestIsActive_Conjunction(t *testing.T) {
	f := newFixture(t)

	// Unknown distributor.
	assert.False(t, f.manager.IsActive(1))

	_, err := f.manager.Register(1, newDistributor(77), currencyX)
	require.NoError(t, err)

	// Waiting is not active.
	assert.False(t, f.manager.IsActive(1))

	_, err = f.manager.Approve(1)
	require.NoError(t, err)
	assert.True(t, f.manager.IsActive(1))

	// Expiry flips the derived predicate without a state transition.
	*f.clock = f.clock.Add(180*24*time.Hour + time.Second)
	assert.False(t, f.manager.IsActive(1))
	assert.Equal(t, lifecycle.StatusActive, f.ledger.StatusOf(1))
}
