// Package engine composes the rights-negotiation and settlement
// subsystems behind a single facade: the registration lifecycle, the
// fee registry, custody assignment, the policy evaluator, the
// enrollment manager, and the agreement broker.
//
// Every mutating operation executes as one indivisible unit: it either
// commits all of its effects (state, funds, events) or none. A single
// non-reentrant guard orders operations and rejects nested re-entry
// from untrusted callees with ErrReentrantCall. Authorization is an
// explicit Auth value passed into each privileged operation, never
// ambient state.
package engine

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/rightsorg/librights-go/agreement"
	"github.com/rightsorg/librights-go/component"
	"github.com/rightsorg/librights-go/config"
	"github.com/rightsorg/librights-go/custody"
	"github.com/rightsorg/librights-go/endpoint"
	"github.com/rightsorg/librights-go/enroll"
	"github.com/rightsorg/librights-go/events"
	"github.com/rightsorg/librights-go/fees"
	"github.com/rightsorg/librights-go/lifecycle"
	"github.com/rightsorg/librights-go/policy"
	"github.com/rightsorg/librights-go/store"
)

// Auth is the authorization context of a caller.
type Auth struct {
	// Caller is the invoking account.
	Caller uint64

	// Governance marks the caller as holding the governance role.
	Governance bool
}

// Options configures an Engine.
type Options struct {
	// Config holds engine limits; the zero value selects defaults.
	Config config.Config

	// Funds is the funds-transfer collaborator. Required.
	Funds component.Funds

	// Ownership is the content ownership collaborator. Required.
	Ownership component.Ownership

	// Components resolves symbolic roles (treasury) at setup. Required.
	Components component.Resolver

	// Logger defaults to a no-op logger.
	Logger *zap.Logger

	// Sink receives committed domain events. Optional.
	Sink events.Sink

	// Clock overrides time.Now, for tests.
	Clock func() time.Time
}

// Engine is the rights-negotiation and settlement engine.
type Engine struct {
	cfg config.Config
	log *zap.Logger
	now func() time.Time

	funds     component.Funds
	ownership component.Ownership

	ledger   *lifecycle.Ledger
	fees     *fees.Registry
	custody  *custody.Assignment
	policies *policy.Registry
	enroll   *enroll.Manager
	book     *agreement.Book
	broker   *agreement.Broker

	recorder   *events.Recorder
	db         *store.Store
	treasuryID uint64

	opMu     sync.Mutex  // totally orders operations
	inFlight atomic.Bool // rejects nested re-entry
}

// New creates an engine wired to the given collaborators. The treasury
// component id is resolved through Components at setup.
func New(opts Options) (*Engine, error) {
	if opts.Funds == nil || opts.Ownership == nil || opts.Components == nil {
		return nil, ErrNilDependency
	}
	cfg := opts.Config
	if cfg == (config.Config{}) {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	treasuryID, err := opts.Components.Resolve(component.RoleTreasury)
	if err != nil {
		return nil, fmt.Errorf("engine: resolve treasury: %w", err)
	}

	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}

	ledger := lifecycle.NewLedger()
	feeReg := fees.NewRegistry()
	assignment := custody.NewAssignment()
	policies := policy.NewRegistry(cfg.MaxPolicies)

	enrollOpts := enroll.Options{
		Period:     cfg.EnrollmentPeriod,
		PenaltyBps: cfg.PenaltyBps,
		Clock:      now,
	}
	if cfg.VerifyEndpoints {
		resolver := endpoint.NewDNSSECResolver("")
		enrollOpts.VerifyEndpoint = func(ep string) error {
			return endpoint.Verify(ep, resolver)
		}
	}
	enrollMgr, err := enroll.NewManager(ledger, feeReg, opts.Funds, enrollOpts)
	if err != nil {
		return nil, err
	}

	book := agreement.NewBook(now)
	broker, err := agreement.NewBroker(agreement.BrokerOptions{
		Book:       book,
		Custody:    assignment,
		Fees:       feeReg,
		Policies:   policies,
		Enroll:     enrollMgr,
		Funds:      opts.Funds,
		Ownership:  opts.Ownership,
		TreasuryID: treasuryID,
		Clock:      now,
	})
	if err != nil {
		return nil, err
	}

	var db *store.Store
	if cfg.StorePath != "" {
		db, err = store.Open(cfg.StorePath)
		if err != nil {
			return nil, err
		}
	}

	return &Engine{
		cfg:        cfg,
		log:        log,
		now:        now,
		funds:      opts.Funds,
		ownership:  opts.Ownership,
		ledger:     ledger,
		fees:       feeReg,
		custody:    assignment,
		policies:   policies,
		enroll:     enrollMgr,
		book:       book,
		broker:     broker,
		recorder:   events.NewRecorder(opts.Sink, now),
		db:         db,
		treasuryID: treasuryID,
	}, nil
}

// Close releases the persistent store, if one is configured.
func (e *Engine) Close() error {
	if e.db != nil {
		return e.db.Close()
	}
	return nil
}

// begin serializes the operation behind the engine lock. A call
// arriving while an operation is in flight on the same call stack
// (an untrusted callee re-entering the engine) must fail rather than
// deadlock, so the in-flight flag is checked before the lock.
func (e *Engine) begin() error {
	if e.inFlight.Load() {
		return ErrReentrantCall
	}
	e.opMu.Lock()
	e.inFlight.Store(true)
	return nil
}

func (e *Engine) end() {
	e.inFlight.Store(false)
	e.opMu.Unlock()
}

func requireGovernance(auth Auth) error {
	if !auth.Governance {
		return ErrNotGovernance
	}
	return nil
}

// --- Distributor enrollment ---

// RegisterDistributor enrolls a distributor, collecting the enrollment
// deposit from its manager account and opening the enrollment window.
func (e *Engine) RegisterDistributor(auth Auth, distributorID uint64, dist component.Distributor, currency string) (enroll.Enrollment, error) {
	if err := e.begin(); err != nil {
		return enroll.Enrollment{}, err
	}
	defer e.end()

	enr, err := e.enroll.Register(distributorID, dist, currency)
	if err != nil {
		e.recorder.Discard()
		return enroll.Enrollment{}, err
	}
	e.persistEnrollment(enr)

	e.recorder.Record(events.Event{
		Type:          events.TypeRegistered,
		DistributorID: distributorID,
		AccountID:     enr.Manager,
		Amount:        enr.Deposit,
		Currency:      currency,
	})
	e.recorder.Commit()
	e.log.Info("distributor registered",
		zap.Uint64("distributor", distributorID),
		zap.Uint64("manager", enr.Manager),
		zap.Uint64("deposit", enr.Deposit),
		zap.String("currency", currency))
	return enr, nil
}

// ApproveDistributor activates a waiting distributor, forfeiting its
// deposit to the system. Governance only.
func (e *Engine) ApproveDistributor(auth Auth, distributorID uint64) error {
	if err := requireGovernance(auth); err != nil {
		return err
	}
	if err := e.begin(); err != nil {
		return err
	}
	defer e.end()

	forfeited, err := e.enroll.Approve(distributorID)
	if err != nil {
		e.recorder.Discard()
		return err
	}
	if enr, ok := e.enroll.Enrollment(distributorID); ok {
		e.persistEnrollment(enr)
	}

	e.recorder.Record(events.Event{
		Type:          events.TypeApproved,
		DistributorID: distributorID,
		Amount:        forfeited,
	})
	e.recorder.Commit()
	e.log.Info("distributor approved",
		zap.Uint64("distributor", distributorID),
		zap.Uint64("forfeited", forfeited))
	return nil
}

// QuitDistributor resigns a waiting distributor and refunds its deposit
// minus the quit penalty. Only the distributor's manager may quit.
func (e *Engine) QuitDistributor(auth Auth, distributorID uint64, currency string) (uint64, error) {
	if err := e.begin(); err != nil {
		return 0, err
	}
	defer e.end()

	enr, ok := e.enroll.Enrollment(distributorID)
	if !ok {
		return 0, fmt.Errorf("%w: distributor %d", enroll.ErrNotEnrolled, distributorID)
	}
	if auth.Caller != enr.Manager {
		return 0, fmt.Errorf("%w: caller %d", ErrNotManager, auth.Caller)
	}

	refund, err := e.enroll.Quit(distributorID, currency)
	if err != nil {
		e.recorder.Discard()
		return 0, err
	}
	if e.db != nil {
		if err := e.db.DeleteEnrollment(distributorID); err != nil {
			e.log.Warn("delete enrollment record", zap.Uint64("distributor", distributorID), zap.Error(err))
		}
	}

	e.recorder.Record(events.Event{
		Type:          events.TypeResigned,
		DistributorID: distributorID,
		AccountID:     enr.Manager,
		Amount:        refund,
		Currency:      currency,
	})
	e.recorder.Commit()
	e.log.Info("distributor resigned",
		zap.Uint64("distributor", distributorID),
		zap.Uint64("refund", refund),
		zap.String("currency", currency))
	return refund, nil
}

// RevokeDistributor blocks an active distributor. Irreversible; funds
// are untouched. Governance only.
func (e *Engine) RevokeDistributor(auth Auth, distributorID uint64) error {
	if err := requireGovernance(auth); err != nil {
		return err
	}
	if err := e.begin(); err != nil {
		return err
	}
	defer e.end()

	if err := e.enroll.Revoke(distributorID); err != nil {
		e.recorder.Discard()
		return err
	}

	e.recorder.Record(events.Event{
		Type:          events.TypeRevoked,
		DistributorID: distributorID,
	})
	e.recorder.Commit()
	e.log.Info("distributor revoked", zap.Uint64("distributor", distributorID))
	return nil
}

// IsActive reports whether the distributor is effectively active:
// ledger status Active and enrollment window not elapsed.
func (e *Engine) IsActive(distributorID uint64) bool {
	return e.enroll.IsActive(distributorID)
}

// Status returns the distributor's stored registration status.
func (e *Engine) Status(distributorID uint64) lifecycle.Status {
	return e.ledger.StatusOf(distributorID)
}

// Enrollment returns the distributor's enrollment record.
func (e *Engine) Enrollment(distributorID uint64) (enroll.Enrollment, bool) {
	return e.enroll.Enrollment(distributorID)
}

// --- Fee configuration ---

// SetFee configures the fee percentage for currency. Governance only.
func (e *Engine) SetFee(auth Auth, currency string, bps uint64) error {
	if err := requireGovernance(auth); err != nil {
		return err
	}
	if err := e.begin(); err != nil {
		return err
	}
	defer e.end()
	return e.fees.SetFee(currency, bps)
}

// SetFloor configures the absolute minimum fee for currency.
// Governance only.
func (e *Engine) SetFloor(auth Auth, currency string, minimum uint64) error {
	if err := requireGovernance(auth); err != nil {
		return err
	}
	if err := e.begin(); err != nil {
		return err
	}
	defer e.end()
	return e.fees.SetFloor(currency, minimum)
}

// SetPenalty configures a per-currency quit penalty override.
// Governance only.
func (e *Engine) SetPenalty(auth Auth, currency string, bps uint64) error {
	if err := requireGovernance(auth); err != nil {
		return err
	}
	if err := e.begin(); err != nil {
		return err
	}
	defer e.end()
	return e.enroll.SetPenalty(currency, bps)
}

// Fee returns the fee percentage configured for currency.
func (e *Engine) Fee(currency string) (uint64, error) {
	return e.fees.Fee(currency)
}

// Floor returns the absolute minimum fee configured for currency.
func (e *Engine) Floor(currency string) (uint64, error) {
	return e.fees.Floor(currency)
}

// Quote asks a registered distributor what fee it accepts for a
// proposed amount, given its current custodial load.
func (e *Engine) Quote(distributorID uint64, proposedTotal uint64, currency string) (uint64, error) {
	if err := e.begin(); err != nil {
		return 0, err
	}
	defer e.end()

	dist, ok := e.enroll.Distributor(distributorID)
	if !ok {
		return 0, fmt.Errorf("%w: distributor %d", enroll.ErrNotEnrolled, distributorID)
	}
	accepted, err := dist.Negotiate(proposedTotal, currency, e.custody.Count(distributorID))
	if err != nil {
		return 0, fmt.Errorf("engine: negotiate: %w", err)
	}
	return accepted, nil
}

// --- Custody ---

// GrantCustody assigns custody of contentID to an effectively active
// distributor. Only the content holder may grant custody.
func (e *Engine) GrantCustody(auth Auth, contentID, distributorID uint64) error {
	if err := e.begin(); err != nil {
		return err
	}
	defer e.end()

	owner, err := e.ownership.OwnerOf(contentID)
	if err != nil {
		return fmt.Errorf("engine: ownership lookup: %w", err)
	}
	if auth.Caller != owner {
		return fmt.Errorf("%w: caller %d, owner %d", ErrNotHolder, auth.Caller, owner)
	}
	if !e.enroll.IsActive(distributorID) {
		return fmt.Errorf("%w: distributor %d", ErrDistributorInactive, distributorID)
	}
	if err := e.custody.Grant(contentID, distributorID); err != nil {
		e.recorder.Discard()
		return err
	}

	e.recorder.Record(events.Event{
		Type:          events.TypeCustodyGranted,
		ContentID:     contentID,
		DistributorID: distributorID,
		AccountID:     owner,
	})
	e.recorder.Commit()
	e.log.Info("custody granted",
		zap.Uint64("content", contentID),
		zap.Uint64("distributor", distributorID))
	return nil
}

// Custodian returns the current custodian of contentID.
func (e *Engine) Custodian(contentID uint64) (uint64, bool) {
	return e.custody.Custodian(contentID)
}

// CustodyCount returns how many content items the distributor custodies.
func (e *Engine) CustodyCount(distributorID uint64) uint64 {
	return e.custody.Count(distributorID)
}

// CustodyRegistry returns the content ids the distributor custodies.
func (e *Engine) CustodyRegistry(distributorID uint64) []uint64 {
	return e.custody.Registry(distributorID)
}

// --- Policies ---

// RegisterPolicy adds a policy to an account's ordered set.
func (e *Engine) RegisterPolicy(auth Auth, accountID, policyID uint64, p component.Policy) error {
	if err := e.begin(); err != nil {
		return err
	}
	defer e.end()

	if err := e.policies.Register(accountID, policyID, p); err != nil {
		e.recorder.Discard()
		return err
	}

	e.recorder.Record(events.Event{
		Type:      events.TypePolicyRegistered,
		AccountID: accountID,
		PolicyID:  policyID,
	})
	e.recorder.Commit()
	e.log.Info("policy registered",
		zap.Uint64("account", accountID),
		zap.Uint64("policy", policyID))
	return nil
}

// RevokePolicy removes a policy from an account's set.
func (e *Engine) RevokePolicy(auth Auth, accountID, policyID uint64) error {
	if err := e.begin(); err != nil {
		return err
	}
	defer e.end()
	return e.policies.Revoke(accountID, policyID)
}

// Policies returns an account's policy ids in insertion order.
func (e *Engine) Policies(accountID uint64) []uint64 {
	return e.policies.Policies(accountID)
}

// ActivePolicy evaluates the account's policies newest-first and
// returns the first compliant one. Runs under the operation guard
// because compliance calls out to untrusted code.
func (e *Engine) ActivePolicy(accountID, contentID uint64) (uint64, bool, error) {
	if err := e.begin(); err != nil {
		return 0, false, err
	}
	defer e.end()
	id, ok := e.policies.ActivePolicy(accountID, contentID)
	return id, ok, nil
}

// --- Agreements and settlement ---

// CreateAgreement records an active content-access agreement and
// returns its proof digest. The currency must be supported.
func (e *Engine) CreateAgreement(auth Auth, total uint64, currency string, holderID, accountID uint64) (agreement.Agreement, error) {
	if err := e.begin(); err != nil {
		return agreement.Agreement{}, err
	}
	defer e.end()

	if !e.fees.Supported(currency) {
		return agreement.Agreement{}, fmt.Errorf("%w: %q", fees.ErrUnsupportedCurrency, currency)
	}
	a, err := e.book.Create(total, currency, holderID, accountID)
	if err != nil {
		return agreement.Agreement{}, err
	}
	e.persistAgreement(a)
	e.log.Info("agreement created",
		zap.String("proof", fmt.Sprintf("%x", a.Proof[:8])),
		zap.Uint64("total", total),
		zap.String("currency", currency))
	return a, nil
}

// Agreement returns the agreement identified by proof.
func (e *Engine) Agreement(proof agreement.Proof) (agreement.Agreement, bool) {
	return e.book.Get(proof)
}

// Settle disburses the agreement's three-way split, records the
// compliant policy, and closes the agreement. All-or-nothing.
func (e *Engine) Settle(auth Auth, contentID, accountID uint64, proof agreement.Proof) (agreement.Settlement, error) {
	if err := e.begin(); err != nil {
		return agreement.Settlement{}, err
	}
	defer e.end()

	s, err := e.broker.Settle(contentID, accountID, agreement.Condition{
		Proof:  proof,
		Caller: auth.Caller,
	})
	if err != nil {
		e.recorder.Discard()
		return agreement.Settlement{}, err
	}
	if a, ok := e.book.Get(proof); ok {
		e.persistAgreement(a)
	}

	e.recorder.Record(events.Event{
		Type:          events.TypeAccessGranted,
		ContentID:     contentID,
		AccountID:     accountID,
		DistributorID: s.CustodianID,
		PolicyID:      s.PolicyID,
		Amount:        s.Total,
		Currency:      s.Currency,
	})
	e.recorder.Commit()
	e.log.Info("agreement settled",
		zap.Uint64("content", contentID),
		zap.Uint64("account", accountID),
		zap.Uint64("total", s.Total),
		zap.Uint64("treasury_cut", s.Split.TreasuryCut),
		zap.Uint64("custodian_cut", s.Split.CustodianCut),
		zap.Uint64("holder_cut", s.Split.HolderCut))
	return s, nil
}

// AccessPolicy returns the policy id recorded when accountID gained
// access to contentID through settlement.
func (e *Engine) AccessPolicy(accountID, contentID uint64) (uint64, bool) {
	return e.broker.AccessPolicy(accountID, contentID)
}

// --- Persistence helpers ---

func (e *Engine) persistEnrollment(enr enroll.Enrollment) {
	if e.db == nil {
		return
	}
	if err := e.db.PutEnrollment(enr); err != nil {
		e.log.Warn("persist enrollment", zap.Uint64("distributor", enr.DistributorID), zap.Error(err))
	}
}

func (e *Engine) persistAgreement(a agreement.Agreement) {
	if e.db == nil {
		return
	}
	if err := e.db.PutAgreement(a); err != nil {
		e.log.Warn("persist agreement", zap.String("proof", fmt.Sprintf("%x", a.Proof[:8])), zap.Error(err))
	}
}
