// Package component defines the capability surfaces the settlement
// engine requires from its external collaborators: distributors,
// access policies, the ownership oracle, the funds-transfer primitive,
// and the component-role resolver.
//
// All collaborators are untrusted, pluggable code. The engine never
// assumes a call into them is side-effect-free except where the
// interface documents it, and guards itself against re-entry.
package component

// Distributor is the capability surface a distributor must expose to
// be admitted into the system.
type Distributor interface {
	// Manager returns the account that posts the enrollment deposit
	// and receives the quit refund.
	Manager() uint64

	// Endpoint returns the address the distributor serves content from.
	Endpoint() string

	// Fee returns the distributor's fee in basis points for currency.
	Fee(currency string) (uint64, error)

	// Negotiate returns the fee the distributor accepts for a proposed
	// amount, given its current custodial load.
	Negotiate(proposedAmount uint64, currency string, custodyCount uint64) (uint64, error)
}

// Policy is a pluggable compliance check deciding whether an account
// may access a content item.
type Policy interface {
	// Name identifies the policy. Must be non-empty.
	Name() string

	// Comply reports whether accountID may access contentID.
	// Implementations must be side-effect-free; the engine rejects
	// re-entrant calls made from inside Comply.
	Comply(accountID, contentID uint64) bool

	// Terms returns an opaque description of the policy's terms for
	// the given account and content item.
	Terms(accountID, contentID uint64) []byte
}

// Ownership proves who holds a content item.
type Ownership interface {
	// OwnerOf returns the account holding contentID.
	OwnerOf(contentID uint64) (uint64, error)
}

// Funds is the low-level funds movement primitive for a currency
// (native or fungible-token). Every method can fail, e.g. on
// insufficient balance or allowance.
type Funds interface {
	// Transfer moves amount of currency from the engine to account to.
	Transfer(amount uint64, currency string, to uint64) error

	// BalanceOf returns the engine's balance in currency.
	BalanceOf(currency string) (uint64, error)

	// Deposit pulls amount of currency from account from into the
	// engine and returns the amount actually received, which may be
	// less than requested if the currency applies a transfer fee.
	Deposit(from uint64, amount uint64, currency string) (uint64, error)
}

// Resolver resolves a symbolic role to a concrete component id at
// setup time.
type Resolver interface {
	Resolve(role string) (uint64, error)
}

// Symbolic roles resolved through a Resolver.
const (
	RoleTreasury  = "treasury"
	RoleOwnership = "ownership"
)
