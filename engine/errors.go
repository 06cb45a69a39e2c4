package engine

import "errors"

var (
	// ErrNilDependency is returned by New when a required collaborator
	// is missing.
	ErrNilDependency = errors.New("engine: nil dependency")

	// ErrReentrantCall is returned when an operation is invoked while
	// another one is still in flight.
	ErrReentrantCall = errors.New("engine: re-entrant call")

	// ErrNotGovernance is returned when a governance-only operation is
	// invoked without the governance role.
	ErrNotGovernance = errors.New("engine: caller is not governance")

	// ErrNotManager is returned when an operation reserved for a
	// distributor's manager is invoked by another account.
	ErrNotManager = errors.New("engine: caller is not the manager")

	// ErrNotHolder is returned when an operation reserved for the
	// content holder is invoked by another account.
	ErrNotHolder = errors.New("engine: caller is not the content holder")

	// ErrDistributorInactive is returned when custody is granted to a
	// distributor that is not effectively active.
	ErrDistributorInactive = errors.New("engine: distributor is not active")
)
