package enroll

import "errors"

var (
	// ErrNilDependency indicates a required collaborator was not provided.
	ErrNilDependency = errors.New("enroll: nil dependency")

	// ErrInvalidPeriod indicates a non-positive enrollment period.
	ErrInvalidPeriod = errors.New("enroll: invalid enrollment period")

	// ErrInvalidDistributor indicates the target does not expose the
	// distributor capability surface.
	ErrInvalidDistributor = errors.New("enroll: invalid distributor component")

	// ErrNotEnrolled indicates the distributor has no enrollment record.
	ErrNotEnrolled = errors.New("enroll: not enrolled")

	// ErrCurrencyMismatch indicates the currency does not match the enrollment.
	ErrCurrencyMismatch = errors.New("enroll: currency mismatch")

	// ErrReentrantCall indicates a nested re-entrant invocation was rejected.
	ErrReentrantCall = errors.New("enroll: re-entrant call")
)
