package config

import "errors"

var (
	// ErrInvalidEnrollmentPeriod indicates a non-positive enrollment period.
	ErrInvalidEnrollmentPeriod = errors.New("config: enrollment period must be positive")

	// ErrInvalidPenalty indicates a quit penalty above 10000 basis points.
	ErrInvalidPenalty = errors.New("config: penalty basis points out of range")

	// ErrInvalidMaxPolicies indicates a negative policy set bound.
	ErrInvalidMaxPolicies = errors.New("config: max policies must not be negative")
)
