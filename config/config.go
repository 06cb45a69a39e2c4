// Package config holds the settlement engine configuration.
package config

import "time"

// Config controls engine-wide limits and defaults.
type Config struct {
	// EnrollmentPeriod is how long an approved distributor stays
	// effectively active after registering.
	EnrollmentPeriod time.Duration

	// PenaltyBps is the default quit penalty in basis points, applied
	// to the enrollment deposit when a distributor resigns.
	PenaltyBps uint64

	// MaxPolicies bounds the policy set of a single account.
	// Zero means unbounded.
	MaxPolicies int

	// StorePath, when non-empty, enables bbolt persistence of
	// enrollments and agreements at the given file path.
	StorePath string

	// VerifyEndpoints enables DNS validation of distributor endpoints
	// at enrollment.
	VerifyEndpoints bool
}

// Default returns the default engine configuration.
func Default() Config {
	return Config{
		EnrollmentPeriod: 180 * 24 * time.Hour,
		PenaltyBps:       1000,
		MaxPolicies:      32,
	}
}
