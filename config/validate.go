package config

import "fmt"

// Validate checks that all configuration values are within acceptable
// ranges and returns the first error encountered, or nil if valid.
func (c Config) Validate() error {
	if c.EnrollmentPeriod <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidEnrollmentPeriod, c.EnrollmentPeriod)
	}
	if c.PenaltyBps > 10000 {
		return fmt.Errorf("%w: %d", ErrInvalidPenalty, c.PenaltyBps)
	}
	if c.MaxPolicies < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMaxPolicies, c.MaxPolicies)
	}
	return nil
}
