package policy

import "errors"

var (
	// ErrInvalidPolicy indicates the target does not expose the policy capability surface.
	ErrInvalidPolicy = errors.New("policy: invalid policy component")

	// ErrPolicyNotFound indicates the account does not carry the policy.
	ErrPolicyNotFound = errors.New("policy: not registered")

	// ErrTooManyPolicies indicates the account's policy set is full.
	ErrTooManyPolicies = errors.New("policy: too many policies")
)
