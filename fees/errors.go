package fees

import "errors"

var (
	// ErrInvalidBasisPoints indicates a fee outside [0, 10000] basis points.
	ErrInvalidBasisPoints = errors.New("fees: basis points out of range")

	// ErrUnsupportedCurrency indicates the currency has no fee configuration.
	ErrUnsupportedCurrency = errors.New("fees: unsupported currency")

	// ErrEmptyCurrency indicates an empty currency identifier.
	ErrEmptyCurrency = errors.New("fees: empty currency")
)
