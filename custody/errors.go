package custody

import "errors"

// ErrInvalidDistributor indicates a zero distributor id.
var ErrInvalidDistributor = errors.New("custody: invalid distributor id")
