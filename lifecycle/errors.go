package lifecycle

import "errors"

var (
	// ErrAlreadyPending indicates a registration attempt from a state other than Pending.
	ErrAlreadyPending = errors.New("lifecycle: entity is not pending")

	// ErrNotWaiting indicates an approve or quit attempt from a state other than Waiting.
	ErrNotWaiting = errors.New("lifecycle: entity is not waiting")

	// ErrNotActive indicates a revoke attempt from a state other than Active.
	ErrNotActive = errors.New("lifecycle: entity is not active")
)
