package store

import "errors"

// ErrNotFound indicates no record exists for the requested key.
var ErrNotFound = errors.New("store: not found")
