package errors

import "errors"

var (
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument is a generic sentinel for invalid input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrConflict signals a lost optimistic-version race or a held graph lock.
	ErrConflict = errors.New("conflict")
	// ErrInvariant marks a structural invariant broken by the rebalancer itself.
	ErrInvariant = errors.New("invariant violated")
)
