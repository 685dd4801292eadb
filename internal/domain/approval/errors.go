// Package approval contains the pure approval-workflow logic: rule matching,
// step planning and sequence evaluation. Nothing here touches storage or
// mutates its inputs; callers persist the returned values.
package approval

import "errors"

var (
	// ErrValidation is returned for malformed rule definitions or unknown
	// action values.
	ErrValidation = errors.New("validation failed")

	// ErrNotAuthorized is returned when an actor has no pending step in the
	// expense's current sequence.
	ErrNotAuthorized = errors.New("not authorized to act on this expense")

	// ErrConflict is returned when an action targets an already-resolved
	// step, typically after losing a race with a concurrent approver.
	ErrConflict = errors.New("approval step already resolved")

	// ErrNotFound is returned when a referenced expense or rule does not exist.
	ErrNotFound = errors.New("not found")

	// ErrTerminalState is returned when acting on an approved or rejected expense.
	ErrTerminalState = errors.New("expense already finalized")
)
