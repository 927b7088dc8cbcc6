package engine

import "errors"

// Precondition failures for lifecycle operations. These are reported
// back to the caller as a failed result with a readable reason; none
// of them should crash the hosting process.
var (
	ErrAnotherExecutionActive = errors.New("another month is already executing")
	ErrMonthClosed            = errors.New("month is closed; undo it before starting again")
	ErrRecordNotFound         = errors.New("execution record not found")
	ErrNotStarted             = errors.New("execution has not been started")
	ErrNoSnapshots            = errors.New("execution has no snapshots")
	ErrNothingToUndo          = errors.New("nothing to undo")
	ErrUndoWindowExpired      = errors.New("undo window has expired")
	ErrStartUndoWindowExpired = errors.New("undo-start window has expired")
)
