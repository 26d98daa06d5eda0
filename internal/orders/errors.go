package orders

import (
	"errors"
	"fmt"
)

var (
	ErrOrderNotFound = errors.New("order not found")

	// ErrInvalidState: the requested action is not legal from the order's
	// current status. Also what the loser of a concurrent pay race sees.
	ErrInvalidState = errors.New("action not allowed in current order status")

	// ErrForbidden: the actor does not own the order.
	ErrForbidden = errors.New("actor does not own this order")
)

// TransientError wraps storage-layer failures (lock timeout, connection loss).
// It is the only error class a caller may reasonably retry; the aborted
// transaction leaves every row unchanged.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *TransientError) Unwrap() error { return e.Err }

func transient(op string, err error) error {
	return &TransientError{Op: op, Err: err}
}

func invalidState(a Action, s Status) error {
	return fmt.Errorf("%w: cannot %s order in status %s", ErrInvalidState, a, s)
}
