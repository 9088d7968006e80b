package billing

import "fmt"

// ErrInvalidInput is returned when a computation receives a negative or
// otherwise unusable value. The caller should re-prompt; the engine never
// clamps bad input to zero.
type ErrInvalidInput struct {
	Field  string
	Reason string
}

func (e *ErrInvalidInput) Error() string {
	return fmt.Sprintf("invalid input for %s: %s", e.Field, e.Reason)
}

// ErrInconsistentState flags a stored value that disagrees with its derived
// invariant (e.g. an item total that is not quantity × unit price). The engine
// recomputes and uses the derived value; the caller is expected to log this.
type ErrInconsistentState struct {
	Entity string
	Detail string
}

func (e *ErrInconsistentState) Error() string {
	return fmt.Sprintf("inconsistent %s: %s", e.Entity, e.Detail)
}

// ErrConcurrentModification is surfaced by the storage layer when an
// optimistic version check fails during a document write. Retryable, but the
// retry decision belongs to the caller.
type ErrConcurrentModification struct {
	Entity string
	ID     string
}

func (e *ErrConcurrentModification) Error() string {
	return fmt.Sprintf("%s %s was modified concurrently", e.Entity, e.ID)
}
