package psocarm

import (
	"errors"
	"fmt"
)

// State is the lifecycle state of the Controller.
type State int

// States
const (
	StateUnopened State = iota
	StateOpen
	StateClosed
	// StateFailed is terminal: the device couldn't be opened.
	StateFailed
)

var stateNames = map[State]string{
	StateUnopened: "unopened",
	StateOpen:     "open",
	StateClosed:   "closed",
	StateFailed:   "failed",
}

// String implements fmt.Stringer.
func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

var (
	// ErrNoLink indicates the device was never opened.
	ErrNoLink = errors.New("no link")
	// ErrFieldRange indicates a command field doesn't fit in 16 bits.
	ErrFieldRange = errors.New("field out of range")
)

// StateError rejects an operation not allowed in current state.
type StateError struct {
	State State
	Err   error
}

// Error implements error.
func (e *StateError) Error() string {
	return fmt.Sprintf("arm %s: %v", e.State, e.Err)
}

// Unwrap returns the cause.
func (e *StateError) Unwrap() error {
	return e.Err
}
