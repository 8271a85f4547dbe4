// Package lifecycle derives the auction state from wall-clock time and
// the configured bounds. There are no stored transition flags: every
// operation re-derives the state at call time, so the progression
// Pending -> InProgress -> Ended can never run backward.
package lifecycle

import (
	"fmt"

	"launchcontrol/internal/engine"
)

type State int

const (
	Pending State = iota
	InProgress
	Ended
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case InProgress:
		return "in_progress"
	case Ended:
		return "ended"
	default:
		return "unknown"
	}
}

// StateOf returns the auction state at now for the configured window.
// The start boundary is inclusive, the end boundary exclusive.
func StateOf(now, startTime, endTime int64) State {
	switch {
	case now < startTime:
		return Pending
	case now < endTime:
		return InProgress
	default:
		return Ended
	}
}

// Require fails with ErrStateViolation unless the auction is in the
// expected state at now.
func Require(expected State, now, startTime, endTime int64) error {
	if actual := StateOf(now, startTime, endTime); actual != expected {
		return fmt.Errorf("%w: auction is %s, operation requires %s",
			engine.ErrStateViolation, actual, expected)
	}
	return nil
}

// RequireNotInProgress allows an operation in Pending or Ended only.
// Close/refund uses it: inventory may leave custody before the sale
// starts or after it ends, never in the middle.
func RequireNotInProgress(now, startTime, endTime int64) error {
	if StateOf(now, startTime, endTime) == InProgress {
		return fmt.Errorf("%w: auction is in_progress, operation requires pending or ended",
			engine.ErrStateViolation)
	}
	return nil
}
