package segment

import (
	"errors"
	"fmt"
)

// State is the lifecycle state of one utterance.
type State int

const (
	// StateClosed means no utterance is in progress.
	StateClosed State = iota
	// StateOpen means interim hypotheses are arriving for the utterance.
	StateOpen
	// StateCommitted means the final result was accepted.
	StateCommitted
	// StateDropped means the utterance was abandoned before a final result.
	StateDropped
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateCommitted:
		return "COMMITTED"
	case StateDropped:
		return "DROPPED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// IsTerminal reports whether a new utterance must be begun before more
// results can be recorded.
func (s State) IsTerminal() bool {
	return s != StateOpen
}

var (
	ErrNotOpen          = errors.New("no utterance in progress")
	ErrAlreadyCommitted = errors.New("utterance already committed")
)

// Lifecycle tracks the utterance in progress:
//
//	CLOSED ── Begin ──> OPEN ── Commit ──> COMMITTED
//	                     │
//	                     └── Drop ──> DROPPED
//
// Begin may be called from any state and starts a fresh utterance. Lifecycle
// is not safe for concurrent use; the session serializes access.
type Lifecycle struct {
	id       string
	state    State
	interims int
}

// NewLifecycle returns a lifecycle with no utterance in progress.
func NewLifecycle() *Lifecycle {
	return &Lifecycle{state: StateClosed}
}

// ID returns the id of the current or most recent utterance.
func (l *Lifecycle) ID() string { return l.id }

// State returns the current state.
func (l *Lifecycle) State() State { return l.state }

// Interims returns how many hypotheses the current utterance received.
func (l *Lifecycle) Interims() int { return l.interims }

// Begin starts a new utterance with the given id.
func (l *Lifecycle) Begin(id string) {
	l.id = id
	l.state = StateOpen
	l.interims = 0
}

// Interim records a hypothesis for the open utterance.
func (l *Lifecycle) Interim() error {
	if l.state != StateOpen {
		return ErrNotOpen
	}
	l.interims++
	return nil
}

// Commit records the final result. Only one commit per utterance.
func (l *Lifecycle) Commit() error {
	switch l.state {
	case StateOpen:
		l.state = StateCommitted
		return nil
	case StateCommitted:
		return ErrAlreadyCommitted
	default:
		return ErrNotOpen
	}
}

// Drop abandons the open utterance. Returns false if none was open.
func (l *Lifecycle) Drop() bool {
	if l.state != StateOpen {
		return false
	}
	l.state = StateDropped
	return true
}
