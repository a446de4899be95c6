// Package recognition defines the contract between the speech session and a
// continuous speech recognition engine (browser API, cloud service, mock).
package recognition

import (
	"context"
	"errors"
	"fmt"
)

// ErrAlreadyActive is returned by Engine.Start when a run is still active.
var ErrAlreadyActive = errors.New("recognition engine already active")

// Sink receives engine events. Every event carries the generation passed to
// the Start call that produced it.
type Sink interface {
	Deliver(ev Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ev Event)

// Deliver calls f(ev).
func (f SinkFunc) Deliver(ev Event) { f(ev) }

// Engine wraps a platform-provided continuous recognition capability.
//
// Implementations guarantee exactly one End event per successful Start, unless
// the process exits first. Capability denial is reported either as a
// synchronous *EngineError from Start or as an Error event, never silently.
type Engine interface {
	// Start begins a recognition run tagged with generation. Returns
	// ErrAlreadyActive if a previous run has not been stopped.
	Start(ctx context.Context, generation uint64, sink Sink) error

	// Stop ends the active run. Safe to call when idle.
	Stop() error
}

// EngineError is a capability failure reported synchronously by Start.
type EngineError struct {
	Kind ErrorKind
	Err  error
}

// NewEngineError wraps err with a failure kind.
func NewEngineError(kind ErrorKind, err error) *EngineError {
	return &EngineError{Kind: kind, Err: err}
}

func (e *EngineError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("recognition: %s", e.Kind)
	}
	return fmt.Sprintf("recognition: %s: %v", e.Kind, e.Err)
}

func (e *EngineError) Unwrap() error { return e.Err }

// KindOf classifies an error returned by Engine.Start.
func KindOf(err error) ErrorKind {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Kind
	}
	if errors.Is(err, ErrAlreadyActive) {
		return AbortedByPlatform
	}
	return Unknown
}
