package session

import (
	"errors"
	"fmt"

	"voice-journal/internal/service/recognition"
)

var (
	// ErrInvalidTransition is returned for commands the current phase does
	// not accept. The session state is left unchanged.
	ErrInvalidTransition = errors.New("invalid session transition")

	// ErrRetryBudgetExceeded is the terminal error when the engine keeps
	// ending faster than the restart policy allows.
	ErrRetryBudgetExceeded = errors.New("recognition restart budget exceeded")

	// ErrTranscriptChanged is returned by ResetIfUnchanged when the
	// transcript no longer matches the text the caller expected.
	ErrTranscriptChanged = errors.New("transcript changed")
)

// EngineFailure is the terminal error for a fatal engine failure.
type EngineFailure struct {
	Kind       recognition.ErrorKind
	Generation uint64
}

func (e *EngineFailure) Error() string {
	return fmt.Sprintf("recognition engine failed: %s (generation %d)", e.Kind, e.Generation)
}

func errorLabel(err error) string {
	var ef *EngineFailure
	switch {
	case errors.As(err, &ef):
		return ef.Kind.String()
	case errors.Is(err, ErrRetryBudgetExceeded):
		return "retry_budget"
	default:
		return "unknown"
	}
}
