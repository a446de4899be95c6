package recognition

import "fmt"

// EventKind identifies the type of engine event.
type EventKind int

const (
	// EventInterim carries an unstable hypothesis for the utterance in progress.
	EventInterim EventKind = iota
	// EventFinal carries a committed segment that will not be revised.
	EventFinal
	// EventError reports a recognition failure.
	EventError
	// EventEnd reports that the run is over.
	EventEnd
)

func (k EventKind) String() string {
	switch k {
	case EventInterim:
		return "interim"
	case EventFinal:
		return "final"
	case EventError:
		return "error"
	case EventEnd:
		return "end"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// ErrorKind is the failure taxonomy an engine reports.
type ErrorKind int

const (
	Unknown ErrorKind = iota
	NoMicrophone
	PermissionDenied
	NoSpeechDetected
	NetworkUnavailable
	AbortedByPlatform
)

func (k ErrorKind) String() string {
	switch k {
	case NoMicrophone:
		return "no_microphone"
	case PermissionDenied:
		return "permission_denied"
	case NoSpeechDetected:
		return "no_speech"
	case NetworkUnavailable:
		return "network_unavailable"
	case AbortedByPlatform:
		return "aborted"
	default:
		return "unknown"
	}
}

// Fatal reports whether the failure ends the session. Non-fatal failures are
// retried by restarting the engine.
func (k ErrorKind) Fatal() bool {
	switch k {
	case NoSpeechDetected, NetworkUnavailable, AbortedByPlatform:
		return false
	default:
		return true
	}
}

// Event is a tagged engine callback.
type Event struct {
	Kind       EventKind
	Generation uint64
	Text       string
	Confidence float64
	Err        ErrorKind
}

// Interim builds an interim event.
func Interim(generation uint64, text string) Event {
	return Event{Kind: EventInterim, Generation: generation, Text: text}
}

// Final builds a final event.
func Final(generation uint64, text string, confidence float64) Event {
	return Event{Kind: EventFinal, Generation: generation, Text: text, Confidence: confidence}
}

// Failure builds an error event.
func Failure(generation uint64, kind ErrorKind) Event {
	return Event{Kind: EventError, Generation: generation, Err: kind}
}

// End builds an end-of-run event.
func End(generation uint64) Event {
	return Event{Kind: EventEnd, Generation: generation}
}
