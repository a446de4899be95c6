package session

import "fmt"

// Phase is the lifecycle phase of a dictation session.
//
//	Idle ── Start ──> Listening ── engine End/transient error ──> Restarting
//	 ^                  │  ^                                          │
//	 │                  │  └──────────── engine restarted ────────────┘
//	 │                  │
//	 ├──── Stop ────────┤ (from Listening or Restarting)
//	 │                  └── fatal error / budget exceeded ──> Errored
//	 └──────────────── Reset ─────────────────────────────────────┘
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseListening
	PhaseRestarting
	PhaseErrored
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseListening:
		return "listening"
	case PhaseRestarting:
		return "restarting"
	case PhaseErrored:
		return "errored"
	default:
		return fmt.Sprintf("unknown(%d)", int(p))
	}
}

// MarshalText encodes the phase by name.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Listening reports whether the user intends to keep recording in this phase.
// The engine itself may be between runs while Restarting.
func (p Phase) Listening() bool {
	return p == PhaseListening || p == PhaseRestarting
}

// UnmarshalText decodes a phase name written by MarshalText.
func (p *Phase) UnmarshalText(text []byte) error {
	for _, candidate := range []Phase{PhaseIdle, PhaseListening, PhaseRestarting, PhaseErrored} {
		if candidate.String() == string(text) {
			*p = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown session phase %q", text)
}
