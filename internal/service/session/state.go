package session

import "voice-journal/internal/models"

// State is the read-only projection consumers render.
type State struct {
	FinalText   string `json:"finalText"`
	InterimText string `json:"interimText"`
	IsListening bool   `json:"isListening"`
	Phase       Phase  `json:"phase"`
	Generation  uint64 `json:"generation"`
	Error       string `json:"error,omitempty"`
}

// Listener observes transcript and phase events in the order the session
// applied them. Methods are called with the session lock held: they must not
// block and must not call back into the session.
type Listener interface {
	OnInterim(ev models.TranscriptInterim)
	OnFinal(ev models.TranscriptFinal)
	OnPhaseChange(ev models.SessionPhaseChanged)
}
