// Package models defines the payloads published for dictation sessions and
// journal entries.
package models

// Event types.
const (
	EventTranscriptInterim = "dictation.transcript.interim"
	EventTranscriptFinal   = "dictation.transcript.final"
	EventSessionPhase      = "dictation.session.phase"
	EventEntryCreated      = "journal.entry.created"
	EventEntryUpdated      = "journal.entry.updated"
	EventEntryDeleted      = "journal.entry.deleted"
)

// TranscriptInterim represents an unstable hypothesis for the utterance in progress.
type TranscriptInterim struct {
	EventType  string `json:"eventType"`
	SessionID  string `json:"sessionId"`
	Generation uint64 `json:"generation"`
	Timestamp  int64  `json:"timestamp"`
	SegmentID  string `json:"segmentId"`
	Text       string `json:"text"`
}

// TranscriptFinal represents a committed transcript segment.
type TranscriptFinal struct {
	EventType    string  `json:"eventType"`
	SessionID    string  `json:"sessionId"`
	Generation   uint64  `json:"generation"`
	Timestamp    int64   `json:"timestamp"`
	SegmentID    string  `json:"segmentId"`
	SegmentIndex int     `json:"segmentIndex"`
	Text         string  `json:"text"`
	Confidence   float64 `json:"confidence"`
}

// SessionPhaseChanged is emitted on every phase transition.
type SessionPhaseChanged struct {
	EventType  string `json:"eventType"`
	SessionID  string `json:"sessionId"`
	Generation uint64 `json:"generation"`
	Timestamp  int64  `json:"timestamp"`
	From       string `json:"from"`
	To         string `json:"to"`
	Reason     string `json:"reason"`
	Error      string `json:"error,omitempty"`
}
