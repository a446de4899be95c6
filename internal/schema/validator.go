// Package schema validates event payloads before they leave the process.
package schema

import (
	"errors"
	"fmt"
	"strings"

	"voice-journal/internal/models"
)

// ErrInvalidEvent is wrapped by every validation failure.
var ErrInvalidEvent = errors.New("invalid event")

// Validator checks the required fields of each event type.
type Validator struct{}

func New() *Validator {
	return &Validator{}
}

// Validate returns an error wrapping ErrInvalidEvent if event is malformed
// or of an unknown type.
func (v *Validator) Validate(event any) error {
	var problems []string
	require := func(ok bool, field string) {
		if !ok {
			problems = append(problems, field)
		}
	}

	switch e := event.(type) {
	case models.TranscriptInterim:
		require(e.EventType == models.EventTranscriptInterim, "eventType")
		require(e.SessionID != "", "sessionId")
		require(e.SegmentID != "", "segmentId")
		require(e.Generation > 0, "generation")
		require(e.Timestamp > 0, "timestamp")
	case models.TranscriptFinal:
		require(e.EventType == models.EventTranscriptFinal, "eventType")
		require(e.SessionID != "", "sessionId")
		require(e.SegmentID != "", "segmentId")
		require(e.Generation > 0, "generation")
		require(e.Timestamp > 0, "timestamp")
		require(strings.TrimSpace(e.Text) != "", "text")
		require(e.SegmentIndex >= 0, "segmentIndex")
		require(e.Confidence >= 0 && e.Confidence <= 1, "confidence")
	case models.SessionPhaseChanged:
		require(e.EventType == models.EventSessionPhase, "eventType")
		require(e.SessionID != "", "sessionId")
		require(e.To != "", "to")
		require(e.Timestamp > 0, "timestamp")
	case models.EntryChanged:
		require(isEntryEvent(e.EventType), "eventType")
		require(e.EntryID != "", "entryId")
		require(e.Timestamp > 0, "timestamp")
	default:
		return fmt.Errorf("%w: unsupported type %T", ErrInvalidEvent, event)
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %T: bad %s", ErrInvalidEvent, event, strings.Join(problems, ", "))
	}
	return nil
}

func isEntryEvent(t string) bool {
	switch t {
	case models.EventEntryCreated, models.EventEntryUpdated, models.EventEntryDeleted:
		return true
	}
	return false
}
