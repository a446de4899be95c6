// Package dictation turns the transcript of a dictation session into a
// journal entry.
package dictation

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"voice-journal/internal/observability/logging"
	"voice-journal/internal/service/journal"
	"voice-journal/internal/service/session"
)

// Transcript is the part of a session the save flow needs.
type Transcript interface {
	State() session.State
	ResetIfUnchanged(finalText string) error
}

// EntryCreator persists transcript text.
type EntryCreator interface {
	CreateFromTranscript(ctx context.Context, text string) (journal.Entry, error)
}

// Service saves the session transcript as an entry.
type Service struct {
	session Transcript
	journal EntryCreator
	log     zerolog.Logger

	// mu serializes saves so one transcript is stored once.
	mu sync.Mutex
}

// New creates a dictation service.
func New(s Transcript, j EntryCreator) *Service {
	return &Service{
		session: s,
		journal: j,
		log:     logging.WithComponent("dictation"),
	}
}

// Save stores the finalized transcript as a new entry and then clears the
// transcript, unless it changed while the entry was being stored. Rejected
// with session.ErrInvalidTransition while listening. A blank transcript
// yields journal.ErrNothingToSave and leaves the session untouched.
func (s *Service) Save(ctx context.Context) (journal.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.session.State()
	if st.IsListening {
		return journal.Entry{}, fmt.Errorf("%w: stop listening before saving", session.ErrInvalidTransition)
	}

	entry, err := s.journal.CreateFromTranscript(ctx, st.FinalText)
	if err != nil {
		return journal.Entry{}, err
	}

	switch err := s.session.ResetIfUnchanged(st.FinalText); {
	case err == nil:
	case errors.Is(err, session.ErrTranscriptChanged), errors.Is(err, session.ErrInvalidTransition):
		// The user dictated again while the entry was being stored.
		s.log.Info().Err(err).Str("entryId", entry.ID).Msg("Transcript kept after save")
	default:
		s.log.Warn().Err(err).Str("entryId", entry.ID).Msg("Transcript not reset after save")
	}
	return entry, nil
}
