// Package session owns one dictation session: the user's listening intent,
// the accumulated transcript and the recognition engine's lifecycle.
//
// The engine ends its runs on its own (silence, platform timeouts, network
// blips). While the user intends to keep listening, the session restarts it
// under a new generation and discards anything the superseded run still
// delivers.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"voice-journal/internal/models"
	"voice-journal/internal/observability/logging"
	"voice-journal/internal/observability/metrics"
	"voice-journal/internal/service/recognition"
	"voice-journal/internal/service/segment"
	"voice-journal/internal/service/transcript"
)

// Config holds session construction options. Zero values select defaults.
type Config struct {
	ID      string
	Policy  RestartPolicy
	Metrics *metrics.Metrics
	Logger  *zerolog.Logger
	Clock   func() time.Time

	// Context is passed to every engine run.
	Context context.Context
}

// Session is safe for concurrent use. It implements recognition.Sink; engines
// may deliver events from any goroutine, including synchronously from Start.
type Session struct {
	id      string
	engine  recognition.Engine
	policy  RestartPolicy
	metrics *metrics.Metrics
	log     zerolog.Logger
	now     func() time.Time
	ctx     context.Context

	mu         sync.Mutex
	phase      Phase
	generation uint64
	restarts   []time.Time
	lastErr    error
	acc        *transcript.Accumulator
	utterance  *segment.Lifecycle
	segments   *segment.Generator
	listeners  []Listener
	subs       map[uint64]chan State
	nextSub    uint64
}

// New creates an idle session driving engine.
func New(engine recognition.Engine, cfg Config) *Session {
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.DefaultMetrics
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Context == nil {
		cfg.Context = context.Background()
	}
	log := logging.WithSession(cfg.ID)
	if cfg.Logger != nil {
		log = cfg.Logger.With().Str("sessionId", cfg.ID).Logger()
	}

	s := &Session{
		id:        cfg.ID,
		engine:    engine,
		policy:    cfg.Policy.withDefaults(),
		metrics:   cfg.Metrics,
		log:       log,
		now:       cfg.Clock,
		ctx:       cfg.Context,
		phase:     PhaseIdle,
		acc:       transcript.New(),
		utterance: segment.NewLifecycle(),
		segments:  segment.New(),
		subs:      make(map[uint64]chan State),
	}
	s.metrics.RecordPhaseChange("", PhaseIdle.String())
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Start records the intent to listen and starts the engine under a new
// generation. Calling Start while already listening is a no-op. An errored
// session must be Reset first.
//
// Start returns an error only if the session ended up Errored; transient
// engine failures are retried under the restart policy.
func (s *Session) Start() error {
	s.mu.Lock()
	switch s.phase {
	case PhaseListening, PhaseRestarting:
		s.mu.Unlock()
		return nil
	case PhaseErrored:
		err := s.lastErr
		s.mu.Unlock()
		return fmt.Errorf("%w: start while errored (%v), reset first", ErrInvalidTransition, err)
	}
	s.generation++
	gen := s.generation
	s.restarts = s.restarts[:0]
	s.metrics.RecordStart()
	s.setPhaseLocked(PhaseListening, "start")
	s.mu.Unlock()

	s.log.Info().Uint64("generation", gen).Msg("Listening started")

	err := s.startEngine(gen)
	if errors.Is(err, recognition.ErrAlreadyActive) {
		// Previous run has not wound down yet.
		if stopErr := s.engine.Stop(); stopErr != nil {
			s.log.Warn().Err(stopErr).Msg("Failed to stop lingering engine run")
		}
		err = s.startEngine(gen)
	}
	if err == nil {
		s.abandonIfStopped(gen)
		return nil
	}

	s.log.Warn().Err(err).Uint64("generation", gen).Msg("Engine start failed")
	s.Deliver(recognition.Failure(gen, recognition.KindOf(err)))

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == PhaseErrored && s.generation == gen {
		return s.lastErr
	}
	return nil
}

// Stop clears the intent to listen and stops the engine. The pending interim
// hypothesis is discarded; finalized text is kept. Events the engine delivers
// afterwards are ignored. Stop is a no-op when not listening; an Errored
// session stays Errored until Reset.
func (s *Session) Stop() error {
	s.mu.Lock()
	if !s.phase.Listening() {
		s.mu.Unlock()
		return nil
	}
	s.dropUtteranceLocked("stopped")
	s.setPhaseLocked(PhaseIdle, "stop")
	gen := s.generation
	s.mu.Unlock()

	if err := s.engine.Stop(); err != nil {
		s.log.Warn().Err(err).Uint64("generation", gen).Msg("Engine stop failed")
	}
	s.log.Info().Uint64("generation", gen).Msg("Listening stopped")
	return nil
}

// Reset discards the transcript and clears a terminal error. Rejected with
// ErrInvalidTransition while listening.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase.Listening() {
		return fmt.Errorf("%w: reset while %s", ErrInvalidTransition, s.phase)
	}
	s.resetLocked()
	return nil
}

// ResetIfUnchanged resets the session only if its finalized text still equals
// finalText. Otherwise it returns ErrTranscriptChanged and keeps the
// transcript. Rejected with ErrInvalidTransition while listening.
func (s *Session) ResetIfUnchanged(finalText string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase.Listening() {
		return fmt.Errorf("%w: reset while %s", ErrInvalidTransition, s.phase)
	}
	if s.acc.FinalText() != finalText {
		return ErrTranscriptChanged
	}
	s.resetLocked()
	return nil
}

func (s *Session) resetLocked() {
	s.acc.Clear()
	s.utterance = segment.NewLifecycle()
	s.restarts = s.restarts[:0]
	s.lastErr = nil
	s.setPhaseLocked(PhaseIdle, "reset")

	s.log.Info().Msg("Transcript reset")
}

// State returns a snapshot of the observable state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe returns a channel carrying the latest state. The current state is
// sent immediately; a slow reader only ever sees the most recent snapshot.
// cancel closes the channel.
func (s *Session) Subscribe() (<-chan State, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	ch := make(chan State, 1)
	ch <- s.snapshotLocked()
	s.subs[id] = ch

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(ch)
		}
	}
	return ch, cancel
}

// AddListener registers l for transcript and phase events.
func (s *Session) AddListener(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// Deliver applies an engine event. Events from a superseded generation, or
// arriving while the session is not listening, are discarded.
func (s *Session) Deliver(ev recognition.Event) {
	s.mu.Lock()
	if ev.Generation != s.generation || !s.phase.Listening() {
		current, phase := s.generation, s.phase
		s.mu.Unlock()
		s.metrics.RecordStaleEvent(ev.Kind.String())
		s.log.Debug().
			Str("event", ev.Kind.String()).
			Uint64("eventGeneration", ev.Generation).
			Uint64("generation", current).
			Str("phase", phase.String()).
			Msg("Discarding stale recognition event")
		return
	}

	switch ev.Kind {
	case recognition.EventInterim:
		s.applyInterimLocked(ev)
		s.mu.Unlock()
	case recognition.EventFinal:
		s.applyFinalLocked(ev)
		s.mu.Unlock()
	case recognition.EventEnd:
		s.restart("engine_end")
	case recognition.EventError:
		if ev.Err.Fatal() {
			s.failLocked(&EngineFailure{Kind: ev.Err, Generation: ev.Generation})
			s.mu.Unlock()
			if err := s.engine.Stop(); err != nil {
				s.log.Warn().Err(err).Msg("Engine stop failed")
			}
			return
		}
		s.restart("error:" + ev.Err.String())
	default:
		s.mu.Unlock()
		s.log.Warn().Int("event", int(ev.Kind)).Msg("Unknown recognition event")
	}
}

// restart is called with s.mu held and releases it. It either moves the
// session to Errored or starts the engine under a new generation.
func (s *Session) restart(reason string) {
	now := s.now()
	s.pruneRestartsLocked(now)

	if len(s.restarts) >= s.policy.MaxRestarts {
		s.failLocked(fmt.Errorf("%w: %d restarts within %s", ErrRetryBudgetExceeded, len(s.restarts), s.policy.Window))
		s.mu.Unlock()
		if err := s.engine.Stop(); err != nil {
			s.log.Warn().Err(err).Msg("Engine stop failed")
		}
		return
	}

	s.restarts = append(s.restarts, now)
	s.dropUtteranceLocked(reason)
	s.generation++
	gen := s.generation
	s.metrics.RecordRestart()
	s.setPhaseLocked(PhaseRestarting, reason)
	s.mu.Unlock()

	s.log.Info().
		Str("reason", reason).
		Uint64("generation", gen).
		Int("restartsInWindow", len(s.restarts)).
		Msg("Restarting recognition engine")

	// The previous run may still be winding down after an error event.
	if err := s.engine.Stop(); err != nil {
		s.log.Warn().Err(err).Msg("Engine stop before restart failed")
	}
	if err := s.startEngine(gen); err != nil {
		s.log.Warn().Err(err).Uint64("generation", gen).Msg("Engine restart failed")
		s.Deliver(recognition.Failure(gen, recognition.KindOf(err)))
		return
	}

	s.mu.Lock()
	if s.generation == gen && s.phase == PhaseRestarting {
		s.setPhaseLocked(PhaseListening, "restarted")
	}
	s.mu.Unlock()
	s.abandonIfStopped(gen)
}

func (s *Session) startEngine(gen uint64) error {
	begin := time.Now()
	err := s.engine.Start(s.ctx, gen, s)
	s.metrics.RecordEngineStart(time.Since(begin).Seconds())
	return err
}

// abandonIfStopped stops the run just started for gen when the session left
// listening (Stop or a fatal error) while Engine.Start was in flight. A newer
// generation that is still listening owns the engine and is left alone.
func (s *Session) abandonIfStopped(gen uint64) {
	s.mu.Lock()
	listening, phase := s.phase.Listening(), s.phase
	s.mu.Unlock()
	if listening {
		return
	}

	s.log.Debug().
		Uint64("generation", gen).
		Str("phase", phase.String()).
		Msg("Stopping engine run started after listening ended")
	if err := s.engine.Stop(); err != nil {
		s.log.Warn().Err(err).Uint64("generation", gen).Msg("Engine stop failed")
	}
}

func (s *Session) applyInterimLocked(ev recognition.Event) {
	if s.phase == PhaseRestarting {
		s.setPhaseLocked(PhaseListening, "restarted")
	}
	if s.utterance.State() != segment.StateOpen {
		s.utterance.Begin(s.segments.Next(s.id))
	}
	if err := s.utterance.Interim(); err != nil {
		s.log.Debug().Err(err).Str("segmentId", s.utterance.ID()).Msg("Interim outside open utterance")
	}
	s.acc.ApplyInterim(ev.Text)
	s.metrics.RecordInterim()

	msg := models.TranscriptInterim{
		EventType:  models.EventTranscriptInterim,
		SessionID:  s.id,
		Generation: ev.Generation,
		Timestamp:  s.now().UnixMilli(),
		SegmentID:  s.utterance.ID(),
		Text:       s.acc.InterimText(),
	}
	for _, l := range s.listeners {
		l.OnInterim(msg)
	}
	s.publishLocked()
}

func (s *Session) applyFinalLocked(ev recognition.Event) {
	if s.phase == PhaseRestarting {
		s.setPhaseLocked(PhaseListening, "restarted")
	}
	// A committed result proves the engine is healthy.
	s.restarts = s.restarts[:0]

	if s.utterance.State() != segment.StateOpen {
		s.utterance.Begin(s.segments.Next(s.id))
	}
	if err := s.utterance.Commit(); err != nil {
		s.log.Debug().Err(err).Str("segmentId", s.utterance.ID()).Msg("Final outside open utterance")
	}

	index := s.acc.Len()
	s.acc.ApplyFinal(ev.Text)
	if s.acc.Len() > index {
		s.metrics.RecordFinal()
		segs := s.acc.Segments()
		msg := models.TranscriptFinal{
			EventType:    models.EventTranscriptFinal,
			SessionID:    s.id,
			Generation:   ev.Generation,
			Timestamp:    s.now().UnixMilli(),
			SegmentID:    s.utterance.ID(),
			SegmentIndex: index,
			Text:         segs[index],
			Confidence:   ev.Confidence,
		}
		for _, l := range s.listeners {
			l.OnFinal(msg)
		}
	}
	s.publishLocked()
}

func (s *Session) failLocked(err error) {
	s.lastErr = err
	s.dropUtteranceLocked("error")
	s.metrics.RecordSessionError(errorLabel(err))
	s.setPhaseLocked(PhaseErrored, errorLabel(err))
	s.log.Error().Err(err).Uint64("generation", s.generation).Msg("Session errored")
}

func (s *Session) dropUtteranceLocked(reason string) {
	s.acc.DiscardInterim()
	if s.utterance.Drop() {
		s.metrics.RecordUtteranceDropped(reason)
	}
}

func (s *Session) pruneRestartsLocked(now time.Time) {
	cutoff := now.Add(-s.policy.Window)
	kept := s.restarts[:0]
	for _, t := range s.restarts {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	s.restarts = kept
}

// setPhaseLocked moves to phase to and publishes the new state. Listeners are
// notified only when the phase actually changes.
func (s *Session) setPhaseLocked(to Phase, reason string) {
	from := s.phase
	s.phase = to
	if from != to {
		s.metrics.RecordPhaseChange(from.String(), to.String())
		msg := models.SessionPhaseChanged{
			EventType:  models.EventSessionPhase,
			SessionID:  s.id,
			Generation: s.generation,
			Timestamp:  s.now().UnixMilli(),
			From:       from.String(),
			To:         to.String(),
			Reason:     reason,
		}
		if to == PhaseErrored && s.lastErr != nil {
			msg.Error = s.lastErr.Error()
		}
		for _, l := range s.listeners {
			l.OnPhaseChange(msg)
		}
		s.log.Debug().
			Str("from", from.String()).
			Str("to", to.String()).
			Str("reason", reason).
			Msg("Phase changed")
	}
	s.publishLocked()
}

func (s *Session) publishLocked() {
	st := s.snapshotLocked()
	for _, ch := range s.subs {
		select {
		case ch <- st:
		default:
			// Replace the unread snapshot. s.mu serializes senders, so the
			// second send cannot block.
			select {
			case <-ch:
			default:
			}
			ch <- st
		}
	}
}

func (s *Session) snapshotLocked() State {
	st := State{
		FinalText:   s.acc.FinalText(),
		InterimText: s.acc.InterimText(),
		IsListening: s.phase.Listening(),
		Phase:       s.phase,
		Generation:  s.generation,
	}
	if s.lastErr != nil {
		st.Error = s.lastErr.Error()
	}
	return st
}
