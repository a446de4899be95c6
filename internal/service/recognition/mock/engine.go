// Package mock provides a simulated recognition engine for running without a
// microphone or cloud credentials. Each run emits progressive hypotheses and
// one final result per utterance, then ends on its own the way platform
// engines do after a pause.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"voice-journal/internal/observability/logging"
	"voice-journal/internal/service/recognition"
)

// Provider is the configuration name of this engine.
const Provider = "mock"

// SimulatedUtterance represents a mock utterance with progressive transcripts.
type SimulatedUtterance struct {
	Partials   []string // Progressive partial transcripts
	Final      string   // Final transcript text
	Confidence float64  // Confidence score for final
}

// DefaultUtterances provides sample utterances for simulation.
var DefaultUtterances = []SimulatedUtterance{
	{
		Partials:   []string{"Today I", "Today I finally", "Today I finally finished"},
		Final:      "Today I finally finished the garden fence.",
		Confidence: 0.94,
	},
	{
		Partials:   []string{"It took", "It took longer than"},
		Final:      "It took longer than I expected.",
		Confidence: 0.97,
	},
	{
		Partials:   []string{"Tomorrow", "Tomorrow I want", "Tomorrow I want to call"},
		Final:      "Tomorrow I want to call my sister.",
		Confidence: 0.91,
	},
	{
		Partials:   []string{"I've been", "I've been sleeping", "I've been sleeping better"},
		Final:      "I've been sleeping better this week.",
		Confidence: 0.89,
	},
	{
		Partials:   []string{"Grateful"},
		Final:      "Grateful for a quiet evening.",
		Confidence: 0.98,
	},
}

// Config controls the simulation.
type Config struct {
	// Utterances are cycled across runs. Defaults to DefaultUtterances.
	Utterances []SimulatedUtterance

	// UtterancesPerRun ends each run after this many utterances. Zero keeps
	// the run going until Stop.
	UtterancesPerRun int

	// Interval between consecutive hypotheses. Defaults to 150ms.
	Interval time.Duration

	// Fail makes every run report FailKind after its utterances.
	Fail     bool
	FailKind recognition.ErrorKind

	// StartErr is returned by every Start call.
	StartErr error
}

// DefaultConfig returns a configuration that ends each run after two utterances.
func DefaultConfig() Config {
	return Config{
		Utterances:       DefaultUtterances,
		UtterancesPerRun: 2,
		Interval:         150 * time.Millisecond,
	}
}

// Engine implements recognition.Engine with canned utterances.
type Engine struct {
	cfg Config
	log zerolog.Logger

	mu     sync.Mutex
	active bool
	cancel context.CancelFunc
	runID  uint64
	next   int // next utterance to simulate, cycles through cfg.Utterances
}

// New creates a mock engine.
func New(cfg Config) *Engine {
	if len(cfg.Utterances) == 0 {
		cfg.Utterances = DefaultUtterances
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 150 * time.Millisecond
	}
	return &Engine{
		cfg: cfg,
		log: logging.WithComponent("recognition").With().Str("provider", Provider).Logger(),
	}
}

// Start begins a simulated run tagged with generation.
func (e *Engine) Start(ctx context.Context, generation uint64, sink recognition.Sink) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.active {
		return recognition.ErrAlreadyActive
	}
	if e.cfg.StartErr != nil {
		return e.cfg.StartErr
	}

	runCtx, cancel := context.WithCancel(ctx)
	e.runID++
	e.active = true
	e.cancel = cancel

	e.log.Debug().Uint64("generation", generation).Msg("Mock run started")
	go e.simulate(runCtx, generation, sink, e.runID)
	return nil
}

// Stop ends the active run. The run still delivers its End event.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.active {
		return nil
	}
	e.cancel()
	e.active = false
	e.cancel = nil
	return nil
}

// Active reports whether a run is in progress.
func (e *Engine) Active() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

func (e *Engine) simulate(ctx context.Context, gen uint64, sink recognition.Sink, id uint64) {
	defer func() {
		e.mu.Lock()
		if e.active && e.runID == id {
			e.active = false
			e.cancel()
			e.cancel = nil
		}
		e.mu.Unlock()
		sink.Deliver(recognition.End(gen))
	}()

	for n := 0; e.cfg.UtterancesPerRun == 0 || n < e.cfg.UtterancesPerRun; n++ {
		utt := e.nextUtterance()
		for _, partial := range utt.Partials {
			if !e.pause(ctx) {
				return
			}
			sink.Deliver(recognition.Interim(gen, partial))
		}
		if !e.pause(ctx) {
			return
		}
		sink.Deliver(recognition.Final(gen, utt.Final, utt.Confidence))
	}

	if e.cfg.Fail && ctx.Err() == nil {
		sink.Deliver(recognition.Failure(gen, e.cfg.FailKind))
	}
}

func (e *Engine) nextUtterance() SimulatedUtterance {
	e.mu.Lock()
	defer e.mu.Unlock()
	utt := e.cfg.Utterances[e.next%len(e.cfg.Utterances)]
	e.next++
	return utt
}

func (e *Engine) pause(ctx context.Context) bool {
	t := time.NewTimer(e.cfg.Interval)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
