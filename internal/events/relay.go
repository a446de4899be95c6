package events

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"voice-journal/internal/models"
	"voice-journal/internal/observability/logging"
	"voice-journal/internal/observability/metrics"
)

// SessionPublisher publishes session events.
type SessionPublisher interface {
	PublishInterim(ctx context.Context, ev models.TranscriptInterim) error
	PublishFinal(ctx context.Context, ev models.TranscriptFinal) error
	PublishPhase(ctx context.Context, ev models.SessionPhaseChanged) error
}

// DefaultRelayBuffer is the default relay queue length.
const DefaultRelayBuffer = 256

type outbound struct {
	eventType string
	send      func(ctx context.Context) error
}

// Relay forwards session events to a publisher from its own goroutine. It
// implements the session listener hooks, which run under the session lock, so
// enqueueing never blocks: when the queue is full the event is dropped.
type Relay struct {
	pub     SessionPublisher
	queue   chan outbound
	metrics *metrics.Metrics
	log     zerolog.Logger

	// DrainTimeout bounds publishing of queued events after Run's context ends.
	DrainTimeout time.Duration
}

// NewRelay creates a relay with a queue of size events.
func NewRelay(pub SessionPublisher, size int, m *metrics.Metrics) *Relay {
	if size <= 0 {
		size = DefaultRelayBuffer
	}
	if m == nil {
		m = metrics.DefaultMetrics
	}
	return &Relay{
		pub:          pub,
		queue:        make(chan outbound, size),
		metrics:      m,
		log:          logging.WithComponent("relay"),
		DrainTimeout: 5 * time.Second,
	}
}

func (r *Relay) OnInterim(ev models.TranscriptInterim) {
	r.enqueue(ev.EventType, func(ctx context.Context) error { return r.pub.PublishInterim(ctx, ev) })
}

func (r *Relay) OnFinal(ev models.TranscriptFinal) {
	r.enqueue(ev.EventType, func(ctx context.Context) error { return r.pub.PublishFinal(ctx, ev) })
}

func (r *Relay) OnPhaseChange(ev models.SessionPhaseChanged) {
	r.enqueue(ev.EventType, func(ctx context.Context) error { return r.pub.PublishPhase(ctx, ev) })
}

func (r *Relay) enqueue(eventType string, send func(context.Context) error) {
	select {
	case r.queue <- outbound{eventType: eventType, send: send}:
	default:
		r.metrics.RecordRelayDropped(eventType)
		r.log.Warn().Str("eventType", eventType).Msg("Publish queue full, dropping event")
	}
}

// Run publishes queued events until ctx is done, then drains what is left.
func (r *Relay) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			r.drain(context.WithoutCancel(ctx))
			return nil
		case out := <-r.queue:
			r.send(ctx, out)
		}
	}
}

func (r *Relay) drain(parent context.Context) {
	ctx, cancel := context.WithTimeout(parent, r.DrainTimeout)
	defer cancel()
	for {
		select {
		case out := <-r.queue:
			r.send(ctx, out)
		default:
			return
		}
	}
}

func (r *Relay) send(ctx context.Context, out outbound) {
	// Failures are logged and counted by the publisher.
	if err := out.send(ctx); err != nil {
		r.log.Debug().Err(err).Str("eventType", out.eventType).Msg("Relay publish failed")
	}
}
