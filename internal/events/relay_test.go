package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"voice-journal/internal/models"
	"voice-journal/internal/observability/metrics"
)

type recordingPublisher struct {
	mu    sync.Mutex
	types []string
}

func (p *recordingPublisher) record(eventType string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.types = append(p.types, eventType)
	return nil
}

func (p *recordingPublisher) PublishInterim(_ context.Context, ev models.TranscriptInterim) error {
	return p.record(ev.EventType)
}

func (p *recordingPublisher) PublishFinal(_ context.Context, ev models.TranscriptFinal) error {
	return p.record(ev.EventType)
}

func (p *recordingPublisher) PublishPhase(_ context.Context, ev models.SessionPhaseChanged) error {
	return p.record(ev.EventType)
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.types)
}

func TestRelay_PublishesInOrder(t *testing.T) {
	pub := &recordingPublisher{}
	r := NewRelay(pub, 8, metrics.NewMetrics(prometheus.NewRegistry()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = r.Run(ctx)
		close(done)
	}()

	r.OnPhaseChange(models.SessionPhaseChanged{EventType: models.EventSessionPhase})
	r.OnInterim(models.TranscriptInterim{EventType: models.EventTranscriptInterim})
	r.OnFinal(models.TranscriptFinal{EventType: models.EventTranscriptFinal})

	deadline := time.Now().Add(time.Second)
	for pub.count() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("published %d events, want 3", pub.count())
		}
		time.Sleep(time.Millisecond)
	}
	cancel()
	<-done

	want := []string{models.EventSessionPhase, models.EventTranscriptInterim, models.EventTranscriptFinal}
	for i, w := range want {
		if pub.types[i] != w {
			t.Errorf("event %d = %s, want %s", i, pub.types[i], w)
		}
	}
}

func TestRelay_DropsWhenFull(t *testing.T) {
	m := metrics.NewMetrics(prometheus.NewRegistry())
	r := NewRelay(&recordingPublisher{}, 2, m)

	// Not running: the queue fills up and further events are dropped.
	for i := 0; i < 5; i++ {
		r.OnInterim(models.TranscriptInterim{EventType: models.EventTranscriptInterim})
	}

	if got := testutil.ToFloat64(m.RelayDropped.WithLabelValues(models.EventTranscriptInterim)); got != 3 {
		t.Errorf("dropped = %v, want 3", got)
	}
}

func TestRelay_DrainsOnShutdown(t *testing.T) {
	pub := &recordingPublisher{}
	r := NewRelay(pub, 4, metrics.NewMetrics(prometheus.NewRegistry()))

	r.OnFinal(models.TranscriptFinal{EventType: models.EventTranscriptFinal})
	r.OnFinal(models.TranscriptFinal{EventType: models.EventTranscriptFinal})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := r.Run(ctx); err != nil {
		t.Fatal(err)
	}
	if pub.count() != 2 {
		t.Errorf("expected queued events flushed on shutdown, got %d", pub.count())
	}
}
