package mock

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"voice-journal/internal/observability/metrics"
	"voice-journal/internal/service/recognition"
	"voice-journal/internal/service/session"
)

// collector buffers delivered events.
type collector chan recognition.Event

func (c collector) Deliver(ev recognition.Event) { c <- ev }

// until reads events up to and including the first End.
func (c collector) until(t *testing.T) []recognition.Event {
	t.Helper()
	var out []recognition.Event
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-c:
			out = append(out, ev)
			if ev.Kind == recognition.EventEnd {
				return out
			}
		case <-deadline:
			t.Fatalf("timed out waiting for End, got %d events", len(out))
			return nil
		}
	}
}

func fastConfig() Config {
	return Config{UtterancesPerRun: 1, Interval: time.Millisecond}
}

func TestEngine_RunEmitsUtteranceThenEnd(t *testing.T) {
	e := New(fastConfig())
	sink := make(collector, 32)

	if err := e.Start(context.Background(), 7, sink); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	events := sink.until(t)

	utt := DefaultUtterances[0]
	if len(events) != len(utt.Partials)+2 {
		t.Fatalf("expected %d events, got %d", len(utt.Partials)+2, len(events))
	}
	for i, p := range utt.Partials {
		if events[i].Kind != recognition.EventInterim || events[i].Text != p {
			t.Errorf("event %d = %+v, want interim %q", i, events[i], p)
		}
	}
	final := events[len(utt.Partials)]
	if final.Kind != recognition.EventFinal || final.Text != utt.Final || final.Confidence != utt.Confidence {
		t.Errorf("unexpected final: %+v", final)
	}
	for _, ev := range events {
		if ev.Generation != 7 {
			t.Errorf("event tagged with generation %d, want 7", ev.Generation)
		}
	}

	// End must leave the engine startable.
	waitInactive(t, e)
	if err := e.Start(context.Background(), 8, sink); err != nil {
		t.Fatalf("restart error = %v", err)
	}
	events = sink.until(t)
	if events[len(events)-2].Text != DefaultUtterances[1].Final {
		t.Errorf("expected utterances to cycle, got %q", events[len(events)-2].Text)
	}
}

func TestEngine_StartWhileActive(t *testing.T) {
	e := New(Config{Interval: time.Hour})
	sink := make(collector, 8)

	if err := e.Start(context.Background(), 1, sink); err != nil {
		t.Fatal(err)
	}
	if err := e.Start(context.Background(), 2, sink); !errors.Is(err, recognition.ErrAlreadyActive) {
		t.Errorf("second Start() = %v, want ErrAlreadyActive", err)
	}
	_ = e.Stop()
}

func TestEngine_StopDeliversEnd(t *testing.T) {
	e := New(Config{Interval: time.Hour})
	sink := make(collector, 8)

	if err := e.Start(context.Background(), 3, sink); err != nil {
		t.Fatal(err)
	}
	if err := e.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if e.Active() {
		t.Error("expected inactive immediately after Stop")
	}

	events := sink.until(t)
	if len(events) != 1 || events[0].Generation != 3 {
		t.Errorf("expected a single End for generation 3, got %+v", events)
	}
	if err := e.Stop(); err != nil {
		t.Errorf("Stop() when idle = %v", err)
	}
}

func TestEngine_StartErr(t *testing.T) {
	denied := recognition.NewEngineError(recognition.PermissionDenied, nil)
	e := New(Config{StartErr: denied})

	err := e.Start(context.Background(), 1, make(collector, 1))
	if recognition.KindOf(err) != recognition.PermissionDenied {
		t.Errorf("Start() = %v, want permission denied", err)
	}
	if e.Active() {
		t.Error("failed Start must not activate the engine")
	}
}

func TestEngine_Fail(t *testing.T) {
	cfg := fastConfig()
	cfg.Fail = true
	cfg.FailKind = recognition.NetworkUnavailable
	e := New(cfg)
	sink := make(collector, 32)

	if err := e.Start(context.Background(), 1, sink); err != nil {
		t.Fatal(err)
	}
	events := sink.until(t)

	failure := events[len(events)-2]
	if failure.Kind != recognition.EventError || failure.Err != recognition.NetworkUnavailable {
		t.Errorf("expected network failure before End, got %+v", failure)
	}
}

func TestEngine_ContextCancelEndsRun(t *testing.T) {
	e := New(Config{Interval: time.Hour})
	sink := make(collector, 8)
	ctx, cancel := context.WithCancel(context.Background())

	if err := e.Start(ctx, 1, sink); err != nil {
		t.Fatal(err)
	}
	cancel()
	sink.until(t)
	waitInactive(t, e)
}

func TestEngine_SessionKeepsListeningAcrossRuns(t *testing.T) {
	e := New(fastConfig())
	s := session.New(e, session.Config{
		ID:      "mock-session",
		Metrics: metrics.NewMetrics(prometheus.NewRegistry()),
	})

	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	want := DefaultUtterances[0].Final + " " + DefaultUtterances[1].Final
	deadline := time.Now().Add(2 * time.Second)
	for !strings.HasPrefix(s.State().FinalText, want) {
		if time.Now().After(deadline) {
			t.Fatalf("transcript did not span engine runs: %+v", s.State())
		}
		time.Sleep(5 * time.Millisecond)
	}
	if st := s.State(); !st.IsListening || st.Generation < 2 {
		t.Errorf("expected a listening session on a later generation, got %+v", st)
	}

	if err := s.Stop(); err != nil {
		t.Fatal(err)
	}
	if s.State().IsListening {
		t.Error("expected stopped session")
	}
}

func waitInactive(t *testing.T, e *Engine) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for e.Active() {
		if time.Now().After(deadline) {
			t.Fatal("engine still active")
		}
		time.Sleep(time.Millisecond)
	}
}
