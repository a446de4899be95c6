package dictation

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"voice-journal/internal/observability/metrics"
	"voice-journal/internal/service/journal"
	"voice-journal/internal/service/recognition"
	"voice-journal/internal/service/session"
)

type idleEngine struct{}

func (idleEngine) Start(context.Context, uint64, recognition.Sink) error { return nil }
func (idleEngine) Stop() error { return nil }

func newFixture(t *testing.T) (*session.Session, *journal.Service, *Service) {
	t.Helper()
	m := metrics.NewMetrics(prometheus.NewRegistry())
	sess := session.New(idleEngine{}, session.Config{ID: "dictation-test", Metrics: m})
	j := journal.NewService(journal.NewMemoryStore(), nil, m)
	return sess, j, New(sess, j)
}

func dictate(t *testing.T, sess *session.Session, finals ...string) {
	t.Helper()
	if err := sess.Start(); err != nil {
		t.Fatal(err)
	}
	gen := sess.State().Generation
	for _, f := range finals {
		sess.Deliver(recognition.Final(gen, f, 1))
	}
}

func TestSave(t *testing.T) {
	sess, j, svc := newFixture(t)
	ctx := context.Background()

	dictate(t, sess, "Hello there.", "How are you?")
	_ = sess.Stop()

	entry, err := svc.Save(ctx)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if entry.Content != "Hello there. How are you?" {
		t.Errorf("Content = %q", entry.Content)
	}
	if got := sess.State().FinalText; got != "" {
		t.Errorf("transcript should be reset after save, got %q", got)
	}

	entries, _ := j.List(ctx)
	if len(entries) != 1 || entries[0].ID != entry.ID {
		t.Errorf("List() = %+v", entries)
	}
}

func TestSave_WhileListening(t *testing.T) {
	sess, j, svc := newFixture(t)
	dictate(t, sess, "in progress")

	if _, err := svc.Save(context.Background()); !errors.Is(err, session.ErrInvalidTransition) {
		t.Fatalf("Save() = %v, want ErrInvalidTransition", err)
	}
	if sess.State().FinalText != "in progress" {
		t.Error("rejected save must not touch the transcript")
	}
	if entries, _ := j.List(context.Background()); len(entries) != 0 {
		t.Errorf("no entry expected, got %d", len(entries))
	}
}

func TestSave_NothingToSave(t *testing.T) {
	sess, _, svc := newFixture(t)
	dictate(t, sess)
	gen := sess.State().Generation
	sess.Deliver(recognition.Interim(gen, "unfinished"))
	_ = sess.Stop()

	if _, err := svc.Save(context.Background()); !errors.Is(err, journal.ErrNothingToSave) {
		t.Errorf("Save() = %v, want ErrNothingToSave", err)
	}
}

func TestSave_FromErroredSession(t *testing.T) {
	sess, _, svc := newFixture(t)
	dictate(t, sess, "kept after failure.")
	sess.Deliver(recognition.Failure(sess.State().Generation, recognition.PermissionDenied))

	entry, err := svc.Save(context.Background())
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if entry.Content != "kept after failure." {
		t.Errorf("Content = %q", entry.Content)
	}
	if st := sess.State(); st.Phase != session.PhaseIdle || st.Error != "" {
		t.Errorf("save should reset the errored session, got %+v", st)
	}
}

// hookedCreator calls during before storing the entry.
type hookedCreator struct {
	journal *journal.Service
	during  func()
}

func (h *hookedCreator) CreateFromTranscript(ctx context.Context, text string) (journal.Entry, error) {
	if h.during != nil {
		h.during()
	}
	return h.journal.CreateFromTranscript(ctx, text)
}

func TestSave_KeepsDictationAddedDuringSave(t *testing.T) {
	sess, j, _ := newFixture(t)
	dictate(t, sess, "first.")
	_ = sess.Stop()

	creator := &hookedCreator{journal: j, during: func() {
		dictate(t, sess, "second.")
		_ = sess.Stop()
	}}
	svc := New(sess, creator)

	entry, err := svc.Save(context.Background())
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if entry.Content != "first." {
		t.Errorf("Content = %q, want %q", entry.Content, "first.")
	}
	if got := sess.State().FinalText; got != "first. second." {
		t.Errorf("unsaved dictation lost: FinalText = %q", got)
	}
}

func TestSave_ListeningAgainDuringSave(t *testing.T) {
	sess, j, _ := newFixture(t)
	dictate(t, sess, "first.")
	_ = sess.Stop()

	svc := New(sess, &hookedCreator{journal: j, during: func() {
		dictate(t, sess, "second.")
	}})

	if _, err := svc.Save(context.Background()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	st := sess.State()
	if !st.IsListening || st.FinalText != "first. second." {
		t.Errorf("session changed by save: %+v", st)
	}
}

func TestSave_ConcurrentSavesStoreOnce(t *testing.T) {
	sess, j, svc := newFixture(t)
	dictate(t, sess, "only once.")
	_ = sess.Stop()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = svc.Save(context.Background())
		}()
	}
	wg.Wait()

	var saved, empty int
	for _, err := range errs {
		switch {
		case err == nil:
			saved++
		case errors.Is(err, journal.ErrNothingToSave):
			empty++
		default:
			t.Errorf("Save() error = %v", err)
		}
	}
	if saved != 1 || empty != 1 {
		t.Errorf("saved=%d empty=%d, want one of each", saved, empty)
	}
	if entries, _ := j.List(context.Background()); len(entries) != 1 {
		t.Errorf("expected one entry, got %d", len(entries))
	}
}
