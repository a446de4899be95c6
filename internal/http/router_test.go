package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"voice-journal/internal/service/journal"
	"voice-journal/internal/service/session"
)

type fakeSession struct {
	mu       sync.Mutex
	state    session.State
	err      error
	commands []string
	updates  chan session.State
}

func newFakeSession() *fakeSession {
	return &fakeSession{updates: make(chan session.State, 8)}
}

func (f *fakeSession) run(name string, apply func()) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append(f.commands, name)
	if f.err != nil {
		return f.err
	}
	apply()
	return nil
}

func (f *fakeSession) Start() error {
	return f.run("start", func() { f.state.IsListening = true; f.state.Phase = session.PhaseListening })
}

func (f *fakeSession) Stop() error {
	return f.run("stop", func() { f.state.IsListening = false; f.state.Phase = session.PhaseIdle })
}

func (f *fakeSession) Reset() error {
	return f.run("reset", func() { f.state = session.State{} })
}

func (f *fakeSession) State() session.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeSession) Subscribe() (<-chan session.State, func()) {
	f.updates <- f.State()
	return f.updates, func() {}
}

func (f *fakeSession) Commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.commands...)
}

type fakeSaver struct {
	entry journal.Entry
	err   error
}

func (f *fakeSaver) Save(context.Context) (journal.Entry, error) { return f.entry, f.err }

func newTestAPI() (*API, *fakeSession, *fakeSaver, *journal.Service) {
	sess := newFakeSession()
	saver := &fakeSaver{}
	j := journal.NewService(journal.NewMemoryStore(), nil, nil)
	return &API{Session: sess, Saver: saver, Journal: j, Log: zerolog.Nop()}, sess, saver, j
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestHealthEndpoints(t *testing.T) {
	api, _, _, _ := newTestAPI()
	h := Routes(api)

	for _, path := range []string{"/v1/liveness", "/v1/readiness"} {
		if rec := do(t, h, http.MethodGet, path, ""); rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d", path, rec.Code)
		}
	}
}

func TestSessionCommands(t *testing.T) {
	api, sess, _, _ := newTestAPI()
	h := Routes(api)

	rec := do(t, h, http.MethodPost, "/v1/session/start", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("start = %d: %s", rec.Code, rec.Body)
	}
	st := decodeBody[session.State](t, rec)
	if !st.IsListening || st.Phase != session.PhaseListening {
		t.Errorf("expected listening state, got %+v", st)
	}

	rec = do(t, h, http.MethodGet, "/v1/session", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"phase":"listening"`) {
		t.Errorf("GET /v1/session = %d %s", rec.Code, rec.Body)
	}

	if rec := do(t, h, http.MethodPost, "/v1/session/stop", ""); rec.Code != http.StatusOK {
		t.Errorf("stop = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/v1/session/reset", ""); rec.Code != http.StatusOK {
		t.Errorf("reset = %d", rec.Code)
	}

	want := []string{"start", "stop", "reset"}
	if got := sess.Commands(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("commands = %v, want %v", got, want)
	}
}

func TestSessionCommand_Errors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid transition", fmt.Errorf("%w: reset while listening", session.ErrInvalidTransition), http.StatusConflict},
		{"engine failure", &session.EngineFailure{Generation: 1}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api, sess, _, _ := newTestAPI()
			sess.err = tt.err

			rec := do(t, Routes(api), http.MethodPost, "/v1/session/reset", "")
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
			if body := decodeBody[ErrorResponse](t, rec); body.Error != tt.err.Error() {
				t.Errorf("error body = %q", body.Error)
			}
		})
	}
}

func TestEntries(t *testing.T) {
	api, _, saver, j := newTestAPI()
	h := Routes(api)
	ctx := context.Background()

	rec := do(t, h, http.MethodGet, "/v1/entries", "")
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("empty list = %d %q", rec.Code, rec.Body)
	}

	saved, err := j.CreateFromTranscript(ctx, "Walked the dog.")
	if err != nil {
		t.Fatal(err)
	}
	saver.entry = saved

	rec = do(t, h, http.MethodPost, "/v1/entries", "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("save = %d", rec.Code)
	}
	if got := decodeBody[journal.Entry](t, rec); got.ID != saved.ID {
		t.Errorf("saved id = %s, want %s", got.ID, saved.ID)
	}

	rec = do(t, h, http.MethodGet, "/v1/entries/"+saved.ID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get = %d", rec.Code)
	}

	rec = do(t, h, http.MethodPut, "/v1/entries/"+saved.ID, `{"title":"Dog","content":"Walked the dog twice."}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("update = %d %s", rec.Code, rec.Body)
	}
	if got := decodeBody[journal.Entry](t, rec); got.Title != "Dog" || got.Content != "Walked the dog twice." {
		t.Errorf("updated entry = %+v", got)
	}

	rec = do(t, h, http.MethodGet, "/v1/entries", "")
	if got := decodeBody[[]journal.Entry](t, rec); len(got) != 1 {
		t.Errorf("list = %+v", got)
	}

	if rec := do(t, h, http.MethodDelete, "/v1/entries/"+saved.ID, ""); rec.Code != http.StatusNoContent {
		t.Errorf("delete = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/v1/entries/"+saved.ID, ""); rec.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d", rec.Code)
	}
}

func TestEntries_Errors(t *testing.T) {
	api, _, saver, _ := newTestAPI()
	h := Routes(api)

	tests := []struct {
		name   string
		setup  func()
		method string
		path   string
		body   string
		want   int
	}{
		{"save nothing", func() { saver.err = journal.ErrNothingToSave }, http.MethodPost, "/v1/entries", "", http.StatusUnprocessableEntity},
		{"save while listening", func() { saver.err = session.ErrInvalidTransition }, http.MethodPost, "/v1/entries", "", http.StatusConflict},
		{"save store failure", func() { saver.err = errors.New("disk full") }, http.MethodPost, "/v1/entries", "", http.StatusInternalServerError},
		{"get missing", func() {}, http.MethodGet, "/v1/entries/nope", "", http.StatusNotFound},
		{"update missing", func() {}, http.MethodPut, "/v1/entries/nope", `{"title":"x","content":"y"}`, http.StatusNotFound},
		{"update malformed", func() {}, http.MethodPut, "/v1/entries/nope", `{"title":`, http.StatusBadRequest},
		{"update unknown field", func() {}, http.MethodPut, "/v1/entries/nope", `{"mood":"happy"}`, http.StatusBadRequest},
		{"delete missing", func() {}, http.MethodDelete, "/v1/entries/nope", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup()
			rec := do(t, h, tt.method, tt.path, tt.body)
			if rec.Code != tt.want {
				t.Errorf("%s %s = %d, want %d (%s)", tt.method, tt.path, rec.Code, tt.want, rec.Body)
			}
			if !strings.Contains(rec.Header().Get("Content-Type"), "application/json") {
				t.Errorf("expected JSON error body, got %q", rec.Header().Get("Content-Type"))
			}
		})
	}
}

func wsURL(srv *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + path
}

func readJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(v); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
}

func TestStreamState(t *testing.T) {
	api, sess, _, _ := newTestAPI()
	srv := httptest.NewServer(Routes(api))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/v1/session/ws"), nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	var st session.State
	readJSON(t, conn, &st)
	if st.Phase != session.PhaseIdle {
		t.Errorf("initial phase = %v", st.Phase)
	}

	sess.updates <- session.State{IsListening: true, Phase: session.PhaseListening, InterimText: "hello"}
	readJSON(t, conn, &st)
	if st.InterimText != "hello" {
		t.Errorf("update = %+v", st)
	}

	if err := conn.WriteJSON(wsCommand{Command: "start"}); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for len(sess.Commands()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("start command not applied")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := conn.WriteJSON(wsCommand{Command: "dance"}); err != nil {
		t.Fatal(err)
	}
	var reply ErrorResponse
	readJSON(t, conn, &reply)
	if !strings.Contains(reply.Error, "dance") {
		t.Errorf("expected unknown command error, got %q", reply.Error)
	}
}

func TestHub_Broadcast(t *testing.T) {
	hub := NewHub(8)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hub.Run(ctx) }()

	srv := httptest.NewServer(hub)
	defer srv.Close()

	var conns []*websocket.Conn
	for i := 0; i < 2; i++ {
		conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/"), nil)
		if err != nil {
			t.Fatalf("Dial() error = %v", err)
		}
		defer conn.Close()
		conns = append(conns, conn)
	}

	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients() != 2 {
		if time.Now().After(deadline) {
			t.Fatalf("expected 2 clients, got %d", hub.Clients())
		}
		time.Sleep(5 * time.Millisecond)
	}

	if !hub.Broadcast(map[string]string{"text": "hi"}) {
		t.Fatal("Broadcast() = false")
	}
	for _, conn := range conns {
		var msg map[string]string
		readJSON(t, conn, &msg)
		if msg["text"] != "hi" {
			t.Errorf("message = %v", msg)
		}
	}

	conns[0].Close()
	deadline = time.Now().Add(2 * time.Second)
	for hub.Clients() != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("expected 1 client after disconnect, got %d", hub.Clients())
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	<-done
	if hub.Broadcast("late") {
		t.Error("Broadcast() after stop should report false")
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{session.ErrInvalidTransition, http.StatusConflict},
		{fmt.Errorf("get entry: %w", journal.ErrNotFound), http.StatusNotFound},
		{journal.ErrNothingToSave, http.StatusUnprocessableEntity},
		{fmt.Errorf("%w: eof", errBadRequest), http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := StatusFor(tt.err); got != tt.want {
			t.Errorf("StatusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
