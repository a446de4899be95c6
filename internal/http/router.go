// Package http exposes the dictation session and the journal over REST, and
// session state over WebSocket.
package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"voice-journal/internal/app"
	"voice-journal/internal/observability/logging"
	"voice-journal/internal/service/journal"
	"voice-journal/internal/service/session"
)

// SessionController is the session surface the API drives.
type SessionController interface {
	Start() error
	Stop() error
	Reset() error
	State() session.State
	Subscribe() (<-chan session.State, func())
}

// EntrySaver saves the session transcript as a journal entry.
type EntrySaver interface {
	Save(ctx context.Context) (journal.Entry, error)
}

// Journal manages saved entries.
type Journal interface {
	Get(ctx context.Context, id string) (journal.Entry, error)
	List(ctx context.Context) ([]journal.Entry, error)
	Update(ctx context.Context, id, title, content string) (journal.Entry, error)
	Delete(ctx context.Context, id string) error
}

// API holds the handler dependencies.
type API struct {
	Session SessionController
	Saver   EntrySaver
	Journal Journal
	Log     zerolog.Logger
}

// NewRouter constructs the HTTP router for the service.
func NewRouter(application *app.Application) http.Handler {
	return Routes(&API{
		Session: application.Session,
		Saver:   application.Dictation,
		Journal: application.Journal,
		Log:     logging.WithComponent("http"),
	})
}

// Routes mounts the API on a chi router.
func Routes(api *API) http.Handler {
	r := chi.NewRouter()

	// Basic middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(Logger(api.Log))
	r.Use(middleware.Recoverer)

	// Health endpoints
	r.Get("/v1/liveness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/v1/readiness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	// API routes
	r.Route("/v1", func(r chi.Router) {
		r.Route("/session", func(r chi.Router) {
			r.Get("/", api.getState)
			r.Post("/start", api.command(SessionController.Start))
			r.Post("/stop", api.command(SessionController.Stop))
			r.Post("/reset", api.command(SessionController.Reset))
			r.Get("/ws", api.streamState)
		})
		r.Route("/entries", func(r chi.Router) {
			r.Get("/", api.listEntries)
			r.Post("/", api.saveEntry)
			r.Get("/{id}", api.getEntry)
			r.Put("/{id}", api.updateEntry)
			r.Delete("/{id}", api.deleteEntry)
		})
	})

	return r
}
