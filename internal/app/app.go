// Package app wires the dictation session, the journal and the event
// publisher into one process.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"voice-journal/internal/config"
	"voice-journal/internal/events"
	"voice-journal/internal/observability/logging"
	"voice-journal/internal/observability/metrics"
	"voice-journal/internal/service/dictation"
	"voice-journal/internal/service/journal"
	"voice-journal/internal/service/recognition"
	"voice-journal/internal/service/recognition/google"
	"voice-journal/internal/service/recognition/mock"
	"voice-journal/internal/service/session"
)

// Application holds process-wide state for the service.
type Application struct {
	StartupTime time.Time
	Logger      zerolog.Logger
	Cfg         *config.Config
	Metrics     *metrics.Metrics

	Publisher *events.Publisher
	Relay     *events.Relay
	Journal   *journal.Service
	Session   *session.Session
	Dictation *dictation.Service

	store   journal.Store
	engine  recognition.Engine
	closers []io.Closer
}

// Option customizes construction, mostly for tests.
type Option func(*options)

type options struct {
	engine  recognition.Engine
	store   journal.Store
	metrics *metrics.Metrics
}

// WithEngine replaces the configured recognition engine.
func WithEngine(e recognition.Engine) Option {
	return func(o *options) { o.engine = e }
}

// WithStore replaces the configured journal store.
func WithStore(s journal.Store) Option {
	return func(o *options) { o.store = s }
}

// WithMetrics registers metrics somewhere other than the default registry.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// New constructs a new Application from the provided configuration. ctx is
// handed to every recognition run and should live as long as the process.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Application, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.metrics == nil {
		o.metrics = metrics.DefaultMetrics
	}

	a := &Application{
		Cfg:     cfg,
		Metrics: o.metrics,
	}
	a.setupLogger()

	appLogger := a.Logger.With().
		Str("method", "New").
		Logger()

	store := o.store
	if store == nil {
		var err error
		if store, err = openStore(ctx, cfg.Journal); err != nil {
			return nil, err
		}
	}
	a.store = store

	a.Publisher = events.New(&events.Config{
		Enabled: cfg.Kafka.Enabled,
		Brokers: cfg.Kafka.Brokers,
		Topics: events.Topics{
			Partial: cfg.Kafka.TopicPartial,
			Final:   cfg.Kafka.TopicFinal,
			Session: cfg.Kafka.TopicSession,
			Entries: cfg.Kafka.TopicEntries,
		},
		Principal: cfg.Kafka.Principal,
		Metrics:   o.metrics,
	})
	a.Journal = journal.NewService(store, a.Publisher, o.metrics)

	engine := o.engine
	if engine == nil {
		var err error
		if engine, err = a.newEngine(ctx); err != nil {
			a.Shutdown()
			return nil, err
		}
	}
	a.engine = engine

	a.Session = session.New(engine, session.Config{
		Policy: session.RestartPolicy{
			MaxRestarts: cfg.Session.MaxRestarts,
			Window:      cfg.Session.RestartWindow,
		},
		Metrics: o.metrics,
		Context: ctx,
	})
	a.Relay = events.NewRelay(a.Publisher, cfg.Kafka.RelayBuffer, o.metrics)
	a.Session.AddListener(a.Relay)
	a.Dictation = dictation.New(a.Session, a.Journal)

	appLogger.Info().
		Str("sessionId", a.Session.ID()).
		Str("provider", cfg.Recognition.Provider).
		Str("journalDriver", cfg.Journal.Driver).
		Bool("kafkaEnabled", a.Publisher.Enabled()).
		Msg("Voice journal application created")
	return a, nil
}

// setupLogger configures zerolog for the service.
func (a *Application) setupLogger() {
	logging.Init(logging.Config{
		Level:      a.Cfg.Observability.LogLevel,
		Format:     a.Cfg.Observability.LogFormat,
		TimeFormat: time.RFC3339,
	})
	a.Logger = logging.WithComponent("application").With().
		Str("service", "voice-journal").
		Logger()

	a.Logger.Info().
		Str("logLevel", zerolog.GlobalLevel().String()).
		Str("logFormat", a.Cfg.Observability.LogFormat).
		Msg("Logger setup completed")
}

func openStore(ctx context.Context, cfg config.JournalConfig) (journal.Store, error) {
	switch cfg.Driver {
	case "memory":
		return journal.NewMemoryStore(), nil
	case "sqlite":
		store, err := journal.OpenSQLite(ctx, cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("open journal store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown journal driver %q", cfg.Driver)
	}
}

func (a *Application) newEngine(ctx context.Context) (recognition.Engine, error) {
	rc := a.Cfg.Recognition
	switch rc.Provider {
	case mock.Provider:
		mc := mock.DefaultConfig()
		mc.UtterancesPerRun = rc.MockUtterancesPerRun
		if rc.MockInterval > 0 {
			mc.Interval = rc.MockInterval
		}
		return mock.New(mc), nil
	case google.Provider:
		gc := google.DefaultConfig()
		gc.LanguageCode = rc.LanguageCode
		gc.SampleRateHz = rc.SampleRateHz
		gc.InterimResults = rc.InterimResults
		gc.AudioEncoding = rc.AudioEncoding
		source := google.WAVSource{Path: rc.AudioSource, SampleRateHz: rc.SampleRateHz}
		engine, err := google.New(ctx, gc, source)
		if err != nil {
			return nil, fmt.Errorf("create google recognition engine: %w", err)
		}
		a.closers = append(a.closers, engine)
		return engine, nil
	default:
		return nil, fmt.Errorf("unknown recognition provider %q", rc.Provider)
	}
}

// Start performs any startup work required before serving traffic.
func (a *Application) Start() error {
	startLogger := a.Logger.With().
		Str("method", "Start").
		Logger()

	a.StartupTime = time.Now().UTC()
	startLogger.Info().
		Time("startupTime", a.StartupTime).
		Msg("Voice journal service starting")

	return nil
}

// Shutdown stops listening and releases the engine, publisher and store.
// Queued relay events are flushed by the relay's own Run.
func (a *Application) Shutdown() error {
	shutdownLogger := a.Logger.With().
		Str("method", "Shutdown").
		Logger()

	shutdownLogger.Info().Msg("Voice journal service shutting down")

	var errs []error
	if a.Session != nil && a.Session.State().IsListening {
		if err := a.Session.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop session: %w", err))
		}
	}
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.Publisher != nil {
		if err := a.Publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close publisher: %w", err))
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close journal store: %w", err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		shutdownLogger.Error().Err(err).Msg("Shutdown completed with errors")
		return err
	}
	return nil
}
