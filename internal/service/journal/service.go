package journal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"voice-journal/internal/models"
	"voice-journal/internal/observability/logging"
	"voice-journal/internal/observability/metrics"
)

// EntryPublisher receives entry change events. Publishing is best effort.
type EntryPublisher interface {
	PublishEntry(ctx context.Context, ev models.EntryChanged) error
}

// Service implements entry creation, editing and removal on top of a Store.
type Service struct {
	store     Store
	publisher EntryPublisher
	metrics   *metrics.Metrics
	log       zerolog.Logger

	// Location is used for default titles.
	Location *time.Location

	now   func() time.Time
	newID func() string
}

// NewService creates a journal service. publisher may be nil.
func NewService(store Store, publisher EntryPublisher, m *metrics.Metrics) *Service {
	if m == nil {
		m = metrics.DefaultMetrics
	}
	return &Service{
		store:     store,
		publisher: publisher,
		metrics:   m,
		log:       logging.WithComponent("journal"),
		Location:  time.Local,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// CreateFromTranscript saves text as a new entry titled with today's date.
func (s *Service) CreateFromTranscript(ctx context.Context, text string) (Entry, error) {
	content := strings.TrimSpace(text)
	if content == "" {
		return Entry{}, ErrNothingToSave
	}

	now := s.now()
	e := Entry{
		ID:        s.newID(),
		Title:     LongDate(now.In(s.Location)),
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := s.store.Create(ctx, e)
	s.metrics.RecordJournalOp("create", err)
	if err != nil {
		return Entry{}, fmt.Errorf("create entry: %w", err)
	}

	log := logging.WithEntry(e.ID)
	log.Info().Int("chars", len(content)).Msg("Entry created")
	s.publish(ctx, models.EventEntryCreated, e)
	return e, nil
}

// Update replaces title and content. A blank title falls back to the
// creation date.
func (s *Service) Update(ctx context.Context, id, title, content string) (Entry, error) {
	e, err := s.store.Get(ctx, id)
	if err != nil {
		s.metrics.RecordJournalOp("update", err)
		return Entry{}, fmt.Errorf("update entry %s: %w", id, err)
	}

	e.Title = strings.TrimSpace(title)
	if e.Title == "" {
		e.Title = LongDate(e.CreatedAt.In(s.Location))
	}
	e.Content = strings.TrimSpace(content)
	e.UpdatedAt = s.now()

	err = s.store.Update(ctx, e)
	s.metrics.RecordJournalOp("update", err)
	if err != nil {
		return Entry{}, fmt.Errorf("update entry %s: %w", id, err)
	}

	log := logging.WithEntry(e.ID)
	log.Info().Msg("Entry updated")
	s.publish(ctx, models.EventEntryUpdated, e)
	return e, nil
}

// Delete removes an entry.
func (s *Service) Delete(ctx context.Context, id string) error {
	err := s.store.Delete(ctx, id)
	s.metrics.RecordJournalOp("delete", err)
	if err != nil {
		return fmt.Errorf("delete entry %s: %w", id, err)
	}

	log := logging.WithEntry(id)
	log.Info().Msg("Entry deleted")
	s.publish(ctx, models.EventEntryDeleted, Entry{ID: id, UpdatedAt: s.now()})
	return nil
}

// Get returns one entry.
func (s *Service) Get(ctx context.Context, id string) (Entry, error) {
	e, err := s.store.Get(ctx, id)
	if err != nil {
		return Entry{}, fmt.Errorf("get entry %s: %w", id, err)
	}
	return e, nil
}

// List returns all entries, newest first.
func (s *Service) List(ctx context.Context) ([]Entry, error) {
	entries, err := s.store.List(ctx)
	s.metrics.RecordJournalOp("list", err)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return entries, nil
}

func (s *Service) publish(ctx context.Context, eventType string, e Entry) {
	if s.publisher == nil {
		return
	}
	ev := models.EntryChanged{
		EventType: eventType,
		EntryID:   e.ID,
		Title:     e.Title,
		Content:   e.Content,
		UpdatedAt: e.UpdatedAt.UnixMilli(),
		Timestamp: s.now().UnixMilli(),
	}
	if !e.CreatedAt.IsZero() {
		ev.CreatedAt = e.CreatedAt.UnixMilli()
	}
	if err := s.publisher.PublishEntry(ctx, ev); err != nil {
		s.log.Warn().Err(err).Str("entryId", e.ID).Str("eventType", eventType).Msg("Failed to publish entry event")
	}
}
