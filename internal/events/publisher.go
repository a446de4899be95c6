// Package events publishes dictation and journal events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"voice-journal/internal/models"
	"voice-journal/internal/observability/metrics"
	"voice-journal/internal/schema"
)

// messageWriter is the subset of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher publishes events to one Kafka topic per event family.
type Publisher struct {
	writers   map[string]messageWriter
	topics    Topics
	principal string
	enabled   bool
	validator *schema.Validator
	metrics   *metrics.Metrics
}

// Topics names the destination of each event family.
type Topics struct {
	Partial string // interim hypotheses
	Final   string // committed segments
	Session string // phase changes
	Entries string // journal entry changes
}

func (t Topics) all() []string {
	return []string{t.Partial, t.Final, t.Session, t.Entries}
}

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers   []string
	Topics    Topics
	Principal string
	Enabled   bool
	Metrics   *metrics.Metrics
}

// New creates a Kafka event publisher. With Kafka disabled or no brokers the
// publisher validates and logs events only.
func New(cfg *Config) *Publisher {
	// Handle nil config case
	if cfg == nil {
		log.Info().Msg("Kafka disabled (nil config), using log-only mode")
		return &Publisher{
			validator: schema.New(),
			metrics:   metrics.DefaultMetrics,
		}
	}

	p := &Publisher{
		topics:    cfg.Topics,
		principal: cfg.Principal,
		validator: schema.New(),
		metrics:   cfg.Metrics,
	}
	if p.metrics == nil {
		p.metrics = metrics.DefaultMetrics
	}

	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		log.Info().Msg("Kafka disabled, using log-only mode")
		return p
	}

	// Longer dial timeout for DNS resolution in Kubernetes
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}
	transport := &kafka.Transport{
		Dial: dialer.DialFunc,
	}

	writers := make(map[string]messageWriter)
	for _, topic := range cfg.Topics.all() {
		if topic == "" || writers[topic] != nil {
			continue
		}
		writers[topic] = &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: 10 * time.Millisecond,
			WriteTimeout: 10 * time.Second,
			RequiredAcks: kafka.RequireOne,
			Transport:    transport,
		}
	}

	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topicPartial", cfg.Topics.Partial).
		Str("topicFinal", cfg.Topics.Final).
		Str("topicSession", cfg.Topics.Session).
		Str("topicEntries", cfg.Topics.Entries).
		Str("principal", cfg.Principal).
		Msg("Kafka publisher initialized")

	p.writers = writers
	p.enabled = true
	return p
}

// PublishInterim publishes an interim hypothesis keyed by session.
func (p *Publisher) PublishInterim(ctx context.Context, ev models.TranscriptInterim) error {
	return p.publish(ctx, p.topics.Partial, ev.EventType, ev.SessionID, ev)
}

// PublishFinal publishes a committed segment keyed by session.
func (p *Publisher) PublishFinal(ctx context.Context, ev models.TranscriptFinal) error {
	return p.publish(ctx, p.topics.Final, ev.EventType, ev.SessionID, ev)
}

// PublishPhase publishes a session phase change keyed by session.
func (p *Publisher) PublishPhase(ctx context.Context, ev models.SessionPhaseChanged) error {
	return p.publish(ctx, p.topics.Session, ev.EventType, ev.SessionID, ev)
}

// PublishEntry publishes a journal entry change keyed by entry.
func (p *Publisher) PublishEntry(ctx context.Context, ev models.EntryChanged) error {
	return p.publish(ctx, p.topics.Entries, ev.EventType, ev.EntryID, ev)
}

func (p *Publisher) publish(ctx context.Context, topic, eventType, key string, event any) error {
	start := time.Now()

	if err := p.validator.Validate(event); err != nil {
		log.Error().Err(err).Str("topic", topic).Str("key", key).Msg("Rejected invalid event")
		p.metrics.RecordKafkaPublish(topic, eventType, err, time.Since(start).Seconds())
		return err
	}

	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("Failed to marshal event")
		return err
	}

	log.Debug().
		Str("principal", p.principal).
		Str("topic", topic).
		Str("key", key).
		RawJSON("payload", payload).
		Msg("Publishing event")

	writer := p.writers[topic]
	// If Kafka is disabled, just log
	if !p.enabled || writer == nil {
		p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(eventType)},
			{Key: "principal", Value: []byte(p.principal)},
		},
	}

	if err := writer.WriteMessages(ctx, msg); err != nil {
		log.Error().
			Err(err).
			Str("topic", topic).
			Str("key", key).
			Msg("Failed to write to Kafka")
		p.metrics.RecordKafkaPublish(topic, eventType, err, time.Since(start).Seconds())
		return err
	}

	p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
	return nil
}

// Enabled reports whether events are written to Kafka.
func (p *Publisher) Enabled() bool { return p.enabled }

// Close closes all Kafka writers.
func (p *Publisher) Close() error {
	var err error
	for topic, w := range p.writers {
		if e := w.Close(); e != nil {
			log.Error().Err(e).Str("topic", topic).Msg("Error closing Kafka writer")
			err = e
		}
	}
	return err
}
