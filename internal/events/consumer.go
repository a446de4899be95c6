package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"golang.org/x/sync/errgroup"

	"voice-journal/internal/observability/logging"
)

// Message is a decoded event read from Kafka.
type Message struct {
	Topic     string          `json:"topic"`
	Key       string          `json:"key"`
	EventType string          `json:"eventType"`
	Payload   json.RawMessage `json:"payload"`
	Time      time.Time       `json:"time"`
}

// DecodeMessage extracts the event type from the eventType header, falling
// back to the payload's eventType field.
func DecodeMessage(msg kafka.Message) (Message, error) {
	if !json.Valid(msg.Value) {
		return Message{}, fmt.Errorf("topic %s offset %d: payload is not JSON", msg.Topic, msg.Offset)
	}
	out := Message{
		Topic:   msg.Topic,
		Key:     string(msg.Key),
		Payload: json.RawMessage(msg.Value),
		Time:    msg.Time,
	}
	for _, h := range msg.Headers {
		if h.Key == "eventType" {
			out.EventType = string(h.Value)
		}
	}
	if out.EventType == "" {
		var envelope struct {
			EventType string `json:"eventType"`
		}
		_ = json.Unmarshal(msg.Value, &envelope)
		out.EventType = envelope.EventType
	}
	return out, nil
}

// ConsumerConfig configures a Consumer.
type ConsumerConfig struct {
	Brokers []string
	Topics  []string

	// GroupID selects consumer-group reads. Empty reads partition 0 of each
	// topic directly (works better through port-forward).
	GroupID string

	// Since rewinds partition readers. Zero starts from the latest offset.
	Since time.Duration
}

// Consumer reads events from several topics.
type Consumer struct {
	cfg ConsumerConfig
	log zerolog.Logger
}

// NewConsumer creates a consumer.
func NewConsumer(cfg ConsumerConfig) *Consumer {
	return &Consumer{cfg: cfg, log: logging.WithComponent("consumer")}
}

// Run reads every topic until ctx is done, calling handle for each decoded
// message. handle may be called concurrently for different topics.
func (c *Consumer) Run(ctx context.Context, handle func(Message)) error {
	if len(c.cfg.Brokers) == 0 || len(c.cfg.Topics) == 0 {
		return errors.New("consumer needs brokers and topics")
	}
	g, ctx := errgroup.WithContext(ctx)
	for _, topic := range c.cfg.Topics {
		topic := topic
		g.Go(func() error {
			return c.consume(ctx, topic, handle)
		})
	}
	return g.Wait()
}

func (c *Consumer) consume(ctx context.Context, topic string, handle func(Message)) error {
	rc := kafka.ReaderConfig{
		Brokers:  c.cfg.Brokers,
		Topic:    topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	}
	if c.cfg.GroupID != "" {
		rc.GroupID = c.cfg.GroupID
	} else {
		rc.Partition = 0
		rc.StartOffset = kafka.LastOffset
	}
	reader := kafka.NewReader(rc)
	defer reader.Close()

	if c.cfg.GroupID == "" && c.cfg.Since > 0 {
		if err := reader.SetOffsetAt(ctx, time.Now().Add(-c.cfg.Since)); err != nil {
			c.log.Warn().Err(err).Str("topic", topic).Msg("Failed to rewind reader")
		}
	}

	c.log.Info().Str("topic", topic).Str("groupId", c.cfg.GroupID).Msg("Consuming")

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.log.Warn().Err(err).Str("topic", topic).Msg("Kafka read error")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		decoded, err := DecodeMessage(msg)
		if err != nil {
			c.log.Warn().Err(err).Msg("Skipping undecodable message")
			continue
		}
		handle(decoded)
	}
}
