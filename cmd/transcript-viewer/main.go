// Transcript Viewer - Real-time transcription display
// Consumes from Kafka topics and relays every event to WebSocket clients.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"voice-journal/internal/config"
	"voice-journal/internal/events"
	apihttp "voice-journal/internal/http"
	"voice-journal/internal/observability/logging"
)

func main() {
	defaults := config.Load()
	port := flag.String("port", "8081", "HTTP server port")
	brokers := flag.String("brokers", strings.Join(defaults.Kafka.Brokers, ","), "Kafka brokers (comma-separated)")
	topics := flag.String("topics", strings.Join([]string{
		defaults.Kafka.TopicPartial,
		defaults.Kafka.TopicFinal,
		defaults.Kafka.TopicSession,
		defaults.Kafka.TopicEntries,
	}, ","), "Kafka topics (comma-separated)")
	group := flag.String("group", "", "consumer group; empty reads partition 0 directly")
	since := flag.Duration("since", time.Hour, "replay window for partition reads")
	flag.Parse()

	logging.Init(logging.Config{
		Level:  defaults.Observability.LogLevel,
		Format: "console",
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := apihttp.NewHub(100)
	consumer := events.NewConsumer(events.ConsumerConfig{
		Brokers: strings.Split(*brokers, ","),
		Topics:  strings.Split(*topics, ","),
		GroupID: *group,
		Since:   *since,
	})

	mux := http.NewServeMux()
	mux.Handle("/ws", hub)
	server := &http.Server{Addr: ":" + *port, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return hub.Run(gctx) })
	g.Go(func() error {
		return consumer.Run(gctx, func(msg events.Message) {
			log.Debug().Str("topic", msg.Topic).Str("eventType", msg.EventType).Str("key", msg.Key).Msg("Received event")
			hub.Broadcast(msg)
		})
	})
	g.Go(func() error {
		log.Info().Str("port", *port).Str("brokers", *brokers).Str("topics", *topics).Msg("Transcript viewer starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal().Err(err).Msg("transcript viewer stopped")
	}
}
