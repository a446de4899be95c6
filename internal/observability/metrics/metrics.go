// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "voice_journal"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Session metrics
	SessionStarts     prometheus.Counter
	SessionRestarts   prometheus.Counter
	SessionErrors     *prometheus.CounterVec
	SessionPhase      *prometheus.GaugeVec
	StaleEvents       *prometheus.CounterVec
	StartLatency      prometheus.Histogram
	UtterancesDropped *prometheus.CounterVec

	// Transcript metrics
	TranscriptsInterim prometheus.Counter
	TranscriptsFinal   prometheus.Counter

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec
	RelayDropped        *prometheus.CounterVec

	// Journal metrics
	JournalOps *prometheus.CounterVec

	// RPC metrics
	RPCTotal      *prometheus.CounterVec
	RPCDuration   *prometheus.HistogramVec
	StreamsActive prometheus.Gauge
}

// DefaultMetrics is the global metrics instance registered with the default registry.
var DefaultMetrics = NewMetrics(prometheus.DefaultRegisterer)

// NewMetrics creates all metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		SessionStarts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_starts_total",
			Help:      "Total number of explicit listening starts",
		}),
		SessionRestarts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_restarts_total",
			Help:      "Total number of automatic engine restarts",
		}),
		SessionErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_errors_total",
			Help:      "Total number of errors that moved a session to the errored phase",
		}, []string{"kind"}),
		SessionPhase: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_phase",
			Help:      "1 for the phase each session is currently in",
		}, []string{"phase"}),
		StaleEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_events_total",
			Help:      "Engine events discarded because their generation was superseded or the session was not listening",
		}, []string{"kind"}),
		StartLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "engine_start_seconds",
			Help:      "Time spent in recognition engine Start calls",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}),
		UtterancesDropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "utterances_dropped_total",
			Help:      "Utterances abandoned before a final result",
		}, []string{"reason"}),

		TranscriptsInterim: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcripts_interim_total",
			Help:      "Total number of interim hypotheses applied",
		}),
		TranscriptsFinal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcripts_final_total",
			Help:      "Total number of final segments committed",
		}),

		KafkaPublishTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic", "event_type"}),
		KafkaPublishErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic", "event_type"}),
		KafkaPublishLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),
		RelayDropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_dropped_total",
			Help:      "Events dropped because the publish queue was full",
		}, []string{"event_type"}),

		JournalOps: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "journal_operations_total",
			Help:      "Journal entry operations by result",
		}, []string{"op", "result"}),

		RPCTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grpc_calls_total",
			Help:      "Total number of gRPC calls",
		}, []string{"method", "code"}),
		RPCDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "grpc_call_duration_seconds",
			Help:      "Duration of gRPC calls in seconds",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 30, 120},
		}, []string{"method"}),
		StreamsActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "grpc_streams_active",
			Help:      "Number of currently open gRPC streams",
		}),
	}
}

// RecordStart records an explicit start.
func (m *Metrics) RecordStart() {
	m.SessionStarts.Inc()
}

// RecordRestart records an automatic engine restart.
func (m *Metrics) RecordRestart() {
	m.SessionRestarts.Inc()
}

// RecordSessionError records a session entering the errored phase.
func (m *Metrics) RecordSessionError(kind string) {
	m.SessionErrors.WithLabelValues(kind).Inc()
}

// RecordPhaseChange moves the phase gauge from one phase to another.
func (m *Metrics) RecordPhaseChange(from, to string) {
	if from == to {
		return
	}
	if from != "" {
		m.SessionPhase.WithLabelValues(from).Dec()
	}
	m.SessionPhase.WithLabelValues(to).Inc()
}

// RecordStaleEvent records a discarded engine event.
func (m *Metrics) RecordStaleEvent(kind string) {
	m.StaleEvents.WithLabelValues(kind).Inc()
}

// RecordEngineStart records the duration of an engine Start call.
func (m *Metrics) RecordEngineStart(seconds float64) {
	m.StartLatency.Observe(seconds)
}

// RecordUtteranceDropped records an abandoned utterance.
func (m *Metrics) RecordUtteranceDropped(reason string) {
	m.UtterancesDropped.WithLabelValues(reason).Inc()
}

// RecordInterim records an applied interim hypothesis.
func (m *Metrics) RecordInterim() {
	m.TranscriptsInterim.Inc()
}

// RecordFinal records a committed final segment.
func (m *Metrics) RecordFinal() {
	m.TranscriptsFinal.Inc()
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}

// RecordRelayDropped records an event dropped by the publish relay.
func (m *Metrics) RecordRelayDropped(eventType string) {
	m.RelayDropped.WithLabelValues(eventType).Inc()
}

// RecordJournalOp records a journal operation outcome.
func (m *Metrics) RecordJournalOp(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.JournalOps.WithLabelValues(op, result).Inc()
}

// RecordRPC records a completed gRPC call.
func (m *Metrics) RecordRPC(method, code string, seconds float64) {
	m.RPCTotal.WithLabelValues(method, code).Inc()
	m.RPCDuration.WithLabelValues(method).Observe(seconds)
}

// RecordStreamOpen records a gRPC stream being opened.
func (m *Metrics) RecordStreamOpen() {
	m.StreamsActive.Inc()
}

// RecordStreamClosed records a finished gRPC stream.
func (m *Metrics) RecordStreamClosed(method, code string, seconds float64) {
	m.StreamsActive.Dec()
	m.RecordRPC(method, code, seconds)
}
