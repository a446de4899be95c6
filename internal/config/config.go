// Package config loads service configuration from defaults, an optional YAML
// file and environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full service configuration.
type Config struct {
	Service       ServiceConfig       `yaml:"service"`
	Recognition   RecognitionConfig   `yaml:"recognition"`
	Session       SessionConfig       `yaml:"session"`
	Journal       JournalConfig       `yaml:"journal"`
	Kafka         KafkaConfig         `yaml:"kafka"`
	Observability ObservabilityConfig `yaml:"observability"`
}

type ServiceConfig struct {
	Principal string `yaml:"principal"`
	GRPCPort  string `yaml:"grpc_port"`
	HTTPPort  string `yaml:"http_port"`
}

type RecognitionConfig struct {
	Provider       string `yaml:"provider"` // mock, google
	LanguageCode   string `yaml:"language_code"`
	SampleRateHz   int32  `yaml:"sample_rate_hz"`
	InterimResults bool   `yaml:"interim_results"`
	AudioEncoding  string `yaml:"audio_encoding"`
	// AudioSource is the WAV file the google provider streams.
	AudioSource string `yaml:"audio_source"`

	MockUtterancesPerRun int           `yaml:"mock_utterances_per_run"`
	MockInterval         time.Duration `yaml:"mock_interval"`
}

type SessionConfig struct {
	MaxRestarts   int           `yaml:"max_restarts"`
	RestartWindow time.Duration `yaml:"restart_window"`
}

type JournalConfig struct {
	Driver string `yaml:"driver"` // sqlite, memory
	Path   string `yaml:"path"`
}

type KafkaConfig struct {
	Enabled      bool     `yaml:"enabled"`
	Brokers      []string `yaml:"brokers"`
	TopicPartial string   `yaml:"topic_partial"`
	TopicFinal   string   `yaml:"topic_final"`
	TopicSession string   `yaml:"topic_session"`
	TopicEntries string   `yaml:"topic_entries"`
	Principal    string   `yaml:"principal"`
	RelayBuffer  int      `yaml:"relay_buffer"`
}

type ObservabilityConfig struct {
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	MetricsAddr string `yaml:"metrics_addr"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Service: ServiceConfig{
			Principal: "svc-voice-journal",
			GRPCPort:  "50051",
			HTTPPort:  "8080",
		},
		Recognition: RecognitionConfig{
			Provider:             "mock",
			LanguageCode:         "en-US",
			SampleRateHz:         8000,
			InterimResults:       true,
			AudioEncoding:        "LINEAR16",
			MockUtterancesPerRun: 2,
			MockInterval:         150 * time.Millisecond,
		},
		Session: SessionConfig{
			MaxRestarts:   3,
			RestartWindow: 10 * time.Second,
		},
		Journal: JournalConfig{
			Driver: "sqlite",
			Path:   "data/journal.db",
		},
		Kafka: KafkaConfig{
			Brokers:      []string{"localhost:9092"},
			TopicPartial: "dictation.transcript.partial",
			TopicFinal:   "dictation.transcript.final",
			TopicSession: "dictation.session.phase",
			TopicEntries: "journal.entries",
			RelayBuffer:  256,
		},
		Observability: ObservabilityConfig{
			LogLevel:    "info",
			LogFormat:   "json",
			MetricsAddr: ":9090",
		},
	}
}

// Load returns the defaults with environment overrides applied.
func Load() *Config {
	cfg := Default()
	applyEnv(cfg)
	return cfg
}

// LoadFile layers the YAML file at path (if non-empty) over the defaults,
// applies environment overrides and validates the result.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}
	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Service.Principal = envOrDefault("SERVICE_PRINCIPAL", cfg.Service.Principal)
	cfg.Service.GRPCPort = envOrDefault("GRPC_PORT", cfg.Service.GRPCPort)
	cfg.Service.HTTPPort = envOrDefault("HTTP_PORT", cfg.Service.HTTPPort)

	r := &cfg.Recognition
	r.Provider = envOrDefault("RECOGNITION_PROVIDER", r.Provider)
	r.LanguageCode = envOrDefault("RECOGNITION_LANGUAGE_CODE", r.LanguageCode)
	r.SampleRateHz = int32(envOrDefaultInt("RECOGNITION_SAMPLE_RATE_HZ", int(r.SampleRateHz)))
	r.InterimResults = envOrDefaultBool("RECOGNITION_INTERIM_RESULTS", r.InterimResults)
	r.AudioEncoding = envOrDefault("RECOGNITION_AUDIO_ENCODING", r.AudioEncoding)
	r.AudioSource = envOrDefault("RECOGNITION_AUDIO_SOURCE", r.AudioSource)
	r.MockUtterancesPerRun = envOrDefaultInt("MOCK_UTTERANCES_PER_RUN", r.MockUtterancesPerRun)
	r.MockInterval = envOrDefaultDuration("MOCK_INTERVAL", r.MockInterval)

	cfg.Session.MaxRestarts = envOrDefaultInt("SESSION_MAX_RESTARTS", cfg.Session.MaxRestarts)
	cfg.Session.RestartWindow = envOrDefaultDuration("SESSION_RESTART_WINDOW", cfg.Session.RestartWindow)

	cfg.Journal.Driver = envOrDefault("JOURNAL_DRIVER", cfg.Journal.Driver)
	cfg.Journal.Path = envOrDefault("JOURNAL_PATH", cfg.Journal.Path)

	k := &cfg.Kafka
	k.Enabled = envOrDefaultBool("KAFKA_ENABLED", k.Enabled)
	k.Brokers = envOrDefaultList("KAFKA_BROKERS", k.Brokers)
	k.TopicPartial = envOrDefault("KAFKA_TOPIC_PARTIAL", k.TopicPartial)
	k.TopicFinal = envOrDefault("KAFKA_TOPIC_FINAL", k.TopicFinal)
	k.TopicSession = envOrDefault("KAFKA_TOPIC_SESSION", k.TopicSession)
	k.TopicEntries = envOrDefault("KAFKA_TOPIC_ENTRIES", k.TopicEntries)
	k.RelayBuffer = envOrDefaultInt("KAFKA_RELAY_BUFFER", k.RelayBuffer)
	k.Principal = envOrDefault("KAFKA_PRINCIPAL", k.Principal)
	if k.Principal == "" {
		k.Principal = cfg.Service.Principal
	}

	o := &cfg.Observability
	o.LogLevel = envOrDefault("LOG_LEVEL", o.LogLevel)
	o.LogFormat = envOrDefault("LOG_FORMAT", o.LogFormat)
	o.MetricsAddr = envOrDefault("METRICS_ADDR", o.MetricsAddr)
}

// Validate reports configuration the service cannot start with.
func (c *Config) Validate() error {
	var errs []error
	switch c.Recognition.Provider {
	case "mock":
	case "google":
		if c.Recognition.AudioSource == "" {
			errs = append(errs, errors.New("recognition.audio_source is required for the google provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown recognition provider %q", c.Recognition.Provider))
	}
	switch c.Journal.Driver {
	case "memory":
	case "sqlite":
		if c.Journal.Path == "" {
			errs = append(errs, errors.New("journal.path is required for the sqlite driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown journal driver %q", c.Journal.Driver))
	}
	if c.Session.MaxRestarts <= 0 {
		errs = append(errs, errors.New("session.max_restarts must be positive"))
	}
	if c.Session.RestartWindow <= 0 {
		errs = append(errs, errors.New("session.restart_window must be positive"))
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("kafka.brokers is required when kafka is enabled"))
	}
	return errors.Join(errs...)
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func envOrDefaultBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func envOrDefaultList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
