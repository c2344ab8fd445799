// Package config loads application configuration with multi-source
// priority.
//
// Sources, highest to lowest:
//  1. CONVERSE_* environment variables (runtime override)
//  2. Config file (./config.yaml or ~/.converse/config.yaml)
//  3. Defaults
//
// Sensitive values (the database password inside the DSN, API keys)
// are never logged. Validation is fail-fast with sentinel errors so
// callers can check with errors.Is().
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var (
	// ErrInvalidAddr indicates the server listen address is invalid.
	ErrInvalidAddr = errors.New("invalid server address")

	// ErrInvalidModelName indicates the model name is empty.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidEmbedderModel indicates the embedder model is empty
	// while a vector store is configured.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidSessionTTL indicates a non-positive session TTL.
	ErrInvalidSessionTTL = errors.New("invalid session TTL")

	// ErrInvalidMaxSessions indicates a non-positive session cap.
	ErrInvalidMaxSessions = errors.New("invalid max sessions")

	// ErrInvalidMaxHistory indicates a history cap too small to hold a
	// system message plus one exchange.
	ErrInvalidMaxHistory = errors.New("invalid max history")

	// ErrInvalidRateLimit indicates a non-positive per-minute limit.
	ErrInvalidRateLimit = errors.New("invalid rate limit")

	// ErrInvalidChunking indicates overlap >= segment size.
	ErrInvalidChunking = errors.New("invalid chunking parameters")
)

// Config stores application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	AI         AIConfig         `mapstructure:"ai"`
	Postgres   PostgresConfig   `mapstructure:"postgres"`
	Session    SessionConfig    `mapstructure:"session"`
	RAG        RAGConfig        `mapstructure:"rag"`
	RateLimit  RateLimitConfig  `mapstructure:"ratelimit"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
	LogLevel   string           `mapstructure:"log_level"`
	LogJSON    bool             `mapstructure:"log_json"`
	Language   string           `mapstructure:"language"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`

	// TrustProxy enables X-Forwarded-For / X-Real-IP client
	// identification. Leave false unless behind a reverse proxy.
	TrustProxy bool `mapstructure:"trust_proxy"`

	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// AIConfig selects the model provider.
// GEMINI_API_KEY is read directly by Genkit, not via viper.
type AIConfig struct {
	ModelName     string `mapstructure:"model_name"`
	EmbedderModel string `mapstructure:"embedder_model"`
}

// PostgresConfig holds the vector-store connection. An empty DSN
// disables the knowledge subsystem.
type PostgresConfig struct {
	DSN string `mapstructure:"dsn"`
}

// SessionConfig tunes the in-memory session store.
type SessionConfig struct {
	MaxHistory    int           `mapstructure:"max_history"`
	TTL           time.Duration `mapstructure:"ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	MaxSessions   int           `mapstructure:"max_sessions"`
}

// RAGConfig tunes chunking and retrieval.
type RAGConfig struct {
	SegmentSize int     `mapstructure:"segment_size"`
	Overlap     int     `mapstructure:"overlap"`
	TopK        int     `mapstructure:"top_k"`
	MinScore    float64 `mapstructure:"min_score"`
}

// RateLimitConfig tunes request admission.
type RateLimitConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// PerIP keys buckets by client address in addition to route.
	// Disabled, each route shares one global bucket.
	PerIP bool `mapstructure:"per_ip"`

	ChatPerMinute   int `mapstructure:"chat_per_minute"`
	StreamPerMinute int `mapstructure:"stream_per_minute"`
}

// TracingConfig controls the OTLP trace exporter. Tracing stays off
// while Endpoint is empty.
type TracingConfig struct {
	Endpoint    string `mapstructure:"endpoint"`
	ServiceName string `mapstructure:"service_name"`
	Environment string `mapstructure:"environment"`
}

// Load reads configuration from defaults, config file, and CONVERSE_*
// environment variables, then validates it.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".converse"))
	}

	setDefaults(v)

	v.SetEnvPrefix("CONVERSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// No config file is fine, defaults plus env apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.trust_proxy", false)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "5m") // streaming responses
	v.SetDefault("server.shutdown_timeout", "15s")

	v.SetDefault("ai.model_name", "googleai/gemini-2.0-flash")
	v.SetDefault("ai.embedder_model", "text-embedding-004")

	v.SetDefault("postgres.dsn", "")

	v.SetDefault("session.max_history", 20)
	v.SetDefault("session.ttl", "30m")
	v.SetDefault("session.sweep_interval", "5m")
	v.SetDefault("session.max_sessions", 1000)

	v.SetDefault("rag.segment_size", 500)
	v.SetDefault("rag.overlap", 50)
	v.SetDefault("rag.top_k", 3)
	v.SetDefault("rag.min_score", 0.3)

	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.per_ip", true)
	v.SetDefault("ratelimit.chat_per_minute", 30)
	v.SetDefault("ratelimit.stream_per_minute", 20)

	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.service_name", "converse")
	v.SetDefault("tracing.environment", "dev")

	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", true)
	v.SetDefault("language", "en")
}

// Validate checks value ranges. Fail-fast at startup.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return ErrInvalidAddr
	}
	if c.AI.ModelName == "" {
		return ErrInvalidModelName
	}
	if c.Postgres.DSN != "" && c.AI.EmbedderModel == "" {
		return fmt.Errorf("%w: required when postgres.dsn is set", ErrInvalidEmbedderModel)
	}
	if c.Session.TTL <= 0 || c.Session.SweepInterval <= 0 {
		return ErrInvalidSessionTTL
	}
	if c.Session.MaxSessions <= 0 {
		return ErrInvalidMaxSessions
	}
	if c.Session.MaxHistory < 3 {
		return fmt.Errorf("%w: need room for system message plus one exchange, got %d", ErrInvalidMaxHistory, c.Session.MaxHistory)
	}
	if c.RateLimit.Enabled && (c.RateLimit.ChatPerMinute <= 0 || c.RateLimit.StreamPerMinute <= 0) {
		return ErrInvalidRateLimit
	}
	if c.RAG.SegmentSize <= 0 || c.RAG.Overlap < 0 || c.RAG.Overlap >= c.RAG.SegmentSize {
		return fmt.Errorf("%w: segment_size=%d overlap=%d", ErrInvalidChunking, c.RAG.SegmentSize, c.RAG.Overlap)
	}
	return nil
}
