// Package config loads the layered YAML configuration for the agent
// execution core, with environment-variable expansion and post-load
// defaulting/validation.
package config

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the agent execution core.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Session       SessionConfig       `yaml:"session"`
	Memory        MemoryConfig        `yaml:"memory"`
	Intent        IntentConfig        `yaml:"intent"`
	Policy        PolicyConfig        `yaml:"policy"`
	Guards        GuardsConfig        `yaml:"guards"`
	Tools         ToolsConfig         `yaml:"tools"`
	Logging       LoggingConfig       `yaml:"logging"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig configures the local dev/test HTTP mux (internal/transporthttp).
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig points at the system of record (§5: "the system of record").
type DatabaseConfig struct {
	URL             string        `yaml:"url"`
	MaxConnections  int           `yaml:"max_connections"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// SessionConfig governs per-turn and advisory-lock behavior.
type SessionConfig struct {
	TurnTimeout   time.Duration `yaml:"turn_timeout"`
	ToolTimeout   time.Duration `yaml:"tool_timeout"`
	GuardTimeout  time.Duration `yaml:"guard_timeout"`
	LockLeaseTTL  time.Duration `yaml:"lock_lease_ttl"`
	HistoryWindow int           `yaml:"history_window"` // recent-message count pulled into turn context
}

// MemoryConfig configures the Memory Store's backend and embedding provider.
type MemoryConfig struct {
	Backend              string        `yaml:"backend"` // "postgres" | "local"
	EmbeddingsProvider   string        `yaml:"embeddings_provider"`
	EmbeddingDim         int           `yaml:"embedding_dim"`
	GeneralMinScore      float64       `yaml:"general_min_score"`
	TurnContextMinScore  float64       `yaml:"turn_context_min_score"`
	RetrieveTopK         int           `yaml:"retrieve_top_k"`
	EmbeddingCacheSize   int           `yaml:"embedding_cache_size"`
	DefaultRetentionDays int           `yaml:"default_retention_days"`
}

// IntentConfig selects and configures the LLM-backed Intent Parser.
type IntentConfig struct {
	Provider string        `yaml:"provider"` // "anthropic" | "openai"
	Model    string        `yaml:"model"`
	Timeout  time.Duration `yaml:"timeout"`
}

// PolicyConfig tunes the deterministic Policy Engine's thresholds.
type PolicyConfig struct {
	ConfirmationTTL time.Duration `yaml:"confirmation_ttl"`
}

// GuardsConfig tunes rate-limit and loop-breaker thresholds.
type GuardsConfig struct {
	MaxCallsPerMinute     int `yaml:"max_calls_per_minute"`
	MaxConsecutiveFailures int `yaml:"max_consecutive_failures"`
}

// ToolsConfig allows per-tool overrides of the Tool Runtime's default
// concurrency/timeout/retry behavior.
type ToolsConfig struct {
	DefaultTimeout time.Duration          `yaml:"default_timeout"`
	DefaultRetries int                    `yaml:"default_retries"`
	Overrides      map[string]ToolOverride `yaml:"overrides"`
}

// ToolOverride customizes runtime behavior for a single named tool.
type ToolOverride struct {
	Timeout time.Duration `yaml:"timeout"`
	Retries int           `yaml:"retries"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level     string `yaml:"level"`
	Format    string `yaml:"format"` // "json" | "text"
	AddSource bool   `yaml:"add_source"`
}

// ObservabilityConfig configures tracing/metrics emission.
type ObservabilityConfig struct {
	TracingEnabled    bool   `yaml:"tracing_enabled"`
	OTLPEndpoint      string `yaml:"otlp_endpoint"`
	MetricsEnabled    bool   `yaml:"metrics_enabled"`
	MetricsPort       int    `yaml:"metrics_port"`
}

// Load reads path as YAML, expands ${VAR} references against the process
// environment, applies defaults, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	decoder := yaml.NewDecoder(strings.NewReader(expanded))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("failed to parse config: expected single document")
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyEnvOverrides lets a small set of environment variables take
// precedence over file values without requiring ${VAR} interpolation.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("EMBEDDINGS_PROVIDER"); v != "" {
		cfg.Memory.EmbeddingsProvider = v
	}
	if v := os.Getenv("POLICY_MODE"); v != "" {
		// "strict" shortens the confirmation TTL; any other value is a no-op.
		if strings.EqualFold(v, "strict") {
			cfg.Policy.ConfirmationTTL = 60 * time.Second
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Database.MaxConnections == 0 {
		cfg.Database.MaxConnections = 25
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 5 * time.Minute
	}
	if cfg.Session.TurnTimeout == 0 {
		cfg.Session.TurnTimeout = 300 * time.Second
	}
	if cfg.Session.ToolTimeout == 0 {
		cfg.Session.ToolTimeout = 30 * time.Second
	}
	if cfg.Session.GuardTimeout == 0 {
		cfg.Session.GuardTimeout = 2 * time.Second
	}
	if cfg.Session.LockLeaseTTL == 0 {
		cfg.Session.LockLeaseTTL = 30 * time.Second
	}
	if cfg.Session.HistoryWindow == 0 {
		cfg.Session.HistoryWindow = 10
	}
	if cfg.Memory.Backend == "" {
		cfg.Memory.Backend = "local"
	}
	if cfg.Memory.EmbeddingsProvider == "" {
		cfg.Memory.EmbeddingsProvider = "local"
	}
	if cfg.Memory.EmbeddingDim == 0 {
		cfg.Memory.EmbeddingDim = 1536
	}
	if cfg.Memory.GeneralMinScore == 0 {
		cfg.Memory.GeneralMinScore = 0.70
	}
	if cfg.Memory.TurnContextMinScore == 0 {
		cfg.Memory.TurnContextMinScore = 0.65
	}
	if cfg.Memory.RetrieveTopK == 0 {
		cfg.Memory.RetrieveTopK = 5
	}
	if cfg.Memory.EmbeddingCacheSize == 0 {
		cfg.Memory.EmbeddingCacheSize = 512
	}
	if cfg.Intent.Provider == "" {
		cfg.Intent.Provider = "anthropic"
	}
	if cfg.Intent.Timeout == 0 {
		cfg.Intent.Timeout = 20 * time.Second
	}
	if cfg.Policy.ConfirmationTTL == 0 {
		cfg.Policy.ConfirmationTTL = 300 * time.Second
	}
	if cfg.Guards.MaxCallsPerMinute == 0 {
		cfg.Guards.MaxCallsPerMinute = 10
	}
	if cfg.Guards.MaxConsecutiveFailures == 0 {
		cfg.Guards.MaxConsecutiveFailures = 3
	}
	if cfg.Tools.DefaultTimeout == 0 {
		cfg.Tools.DefaultTimeout = 30 * time.Second
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Observability.MetricsPort == 0 {
		cfg.Observability.MetricsPort = 9090
	}
}

// ConfigValidationError reports a structurally invalid configuration.
type ConfigValidationError struct {
	Field   string
	Message string
}

func (e *ConfigValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

func validateConfig(cfg *Config) error {
	if cfg.Database.URL == "" {
		return &ConfigValidationError{Field: "database.url", Message: "DATABASE_URL is required"}
	}
	switch cfg.Memory.Backend {
	case "postgres", "local":
	default:
		return &ConfigValidationError{Field: "memory.backend", Message: "must be postgres or local"}
	}
	switch cfg.Memory.EmbeddingsProvider {
	case "openai", "local":
	default:
		return &ConfigValidationError{Field: "memory.embeddings_provider", Message: "must be openai or local"}
	}
	return nil
}
