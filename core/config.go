package core

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default configuration values
const (
	DefaultBaseURL   = "https://www.stat-search.boj.or.jp/api/v1"
	DefaultUserAgent = "bojstat/" + Version
)

// Config holds all configuration options for the client.
// It supports three-layer configuration priority:
//  1. Default values (lowest priority)
//  2. Environment variables (medium priority)
//  3. Functional options (highest priority)
//
// Example usage:
//
//	cfg, err := core.NewConfig(
//	    core.WithBaseURL("https://www.stat-search.boj.or.jp/api/v1"),
//	    core.WithRetryMaxAttempts(3),
//	)
type Config struct {
	BaseURL   string `json:"base_url" yaml:"base_url"`
	UserAgent string `json:"user_agent" yaml:"user_agent"`

	Transport  TransportConfig  `json:"transport" yaml:"transport"`
	Retry      RetryConfig      `json:"retry" yaml:"retry"`
	Throttling ThrottlingConfig `json:"throttling" yaml:"throttling"`
	Checkpoint CheckpointConfig `json:"checkpoint" yaml:"checkpoint"`
	Timeseries TimeseriesConfig `json:"timeseries" yaml:"timeseries"`
	Logging    LoggingConfig    `json:"logging" yaml:"logging"`
}

// TransportConfig contains HTTP timeout settings. Each value must be
// positive.
type TransportConfig struct {
	TimeoutConnectSeconds float64 `json:"timeout_connect_seconds" yaml:"timeout_connect_seconds"`
	TimeoutReadSeconds    float64 `json:"timeout_read_seconds" yaml:"timeout_read_seconds"`
	TimeoutWriteSeconds   float64 `json:"timeout_write_seconds" yaml:"timeout_write_seconds"`
	TimeoutPoolSeconds    float64 `json:"timeout_pool_seconds" yaml:"timeout_pool_seconds"`
}

// RetryConfig contains transport retry settings.
type RetryConfig struct {
	MaxAttempts             int     `json:"max_attempts" yaml:"max_attempts"`
	MaxBackoffSeconds       float64 `json:"max_backoff_seconds" yaml:"max_backoff_seconds"`
	TotalRetryBudgetSeconds float64 `json:"total_retry_budget_seconds" yaml:"total_retry_budget_seconds"`
}

// ThrottlingConfig contains request spacing settings.
type ThrottlingConfig struct {
	MinWaitIntervalSeconds float64 `json:"min_wait_interval_seconds" yaml:"min_wait_interval_seconds"`
}

// CheckpointConfig contains checkpoint persistence settings.
type CheckpointConfig struct {
	Enabled    bool    `json:"enabled" yaml:"enabled"`
	TTLSeconds float64 `json:"ttl_seconds" yaml:"ttl_seconds"`
}

// TimeseriesConfig contains timeseries feature settings.
type TimeseriesConfig struct {
	EnableLayerAutoPartition bool `json:"enable_layer_auto_partition" yaml:"enable_layer_auto_partition"`
}

// LoggingConfig controls the built-in structured logger.
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`   // debug, info, warn, error
	Format string `json:"format" yaml:"format"` // json or text
	Output string `json:"output" yaml:"output"` // stdout or stderr
}

// ConfigSnapshot is the subset of configuration whose change
// invalidates a saved checkpoint. The JSON keys form the stable
// fingerprint schema embedded in every checkpoint record.
type ConfigSnapshot struct {
	MaxAttempts              int     `json:"max_attempts"`
	MaxBackoffSeconds        float64 `json:"max_backoff_seconds"`
	TotalRetryBudgetSeconds  float64 `json:"total_retry_budget_seconds"`
	MinWaitIntervalSeconds   float64 `json:"min_wait_interval_seconds"`
	EnableLayerAutoPartition bool    `json:"enable_layer_auto_partition"`
	CheckpointEnabled        bool    `json:"checkpoint_enabled"`
	CheckpointTTLSeconds     float64 `json:"checkpoint_ttl_seconds"`
}

// Option is a functional option for configuring the client
type Option func(*Config)

// WithBaseURL sets the API base URL
func WithBaseURL(baseURL string) Option {
	return func(c *Config) { c.BaseURL = baseURL }
}

// WithUserAgent sets the User-Agent request header
func WithUserAgent(userAgent string) Option {
	return func(c *Config) { c.UserAgent = userAgent }
}

// WithTimeouts sets the four transport timeouts, in seconds
func WithTimeouts(connect, read, write, pool float64) Option {
	return func(c *Config) {
		c.Transport = TransportConfig{
			TimeoutConnectSeconds: connect,
			TimeoutReadSeconds:    read,
			TimeoutWriteSeconds:   write,
			TimeoutPoolSeconds:    pool,
		}
	}
}

// WithRetryMaxAttempts sets the transport attempt ceiling
func WithRetryMaxAttempts(maxAttempts int) Option {
	return func(c *Config) { c.Retry.MaxAttempts = maxAttempts }
}

// WithRetryMaxBackoff sets the backoff cap in seconds
func WithRetryMaxBackoff(seconds float64) Option {
	return func(c *Config) { c.Retry.MaxBackoffSeconds = seconds }
}

// WithRetryBudget sets the total wall-clock retry budget in seconds
func WithRetryBudget(seconds float64) Option {
	return func(c *Config) { c.Retry.TotalRetryBudgetSeconds = seconds }
}

// WithMinWaitInterval sets the minimum spacing between requests in seconds
func WithMinWaitInterval(seconds float64) Option {
	return func(c *Config) { c.Throttling.MinWaitIntervalSeconds = seconds }
}

// WithCheckpointEnabled toggles checkpoint persistence
func WithCheckpointEnabled(enabled bool) Option {
	return func(c *Config) { c.Checkpoint.Enabled = enabled }
}

// WithCheckpointTTL sets the checkpoint record lifetime in seconds
func WithCheckpointTTL(seconds float64) Option {
	return func(c *Config) { c.Checkpoint.TTLSeconds = seconds }
}

// WithLayerAutoPartition toggles the metadata-driven fallback when the
// server refuses a layer query for exceeding its series ceiling
func WithLayerAutoPartition(enabled bool) Option {
	return func(c *Config) { c.Timeseries.EnableLayerAutoPartition = enabled }
}

// WithLogLevel sets the built-in logger level
func WithLogLevel(level string) Option {
	return func(c *Config) { c.Logging.Level = level }
}

// DefaultConfig returns the configuration defaults
func DefaultConfig() *Config {
	return &Config{
		BaseURL:   DefaultBaseURL,
		UserAgent: DefaultUserAgent,
		Transport: TransportConfig{
			TimeoutConnectSeconds: 5,
			TimeoutReadSeconds:    30,
			TimeoutWriteSeconds:   30,
			TimeoutPoolSeconds:    5,
		},
		Retry: RetryConfig{
			MaxAttempts:             5,
			MaxBackoffSeconds:       30,
			TotalRetryBudgetSeconds: 120,
		},
		Throttling: ThrottlingConfig{
			MinWaitIntervalSeconds: 1,
		},
		Checkpoint: CheckpointConfig{
			Enabled:    true,
			TTLSeconds: DefaultCheckpointTTL.Seconds(),
		},
		Timeseries: TimeseriesConfig{
			EnableLayerAutoPartition: false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// NewConfig creates a configuration using the three-layer priority:
// defaults, then BOJSTAT_* environment variables, then options.
// The result is validated.
func NewConfig(opts ...Option) (*Config, error) {
	cfg := DefaultConfig()
	cfg.applyEnvironment()
	for _, opt := range opts {
		opt(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfigFromFile reads a JSON or YAML configuration file layered
// over the defaults, then applies environment variables and validates.
func LoadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q (want .json, .yaml, or .yml)", ext)
	}

	cfg.applyEnvironment()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvironment overlays BOJSTAT_* environment variables.
func (c *Config) applyEnvironment() {
	setString(&c.BaseURL, "BOJSTAT_BASE_URL")
	setString(&c.UserAgent, "BOJSTAT_USER_AGENT")
	setFloat(&c.Transport.TimeoutConnectSeconds, "BOJSTAT_TIMEOUT_CONNECT_SECONDS")
	setFloat(&c.Transport.TimeoutReadSeconds, "BOJSTAT_TIMEOUT_READ_SECONDS")
	setFloat(&c.Transport.TimeoutWriteSeconds, "BOJSTAT_TIMEOUT_WRITE_SECONDS")
	setFloat(&c.Transport.TimeoutPoolSeconds, "BOJSTAT_TIMEOUT_POOL_SECONDS")
	setInt(&c.Retry.MaxAttempts, "BOJSTAT_RETRY_MAX_ATTEMPTS")
	setFloat(&c.Retry.MaxBackoffSeconds, "BOJSTAT_RETRY_MAX_BACKOFF_SECONDS")
	setFloat(&c.Retry.TotalRetryBudgetSeconds, "BOJSTAT_RETRY_BUDGET_SECONDS")
	setFloat(&c.Throttling.MinWaitIntervalSeconds, "BOJSTAT_MIN_WAIT_INTERVAL_SECONDS")
	setBool(&c.Checkpoint.Enabled, "BOJSTAT_CHECKPOINT_ENABLED")
	setFloat(&c.Checkpoint.TTLSeconds, "BOJSTAT_CHECKPOINT_TTL_SECONDS")
	setBool(&c.Timeseries.EnableLayerAutoPartition, "BOJSTAT_LAYER_AUTO_PARTITION")
	setString(&c.Logging.Level, "BOJSTAT_LOG_LEVEL")
	setString(&c.Logging.Format, "BOJSTAT_LOG_FORMAT")
	setString(&c.Logging.Output, "BOJSTAT_LOG_OUTPUT")
}

// Validate checks every configuration bound. Violations are reported
// as validation errors so callers can match with errors.Is.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return NewValidationError("base_url must not be empty")
	}
	for name, value := range map[string]float64{
		"transport.timeout_connect_seconds": c.Transport.TimeoutConnectSeconds,
		"transport.timeout_read_seconds":    c.Transport.TimeoutReadSeconds,
		"transport.timeout_write_seconds":   c.Transport.TimeoutWriteSeconds,
		"transport.timeout_pool_seconds":    c.Transport.TimeoutPoolSeconds,
	} {
		if value <= 0 {
			return NewValidationError("%s must be > 0", name)
		}
	}
	if c.Retry.MaxAttempts < 1 {
		return NewValidationError("retry.max_attempts must be >= 1")
	}
	if c.Retry.MaxBackoffSeconds < 0 {
		return NewValidationError("retry.max_backoff_seconds must be >= 0")
	}
	if c.Retry.TotalRetryBudgetSeconds < 0 {
		return NewValidationError("retry.total_retry_budget_seconds must be >= 0")
	}
	if c.Throttling.MinWaitIntervalSeconds < 0 {
		return NewValidationError("throttling.min_wait_interval_seconds must be >= 0")
	}
	if c.Checkpoint.TTLSeconds <= 0 {
		return NewValidationError("checkpoint.ttl_seconds must be > 0")
	}
	return nil
}

// Snapshot extracts the checkpoint fingerprint from the configuration.
func (c *Config) Snapshot() ConfigSnapshot {
	return ConfigSnapshot{
		MaxAttempts:              c.Retry.MaxAttempts,
		MaxBackoffSeconds:        c.Retry.MaxBackoffSeconds,
		TotalRetryBudgetSeconds:  c.Retry.TotalRetryBudgetSeconds,
		MinWaitIntervalSeconds:   c.Throttling.MinWaitIntervalSeconds,
		EnableLayerAutoPartition: c.Timeseries.EnableLayerAutoPartition,
		CheckpointEnabled:        c.Checkpoint.Enabled,
		CheckpointTTLSeconds:     c.Checkpoint.TTLSeconds,
	}
}

// Duration accessors keep time arithmetic in one place.

func (c *Config) ConnectTimeout() time.Duration { return secondsToDuration(c.Transport.TimeoutConnectSeconds) }
func (c *Config) ReadTimeout() time.Duration    { return secondsToDuration(c.Transport.TimeoutReadSeconds) }
func (c *Config) WriteTimeout() time.Duration   { return secondsToDuration(c.Transport.TimeoutWriteSeconds) }
func (c *Config) PoolTimeout() time.Duration    { return secondsToDuration(c.Transport.TimeoutPoolSeconds) }
func (c *Config) MaxBackoff() time.Duration     { return secondsToDuration(c.Retry.MaxBackoffSeconds) }
func (c *Config) RetryBudget() time.Duration    { return secondsToDuration(c.Retry.TotalRetryBudgetSeconds) }
func (c *Config) MinWaitInterval() time.Duration {
	return secondsToDuration(c.Throttling.MinWaitIntervalSeconds)
}
func (c *Config) CheckpointTTL() time.Duration { return secondsToDuration(c.Checkpoint.TTLSeconds) }

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}

func setString(target *string, key string) {
	if value := os.Getenv(key); value != "" {
		*target = value
	}
}

func setInt(target *int, key string) {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func setFloat(target *float64, key string) {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			*target = parsed
		}
	}
}

func setBool(target *bool, key string) {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}
