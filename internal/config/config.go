// Package config provides configuration management for the OpenAlex analyzer.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/helixir/openalex-analyzer/internal/domain"
)

// EnvPrefix is the prefix of every environment variable read by Load.
const EnvPrefix = "ANALYZER"

// Environment variables holding secrets. They are never read from config files.
const (
	EnvGeminiAPIKey    = "ANALYZER_LLM_GEMINI_API_KEY"
	EnvOpenAIAPIKey    = "ANALYZER_LLM_OPENAI_API_KEY"
	EnvAnthropicAPIKey = "ANALYZER_LLM_ANTHROPIC_API_KEY"
)

// SSL mode constants for database connections.
const (
	// SSLModeDisable disables SSL (use only for local development).
	SSLModeDisable = "disable"
	// SSLModeRequire requires SSL but does not verify certificates.
	SSLModeRequire = "require"
	// SSLModeVerifyCA verifies the server certificate against a CA.
	SSLModeVerifyCA = "verify-ca"
	// SSLModeVerifyFull verifies the server certificate and hostname.
	SSLModeVerifyFull = "verify-full"
)

// Config holds all configuration for the analyzer.
type Config struct {
	// Server contains HTTP server settings.
	Server ServerConfig `mapstructure:"server"`
	// Database contains PostgreSQL connection settings.
	Database DatabaseConfig `mapstructure:"database"`
	// Logging contains structured logging settings.
	Logging LoggingConfig `mapstructure:"logging"`
	// Metrics contains Prometheus metrics exposure settings.
	Metrics MetricsConfig `mapstructure:"metrics"`
	// OpenAlex contains works API client settings.
	OpenAlex OpenAlexConfig `mapstructure:"openalex"`
	// Harvest contains pagination settings.
	Harvest HarvestConfig `mapstructure:"harvest"`
	// LLM contains chat provider settings.
	LLM LLMConfig `mapstructure:"llm"`
	// Kafka contains analysis event publisher settings.
	Kafka KafkaConfig `mapstructure:"kafka"`
	// Storage contains local export settings.
	Storage StorageConfig `mapstructure:"storage"`
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	// Host is the address to bind the server to (default: 0.0.0.0).
	Host string `mapstructure:"host"`
	// HTTPPort is the HTTP server port (default: 8080).
	HTTPPort int `mapstructure:"http_port"`
	// ReadTimeout is the maximum duration for reading request body.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout is the maximum duration for writing response. Analyses run
	// on the request goroutine, so this bounds a whole fetch.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	// Enabled stores completed analyses in PostgreSQL.
	Enabled bool `mapstructure:"enabled"`
	// Host is the PostgreSQL server hostname.
	Host string `mapstructure:"host"`
	// Port is the PostgreSQL server port (default: 5432).
	Port int `mapstructure:"port"`
	// User is the database username.
	User string `mapstructure:"user"`
	// Password is the database password (use environment variable in production).
	Password string `mapstructure:"password"`
	// Name is the database name.
	Name string `mapstructure:"name"`
	// SSLMode controls SSL connection security (require, verify-ca, verify-full, disable).
	SSLMode string `mapstructure:"ssl_mode"`
	// MaxConns is the maximum number of connections in the pool.
	MaxConns int32 `mapstructure:"max_conns"`
	// MinConns is the minimum number of connections to keep open.
	MinConns int32 `mapstructure:"min_conns"`
	// MaxConnLifetime is the maximum lifetime of a connection before it's closed.
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	// MaxConnIdleTime is the maximum time a connection can be idle before it's closed.
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	// HealthCheckPeriod is the interval between health checks of idle connections.
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
	// ConnectTimeout is the maximum time to wait for a connection.
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	// MigrationAutoRun applies the embedded migrations on startup.
	MigrationAutoRun bool `mapstructure:"migration_auto_run"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level (trace, debug, info, warn, error, fatal, panic).
	Level string `mapstructure:"level"`
	// Format is the log format (json, console).
	Format string `mapstructure:"format"`
	// Output is the log output destination (stdout, stderr).
	Output string `mapstructure:"output"`
	// AddSource adds source file and line to log output.
	AddSource bool `mapstructure:"add_source"`
	// TimeFormat is the timestamp format.
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	// Enabled enables metrics collection and exposure.
	Enabled bool `mapstructure:"enabled"`
	// Path is the HTTP path for metrics endpoint.
	Path string `mapstructure:"path"`
	// Namespace prefixes every metric name.
	Namespace string `mapstructure:"namespace"`
}

// OpenAlexConfig holds works API client settings.
type OpenAlexConfig struct {
	// BaseURL is the API base URL.
	BaseURL string `mapstructure:"base_url"`
	// Email is sent as mailto for the polite pool.
	Email string `mapstructure:"email"`
	// Timeout is the timeout for one page request.
	Timeout time.Duration `mapstructure:"timeout"`
	// RateLimit is the maximum requests per second.
	RateLimit float64 `mapstructure:"rate_limit"`
	// MaxRetries is the number of retries for 429/5xx responses (default: 0).
	MaxRetries int `mapstructure:"max_retries"`
}

// HarvestConfig holds pagination settings.
type HarvestConfig struct {
	// Strategy is the pagination strategy (cursor, page).
	Strategy string `mapstructure:"strategy"`
	// PerPage is the page size (1..200).
	PerPage int `mapstructure:"per_page"`
	// MaxPages bounds the page strategy.
	MaxPages int `mapstructure:"max_pages"`
	// PageDelay is the fixed delay between page requests.
	PageDelay time.Duration `mapstructure:"page_delay"`
	// CursorDelay is the delay between cursor requests (0 = none).
	CursorDelay time.Duration `mapstructure:"cursor_delay"`
	// RecordCap is the default record cap (0 = unlimited).
	RecordCap int `mapstructure:"record_cap"`
	// TopN is the size of the ranked tables.
	TopN int `mapstructure:"top_n"`
}

// LLMConfig holds chat provider configuration.
type LLMConfig struct {
	// Enabled turns on chat over fetched corpora.
	Enabled bool `mapstructure:"enabled"`
	// Provider is the LLM provider (gemini, openai, anthropic).
	Provider string `mapstructure:"provider"`
	// Timeout is the timeout for LLM API calls.
	Timeout time.Duration `mapstructure:"timeout"`
	// MaxRetries is the maximum number of retries for failed calls.
	MaxRetries int `mapstructure:"max_retries"`
	// Temperature is the LLM temperature setting.
	Temperature float64 `mapstructure:"temperature"`
	// MaxCorpusBytes bounds the corpus sent per request.
	MaxCorpusBytes int `mapstructure:"max_corpus_bytes"`
	// Gemini contains Gemini-specific settings.
	Gemini ProviderConfig `mapstructure:"gemini"`
	// OpenAI contains OpenAI-specific settings.
	OpenAI ProviderConfig `mapstructure:"openai"`
	// Anthropic contains Anthropic-specific settings.
	Anthropic ProviderConfig `mapstructure:"anthropic"`
}

// ProviderConfig holds the settings of one LLM provider.
type ProviderConfig struct {
	// APIKey is loaded exclusively from the environment (see loadSecrets).
	APIKey string `mapstructure:"-"`
	// Model is the model identifier.
	Model string `mapstructure:"model"`
	// BaseURL is the API base URL (unused by Gemini).
	BaseURL string `mapstructure:"base_url"`
}

// KafkaConfig holds Kafka publisher settings.
type KafkaConfig struct {
	// Enabled controls whether Kafka publishing is active.
	Enabled bool `mapstructure:"enabled"`
	// Brokers is the list of Kafka broker addresses.
	Brokers []string `mapstructure:"brokers"`
	// Topic is the Kafka topic analysis events are published to.
	Topic string `mapstructure:"topic"`
	// BatchSize is the maximum number of messages to batch before sending.
	BatchSize int `mapstructure:"batch_size"`
	// BatchTimeout is the maximum time to wait for a batch to fill before sending.
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
	// RequestTopic, when set, is consumed by the server for analysis requests.
	RequestTopic string `mapstructure:"request_topic"`
	// GroupID is the consumer group used for RequestTopic.
	GroupID string `mapstructure:"group_id"`
}

// StorageConfig holds local export settings.
type StorageConfig struct {
	// ResultsDir is the directory CSV files and the corpus are written to.
	ResultsDir string `mapstructure:"results_dir"`
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	params := url.Values{}
	params.Set("sslmode", c.SSLMode)
	if c.ConnectTimeout > 0 {
		params.Set("connect_timeout", fmt.Sprintf("%d", int(c.ConnectTimeout.Seconds())))
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?%s",
		url.QueryEscape(c.User),
		url.QueryEscape(c.Password),
		c.Host,
		c.Port,
		c.Name,
		params.Encode(),
	)
}

// HTTPAddress returns the HTTP server address.
func (c *ServerConfig) HTTPAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.HTTPPort)
}

// APIKey returns the key of the configured provider.
func (c *LLMConfig) APIKey() string {
	p, _ := c.provider()
	return p.APIKey
}

func (c *LLMConfig) provider() (ProviderConfig, string) {
	switch strings.ToLower(c.Provider) {
	case "openai":
		return c.OpenAI, EnvOpenAIAPIKey
	case "anthropic":
		return c.Anthropic, EnvAnthropicAPIKey
	default:
		return c.Gemini, EnvGeminiAPIKey
	}
}

// Load loads configuration from environment variables and config files.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/openalex-analyzer")

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	loadSecrets(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadSecrets populates secret fields exclusively from environment variables.
// These fields are tagged with mapstructure:"-" to prevent loading from config files.
func loadSecrets(cfg *Config) {
	cfg.LLM.Gemini.APIKey = os.Getenv(EnvGeminiAPIKey)
	cfg.LLM.OpenAI.APIKey = os.Getenv(EnvOpenAIAPIKey)
	cfg.LLM.Anthropic.APIKey = os.Getenv(EnvAnthropicAPIKey)
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "10m")
	v.SetDefault("server.shutdown_timeout", "30s")

	// Database defaults
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "analyzer")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "openalex_analyzer")
	v.SetDefault("database.ssl_mode", SSLModeRequire)
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 1)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")
	v.SetDefault("database.health_check_period", "30s")
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.migration_auto_run", false)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.namespace", "openalex_analyzer")

	// OpenAlex defaults
	v.SetDefault("openalex.base_url", "https://api.openalex.org")
	v.SetDefault("openalex.email", "")
	v.SetDefault("openalex.timeout", "30s")
	v.SetDefault("openalex.rate_limit", 10.0)
	v.SetDefault("openalex.max_retries", 0)

	// Harvest defaults
	v.SetDefault("harvest.strategy", string(domain.PaginationCursor))
	v.SetDefault("harvest.per_page", 200)
	v.SetDefault("harvest.max_pages", 10)
	v.SetDefault("harvest.page_delay", "1s")
	v.SetDefault("harvest.cursor_delay", "0s")
	v.SetDefault("harvest.record_cap", domain.DefaultRecordCap)
	v.SetDefault("harvest.top_n", 10)

	// LLM defaults. API keys are loaded exclusively from environment variables (see loadSecrets).
	v.SetDefault("llm.enabled", false)
	v.SetDefault("llm.provider", "gemini")
	v.SetDefault("llm.timeout", "120s")
	v.SetDefault("llm.max_retries", 2)
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.max_corpus_bytes", 1<<20)
	v.SetDefault("llm.gemini.model", "gemini-2.0-flash")
	v.SetDefault("llm.openai.model", "gpt-4o-mini")
	v.SetDefault("llm.openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.anthropic.model", "claude-3-5-haiku-latest")
	v.SetDefault("llm.anthropic.base_url", "https://api.anthropic.com")

	// Kafka defaults
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "events.openalex_analyzer.analyses")
	v.SetDefault("kafka.batch_size", 100)
	v.SetDefault("kafka.batch_timeout", "10ms")
	v.SetDefault("kafka.request_topic", "")
	v.SetDefault("kafka.group_id", "openalex-analyzer")

	// Storage defaults
	v.SetDefault("storage.results_dir", "results")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.Server.HTTPPort)
	}

	if c.Database.Enabled {
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			return fmt.Errorf("invalid database port: %d", c.Database.Port)
		}
		if c.Database.Name == "" {
			return fmt.Errorf("database name is required")
		}
		if c.Database.MaxConns < c.Database.MinConns {
			return fmt.Errorf("max_conns (%d) must be >= min_conns (%d)", c.Database.MaxConns, c.Database.MinConns)
		}
	}

	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if !domain.PaginationStrategy(c.Harvest.Strategy).Valid() {
		return fmt.Errorf("invalid harvest strategy: %q", c.Harvest.Strategy)
	}
	if c.Harvest.PerPage < 1 || c.Harvest.PerPage > 200 {
		return fmt.Errorf("harvest per_page must be between 1 and 200, got %d", c.Harvest.PerPage)
	}
	if c.Harvest.MaxPages <= 0 {
		return fmt.Errorf("harvest max_pages must be positive")
	}
	if c.Harvest.RecordCap < 0 {
		return fmt.Errorf("harvest record_cap must not be negative")
	}

	if c.Kafka.Enabled && (len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "") {
		return fmt.Errorf("kafka brokers and topic are required when kafka is enabled")
	}

	return c.ValidateLLM()
}

// ValidateLLM checks that the configured provider has its API key when chat
// is enabled. The error wraps domain.ErrMissingCredential.
func (c *Config) ValidateLLM() error {
	if !c.LLM.Enabled {
		return nil
	}
	switch strings.ToLower(c.LLM.Provider) {
	case "gemini", "openai", "anthropic":
	default:
		return fmt.Errorf("unsupported LLM provider: %q", c.LLM.Provider)
	}
	p, env := c.LLM.provider()
	if strings.TrimSpace(p.APIKey) == "" {
		return fmt.Errorf("LLM provider %q: %w", c.LLM.Provider, domain.NewMissingCredentialError(env))
	}
	return nil
}
