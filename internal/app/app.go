// Package app assembles the analyzer's collaborators from configuration.
// Both binaries build the same fetch pipeline; they differ only in the
// sinks and surfaces they attach.
package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/helixir/openalex-analyzer/internal/config"
	"github.com/helixir/openalex-analyzer/internal/database"
	"github.com/helixir/openalex-analyzer/internal/domain"
	"github.com/helixir/openalex-analyzer/internal/events"
	"github.com/helixir/openalex-analyzer/internal/harvest"
	"github.com/helixir/openalex-analyzer/internal/llm"
	"github.com/helixir/openalex-analyzer/internal/observability"
	"github.com/helixir/openalex-analyzer/internal/papersources/openalex"
	"github.com/helixir/openalex-analyzer/internal/pipeline"
	"github.com/helixir/openalex-analyzer/internal/repository"
)

// NewLogger builds the process logger. console forces human-readable output.
func NewLogger(cfg config.LoggingConfig, console bool) zerolog.Logger {
	lc := observability.LoggingConfig{
		Level:      cfg.Level,
		Format:     cfg.Format,
		Output:     cfg.Output,
		AddSource:  cfg.AddSource,
		TimeFormat: cfg.TimeFormat,
	}
	if console {
		lc.Format = "console"
		lc.Output = "stderr"
	}
	return observability.NewLogger(lc)
}

// NewMetrics returns the Prometheus metrics, or nil when metrics are disabled.
func NewMetrics(cfg config.MetricsConfig) *observability.Metrics {
	if !cfg.Enabled {
		return nil
	}
	return observability.NewMetrics(cfg.Namespace)
}

// OpenAlexConfig maps the client settings.
func OpenAlexConfig(cfg config.OpenAlexConfig) openalex.Config {
	return openalex.Config{
		BaseURL:    cfg.BaseURL,
		Email:      cfg.Email,
		Timeout:    cfg.Timeout,
		RateLimit:  cfg.RateLimit,
		MaxRetries: cfg.MaxRetries,
	}
}

// HarvestConfig maps the fetch loop settings.
func HarvestConfig(cfg config.HarvestConfig) harvest.Config {
	return harvest.Config{
		Strategy:    domain.PaginationStrategy(cfg.Strategy),
		PerPage:     cfg.PerPage,
		MaxPages:    cfg.MaxPages,
		PageDelay:   cfg.PageDelay,
		CursorDelay: cfg.CursorDelay,
	}
}

// NewFetcher wires the OpenAlex client, the normalizer and the fetch loop.
// A nil metrics disables measurement.
func NewFetcher(cfg *config.Config, logger zerolog.Logger, metrics *observability.Metrics) *harvest.Fetcher {
	client := openalex.New(OpenAlexConfig(cfg.OpenAlex))
	var m harvest.Metrics
	if metrics != nil {
		m = metrics
	}
	return harvest.NewFetcher(client, openalex.NewNormalizer(nil), HarvestConfig(cfg.Harvest), logger, m)
}

// NewAsker returns the chat collaborator, or nil when chat is disabled.
// A missing API key surfaces as domain.ErrMissingCredential.
func NewAsker(ctx context.Context, cfg *config.Config, logger zerolog.Logger, metrics *observability.Metrics) (*pipeline.Asker, error) {
	if !cfg.LLM.Enabled {
		return nil, nil
	}
	if err := cfg.ValidateLLM(); err != nil {
		return nil, err
	}
	chatter, err := llm.NewChatter(ctx, FactoryConfig(cfg.LLM))
	if err != nil {
		return nil, fmt.Errorf("create chat provider: %w", err)
	}
	var m pipeline.ChatMetrics
	if metrics != nil {
		m = metrics
	}
	return pipeline.NewAsker(chatter, m, logger), nil
}

// FactoryConfig maps the LLM settings.
func FactoryConfig(cfg config.LLMConfig) llm.FactoryConfig {
	return llm.FactoryConfig{
		Provider: cfg.Provider,
		Options: llm.Options{
			Temperature:    cfg.Temperature,
			Timeout:        cfg.Timeout,
			MaxRetries:     cfg.MaxRetries,
			MaxCorpusBytes: cfg.MaxCorpusBytes,
		},
		Gemini:    llm.GeminiConfig{APIKey: cfg.Gemini.APIKey, Model: cfg.Gemini.Model},
		OpenAI:    llm.OpenAIConfig{APIKey: cfg.OpenAI.APIKey, Model: cfg.OpenAI.Model, BaseURL: cfg.OpenAI.BaseURL},
		Anthropic: llm.AnthropicConfig{APIKey: cfg.Anthropic.APIKey, Model: cfg.Anthropic.Model, BaseURL: cfg.Anthropic.BaseURL},
	}
}

// PipelineOptions returns the metrics option when metrics are enabled.
func PipelineOptions(metrics *observability.Metrics) []pipeline.Option {
	if metrics == nil {
		return nil
	}
	return []pipeline.Option{pipeline.WithMetrics(metrics)}
}

// Store is an open analysis store and the pool behind it.
type Store struct {
	DB   *database.DB
	Repo *repository.PgAnalysisRepository
}

// Close releases the pool.
func (s *Store) Close() {
	s.DB.Close()
}

// OpenStore connects to PostgreSQL and applies pending migrations when
// auto-run is configured. It returns nil when the database is disabled.
func OpenStore(ctx context.Context, cfg config.DatabaseConfig, logger zerolog.Logger) (*Store, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	db, err := database.New(ctx, &cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if cfg.MigrationAutoRun {
		if err := migrateUp(db, logger); err != nil {
			db.Close()
			return nil, err
		}
	}

	return &Store{DB: db, Repo: repository.NewPgAnalysisRepository(db)}, nil
}

func migrateUp(db *database.DB, logger zerolog.Logger) error {
	migrator, err := database.NewMigrator(db, logger)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			logger.Error().Err(closeErr).Msg("failed to close migrator")
		}
	}()
	if err := migrator.Up(); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// NewPublisher returns the event publisher, or nil when Kafka is disabled.
func NewPublisher(cfg config.KafkaConfig, logger zerolog.Logger) (*events.KafkaPublisher, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	return events.NewKafkaPublisher(events.PublisherConfig{
		Brokers:      cfg.Brokers,
		Topic:        cfg.Topic,
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
	}, logger)
}
