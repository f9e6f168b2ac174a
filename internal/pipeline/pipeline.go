// Package pipeline drives one analysis: fetch, summarize, then hand the
// result to the optional sinks.
//
// The fetch always yields a snapshot and a tagged outcome. A failed fetch
// with partial data is still summarized and stored; a session that produced
// no record at all is recorded and then reported as ErrNoData. Sink errors
// are logged and counted but never fail the run.
package pipeline

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/openalex-analyzer/internal/analysis"
	"github.com/helixir/openalex-analyzer/internal/domain"
	"github.com/helixir/openalex-analyzer/internal/observability"
)

// ErrNoData is returned by Run when the session produced no record.
var ErrNoData = domain.ErrNoData

// DefaultTopN is the length of the summary tables when none is configured.
const DefaultTopN = 10

// Sink names reported to Metrics.RecordSinkFailure.
const (
	SinkStore     = "store"
	SinkPublisher = "publisher"
)

// Fetcher runs one fetch session.
type Fetcher interface {
	Fetch(ctx context.Context, params domain.SearchParams) (*domain.CorpusSnapshot, domain.FetchOutcome)
}

// Store persists a finished analysis.
type Store interface {
	Save(ctx context.Context, a *domain.Analysis, snapshot *domain.CorpusSnapshot) error
}

// Publisher announces a finished analysis.
type Publisher interface {
	PublishAnalysisCompleted(ctx context.Context, a *domain.Analysis) error
}

// Metrics receives analysis measurements.
type Metrics interface {
	RecordAnalysisStarted()
	RecordAnalysisFinished(status string, duration time.Duration)
	RecordSinkFailure(sink string)
}

type nopMetrics struct{}

func (nopMetrics) RecordAnalysisStarted()                       {}
func (nopMetrics) RecordAnalysisFinished(string, time.Duration) {}
func (nopMetrics) RecordSinkFailure(string)                     {}

// Config configures a Service.
type Config struct {
	// TopN is the length of every top-N table in the summary.
	TopN int
}

// Result is the outcome of one Run.
type Result struct {
	Analysis *domain.Analysis
	Snapshot *domain.CorpusSnapshot

	// Stored reports whether the store accepted the analysis.
	Stored bool
	// Published reports whether the completion event was written.
	Published bool
}

// Service runs analyses. Store and Publisher are optional.
type Service struct {
	fetcher   Fetcher
	store     Store
	publisher Publisher
	config    Config
	metrics   Metrics
	logger    zerolog.Logger
}

// Option configures optional Service collaborators.
type Option func(*Service)

// WithStore persists every finished analysis.
func WithStore(s Store) Option {
	return func(svc *Service) { svc.store = s }
}

// WithPublisher announces every finished analysis.
func WithPublisher(p Publisher) Option {
	return func(svc *Service) { svc.publisher = p }
}

// WithMetrics records analysis measurements.
func WithMetrics(m Metrics) Option {
	return func(svc *Service) {
		if m != nil {
			svc.metrics = m
		}
	}
}

// NewService creates a Service around fetcher.
func NewService(fetcher Fetcher, cfg Config, logger zerolog.Logger, opts ...Option) *Service {
	if cfg.TopN <= 0 {
		cfg.TopN = DefaultTopN
	}
	svc := &Service{
		fetcher: fetcher,
		config:  cfg,
		metrics: nopMetrics{},
		logger:  logger.With().Str("component", "pipeline").Logger(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Run validates params, fetches, summarizes and hands the result to the
// sinks. Validation errors are returned before any request. When the
// session produced no record the Result is still returned, with ErrNoData.
func (s *Service) Run(ctx context.Context, params domain.SearchParams) (*Result, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	a := domain.NewAnalysis(params)
	ctx = observability.WithAnalysisID(ctx, a.ID.String())
	log := observability.WithAnalysisContext(s.logger, a.ID.String(), params.Query)

	s.metrics.RecordAnalysisStarted()
	log.Info().
		Int("record_cap", params.RecordCap).
		Str("types", params.TypeFilter()).
		Msg("analysis started")

	snapshot, outcome := s.fetcher.Fetch(ctx, params)
	if snapshot == nil {
		snapshot = domain.NewCorpusSnapshot()
	}

	a.Outcome = outcome
	a.Summary = analysis.Summarize(snapshot, s.config.TopN)
	a.RecordCount = snapshot.Len()
	a.ContributionCount = len(snapshot.Contributions)
	a.CompletedAt = time.Now().UTC()
	s.metrics.RecordAnalysisFinished(string(outcome.Status), a.Duration())

	result := &Result{Analysis: a, Snapshot: snapshot}

	// Sinks get a context that survives cancellation of the fetch so that
	// a canceled session is still recorded.
	sinkCtx := context.WithoutCancel(ctx)
	if s.store != nil {
		if err := s.store.Save(sinkCtx, a, snapshot); err != nil {
			s.metrics.RecordSinkFailure(SinkStore)
			log.Error().Err(err).Msg("failed to store analysis")
		} else {
			result.Stored = true
		}
	}
	if s.publisher != nil {
		if err := s.publisher.PublishAnalysisCompleted(sinkCtx, a); err != nil {
			s.metrics.RecordSinkFailure(SinkPublisher)
			log.Error().Err(err).Msg("failed to publish analysis")
		} else {
			result.Published = true
		}
	}

	event := log.Info()
	if outcome.Failed() {
		event = log.Warn().Str("failed_at", outcome.FailedAt).Str("failure", outcome.Failure)
	}
	event.
		Str("status", string(outcome.Status)).
		Int("records", a.RecordCount).
		Int("contributions", a.ContributionCount).
		Dur("duration", a.Duration()).
		Msg("analysis finished")

	if snapshot.IsEmpty() {
		return result, ErrNoData
	}
	return result, nil
}

// EmptyResultMessage is the notice shown when a session produced no record.
// A failed session is distinguished from a search without matches.
func EmptyResultMessage(outcome domain.FetchOutcome) string {
	if outcome.Failed() {
		return "Fetch failed before any records were retrieved."
	}
	return "No papers found matching these parameters."
}
