// Package harvest drives a works search page by page and accumulates the
// normalized records into a corpus snapshot.
//
// Requests are strictly sequential. A failed request ends the session and
// the records gathered so far are returned along with a tagged outcome; the
// fetch itself never returns an error.
package harvest

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/openalex-analyzer/internal/domain"
	"github.com/helixir/openalex-analyzer/internal/papersources"
	"github.com/helixir/openalex-analyzer/internal/papersources/openalex"
)

const (
	// DefaultPerPage is the page size requested when none is configured.
	DefaultPerPage = openalex.MaxPerPage

	// DefaultMaxPages bounds the page strategy when no bound is configured.
	DefaultMaxPages = 10

	// DefaultPageDelay is the pause between requests in the page strategy.
	DefaultPageDelay = time.Second
)

// PageSource returns one page of raw works.
type PageSource interface {
	FetchPage(ctx context.Context, req openalex.PageRequest) (*openalex.SearchResponse, error)
}

// Normalizer turns one raw work into a record and its contribution rows.
type Normalizer interface {
	Normalize(work *openalex.Work) (domain.Record, []domain.AuthorContribution)
}

// Metrics receives fetch loop measurements.
type Metrics interface {
	RecordPageFetched(strategy string, records int)
	RecordPageFailed(strategy string)
	RecordFetchCompleted(strategy, status string, records int, duration time.Duration)
}

type nopMetrics struct{}

func (nopMetrics) RecordPageFetched(string, int)                           {}
func (nopMetrics) RecordPageFailed(string)                                 {}
func (nopMetrics) RecordFetchCompleted(string, string, int, time.Duration) {}

// Config configures a Fetcher.
type Config struct {
	// Strategy selects cursor or page pagination. Defaults to cursor.
	Strategy domain.PaginationStrategy

	// PerPage is the page size, at most openalex.MaxPerPage.
	PerPage int

	// MaxPages bounds the page strategy.
	MaxPages int

	// PageDelay is the fixed pause between page-strategy requests.
	PageDelay time.Duration

	// CursorDelay is an optional pause between cursor-strategy requests.
	CursorDelay time.Duration
}

func (c *Config) applyDefaults() {
	if !c.Strategy.Valid() {
		c.Strategy = domain.PaginationCursor
	}
	if c.PerPage <= 0 || c.PerPage > openalex.MaxPerPage {
		c.PerPage = DefaultPerPage
	}
	if c.MaxPages <= 0 {
		c.MaxPages = DefaultMaxPages
	}
	if c.PageDelay == 0 {
		c.PageDelay = DefaultPageDelay
	}
}

// Fetcher runs fetch sessions against a PageSource. A Fetcher holds no
// per-session state and may run several sessions concurrently.
type Fetcher struct {
	source     PageSource
	normalizer Normalizer
	config     Config
	logger     zerolog.Logger
	metrics    Metrics
}

// NewFetcher creates a Fetcher. A nil metrics disables measurement.
func NewFetcher(source PageSource, normalizer Normalizer, cfg Config, logger zerolog.Logger, metrics Metrics) *Fetcher {
	cfg.applyDefaults()
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &Fetcher{
		source:     source,
		normalizer: normalizer,
		config:     cfg,
		logger:     logger.With().Str("component", "harvest").Logger(),
		metrics:    metrics,
	}
}

// Config returns the effective configuration.
func (f *Fetcher) Config() Config {
	return f.config
}

// Fetch pages through the results for params until the source runs dry, the
// record cap is reached, the page bound is hit, a request fails, or ctx is
// canceled. When the cap is reached the last page is cut so that exactly
// RecordCap records remain.
func (f *Fetcher) Fetch(ctx context.Context, params domain.SearchParams) (*domain.CorpusSnapshot, domain.FetchOutcome) {
	start := time.Now()
	strategy := f.config.Strategy
	snapshot := domain.NewCorpusSnapshot()
	outcome := domain.FetchOutcome{Strategy: strategy}

	log := f.logger.With().
		Str("query", params.Query).
		Str("strategy", string(strategy)).
		Int("record_cap", params.RecordCap).
		Logger()

	delay := f.config.CursorDelay
	if strategy == domain.PaginationPage {
		delay = f.config.PageDelay
	}
	limiter := papersources.NewIntervalLimiter(delay)
	log.Debug().Dur("request_interval", limiter.Interval()).Msg("fetch started")

	cursor := openalex.InitialCursor
	page := 1

	for {
		if strategy == domain.PaginationPage && page > f.config.MaxPages {
			outcome.Status = domain.FetchStatusMaxPages
			break
		}
		if err := ctx.Err(); err != nil {
			outcome.Status = domain.FetchStatusCanceled
			outcome.Err = err
			break
		}
		if err := limiter.Wait(ctx); err != nil {
			outcome.Status = domain.FetchStatusCanceled
			outcome.Err = err
			break
		}

		req := openalex.PageRequest{Params: params, PerPage: f.config.PerPage}
		if len(req.Params.Select) == 0 {
			req.Params.Select = openalex.NormalizedFields
		}
		var position string
		if strategy == domain.PaginationCursor {
			req.Cursor = cursor
			position = "cursor " + cursor
		} else {
			req.Page = page
			position = "page " + strconv.Itoa(page)
		}

		outcome.PagesAttempted++
		resp, err := f.source.FetchPage(ctx, req)
		if err != nil {
			f.metrics.RecordPageFailed(string(strategy))
			if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				outcome.Status = domain.FetchStatusCanceled
				outcome.Err = err
				break
			}
			outcome.Status = domain.FetchStatusFailed
			outcome.FailedAt = position
			outcome.Failure = err.Error()
			outcome.Err = err
			log.Warn().Err(err).
				Str("at", position).
				Int("records", snapshot.Len()).
				Msg("fetch aborted")
			break
		}
		outcome.PagesSucceeded++

		results := 0
		if resp != nil {
			results = len(resp.Results)
		}
		f.metrics.RecordPageFetched(string(strategy), results)
		if results == 0 {
			outcome.Status = domain.FetchStatusCompleted
			break
		}

		for i := range resp.Results {
			record, contributions := f.normalizer.Normalize(&resp.Results[i])
			snapshot.Append(record, contributions)
		}
		log.Debug().
			Str("at", position).
			Int("page_records", results).
			Int("records", snapshot.Len()).
			Msg("fetched page")

		if params.RecordCap > 0 && snapshot.Len() >= params.RecordCap {
			snapshot.Truncate(params.RecordCap)
			outcome.Status = domain.FetchStatusCapReached
			break
		}

		if strategy == domain.PaginationCursor {
			next := resp.Meta.NextCursor
			if next == "" || next == cursor {
				outcome.Status = domain.FetchStatusCompleted
				break
			}
			cursor = next
		} else {
			page++
		}
	}

	elapsed := time.Since(start)
	f.metrics.RecordFetchCompleted(string(strategy), string(outcome.Status), snapshot.Len(), elapsed)

	log.Info().
		Str("status", string(outcome.Status)).
		Int("records", snapshot.Len()).
		Int("contributions", len(snapshot.Contributions)).
		Int("pages", outcome.PagesSucceeded).
		Dur("duration", elapsed).
		Msg("fetch finished")

	return snapshot, outcome
}
