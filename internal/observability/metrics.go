package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the analyzer.
// Metrics are organized by subsystem: harvest (OpenAlex paging), analyses,
// result sinks and LLM operations. All counters and histograms are registered
// via promauto with the default Prometheus registry.
type Metrics struct {
	// PagesFetched counts pages received from OpenAlex, labeled by strategy.
	PagesFetched *prometheus.CounterVec

	// PagesFailed counts page requests that aborted a fetch, labeled by strategy.
	PagesFailed *prometheus.CounterVec

	// RecordsFetched counts normalized records, labeled by strategy.
	RecordsFetched *prometheus.CounterVec

	// FetchesCompleted counts finished fetches, labeled by strategy and outcome status.
	FetchesCompleted *prometheus.CounterVec

	// FetchDuration observes fetch duration in seconds, labeled by strategy.
	FetchDuration *prometheus.HistogramVec

	// RecordsPerFetch observes the corpus size of each fetch.
	RecordsPerFetch prometheus.Histogram

	// AnalysesStarted counts analyses accepted for processing.
	AnalysesStarted prometheus.Counter

	// AnalysesFinished counts analyses by outcome status.
	AnalysesFinished *prometheus.CounterVec

	// AnalysisDuration observes end-to-end analysis duration in seconds.
	AnalysisDuration prometheus.Histogram

	// SinkFailures counts failed writes to result sinks (store, events, files), labeled by sink.
	SinkFailures *prometheus.CounterVec

	// LLMRequestsTotal counts LLM API requests, labeled by provider and model.
	LLMRequestsTotal *prometheus.CounterVec

	// LLMRequestsFailed counts failed LLM API requests, labeled by provider and model.
	LLMRequestsFailed *prometheus.CounterVec

	// LLMRequestDuration observes LLM API request duration in seconds, labeled by provider and model.
	LLMRequestDuration *prometheus.HistogramVec

	// LLMTokensUsed counts tokens consumed, labeled by provider, model and token type.
	LLMTokensUsed *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		// Harvest
		PagesFetched: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_fetched_total",
			Help:      "Total number of OpenAlex pages fetched",
		}, []string{"strategy"}),
		PagesFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_failed_total",
			Help:      "Total number of OpenAlex page requests that failed",
		}, []string{"strategy"}),
		RecordsFetched: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_fetched_total",
			Help:      "Total number of records normalized from OpenAlex",
		}, []string{"strategy"}),
		FetchesCompleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetches_completed_total",
			Help:      "Total number of fetches by outcome status",
		}, []string{"strategy", "status"}),
		FetchDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Duration of OpenAlex fetches in seconds",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"strategy"}),
		RecordsPerFetch: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "records_per_fetch",
			Help:      "Number of records collected per fetch",
			Buckets:   []float64{0, 10, 50, 100, 200, 500, 1000, 2000, 5000},
		}),

		// Analyses
		AnalysesStarted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_started_total",
			Help:      "Total number of analyses started",
		}),
		AnalysesFinished: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_finished_total",
			Help:      "Total number of analyses finished by outcome status",
		}, []string{"status"}),
		AnalysisDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "Duration of analyses in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),
		SinkFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_failures_total",
			Help:      "Total number of failed result sink writes",
		}, []string{"sink"}),

		// LLM
		LLMRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Total number of LLM API requests",
		}, []string{"provider", "model"}),
		LLMRequestsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_failed_total",
			Help:      "Total number of failed LLM API requests",
		}, []string{"provider", "model"}),
		LLMRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "Duration of LLM API requests in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"provider", "model"}),
		LLMTokensUsed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_tokens_used_total",
			Help:      "Total number of tokens used by LLM requests",
		}, []string{"provider", "model", "type"}),
	}
}

// RecordPageFetched records one page that produced records.
func (m *Metrics) RecordPageFetched(strategy string, records int) {
	m.PagesFetched.WithLabelValues(strategy).Inc()
	m.RecordsFetched.WithLabelValues(strategy).Add(float64(records))
}

// RecordPageFailed records a page request that aborted the fetch.
func (m *Metrics) RecordPageFailed(strategy string) {
	m.PagesFailed.WithLabelValues(strategy).Inc()
}

// RecordFetchCompleted records the end of a fetch.
func (m *Metrics) RecordFetchCompleted(strategy, status string, records int, duration time.Duration) {
	m.FetchesCompleted.WithLabelValues(strategy, status).Inc()
	m.FetchDuration.WithLabelValues(strategy).Observe(duration.Seconds())
	m.RecordsPerFetch.Observe(float64(records))
}

// RecordAnalysisStarted records that an analysis has started.
func (m *Metrics) RecordAnalysisStarted() {
	m.AnalysesStarted.Inc()
}

// RecordAnalysisFinished records the outcome of an analysis.
func (m *Metrics) RecordAnalysisFinished(status string, duration time.Duration) {
	m.AnalysesFinished.WithLabelValues(status).Inc()
	m.AnalysisDuration.Observe(duration.Seconds())
}

// RecordSinkFailure records a failed write to a result sink.
func (m *Metrics) RecordSinkFailure(sink string) {
	m.SinkFailures.WithLabelValues(sink).Inc()
}

// RecordLLMRequest records an LLM request.
func (m *Metrics) RecordLLMRequest(provider, model string, duration time.Duration, inputTokens, outputTokens int) {
	m.LLMRequestsTotal.WithLabelValues(provider, model).Inc()
	m.LLMRequestDuration.WithLabelValues(provider, model).Observe(duration.Seconds())
	m.LLMTokensUsed.WithLabelValues(provider, model, "input").Add(float64(inputTokens))
	m.LLMTokensUsed.WithLabelValues(provider, model, "output").Add(float64(outputTokens))
}

// RecordLLMRequestFailed records a failed LLM request.
func (m *Metrics) RecordLLMRequestFailed(provider, model string) {
	m.LLMRequestsFailed.WithLabelValues(provider, model).Inc()
}
