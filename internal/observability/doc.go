// Package observability provides logging, metrics and context helpers for
// the analyzer.
//
// # Logging
//
// Create a logger from configuration:
//
//	logger := observability.NewLogger(observability.LoggingConfig{
//	    Level:  "info",
//	    Format: "json",
//	    Output: "stdout",
//	})
//	logger = observability.WithAnalysisContext(logger, analysisID, query)
//
// # Metrics
//
// Metrics satisfies the metrics interfaces of the harvest and pipeline
// packages:
//
//	metrics := observability.NewMetrics("openalex_analyzer")
//	fetcher := harvest.NewFetcher(client, normalizer, cfg, logger, metrics)
//
// # Standard Fields
//
//   - request_id: HTTP request identifier
//   - analysis_id: analysis identifier
//   - query: OpenAlex search text
//   - strategy: pagination strategy (cursor, page)
//   - component: emitting component
package observability
