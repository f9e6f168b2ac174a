// Package events publishes analysis lifecycle events to Kafka and consumes
// analysis requests from it.
//
// Every message carries an Envelope; the payload is event-type specific.
// Messages are keyed by analysis ID so all events of one analysis land on
// the same partition.
package events

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/encoding/json"

	"github.com/helixir/openalex-analyzer/internal/domain"
)

const (
	// AggregateTypeAnalysis is the aggregate type of every analysis event.
	AggregateTypeAnalysis = "analysis"

	// EventAnalysisCompleted is emitted when an analysis finished, whatever its fetch status.
	EventAnalysisCompleted = "analysis.completed"

	// EventAnalysisRequested asks a consumer to run an analysis.
	EventAnalysisRequested = "analysis.requested"

	defaultSource = "openalex-analyzer"
)

// Envelope wraps an event payload with routing metadata.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	Source        string          `json:"source"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Payload       json.RawMessage `json:"payload"`
}

// AnalysisCompletedPayload is the payload of EventAnalysisCompleted.
type AnalysisCompletedPayload struct {
	AnalysisID        string                    `json:"analysis_id"`
	Query             string                    `json:"query"`
	Status            domain.FetchStatus        `json:"status"`
	Strategy          domain.PaginationStrategy `json:"strategy"`
	PagesSucceeded    int                       `json:"pages_succeeded"`
	FailedAt          string                    `json:"failed_at,omitempty"`
	RecordCount       int                       `json:"record_count"`
	ContributionCount int                       `json:"contribution_count"`
	TotalCitations    int                       `json:"total_citations"`
	TopCountries      []domain.CountEntry       `json:"top_countries,omitempty"`
	DurationMS        int64                     `json:"duration_ms"`
}

// AnalysisRequestedPayload is the payload of EventAnalysisRequested.
type AnalysisRequestedPayload struct {
	Params domain.SearchParams `json:"params"`
}

// NewEnvelope builds an envelope around payload.
func NewEnvelope(eventType, aggregateID, source string, payload interface{}) (Envelope, error) {
	if eventType == "" {
		return Envelope{}, fmt.Errorf("event_type is required")
	}
	if aggregateID == "" {
		return Envelope{}, fmt.Errorf("aggregate_id is required")
	}
	if source == "" {
		source = defaultSource
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal payload: %w", err)
	}

	return Envelope{
		EventID:       uuid.New().String(),
		EventType:     eventType,
		AggregateType: AggregateTypeAnalysis,
		AggregateID:   aggregateID,
		Source:        source,
		OccurredAt:    time.Now().UTC(),
		Payload:       payloadBytes,
	}, nil
}

// CompletedPayload summarizes an analysis for EventAnalysisCompleted.
func CompletedPayload(a *domain.Analysis) AnalysisCompletedPayload {
	return AnalysisCompletedPayload{
		AnalysisID:        a.ID.String(),
		Query:             a.Params.Query,
		Status:            a.Outcome.Status,
		Strategy:          a.Outcome.Strategy,
		PagesSucceeded:    a.Outcome.PagesSucceeded,
		FailedAt:          a.Outcome.FailedAt,
		RecordCount:       a.RecordCount,
		ContributionCount: a.ContributionCount,
		TotalCitations:    a.Summary.TotalCitations,
		TopCountries:      a.Summary.TopCountries,
		DurationMS:        a.Duration().Milliseconds(),
	}
}
