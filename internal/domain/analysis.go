package domain

import (
	"time"

	"github.com/google/uuid"
)

// Analysis is one completed fetch-and-aggregate run.
type Analysis struct {
	ID                uuid.UUID    `json:"id"`
	Params            SearchParams `json:"params"`
	Outcome           FetchOutcome `json:"outcome"`
	Summary           Summary      `json:"summary"`
	RecordCount       int          `json:"record_count"`
	ContributionCount int          `json:"contribution_count"`
	CreatedAt         time.Time    `json:"created_at"`
	CompletedAt       time.Time    `json:"completed_at"`
}

// NewAnalysis starts an analysis for params with a fresh ID.
func NewAnalysis(params SearchParams) *Analysis {
	return &Analysis{
		ID:        uuid.New(),
		Params:    params,
		CreatedAt: time.Now().UTC(),
	}
}

// Duration returns how long the analysis ran, zero if it has not completed.
func (a *Analysis) Duration() time.Duration {
	if a.CompletedAt.IsZero() {
		return 0
	}
	return a.CompletedAt.Sub(a.CreatedAt)
}
