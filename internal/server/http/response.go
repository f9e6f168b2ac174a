package httpserver

import (
	"time"

	"github.com/helixir/openalex-analyzer/internal/domain"
)

// Analysis response types for JSON serialization.

type analysisResponse struct {
	AnalysisID        string              `json:"analysis_id"`
	Query             string              `json:"query"`
	Params            domain.SearchParams `json:"params"`
	Status            string              `json:"status"`
	Strategy          string              `json:"strategy,omitempty"`
	PagesAttempted    int                 `json:"pages_attempted"`
	PagesSucceeded    int                 `json:"pages_succeeded"`
	FailedAt          string              `json:"failed_at,omitempty"`
	Failure           string              `json:"failure,omitempty"`
	RecordCount       int                 `json:"record_count"`
	ContributionCount int                 `json:"contribution_count"`
	CreatedAt         time.Time           `json:"created_at"`
	CompletedAt       *time.Time          `json:"completed_at,omitempty"`
	Duration          string              `json:"duration,omitempty"`
	Summary           *domain.Summary     `json:"summary,omitempty"`
}

type runAnalysisResponse struct {
	analysisResponse
	Stored    bool   `json:"stored"`
	Published bool   `json:"published"`
	Message   string `json:"message,omitempty"`
}

type listAnalysesResponse struct {
	Analyses      []analysisResponse `json:"analyses"`
	NextPageToken string             `json:"next_page_token,omitempty"`
	TotalCount    int                `json:"total_count"`
}

type recordsResponse struct {
	Records       []domain.Record `json:"records"`
	NextPageToken string          `json:"next_page_token,omitempty"`
	TotalCount    int             `json:"total_count"`
}

type contributionsResponse struct {
	Contributions []domain.AuthorContribution `json:"contributions"`
	NextPageToken string                      `json:"next_page_token,omitempty"`
	TotalCount    int                         `json:"total_count"`
}

type chatResponse struct {
	Answer       string `json:"answer"`
	Model        string `json:"model"`
	Truncated    bool   `json:"truncated"`
	InputTokens  int    `json:"input_tokens,omitempty"`
	OutputTokens int    `json:"output_tokens,omitempty"`
}

type deleteAnalysisResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// domainAnalysisToResponse converts an analysis. The summary is only
// included when withSummary is set.
func domainAnalysisToResponse(a *domain.Analysis, withSummary bool) analysisResponse {
	resp := analysisResponse{
		AnalysisID:        a.ID.String(),
		Query:             a.Params.Query,
		Params:            a.Params,
		Status:            string(a.Outcome.Status),
		Strategy:          string(a.Outcome.Strategy),
		PagesAttempted:    a.Outcome.PagesAttempted,
		PagesSucceeded:    a.Outcome.PagesSucceeded,
		FailedAt:          a.Outcome.FailedAt,
		Failure:           a.Outcome.Failure,
		RecordCount:       a.RecordCount,
		ContributionCount: a.ContributionCount,
		CreatedAt:         a.CreatedAt,
	}
	if !a.CompletedAt.IsZero() {
		completed := a.CompletedAt
		resp.CompletedAt = &completed
		resp.Duration = a.Duration().String()
	}
	if withSummary {
		summary := a.Summary
		resp.Summary = &summary
	}
	return resp
}
