package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/helixir/openalex-analyzer/internal/domain"
)

// AnalysisRepository stores completed analyses and their snapshots.
type AnalysisRepository interface {
	// Save writes the analysis row together with every record and author
	// contribution of the snapshot in one transaction.
	// Returns domain.ErrAlreadyExists if the analysis ID is taken.
	Save(ctx context.Context, analysis *domain.Analysis, snapshot *domain.CorpusSnapshot) error

	// Get returns the analysis without its rows.
	// Returns domain.ErrNotFound if no analysis has that ID.
	Get(ctx context.Context, id uuid.UUID) (*domain.Analysis, error)

	// List returns analyses matching the filter, newest first, and the total
	// number of matches ignoring pagination.
	List(ctx context.Context, filter AnalysisFilter) ([]*domain.Analysis, int64, error)

	// Snapshot rebuilds the stored snapshot in original record order.
	// Returns domain.ErrNotFound if no analysis has that ID.
	Snapshot(ctx context.Context, id uuid.UUID) (*domain.CorpusSnapshot, error)

	// Delete removes the analysis and its rows.
	// Returns domain.ErrNotFound if no analysis has that ID.
	Delete(ctx context.Context, id uuid.UUID) error
}

// AnalysisFilter narrows List results.
type AnalysisFilter struct {
	// Status keeps only analyses whose fetch ended with one of these statuses.
	Status []domain.FetchStatus

	// Query keeps analyses whose search string contains this text (case-insensitive).
	Query string

	Limit  int
	Offset int
}

// Validate applies pagination defaults and rejects unknown statuses.
func (f *AnalysisFilter) Validate() error {
	applyPaginationDefaults(&f.Limit, &f.Offset)
	for _, s := range f.Status {
		switch s {
		case domain.FetchStatusCompleted, domain.FetchStatusCapReached, domain.FetchStatusMaxPages,
			domain.FetchStatusFailed, domain.FetchStatusCanceled:
		default:
			return domain.NewValidationError("status", "unknown fetch status "+string(s))
		}
	}
	return nil
}
