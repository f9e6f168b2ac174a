package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Search field names accepted by the works endpoint.
const (
	SearchFieldAll              = "search"
	SearchFieldTitleAndAbstract = "title_and_abstract.search"
)

// DefaultRecordCap bounds a session when the caller does not set a cap.
const DefaultRecordCap = 2000

// SearchParams is the finished parameter set for one fetch session.
// It is produced by the CLI flags or the HTTP API; the fetch pipeline never
// collects input interactively.
type SearchParams struct {
	// Query is the free-text search string.
	Query string `json:"query" validate:"required,max=1000"`

	// SearchField selects between full-text search and the title/abstract scoped search.
	// Empty means SearchFieldAll.
	SearchField string `json:"search_field,omitempty" validate:"omitempty,oneof=search title_and_abstract.search"`

	// StartYear and EndYear form an inclusive publication year range.
	StartYear int `json:"start_year,omitempty" validate:"omitempty,min=1000,max=9999"`
	EndYear   int `json:"end_year,omitempty" validate:"omitempty,min=1000,max=9999,gtefield=StartYear"`

	// FromYear is a publication date lower bound used when no full range is set.
	FromYear int `json:"from_year,omitempty" validate:"omitempty,min=1000,max=9999"`

	// Types restricts results to the listed work types. Empty means no type filter.
	Types []WorkType `json:"types,omitempty" validate:"dive,required"`

	// RecordCap stops fetching once this many records were accumulated.
	// Zero means unlimited.
	RecordCap int `json:"record_cap,omitempty" validate:"min=0"`

	// Sort is an optional sort expression, e.g. "cited_by_count:desc".
	Sort string `json:"sort,omitempty"`

	// Select is an optional field allow-list to reduce payload size.
	Select []string `json:"select,omitempty"`
}

var paramsValidator = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the parameters and returns a *ValidationError for the
// first offending field.
func (p SearchParams) Validate() error {
	if strings.TrimSpace(p.Query) == "" {
		return NewValidationError("query", "query is required")
	}
	if err := paramsValidator.Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return NewValidationError(fe.Field(), fmt.Sprintf("failed %q constraint", fe.Tag()))
		}
		return fmt.Errorf("validating search params: %w", err)
	}
	if p.EndYear > 0 && p.StartYear == 0 {
		return NewValidationError("StartYear", "start year is required when end year is set")
	}
	return nil
}

// TypeFilter returns the pipe-joined type list, or "" when no types are set.
func (p SearchParams) TypeFilter() string {
	if len(p.Types) == 0 {
		return ""
	}
	parts := make([]string, 0, len(p.Types))
	for _, t := range p.Types {
		parts = append(parts, string(t))
	}
	return strings.Join(parts, "|")
}
