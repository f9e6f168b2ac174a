// Package domain provides domain models and business logic for the OpenAlex analyzer.
package domain

// Sentinel display values substituted for missing metadata.
const (
	// UnknownJournal is used when a work has no primary location or source.
	UnknownJournal = "Unknown"

	// UnknownCountry is the display name for an absent country code.
	UnknownCountry = "Unknown"

	// UnknownCountryCode is recorded on an author contribution whose first
	// institution carries no country code (or who has no institution at all).
	UnknownCountryCode = "unknown"

	// UnknownAuthor is recorded on an author contribution whose authorship
	// has no display name.
	UnknownAuthor = "Unknown"

	// NoAbstract replaces an empty abstract in the chat digest.
	NoAbstract = "No abstract available."

	// DigestSeparator is the line placed between record digests in the corpus.
	DigestSeparator = "-----"
)

// PaginationStrategy selects how the works API is paged through.
type PaginationStrategy string

const (
	// PaginationCursor follows the opaque meta.next_cursor token, starting at "*".
	PaginationCursor PaginationStrategy = "cursor"
	// PaginationPage requests sequential 1-based page numbers up to a fixed bound.
	PaginationPage PaginationStrategy = "page"
)

// Valid reports whether s names a supported strategy.
func (s PaginationStrategy) Valid() bool {
	return s == PaginationCursor || s == PaginationPage
}

// WorkType is an OpenAlex work type used in the type: filter.
type WorkType string

const (
	WorkTypeArticle            WorkType = "article"
	WorkTypeProceedingsArticle WorkType = "proceedings-article"
	WorkTypeBook               WorkType = "book"
	WorkTypeBookChapter        WorkType = "book-chapter"
	WorkTypeReview             WorkType = "review"
	WorkTypePreprint           WorkType = "preprint"
	WorkTypeDissertation       WorkType = "dissertation"
)

// TypesFromFlags returns the included work types for the classic
// article / conference / book toggles. Articles are always included.
func TypesFromFlags(includeConference, includeBooks bool) []WorkType {
	types := []WorkType{WorkTypeArticle}
	if includeConference {
		types = append(types, WorkTypeProceedingsArticle)
	}
	if includeBooks {
		types = append(types, WorkTypeBook, WorkTypeBookChapter)
	}
	return types
}
