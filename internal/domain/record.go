package domain

import (
	"fmt"
	"strings"
)

// ListSeparator joins list-typed columns when they are flattened for export.
const ListSeparator = "; "

// Record is one normalized work: one row of the export table.
// Authors keep the source order of authorships; Institutions and Countries
// are deduplicated and kept in first-seen order.
type Record struct {
	OpenAlexID      string   `json:"openalex_id"`
	Title           string   `json:"title"`
	PublicationYear int      `json:"publication_year"`
	CitedByCount    int      `json:"cited_by_count"`
	Journal         string   `json:"source_name"`
	Type            string   `json:"type,omitempty"`
	Authors         []string `json:"authors"`
	Institutions    []string `json:"institutions"`
	Countries       []string `json:"countries"`
	Abstract        string   `json:"abstract"`
	Keywords        string   `json:"keywords"`
}

// AuthorsString returns the authors joined with ListSeparator.
func (r Record) AuthorsString() string {
	return strings.Join(r.Authors, ListSeparator)
}

// InstitutionsString returns the institutions joined with ListSeparator.
func (r Record) InstitutionsString() string {
	return strings.Join(r.Institutions, ListSeparator)
}

// CountriesString returns the countries joined with ListSeparator.
func (r Record) CountriesString() string {
	return strings.Join(r.Countries, ListSeparator)
}

// Digest renders the record as a text block for the question-answering corpus:
// identifier, title, a one-line metadata summary and the full abstract.
func (r Record) Digest() string {
	abstract := r.Abstract
	if strings.TrimSpace(abstract) == "" {
		abstract = NoAbstract
	}
	authors := r.AuthorsString()
	if authors == "" {
		authors = UnknownAuthor
	}

	var b strings.Builder
	fmt.Fprintf(&b, "ID: %s\n", r.OpenAlexID)
	fmt.Fprintf(&b, "Title: %s\n", r.Title)
	fmt.Fprintf(&b, "Meta: Year %d | Journal %s | Citations %d | Authors %s\n",
		r.PublicationYear, r.Journal, r.CitedByCount, authors)
	fmt.Fprintf(&b, "Abstract: %s", abstract)
	return b.String()
}

// AuthorContribution is one row of the analytic table: a single authorship
// of a work. A paper with several authors yields several rows.
type AuthorContribution struct {
	WorkID          string `json:"work_id"`
	Author          string `json:"author"`
	CountryCode     string `json:"country_code"`
	Journal         string `json:"journal"`
	PublicationYear int    `json:"publication_year"`
	CitedByCount    int    `json:"cited_by_count"`
}
