package openalex

import (
	"strings"

	"github.com/helixir/openalex-analyzer/internal/country"
	"github.com/helixir/openalex-analyzer/internal/domain"
)

// CountryNamer maps a territory code to a display name.
type CountryNamer interface {
	Name(code string) string
}

// Normalizer flattens raw works into export records and per-author
// contribution rows. It performs no I/O and is safe for concurrent use.
type Normalizer struct {
	countries CountryNamer
}

// NewNormalizer creates a Normalizer. A nil namer uses country.Default.
func NewNormalizer(countries CountryNamer) *Normalizer {
	if countries == nil {
		countries = country.Default
	}
	return &Normalizer{countries: countries}
}

// Normalize derives one record and one contribution row per authorship from
// work. Missing optional fields fall back to defaults; a nil work yields a
// zero record and no contributions.
func (n *Normalizer) Normalize(work *Work) (domain.Record, []domain.AuthorContribution) {
	if work == nil {
		return domain.Record{}, nil
	}

	record := domain.Record{
		OpenAlexID:      work.ID,
		Title:           workTitle(work),
		PublicationYear: work.PublicationYear,
		CitedByCount:    work.CitedByCount,
		Journal:         journalName(work),
		Type:            work.Type,
		Authors:         make([]string, 0, len(work.Authorships)),
		Institutions:    []string{},
		Countries:       []string{},
		Abstract:        ReconstructAbstract(work.AbstractInvertedIndex),
		Keywords:        keywords(work.Concepts),
	}

	institutions := newOrderedSet()
	countries := newOrderedSet()
	contributions := make([]domain.AuthorContribution, 0, len(work.Authorships))

	for _, authorship := range work.Authorships {
		name := strings.TrimSpace(authorship.Author.DisplayName)
		if name != "" {
			record.Authors = append(record.Authors, name)
		} else {
			name = domain.UnknownAuthor
		}

		code := domain.UnknownCountryCode
		for i, inst := range authorship.Institutions {
			if inst.DisplayName != "" {
				institutions.add(inst.DisplayName)
			}
			cc := strings.TrimSpace(inst.CountryCode)
			if cc == "" {
				continue
			}
			countries.add(n.countries.Name(cc))
			if i == 0 {
				code = cc
			}
		}

		contributions = append(contributions, domain.AuthorContribution{
			WorkID:          work.ID,
			Author:          name,
			CountryCode:     code,
			Journal:         record.Journal,
			PublicationYear: work.PublicationYear,
			CitedByCount:    work.CitedByCount,
		})
	}

	record.Institutions = institutions.items
	record.Countries = countries.items
	return record, contributions
}

func workTitle(work *Work) string {
	if work.Title != "" {
		return work.Title
	}
	return work.DisplayName
}

// journalName follows primary_location.source.display_name.
func journalName(work *Work) string {
	loc := work.PrimaryLocation
	if loc == nil || loc.Source == nil || strings.TrimSpace(loc.Source.DisplayName) == "" {
		return domain.UnknownJournal
	}
	return loc.Source.DisplayName
}

func keywords(concepts []Concept) string {
	names := make([]string, 0, len(concepts))
	for _, c := range concepts {
		if c.DisplayName != "" {
			names = append(names, c.DisplayName)
		}
	}
	return strings.Join(names, domain.ListSeparator)
}

type orderedSet struct {
	seen  map[string]struct{}
	items []string
}

func newOrderedSet() *orderedSet {
	return &orderedSet{seen: make(map[string]struct{}), items: []string{}}
}

func (s *orderedSet) add(v string) {
	if _, ok := s.seen[v]; ok {
		return
	}
	s.seen[v] = struct{}{}
	s.items = append(s.items, v)
}
