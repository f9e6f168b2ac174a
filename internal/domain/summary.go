package domain

// CountEntry is one bucket of a frequency table.
type CountEntry struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// YearCount is the number of records published in Year.
type YearCount struct {
	Year  int `json:"year"`
	Count int `json:"count"`
}

// CountryYearMatrix holds occurrence counts per (country, year) for the top
// countries. Counts[i][j] belongs to Countries[i] and Years[j]; combinations
// that never occur are zero.
type CountryYearMatrix struct {
	Countries []string `json:"countries"`
	Years     []int    `json:"years"`
	Counts    [][]int  `json:"counts"`
}

// IsEmpty reports whether the matrix has no cells.
func (m CountryYearMatrix) IsEmpty() bool {
	return len(m.Countries) == 0 || len(m.Years) == 0
}

// Cell returns the count for country and year, zero if either is absent.
func (m CountryYearMatrix) Cell(country string, year int) int {
	for i, c := range m.Countries {
		if c != country {
			continue
		}
		for j, y := range m.Years {
			if y == year {
				return m.Counts[i][j]
			}
		}
		return 0
	}
	return 0
}

// ImpactPoint places one record on the citations-by-year timeline.
type ImpactPoint struct {
	Title        string `json:"title"`
	Year         int    `json:"year"`
	CitedByCount int    `json:"cited_by_count"`
}

// Summary bundles the frequency views derived from one snapshot.
type Summary struct {
	TotalRecords       int `json:"total_records"`
	TotalContributions int `json:"total_contributions"`
	TotalCitations     int `json:"total_citations"`

	YearCounts               []YearCount       `json:"year_counts"`
	TopCountries             []CountEntry      `json:"top_countries"`
	TopContributionCountries []CountEntry      `json:"top_contribution_countries"`
	TopAuthors               []CountEntry      `json:"top_authors"`
	TopJournals              []CountEntry      `json:"top_journals"`
	CountryYear              CountryYearMatrix `json:"country_year"`
	MostCited                []ImpactPoint     `json:"most_cited"`

	// ImpactPoints holds every dated record, in record order.
	ImpactPoints []ImpactPoint `json:"impact_points"`
}
