// Package analysis computes frequency views over a corpus snapshot.
//
// Every function is pure: inputs are never modified and the same input in
// the same order always produces the same output. Top-N tables are ordered
// by descending count with ties kept in first-encountered order. A
// non-positive n means no limit.
package analysis

import (
	"sort"

	"github.com/helixir/openalex-analyzer/internal/domain"
)

// DefaultTopN is the table length used by Summarize callers that do not choose one.
const DefaultTopN = 10

// counter tallies keys while remembering the order they first appeared in.
type counter struct {
	index map[string]int
	items []domain.CountEntry
}

func newCounter() *counter {
	return &counter{index: make(map[string]int)}
}

func (c *counter) add(key string) {
	if i, ok := c.index[key]; ok {
		c.items[i].Count++
		return
	}
	c.index[key] = len(c.items)
	c.items = append(c.items, domain.CountEntry{Key: key, Count: 1})
}

func (c *counter) top(n int) []domain.CountEntry {
	out := make([]domain.CountEntry, len(c.items))
	copy(out, c.items)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Count > out[j].Count
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// CountValues returns the n most frequent values.
func CountValues(values []string, n int) []domain.CountEntry {
	c := newCounter()
	for _, v := range values {
		c.add(v)
	}
	return c.top(n)
}

// YearCounts returns the number of records per publication year. Years
// without records are absent; records without a year are skipped.
func YearCounts(records []domain.Record) map[int]int {
	counts := make(map[int]int)
	for _, r := range records {
		if r.PublicationYear == 0 {
			continue
		}
		counts[r.PublicationYear]++
	}
	return counts
}

// YearSeries returns YearCounts ordered by ascending year.
func YearSeries(records []domain.Record) []domain.YearCount {
	counts := YearCounts(records)
	series := make([]domain.YearCount, 0, len(counts))
	for year, n := range counts {
		series = append(series, domain.YearCount{Year: year, Count: n})
	}
	sort.Slice(series, func(i, j int) bool {
		return series[i].Year < series[j].Year
	})
	return series
}

// TopCountries counts resolved country names across the record-level
// country sets.
func TopCountries(records []domain.Record, n int) []domain.CountEntry {
	c := newCounter()
	for _, r := range records {
		for _, country := range r.Countries {
			c.add(country)
		}
	}
	return c.top(n)
}

// TopContributionCountries counts country codes across contribution rows,
// one occurrence per authorship.
func TopContributionCountries(contributions []domain.AuthorContribution, n int) []domain.CountEntry {
	c := newCounter()
	for _, a := range contributions {
		c.add(a.CountryCode)
	}
	return c.top(n)
}

// TopAuthors counts author names across records.
func TopAuthors(records []domain.Record, n int) []domain.CountEntry {
	c := newCounter()
	for _, r := range records {
		for _, author := range r.Authors {
			c.add(author)
		}
	}
	return c.top(n)
}

// TopJournals counts journal names across records.
func TopJournals(records []domain.Record, n int) []domain.CountEntry {
	journals := make([]string, len(records))
	for i, r := range records {
		journals[i] = r.Journal
	}
	return CountValues(journals, n)
}

// CountryYear counts (country, year) occurrences for the n countries that
// occur most often among the records that have a year. Rows follow the
// country ranking; columns are the ascending years seen for those
// countries. The matrix is empty when no record has both a country and a year.
func CountryYear(records []domain.Record, n int) domain.CountryYearMatrix {
	c := newCounter()
	for _, r := range records {
		if r.PublicationYear == 0 {
			continue
		}
		for _, country := range r.Countries {
			c.add(country)
		}
	}

	ranked := c.top(n)
	if len(ranked) == 0 {
		return domain.CountryYearMatrix{Countries: []string{}, Years: []int{}, Counts: [][]int{}}
	}

	row := make(map[string]int, len(ranked))
	countries := make([]string, len(ranked))
	for i, e := range ranked {
		row[e.Key] = i
		countries[i] = e.Key
	}

	yearSet := make(map[int]struct{})
	for _, r := range records {
		if r.PublicationYear == 0 {
			continue
		}
		for _, country := range r.Countries {
			if _, ok := row[country]; ok {
				yearSet[r.PublicationYear] = struct{}{}
				break
			}
		}
	}
	years := make([]int, 0, len(yearSet))
	for y := range yearSet {
		years = append(years, y)
	}
	sort.Ints(years)

	col := make(map[int]int, len(years))
	for j, y := range years {
		col[y] = j
	}

	counts := make([][]int, len(countries))
	for i := range counts {
		counts[i] = make([]int, len(years))
	}
	for _, r := range records {
		if r.PublicationYear == 0 {
			continue
		}
		for _, country := range r.Countries {
			if i, ok := row[country]; ok {
				counts[i][col[r.PublicationYear]]++
			}
		}
	}

	return domain.CountryYearMatrix{Countries: countries, Years: years, Counts: counts}
}

// ImpactPoints places every dated record on the citations-by-year timeline,
// in record order.
func ImpactPoints(records []domain.Record) []domain.ImpactPoint {
	points := make([]domain.ImpactPoint, 0, len(records))
	for _, r := range records {
		if r.PublicationYear == 0 {
			continue
		}
		points = append(points, domain.ImpactPoint{
			Title:        r.Title,
			Year:         r.PublicationYear,
			CitedByCount: r.CitedByCount,
		})
	}
	return points
}

// MostCited returns the n dated records with the most citations.
func MostCited(records []domain.Record, n int) []domain.ImpactPoint {
	return mostCited(ImpactPoints(records), n)
}

// mostCited ranks a copy of points.
func mostCited(all []domain.ImpactPoint, n int) []domain.ImpactPoint {
	points := make([]domain.ImpactPoint, len(all))
	copy(points, all)
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].CitedByCount > points[j].CitedByCount
	})
	if n > 0 && len(points) > n {
		points = points[:n]
	}
	return points
}

// Summarize bundles every view over snapshot with top-N tables of length n.
func Summarize(snapshot *domain.CorpusSnapshot, n int) domain.Summary {
	if snapshot == nil {
		snapshot = domain.NewCorpusSnapshot()
	}
	records := snapshot.Records

	total := 0
	for _, r := range records {
		total += r.CitedByCount
	}
	points := ImpactPoints(records)

	return domain.Summary{
		TotalRecords:             len(records),
		TotalContributions:       len(snapshot.Contributions),
		TotalCitations:           total,
		YearCounts:               YearSeries(records),
		TopCountries:             TopCountries(records, n),
		TopContributionCountries: TopContributionCountries(snapshot.Contributions, n),
		TopAuthors:               TopAuthors(records, n),
		TopJournals:              TopJournals(records, n),
		CountryYear:              CountryYear(records, n),
		MostCited:                mostCited(points, n),
		ImpactPoints:             points,
	}
}
