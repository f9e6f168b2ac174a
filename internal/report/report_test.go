package report

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/mattn/go-runewidth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/openalex-analyzer/internal/domain"
)

func sampleAnalysis() *domain.Analysis {
	a := domain.NewAnalysis(domain.SearchParams{Query: "graphene batteries"})
	a.Outcome = domain.FetchOutcome{Status: domain.FetchStatusCompleted, Strategy: domain.PaginationCursor, PagesAttempted: 2, PagesSucceeded: 2}
	a.Summary = domain.Summary{
		TotalRecords:       3,
		TotalContributions: 4,
		TotalCitations:     13,
		YearCounts:         []domain.YearCount{{Year: 2020, Count: 1}, {Year: 2021, Count: 2}},
		TopCountries:       []domain.CountEntry{{Key: "Germany", Count: 1}, {Key: "ZZ", Count: 1}},
		TopAuthors:         []domain.CountEntry{{Key: "王小明", Count: 2}, {Key: "Ana", Count: 1}},
		MostCited:          []domain.ImpactPoint{{Title: "Graphene anodes", Year: 2020, CitedByCount: 10}},
		ImpactPoints: []domain.ImpactPoint{
			{Title: "Silicon anodes", Year: 2021, CitedByCount: 2},
			{Title: "Graphene anodes", Year: 2020, CitedByCount: 10},
			{Title: "Solid electrolytes", Year: 2021, CitedByCount: 1},
		},
		CountryYear: domain.CountryYearMatrix{
			Countries: []string{"Germany", "ZZ"},
			Years:     []int{2020, 2021},
			Counts:    [][]int{{1, 0}, {0, 1}},
		},
	}
	return a
}

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleAnalysis(), Options{}))
	out := buf.String()

	assert.Contains(t, out, "Query: graphene batteries")
	assert.Contains(t, out, "Records: 3  Author contributions: 4  Citations: 13")
	assert.Contains(t, out, "| ZZ ")
	assert.Contains(t, out, "| 2021 |")
	assert.Contains(t, out, "Top journals\n(none)")
	assert.NotContains(t, out, NoHeatmapNotice)
	assert.NotContains(t, out, "Fetch failed")
	assert.Contains(t, out, "Citation impact by year")
}

func TestImpactByYear(t *testing.T) {
	rows := impactByYear(sampleAnalysis().Summary.ImpactPoints)

	assert.Equal(t, [][]string{
		{"2020", "1", "10", "10"},
		{"2021", "2", "3", "2"},
	}, rows)
	assert.Empty(t, impactByYear(nil))
}

func TestWrite_FailedAndEmptyHeatmap(t *testing.T) {
	a := sampleAnalysis()
	a.Outcome.Status = domain.FetchStatusFailed
	a.Outcome.FailedAt = "cursor abc"
	a.Outcome.Failure = "status 503"
	a.Summary.CountryYear = domain.CountryYearMatrix{}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, a, Options{}))

	assert.Contains(t, buf.String(), "Fetch failed at cursor abc: status 503")
	assert.Contains(t, buf.String(), NoHeatmapNotice)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("closed") }

func TestWrite_ReturnsWriteError(t *testing.T) {
	assert.EqualError(t, Write(failingWriter{}, sampleAnalysis(), Options{}), "closed")
}

func TestTable_AlignsByDisplayWidth(t *testing.T) {
	out := Table([]string{"Author", "Count"}, [][]string{{"王小明", "2"}, {"Ana", "10"}}, 0)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 4)

	width := runewidth.StringWidth(lines[0])
	for _, l := range lines[1:] {
		assert.Equal(t, width, runewidth.StringWidth(l), l)
	}
	assert.True(t, strings.HasPrefix(lines[1], "|---"))
}

func TestTable_TruncatesWideCells(t *testing.T) {
	long := strings.Repeat("x", 100)
	out := Table([]string{"Title"}, [][]string{{long}, {"short\nwith newline"}}, 20)

	assert.NotContains(t, out, long)
	assert.Contains(t, out, "…")
	assert.Contains(t, out, "short with newline")
}

func TestTable_RaggedRows(t *testing.T) {
	out := Table([]string{"A"}, [][]string{{"1", "2"}}, 0)
	assert.Contains(t, out, "| A   |     |")
	assert.Contains(t, out, "| 1   | 2   |")
}
