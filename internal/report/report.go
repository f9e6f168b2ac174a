// Package report renders an analysis summary as plain-text tables for the
// console.
//
// Cells are padded by display width, not byte or rune count, so author and
// journal names in CJK or with combining marks line up.
package report

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/helixir/openalex-analyzer/internal/domain"
)

// NoHeatmapNotice replaces the country by year grid when it has no cells.
const NoHeatmapNotice = "Not enough country/year data to generate heatmap."

// DefaultMaxCellWidth bounds a text cell before it is cut with an ellipsis.
const DefaultMaxCellWidth = 48

// Options tunes Write.
type Options struct {
	// MaxCellWidth bounds every text cell. Zero uses DefaultMaxCellWidth.
	MaxCellWidth int
}

// Write renders the outcome and every summary view of a to w.
func Write(w io.Writer, a *domain.Analysis, opts Options) error {
	if opts.MaxCellWidth <= 0 {
		opts.MaxCellWidth = DefaultMaxCellWidth
	}
	p := &printer{w: w, width: opts.MaxCellWidth}

	s := a.Summary
	p.linef("Query: %s", a.Params.Query)
	p.linef("Status: %s (%d/%d pages, %s strategy)", a.Outcome.Status, a.Outcome.PagesSucceeded, a.Outcome.PagesAttempted, a.Outcome.Strategy)
	if a.Outcome.Failed() {
		p.linef("Fetch failed at %s: %s", a.Outcome.FailedAt, a.Outcome.Failure)
	}
	p.linef("Records: %d  Author contributions: %d  Citations: %d", s.TotalRecords, s.TotalContributions, s.TotalCitations)

	p.section("Publications per year")
	years := make([][]string, len(s.YearCounts))
	for i, y := range s.YearCounts {
		years[i] = []string{strconv.Itoa(y.Year), strconv.Itoa(y.Count)}
	}
	p.table([]string{"Year", "Papers"}, years)

	p.countSection("Top countries", "Country", s.TopCountries)
	p.countSection("Top author countries", "Country code", s.TopContributionCountries)
	p.countSection("Top authors", "Author", s.TopAuthors)
	p.countSection("Top journals", "Journal", s.TopJournals)

	p.section("Most cited")
	cited := make([][]string, len(s.MostCited))
	for i, pt := range s.MostCited {
		cited[i] = []string{pt.Title, yearCell(pt.Year), strconv.Itoa(pt.CitedByCount)}
	}
	p.table([]string{"Title", "Year", "Citations"}, cited)

	p.section("Citation impact by year")
	p.table([]string{"Year", "Papers", "Citations", "Max"}, impactByYear(s.ImpactPoints))

	p.section("Countries by year")
	if s.CountryYear.IsEmpty() {
		p.linef("%s", NoHeatmapNotice)
	} else {
		p.table(heatmap(s.CountryYear))
	}

	return p.err
}

// impactByYear folds the impact timeline into one row per ascending year.
func impactByYear(points []domain.ImpactPoint) [][]string {
	type bucket struct{ papers, citations, max int }
	byYear := make(map[int]*bucket)
	var years []int
	for _, pt := range points {
		b, ok := byYear[pt.Year]
		if !ok {
			b = &bucket{}
			byYear[pt.Year] = b
			years = append(years, pt.Year)
		}
		b.papers++
		b.citations += pt.CitedByCount
		if pt.CitedByCount > b.max {
			b.max = pt.CitedByCount
		}
	}
	sort.Ints(years)

	rows := make([][]string, len(years))
	for i, y := range years {
		b := byYear[y]
		rows[i] = []string{yearCell(y), strconv.Itoa(b.papers), strconv.Itoa(b.citations), strconv.Itoa(b.max)}
	}
	return rows
}

// Table renders headers and rows as a pipe table padded by display width.
// Cells wider than maxCellWidth are cut; maxCellWidth <= 0 disables cutting.
func Table(headers []string, rows [][]string, maxCellWidth int) string {
	cols := len(headers)
	for _, r := range rows {
		if len(r) > cols {
			cols = len(r)
		}
	}

	cell := func(row []string, i int) string {
		if i >= len(row) {
			return ""
		}
		v := strings.Join(strings.Fields(row[i]), " ")
		if maxCellWidth > 0 {
			v = runewidth.Truncate(v, maxCellWidth, "…")
		}
		return v
	}

	widths := make([]int, cols)
	for i := range widths {
		widths[i] = runewidth.StringWidth(cell(headers, i))
		for _, r := range rows {
			if w := runewidth.StringWidth(cell(r, i)); w > widths[i] {
				widths[i] = w
			}
		}
		if widths[i] < 3 {
			widths[i] = 3
		}
	}

	var b strings.Builder
	writeRow := func(row []string) {
		b.WriteString("|")
		for i := 0; i < cols; i++ {
			b.WriteString(" ")
			b.WriteString(runewidth.FillRight(cell(row, i), widths[i]))
			b.WriteString(" |")
		}
		b.WriteString("\n")
	}

	writeRow(headers)
	b.WriteString("|")
	for _, w := range widths {
		b.WriteString(strings.Repeat("-", w+2))
		b.WriteString("|")
	}
	b.WriteString("\n")
	for _, r := range rows {
		writeRow(r)
	}
	return b.String()
}

func heatmap(m domain.CountryYearMatrix) ([]string, [][]string) {
	headers := make([]string, 0, len(m.Years)+1)
	headers = append(headers, "Country")
	for _, y := range m.Years {
		headers = append(headers, strconv.Itoa(y))
	}

	rows := make([][]string, len(m.Countries))
	for i, c := range m.Countries {
		row := make([]string, 0, len(m.Years)+1)
		row = append(row, c)
		for j := range m.Years {
			v := 0
			if i < len(m.Counts) && j < len(m.Counts[i]) {
				v = m.Counts[i][j]
			}
			row = append(row, strconv.Itoa(v))
		}
		rows[i] = row
	}
	return headers, rows
}

func yearCell(y int) string {
	if y == 0 {
		return "-"
	}
	return strconv.Itoa(y)
}

// printer keeps the first write error so Write can render unconditionally.
type printer struct {
	w     io.Writer
	width int
	err   error
}

func (p *printer) linef(format string, args ...interface{}) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format+"\n", args...)
}

func (p *printer) section(title string) {
	p.linef("\n%s", title)
}

func (p *printer) table(headers []string, rows [][]string) {
	if p.err != nil {
		return
	}
	if len(rows) == 0 {
		p.linef("(none)")
		return
	}
	_, p.err = io.WriteString(p.w, Table(headers, rows, p.width))
}

func (p *printer) countSection(title, keyHeader string, entries []domain.CountEntry) {
	p.section(title)
	rows := make([][]string, len(entries))
	for i, e := range entries {
		rows[i] = []string{e.Key, strconv.Itoa(e.Count)}
	}
	p.table([]string{keyHeader, "Count"}, rows)
}
