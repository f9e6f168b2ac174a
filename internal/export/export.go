// Package export shapes a corpus snapshot for the tabular export and the
// question-answering corpus.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/helixir/openalex-analyzer/internal/domain"
)

// File names written by WriteDir.
const (
	RecordsFile       = "openalex_papers.csv"
	ContributionsFile = "author_contributions.csv"
	CorpusFile        = "corpus.txt"
)

// DigestSeparator is the line placed between record digests in the corpus.
const DigestSeparator = domain.DigestSeparator

// RecordHeader is the column order of the records table.
var RecordHeader = []string{
	"openalex_id",
	"title",
	"publication_year",
	"cited_by_count",
	"source_name",
	"authors_str",
	"institutions",
	"countries_str",
	"abstract",
	"keywords",
}

// ContributionHeader is the column order of the contributions table.
var ContributionHeader = []string{
	"work_id",
	"author",
	"country_code",
	"journal",
	"publication_year",
	"cited_by_count",
}

// RecordRow flattens a record into RecordHeader order. List columns are
// joined with domain.ListSeparator; an absent year is left blank.
func RecordRow(r domain.Record) []string {
	return []string{
		r.OpenAlexID,
		r.Title,
		year(r.PublicationYear),
		strconv.Itoa(r.CitedByCount),
		r.Journal,
		r.AuthorsString(),
		r.InstitutionsString(),
		r.CountriesString(),
		r.Abstract,
		r.Keywords,
	}
}

// Rows flattens records into table rows without a header.
func Rows(records []domain.Record) [][]string {
	rows := make([][]string, len(records))
	for i, r := range records {
		rows[i] = RecordRow(r)
	}
	return rows
}

// ContributionRow flattens a contribution into ContributionHeader order.
func ContributionRow(c domain.AuthorContribution) []string {
	return []string{
		c.WorkID,
		c.Author,
		c.CountryCode,
		c.Journal,
		year(c.PublicationYear),
		strconv.Itoa(c.CitedByCount),
	}
}

// WriteRecordsCSV writes the header and one line per record.
func WriteRecordsCSV(w io.Writer, records []domain.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(RecordHeader); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, r := range records {
		if err := cw.Write(RecordRow(r)); err != nil {
			return fmt.Errorf("writing record %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteContributionsCSV writes the header and one line per contribution.
func WriteContributionsCSV(w io.Writer, contributions []domain.AuthorContribution) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ContributionHeader); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, c := range contributions {
		if err := cw.Write(ContributionRow(c)); err != nil {
			return fmt.Errorf("writing contribution %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// BuildCorpus joins record digests into one text, separated by
// DigestSeparator lines.
func BuildCorpus(digests []string) string {
	return strings.Join(digests, "\n"+DigestSeparator+"\n")
}

// Paths lists the files written by WriteDir.
type Paths struct {
	Records       string
	Contributions string
	Corpus        string
}

// WriteDir creates dir if needed and writes the records table, the
// contributions table and the corpus into it.
func WriteDir(dir string, snapshot *domain.CorpusSnapshot) (Paths, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Paths{}, fmt.Errorf("creating output directory: %w", err)
	}

	paths := Paths{
		Records:       filepath.Join(dir, RecordsFile),
		Contributions: filepath.Join(dir, ContributionsFile),
		Corpus:        filepath.Join(dir, CorpusFile),
	}

	if err := writeFile(paths.Records, func(w io.Writer) error {
		return WriteRecordsCSV(w, snapshot.Records)
	}); err != nil {
		return Paths{}, err
	}
	if err := writeFile(paths.Contributions, func(w io.Writer) error {
		return WriteContributionsCSV(w, snapshot.Contributions)
	}); err != nil {
		return Paths{}, err
	}
	if err := writeFile(paths.Corpus, func(w io.Writer) error {
		_, err := io.WriteString(w, BuildCorpus(snapshot.Digests))
		return err
	}); err != nil {
		return Paths{}, err
	}
	return paths, nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	return nil
}

func year(y int) string {
	if y == 0 {
		return ""
	}
	return strconv.Itoa(y)
}
