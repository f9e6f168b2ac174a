// Package openalex provides a client for the OpenAlex works API and the
// normalization of raw works into export records.
//
// OpenAlex is a free, open catalog of scholarly papers, authors, venues,
// institutions, and concepts. Every field of a work is treated as optional:
// the catalog omits metadata inconsistently and decoding never fails on a
// missing or null value.
//
// API Documentation: https://docs.openalex.org/
package openalex

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// SearchResponse represents the top-level response from the works endpoint.
type SearchResponse struct {
	Meta    Meta   `json:"meta"`
	Results []Work `json:"results"`
}

// Meta contains metadata about the search results including pagination info.
// NextCursor is empty when the server sent null or omitted it.
type Meta struct {
	Count      int    `json:"count"`
	DBTime     int    `json:"db_response_time_ms"`
	Page       int    `json:"page"`
	PerPage    int    `json:"per_page"`
	NextCursor string `json:"next_cursor"`
}

// Work represents an academic work in OpenAlex.
type Work struct {
	ID              string       `json:"id"`
	DOI             string       `json:"doi"`
	Title           string       `json:"title"`
	DisplayName     string       `json:"display_name"`
	PublicationYear int          `json:"publication_year"`
	PublicationDate string       `json:"publication_date"`
	Type            string       `json:"type"`
	CitedByCount    int          `json:"cited_by_count"`
	Authorships     []Authorship `json:"authorships"`
	PrimaryLocation *Location    `json:"primary_location"`
	Concepts        []Concept    `json:"concepts"`

	// AbstractInvertedIndex keeps the words in the order they appear in the payload.
	AbstractInvertedIndex InvertedIndex `json:"abstract_inverted_index"`
}

// Authorship represents an author's contribution to a work.
type Authorship struct {
	AuthorPosition string        `json:"author_position"`
	Author         AuthorInfo    `json:"author"`
	Institutions   []Institution `json:"institutions"`
}

// AuthorInfo contains basic author information.
type AuthorInfo struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Orcid       string `json:"orcid"`
}

// Institution is an affiliation listed on an authorship.
type Institution struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	CountryCode string `json:"country_code"`
	Type        string `json:"type"`
}

// Location represents where a work is available.
type Location struct {
	Source *Source `json:"source"`
}

// Source represents a publication venue (journal, repository, etc.).
type Source struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Type        string `json:"type"`
}

// Concept is a topic tag assigned to a work.
type Concept struct {
	ID          string  `json:"id"`
	DisplayName string  `json:"display_name"`
	Score       float64 `json:"score"`
}

// IndexEntry is one word of an inverted index and the token positions it occupies.
type IndexEntry struct {
	Word      string
	Positions []int
}

// InvertedIndex is the OpenAlex abstract encoding: a JSON object mapping each
// distinct word to its zero-based token positions. Entries keep the key order
// of the payload, so decoding is deterministic even for malformed indexes
// that assign one position to several words.
type InvertedIndex []IndexEntry

// Len returns the total number of positions across all words.
func (idx InvertedIndex) Len() int {
	n := 0
	for _, e := range idx {
		n += len(e.Positions)
	}
	return n
}

// UnmarshalJSON decodes the index object in key order. A null or non-object
// value yields an empty index; a word whose positions are not an integer
// array is skipped.
func (idx *InvertedIndex) UnmarshalJSON(data []byte) error {
	*idx = nil

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("reading inverted index: %w", err)
	}

	var entries InvertedIndex
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("reading inverted index key: %w", err)
		}
		word, ok := tok.(string)
		if !ok {
			return fmt.Errorf("inverted index key %v is not a string", tok)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("reading positions of %q: %w", word, err)
		}
		var positions []int
		if err := json.Unmarshal(raw, &positions); err != nil {
			continue
		}
		entries = append(entries, IndexEntry{Word: word, Positions: positions})
	}

	*idx = entries
	return nil
}

// MarshalJSON encodes the index as an object with keys in entry order.
func (idx InvertedIndex) MarshalJSON() ([]byte, error) {
	if idx == nil {
		return []byte("null"), nil
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range idx {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.Word)
		if err != nil {
			return nil, err
		}
		positions := e.Positions
		if positions == nil {
			positions = []int{}
		}
		value, err := json.Marshal(positions)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
