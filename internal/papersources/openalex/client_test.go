package openalex

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/openalex-analyzer/internal/domain"
	"github.com/helixir/openalex-analyzer/internal/papersources"
)

// newTestClient creates a client configured for testing with the given server URL.
func newTestClient(serverURL string) *Client {
	cfg := Config{
		BaseURL:   serverURL,
		Email:     "test@example.com",
		Timeout:   5 * time.Second,
		RateLimit: 100,
	}

	httpClient := papersources.NewHTTPClient(papersources.HTTPClientConfig{
		Timeout:   cfg.Timeout,
		RateLimit: cfg.RateLimit,
		BurstSize: 100,
		UserAgent: "TestClient/1.0",
	})

	return NewWithHTTPClient(cfg, httpClient)
}

const samplePageJSON = `{
  "meta": {"count": 2, "db_response_time_ms": 12, "page": null, "per_page": 200, "next_cursor": "IlsxNjA5"},
  "results": [
    {
      "id": "https://openalex.org/W2741809807",
      "title": "CRISPR-Cas Systems for Editing",
      "publication_year": 2014,
      "type": "article",
      "cited_by_count": 5000,
      "primary_location": {"source": {"display_name": "Nature Biotechnology", "type": "journal"}},
      "authorships": [
        {"author": {"display_name": "John Smith"}, "institutions": [{"display_name": "MIT", "country_code": "US"}]}
      ],
      "concepts": [{"display_name": "CRISPR", "score": 0.9}],
      "abstract_inverted_index": {"CRISPR": [0], "is": [1], "useful.": [2]}
    },
    {
      "id": "https://openalex.org/W2",
      "title": "Second",
      "publication_year": 2023,
      "primary_location": null,
      "authorships": [],
      "abstract_inverted_index": null
    }
  ]
}`

func TestClient_FetchPage(t *testing.T) {
	t.Run("decodes a page", func(t *testing.T) {
		var gotQuery url.Values
		var gotPath string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			gotQuery = r.URL.Query()
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(samplePageJSON))
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		page, err := client.FetchPage(context.Background(), PageRequest{
			Params:  domain.SearchParams{Query: "crispr", StartYear: 2014, EndYear: 2023},
			PerPage: 200,
			Cursor:  InitialCursor,
		})
		require.NoError(t, err)

		assert.Equal(t, "/works", gotPath)
		assert.Equal(t, "crispr", gotQuery.Get("search"))
		assert.Equal(t, "*", gotQuery.Get("cursor"))
		assert.Equal(t, "test@example.com", gotQuery.Get("mailto"))

		assert.Equal(t, "IlsxNjA5", page.Meta.NextCursor)
		require.Len(t, page.Results, 2)
		assert.Equal(t, "CRISPR-Cas Systems for Editing", page.Results[0].Title)
		assert.Equal(t, "US", page.Results[0].Authorships[0].Institutions[0].CountryCode)
		assert.Equal(t, "CRISPR is useful.", ReconstructAbstract(page.Results[0].AbstractInvertedIndex))
		assert.Nil(t, page.Results[1].PrimaryLocation)
		assert.Empty(t, page.Results[1].AbstractInvertedIndex)
	})

	t.Run("non-200 becomes ExternalAPIError", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("upstream busy\n"))
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		_, err := client.FetchPage(context.Background(), PageRequest{Params: domain.SearchParams{Query: "x"}, Page: 2})
		require.Error(t, err)

		var apiErr *domain.ExternalAPIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
		assert.Equal(t, "upstream busy", apiErr.Message)
		assert.Equal(t, "OpenAlex", apiErr.Source)
	})

	t.Run("malformed body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"results": [`))
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		_, err := client.FetchPage(context.Background(), PageRequest{Params: domain.SearchParams{Query: "x"}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "decoding response")
	})

	t.Run("canceled context", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(samplePageJSON))
		}))
		defer server.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		client := newTestClient(server.URL)
		_, err := client.FetchPage(ctx, PageRequest{Params: domain.SearchParams{Query: "x"}})
		require.Error(t, err)
	})
}

func TestClient_BuildWorksURL(t *testing.T) {
	client := newTestClient("https://api.example.org")

	tests := []struct {
		name     string
		req      PageRequest
		expected map[string]string
		absent   []string
	}{
		{
			name: "cursor with year range and types",
			req: PageRequest{
				Params: domain.SearchParams{
					Query:     "graphene batteries",
					StartYear: 2020,
					EndYear:   2021,
					Types:     domain.TypesFromFlags(true, false),
				},
				PerPage: 200,
				Cursor:  "*",
			},
			expected: map[string]string{
				"search":   "graphene batteries",
				"filter":   "publication_year:2020-2021,type:article|proceedings-article",
				"per_page": "200",
				"cursor":   "*",
			},
			absent: []string{"page", "sort", "select"},
		},
		{
			name: "page with from year, sort and select",
			req: PageRequest{
				Params: domain.SearchParams{
					Query:       "llm",
					SearchField: domain.SearchFieldTitleAndAbstract,
					FromYear:    2022,
					Sort:        "cited_by_count:desc",
					Select:      []string{"id", "title"},
				},
				PerPage: 100,
				Page:    3,
			},
			expected: map[string]string{
				"title_and_abstract.search": "llm",
				"filter":                    "from_publication_date:2022-01-01",
				"per_page":                  "100",
				"page":                      "3",
				"sort":                      "cited_by_count:desc",
				"select":                    "id,title",
			},
			absent: []string{"search", "cursor"},
		},
		{
			name: "per page clamps to maximum",
			req: PageRequest{
				Params:  domain.SearchParams{Query: "x"},
				PerPage: 1000,
			},
			expected: map[string]string{"per_page": "200"},
			absent:   []string{"filter", "cursor", "page"},
		},
		{
			name: "start year only",
			req: PageRequest{
				Params: domain.SearchParams{Query: "x", StartYear: 2019},
			},
			expected: map[string]string{"filter": "from_publication_date:2019-01-01"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := client.BuildWorksURL(tt.req)
			require.NoError(t, err)

			u, err := url.Parse(raw)
			require.NoError(t, err)
			assert.Equal(t, "/works", u.Path)

			q := u.Query()
			for k, v := range tt.expected {
				assert.Equal(t, v, q.Get(k), "param %s", k)
			}
			for _, k := range tt.absent {
				assert.False(t, q.Has(k), "param %s should be absent", k)
			}
			assert.Equal(t, "test@example.com", q.Get("mailto"))
		})
	}
}

func TestClient_BuildWorksURL_InvalidBase(t *testing.T) {
	client := newTestClient("://bad")
	_, err := client.BuildWorksURL(PageRequest{})
	assert.Error(t, err)
}

func TestConfig_ApplyDefaults(t *testing.T) {
	cfg := Config{Email: "me@example.org"}
	cfg.applyDefaults()

	assert.Equal(t, DefaultBaseURL, cfg.BaseURL)
	assert.Equal(t, DefaultTimeout, cfg.Timeout)
	assert.Equal(t, DefaultRateLimit, cfg.RateLimit)
	assert.Equal(t, papersources.DefaultUserAgent+" (mailto:me@example.org)", cfg.UserAgent)
}
