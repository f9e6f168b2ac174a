package openalex

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/segmentio/encoding/json"

	"github.com/helixir/openalex-analyzer/internal/domain"
	"github.com/helixir/openalex-analyzer/internal/papersources"
)

const (
	// DefaultBaseURL is the default OpenAlex API base URL.
	DefaultBaseURL = "https://api.openalex.org"

	// DefaultRateLimit is the default rate limit for requests per second.
	DefaultRateLimit = 10.0

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// MaxPerPage is the largest page size the works endpoint accepts.
	MaxPerPage = 200

	// InitialCursor starts a cursor-paginated session.
	InitialCursor = "*"

	maxBodyBytes  = 64 << 20
	maxErrorBytes = 1 << 20
)

// NormalizedFields is the select list covering every Work field the
// normalizer reads.
var NormalizedFields = []string{
	"id", "title", "display_name", "publication_year", "type", "cited_by_count",
	"primary_location", "authorships", "abstract_inverted_index", "concepts",
}

// Config holds configuration for the OpenAlex client.
type Config struct {
	// BaseURL is the OpenAlex API base URL.
	// Defaults to https://api.openalex.org
	BaseURL string

	// Email is sent as mailto for the polite pool. It is a contact
	// identifier, not a secret.
	Email string

	// Timeout is the request timeout.
	// Defaults to 30 seconds.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	RateLimit float64

	// MaxRetries is passed to the HTTP client. Zero means a failed request
	// is reported to the fetch loop immediately.
	MaxRetries int

	// UserAgent overrides the default User-Agent.
	UserAgent string
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RateLimit == 0 {
		c.RateLimit = DefaultRateLimit
	}
	if c.UserAgent == "" {
		c.UserAgent = papersources.DefaultUserAgent
		if c.Email != "" {
			c.UserAgent += " (mailto:" + c.Email + ")"
		}
	}
}

// PageRequest identifies one page of a works search. Exactly one of Cursor
// or Page is used; Cursor wins when both are set.
type PageRequest struct {
	Params  domain.SearchParams
	PerPage int
	Cursor  string
	Page    int
}

// Client issues works searches against OpenAlex, one request per page.
type Client struct {
	config     Config
	httpClient *papersources.HTTPClient
}

// New creates a new OpenAlex client with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	httpClient := papersources.NewHTTPClient(papersources.HTTPClientConfig{
		Timeout:    cfg.Timeout,
		RateLimit:  cfg.RateLimit,
		BurstSize:  1,
		MaxRetries: cfg.MaxRetries,
		UserAgent:  cfg.UserAgent,
	})

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// NewWithHTTPClient creates a new OpenAlex client with a custom HTTP client.
func NewWithHTTPClient(cfg Config, httpClient *papersources.HTTPClient) *Client {
	cfg.applyDefaults()

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// FetchPage requests one page of works. Any non-200 status is returned as a
// *domain.ExternalAPIError; the caller decides whether to continue.
func (c *Client) FetchPage(ctx context.Context, req PageRequest) (*SearchResponse, error) {
	worksURL, err := c.BuildWorksURL(req)
	if err != nil {
		return nil, fmt.Errorf("building works URL: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, worksURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBytes))
		return nil, domain.NewExternalAPIError("OpenAlex", resp.StatusCode, strings.TrimSpace(string(body)), nil)
	}

	var page SearchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&page); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &page, nil
}

// BuildWorksURL constructs the /works URL for req.
func (c *Client) BuildWorksURL(req PageRequest) (string, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}
	baseURL.Path = strings.TrimSuffix(baseURL.Path, "/") + "/works"

	params := req.Params
	query := url.Values{}

	field := params.SearchField
	if field == "" {
		field = domain.SearchFieldAll
	}
	if params.Query != "" {
		query.Set(field, params.Query)
	}

	if filters := BuildFilters(params); len(filters) > 0 {
		query.Set("filter", strings.Join(filters, ","))
	}

	perPage := req.PerPage
	if perPage <= 0 || perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	query.Set("per_page", strconv.Itoa(perPage))

	switch {
	case req.Cursor != "":
		query.Set("cursor", req.Cursor)
	case req.Page > 0:
		query.Set("page", strconv.Itoa(req.Page))
	}

	if params.Sort != "" {
		query.Set("sort", params.Sort)
	}
	if len(params.Select) > 0 {
		query.Set("select", strings.Join(params.Select, ","))
	}
	if c.config.Email != "" {
		query.Set("mailto", c.config.Email)
	}

	baseURL.RawQuery = query.Encode()
	return baseURL.String(), nil
}

// BuildFilters returns the filter predicates for params in a fixed order:
// year bound first, then the type list.
func BuildFilters(params domain.SearchParams) []string {
	var filters []string

	switch {
	case params.StartYear > 0 && params.EndYear > 0:
		filters = append(filters, fmt.Sprintf("publication_year:%d-%d", params.StartYear, params.EndYear))
	case params.StartYear > 0:
		filters = append(filters, fmt.Sprintf("from_publication_date:%04d-01-01", params.StartYear))
	case params.FromYear > 0:
		filters = append(filters, fmt.Sprintf("from_publication_date:%04d-01-01", params.FromYear))
	}

	if types := params.TypeFilter(); types != "" {
		filters = append(filters, "type:"+types)
	}

	return filters
}
