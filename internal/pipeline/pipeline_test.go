package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/helixir/openalex-analyzer/internal/domain"
	"github.com/helixir/openalex-analyzer/internal/export"
	"github.com/helixir/openalex-analyzer/internal/harvest"
	"github.com/helixir/openalex-analyzer/internal/observability"
	"github.com/helixir/openalex-analyzer/internal/papersources"
	"github.com/helixir/openalex-analyzer/internal/papersources/openalex"
)

// Compile-time checks that the production collaborators fit.
var (
	_ Fetcher     = (*harvest.Fetcher)(nil)
	_ Metrics     = (*observability.Metrics)(nil)
	_ ChatMetrics = (*observability.Metrics)(nil)
)

type stubFetcher struct {
	snapshot *domain.CorpusSnapshot
	outcome  domain.FetchOutcome
	calls    int
	gotCtx   context.Context
}

func (f *stubFetcher) Fetch(ctx context.Context, _ domain.SearchParams) (*domain.CorpusSnapshot, domain.FetchOutcome) {
	f.calls++
	f.gotCtx = ctx
	return f.snapshot, f.outcome
}

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Save(ctx context.Context, a *domain.Analysis, snapshot *domain.CorpusSnapshot) error {
	args := m.Called(ctx, a, snapshot)
	return args.Error(0)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishAnalysisCompleted(ctx context.Context, a *domain.Analysis) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

type recordingMetrics struct {
	mu       sync.Mutex
	started  int
	finished []string
	sinks    []string
}

func (m *recordingMetrics) RecordAnalysisStarted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started++
}

func (m *recordingMetrics) RecordAnalysisFinished(status string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finished = append(m.finished, status)
}

func (m *recordingMetrics) RecordSinkFailure(sink string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sinks = append(m.sinks, sink)
}

func twoRecordSnapshot() *domain.CorpusSnapshot {
	s := domain.NewCorpusSnapshot()
	s.Append(domain.Record{OpenAlexID: "W1", PublicationYear: 2021, CitedByCount: 4, Authors: []string{"Ana"}, Countries: []string{"Germany"}},
		[]domain.AuthorContribution{{WorkID: "W1", Author: "Ana", CountryCode: "DE"}})
	s.Append(domain.Record{OpenAlexID: "W2", PublicationYear: 2022, CitedByCount: 6}, nil)
	return s
}

func TestService_Run(t *testing.T) {
	ctx := context.Background()
	params := domain.SearchParams{Query: "graphene"}

	t.Run("summarizes and hands off to sinks", func(t *testing.T) {
		fetcher := &stubFetcher{
			snapshot: twoRecordSnapshot(),
			outcome:  domain.FetchOutcome{Status: domain.FetchStatusCompleted, Strategy: domain.PaginationCursor, PagesSucceeded: 2},
		}
		store := &mockStore{}
		store.On("Save", mock.Anything, mock.AnythingOfType("*domain.Analysis"), fetcher.snapshot).Return(nil)
		pub := &mockPublisher{}
		pub.On("PublishAnalysisCompleted", mock.Anything, mock.AnythingOfType("*domain.Analysis")).Return(nil)
		metrics := &recordingMetrics{}

		svc := NewService(fetcher, Config{}, zerolog.Nop(), WithStore(store), WithPublisher(pub), WithMetrics(metrics))
		result, err := svc.Run(ctx, params)
		require.NoError(t, err)

		a := result.Analysis
		assert.Equal(t, "graphene", a.Params.Query)
		assert.Equal(t, 2, a.RecordCount)
		assert.Equal(t, 1, a.ContributionCount)
		assert.Equal(t, 10, a.Summary.TotalCitations)
		assert.False(t, a.CompletedAt.Before(a.CreatedAt))
		assert.True(t, result.Stored)
		assert.True(t, result.Published)

		assert.Equal(t, a.ID.String(), observability.AnalysisIDFromContext(fetcher.gotCtx))
		assert.Equal(t, 1, metrics.started)
		assert.Equal(t, []string{"completed"}, metrics.finished)
		assert.Empty(t, metrics.sinks)
		store.AssertExpectations(t)
		pub.AssertExpectations(t)
	})

	t.Run("invalid params never fetch", func(t *testing.T) {
		fetcher := &stubFetcher{}
		svc := NewService(fetcher, Config{}, zerolog.Nop())

		result, err := svc.Run(ctx, domain.SearchParams{Query: "  "})
		assert.Nil(t, result)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
		assert.Zero(t, fetcher.calls)
	})

	t.Run("partial data after failure is kept", func(t *testing.T) {
		fetcher := &stubFetcher{
			snapshot: twoRecordSnapshot(),
			outcome: domain.FetchOutcome{
				Status: domain.FetchStatusFailed, FailedAt: "cursor p3", Failure: "status 503",
				Err: errors.New("status 503"),
			},
		}
		svc := NewService(fetcher, Config{}, zerolog.Nop())

		result, err := svc.Run(ctx, params)
		require.NoError(t, err)
		assert.True(t, result.Analysis.Outcome.Failed())
		assert.Equal(t, 2, result.Analysis.Summary.TotalRecords)
		assert.False(t, result.Stored)
	})

	t.Run("empty session is recorded then reported", func(t *testing.T) {
		fetcher := &stubFetcher{
			snapshot: domain.NewCorpusSnapshot(),
			outcome:  domain.FetchOutcome{Status: domain.FetchStatusCompleted},
		}
		store := &mockStore{}
		store.On("Save", mock.Anything, mock.Anything, mock.Anything).Return(nil)
		metrics := &recordingMetrics{}

		svc := NewService(fetcher, Config{}, zerolog.Nop(), WithStore(store), WithMetrics(metrics))
		result, err := svc.Run(ctx, params)

		assert.ErrorIs(t, err, ErrNoData)
		require.NotNil(t, result)
		assert.True(t, result.Stored)
		assert.Equal(t, []string{"completed"}, metrics.finished)
		store.AssertNumberOfCalls(t, "Save", 1)
	})

	t.Run("nil snapshot is treated as empty", func(t *testing.T) {
		fetcher := &stubFetcher{outcome: domain.FetchOutcome{Status: domain.FetchStatusFailed}}
		svc := NewService(fetcher, Config{}, zerolog.Nop())

		result, err := svc.Run(ctx, params)
		assert.ErrorIs(t, err, ErrNoData)
		assert.NotNil(t, result.Snapshot)
	})

	t.Run("sink failures are not fatal", func(t *testing.T) {
		fetcher := &stubFetcher{snapshot: twoRecordSnapshot(), outcome: domain.FetchOutcome{Status: domain.FetchStatusCapReached}}
		store := &mockStore{}
		store.On("Save", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("db down"))
		pub := &mockPublisher{}
		pub.On("PublishAnalysisCompleted", mock.Anything, mock.Anything).Return(errors.New("broker down"))
		metrics := &recordingMetrics{}

		svc := NewService(fetcher, Config{}, zerolog.Nop(), WithStore(store), WithPublisher(pub), WithMetrics(metrics))
		result, err := svc.Run(ctx, params)

		require.NoError(t, err)
		assert.False(t, result.Stored)
		assert.False(t, result.Published)
		assert.Equal(t, []string{SinkStore, SinkPublisher}, metrics.sinks)
	})

	t.Run("canceled session still reaches sinks", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		fetcher := &stubFetcher{snapshot: twoRecordSnapshot(), outcome: domain.FetchOutcome{Status: domain.FetchStatusCanceled}}
		store := &mockStore{}
		store.On("Save", mock.MatchedBy(func(c context.Context) bool { return c.Err() == nil }), mock.Anything, mock.Anything).Return(nil)

		svc := NewService(fetcher, Config{}, zerolog.Nop(), WithStore(store))
		result, err := svc.Run(cctx, params)
		require.NoError(t, err)
		assert.True(t, result.Stored)
	})
}

func TestNewService_Defaults(t *testing.T) {
	svc := NewService(&stubFetcher{}, Config{}, zerolog.Nop(), WithMetrics(nil))
	assert.Equal(t, DefaultTopN, svc.config.TopN)
	assert.IsType(t, nopMetrics{}, svc.metrics)
}

func TestEmptyResultMessage(t *testing.T) {
	assert.Equal(t, "No papers found matching these parameters.",
		EmptyResultMessage(domain.FetchOutcome{Status: domain.FetchStatusCompleted}))
	assert.Contains(t, EmptyResultMessage(domain.FetchOutcome{Status: domain.FetchStatusFailed}), "failed before any records")
}

// TestService_GrapheneScenario drives the real client, fetcher and
// normalizer against a one-page mock works endpoint.
func TestService_GrapheneScenario(t *testing.T) {
	var gotQuery, gotFilter string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("cursor") != "*" {
			_, _ = w.Write([]byte(`{"meta":{"next_cursor":null},"results":[]}`))
			return
		}
		gotQuery = r.URL.Query().Get("search")
		gotFilter = r.URL.Query().Get("filter")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"meta":{"next_cursor":"c2"},"results":[
			{"id":"https://openalex.org/W1","title":"Graphene anodes","publication_year":2020,"type":"article","cited_by_count":10,
			 "primary_location":{"source":{"display_name":"Nature Energy"}},
			 "authorships":[
				{"author":{"display_name":"Ana Silva"},"institutions":[{"display_name":"TU Berlin","country_code":"DE"}]},
				{"author":{"display_name":"Bo Chen"},"institutions":[{"display_name":"Tsinghua","country_code":"CN"}]}
			 ],
			 "abstract_inverted_index":{"Graphene":[0],"works":[1]}},
			{"id":"https://openalex.org/W2","title":"Silicon composites","publication_year":2021,"type":"article","cited_by_count":3,
			 "authorships":[{"author":{"display_name":"Cara Diaz"},"institutions":[{"display_name":"MIT","country_code":"US"}]}]},
			{"id":"https://openalex.org/W3","title":"Unknown lab","publication_year":2021,"type":"article",
			 "authorships":[{"author":{"display_name":"Dan Roe"},"institutions":[{"display_name":"Lab Z","country_code":"ZZ"}]}],
			 "abstract_inverted_index":{"Cells":[0]}}
		]}`)
	}))
	defer server.Close()

	client := openalex.NewWithHTTPClient(
		openalex.Config{BaseURL: server.URL},
		papersources.NewHTTPClient(papersources.HTTPClientConfig{RateLimit: 1000, BurstSize: 100}),
	)
	fetcher := harvest.NewFetcher(client, openalex.NewNormalizer(nil), harvest.Config{}, zerolog.Nop(), nil)
	svc := NewService(fetcher, Config{TopN: 10}, zerolog.Nop())

	result, err := svc.Run(context.Background(), domain.SearchParams{
		Query:     "graphene batteries",
		StartYear: 2020,
		EndYear:   2021,
		Types:     []domain.WorkType{domain.WorkTypeArticle},
		RecordCap: domain.DefaultRecordCap,
	})
	require.NoError(t, err)

	assert.Equal(t, "graphene batteries", gotQuery)
	assert.Contains(t, gotFilter, "publication_year:2020-2021")
	assert.Contains(t, gotFilter, "type:article")

	rows := export.Rows(result.Snapshot.Records)
	assert.Len(t, rows, 3)
	assert.GreaterOrEqual(t, len(result.Snapshot.Contributions), 3)
	assert.Len(t, result.Snapshot.Contributions, 4)

	assert.Empty(t, result.Snapshot.Records[1].Abstract)
	assert.Contains(t, result.Snapshot.Digests[1], domain.NoAbstract)
	assert.Equal(t, []string{"Ana Silva", "Bo Chen"}, result.Snapshot.Records[0].Authors)

	var zz *domain.CountEntry
	for i, e := range result.Analysis.Summary.TopCountries {
		if e.Key == "ZZ" {
			zz = &result.Analysis.Summary.TopCountries[i]
		}
	}
	require.NotNil(t, zz, "unresolved code must be its own bucket")
	assert.Equal(t, 1, zz.Count)
	assert.Equal(t, domain.FetchStatusCompleted, result.Analysis.Outcome.Status)
}
