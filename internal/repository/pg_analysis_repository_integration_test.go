//go:build integration

package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/openalex-analyzer/internal/database/dbtest"
	"github.com/helixir/openalex-analyzer/internal/domain"
	"github.com/helixir/openalex-analyzer/internal/repository"
)

func TestPgAnalysisRepository_RoundTrip(t *testing.T) {
	ctx := context.Background()
	db := dbtest.StartPostgres(t)
	repo := repository.NewPgAnalysisRepository(db)

	snapshot := domain.NewCorpusSnapshot()
	snapshot.Append(domain.Record{
		OpenAlexID: "W1", Title: "Graphene anodes", PublicationYear: 2021, CitedByCount: 12,
		Journal: "Nature Energy", Type: "article",
		Authors: []string{"Ana", "Ben"}, Institutions: []string{"TU Berlin"}, Countries: []string{"Germany"},
		Abstract: "Graphene improves anodes.", Keywords: "Graphene; Anode",
	}, []domain.AuthorContribution{
		{WorkID: "W1", Author: "Ana", CountryCode: "DE", Journal: "Nature Energy", PublicationYear: 2021, CitedByCount: 12},
		{WorkID: "W1", Author: "Ben", CountryCode: "unknown", Journal: "Nature Energy", PublicationYear: 2021, CitedByCount: 12},
	})
	snapshot.Append(domain.Record{
		OpenAlexID: "W2", Title: "Untitled", PublicationYear: 2022,
		Authors: []string{}, Institutions: []string{}, Countries: []string{},
	}, nil)

	a := domain.NewAnalysis(domain.SearchParams{Query: "graphene battery", StartYear: 2020, EndYear: 2024})
	a.Outcome = domain.FetchOutcome{
		Status: domain.FetchStatusFailed, Strategy: domain.PaginationPage,
		PagesAttempted: 2, PagesSucceeded: 1, FailedAt: "2", Failure: "status 503",
	}
	a.Summary = domain.Summary{TotalRecords: 2, TopAuthors: []domain.CountEntry{{Key: "Ana", Count: 1}}}
	a.RecordCount = snapshot.Len()
	a.ContributionCount = len(snapshot.Contributions)
	a.CompletedAt = a.CreatedAt.Add(3 * time.Second)

	require.NoError(t, repo.Save(ctx, a, snapshot))
	assert.ErrorIs(t, repo.Save(ctx, a, snapshot), domain.ErrAlreadyExists)

	got, err := repo.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.Params.Query, got.Params.Query)
	assert.Equal(t, 2020, got.Params.StartYear)
	assert.Equal(t, "2", got.Outcome.FailedAt)
	assert.Equal(t, domain.PaginationPage, got.Outcome.Strategy)
	assert.Equal(t, a.Summary.TopAuthors, got.Summary.TopAuthors)

	list, total, err := repo.List(ctx, repository.AnalysisFilter{Query: "GRAPHENE", Status: []domain.FetchStatus{domain.FetchStatusFailed}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, list, 1)

	restored, err := repo.Snapshot(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, snapshot.Records, restored.Records)
	assert.Equal(t, snapshot.Contributions, restored.Contributions)
	assert.Equal(t, snapshot.Digests, restored.Digests)

	require.NoError(t, repo.Delete(ctx, a.ID))
	_, err = repo.Snapshot(ctx, a.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
