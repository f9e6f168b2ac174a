//go:build integration

// Package dbtest starts a migrated PostgreSQL container for integration tests.
package dbtest

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/helixir/openalex-analyzer/internal/config"
	"github.com/helixir/openalex-analyzer/internal/database"
)

const (
	image    = "postgres:16-alpine"
	user     = "analyzer"
	password = "analyzer"
	name     = "openalex_analyzer"
)

// StartPostgres runs a disposable PostgreSQL container, applies the embedded
// migrations and returns a connected pool. Everything is torn down with t.
func StartPostgres(t *testing.T) *database.DB {
	t.Helper()
	ctx := context.Background()

	ctr, err := postgres.Run(ctx, image,
		postgres.WithDatabase(name),
		postgres.WithUsername(user),
		postgres.WithPassword(password),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	host, err := ctr.Host(ctx)
	require.NoError(t, err)
	port, err := ctr.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	cfg := &config.DatabaseConfig{
		Host:           host,
		Port:           port.Int(),
		User:           user,
		Password:       password,
		Name:           name,
		SSLMode:        config.SSLModeDisable,
		MaxConns:       4,
		MinConns:       1,
		ConnectTimeout: 10 * time.Second,
	}

	db, err := database.New(ctx, cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(db.Close)

	m, err := database.NewMigrator(db, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, m.Up())
	require.NoError(t, m.Close())

	return db
}
