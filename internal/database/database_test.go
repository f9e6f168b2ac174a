package database

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/openalex-analyzer/internal/config"
	"github.com/helixir/openalex-analyzer/internal/database/migrations"
)

// Compile-time checks that the pool and pgxmock satisfy DBTX.
var (
	_ DBTX = (*DB)(nil)
	_ DBTX = pgxmock.PgxPoolIface(nil)
)

func TestHealthStatus_JSON(t *testing.T) {
	t.Run("empty error field is omitted", func(t *testing.T) {
		data, err := json.Marshal(HealthStatus{Status: "healthy", MaxConns: 10})
		require.NoError(t, err)
		assert.NotContains(t, string(data), "error")
		assert.Contains(t, string(data), `"max_conns":10`)
	})

	t.Run("error is reported", func(t *testing.T) {
		data, err := json.Marshal(HealthStatus{Status: "unhealthy", Error: "connection refused"})
		require.NoError(t, err)
		assert.Contains(t, string(data), `"error":"connection refused"`)
	})
}

func TestHealthCheckTimeout(t *testing.T) {
	assert.Equal(t, 5*time.Second, HealthCheckTimeout)
}

func TestNew_ConnectionError(t *testing.T) {
	cfg := &config.DatabaseConfig{
		Host:           "127.0.0.1",
		Port:           1,
		User:           "analyzer",
		Name:           "openalex_analyzer",
		SSLMode:        config.SSLModeDisable,
		MaxConns:       1,
		ConnectTimeout: time.Second,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	db, err := New(ctx, cfg, zerolog.Nop())
	require.Error(t, err)
	assert.Nil(t, db)
}

func TestSchemaHealth(t *testing.T) {
	query := regexp.QuoteMeta("SELECT version, dirty FROM schema_migrations LIMIT 1")

	tests := []struct {
		name        string
		expect      func(mock pgxmock.PgxPoolIface)
		wantStatus  string
		wantVersion int64
		wantError   bool
	}{
		{
			name: "migrated",
			expect: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(query).WillReturnRows(mock.NewRows([]string{"version", "dirty"}).AddRow(int64(2), false))
			},
			wantStatus:  StatusHealthy,
			wantVersion: 2,
		},
		{
			name: "dirty",
			expect: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(query).WillReturnRows(mock.NewRows([]string{"version", "dirty"}).AddRow(int64(2), true))
			},
			wantStatus:  StatusDirty,
			wantVersion: 2,
		},
		{
			name: "no version row",
			expect: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(query).WillReturnError(pgx.ErrNoRows)
			},
			wantStatus: StatusUnmigrated,
		},
		{
			name: "missing table",
			expect: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(query).WillReturnError(&pgconn.PgError{Code: "42P01"})
			},
			wantStatus: StatusUnmigrated,
		},
		{
			name: "query failure",
			expect: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(query).WillReturnError(errors.New("conn reset"))
			},
			wantStatus: StatusUnhealthy,
			wantError:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()
			tt.expect(mock)

			var health HealthStatus
			schemaHealth(context.Background(), mock, &health)

			assert.Equal(t, tt.wantStatus, health.Status)
			assert.Equal(t, tt.wantVersion, health.SchemaVersion)
			assert.Equal(t, tt.wantError, health.Error != "")
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestDB_CloseNilPool(t *testing.T) {
	db := &DB{logger: zerolog.Nop()}
	assert.NotPanics(t, db.Close)
}

func TestNewMigrator_Validation(t *testing.T) {
	logger := zerolog.Nop()

	t.Run("fails with nil database", func(t *testing.T) {
		m, err := NewMigrator(nil, logger)
		require.Error(t, err)
		assert.Nil(t, m)
		assert.Contains(t, err.Error(), "database is required")
	})

	t.Run("fails with nil pool", func(t *testing.T) {
		m, err := NewMigrator(&DB{}, logger)
		require.Error(t, err)
		assert.Nil(t, m)
		assert.Contains(t, err.Error(), "database pool not initialized")
	})
}

func TestEmbeddedMigrations(t *testing.T) {
	entries, err := fs.ReadDir(migrations.FS, ".")
	require.NoError(t, err)

	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		}
	}

	require.NotEmpty(t, ups)
	assert.Equal(t, ups, downs, "every up migration needs a down migration")

	schema, err := fs.ReadFile(migrations.FS, "000002_create_analysis_rows.up.sql")
	require.NoError(t, err)
	for _, table := range []string{"analysis_records", "analysis_contributions"} {
		assert.Contains(t, string(schema), table)
	}
}
