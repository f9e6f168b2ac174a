// Package repository persists completed analyses in PostgreSQL.
//
// Only finished analyses are stored: the parameters, the fetch outcome, the
// summary and the two tables derived from the snapshot (one row per record,
// one row per author contribution). Fetched pages are never cached.
//
// # Error Handling
//
// Methods return domain errors where the caller can act on them:
//
//   - domain.ErrNotFound: the analysis does not exist
//   - domain.ErrAlreadyExists: an analysis with the same ID was already saved
//   - domain.ErrInvalidInput: nil analysis or snapshot
//
// Everything else is a wrapped database error.
//
// # Usage Pattern
//
//	db, _ := database.New(ctx, cfg, logger)
//	repo := repository.NewPgAnalysisRepository(db)
//	err := repo.Save(ctx, analysis, snapshot)
package repository

import (
	"github.com/helixir/openalex-analyzer/internal/database"
)

// DBTX is the database interface supporting both pool and transaction contexts.
//
// Save opens its own transaction through DBTX.Begin, which pgx.Tx answers
// with a savepoint, so a repository built on a transaction nests cleanly.
type DBTX = database.DBTX

// Filter pagination defaults and limits.
const (
	defaultFilterLimit = 100
	maxFilterLimit     = 1000
)

// applyPaginationDefaults clamps limit to [1, maxFilterLimit] and offset to >= 0.
func applyPaginationDefaults(limit, offset *int) {
	if *limit <= 0 {
		*limit = defaultFilterLimit
	}
	if *limit > maxFilterLimit {
		*limit = maxFilterLimit
	}
	if *offset < 0 {
		*offset = 0
	}
}
