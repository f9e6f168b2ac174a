package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/segmentio/encoding/json"

	"github.com/helixir/openalex-analyzer/internal/domain"
)

// PostgreSQL error codes used for constraint violation detection.
const (
	pgUniqueViolation     = "23505" // unique_violation
	pgForeignKeyViolation = "23503" // foreign_key_violation
)

// Table and column lists shared by Save and Snapshot.
var (
	recordsTable  = pgx.Identifier{"analysis_records"}
	recordColumns = []string{
		"analysis_id", "position", "openalex_id", "title", "publication_year", "cited_by_count",
		"source_name", "work_type", "authors", "institutions", "countries", "abstract", "keywords",
	}

	contributionsTable  = pgx.Identifier{"analysis_contributions"}
	contributionColumns = []string{
		"analysis_id", "position", "record_position", "work_id", "author", "country_code",
		"source_name", "publication_year", "cited_by_count",
	}
)

const analysisColumns = `id, params, status, strategy, pages_attempted, pages_succeeded,
			failed_at, failure, summary, record_count, contribution_count,
			created_at, completed_at`

// Compile-time interface verification.
var _ AnalysisRepository = (*PgAnalysisRepository)(nil)

// PgAnalysisRepository is a PostgreSQL implementation of AnalysisRepository.
type PgAnalysisRepository struct {
	db DBTX
}

// NewPgAnalysisRepository creates a new PostgreSQL analysis repository.
func NewPgAnalysisRepository(db DBTX) *PgAnalysisRepository {
	return &PgAnalysisRepository{db: db}
}

// Save inserts the analysis row and bulk-copies the snapshot rows.
func (r *PgAnalysisRepository) Save(ctx context.Context, analysis *domain.Analysis, snapshot *domain.CorpusSnapshot) (err error) {
	if analysis == nil {
		return fmt.Errorf("%w: analysis is nil", domain.ErrInvalidInput)
	}
	if snapshot == nil {
		return fmt.Errorf("%w: snapshot is nil", domain.ErrInvalidInput)
	}

	paramsJSON, err := json.Marshal(analysis.Params)
	if err != nil {
		return fmt.Errorf("failed to marshal params: %w", err)
	}
	summaryJSON, err := json.Marshal(analysis.Summary)
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	query := `
		INSERT INTO analyses (
			id, query, params, status, strategy, pages_attempted, pages_succeeded,
			failed_at, failure, summary, record_count, contribution_count,
			created_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err = tx.Exec(ctx, query,
		analysis.ID,
		analysis.Params.Query,
		paramsJSON,
		string(analysis.Outcome.Status),
		string(analysis.Outcome.Strategy),
		analysis.Outcome.PagesAttempted,
		analysis.Outcome.PagesSucceeded,
		nullString(analysis.Outcome.FailedAt),
		nullString(analysis.Outcome.Failure),
		summaryJSON,
		analysis.RecordCount,
		analysis.ContributionCount,
		analysis.CreatedAt,
		analysis.CompletedAt,
	)
	if err != nil {
		if isPgError(err, pgUniqueViolation) {
			return fmt.Errorf("%w: analysis %s", domain.ErrAlreadyExists, analysis.ID)
		}
		return fmt.Errorf("failed to insert analysis: %w", err)
	}

	if len(snapshot.Records) > 0 {
		if _, err = tx.CopyFrom(ctx, recordsTable, recordColumns, pgx.CopyFromRows(recordRows(analysis.ID, snapshot))); err != nil {
			return fmt.Errorf("failed to copy records: %w", err)
		}
	}
	if len(snapshot.Contributions) > 0 {
		if _, err = tx.CopyFrom(ctx, contributionsTable, contributionColumns, pgx.CopyFromRows(contributionRows(analysis.ID, snapshot))); err != nil {
			if isPgError(err, pgForeignKeyViolation) {
				return fmt.Errorf("%w: contribution references unknown analysis", domain.ErrInvalidInput)
			}
			return fmt.Errorf("failed to copy contributions: %w", err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit analysis: %w", err)
	}
	return nil
}

// Get retrieves an analysis by ID.
func (r *PgAnalysisRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Analysis, error) {
	query := `SELECT ` + analysisColumns + ` FROM analyses WHERE id = $1`

	analysis, err := scanAnalysis(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("analysis", id.String())
		}
		return nil, fmt.Errorf("failed to get analysis: %w", err)
	}
	return analysis, nil
}

// List retrieves analyses with filtering and pagination.
func (r *PgAnalysisRepository) List(ctx context.Context, filter AnalysisFilter) ([]*domain.Analysis, int64, error) {
	if err := filter.Validate(); err != nil {
		return nil, 0, err
	}

	var conditions []string
	var args []interface{}
	argIndex := 1

	if len(filter.Status) > 0 {
		statuses := make([]string, len(filter.Status))
		for i, s := range filter.Status {
			statuses[i] = string(s)
		}
		conditions = append(conditions, fmt.Sprintf("status = ANY($%d)", argIndex))
		args = append(args, statuses)
		argIndex++
	}

	if q := strings.TrimSpace(filter.Query); q != "" {
		conditions = append(conditions, fmt.Sprintf("query ILIKE $%d", argIndex))
		args = append(args, "%"+escapeLike(q)+"%")
		argIndex++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM analyses %s", whereClause)
	var totalCount int64
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("failed to count analyses: %w", err)
	}

	selectQuery := fmt.Sprintf(`
		SELECT %s
		FROM analyses
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`,
		analysisColumns, whereClause, argIndex, argIndex+1)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.Query(ctx, selectQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list analyses: %w", err)
	}
	defer rows.Close()

	analyses := make([]*domain.Analysis, 0, filter.Limit)
	for rows.Next() {
		analysis, err := scanAnalysis(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan analysis: %w", err)
		}
		analyses = append(analyses, analysis)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating analyses: %w", err)
	}

	return analyses, totalCount, nil
}

// Snapshot loads the records and contributions of an analysis.
func (r *PgAnalysisRepository) Snapshot(ctx context.Context, id uuid.UUID) (*domain.CorpusSnapshot, error) {
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM analyses WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to check analysis: %w", err)
	}
	if !exists {
		return nil, domain.NewNotFoundError("analysis", id.String())
	}

	records, err := r.loadRecords(ctx, id)
	if err != nil {
		return nil, err
	}
	byRecord, orphans, err := r.loadContributions(ctx, id, len(records))
	if err != nil {
		return nil, err
	}

	snapshot := domain.NewCorpusSnapshot()
	for i, rec := range records {
		snapshot.Append(rec, byRecord[i])
	}
	snapshot.Contributions = append(snapshot.Contributions, orphans...)
	return snapshot, nil
}

// Delete removes an analysis; its rows cascade.
func (r *PgAnalysisRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM analyses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete analysis: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewNotFoundError("analysis", id.String())
	}
	return nil
}

func (r *PgAnalysisRepository) loadRecords(ctx context.Context, id uuid.UUID) ([]domain.Record, error) {
	query := `
		SELECT openalex_id, title, publication_year, cited_by_count, source_name, work_type,
			authors, institutions, countries, abstract, keywords
		FROM analysis_records
		WHERE analysis_id = $1
		ORDER BY position`

	rows, err := r.db.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var records []domain.Record
	for rows.Next() {
		var rec domain.Record
		if err := rows.Scan(
			&rec.OpenAlexID, &rec.Title, &rec.PublicationYear, &rec.CitedByCount, &rec.Journal, &rec.Type,
			&rec.Authors, &rec.Institutions, &rec.Countries, &rec.Abstract, &rec.Keywords,
		); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating records: %w", err)
	}
	return records, nil
}

// loadContributions groups contributions by record position. Contributions
// whose position is outside [0, recordCount) are returned as orphans.
func (r *PgAnalysisRepository) loadContributions(ctx context.Context, id uuid.UUID, recordCount int) (map[int][]domain.AuthorContribution, []domain.AuthorContribution, error) {
	query := `
		SELECT record_position, work_id, author, country_code, source_name,
			publication_year, cited_by_count
		FROM analysis_contributions
		WHERE analysis_id = $1
		ORDER BY position`

	rows, err := r.db.Query(ctx, query, id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query contributions: %w", err)
	}
	defer rows.Close()

	byRecord := make(map[int][]domain.AuthorContribution)
	var orphans []domain.AuthorContribution
	for rows.Next() {
		var pos int
		var c domain.AuthorContribution
		if err := rows.Scan(&pos, &c.WorkID, &c.Author, &c.CountryCode, &c.Journal, &c.PublicationYear, &c.CitedByCount); err != nil {
			return nil, nil, fmt.Errorf("failed to scan contribution: %w", err)
		}
		if pos < 0 || pos >= recordCount {
			orphans = append(orphans, c)
			continue
		}
		byRecord[pos] = append(byRecord[pos], c)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("error iterating contributions: %w", err)
	}
	return byRecord, orphans, nil
}

func recordRows(id uuid.UUID, s *domain.CorpusSnapshot) [][]interface{} {
	rows := make([][]interface{}, len(s.Records))
	for i, rec := range s.Records {
		rows[i] = []interface{}{
			id, i, rec.OpenAlexID, rec.Title, rec.PublicationYear, rec.CitedByCount,
			rec.Journal, rec.Type, nonNil(rec.Authors), nonNil(rec.Institutions), nonNil(rec.Countries),
			rec.Abstract, rec.Keywords,
		}
	}
	return rows
}

func contributionRows(id uuid.UUID, s *domain.CorpusSnapshot) [][]interface{} {
	owners := s.ContributionOwners()
	rows := make([][]interface{}, len(s.Contributions))
	for i, c := range s.Contributions {
		rows[i] = []interface{}{
			id, i, owners[i], c.WorkID, c.Author, c.CountryCode,
			c.Journal, c.PublicationYear, c.CitedByCount,
		}
	}
	return rows
}

func scanAnalysis(row pgx.Row) (*domain.Analysis, error) {
	var (
		a                     domain.Analysis
		paramsJSON, sumJSON   []byte
		status, strategy      string
		failedAt, failureText *string
	)
	if err := row.Scan(
		&a.ID, &paramsJSON, &status, &strategy, &a.Outcome.PagesAttempted, &a.Outcome.PagesSucceeded,
		&failedAt, &failureText, &sumJSON, &a.RecordCount, &a.ContributionCount,
		&a.CreatedAt, &a.CompletedAt,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(paramsJSON, &a.Params); err != nil {
		return nil, fmt.Errorf("failed to unmarshal params: %w", err)
	}
	if err := json.Unmarshal(sumJSON, &a.Summary); err != nil {
		return nil, fmt.Errorf("failed to unmarshal summary: %w", err)
	}
	a.Outcome.Status = domain.FetchStatus(status)
	a.Outcome.Strategy = domain.PaginationStrategy(strategy)
	if failedAt != nil {
		a.Outcome.FailedAt = *failedAt
	}
	if failureText != nil {
		a.Outcome.Failure = *failureText
	}
	return &a, nil
}

func isPgError(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}

// nullString returns nil for empty strings so optional columns stay NULL.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// escapeLike escapes ILIKE wildcards in user input.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
