package httpserver

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/segmentio/encoding/json"

	"github.com/helixir/openalex-analyzer/internal/domain"
	"github.com/helixir/openalex-analyzer/internal/export"
	"github.com/helixir/openalex-analyzer/internal/llm"
	"github.com/helixir/openalex-analyzer/internal/pipeline"
	"github.com/helixir/openalex-analyzer/internal/repository"
)

// Pagination and validation constants.
const (
	defaultPageSize    = 50
	maxPageSize        = 100
	maxQuestionLength  = 4000
	maxRequestBodySize = 1 << 20 // 1 MB limit for request bodies
)

// analysisRequest is the JSON request body for running an analysis.
// The include flags expand to a type filter when no types are given.
type analysisRequest struct {
	domain.SearchParams

	RecordCap         *int `json:"record_cap,omitempty"`
	IncludeConference bool `json:"include_conference,omitempty"`
	IncludeBooks      bool `json:"include_books,omitempty"`
}

// params resolves the request into search parameters. defaultCap applies
// when the body does not set record_cap.
func (req analysisRequest) params(defaultCap int) domain.SearchParams {
	p := req.SearchParams
	p.Query = strings.TrimSpace(p.Query)
	p.RecordCap = defaultCap
	if req.RecordCap != nil {
		p.RecordCap = *req.RecordCap
	}
	if len(p.Types) == 0 && (req.IncludeConference || req.IncludeBooks) {
		p.Types = domain.TypesFromFlags(req.IncludeConference, req.IncludeBooks)
	}
	return p
}

type chatRequest struct {
	Question string `json:"question"`
}

// runAnalysis handles POST /analyses. The analysis runs within the request;
// a session without records answers 200 with an explanatory message.
func (s *Server) runAnalysis(w http.ResponseWriter, r *http.Request) {
	var req analysisRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := s.runner.Run(r.Context(), req.params(s.recordCap))
	if err != nil && !errors.Is(err, pipeline.ErrNoData) {
		writeDomainError(w, err)
		return
	}

	resp := runAnalysisResponse{
		analysisResponse: domainAnalysisToResponse(result.Analysis, true),
		Stored:           result.Stored,
		Published:        result.Published,
	}
	if err != nil {
		resp.Message = pipeline.EmptyResultMessage(result.Analysis.Outcome)
		writeJSON(w, http.StatusOK, resp)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

// listAnalyses handles GET /analyses with optional status and query filters.
func (s *Server) listAnalyses(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePaginationParams(r)

	filter := repository.AnalysisFilter{
		Query:  strings.TrimSpace(r.URL.Query().Get("query")),
		Limit:  limit,
		Offset: offset,
	}
	for _, status := range r.URL.Query()["status"] {
		filter.Status = append(filter.Status, domain.FetchStatus(status))
	}

	analyses, totalCount, err := s.analyses.List(r.Context(), filter)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	items := make([]analysisResponse, len(analyses))
	for i, a := range analyses {
		items[i] = domainAnalysisToResponse(a, false)
	}

	writeJSON(w, http.StatusOK, listAnalysesResponse{
		Analyses:      items,
		NextPageToken: encodeHTTPPageToken(offset, limit, int(totalCount)),
		TotalCount:    int(totalCount),
	})
}

// getAnalysis handles GET /analyses/{analysisID}.
func (s *Server) getAnalysis(w http.ResponseWriter, r *http.Request) {
	a, err := s.analyses.Get(r.Context(), analysisIDFromRequest(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, domainAnalysisToResponse(a, true))
}

// deleteAnalysis handles DELETE /analyses/{analysisID}.
func (s *Server) deleteAnalysis(w http.ResponseWriter, r *http.Request) {
	if err := s.analyses.Delete(r.Context(), analysisIDFromRequest(r)); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, deleteAnalysisResponse{Success: true, Message: "analysis deleted"})
}

// getRecords handles GET /analyses/{analysisID}/records. With format=csv the
// full table is returned in export layout; otherwise a JSON page.
func (s *Server) getRecords(w http.ResponseWriter, r *http.Request) {
	snapshot, ok := s.loadSnapshot(w, r)
	if !ok {
		return
	}

	if r.URL.Query().Get("format") == "csv" {
		writeCSV(w, export.RecordsFile, func(out io.Writer) error {
			return export.WriteRecordsCSV(out, snapshot.Records)
		})
		return
	}

	limit, offset := parsePaginationParams(r)
	lo, hi := pageBounds(offset, limit, len(snapshot.Records))
	writeJSON(w, http.StatusOK, recordsResponse{
		Records:       snapshot.Records[lo:hi],
		NextPageToken: encodeHTTPPageToken(offset, limit, len(snapshot.Records)),
		TotalCount:    len(snapshot.Records),
	})
}

// getContributions handles GET /analyses/{analysisID}/contributions.
func (s *Server) getContributions(w http.ResponseWriter, r *http.Request) {
	snapshot, ok := s.loadSnapshot(w, r)
	if !ok {
		return
	}

	if r.URL.Query().Get("format") == "csv" {
		writeCSV(w, export.ContributionsFile, func(out io.Writer) error {
			return export.WriteContributionsCSV(out, snapshot.Contributions)
		})
		return
	}

	limit, offset := parsePaginationParams(r)
	lo, hi := pageBounds(offset, limit, len(snapshot.Contributions))
	writeJSON(w, http.StatusOK, contributionsResponse{
		Contributions: snapshot.Contributions[lo:hi],
		NextPageToken: encodeHTTPPageToken(offset, limit, len(snapshot.Contributions)),
		TotalCount:    len(snapshot.Contributions),
	})
}

// getCorpus handles GET /analyses/{analysisID}/corpus as plain text.
func (s *Server) getCorpus(w http.ResponseWriter, r *http.Request) {
	snapshot, ok := s.loadSnapshot(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, export.BuildCorpus(snapshot.Digests))
}

// chat handles POST /analyses/{analysisID}/chat.
func (s *Server) chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}
	if len(req.Question) > maxQuestionLength {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("question must be at most %d characters", maxQuestionLength))
		return
	}

	snapshot, ok := s.loadSnapshot(w, r)
	if !ok {
		return
	}

	resp, err := s.asker.Ask(r.Context(), snapshot, req.Question)
	if err != nil {
		s.logger.Warn().Err(err).Str("analysis_id", analysisIDFromRequest(r).String()).Msg("chat failed")
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{
		Answer:       resp.Answer,
		Model:        resp.Model,
		Truncated:    resp.Truncated,
		InputTokens:  resp.InputTokens,
		OutputTokens: resp.OutputTokens,
	})
}

func (s *Server) loadSnapshot(w http.ResponseWriter, r *http.Request) (*domain.CorpusSnapshot, bool) {
	snapshot, err := s.analyses.Snapshot(r.Context(), analysisIDFromRequest(r))
	if err != nil {
		writeDomainError(w, err)
		return nil, false
	}
	return snapshot, true
}

// decodeBody reads a size-limited JSON body into v, writing a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return false
	}
	if err := json.Unmarshal(body, v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return false
	}
	return true
}

func writeCSV(w http.ResponseWriter, filename string, write func(io.Writer) error) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_ = write(w)
}

// writeDomainError maps domain errors to HTTP status codes and writes a JSON
// error response. Internal error details are not leaked to clients.
func writeDomainError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	var apiErr *llm.APIError
	var extErr *domain.ExternalAPIError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "resource not found")
	case errors.Is(err, domain.ErrInvalidInput):
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			writeError(w, http.StatusBadRequest, ve.Error())
		} else {
			writeError(w, http.StatusBadRequest, "invalid input")
		}
	case errors.Is(err, domain.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "resource already exists")
	case errors.Is(err, domain.ErrNoData):
		writeError(w, http.StatusUnprocessableEntity, "analysis has no records")
	case errors.Is(err, domain.ErrMissingCredential):
		writeError(w, http.StatusServiceUnavailable, "service not configured")
	case errors.Is(err, domain.ErrServiceUnavailable):
		writeError(w, http.StatusServiceUnavailable, "service unavailable")
	case errors.As(err, &apiErr), errors.As(err, &extErr):
		writeError(w, http.StatusBadGateway, "upstream service error")
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// parseUUID parses a UUID from a string, writing a 400 error response if invalid.
// The parse error details are not included to avoid echoing the input.
func parseUUID(w http.ResponseWriter, s, fieldName string) (uuid.UUID, bool) {
	id, err := uuid.Parse(s)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("%s must be a valid UUID", fieldName))
		return uuid.Nil, false
	}
	return id, true
}

// parsePaginationParams extracts page_size and page_token from query parameters.
// It applies default and maximum bounds to the page size.
func parsePaginationParams(r *http.Request) (limit, offset int) {
	limit = defaultPageSize
	if pageSizeStr := r.URL.Query().Get("page_size"); pageSizeStr != "" {
		if parsed, err := strconv.Atoi(pageSizeStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	if pageToken := r.URL.Query().Get("page_token"); pageToken != "" {
		decoded, err := base64.StdEncoding.DecodeString(pageToken)
		if err == nil {
			if parsed, parseErr := strconv.Atoi(string(decoded)); parseErr == nil && parsed > 0 {
				offset = parsed
			}
		}
	}

	return limit, offset
}

// encodeHTTPPageToken encodes the next offset as a base64 page token.
// Returns an empty string if there are no more results.
func encodeHTTPPageToken(offset, limit, totalCount int) string {
	nextOffset := offset + limit
	if nextOffset < totalCount {
		return base64.StdEncoding.EncodeToString([]byte(strconv.Itoa(nextOffset)))
	}
	return ""
}

// pageBounds clamps [offset, offset+limit) to a slice of length n.
func pageBounds(offset, limit, n int) (lo, hi int) {
	lo = min(offset, n)
	hi = min(lo+limit, n)
	return lo, hi
}
