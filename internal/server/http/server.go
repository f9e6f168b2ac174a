// Package httpserver provides the HTTP REST API of the analyzer.
package httpserver

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/segmentio/encoding/json"

	"github.com/helixir/openalex-analyzer/internal/database"
	"github.com/helixir/openalex-analyzer/internal/domain"
	"github.com/helixir/openalex-analyzer/internal/llm"
	"github.com/helixir/openalex-analyzer/internal/pipeline"
	"github.com/helixir/openalex-analyzer/internal/repository"
)

// Runner runs one analysis.
type Runner interface {
	Run(ctx context.Context, params domain.SearchParams) (*pipeline.Result, error)
}

// Asker answers a question about a stored snapshot.
type Asker interface {
	Ask(ctx context.Context, snapshot *domain.CorpusSnapshot, question string) (*llm.ChatResponse, error)
}

// HealthChecker reports database health.
type HealthChecker interface {
	Health(ctx context.Context) database.HealthStatus
}

var (
	_ Runner        = (*pipeline.Service)(nil)
	_ Asker         = (*pipeline.Asker)(nil)
	_ HealthChecker = (*database.DB)(nil)
)

// Server is the HTTP REST API server.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	runner     Runner
	analyses   repository.AnalysisRepository
	asker      Asker
	health     HealthChecker
	metrics    http.Handler
	recordCap  int
	logger     zerolog.Logger
}

// Config holds HTTP server configuration.
type Config struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// DefaultRecordCap applies to analysis requests without record_cap.
	DefaultRecordCap int
}

// Option configures optional Server collaborators.
type Option func(*Server)

// WithAnalysisRepository enables the routes that read stored analyses.
func WithAnalysisRepository(repo repository.AnalysisRepository) Option {
	return func(s *Server) { s.analyses = repo }
}

// WithAsker enables the chat route. It requires an analysis repository.
func WithAsker(a Asker) Option {
	return func(s *Server) { s.asker = a }
}

// WithHealthChecker reports database health on the probe routes.
func WithHealthChecker(h HealthChecker) Option {
	return func(s *Server) { s.health = h }
}

// WithMetricsHandler serves h on /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// NewServer creates a new HTTP server around runner.
func NewServer(cfg Config, runner Runner, logger zerolog.Logger, opts ...Option) *Server {
	if cfg.DefaultRecordCap <= 0 {
		cfg.DefaultRecordCap = domain.DefaultRecordCap
	}
	s := &Server{
		runner:    runner,
		recordCap: cfg.DefaultRecordCap,
		logger:    logger.With().Str("component", "http-server").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.router = s.buildRouter()

	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(correlationIDMiddleware)
	r.Use(requestLogMiddleware(s.logger))

	r.Get("/healthz", s.healthHandler)
	r.Get("/readyz", s.readinessHandler)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}

	r.Route("/api/v1/analyses", func(r chi.Router) {
		r.With(jsonContentTypeMiddleware).Post("/", s.runAnalysis)
		if s.analyses == nil {
			return
		}
		r.With(jsonContentTypeMiddleware).Get("/", s.listAnalyses)
		r.Route("/{analysisID}", func(r chi.Router) {
			r.Use(analysisIDMiddleware)
			r.With(jsonContentTypeMiddleware).Get("/", s.getAnalysis)
			r.With(jsonContentTypeMiddleware).Delete("/", s.deleteAnalysis)
			r.Get("/records", s.getRecords)
			r.Get("/contributions", s.getContributions)
			r.Get("/corpus", s.getCorpus)
			if s.asker != nil {
				r.With(jsonContentTypeMiddleware).Post("/chat", s.chat)
			}
		})
	})

	return r
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info().Str("address", s.httpServer.Addr).Msg("HTTP server starting")
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on HTTP address: %w", err)
	}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// healthHandler returns liveness. Only an unreachable database fails it; a
// schema that is not applied yet fails readiness instead.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "database": "disabled"})
		return
	}
	health := s.health.Health(r.Context())
	if health.Status != database.StatusUnhealthy {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "database": health.Status})
		return
	}
	writeJSON(w, http.StatusServiceUnavailable, map[string]string{
		"status":   "unhealthy",
		"database": health.Status,
		"error":    health.Error,
	})
}

func (s *Server) readinessHandler(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready", "database": "disabled"})
		return
	}
	health := s.health.Health(r.Context())
	if health.Status != database.StatusHealthy {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":   "not_ready",
			"database": health.Status,
			"error":    health.Error,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ready",
		"database": database.StatusHealthy,
	})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{
		"error": message,
	})
}

type analysisIDKey struct{}

func analysisIDFromRequest(r *http.Request) uuid.UUID {
	id, _ := r.Context().Value(analysisIDKey{}).(uuid.UUID)
	return id
}
