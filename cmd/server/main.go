// Package main provides the entry point for the analyzer REST API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/helixir/openalex-analyzer/internal/app"
	"github.com/helixir/openalex-analyzer/internal/config"
	"github.com/helixir/openalex-analyzer/internal/domain"
	"github.com/helixir/openalex-analyzer/internal/events"
	"github.com/helixir/openalex-analyzer/internal/observability"
	"github.com/helixir/openalex-analyzer/internal/pipeline"
	httpserver "github.com/helixir/openalex-analyzer/internal/server/http"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := app.NewLogger(cfg.Logging, false).With().Str("component", "server").Logger()
	logger.Info().Msg("openalex-analyzer server starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := app.NewMetrics(cfg.Metrics)

	asker, err := app.NewAsker(ctx, cfg, logger, metrics)
	if err != nil {
		return err
	}

	svcOpts := app.PipelineOptions(metrics)
	var serverOpts []httpserver.Option

	store, err := app.OpenStore(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
		logger.Info().Msg("database connection established")
		svcOpts = append(svcOpts, pipeline.WithStore(store.Repo))
		serverOpts = append(serverOpts,
			httpserver.WithAnalysisRepository(store.Repo),
			httpserver.WithHealthChecker(store.DB),
		)
		if asker != nil {
			serverOpts = append(serverOpts, httpserver.WithAsker(asker))
		}
	} else if asker != nil {
		logger.Warn().Msg("chat is enabled but the database is disabled; the chat route is not served")
	}

	publisher, err := app.NewPublisher(cfg.Kafka, logger)
	if err != nil {
		return fmt.Errorf("create event publisher: %w", err)
	}
	if publisher != nil {
		defer func() {
			if closeErr := publisher.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close event publisher")
			}
		}()
		svcOpts = append(svcOpts, pipeline.WithPublisher(publisher))
	}

	if metrics != nil {
		serverOpts = append(serverOpts, httpserver.WithMetricsHandler(promhttp.Handler()))
	}

	fetcher := app.NewFetcher(cfg, logger, metrics)
	svc := pipeline.NewService(fetcher, pipeline.Config{TopN: cfg.Harvest.TopN}, logger, svcOpts...)

	httpCfg := httpserver.Config{
		Address:          cfg.Server.HTTPAddress(),
		ReadTimeout:      cfg.Server.ReadTimeout,
		WriteTimeout:     cfg.Server.WriteTimeout,
		IdleTimeout:      2 * time.Minute,
		ShutdownTimeout:  cfg.Server.ShutdownTimeout,
		DefaultRecordCap: cfg.Harvest.RecordCap,
	}
	httpSrv := httpserver.NewServer(httpCfg, svc, logger, serverOpts...)

	errCh := make(chan error, 2)

	go func() {
		if err := httpSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// Analyses requested over Kafka run on the listener goroutine, one at a time.
	var listener *events.RequestListener
	if cfg.Kafka.Enabled && cfg.Kafka.RequestTopic != "" {
		listener = events.NewRequestListener(events.ListenerConfig{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.RequestTopic,
			GroupID: cfg.Kafka.GroupID,
		}, requestRunner(svc, cfg.Harvest.RecordCap), logger)
		go func() {
			if err := listener.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("request listener error: %w", err)
			}
		}()
	}

	logger.Info().
		Str("http_address", httpCfg.Address).
		Bool("database", store != nil).
		Bool("events", publisher != nil).
		Bool("chat", asker != nil).
		Msg("openalex-analyzer is ready")

	select {
	case <-ctx.Done():
		logger.Info().Msg("received shutdown signal")
	case err := <-errCh:
		logger.Error().Err(err).Msg("server error")
		return err
	}

	logger.Info().Msg("shutting down openalex-analyzer")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	}
	if listener != nil {
		if err := listener.Close(); err != nil {
			logger.Error().Err(err).Msg("request listener close error")
		}
	}

	logger.Info().Msg("openalex-analyzer shutdown complete")
	return nil
}

// requestRunner adapts the pipeline to the request listener. Requests
// without a record cap get the configured default.
func requestRunner(svc *pipeline.Service, defaultCap int) events.RunFunc {
	return func(ctx context.Context, params domain.SearchParams) error {
		if params.RecordCap == 0 {
			params.RecordCap = defaultCap
		}
		ctx = observability.WithRequestID(ctx, uuid.NewString())
		_, err := svc.Run(ctx, params)
		return err
	}
}
