// Package main provides the analyzer CLI: one fetch session from flags,
// a console report, the CSV/corpus export and an optional question.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/helixir/openalex-analyzer/internal/app"
	"github.com/helixir/openalex-analyzer/internal/config"
	"github.com/helixir/openalex-analyzer/internal/domain"
	"github.com/helixir/openalex-analyzer/internal/export"
	"github.com/helixir/openalex-analyzer/internal/pipeline"
	"github.com/helixir/openalex-analyzer/internal/report"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// options is the parsed command line.
type options struct {
	params   domain.SearchParams
	strategy string
	perPage  int
	maxPages int
	topN     int
	outDir   string
	noExport bool
	question string
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("analyzer", flag.ContinueOnError)
	fs.SetOutput(stderr)

	query := fs.String("query", "", "Search query (required; remaining arguments are appended)")
	field := fs.String("field", "all", "Search field: all or title_abstract")
	startYear := fs.Int("start-year", 0, "First publication year of an inclusive range")
	endYear := fs.Int("end-year", 0, "Last publication year of an inclusive range")
	fromYear := fs.Int("from-year", 0, "Publication year lower bound when no range is set")
	includeConference := fs.Bool("include-conference", false, "Include proceedings articles")
	includeBooks := fs.Bool("include-books", false, "Include books and book chapters")
	types := fs.String("types", "", "Comma-separated work types; overrides the include flags")
	recordCap := fs.Int("cap", domain.DefaultRecordCap, "Stop after this many records (0 = unlimited)")
	sort := fs.String("sort", "", "Sort expression, e.g. cited_by_count:desc")
	selectFields := fs.String("select", "", "Comma-separated field allow-list")
	strategy := fs.String("strategy", "", "Pagination strategy: cursor or page (default from config)")
	perPage := fs.Int("per-page", 0, "Results per page, at most 200 (default from config)")
	maxPages := fs.Int("max-pages", 0, "Page bound for the page strategy (default from config)")
	topN := fs.Int("top", 0, "Length of the top-N tables (default from config)")
	outDir := fs.String("out", "", "Export directory (default from config)")
	noExport := fs.Bool("no-export", false, "Skip the CSV and corpus export")
	question := fs.String("ask", "", "Ask a question about the fetched corpus")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	q := strings.TrimSpace(strings.Join(append([]string{*query}, fs.Args()...), " "))
	if q == "" {
		fs.Usage()
		return nil, domain.NewValidationError("query", "query is required")
	}

	params := domain.SearchParams{
		Query:     q,
		StartYear: *startYear,
		EndYear:   *endYear,
		FromYear:  *fromYear,
		RecordCap: *recordCap,
		Sort:      strings.TrimSpace(*sort),
		Select:    splitList(*selectFields),
	}
	switch *field {
	case "", "all":
		params.SearchField = domain.SearchFieldAll
	case "title_abstract":
		params.SearchField = domain.SearchFieldTitleAndAbstract
	default:
		return nil, domain.NewValidationError("field", fmt.Sprintf("unknown search field %q", *field))
	}
	if list := splitList(*types); len(list) > 0 {
		for _, t := range list {
			params.Types = append(params.Types, domain.WorkType(t))
		}
	} else {
		params.Types = domain.TypesFromFlags(*includeConference, *includeBooks)
	}

	return &options{
		params:   params,
		strategy: *strategy,
		perPage:  *perPage,
		maxPages: *maxPages,
		topN:     *topN,
		outDir:   *outDir,
		noExport: *noExport,
		question: strings.TrimSpace(*question),
	}, nil
}

// applyOverrides copies the flags that tune configuration.
func (o *options) applyOverrides(cfg *config.Config) {
	if o.strategy != "" {
		cfg.Harvest.Strategy = o.strategy
	}
	if o.perPage > 0 {
		cfg.Harvest.PerPage = o.perPage
	}
	if o.maxPages > 0 {
		cfg.Harvest.MaxPages = o.maxPages
	}
	if o.topN > 0 {
		cfg.Harvest.TopN = o.topN
	}
	if o.outDir != "" {
		cfg.Storage.ResultsDir = o.outDir
	}
	if o.question != "" {
		cfg.LLM.Enabled = true
	}
}

func run(args []string, stdout io.Writer) error {
	_ = godotenv.Load()

	opts, err := parseFlags(args, os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	if err := opts.params.Validate(); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	opts.applyOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	logger := app.NewLogger(cfg.Logging, true).With().Str("component", "analyzer").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The chat collaborator is created before the fetch so a missing key
	// stops the run before any request.
	asker, err := app.NewAsker(ctx, cfg, logger, nil)
	if err != nil {
		return err
	}

	var svcOpts []pipeline.Option
	store, err := app.OpenStore(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
		svcOpts = append(svcOpts, pipeline.WithStore(store.Repo))
	}
	publisher, err := app.NewPublisher(cfg.Kafka, logger)
	if err != nil {
		return fmt.Errorf("create event publisher: %w", err)
	}
	if publisher != nil {
		defer publisher.Close()
		svcOpts = append(svcOpts, pipeline.WithPublisher(publisher))
	}

	fetcher := app.NewFetcher(cfg, logger, nil)
	svc := pipeline.NewService(fetcher, pipeline.Config{TopN: cfg.Harvest.TopN}, logger, svcOpts...)

	result, err := svc.Run(ctx, opts.params)
	if errors.Is(err, pipeline.ErrNoData) {
		fmt.Fprintln(stdout, pipeline.EmptyResultMessage(result.Analysis.Outcome))
		return nil
	}
	if err != nil {
		return err
	}

	if err := report.Write(stdout, result.Analysis, report.Options{}); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	if !opts.noExport {
		paths, err := export.WriteDir(cfg.Storage.ResultsDir, result.Snapshot)
		if err != nil {
			return fmt.Errorf("export: %w", err)
		}
		fmt.Fprintf(stdout, "\nSaved %s, %s and %s\n", paths.Records, paths.Contributions, paths.Corpus)
	}

	if asker != nil && opts.question != "" {
		resp, err := asker.Ask(ctx, result.Snapshot, opts.question)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "\nQ: %s\nA: %s\n", opts.question, resp.Answer)
		if resp.Truncated {
			fmt.Fprintln(stdout, "(corpus was truncated to fit the request)")
		}
	}

	if store != nil && !result.Stored {
		logger.Warn().Msg("analysis was not stored")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
