package app

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/Guqie/news-workflow/internal/cli"
	"github.com/Guqie/news-workflow/internal/config"
	"github.com/Guqie/news-workflow/internal/ingest"
	"github.com/Guqie/news-workflow/internal/judge"
	"github.com/Guqie/news-workflow/internal/logging"
	"github.com/Guqie/news-workflow/internal/pipeline"
	"github.com/Guqie/news-workflow/internal/resolve"
	"github.com/Guqie/news-workflow/internal/store"
)

// runSummary is the JSON document `run` prints on stdout.
type runSummary struct {
	Input        int                    `json:"input"`
	Curated      int                    `json:"curated"`
	Rejected     int                    `json:"rejected"`
	Stages       []pipeline.StageStats  `json:"stages"`
	Resolve      resolve.Stats          `json:"resolve"`
	Semantic     pipeline.SemanticStats `json:"semantic"`
	CategoryHits map[string]int         `json:"category_hits,omitempty"`
	RunID        *int64                 `json:"run_id,omitempty"`
	Elapsed      string                 `json:"elapsed"`
}

func runPipeline(args []string) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	sourcesPath := fs.String("sources", "", "Path to the source catalogue JSON")
	inputPath := fs.String("input", "", "Path to a JSON array of raw payloads")
	save := fs.Bool("save", false, "Persist the outcome to the database")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if *sourcesPath == "" && *inputPath == "" {
		fmt.Fprintln(os.Stderr, "one of --sources or --input is required")
		return 2
	}

	if envLoader != nil {
		if _, err := envLoader.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}

	keywordRules, err := config.LoadKeywordRules(cfg.KeywordRulesPath)
	if err != nil {
		logger.Error().Err(err).Msg("keyword rules unavailable")
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	qualityRules, err := config.LoadQualityRules(cfg.QualityRulesPath)
	if err != nil {
		logger.Error().Err(err).Msg("quality rules unavailable")
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.RunDeadline)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Warn().Msg("interrupt received; cancelling run")
			cancel()
		case <-ctx.Done():
		}
	}()

	payloads, code := collectPayloads(ctx, *sourcesPath, *inputPath, logger)
	if code != 0 {
		return code
	}
	if len(payloads) == 0 {
		logger.Warn().Msg("no payloads collected; nothing to do")
		fmt.Fprintln(os.Stderr, "no payloads collected")
		return 0
	}

	judgeClient := judge.NewClient(judge.Config{
		Endpoint:       cfg.JudgeEndpoint,
		APIKey:         cfg.JudgeAPIKey,
		Model:          cfg.JudgeModel,
		RequestTimeout: cfg.JudgeTimeout,
	}, logger)

	resolver := resolve.NewResolver(resolve.Options{
		FetchTimeout: cfg.FetchTimeout,
		PerHostDelay: cfg.PerHostDelay,
		Workers:      cfg.ResolveWorkers,
	}, logger)

	service := pipeline.NewService(
		pipeline.NewNormalizer(pipeline.NormalizerOptions{DetectLanguage: cfg.DetectLanguages}, logger),
		pipeline.NewDeduplicator(cfg.SimilarityThreshold, logger),
		pipeline.NewKeywordFilter(keywordRules, logger),
		resolver,
		pipeline.NewQualityFilter(qualityRules, logger),
		pipeline.NewSemanticFilter(judgeClient, cfg.SemanticBatchSize, cfg.SemanticWorkers, logger),
		logger,
	)

	startedAt := time.Now().UTC()
	outcome, err := service.Process(ctx, payloads)
	if err != nil {
		logger.Error().Err(err).Msg("pipeline run failed")
		fmt.Fprintf(os.Stderr, "pipeline run failed: %v\n", err)
		return 1
	}

	summary := runSummary{
		Input:        len(payloads),
		Curated:      len(outcome.Curated),
		Rejected:     len(outcome.Rejected),
		Stages:       outcome.Stages,
		Resolve:      outcome.Resolve,
		Semantic:     outcome.Semantic,
		CategoryHits: outcome.CategoryHits,
		Elapsed:      time.Since(startedAt).Round(time.Millisecond).String(),
	}

	if *save {
		saveCtx, saveCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer saveCancel()

		db, err := store.Open(saveCtx, cfg)
		if err != nil {
			logger.Error().Err(err).Msg("database unavailable")
			fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
			return 1
		}
		defer db.Close()

		run, err := db.SaveOutcome(saveCtx, outcome, startedAt)
		if err != nil {
			logger.Error().Err(err).Msg("save outcome failed")
			fmt.Fprintf(os.Stderr, "Failed to save outcome: %v\n", err)
			return 1
		}
		summary.RunID = &run.ID
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(summary); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode summary: %v\n", err)
		return 1
	}
	return 0
}

// collectPayloads gathers raw payloads from the source catalogue and
// the optional input file. The second return value is a process exit
// code; zero means success.
func collectPayloads(ctx context.Context, sourcesPath, inputPath string, logger zerolog.Logger) ([]json.RawMessage, int) {
	var payloads []json.RawMessage

	if sourcesPath != "" {
		sources, err := loadSources(sourcesPath)
		if err != nil {
			logger.Error().Err(err).Msg("source catalogue unavailable")
			fmt.Fprintf(os.Stderr, "%v\n", err)
			return nil, 1
		}
		payloads = append(payloads, ingest.FetchAll(ctx, sources, logger)...)
	}

	if inputPath != "" {
		raw, err := os.ReadFile(inputPath)
		if err != nil {
			logger.Error().Err(err).Msg("input file unavailable")
			fmt.Fprintf(os.Stderr, "read input %s: %v\n", inputPath, err)
			return nil, 1
		}
		var fileItems []json.RawMessage
		if err := json.Unmarshal(raw, &fileItems); err != nil {
			logger.Error().Err(err).Msg("input file is not a JSON array")
			fmt.Fprintf(os.Stderr, "parse input %s: %v\n", inputPath, err)
			return nil, 1
		}
		payloads = append(payloads, fileItems...)
	}

	return payloads, 0
}
