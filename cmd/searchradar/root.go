package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/amishk599/searchradar/internal/adapter"
	"github.com/amishk599/searchradar/internal/ai"
	"github.com/amishk599/searchradar/internal/classify"
	"github.com/amishk599/searchradar/internal/config"
	"github.com/amishk599/searchradar/internal/embed"
	"github.com/amishk599/searchradar/internal/enrich"
	"github.com/amishk599/searchradar/internal/filter"
	"github.com/amishk599/searchradar/internal/model"
	"github.com/amishk599/searchradar/internal/notifier"
	"github.com/amishk599/searchradar/internal/poller"
	"github.com/amishk599/searchradar/internal/ratelimit"
	"github.com/amishk599/searchradar/internal/retry"
	"github.com/amishk599/searchradar/internal/upsert"
)

var (
	cfgPath string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "searchradar",
	Short: "Track who is hiring for AI-search roles",
	Long:  "SearchRadar scrapes job listings, keeps the AI-search roles and classifies each hiring company as a competitor or a potential client.",
	// Default to `start` so that `searchradar` with no args runs the daemon.
	RunE:          runStart,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file (default: SEARCHRADAR_CONFIG env var or ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

// loadConfig resolves the config path and parses it.
// Priority: explicit path arg > SEARCHRADAR_CONFIG env var > "./config.yaml"
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		if env := os.Getenv("SEARCHRADAR_CONFIG"); env != "" {
			path = env
		} else {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

func setupLogger(dbg bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if dbg {
		logLevel = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
}

// newAPIClient returns a resty client for JSON APIs and webhooks. Retries are
// left to the callers.
func newAPIClient(timeout time.Duration) *resty.Client {
	return resty.New().SetTimeout(timeout)
}

func setupHook(cfg *config.Config, client *resty.Client, logger *slog.Logger) model.CompetitorHook {
	switch cfg.Notification.Type {
	case "slack":
		logger.Info("using slack notifier")
		return notifier.NewSlackNotifier(cfg.Notification.WebhookURL, client, logger)
	default:
		return notifier.NewLogNotifier(logger)
	}
}

func setupEncoder(cfg *config.Config, logger *slog.Logger) (embed.Encoder, error) {
	switch cfg.Embedding.Provider {
	case "openai":
		enc, err := embed.NewOpenAIEncoder(cfg.Embedding.BaseURL, cfg.Embedding.APIKey, cfg.Embedding.Model, logger)
		if err != nil {
			return nil, err
		}
		return enc, nil
	default:
		return embed.NewHashEncoder(cfg.Embedding.Dimensions), nil
	}
}

func setupProvider(ctx context.Context, cfg *config.Config) (ai.LLMProvider, error) {
	if !cfg.AI.Enabled {
		return ai.NewNopProvider(), nil
	}
	switch cfg.AI.Provider {
	case "gemini":
		p, err := ai.NewGeminiProvider(ctx, cfg.AI.APIKey, cfg.AI.Model)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return ai.NewOpenAIProvider(cfg.AI.BaseURL, cfg.AI.APIKey, cfg.AI.Model, newAPIClient(cfg.AI.Timeout)), nil
	}
}

// classifiers holds everything built from the embedding service.
type classifiers struct {
	relevance     *filter.RelevanceClassifier
	companies     *classify.CompanyClassifier
	opportunities *ai.OpportunityClassifier
}

func setupClassifiers(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*classifiers, error) {
	enc, err := setupEncoder(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("embedding provider: %w", err)
	}
	svc := embed.NewService(enc)

	relevance, err := filter.NewRelevanceClassifier(ctx, svc, cfg.Relevance.Seeds, cfg.Relevance.High, cfg.Relevance.Medium)
	if err != nil {
		return nil, err
	}
	companies, err := classify.NewDefault(ctx, svc, cfg.Company.Margin, logger)
	if err != nil {
		return nil, fmt.Errorf("company classifier: %w", err)
	}

	provider, err := setupProvider(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("reasoning provider: %w", err)
	}
	opportunities := ai.NewOpportunityClassifier(provider, ai.NewJudgmentCache(cfg.AI.CacheTTL, cfg.AI.CacheSize), logger,
		ai.WithMaxConcurrency(cfg.AI.MaxConcurrency),
		ai.WithTimeout(cfg.AI.Timeout),
		ai.WithRetryPolicy(retry.Policy{
			MaxRetries: cfg.AI.MaxRetries,
			Backoff:    retry.Exponential(time.Second),
			Retryable:  retry.IsRetryable,
		}),
	)

	if cfg.AI.Enabled {
		logger.Info("opportunity classifier enabled", "provider", cfg.AI.Provider, "model", cfg.AI.Model)
	}
	return &classifiers{relevance: relevance, companies: companies, opportunities: opportunities}, nil
}

// buildSources creates the enabled sources. A non-empty only restricts the
// result to the source with that name.
func buildSources(cfg *config.Config, only string, logger *slog.Logger) []model.Source {
	client := adapter.NewHTTPClient(cfg.Ingest.RequestTimeout)
	limiter := ratelimit.NewHostLimiter(cfg.Ingest.MinDelay)

	var sources []model.Source
	for _, s := range cfg.EnabledSources() {
		if only != "" && s.Name != only {
			continue
		}
		switch s.Type {
		case "seojobs":
			sources = append(sources, adapter.NewSEOJobsSource(s.Name, s.BaseURL, client, limiter, adapter.PipelineConfig{
				MaxPages:          s.MaxPages,
				DetailConcurrency: s.DetailConcurrency,
				DetailRetries:     cfg.Ingest.DetailRetries,
				DetailBackoff:     cfg.Ingest.DetailBackoff,
				DelayMin:          cfg.Ingest.DetailDelayMin,
				DelayMax:          cfg.Ingest.DetailDelayMax,
			}, logger))
		case "mock":
			sources = append(sources, adapter.NewMockSource(s.Name))
		default:
			logger.Warn("unsupported source type, skipping", "source", s.Name, "type", s.Type)
			continue
		}
		logger.Info("registered source", "source", s.Name, "type", s.Type)
	}
	return sources
}

// newIngestion wires the full pipeline over st.
func newIngestion(ctx context.Context, cfg *config.Config, st model.Store, hook model.CompetitorHook, logger *slog.Logger) (*poller.Orchestrator, *upsert.Engine, error) {
	cls, err := setupClassifiers(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	engine := upsert.NewEngine(st, cls.relevance, cls.companies, cls.opportunities, hook, logger)
	orch := poller.NewOrchestrator(cls.relevance, enrich.Apply, engine, logger,
		poller.WithUpsertConcurrency(cfg.Ingest.UpsertConcurrency))
	return orch, engine, nil
}

// acquireLock takes the single-run lock that sits next to the database.
func acquireLock(cfg *config.Config) (*flock.Flock, error) {
	path := filepath.Join(os.TempDir(), "searchradar.lock")
	if cfg.Database.Driver == "sqlite" {
		path = cfg.Database.Path + ".lock"
	}
	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("another searchradar run holds %s", path)
	}
	return fl, nil
}

func printStats(stats []poller.SourceStats) {
	fmt.Printf("\n%-16s %6s %9s %8s %9s %7s  %s\n", "Source", "Seen", "Relevant", "Skipped", "Upserted", "Errors", "Duration")
	for _, st := range stats {
		status := st.Duration.Round(time.Millisecond).String()
		if st.Err != nil {
			status = "listing failed: " + st.Err.Error()
		}
		fmt.Printf("%-16s %6d %9d %8d %9d %7d  %s\n", st.Source, st.Seen, st.Relevant, st.Skipped, st.Upserted, st.Errors, status)
	}
}
