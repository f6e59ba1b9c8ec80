package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/amishk599/searchradar/internal/notifier"
	"github.com/amishk599/searchradar/internal/store"
)

var checkSource string

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Ingest once without persisting",
	Long:  "Dry run: fetches, scores and classifies like ingest, but writes nothing to the store.",
	RunE:  runCheck,
}

func init() {
	checkCmd.Flags().StringVar(&checkSource, "source", "", "only check the source with this name")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("check mode: nothing will be persisted")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Competitor detections are only logged in check mode.
	hook := notifier.NewLogNotifier(logger)
	orch, engine, err := newIngestion(ctx, cfg, store.NewNopStore(), hook, logger)
	if err != nil {
		logger.Error("failed to set up ingestion", "error", err)
		os.Exit(1)
	}

	// Keep the per-job noise out of the summary unless --debug is set.
	sourceLogger := logger
	if !debug {
		sourceLogger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	sources := buildSources(cfg, checkSource, sourceLogger)
	if len(sources) == 0 {
		logger.Error("no matching sources", "source", checkSource)
		os.Exit(1)
	}

	stats := orch.Run(ctx, sources)
	engine.Wait()
	printStats(stats)

	logger.Info("check complete")
	return nil
}
