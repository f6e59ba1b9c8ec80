package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/amishk599/searchradar/internal/store"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Run one ingestion and exit",
	Long:  "Fetches every enabled source once, persists the AI-search roles and prints per-source counters.",
	RunE:  runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	lock, err := acquireLock(cfg)
	if err != nil {
		logger.Error("failed to acquire lock", "error", err)
		os.Exit(1)
	}
	defer lock.Unlock()

	db, err := store.Open(cfg.Database)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hook := setupHook(cfg, newAPIClient(30*time.Second), logger)
	orch, engine, err := newIngestion(ctx, cfg, db, hook, logger)
	if err != nil {
		logger.Error("failed to set up ingestion", "error", err)
		os.Exit(1)
	}

	sources := buildSources(cfg, "", logger)
	if len(sources) == 0 {
		logger.Error("no sources to ingest")
		os.Exit(1)
	}

	stats := orch.Run(ctx, sources)
	engine.Wait()
	printStats(stats)
	return nil
}
