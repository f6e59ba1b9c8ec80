package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/amishk599/searchradar/internal/scheduler"
	"github.com/amishk599/searchradar/internal/store"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the ingestion daemon",
	Long:  "Runs one ingestion immediately, then one per interval; blocks until SIGINT/SIGTERM.",
	RunE:  runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("config loaded",
		"interval", cfg.Interval.String(),
		"sources", len(cfg.EnabledSources()),
		"database", cfg.Database.Driver,
		"embedding", cfg.Embedding.Provider,
		"ai_enabled", cfg.AI.Enabled,
	)

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

	sched := scheduler.NewScheduler(orch, sources, cfg.Interval, logger)
	if err := sched.Run(ctx); err != nil {
		logger.Error("scheduler error", "error", err)
		os.Exit(1)
	}
	engine.Wait()

	logger.Info("goodbye")
	return nil
}
