package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/amishk599/searchradar/internal/store"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print aggregate counters",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	db, err := store.Open(cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open store: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	st, err := db.Stats(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to query stats: %v\n", err)
		os.Exit(1)
	}

	last := "never"
	if st.LastIngestionAt != nil {
		last = st.LastIngestionAt.Local().Format(time.RFC1123)
	}
	fmt.Printf("Companies:        %d\n", st.TotalCompanies)
	fmt.Printf("  Competitors:    %d\n", st.TotalCompetitors)
	fmt.Printf("  Clients:        %d\n", st.TotalClients)
	fmt.Printf("AI-search jobs:   %d\n", st.TotalAISearchJobs)
	fmt.Printf("Last ingestion:   %s\n", last)
	return nil
}
