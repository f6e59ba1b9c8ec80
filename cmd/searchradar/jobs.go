package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/amishk599/searchradar/internal/store"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Job subcommands",
}

var missingDescriptionsCmd = &cobra.Command{
	Use:   "missing-descriptions",
	Short: "List AI-search jobs stored without a description",
	Long:  "Lists jobs whose detail fetch never yielded a description, so they can be re-scraped.",
	RunE:  runMissingDescriptions,
}

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.AddCommand(missingDescriptionsCmd)
}

func runMissingDescriptions(cmd *cobra.Command, args []string) error {
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

	jobs, err := db.JobsMissingDescription(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to query jobs: %v\n", err)
		os.Exit(1)
	}

	for _, j := range jobs {
		fmt.Printf("%-24s %-40s %s\n", truncate(j.CompanyName, 24), truncate(j.Title, 40), j.URL)
	}
	fmt.Printf("\n%d jobs without a description\n", len(jobs))
	return nil
}
