package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/amishk599/searchradar/internal/model"
	"github.com/amishk599/searchradar/internal/review"
	"github.com/amishk599/searchradar/internal/store"
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Browse companies and their AI-search jobs (TUI)",
	Long:  "Shows the company picker TUI, then the job list with a detail pane for the chosen company.",
	RunE:  runReview,
}

func init() {
	rootCmd.AddCommand(reviewCmd)
}

func runReview(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// No logger here: log output before the alt-screen starts corrupts the display.
	db, err := store.Open(cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open store: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	companies, err := db.ListCompanies(context.Background(), model.CompanyQuery{MinRoles: 1})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to list companies: %v\n", err)
		os.Exit(1)
	}

	for {
		choice, err := review.RunCompanyPicker(companies)
		if err != nil {
			fmt.Printf("Picker error: %v\n", err)
			return nil
		}
		if choice < 0 {
			return nil
		}
		company := companies[choice]

		jobs, err := review.RunLoader(company.Name, func(ctx context.Context) ([]model.Job, error) {
			return db.CompanyJobs(ctx, company.ID)
		})
		if err != nil {
			fmt.Printf("Error loading jobs: %v\n", err)
			continue
		}

		wantQuit, err := review.RunJobsView(company, jobs)
		if err != nil {
			fmt.Printf("TUI error: %v\n", err)
		}
		if wantQuit {
			return nil
		}
		// else: loop → back to picker
	}
}
