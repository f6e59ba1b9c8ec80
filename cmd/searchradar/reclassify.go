package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/amishk599/searchradar/internal/classify"
	"github.com/amishk599/searchradar/internal/embed"
	"github.com/amishk599/searchradar/internal/store"
	"github.com/amishk599/searchradar/internal/upsert"
)

var reclassifyDryRun bool

var reclassifyCmd = &cobra.Command{
	Use:   "reclassify",
	Short: "Re-run the company classifier over every company",
	Long:  "Classifies each company from its name and the titles it is hiring for, overwriting classification and category.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReclassify(true)
	},
}

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Fill missing company classifications",
	Long:  "Like reclassify, but only sets classification and category where they are still empty.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReclassify(false)
	},
}

func init() {
	reclassifyCmd.Flags().BoolVar(&reclassifyDryRun, "dry-run", false, "print the new classification without saving")
	rootCmd.AddCommand(reclassifyCmd)
	rootCmd.AddCommand(backfillCmd)
}

func runReclassify(overwrite bool) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	db, err := store.Open(cfg.Database)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx := context.Background()

	enc, err := setupEncoder(cfg, logger)
	if err != nil {
		logger.Error("failed to set up embeddings", "error", err)
		os.Exit(1)
	}
	companies, err := classify.NewDefault(ctx, embed.NewService(enc), cfg.Company.Margin, logger)
	if err != nil {
		logger.Error("failed to set up company classifier", "error", err)
		os.Exit(1)
	}
	engine := upsert.NewEngine(db, nil, companies, nil, nil, logger)

	all, err := db.AllCompanies(ctx)
	if err != nil {
		logger.Error("failed to list companies", "error", err)
		os.Exit(1)
	}

	changed, failed := 0, 0
	for _, c := range all {
		titles, err := db.CompanyTitles(ctx, c.ID, 0)
		if err != nil {
			logger.Warn("failed to load titles", "company", c.Name, "error", err)
			failed++
			continue
		}

		if reclassifyDryRun && overwrite {
			verdict := companies.Classify(ctx, c.Name, classify.DescribeFromTitles(titles))
			if verdict != c.Classification {
				fmt.Printf("%-28s %s -> %s\n", truncate(c.Name, 28), orDash(string(c.Classification)), verdict)
				changed++
			}
			continue
		}

		before := c.Classification
		updated, ok, err := engine.Reclassify(ctx, c, titles, overwrite)
		if err != nil {
			logger.Warn("reclassify failed", "company", c.Name, "error", err)
			failed++
			continue
		}
		if ok {
			changed++
			logger.Info("company reclassified",
				"company", c.Name,
				"from", before,
				"to", updated.Classification,
				"category", updated.Category,
			)
		}
	}

	fmt.Printf("\n%d companies checked, %d changed, %d failed\n", len(all), changed, failed)
	return nil
}
