package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/amishk599/searchradar/internal/model"
	"github.com/amishk599/searchradar/internal/store"
)

var companiesQuery model.CompanyQuery

var companiesCmd = &cobra.Command{
	Use:   "companies",
	Short: "List companies hiring for AI-search roles",
	Long:  "Prints a table of companies with their classification, AI-search role count and sample titles.",
	RunE:  runCompanies,
}

func init() {
	companiesCmd.Flags().IntVar(&companiesQuery.MinRoles, "min-roles", 1, "only companies with at least this many AI-search roles")
	companiesCmd.Flags().StringVar(&companiesQuery.Category, "category", "", "filter by category")
	companiesCmd.Flags().StringVar(&companiesQuery.Region, "region", "", "filter by region")
	rootCmd.AddCommand(companiesCmd)
}

func runCompanies(cmd *cobra.Command, args []string) error {
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

	companies, err := db.ListCompanies(context.Background(), companiesQuery)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to list companies: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("%-28s %-11s %-21s %5s  %s\n", "Company", "Class", "Category", "Roles", "Sample titles")
	fmt.Println(strings.Repeat("─", 100))

	competitors := 0
	for _, c := range companies {
		if c.Classification == model.ClassificationCompetitor {
			competitors++
		}
		fmt.Printf("%-28s %-11s %-21s %5d  %s\n",
			truncate(c.Name, 28), orDash(string(c.Classification)), orDash(c.Category),
			c.AISearchRoles, strings.Join(c.SampleTitles, "; "))
	}

	fmt.Printf("\nTotal: %d companies (%d competitors, %d clients)\n", len(companies), competitors, len(companies)-competitors)
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
