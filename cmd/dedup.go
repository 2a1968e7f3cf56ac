package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/spesasmart/catalog-cli/internal/cleanup"
)

var dedupDryRun bool

var dedupCmd = &cobra.Command{
	Use:   "dedup",
	Short: "Merge duplicate products created by concurrent ingestion",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return eris.Wrap(err, "open store")
		}
		defer st.Close()

		report, err := cleanup.New(st).Run(ctx, dedupDryRun)
		if err != nil {
			return eris.Wrap(err, "dedup run")
		}

		for _, m := range report.Merges {
			verb := "merged"
			if report.DryRun {
				verb = "would merge"
			}
			fmt.Printf("%s %q -> %q (score %.1f)\n", verb, m.DupName, m.KeeperName, m.Score)
		}
		fmt.Printf("scanned %d products, %d merges", report.Scanned, report.Merged)
		if !report.DryRun {
			fmt.Printf(", %d offers repointed, %d watchlist entries moved, %d conflicts resolved",
				report.OffersRepointed, report.WatchlistRepointed, report.WatchlistConflicts)
		}
		fmt.Println()
		return nil
	},
}

func init() {
	dedupCmd.Flags().BoolVar(&dedupDryRun, "dry-run", false, "report planned merges without writing")
	rootCmd.AddCommand(dedupCmd)
}
