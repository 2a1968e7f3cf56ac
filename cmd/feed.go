package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/spesasmart/catalog-cli/internal/analyzer"
)

var feedSince string

var feedCmd = &cobra.Command{
	Use:   "feed",
	Short: "Print offers recorded since a given time as JSON",
	Long:  "Emits the offer feed consumed by the notification layer for watchlist matching. --since takes RFC 3339 or YYYY-MM-DD.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		since, err := time.Parse(time.RFC3339, feedSince)
		if err != nil {
			since, err = time.Parse("2006-01-02", feedSince)
		}
		if err != nil {
			return eris.Errorf("invalid --since value %q", feedSince)
		}

		st, err := openStore(ctx)
		if err != nil {
			return eris.Wrap(err, "open store")
		}
		defer st.Close()

		items, err := analyzer.New(st).NewlyValidOffers(ctx, since)
		if err != nil {
			return eris.Wrap(err, "load offer feed")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	},
}

func init() {
	feedCmd.Flags().StringVar(&feedSince, "since", "", "cutoff time (required)")
	_ = feedCmd.MarkFlagRequired("since")
	rootCmd.AddCommand(feedCmd)
}
