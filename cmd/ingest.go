package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spesasmart/catalog-cli/internal/ingest"
	"github.com/spesasmart/catalog-cli/internal/matcher"
	"github.com/spesasmart/catalog-cli/internal/model"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [batch.json ...]",
	Short: "Ingest flyer batch files",
	Long:  "Each argument is a JSON file holding one flyer batch as produced by the extraction layer. Batches are ingested concurrently; re-submitting a batch is a no-op.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		batches := make([]model.FlyerBatch, 0, len(args))
		for _, path := range args {
			raw, err := os.ReadFile(path)
			if err != nil {
				return eris.Wrapf(err, "read batch file %s", path)
			}
			var batch model.FlyerBatch
			if err := json.Unmarshal(raw, &batch); err != nil {
				return eris.Wrapf(err, "parse batch file %s", path)
			}
			batches = append(batches, batch)
		}

		st, err := openStore(ctx)
		if err != nil {
			return eris.Wrap(err, "open store")
		}
		defer st.Close()

		ing := ingest.New(st, matcher.New())
		runner := ingest.NewRunner(ing, cfg.Ingest.MaxConcurrentFlyers, cfg.Ingest.FlyerStartsPerSec)

		report, err := runner.Run(ctx, batches)
		if err != nil {
			return eris.Wrap(err, "ingest run")
		}
		if report.Failed > 0 {
			zap.L().Warn("some flyers failed", zap.Int("failed", report.Failed))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}
