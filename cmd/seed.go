package main

import (
	"os"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/spesasmart/catalog-cli/internal/model"
)

var seedFilePath string

type seedFile struct {
	Chains []struct {
		Name       string  `yaml:"name"`
		Slug       string  `yaml:"slug"`
		LogoURL    *string `yaml:"logo_url"`
		WebsiteURL *string `yaml:"website_url"`
	} `yaml:"chains"`
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the chain dimension table from a YAML file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		raw, err := os.ReadFile(seedFilePath)
		if err != nil {
			return eris.Wrapf(err, "read seed file %s", seedFilePath)
		}
		var sf seedFile
		if err := yaml.Unmarshal(raw, &sf); err != nil {
			return eris.Wrap(err, "parse seed file")
		}
		if len(sf.Chains) == 0 {
			return eris.New("seed file contains no chains")
		}

		chains := make([]model.Chain, 0, len(sf.Chains))
		for _, c := range sf.Chains {
			if c.Name == "" || c.Slug == "" {
				return eris.Errorf("chain entry missing name or slug: %+v", c)
			}
			chains = append(chains, model.Chain{
				ID:         uuid.New().String(),
				Name:       c.Name,
				Slug:       c.Slug,
				LogoURL:    c.LogoURL,
				WebsiteURL: c.WebsiteURL,
			})
		}

		st, err := openStore(ctx)
		if err != nil {
			return eris.Wrap(err, "open store")
		}
		defer st.Close()

		n, err := st.UpsertChains(ctx, chains)
		if err != nil {
			return eris.Wrap(err, "seed chains")
		}

		zap.L().Info("chains seeded",
			zap.Int64("upserted", n),
			zap.String("file", seedFilePath))
		return nil
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedFilePath, "file", "", "path to chains YAML file (required)")
	_ = seedCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(seedCmd)
}
