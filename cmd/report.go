package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/spesasmart/catalog-cli/internal/analyzer"
)

var reportOutPath string

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Export the catalog with current prices to an xlsx workbook",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return eris.Wrap(err, "open store")
		}
		defer st.Close()

		products, err := st.ListProducts(ctx)
		if err != nil {
			return eris.Wrap(err, "list products")
		}
		an := analyzer.New(st)

		f := xlsx.NewFile()
		sheet, err := f.AddSheet("Catalog")
		if err != nil {
			return eris.Wrap(err, "add sheet")
		}

		header := sheet.AddRow()
		for _, h := range []string{"ID", "Name", "Brand", "Category", "Barcode", "Average €", "Best today €", "Best chain", "Indicator"} {
			header.AddCell().Value = h
		}

		for _, p := range products {
			row := sheet.AddRow()
			row.AddCell().Value = p.ID
			row.AddCell().Value = p.Name
			row.AddCell().Value = strOrEmpty(p.Brand)
			row.AddCell().Value = strOrEmpty(p.Category)
			row.AddCell().Value = strOrEmpty(p.Barcode)

			avgCell := row.AddCell()
			if avg, err := an.AveragePrice(ctx, p.ID); err != nil {
				return eris.Wrapf(err, "average price %s", p.ID)
			} else if avg != nil {
				avgCell.SetFloatWithFormat(*avg, "0.00")
			}

			bestCell := row.AddCell()
			chainCell := row.AddCell()
			indCell := row.AddCell()
			best, err := an.BestCurrentPrice(ctx, p.ID)
			if err != nil {
				return eris.Wrapf(err, "best price %s", p.ID)
			}
			if best != nil {
				bestCell.SetFloatWithFormat(best.Price, "0.00")
				chainCell.Value = best.ChainName
				ind, err := an.PriceIndicator(ctx, p.ID)
				if err != nil {
					return eris.Wrapf(err, "price indicator %s", p.ID)
				}
				if ind != nil {
					indCell.Value = string(*ind)
				}
			}
		}

		if err := f.Save(reportOutPath); err != nil {
			return eris.Wrapf(err, "save report %s", reportOutPath)
		}

		zap.L().Info("report written",
			zap.String("path", reportOutPath),
			zap.Int("products", len(products)))
		return nil
	},
}

func strOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func init() {
	reportCmd.Flags().StringVar(&reportOutPath, "out", "catalog.xlsx", "output xlsx path")
	rootCmd.AddCommand(reportCmd)
}
