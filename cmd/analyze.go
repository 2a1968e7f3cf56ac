package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/spesasmart/catalog-cli/internal/analyzer"
)

var (
	analyzeCategory string
	analyzeLimit    int
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [product-id]",
	Short: "Price analysis for a product or a category",
	Long:  "With a product ID, prints price history, average, current best price, deal indicator and the per-chain comparison. With --category, ranks the cheapest currently valid offers in that category.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if len(args) == 0 && analyzeCategory == "" {
			return eris.New("either a product ID or --category is required")
		}

		st, err := openStore(ctx)
		if err != nil {
			return eris.Wrap(err, "open store")
		}
		defer st.Close()

		an := analyzer.New(st)

		if analyzeCategory != "" {
			offers, err := an.BestOffersByCategory(ctx, analyzeCategory, analyzeLimit)
			if err != nil {
				return eris.Wrap(err, "category offers")
			}
			if len(offers) == 0 {
				fmt.Printf("no valid offers in category %q\n", analyzeCategory)
				return nil
			}
			for _, o := range offers {
				brand := ""
				if o.Brand != nil {
					brand = " (" + *o.Brand + ")"
				}
				fmt.Printf("%.2f €  %s%s @ %s\n", o.Price, o.ProductName, brand, o.ChainName)
			}
			return nil
		}

		productID := args[0]
		product, err := st.ProductByID(ctx, productID)
		if err != nil {
			return eris.Wrap(err, "load product")
		}
		if product == nil {
			return eris.Errorf("product not found: %s", productID)
		}
		fmt.Printf("%s\n", product.Name)

		history, err := an.PriceHistory(ctx, productID)
		if err != nil {
			return eris.Wrap(err, "price history")
		}
		fmt.Printf("history: %d offers\n", len(history))

		if avg, err := an.AveragePrice(ctx, productID); err != nil {
			return eris.Wrap(err, "average price")
		} else if avg != nil {
			fmt.Printf("average: %.2f €\n", *avg)
		}

		best, err := an.BestCurrentPrice(ctx, productID)
		if err != nil {
			return eris.Wrap(err, "best price")
		}
		if best == nil {
			fmt.Println("no offer valid today")
			return nil
		}
		fmt.Printf("best today: %.2f € @ %s\n", best.Price, best.ChainName)

		if ind, err := an.PriceIndicator(ctx, productID); err != nil {
			return eris.Wrap(err, "price indicator")
		} else if ind != nil {
			fmt.Printf("indicator: %s\n", *ind)
		}

		comparison, err := an.CompareChains(ctx, productID)
		if err != nil {
			return eris.Wrap(err, "chain comparison")
		}
		for _, c := range comparison {
			fmt.Printf("  %s: %.2f €\n", c.ChainName, c.Price)
		}
		return nil
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeCategory, "category", "", "rank offers in this category instead of analyzing one product")
	analyzeCmd.Flags().IntVar(&analyzeLimit, "limit", 20, "max offers to list with --category")
	rootCmd.AddCommand(analyzeCmd)
}
