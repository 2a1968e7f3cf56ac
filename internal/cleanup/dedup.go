// Package cleanup hosts the offline duplicate-product merge job. Ingestion
// accepts that two concurrent observations of the same item can create two
// products; this job finds such pairs after the fact and merges them.
package cleanup

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/spesasmart/catalog-cli/internal/matcher"
	"github.com/spesasmart/catalog-cli/internal/model"
	"github.com/spesasmart/catalog-cli/internal/store"
)

// Merge records one keeper/duplicate pair, either planned (dry run) or
// applied.
type Merge struct {
	KeeperID   string  `json:"keeper_id"`
	KeeperName string  `json:"keeper_name"`
	DupID      string  `json:"dup_id"`
	DupName    string  `json:"dup_name"`
	Score      float64 `json:"score"`
}

// Report summarizes one dedup run.
type Report struct {
	Scanned            int     `json:"scanned"`
	Merged             int     `json:"merged"`
	OffersRepointed    int64   `json:"offers_repointed"`
	WatchlistRepointed int64   `json:"watchlist_repointed"`
	WatchlistConflicts int64   `json:"watchlist_conflicts"`
	DryRun             bool    `json:"dry_run"`
	Merges             []Merge `json:"merges"`
}

// Deduper scans the catalog for duplicate products and merges each duplicate
// into the richest product of its pair, preserving the full offer history.
type Deduper struct {
	store store.Store

	// scoreFn is swappable in tests.
	scoreFn func(name1, name2, brand1, brand2 string) float64
}

func New(st store.Store) *Deduper {
	return &Deduper{store: st, scoreFn: matcher.Score}
}

// Run scans every product pair within each brand group and merges pairs that
// score at or above the matching thresholds. With dryRun set, planned merges
// are reported but nothing is written.
func (d *Deduper) Run(ctx context.Context, dryRun bool) (*Report, error) {
	products, err := d.store.ListProducts(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "cleanup: list products")
	}

	report := &Report{Scanned: len(products), DryRun: dryRun}
	merged := make(map[string]bool)

	for _, group := range groupByBrand(products) {
		// Richest first, so the keeper of any pair is always group[i].
		sort.SliceStable(group, func(i, j int) bool {
			return richness(group[i]) > richness(group[j])
		})

		for i := range group {
			keeper := &group[i]
			if merged[keeper.ID] {
				continue
			}
			for j := i + 1; j < len(group); j++ {
				dup := &group[j]
				if merged[dup.ID] {
					continue
				}
				// Two products from the same scraping source are assumed
				// distinct: the source already deduplicates within itself.
				if keeper.Source != nil && dup.Source != nil && *keeper.Source == *dup.Source {
					continue
				}

				score := d.scoreFn(keeper.Name, dup.Name, deref(keeper.Brand), deref(dup.Brand))
				if score < pairThreshold(keeper, dup) {
					continue
				}

				if dryRun {
					zap.L().Info("would merge products",
						zap.String("keeper", keeper.Name),
						zap.String("dup", dup.Name),
						zap.Float64("score", score))
				} else if err := d.merge(ctx, keeper, dup, report); err != nil {
					return nil, err
				}
				merged[dup.ID] = true
				report.Merged++
				report.Merges = append(report.Merges, Merge{
					KeeperID:   keeper.ID,
					KeeperName: keeper.Name,
					DupID:      dup.ID,
					DupName:    dup.Name,
					Score:      score,
				})
			}
		}
	}

	zap.L().Info("dedup run complete",
		zap.Int("scanned", report.Scanned),
		zap.Int("merged", report.Merged),
		zap.Bool("dry_run", dryRun))
	return report, nil
}

// merge moves everything attached to dup onto keeper, enriches keeper with
// any fields only dup carries, and deletes dup. All or nothing.
func (d *Deduper) merge(ctx context.Context, keeper, dup *model.Product, report *Report) error {
	err := d.store.InTx(ctx, func(st store.Store) error {
		n, err := st.RepointOffers(ctx, dup.ID, keeper.ID)
		if err != nil {
			return eris.Wrap(err, "cleanup: repoint offers")
		}
		report.OffersRepointed += n

		// A user watching both products would violate the (user, product)
		// uniqueness after repointing; drop their entry on the duplicate.
		keeperUsers, err := st.WatchlistUserIDs(ctx, keeper.ID)
		if err != nil {
			return eris.Wrap(err, "cleanup: load keeper watchers")
		}
		if len(keeperUsers) > 0 {
			deleted, err := st.DeleteWatchlistEntries(ctx, dup.ID, keeperUsers)
			if err != nil {
				return eris.Wrap(err, "cleanup: resolve watchlist conflicts")
			}
			report.WatchlistConflicts += deleted
		}
		moved, err := st.RepointWatchlist(ctx, dup.ID, keeper.ID)
		if err != nil {
			return eris.Wrap(err, "cleanup: repoint watchlist")
		}
		report.WatchlistRepointed += moved

		if enrich(keeper, dup) {
			if err := st.UpdateProduct(ctx, keeper); err != nil {
				return eris.Wrap(err, "cleanup: enrich keeper")
			}
		}
		if err := st.DeleteProduct(ctx, dup.ID); err != nil {
			return eris.Wrap(err, "cleanup: delete duplicate")
		}
		return nil
	})
	if err != nil {
		return err
	}

	zap.L().Info("merged products",
		zap.String("keeper_id", keeper.ID),
		zap.String("keeper", keeper.Name),
		zap.String("dup", dup.Name))
	return nil
}

// enrich copies fields the duplicate has and the keeper lacks. Reports
// whether anything changed.
func enrich(keeper, dup *model.Product) bool {
	changed := false
	if (keeper.Category == nil || *keeper.Category == matcher.GenericCategory) &&
		dup.Category != nil && *dup.Category != matcher.GenericCategory {
		keeper.Category = dup.Category
		changed = true
	}
	if keeper.Subcategory == nil && dup.Subcategory != nil {
		keeper.Subcategory = dup.Subcategory
		changed = true
	}
	if keeper.Unit == nil && dup.Unit != nil {
		keeper.Unit = dup.Unit
		changed = true
	}
	if keeper.Barcode == nil && dup.Barcode != nil {
		keeper.Barcode = dup.Barcode
		changed = true
	}
	if keeper.ImageURL == nil && dup.ImageURL != nil {
		keeper.ImageURL = dup.ImageURL
		changed = true
	}
	if keeper.Brand == nil && dup.Brand != nil {
		keeper.Brand = dup.Brand
		changed = true
	}
	if dup.LastSeenAt != nil && (keeper.LastSeenAt == nil || dup.LastSeenAt.After(*keeper.LastSeenAt)) {
		keeper.LastSeenAt = dup.LastSeenAt
		changed = true
	}
	return changed
}

// richness scores how complete a product's optional fields are; the richer
// product of a pair survives a merge.
func richness(p model.Product) int {
	score := 0
	if p.ImageURL != nil {
		score += matcher.RichnessImage
	}
	if p.Category != nil && *p.Category != matcher.GenericCategory {
		score += matcher.RichnessCategory
	}
	if p.Subcategory != nil {
		score += matcher.RichnessSubcategory
	}
	if p.Unit != nil {
		score += matcher.RichnessUnit
	}
	if p.Barcode != nil {
		score += matcher.RichnessBarcode
	}
	return score
}

// groupByBrand buckets products by canonical brand; unbranded products share
// one bucket so they can still pair with each other by name.
func groupByBrand(products []model.Product) map[string][]model.Product {
	groups := make(map[string][]model.Product)
	for _, p := range products {
		key := ""
		if p.Brand != nil {
			key = matcher.NormalizeBrand(*p.Brand)
		}
		groups[key] = append(groups[key], p)
	}
	return groups
}

// pairThreshold mirrors the online matcher: a shared canonical brand lowers
// the bar from 85 to 80.
func pairThreshold(a, b *model.Product) float64 {
	if a.Brand != nil && b.Brand != nil &&
		matcher.NormalizeBrand(*a.Brand) == matcher.NormalizeBrand(*b.Brand) {
		return matcher.BrandMatchThreshold
	}
	return matcher.MatchThreshold
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
