package cleanup

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spesasmart/catalog-cli/internal/model"
	"github.com/spesasmart/catalog-cli/internal/store/storetest"
)

func strPtr(s string) *string { return &s }

func stubDeduper(fake *storetest.Fake, score float64) *Deduper {
	return &Deduper{
		store:   fake,
		scoreFn: func(_, _, _, _ string) float64 { return score },
	}
}

// richPoor returns a richer keeper and a poorer duplicate of the same brand
// from two different sources.
func richPoor() (model.Product, model.Product) {
	rich := model.Product{
		ID:       "rich",
		Name:     "Latte Parzialmente Scremato 1L",
		Brand:    strPtr("Granarolo"),
		Category: strPtr("Latticini"),
		ImageURL: strPtr("https://img.example.com/latte.jpg"),
		Source:   strPtr("chain-a"),
	}
	poor := model.Product{
		ID:     "poor",
		Name:   "Granarolo Latte PS 1L",
		Brand:  strPtr("Granarolo"),
		Source: strPtr("chain-b"),
	}
	return rich, poor
}

func TestDedupMergesIntoRicherProduct(t *testing.T) {
	ctx := context.Background()
	rich, poor := richPoor()

	fake := storetest.New()
	// Poorer product first: richness, not insertion order, picks the keeper.
	fake.Products = []model.Product{poor, rich}
	fake.Offers = []model.Offer{
		{ID: "o1", ProductID: "poor", FlyerID: "f1", ChainID: "c1", OfferPrice: 1.19},
		{ID: "o2", ProductID: "rich", FlyerID: "f2", ChainID: "c2", OfferPrice: 1.29},
	}

	report, err := stubDeduper(fake, 100).Run(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Scanned)
	assert.Equal(t, 1, report.Merged)
	assert.Equal(t, int64(1), report.OffersRepointed)

	require.Len(t, fake.Products, 1)
	assert.Equal(t, "rich", fake.Products[0].ID)

	// Full history survives under the keeper.
	for _, o := range fake.Offers {
		assert.Equal(t, "rich", o.ProductID)
	}
}

func TestDedupSkipsSameSource(t *testing.T) {
	ctx := context.Background()
	rich, poor := richPoor()
	poor.Source = strPtr("chain-a") // same scraper as rich

	fake := storetest.New()
	fake.Products = []model.Product{rich, poor}

	report, err := stubDeduper(fake, 100).Run(ctx, false)
	require.NoError(t, err)
	assert.Zero(t, report.Merged)
	assert.Len(t, fake.Products, 2)
}

func TestDedupSameBrandThreshold(t *testing.T) {
	ctx := context.Background()
	rich, poor := richPoor()

	fake := storetest.New()
	fake.Products = []model.Product{rich, poor}
	report, err := stubDeduper(fake, 79.9).Run(ctx, false)
	require.NoError(t, err)
	assert.Zero(t, report.Merged)

	fake = storetest.New()
	fake.Products = []model.Product{rich, poor}
	report, err = stubDeduper(fake, 80).Run(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Merged)
}

func TestDedupUnbrandedThreshold(t *testing.T) {
	ctx := context.Background()
	a := model.Product{ID: "a", Name: "Pane Casereccio", Source: strPtr("chain-a")}
	b := model.Product{ID: "b", Name: "Pane Casereccio Rustico", Source: strPtr("chain-b")}

	// Without brand agreement the bar stays at 85.
	fake := storetest.New()
	fake.Products = []model.Product{a, b}
	report, err := stubDeduper(fake, 84.9).Run(ctx, false)
	require.NoError(t, err)
	assert.Zero(t, report.Merged)

	fake = storetest.New()
	fake.Products = []model.Product{a, b}
	report, err = stubDeduper(fake, 85).Run(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Merged)
}

func TestDedupCrossBrandPairsNeverCompared(t *testing.T) {
	ctx := context.Background()
	a := model.Product{ID: "a", Name: "Acqua Naturale", Brand: strPtr("Levissima"), Source: strPtr("chain-a")}
	b := model.Product{ID: "b", Name: "Acqua Naturale", Brand: strPtr("San Benedetto"), Source: strPtr("chain-b")}

	fake := storetest.New()
	fake.Products = []model.Product{a, b}
	report, err := stubDeduper(fake, 100).Run(ctx, false)
	require.NoError(t, err)
	assert.Zero(t, report.Merged)
}

func TestDedupEnrichesKeeper(t *testing.T) {
	ctx := context.Background()
	rich, poor := richPoor()
	poor.Barcode = strPtr("8001234567890")
	poor.Subcategory = strPtr("Latte Fresco")
	seen := time.Date(2026, 8, 27, 0, 0, 0, 0, time.UTC)
	poor.LastSeenAt = &seen

	fake := storetest.New()
	fake.Products = []model.Product{rich, poor}

	_, err := stubDeduper(fake, 100).Run(ctx, false)
	require.NoError(t, err)

	require.Len(t, fake.Products, 1)
	keeper := fake.Products[0]
	assert.Equal(t, "rich", keeper.ID)
	assert.Equal(t, "8001234567890", *keeper.Barcode)
	assert.Equal(t, "Latte Fresco", *keeper.Subcategory)
	require.NotNil(t, keeper.LastSeenAt)
	assert.True(t, keeper.LastSeenAt.Equal(seen))

	// Richer fields stay as they were.
	assert.Equal(t, "Latticini", *keeper.Category)
}

func TestDedupResolvesWatchlistConflicts(t *testing.T) {
	ctx := context.Background()
	rich, poor := richPoor()

	fake := storetest.New()
	fake.Products = []model.Product{rich, poor}
	fake.Watchlist = []model.WatchlistEntry{
		{ID: "w1", UserID: "u1", ProductID: "rich"},
		{ID: "w2", UserID: "u1", ProductID: "poor"}, // conflict
		{ID: "w3", UserID: "u2", ProductID: "poor"},
	}

	report, err := stubDeduper(fake, 100).Run(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, int64(1), report.WatchlistConflicts)
	assert.Equal(t, int64(1), report.WatchlistRepointed)

	require.Len(t, fake.Watchlist, 2)
	users := map[string]bool{}
	for _, w := range fake.Watchlist {
		assert.Equal(t, "rich", w.ProductID)
		users[w.UserID] = true
	}
	assert.True(t, users["u1"])
	assert.True(t, users["u2"])
}

func TestDedupDryRun(t *testing.T) {
	ctx := context.Background()
	rich, poor := richPoor()

	fake := storetest.New()
	fake.Products = []model.Product{rich, poor}
	fake.Offers = []model.Offer{
		{ID: "o1", ProductID: "poor", FlyerID: "f1", ChainID: "c1", OfferPrice: 1.19},
	}

	report, err := stubDeduper(fake, 100).Run(ctx, true)
	require.NoError(t, err)
	assert.True(t, report.DryRun)
	assert.Equal(t, 1, report.Merged)
	require.Len(t, report.Merges, 1)
	assert.Equal(t, "rich", report.Merges[0].KeeperID)
	assert.Equal(t, "poor", report.Merges[0].DupID)

	// Nothing written.
	assert.Len(t, fake.Products, 2)
	assert.Equal(t, "poor", fake.Offers[0].ProductID)
}

func TestRichness(t *testing.T) {
	assert.Equal(t, 0, richness(model.Product{}))
	// The placeholder category does not count as real data.
	assert.Equal(t, 0, richness(model.Product{Category: strPtr("Supermercato")}))
	full := model.Product{
		ImageURL:    strPtr("x"),
		Category:    strPtr("Latticini"),
		Subcategory: strPtr("Latte"),
		Unit:        strPtr("1 L"),
		Barcode:     strPtr("800"),
	}
	assert.Equal(t, 8, richness(full))
}
