package analyzer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spesasmart/catalog-cli/internal/model"
	"github.com/spesasmart/catalog-cli/internal/store/storetest"
)

var today = time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

func newAnalyzer(fake *storetest.Fake) *Analyzer {
	return &Analyzer{store: fake, now: func() time.Time { return today }}
}

func timePtr(t time.Time) *time.Time { return &t }

// offer builds an offer for product p1 with the given price and validity
// window, recorded at a unique instant so history ordering is deterministic.
func offer(id string, chainID string, price float64, from, to time.Time, recorded time.Time) model.Offer {
	return model.Offer{
		ID:         id,
		ProductID:  "p1",
		FlyerID:    "f1",
		ChainID:    chainID,
		OfferPrice: price,
		ValidFrom:  timePtr(from),
		ValidTo:    timePtr(to),
		CreatedAt:  recorded,
	}
}

func pastWindow() (time.Time, time.Time) {
	return today.AddDate(0, 0, -21), today.AddDate(0, 0, -15)
}

func currentWindow() (time.Time, time.Time) {
	return today.AddDate(0, 0, -3), today.AddDate(0, 0, 3)
}

func fakeWithOffers(prices ...model.Offer) *storetest.Fake {
	fake := storetest.New()
	fake.Chains = []model.Chain{
		{ID: "c1", Name: "Conad", Slug: "conad"},
		{ID: "c2", Name: "Esselunga", Slug: "esselunga"},
		{ID: "c3", Name: "Lidl", Slug: "lidl"},
	}
	fake.Products = []model.Product{{ID: "p1", Name: "Latte Intero 1L", Category: strPtr("Latticini")}}
	fake.Offers = prices
	return fake
}

func strPtr(s string) *string { return &s }

func TestAveragePriceEmptyHistory(t *testing.T) {
	an := newAnalyzer(fakeWithOffers())
	avg, err := an.AveragePrice(context.Background(), "p1")
	require.NoError(t, err)
	assert.Nil(t, avg)
}

func TestPriceHistoryNewestFirst(t *testing.T) {
	pf, pt := pastWindow()
	cf, ct := currentWindow()
	an := newAnalyzer(fakeWithOffers(
		offer("o1", "c1", 1.19, pf, pt, today.AddDate(0, 0, -20)),
		offer("o2", "c2", 1.29, cf, ct, today.AddDate(0, 0, -2)),
	))

	history, err := an.PriceHistory(context.Background(), "p1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "o2", history[0].OfferID)
	assert.Equal(t, "o1", history[1].OfferID)

	avg, err := an.AveragePrice(context.Background(), "p1")
	require.NoError(t, err)
	require.NotNil(t, avg)
	assert.InDelta(t, 1.24, *avg, 0.0001)
}

func TestBestCurrentPrice(t *testing.T) {
	pf, pt := pastWindow()
	cf, ct := currentWindow()
	an := newAnalyzer(fakeWithOffers(
		offer("o1", "c1", 0.99, pf, pt, today.AddDate(0, 0, -20)), // expired
		offer("o2", "c2", 1.29, cf, ct, today.AddDate(0, 0, -2)),
		offer("o3", "c3", 1.15, cf, ct, today.AddDate(0, 0, -1)),
	))

	best, err := an.BestCurrentPrice(context.Background(), "p1")
	require.NoError(t, err)
	require.NotNil(t, best)
	assert.Equal(t, "o3", best.OfferID)
	assert.InDelta(t, 1.15, best.Price, 0.0001)
}

func TestBestCurrentPriceNoneValid(t *testing.T) {
	pf, pt := pastWindow()
	an := newAnalyzer(fakeWithOffers(
		offer("o1", "c1", 0.99, pf, pt, today.AddDate(0, 0, -20)),
	))

	best, err := an.BestCurrentPrice(context.Background(), "p1")
	require.NoError(t, err)
	assert.Nil(t, best)

	ind, err := an.PriceIndicator(context.Background(), "p1")
	require.NoError(t, err)
	assert.Nil(t, ind)
}

func TestPriceIndicatorBands(t *testing.T) {
	pf, pt := pastWindow()
	cf, ct := currentWindow()

	// Each case keeps the historical average at exactly 10.00 and varies the
	// currently valid price.
	tests := []struct {
		name     string
		inactive float64
		active   float64
		want     model.PriceIndicator
	}{
		{"well below average", 11.05, 7.90, model.IndicatorOttimo},
		{"near average", 10.50, 9.00, model.IndicatorMedio},
		{"at the low bound", 11.00, 8.00, model.IndicatorMedio},
		{"above average", 9.25, 11.50, model.IndicatorAlto},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			an := newAnalyzer(fakeWithOffers(
				offer("o1", "c1", tt.inactive, pf, pt, today.AddDate(0, 0, -20)),
				offer("o2", "c1", tt.inactive, pf, pt, today.AddDate(0, 0, -18)),
				offer("o3", "c2", tt.active, cf, ct, today.AddDate(0, 0, -1)),
			))

			ind, err := an.PriceIndicator(context.Background(), "p1")
			require.NoError(t, err)
			require.NotNil(t, ind)
			assert.Equal(t, tt.want, *ind)
		})
	}
}

func TestCompareChains(t *testing.T) {
	cf, ct := currentWindow()
	an := newAnalyzer(fakeWithOffers(
		offer("o1", "c2", 1.10, cf, ct, today.AddDate(0, 0, -2)),
		offer("o2", "c1", 1.29, cf, ct, today.AddDate(0, 0, -2)),
		offer("o3", "c3", 1.05, cf, ct, today.AddDate(0, 0, -1)),
		// A dearer offer at the cheapest chain must not displace its best.
		offer("o4", "c3", 1.99, cf, ct, today.AddDate(0, 0, -1)),
	))

	comparison, err := an.CompareChains(context.Background(), "p1")
	require.NoError(t, err)
	require.Len(t, comparison, 3)
	assert.Equal(t, "Lidl", comparison[0].ChainName)
	assert.InDelta(t, 1.05, comparison[0].Price, 0.0001)
	assert.Equal(t, "Esselunga", comparison[1].ChainName)
	assert.InDelta(t, 1.10, comparison[1].Price, 0.0001)
	assert.Equal(t, "Conad", comparison[2].ChainName)
	assert.InDelta(t, 1.29, comparison[2].Price, 0.0001)
}

func TestBestOffersByCategory(t *testing.T) {
	cf, ct := currentWindow()
	an := newAnalyzer(fakeWithOffers(
		offer("o1", "c1", 1.29, cf, ct, today.AddDate(0, 0, -2)),
		offer("o2", "c2", 1.10, cf, ct, today.AddDate(0, 0, -2)),
	))

	offers, err := an.BestOffersByCategory(context.Background(), "Latticini", 10)
	require.NoError(t, err)
	require.Len(t, offers, 2)
	assert.Equal(t, "o2", offers[0].OfferID)
	assert.Equal(t, "Latte Intero 1L", offers[0].ProductName)

	none, err := an.BestOffersByCategory(context.Background(), "Surgelati", 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestNewlyValidOffers(t *testing.T) {
	pf, pt := pastWindow()
	cf, ct := currentWindow()
	an := newAnalyzer(fakeWithOffers(
		offer("o1", "c1", 1.29, pf, pt, today.AddDate(0, 0, -20)),
		offer("o2", "c2", 1.10, cf, ct, today.AddDate(0, 0, -1)),
	))

	items, err := an.NewlyValidOffers(context.Background(), today.AddDate(0, 0, -7))
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "o2", items[0].OfferID)
	assert.Equal(t, "p1", items[0].ProductID)
}
