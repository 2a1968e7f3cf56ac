// Package analyzer computes price statistics over a product's offer history:
// averages, the best currently valid price, deal quality indicators and
// cross-chain comparisons.
package analyzer

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"

	"github.com/spesasmart/catalog-cli/internal/matcher"
	"github.com/spesasmart/catalog-cli/internal/model"
	"github.com/spesasmart/catalog-cli/internal/store"
)

// Analyzer answers price questions from the offer history. It holds no state
// beyond the store handle; every call reads the current catalog.
type Analyzer struct {
	store store.Store
	now   func() time.Time
}

func New(st store.Store) *Analyzer {
	return &Analyzer{store: st, now: time.Now}
}

// PriceHistory returns every recorded price for a product, newest first.
func (a *Analyzer) PriceHistory(ctx context.Context, productID string) ([]model.PricePoint, error) {
	history, err := a.store.PriceHistory(ctx, productID)
	if err != nil {
		return nil, eris.Wrap(err, "analyzer: load price history")
	}
	return history, nil
}

// AveragePrice is the arithmetic mean over the full price history, nil when
// the product has no recorded offers.
func (a *Analyzer) AveragePrice(ctx context.Context, productID string) (*float64, error) {
	history, err := a.PriceHistory(ctx, productID)
	if err != nil {
		return nil, err
	}
	return mean(history), nil
}

// BestCurrentPrice returns the cheapest offer valid today, nil when no offer
// is currently valid.
func (a *Analyzer) BestCurrentPrice(ctx context.Context, productID string) (*model.PricePoint, error) {
	active, err := a.store.ActiveOffers(ctx, productID, a.now())
	if err != nil {
		return nil, eris.Wrap(err, "analyzer: load active offers")
	}
	return cheapest(active), nil
}

// PriceIndicator rates today's best price against the historical average:
// "ottimo" under 80% of the average, "alto" over 110%, "medio" in between.
// Nil when the product has no valid offer today or no history to compare to.
func (a *Analyzer) PriceIndicator(ctx context.Context, productID string) (*model.PriceIndicator, error) {
	best, err := a.BestCurrentPrice(ctx, productID)
	if err != nil || best == nil {
		return nil, err
	}
	avg, err := a.AveragePrice(ctx, productID)
	if err != nil || avg == nil || *avg == 0 {
		return nil, err
	}

	var ind model.PriceIndicator
	switch {
	case best.Price < *avg*matcher.IndicatorLowFactor:
		ind = model.IndicatorOttimo
	case best.Price > *avg*matcher.IndicatorHighFactor:
		ind = model.IndicatorAlto
	default:
		ind = model.IndicatorMedio
	}
	return &ind, nil
}

// CompareChains returns the cheapest currently valid offer per chain,
// cheapest chain first. Chains with no valid offer are absent.
func (a *Analyzer) CompareChains(ctx context.Context, productID string) ([]model.ChainPrice, error) {
	active, err := a.store.ActiveOffers(ctx, productID, a.now())
	if err != nil {
		return nil, eris.Wrap(err, "analyzer: load active offers")
	}

	byChain := make(map[string]model.PricePoint)
	for _, p := range active {
		if cur, ok := byChain[p.ChainID]; !ok || p.Price < cur.Price {
			byChain[p.ChainID] = p
		}
	}

	out := make([]model.ChainPrice, 0, len(byChain))
	for _, p := range byChain {
		out = append(out, model.ChainPrice{
			ChainID:       p.ChainID,
			ChainName:     p.ChainName,
			Price:         p.Price,
			OriginalPrice: p.OriginalPrice,
			DiscountPct:   p.DiscountPct,
			ValidTo:       p.ValidTo,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Price < out[j].Price })
	return out, nil
}

// BestOffersByCategory lists the cheapest currently valid offers in a
// category, ascending by price.
func (a *Analyzer) BestOffersByCategory(ctx context.Context, category string, limit int) ([]model.CategoryOffer, error) {
	offers, err := a.store.ActiveCategoryOffers(ctx, category, a.now(), limit)
	if err != nil {
		return nil, eris.Wrap(err, "analyzer: load category offers")
	}
	return offers, nil
}

// NewlyValidOffers feeds the notification layer: offers recorded since the
// given instant, for matching against user watchlists downstream.
func (a *Analyzer) NewlyValidOffers(ctx context.Context, since time.Time) ([]store.OfferFeedItem, error) {
	items, err := a.store.NewOffersSince(ctx, since)
	if err != nil {
		return nil, eris.Wrap(err, "analyzer: load new offers")
	}
	return items, nil
}

func mean(history []model.PricePoint) *float64 {
	if len(history) == 0 {
		return nil
	}
	var sum float64
	for _, p := range history {
		sum += p.Price
	}
	avg := sum / float64(len(history))
	return &avg
}

func cheapest(points []model.PricePoint) *model.PricePoint {
	var best *model.PricePoint
	for i := range points {
		if best == nil || points[i].Price < best.Price {
			best = &points[i]
		}
	}
	return best
}
