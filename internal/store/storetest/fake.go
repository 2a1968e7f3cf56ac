// Package storetest provides an in-memory Store for tests of the matching,
// ingestion, analysis and cleanup packages.
package storetest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/spesasmart/catalog-cli/internal/model"
	"github.com/spesasmart/catalog-cli/internal/store"
)

// Fake is an in-memory store.Store. Transactions are not isolated: InTx runs
// fn against the same state, which matches what the tests need.
type Fake struct {
	mu sync.Mutex

	Products  []model.Product
	Chains    []model.Chain
	Flyers    []model.Flyer
	Offers    []model.Offer
	Watchlist []model.WatchlistEntry

	// Err, when set, is returned by every method.
	Err error
}

func New() *Fake {
	return &Fake{}
}

func (f *Fake) CreateProduct(_ context.Context, p *model.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.Products = append(f.Products, *p)
	return nil
}

func (f *Fake) ProductByID(_ context.Context, id string) (*model.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	for i := range f.Products {
		if f.Products[i].ID == id {
			p := f.Products[i]
			return &p, nil
		}
	}
	return nil, nil
}

func (f *Fake) ProductByBarcode(_ context.Context, barcode string) (*model.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	for i := range f.Products {
		if f.Products[i].Barcode != nil && *f.Products[i].Barcode == barcode {
			p := f.Products[i]
			return &p, nil
		}
	}
	return nil, nil
}

func (f *Fake) UpdateProduct(_ context.Context, p *model.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	for i := range f.Products {
		if f.Products[i].ID == p.ID {
			f.Products[i] = *p
			return nil
		}
	}
	return eris.Errorf("product not found: %s", p.ID)
}

func (f *Fake) DeleteProduct(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	for i := range f.Products {
		if f.Products[i].ID == id {
			f.Products = append(f.Products[:i], f.Products[i+1:]...)
			return nil
		}
	}
	return eris.Errorf("product not found: %s", id)
}

func (f *Fake) ListProducts(_ context.Context) ([]model.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	out := make([]model.Product, len(f.Products))
	copy(out, f.Products)
	return out, nil
}

func (f *Fake) FindCandidates(_ context.Context, filter store.CandidateFilter) ([]model.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	var out []model.Product
	for _, p := range f.Products {
		if filter.Brand != "" {
			if p.Brand == nil || !strings.EqualFold(*p.Brand, filter.Brand) {
				continue
			}
		}
		if len(filter.Tokens) > 0 && !containsAnyToken(p.Name, filter.Tokens) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func containsAnyToken(name string, tokens []string) bool {
	lower := strings.ToLower(name)
	for _, tok := range tokens {
		if strings.Contains(lower, strings.ToLower(tok)) {
			return true
		}
	}
	return false
}

func (f *Fake) ChainBySlug(_ context.Context, slug string) (*model.Chain, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	for i := range f.Chains {
		if f.Chains[i].Slug == slug {
			c := f.Chains[i]
			return &c, nil
		}
	}
	return nil, nil
}

func (f *Fake) UpsertChains(_ context.Context, chains []model.Chain) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return 0, f.Err
	}
	var n int64
outer:
	for _, c := range chains {
		for i := range f.Chains {
			if f.Chains[i].Slug == c.Slug {
				f.Chains[i].Name = c.Name
				f.Chains[i].LogoURL = c.LogoURL
				f.Chains[i].WebsiteURL = c.WebsiteURL
				n++
				continue outer
			}
		}
		f.Chains = append(f.Chains, c)
		n++
	}
	return n, nil
}

func (f *Fake) FlyerByKey(_ context.Context, key model.FlyerKey) (*model.Flyer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	for i := range f.Flyers {
		if f.Flyers[i].Key() == key {
			fl := f.Flyers[i]
			return &fl, nil
		}
	}
	return nil, nil
}

func (f *Fake) CreateFlyer(_ context.Context, fl *model.Flyer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.Flyers = append(f.Flyers, *fl)
	return nil
}

func (f *Fake) SetFlyerStatus(_ context.Context, id string, status model.FlyerStatus, pagesCount int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	for i := range f.Flyers {
		if f.Flyers[i].ID == id {
			f.Flyers[i].Status = status
			f.Flyers[i].PagesCount = pagesCount
			return nil
		}
	}
	return eris.Errorf("flyer not found: %s", id)
}

func (f *Fake) CreateOffer(_ context.Context, o *model.Offer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.Offers = append(f.Offers, *o)
	return nil
}

func (f *Fake) chainName(id string) string {
	for _, c := range f.Chains {
		if c.ID == id {
			return c.Name
		}
	}
	return ""
}

func (f *Fake) pricePoint(o model.Offer) model.PricePoint {
	return model.PricePoint{
		OfferID:       o.ID,
		ChainID:       o.ChainID,
		ChainName:     f.chainName(o.ChainID),
		Price:         o.OfferPrice,
		OriginalPrice: o.OriginalPrice,
		DiscountPct:   o.DiscountPct,
		ValidFrom:     o.ValidFrom,
		ValidTo:       o.ValidTo,
		RecordedAt:    o.CreatedAt,
	}
}

func (f *Fake) PriceHistory(_ context.Context, productID string) ([]model.PricePoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	var points []model.PricePoint
	for _, o := range f.Offers {
		if o.ProductID == productID {
			points = append(points, f.pricePoint(o))
		}
	}
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].RecordedAt.After(points[j].RecordedAt)
	})
	return points, nil
}

func (f *Fake) ActiveOffers(_ context.Context, productID string, on time.Time) ([]model.PricePoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	var points []model.PricePoint
	for _, o := range f.Offers {
		if o.ProductID == productID && o.ActiveOn(on) {
			points = append(points, f.pricePoint(o))
		}
	}
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Price < points[j].Price
	})
	return points, nil
}

func (f *Fake) ActiveCategoryOffers(_ context.Context, category string, on time.Time, limit int) ([]model.CategoryOffer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	if limit <= 0 {
		limit = 20
	}
	var out []model.CategoryOffer
	for _, o := range f.Offers {
		if !o.ActiveOn(on) {
			continue
		}
		for _, p := range f.Products {
			if p.ID == o.ProductID && p.Category != nil && *p.Category == category {
				out = append(out, model.CategoryOffer{
					OfferID:       o.ID,
					ProductID:     p.ID,
					ProductName:   p.Name,
					Brand:         p.Brand,
					ChainName:     f.chainName(o.ChainID),
					Price:         o.OfferPrice,
					OriginalPrice: o.OriginalPrice,
					DiscountPct:   o.DiscountPct,
					ValidTo:       o.ValidTo,
				})
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Price < out[j].Price })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *Fake) NewOffersSince(_ context.Context, since time.Time) ([]store.OfferFeedItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	var items []store.OfferFeedItem
	for _, o := range f.Offers {
		if o.CreatedAt.After(since) {
			items = append(items, store.OfferFeedItem{
				OfferID:    o.ID,
				ProductID:  o.ProductID,
				OfferPrice: o.OfferPrice,
				ValidFrom:  o.ValidFrom,
				ValidTo:    o.ValidTo,
			})
		}
	}
	return items, nil
}

func (f *Fake) RepointOffers(_ context.Context, fromProductID, toProductID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return 0, f.Err
	}
	var n int64
	for i := range f.Offers {
		if f.Offers[i].ProductID == fromProductID {
			f.Offers[i].ProductID = toProductID
			n++
		}
	}
	return n, nil
}

func (f *Fake) WatchlistUserIDs(_ context.Context, productID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	var ids []string
	for _, w := range f.Watchlist {
		if w.ProductID == productID {
			ids = append(ids, w.UserID)
		}
	}
	return ids, nil
}

func (f *Fake) DeleteWatchlistEntries(_ context.Context, productID string, userIDs []string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return 0, f.Err
	}
	drop := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		drop[id] = true
	}
	var kept []model.WatchlistEntry
	var n int64
	for _, w := range f.Watchlist {
		if w.ProductID == productID && drop[w.UserID] {
			n++
			continue
		}
		kept = append(kept, w)
	}
	f.Watchlist = kept
	return n, nil
}

func (f *Fake) RepointWatchlist(_ context.Context, fromProductID, toProductID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return 0, f.Err
	}
	var n int64
	for i := range f.Watchlist {
		if f.Watchlist[i].ProductID == fromProductID {
			f.Watchlist[i].ProductID = toProductID
			n++
		}
	}
	return n, nil
}

// InTx runs fn against the same state; the fake provides no isolation or
// rollback.
func (f *Fake) InTx(_ context.Context, fn func(store.Store) error) error {
	return fn(f)
}

func (f *Fake) Migrate(context.Context) error { return nil }
func (f *Fake) Close() error                  { return nil }
