// Package store persists the canonical catalog: products, flyers, offers and
// the chain/store dimension tables, behind one interface with Postgres and
// SQLite implementations.
package store

import (
	"context"
	"time"

	"github.com/spesasmart/catalog-cli/internal/model"
)

// CandidateFilter narrows the catalog scan that precedes fuzzy scoring.
// An empty filter matches every product.
type CandidateFilter struct {
	Brand  string   // canonical brand; empty = any brand
	Tokens []string // name must contain at least one token, case-insensitive
}

// OfferFeedItem is the minimal offer view handed to the notification layer
// for watchlist matching. Delivery happens elsewhere.
type OfferFeedItem struct {
	OfferID    string     `json:"offer_id"`
	ProductID  string     `json:"product_id"`
	OfferPrice float64    `json:"offer_price"`
	ValidFrom  *time.Time `json:"valid_from,omitempty"`
	ValidTo    *time.Time `json:"valid_to,omitempty"`
}

// Store defines the persistence interface for the catalog engine.
//
// Lookup methods return (nil, nil) when the entity does not exist; absence is
// an expected outcome on the matching and idempotency paths, not an error.
type Store interface {
	// Products
	CreateProduct(ctx context.Context, p *model.Product) error
	ProductByID(ctx context.Context, id string) (*model.Product, error)
	ProductByBarcode(ctx context.Context, barcode string) (*model.Product, error)
	UpdateProduct(ctx context.Context, p *model.Product) error
	DeleteProduct(ctx context.Context, id string) error
	ListProducts(ctx context.Context) ([]model.Product, error)
	FindCandidates(ctx context.Context, filter CandidateFilter) ([]model.Product, error)

	// Chains
	ChainBySlug(ctx context.Context, slug string) (*model.Chain, error)
	UpsertChains(ctx context.Context, chains []model.Chain) (int64, error)

	// Flyers
	FlyerByKey(ctx context.Context, key model.FlyerKey) (*model.Flyer, error)
	CreateFlyer(ctx context.Context, f *model.Flyer) error
	SetFlyerStatus(ctx context.Context, id string, status model.FlyerStatus, pagesCount int) error

	// Offers (append-only; RepointOffers is reserved for the dedup job)
	CreateOffer(ctx context.Context, o *model.Offer) error
	PriceHistory(ctx context.Context, productID string) ([]model.PricePoint, error)
	ActiveOffers(ctx context.Context, productID string, on time.Time) ([]model.PricePoint, error)
	ActiveCategoryOffers(ctx context.Context, category string, on time.Time, limit int) ([]model.CategoryOffer, error)
	NewOffersSince(ctx context.Context, since time.Time) ([]OfferFeedItem, error)
	RepointOffers(ctx context.Context, fromProductID, toProductID string) (int64, error)

	// Watchlist repointing for product merges
	WatchlistUserIDs(ctx context.Context, productID string) ([]string, error)
	DeleteWatchlistEntries(ctx context.Context, productID string, userIDs []string) (int64, error)
	RepointWatchlist(ctx context.Context, fromProductID, toProductID string) (int64, error)

	// InTx runs fn against a transaction-scoped view of the store, committing
	// when fn returns nil and rolling back otherwise.
	InTx(ctx context.Context, fn func(Store) error) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
