package model

import "time"

// FlyerStatus tracks a flyer through ingestion. Status only ever advances;
// a processed flyer is never re-opened.
type FlyerStatus string

const (
	FlyerStatusPending    FlyerStatus = "pending"
	FlyerStatusProcessing FlyerStatus = "processing"
	FlyerStatusProcessed  FlyerStatus = "processed"
)

// Flyer is a dated batch of offers from one chain for one validity window.
// (SourceURL, ChainID, ValidFrom, ValidTo) is the ingestion idempotency key.
type Flyer struct {
	ID         string      `json:"id"`
	ChainID    string      `json:"chain_id"`
	StoreID    *string     `json:"store_id,omitempty"`
	Title      string      `json:"title"`
	ValidFrom  time.Time   `json:"valid_from"`
	ValidTo    time.Time   `json:"valid_to"`
	SourceURL  string      `json:"source_url"`
	Status     FlyerStatus `json:"status"`
	PagesCount int         `json:"pages_count"`
	CreatedAt  time.Time   `json:"created_at"`
}

// FlyerKey is the idempotency key a flyer is looked up by before ingestion.
type FlyerKey struct {
	SourceURL string
	ChainID   string
	ValidFrom time.Time
	ValidTo   time.Time
}

// Key returns the flyer's idempotency key.
func (f Flyer) Key() FlyerKey {
	return FlyerKey{
		SourceURL: f.SourceURL,
		ChainID:   f.ChainID,
		ValidFrom: f.ValidFrom,
		ValidTo:   f.ValidTo,
	}
}

// Offer is one immutable price snapshot for a product, scoped to a flyer.
// Offers form the product's price history: the ingestion path only ever
// appends them, and only the dedup job may repoint ProductID during a merge.
type Offer struct {
	ID            string     `json:"id"`
	ProductID     string     `json:"product_id"`
	FlyerID       string     `json:"flyer_id"`
	ChainID       string     `json:"chain_id"`
	StoreID       *string    `json:"store_id,omitempty"`
	OriginalPrice *float64   `json:"original_price,omitempty"`
	OfferPrice    float64    `json:"offer_price"`
	DiscountPct   *float64   `json:"discount_pct,omitempty"`
	DiscountType  *string    `json:"discount_type,omitempty"`
	Quantity      *string    `json:"quantity,omitempty"`
	PricePerUnit  *float64   `json:"price_per_unit,omitempty"`
	UnitReference *string    `json:"unit_reference,omitempty"`
	ValidFrom     *time.Time `json:"valid_from,omitempty"`
	ValidTo       *time.Time `json:"valid_to,omitempty"`
	RawText       string     `json:"raw_text,omitempty"`
	Confidence    *float64   `json:"confidence,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// ActiveOn reports whether the offer's validity window covers the given day.
// A nil bound is open-ended.
func (o Offer) ActiveOn(day time.Time) bool {
	if o.ValidFrom != nil && day.Before(*o.ValidFrom) {
		return false
	}
	if o.ValidTo != nil && day.After(*o.ValidTo) {
		return false
	}
	return true
}

// PricePoint is a single price observation in a product's history, joined
// with the chain it was seen at.
type PricePoint struct {
	OfferID       string     `json:"offer_id"`
	ChainID       string     `json:"chain_id"`
	ChainName     string     `json:"chain_name"`
	Price         float64    `json:"price"`
	OriginalPrice *float64   `json:"original_price,omitempty"`
	DiscountPct   *float64   `json:"discount_pct,omitempty"`
	ValidFrom     *time.Time `json:"valid_from,omitempty"`
	ValidTo       *time.Time `json:"valid_to,omitempty"`
	RecordedAt    time.Time  `json:"recorded_at"`
}

// ChainPrice is the cheapest active offer for a product at one chain.
type ChainPrice struct {
	ChainID       string     `json:"chain_id"`
	ChainName     string     `json:"chain_name"`
	Price         float64    `json:"price"`
	OriginalPrice *float64   `json:"original_price,omitempty"`
	DiscountPct   *float64   `json:"discount_pct,omitempty"`
	ValidTo       *time.Time `json:"valid_to,omitempty"`
}

// CategoryOffer is an active offer in a category-level price ranking.
type CategoryOffer struct {
	OfferID       string     `json:"offer_id"`
	ProductID     string     `json:"product_id"`
	ProductName   string     `json:"product_name"`
	Brand         *string    `json:"brand,omitempty"`
	ChainName     string     `json:"chain_name"`
	Price         float64    `json:"price"`
	OriginalPrice *float64   `json:"original_price,omitempty"`
	DiscountPct   *float64   `json:"discount_pct,omitempty"`
	ValidTo       *time.Time `json:"valid_to,omitempty"`
}

// PriceIndicator classifies the current best price against the historical
// average: "ottimo" below 80% of average, "alto" above 110%, "medio" between.
type PriceIndicator string

const (
	IndicatorOttimo PriceIndicator = "ottimo"
	IndicatorMedio  PriceIndicator = "medio"
	IndicatorAlto   PriceIndicator = "alto"
)
