package model

import "time"

// Product is the canonical catalog entity that search and watchlists
// reference. One product aggregates observations of the same real-world item
// across chains and scraping sources.
//
// Products are created on the first unmatched observation, mutated only to
// fill missing fields and refresh LastSeenAt, and deleted only by the offline
// dedup job when merged into a richer duplicate.
type Product struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Brand       *string    `json:"brand,omitempty"`
	Category    *string    `json:"category,omitempty"`
	Subcategory *string    `json:"subcategory,omitempty"`
	Unit        *string    `json:"unit,omitempty"`
	Barcode     *string    `json:"barcode,omitempty"`
	ImageURL    *string    `json:"image_url,omitempty"`
	Source      *string    `json:"source,omitempty"`
	LastSeenAt  *time.Time `json:"last_seen_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Chain is a supermarket chain, resolved by slug. Chains are dimension data
// owned outside the engine; ingestion fails closed when a slug is unknown.
type Chain struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Slug       string  `json:"slug"`
	LogoURL    *string `json:"logo_url,omitempty"`
	WebsiteURL *string `json:"website_url,omitempty"`
}

// Store is a single point of sale belonging to a chain.
type Store struct {
	ID      string  `json:"id"`
	ChainID string  `json:"chain_id"`
	Name    *string `json:"name,omitempty"`
	City    *string `json:"city,omitempty"`
}

// WatchlistEntry links a user to a product they track. (user_id, product_id)
// is unique; the dedup job resolves collisions in the keeper's favor when it
// repoints entries from a merged duplicate.
type WatchlistEntry struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ProductID string    `json:"product_id"`
	CreatedAt time.Time `json:"created_at"`
}
