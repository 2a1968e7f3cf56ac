package model

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Observation is one raw product+price record extracted from a single flyer
// page. Prices arrive as strings in the format printed on the flyer (Italian
// comma-decimal, e.g. "1,29") and are parsed at the ingestion boundary.
type Observation struct {
	Name          string  `json:"name"`
	Brand         *string `json:"brand,omitempty"`
	Category      *string `json:"category,omitempty"`
	Subcategory   *string `json:"subcategory,omitempty"`
	Unit          *string `json:"unit,omitempty"`
	Barcode       *string `json:"barcode,omitempty"`
	ImageURL      *string `json:"image_url,omitempty"`
	OriginalPrice *string `json:"original_price,omitempty"`
	OfferPrice    string  `json:"offer_price"`
	DiscountPct   *string `json:"discount_pct,omitempty"`
	DiscountType  *string `json:"discount_type,omitempty"`
	Quantity      *string `json:"quantity,omitempty"`
	PricePerUnit  *string `json:"price_per_unit,omitempty"`
	UnitReference *string `json:"unit_reference,omitempty"`
	RawText       string  `json:"raw_text,omitempty"`
	Confidence    float64 `json:"confidence"`
	Source        string  `json:"source,omitempty"`
}

// Validate checks the fields every observation must carry before it can be
// ingested. Optional fields are not inspected here; a missing name or price
// fails the single observation, never the batch.
func (o Observation) Validate() error {
	if strings.TrimSpace(o.Name) == "" {
		return eris.New("observation: name is required")
	}
	if strings.TrimSpace(o.OfferPrice) == "" {
		return eris.New("observation: offer_price is required")
	}
	return nil
}

// FlyerBatch is the input contract from the scraping/extraction layer: one
// flyer's metadata plus every observation extracted from its pages. Validity
// dates are YYYY-MM-DD strings, parsed once during ingestion.
type FlyerBatch struct {
	ChainSlug    string        `json:"chain_slug"`
	StoreID      *string       `json:"store_id,omitempty"`
	Title        string        `json:"title"`
	SourceURL    string        `json:"source_url"`
	ValidFrom    string        `json:"valid_from"`
	ValidTo      string        `json:"valid_to"`
	PagesCount   int           `json:"pages_count"`
	Observations []Observation `json:"observations"`
}
