package domain

import "time"

// Retailer identifies a supported retailer. Adapter registration is keyed on
// this type so a typo in a retailer name fails at registry construction, not
// as a silent "no adapter" drop at verification time.
type Retailer string

const (
	RetailerAmazon        Retailer = "amazon"
	RetailerBoots         Retailer = "boots"
	RetailerSuperdrug     Retailer = "superdrug"
	RetailerLookFantastic Retailer = "lookfantastic"
)

// StockStatus is the observed availability of a product at a retailer.
type StockStatus string

const (
	StockIn      StockStatus = "in_stock"
	StockOut     StockStatus = "out_of_stock"
	StockUnknown StockStatus = "unknown"
)

// Verification sources recorded on live results and snapshots.
const (
	SourceLiveCheck = "live_check"
	SourceScrape    = "scrape"
	SourceAPI       = "api"
	SourceDatabase  = "database"
)

// Product is a catalog entry. (Retailer, RetailerSKU) is globally unique.
// Rows are created by catalog ingestion; the matching core only reads them
// and updates Price / LastLiveVerified after a successful live check.
type Product struct {
	ID                 string     `json:"id"`
	Retailer           Retailer   `json:"retailer"`
	RetailerSKU        string     `json:"retailer_sku"`
	Brand              string     `json:"brand"`
	Name               string     `json:"name"`
	Country            string     `json:"country"` // ISO-3166 alpha-2
	Currency           string     `json:"currency"`
	Price              *float64   `json:"price,omitempty"`
	PricePerML         *float64   `json:"price_per_ml,omitempty"`
	PDPURL             string     `json:"pdp_url"`
	ImageURL           string     `json:"image_url,omitempty"`
	IngredientsRaw     string     `json:"ingredients_raw"`
	IngredientsNorm    []string   `json:"ingredients_norm"`     // ordered INCI tokens
	IngredientsNormSet []string   `json:"ingredients_norm_set"` // unique tokens for membership tests
	LastSeen           time.Time  `json:"last_seen"`
	LastLiveVerified   *time.Time `json:"last_live_verified,omitempty"`
}

// ContainsAny reports whether any of the given terms appears in the
// product's normalized ingredient set.
func (p *Product) ContainsAny(terms map[string]struct{}) bool {
	for _, ing := range p.IngredientsNormSet {
		if _, ok := terms[ing]; ok {
			return true
		}
	}
	return false
}

// LiveResult is the outcome of one adapter live check. Adapters never return
// a Go error from LiveCheck; an unreachable or unparseable retailer yields a
// result with StatusCode "error" and nil price.
type LiveResult struct {
	Price               *float64    `json:"price,omitempty"`
	Currency            string      `json:"currency,omitempty"`
	InStock             StockStatus `json:"in_stock"`
	DeliverablePostcode string      `json:"deliverable_postcode,omitempty"`
	IngredientsRaw      string      `json:"ingredients_raw,omitempty"`
	StatusCode          string      `json:"status_code,omitempty"`
	FetchedAt           time.Time   `json:"fetched_at"`
	Source              string      `json:"source"`
}

// OK reports whether the live check actually observed the product. Any
// status outside the two success values ("200" from a live fetch, "recent"
// from the recency short-circuit) is a failure.
func (r *LiveResult) OK() bool {
	return r != nil && (r.StatusCode == "200" || r.StatusCode == "recent")
}

// LiveSnapshot is the immutable audit record of one verification attempt.
// Written exactly once, never mutated, never read back by the matching path.
type LiveSnapshot struct {
	ID                  string      `json:"id"`
	ProductID           string      `json:"product_id"`
	FetchedAt           time.Time   `json:"fetched_at"`
	Price               *float64    `json:"price,omitempty"`
	Currency            string      `json:"currency,omitempty"`
	InStock             StockStatus `json:"in_stock"`
	DeliverablePostcode string      `json:"deliverable_postcode,omitempty"`
	IngredientsRaw      string      `json:"ingredients_raw,omitempty"`
	StatusCode          string      `json:"status_code,omitempty"`
	Source              string      `json:"source"`
}

// ProductSeed is a single search hit from a retailer, enough to locate the
// product for a later detail fetch.
type ProductSeed struct {
	RetailerSKU string   `json:"retailer_sku"`
	Name        string   `json:"name"`
	Brand       string   `json:"brand"`
	Price       *float64 `json:"price,omitempty"`
	Currency    string   `json:"currency"`
	PDPURL      string   `json:"pdp_url"`
	ImageURL    string   `json:"image_url,omitempty"`
	GTIN        string   `json:"gtin,omitempty"`
}

// ParsedDetail is a parsed product detail page.
type ParsedDetail struct {
	Name           string      `json:"name"`
	Brand          string      `json:"brand"`
	Price          *float64    `json:"price,omitempty"`
	Currency       string      `json:"currency"`
	IngredientsRaw string      `json:"ingredients_raw"`
	ImageURL       string      `json:"image_url,omitempty"`
	GTIN           string      `json:"gtin,omitempty"`
	Availability   StockStatus `json:"availability"`
	VolumeML       *float64    `json:"volume_ml,omitempty"`
}

// ScoredCandidate pairs a product with its relevance score. Transient:
// produced by the scorer, consumed by the verifier, never persisted.
type ScoredCandidate struct {
	Product *Product
	Score   float64
}
