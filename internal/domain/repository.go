package domain

import (
	"context"
	"time"
)

// TermGroup is one required ingredient with its expanded alias set. A
// candidate satisfies the group when its ingredient set contains at least
// one member of Aliases.
type TermGroup struct {
	Token   string
	Aliases map[string]struct{}
}

// CandidateQuery is the filter predicate the product store evaluates.
type CandidateQuery struct {
	Country    string
	Required   []TermGroup         // AND across groups
	Avoid      map[string]struct{} // union of expanded avoid sets; must not intersect
	MaxPrice   *float64            // nil = no price filter; unknown prices always pass
	Limit      int
}

// ProductStore reads candidate products from the catalog.
type ProductStore interface {
	FindCandidates(ctx context.Context, query CandidateQuery) ([]*Product, error)
}

// VerificationStore persists the outcome of a successful live check: the
// product price/last-verified update and the LiveSnapshot insert happen in
// one transaction, rolled back together on failure.
type VerificationStore interface {
	RecordVerification(ctx context.Context, product *Product, result *LiveResult) error
}

// ResultCache is the short-TTL store for live verification results, keyed by
// (retailer, sku, postcode). Safe for concurrent use; last-writer-wins is
// acceptable since concurrent writers for one key compute equivalent data.
type ResultCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// RetailerAdapter is the capability set every retailer integration exposes
// for one retailer/country pair. Implementations own their rate-limiter
// state: a bounded number of in-flight requests plus a minimum inter-request
// spacing, independent of other adapters.
type RetailerAdapter interface {
	Retailer() Retailer
	Country() string
	Search(ctx context.Context, query, country string) ([]ProductSeed, error)
	FetchDetail(ctx context.Context, urlOrSKU string) (*ParsedDetail, error)
	// LiveCheck verifies current price and availability. It never returns a
	// Go error: failures come back as a LiveResult with StatusCode "error".
	LiveCheck(ctx context.Context, product *Product, postcode string) *LiveResult
}
