package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/skinmatch/backend/internal/domain"
)

// MemoryStore is an in-memory product store for development and tests. It
// implements both the candidate read path and the verification write path.
type MemoryStore struct {
	mutex     sync.RWMutex
	products  map[string]*domain.Product // keyed by retailer:sku
	snapshots []domain.LiveSnapshot

	// FailWrites makes RecordVerification fail, for exercising the
	// persistence-failure path in tests.
	FailWrites bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products: make(map[string]*domain.Product),
	}
}

// Upsert adds or replaces a product. (retailer, sku) is the unique key;
// products without an ID get one assigned.
func (s *MemoryStore) Upsert(product *domain.Product) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if product.ID == "" {
		product.ID = uuid.NewString()
	}
	s.products[productKey(product.Retailer, product.RetailerSKU)] = product
}

// FindCandidates evaluates the filter predicate over all products: country
// match, every required alias group represented, no avoided term present,
// and known prices within the cap. Results come back ordered by last_seen
// descending, bounded by the query limit.
func (s *MemoryStore) FindCandidates(ctx context.Context, query domain.CandidateQuery) ([]*domain.Product, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var candidates []*domain.Product
	for _, product := range s.products {
		if product.Country != query.Country {
			continue
		}
		if query.MaxPrice != nil && product.Price != nil && *product.Price > *query.MaxPrice {
			continue
		}
		if !matchesIngredients(product, query) {
			continue
		}
		// Callers get copies. The stored rows stay private to the store so
		// RecordVerification can update them under the lock while earlier
		// result sets are still being read.
		clone := *product
		candidates = append(candidates, &clone)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].LastSeen.After(candidates[j].LastSeen)
	})

	if query.Limit > 0 && len(candidates) > query.Limit {
		candidates = candidates[:query.Limit]
	}
	return candidates, nil
}

// RecordVerification updates the product row and appends the snapshot
// atomically under the store lock; either both happen or neither.
func (s *MemoryStore) RecordVerification(ctx context.Context, product *domain.Product, result *domain.LiveResult) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.FailWrites {
		return fmt.Errorf("simulated write failure")
	}

	stored, ok := s.products[productKey(product.Retailer, product.RetailerSKU)]
	if !ok {
		return fmt.Errorf("product %s/%s not found", product.Retailer, product.RetailerSKU)
	}

	if result.Price != nil {
		stored.Price = result.Price
	}
	fetchedAt := result.FetchedAt
	stored.LastLiveVerified = &fetchedAt

	s.snapshots = append(s.snapshots, domain.LiveSnapshot{
		ID:                  uuid.NewString(),
		ProductID:           stored.ID,
		FetchedAt:           result.FetchedAt,
		Price:               result.Price,
		Currency:            result.Currency,
		InStock:             result.InStock,
		DeliverablePostcode: result.DeliverablePostcode,
		IngredientsRaw:      result.IngredientsRaw,
		StatusCode:          result.StatusCode,
		Source:              result.Source,
	})
	return nil
}

// Snapshots returns a copy of the recorded snapshots, for tests.
func (s *MemoryStore) Snapshots() []domain.LiveSnapshot {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	out := make([]domain.LiveSnapshot, len(s.snapshots))
	copy(out, s.snapshots)
	return out
}

func matchesIngredients(product *domain.Product, query domain.CandidateQuery) bool {
	for _, group := range query.Required {
		if !product.ContainsAny(group.Aliases) {
			return false
		}
	}
	if len(query.Avoid) > 0 && product.ContainsAny(query.Avoid) {
		return false
	}
	return true
}

func productKey(retailer domain.Retailer, sku string) string {
	return fmt.Sprintf("%s:%s", retailer, sku)
}
