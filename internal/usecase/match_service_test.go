package usecase

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/skinmatch/backend/internal/domain"
	"github.com/skinmatch/backend/internal/infrastructure/cache"
	"github.com/skinmatch/backend/internal/infrastructure/store"
)

func newTestMatchService(products *store.MemoryStore, registry AdapterRegistry) *MatchService {
	normalizer := NewNormalizer(NormalizerConfig{})
	filter := NewCandidateFilter(products, normalizer, FilterConfig{
		SupportedCountries: []string{"GB"},
	})
	scorer := NewScorer(normalizer)
	verifier := NewLiveVerifier(cache.NewMemoryCache(), products, registry, zap.NewNop(), VerifierConfig{})
	return NewMatchService(normalizer, filter, scorer, verifier, zap.NewNop(), MatchServiceConfig{})
}

func catalogProduct(retailer domain.Retailer, sku string, price float64, ingredients ...string) *domain.Product {
	set := make(map[string]bool)
	var uniq []string
	for _, ing := range ingredients {
		if !set[ing] {
			set[ing] = true
			uniq = append(uniq, ing)
		}
	}
	return &domain.Product{
		Retailer:           retailer,
		RetailerSKU:        sku,
		Name:               "Serum " + sku,
		Country:            "GB",
		Currency:           "GBP",
		Price:              &price,
		IngredientsNorm:    ingredients,
		IngredientsNormSet: uniq,
		LastSeen:           time.Now().UTC(),
	}
}

func TestMatchProductsValidation(t *testing.T) {
	ctx := context.Background()
	svc := newTestMatchService(store.NewMemoryStore(), &mockRegistry{})

	t.Run("rejects nil request", func(t *testing.T) {
		_, err := svc.MatchProducts(ctx, nil)
		if !errors.Is(err, domain.ErrInvalidRequest) {
			t.Errorf("error = %v, want ErrInvalidRequest", err)
		}
	})

	t.Run("rejects unsupported country", func(t *testing.T) {
		_, err := svc.MatchProducts(ctx, &domain.MatchRequest{
			Country:             "FR",
			RequiredIngredients: []string{"niacinamide"},
		})
		if !errors.Is(err, domain.ErrInvalidRequest) {
			t.Errorf("error = %v, want ErrInvalidRequest", err)
		}
	})

	t.Run("rejects empty required ingredients", func(t *testing.T) {
		_, err := svc.MatchProducts(ctx, &domain.MatchRequest{Country: "GB"})
		if !errors.Is(err, domain.ErrInvalidRequest) {
			t.Errorf("error = %v, want ErrInvalidRequest", err)
		}
	})

	t.Run("rejects non-positive max price", func(t *testing.T) {
		_, err := svc.MatchProducts(ctx, &domain.MatchRequest{
			Country:             "GB",
			RequiredIngredients: []string{"niacinamide"},
			MaxPrice:            floatPtr(0),
		})
		if !errors.Is(err, domain.ErrInvalidRequest) {
			t.Errorf("error = %v, want ErrInvalidRequest", err)
		}
	})
}

func TestMatchProducts(t *testing.T) {
	ctx := context.Background()

	newRegistry := func() (*mockRegistry, *mockAdapter) {
		adapter := &mockAdapter{retailer: domain.RetailerAmazon, result: okResult()}
		return &mockRegistry{adapters: map[domain.Retailer]domain.RetailerAdapter{
			domain.RetailerAmazon: adapter,
		}}, adapter
	}

	t.Run("matches and ranks products by ingredient position", func(t *testing.T) {
		products := store.NewMemoryStore()
		// Niacinamide second vs sixth: the leader should rank first.
		leader := catalogProduct(domain.RetailerAmazon, "LEAD", 12.99,
			"water", "niacinamide", "glycerin")
		trailer := catalogProduct(domain.RetailerAmazon, "TRAIL", 12.99,
			"water", "glycerin", "butylene glycol", "dimethicone", "phenoxyethanol", "niacinamide")
		products.Upsert(leader)
		products.Upsert(trailer)

		registry, _ := newRegistry()
		svc := newTestMatchService(products, registry)

		resp, err := svc.MatchProducts(ctx, &domain.MatchRequest{
			Country:             "GB",
			RequiredIngredients: []string{"Niacinamide"},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(resp.Results) != 2 {
			t.Fatalf("results = %d, want 2", len(resp.Results))
		}
		if resp.Results[0].RetailerSKU != "LEAD" {
			t.Errorf("top result = %q, want LEAD", resp.Results[0].RetailerSKU)
		}
		if resp.Results[0].Score <= resp.Results[1].Score {
			t.Errorf("results not sorted by score: %v, %v", resp.Results[0].Score, resp.Results[1].Score)
		}
	})

	t.Run("avoid ingredients exclude through aliases", func(t *testing.T) {
		products := store.NewMemoryStore()
		clean := catalogProduct(domain.RetailerAmazon, "CLEAN", 9.99, "niacinamide", "glycerin")
		fragranced := catalogProduct(domain.RetailerAmazon, "NICO", 9.99, "nicotinamide", "phenoxyethanol")
		products.Upsert(clean)
		products.Upsert(fragranced)

		registry, _ := newRegistry()
		svc := newTestMatchService(products, registry)

		resp, err := svc.MatchProducts(ctx, &domain.MatchRequest{
			Country:             "GB",
			RequiredIngredients: []string{"niacinamide"},
			AvoidIngredients:    []string{"preservative"},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(resp.Results) != 1 {
			t.Fatalf("results = %d, want 1", len(resp.Results))
		}
		if resp.Results[0].RetailerSKU != "CLEAN" {
			t.Errorf("result = %q, want CLEAN (paraben product excluded)", resp.Results[0].RetailerSKU)
		}
	})

	t.Run("max price excludes dearer products", func(t *testing.T) {
		products := store.NewMemoryStore()
		cheap := catalogProduct(domain.RetailerAmazon, "CHEAP", 4.49, "niacinamide")
		dear := catalogProduct(domain.RetailerAmazon, "DEAR", 12.99, "niacinamide")
		products.Upsert(cheap)
		products.Upsert(dear)

		registry, _ := newRegistry()
		svc := newTestMatchService(products, registry)

		resp, err := svc.MatchProducts(ctx, &domain.MatchRequest{
			Country:             "GB",
			RequiredIngredients: []string{"niacinamide"},
			MaxPrice:            floatPtr(5.0),
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(resp.Results) != 1 {
			t.Fatalf("results = %d, want 1", len(resp.Results))
		}
		if resp.Results[0].RetailerSKU != "CHEAP" {
			t.Errorf("result = %q, want CHEAP", resp.Results[0].RetailerSKU)
		}
	})

	t.Run("unknown price passes a max price filter", func(t *testing.T) {
		products := store.NewMemoryStore()
		unpriced := catalogProduct(domain.RetailerAmazon, "NOPRICE", 0, "niacinamide")
		unpriced.Price = nil
		products.Upsert(unpriced)

		registry, _ := newRegistry()
		svc := newTestMatchService(products, registry)

		resp, err := svc.MatchProducts(ctx, &domain.MatchRequest{
			Country:             "GB",
			RequiredIngredients: []string{"niacinamide"},
			MaxPrice:            floatPtr(5.0),
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(resp.Results) != 1 {
			t.Errorf("results = %d, want 1 (unknown price is not filtered)", len(resp.Results))
		}
	})

	t.Run("zero candidates is a successful empty response", func(t *testing.T) {
		registry, adapter := newRegistry()
		svc := newTestMatchService(store.NewMemoryStore(), registry)

		resp, err := svc.MatchProducts(ctx, &domain.MatchRequest{
			Country:             "GB",
			RequiredIngredients: []string{"azelaic acid"},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.Results == nil || len(resp.Results) != 0 {
			t.Errorf("results = %v, want empty non-nil slice", resp.Results)
		}
		if resp.GeneratedAt == "" {
			t.Error("empty response should still carry a timestamp")
		}
		if adapter.callCount() != 0 {
			t.Error("no candidates means no live checks")
		}
	})

	t.Run("live price overrides the catalog price", func(t *testing.T) {
		products := store.NewMemoryStore()
		p := catalogProduct(domain.RetailerAmazon, "B001", 15.00, "niacinamide")
		products.Upsert(p)

		registry, _ := newRegistry()
		svc := newTestMatchService(products, registry)

		resp, err := svc.MatchProducts(ctx, &domain.MatchRequest{
			Country:             "GB",
			RequiredIngredients: []string{"niacinamide"},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(resp.Results) != 1 {
			t.Fatalf("results = %d, want 1", len(resp.Results))
		}
		result := resp.Results[0]
		if result.Price == nil || *result.Price != 9.99 {
			t.Errorf("price = %v, want 9.99 (live value)", result.Price)
		}
		if result.FormattedPrice != "£9.99" {
			t.Errorf("formatted price = %q, want £9.99", result.FormattedPrice)
		}
		if result.LastVerified == nil {
			t.Error("verified result should carry a last_verified timestamp")
		}
		if result.Availability != domain.StockIn {
			t.Errorf("availability = %q, want %q", result.Availability, domain.StockIn)
		}
	})

	t.Run("currency precedence is request then live then catalog", func(t *testing.T) {
		products := store.NewMemoryStore()
		p := catalogProduct(domain.RetailerAmazon, "B001", 15.00, "niacinamide")
		products.Upsert(p)

		registry, _ := newRegistry()
		svc := newTestMatchService(products, registry)

		resp, err := svc.MatchProducts(ctx, &domain.MatchRequest{
			Country:             "GB",
			RequiredIngredients: []string{"niacinamide"},
			Currency:            "EUR",
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.Currency != "EUR" {
			t.Errorf("response currency = %q, want EUR", resp.Currency)
		}
		if resp.Results[0].Currency != "EUR" {
			t.Errorf("result currency = %q, want EUR", resp.Results[0].Currency)
		}
	})
}

// TestFindCandidatesProperty checks the filter predicate over a randomized
// catalog: every candidate must cover all required alias groups and avoid
// every avoided term. Fixed seed, so failures reproduce.
func TestFindCandidatesProperty(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))

	pool := []string{
		"water", "glycerin", "niacinamide", "nicotinamide", "retinol",
		"salicylic acid", "hyaluronic acid", "ceramide np", "tocopherol",
		"phenoxyethanol", "methylparaben", "dimethicone", "squalane",
	}

	products := store.NewMemoryStore()
	for i := 0; i < 200; i++ {
		n := 3 + rng.Intn(6)
		perm := rng.Perm(len(pool))
		ingredients := make([]string, 0, n)
		for _, idx := range perm[:n] {
			ingredients = append(ingredients, pool[idx])
		}
		price := 2 + rng.Float64()*28
		p := catalogProduct(domain.RetailerAmazon, string(rune('A'+i%26))+string(rune('0'+i/26)), price, ingredients...)
		products.Upsert(p)
	}

	normalizer := NewNormalizer(NormalizerConfig{})
	filter := NewCandidateFilter(products, normalizer, FilterConfig{SupportedCountries: []string{"GB"}})

	required := []string{"niacinamide"}
	avoid := []string{"preservative"}
	request := &domain.MatchRequest{
		Country:             "GB",
		RequiredIngredients: required,
		AvoidIngredients:    avoid,
	}

	candidates, err := filter.FindCandidates(ctx, request,
		normalizer.NormalizeList(required), normalizer.NormalizeList(avoid))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(candidates) == 0 {
		t.Fatal("expected at least one candidate from a 200-product catalog")
	}

	requiredAliases := normalizer.ExpandSearchTerms([]string{"niacinamide"})
	avoidAliases := normalizer.ExpandSearchTerms([]string{"preservative"})
	for _, c := range candidates {
		if !c.ContainsAny(requiredAliases) {
			t.Errorf("candidate %s lacks every niacinamide alias: %v", c.RetailerSKU, c.IngredientsNormSet)
		}
		if c.ContainsAny(avoidAliases) {
			t.Errorf("candidate %s contains an avoided term: %v", c.RetailerSKU, c.IngredientsNormSet)
		}
	}
}
