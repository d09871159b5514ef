package usecase

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/skinmatch/backend/internal/domain"
	"github.com/skinmatch/backend/internal/pricing"
)

// MatchServiceConfig holds configuration for the match service.
type MatchServiceConfig struct {
	DefaultCurrency string
}

// MatchService runs the full matching pipeline: normalize the request's
// ingredient terms, select candidates from the store, score and rank them,
// live-verify the top-N, then merge and re-sort for the caller.
type MatchService struct {
	normalizer *Normalizer
	filter     *CandidateFilter
	scorer     *Scorer
	verifier   *LiveVerifier
	logger     *zap.Logger

	defaultCurrency string
	now             func() time.Time
}

// NewMatchService creates a match service with dependencies.
func NewMatchService(
	normalizer *Normalizer,
	filter *CandidateFilter,
	scorer *Scorer,
	verifier *LiveVerifier,
	logger *zap.Logger,
	config MatchServiceConfig,
) *MatchService {
	currency := config.DefaultCurrency
	if currency == "" {
		currency = "GBP"
	}
	return &MatchService{
		normalizer:      normalizer,
		filter:          filter,
		scorer:          scorer,
		verifier:        verifier,
		logger:          logger,
		defaultCurrency: currency,
		now:             time.Now,
	}
}

// MatchProducts matches products against the request's ingredient
// requirements and verifies the top candidates. Zero verifiable candidates
// is a valid, successful outcome: the response carries an empty Results.
func (s *MatchService) MatchProducts(ctx context.Context, request *domain.MatchRequest) (*domain.MatchResponse, error) {
	if err := s.filter.Validate(request); err != nil {
		return nil, err
	}

	required := s.normalizer.NormalizeList(request.RequiredIngredients)
	avoid := s.normalizer.NormalizeList(request.AvoidIngredients)
	s.logger.Info("normalized request ingredients",
		zap.Strings("required", required),
		zap.Strings("avoid", avoid),
		zap.String("country", request.Country))

	candidates, err := s.filter.FindCandidates(ctx, request, required, avoid)
	if err != nil {
		return nil, err
	}
	s.logger.Info("selected candidate products", zap.Int("candidates", len(candidates)))

	if len(candidates) == 0 {
		return s.emptyResponse(request), nil
	}

	scored := make([]domain.ScoredCandidate, 0, len(candidates))
	for _, product := range candidates {
		scored = append(scored, domain.ScoredCandidate{
			Product: product,
			Score:   s.scorer.Score(product, required),
		})
	}
	// Stable: equal scores keep filter order.
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })

	verified := s.verifier.VerifyCandidates(ctx, scored, request.Postcode())

	results := make([]domain.MatchedProduct, 0, len(verified))
	for _, vc := range verified {
		results = append(results, s.toMatchedProduct(request, vc))
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })

	return &domain.MatchResponse{
		GeneratedAt: s.now().UTC().Format(time.RFC3339),
		Currency:    s.responseCurrency(request),
		Results:     results,
	}, nil
}

func (s *MatchService) toMatchedProduct(request *domain.MatchRequest, vc VerifiedCandidate) domain.MatchedProduct {
	product, live := vc.Product, vc.Live

	price := product.Price
	if live.Price != nil {
		price = live.Price
	}

	currency := request.Currency
	if currency == "" {
		currency = live.Currency
	}
	if currency == "" {
		currency = product.Currency
	}
	if currency == "" {
		currency = s.defaultCurrency
	}

	formatted := ""
	if price != nil {
		formatted = pricing.Format(*price, currency)
	}

	var lastVerified *string
	if !live.FetchedAt.IsZero() {
		ts := live.FetchedAt.UTC().Format(time.RFC3339)
		lastVerified = &ts
	}

	return domain.MatchedProduct{
		ID:                    product.ID,
		Retailer:              product.Retailer,
		RetailerSKU:           product.RetailerSKU,
		Brand:                 product.Brand,
		Name:                  product.Name,
		Country:               product.Country,
		Currency:              currency,
		Price:                 price,
		PricePerML:            product.PricePerML,
		FormattedPrice:        formatted,
		PDPURL:                product.PDPURL,
		ImageURL:              product.ImageURL,
		IngredientsNormalised: product.IngredientsNorm,
		Availability:          live.InStock,
		Score:                 vc.Score,
		LastVerified:          lastVerified,
	}
}

func (s *MatchService) emptyResponse(request *domain.MatchRequest) *domain.MatchResponse {
	return &domain.MatchResponse{
		GeneratedAt: s.now().UTC().Format(time.RFC3339),
		Currency:    s.responseCurrency(request),
		Results:     []domain.MatchedProduct{},
	}
}

func (s *MatchService) responseCurrency(request *domain.MatchRequest) string {
	if request.Currency != "" {
		return request.Currency
	}
	return s.defaultCurrency
}
