package usecase

import (
	"context"
	"fmt"

	"github.com/skinmatch/backend/internal/domain"
)

// DefaultCandidateLimit bounds downstream scoring and verification cost.
const DefaultCandidateLimit = 200

// FilterConfig holds configuration for the candidate filter.
type FilterConfig struct {
	SupportedCountries []string
	CandidateLimit     int
}

// CandidateFilter validates match requests and selects candidate products
// from the store by country, ingredient and price constraints.
type CandidateFilter struct {
	store      domain.ProductStore
	normalizer *Normalizer
	countries  map[string]bool
	limit      int
}

// NewCandidateFilter creates a candidate filter.
func NewCandidateFilter(store domain.ProductStore, normalizer *Normalizer, config FilterConfig) *CandidateFilter {
	countries := make(map[string]bool)
	for _, c := range config.SupportedCountries {
		countries[c] = true
	}

	limit := config.CandidateLimit
	if limit <= 0 {
		limit = DefaultCandidateLimit
	}

	return &CandidateFilter{
		store:      store,
		normalizer: normalizer,
		countries:  countries,
		limit:      limit,
	}
}

// Validate fails fast on client-correctable request problems, before any
// filtering work.
func (f *CandidateFilter) Validate(request *domain.MatchRequest) error {
	if request == nil {
		return fmt.Errorf("%w: missing request body", domain.ErrInvalidRequest)
	}
	if !f.countries[request.Country] {
		return fmt.Errorf("%w: country %q is not supported", domain.ErrInvalidRequest, request.Country)
	}
	if len(request.RequiredIngredients) == 0 {
		return fmt.Errorf("%w: at least one required ingredient must be specified", domain.ErrInvalidRequest)
	}
	if request.MaxPrice != nil && *request.MaxPrice <= 0 {
		return fmt.Errorf("%w: maximum price must be greater than 0", domain.ErrInvalidRequest)
	}
	return nil
}

// FindCandidates selects products whose ingredient set covers every required
// token (via at least one alias each) and touches none of the avoided
// tokens' alias sets. Products with unknown price pass a max-price filter:
// price is validated, not required.
func (f *CandidateFilter) FindCandidates(
	ctx context.Context,
	request *domain.MatchRequest,
	requiredTokens, avoidTokens []string,
) ([]*domain.Product, error) {
	query := domain.CandidateQuery{
		Country:  request.Country,
		Required: f.normalizer.TermGroups(requiredTokens),
		Avoid:    f.normalizer.ExpandSearchTerms(avoidTokens),
		MaxPrice: request.MaxPrice,
		Limit:    f.limit,
	}

	candidates, err := f.store.FindCandidates(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMatchingFailure, err)
	}
	return candidates, nil
}
