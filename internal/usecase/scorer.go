package usecase

import (
	"math"
	"time"

	"github.com/skinmatch/backend/internal/domain"
)

// Term caps for the additive score components
const (
	positionTermCap   = 50.0
	freshnessTermCap  = 20.0
	priceTermCap      = 20.0
	reputationDefault = 5.0

	// Freshness decays linearly to 0 at this age.
	freshnessHorizonDays = 30.0
)

// retailerReputation is a small static table of per-retailer trust scores
// (cap 10). Unlisted retailers fall back to reputationDefault.
var retailerReputation = map[domain.Retailer]float64{
	domain.RetailerBoots:         10,
	domain.RetailerAmazon:        8,
	domain.RetailerSuperdrug:     7,
	domain.RetailerLookFantastic: 6,
}

// Scorer computes deterministic relevance scores for candidate products.
// Pure: no I/O, no mutation of inputs.
type Scorer struct {
	normalizer *Normalizer
	now        func() time.Time
}

// NewScorer creates a scorer. The clock is injectable for tests.
func NewScorer(normalizer *Normalizer) *Scorer {
	return &Scorer{normalizer: normalizer, now: time.Now}
}

// Score computes the relevance of a product for the given required tokens.
//
// Four additive terms, each independently capped:
//   - position: earlier required-ingredient positions in the ordered INCI
//     list imply higher concentration and score more
//   - freshness: linear decay from 20 (just seen) to 0 at 30+ days
//   - price efficiency: inversely proportional to price per unit volume
//   - retailer reputation: static per-retailer constant
//
// The total is rounded to two decimal places.
func (s *Scorer) Score(product *domain.Product, requiredTokens []string) float64 {
	score := s.positionTerm(product, requiredTokens)
	score += s.freshnessTerm(product)
	score += priceEfficiencyTerm(product)
	score += reputationTerm(product.Retailer)
	return math.Round(score*100) / 100
}

// positionTerm awards max(0, 10-index)*5 for the first alias match of each
// required token in the ordered ingredient sequence, skipping the token
// "water" (ubiquitous, carries no signal). Capped at positionTermCap.
func (s *Scorer) positionTerm(product *domain.Product, requiredTokens []string) float64 {
	total := 0.0
	for _, token := range requiredTokens {
		aliases := s.normalizer.ExpandSearchTerms([]string{token})
		for i, ingredient := range product.IngredientsNorm {
			if ingredient == "water" {
				continue
			}
			if _, ok := aliases[ingredient]; ok {
				total += math.Max(0, float64(10-i)) * 5
				break
			}
		}
	}
	if total > positionTermCap {
		total = positionTermCap
	}
	return total
}

func (s *Scorer) freshnessTerm(product *domain.Product) float64 {
	if product.LastSeen.IsZero() {
		return 0
	}
	days := s.now().Sub(product.LastSeen).Hours() / 24
	if days < 0 {
		days = 0
	}
	term := freshnessTermCap - (days/freshnessHorizonDays)*freshnessTermCap
	if term < 0 {
		return 0
	}
	return term
}

func priceEfficiencyTerm(product *domain.Product) float64 {
	if product.PricePerML == nil || *product.PricePerML <= 0 {
		return 0
	}
	return math.Min(priceTermCap, 100 / *product.PricePerML)
}

func reputationTerm(retailer domain.Retailer) float64 {
	if rep, ok := retailerReputation[retailer]; ok {
		return rep
	}
	return reputationDefault
}
