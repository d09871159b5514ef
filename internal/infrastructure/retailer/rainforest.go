package retailer

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/skinmatch/backend/internal/domain"
)

var (
	asinRegex        = regexp.MustCompile(`/dp/([A-Z0-9]{10})`)
	priceDigitsRegex = regexp.MustCompile(`[\d,]+\.?\d*`)
	volumeMLRegex    = regexp.MustCompile(`(?i)(\d+)\s*ml`)
)

// RainforestConfig holds configuration for the Amazon adapter.
type RainforestConfig struct {
	APIKey       string
	BaseURL      string // defaults to the public Rainforest endpoint
	AmazonDomain string // e.g. "amazon.co.uk"
	Timeout      time.Duration
}

// RainforestAdapter verifies Amazon products through the Rainforest API.
// API-backed: search, detail and live check are all JSON requests.
type RainforestAdapter struct {
	client   *resty.Client
	apiKey   string
	domain   string
	throttle *throttle
	logger   *zap.Logger
}

// NewRainforestAdapter creates the Amazon adapter. Traffic is capped at 5
// in-flight requests with 200ms spacing, independent of other adapters.
func NewRainforestAdapter(config RainforestConfig, logger *zap.Logger) *RainforestAdapter {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = "https://api.rainforestapi.com"
	}
	amazonDomain := config.AmazonDomain
	if amazonDomain == "" {
		amazonDomain = "amazon.co.uk"
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout)

	return &RainforestAdapter{
		client:   client,
		apiKey:   config.APIKey,
		domain:   amazonDomain,
		throttle: newThrottle(5, 200*time.Millisecond),
		logger:   logger,
	}
}

// Retailer returns the retailer identifier.
func (a *RainforestAdapter) Retailer() domain.Retailer {
	return domain.RetailerAmazon
}

// Country derives the served country from the Amazon domain.
func (a *RainforestAdapter) Country() string {
	switch {
	case strings.Contains(a.domain, "amazon.co.uk"):
		return "GB"
	case strings.Contains(a.domain, "amazon.com"):
		return "US"
	case strings.Contains(a.domain, "amazon.de"):
		return "DE"
	case strings.Contains(a.domain, "amazon.fr"):
		return "FR"
	default:
		return "GB"
	}
}

// rainforest response shapes, trimmed to the fields the adapter reads

type rainforestPrice struct {
	Value    float64 `json:"value"`
	Currency string  `json:"currency"`
}

type rainforestSearchResult struct {
	ASIN        string           `json:"asin"`
	Title       string           `json:"title"`
	Link        string           `json:"link"`
	Image       string           `json:"image"`
	Price       *rainforestPrice `json:"price"`
	PriceString string           `json:"price_string"`
}

type rainforestSearchResponse struct {
	SearchResults []rainforestSearchResult `json:"search_results"`
}

type rainforestProduct struct {
	Title          string   `json:"title"`
	Brand          string   `json:"brand"`
	Description    string   `json:"description"`
	FeatureBullets []string `json:"feature_bullets"`
	MainImage      struct {
		Link string `json:"link"`
	} `json:"main_image"`
	BuyboxWinner struct {
		Price *rainforestPrice `json:"price"`
	} `json:"buybox_winner"`
	Availability struct {
		Type string `json:"type"`
	} `json:"availability"`
}

type rainforestProductResponse struct {
	Product *rainforestProduct `json:"product"`
}

// Search looks up products in the Amazon beauty department.
func (a *RainforestAdapter) Search(ctx context.Context, query, country string) ([]domain.ProductSeed, error) {
	if a.apiKey == "" {
		a.logger.Warn("rainforest api key not configured")
		return nil, nil
	}

	if err := a.throttle.acquire(ctx); err != nil {
		return nil, err
	}
	defer a.throttle.release()

	var result rainforestSearchResponse
	resp, err := a.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"api_key":       a.apiKey,
			"type":          "search",
			"amazon_domain": a.domain,
			"search_term":   query,
			"department":    "beauty",
			"max_page":      "1",
		}).
		SetResult(&result).
		Get("/request")
	if err != nil {
		return nil, fmt.Errorf("rainforest search request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("rainforest search returned status %d", resp.StatusCode())
	}

	currency := "GBP"
	if country != "GB" {
		currency = "USD"
	}

	var seeds []domain.ProductSeed
	for _, item := range result.SearchResults {
		if item.ASIN == "" || item.Title == "" {
			continue
		}
		seed := domain.ProductSeed{
			RetailerSKU: item.ASIN,
			Name:        item.Title,
			Brand:       firstWord(item.Title, "Amazon"),
			Currency:    currency,
			PDPURL:      item.Link,
			ImageURL:    item.Image,
		}
		if item.Price != nil {
			price := item.Price.Value
			seed.Price = &price
		} else if item.PriceString != "" {
			seed.Price = parsePriceString(item.PriceString)
		}
		seeds = append(seeds, seed)
	}

	a.logger.Info("amazon search completed",
		zap.String("query", query), zap.Int("results", len(seeds)))
	return seeds, nil
}

// FetchDetail fetches a product by ASIN or product URL.
func (a *RainforestAdapter) FetchDetail(ctx context.Context, urlOrSKU string) (*domain.ParsedDetail, error) {
	if a.apiKey == "" {
		return nil, fmt.Errorf("rainforest api key not configured")
	}

	asin := urlOrSKU
	if strings.Contains(urlOrSKU, "amazon.") {
		if m := asinRegex.FindStringSubmatch(urlOrSKU); m != nil {
			asin = m[1]
		}
	}

	if err := a.throttle.acquire(ctx); err != nil {
		return nil, err
	}
	defer a.throttle.release()

	var result rainforestProductResponse
	resp, err := a.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"api_key":       a.apiKey,
			"type":          "product",
			"amazon_domain": a.domain,
			"asin":          asin,
		}).
		SetResult(&result).
		Get("/request")
	if err != nil {
		return nil, fmt.Errorf("rainforest product request failed: %w", err)
	}
	if resp.IsError() || result.Product == nil {
		return nil, fmt.Errorf("failed to fetch amazon product %s", asin)
	}

	p := result.Product

	ingredients := p.Description
	if ingredients == "" && len(p.FeatureBullets) > 0 {
		ingredients = strings.Join(p.FeatureBullets, " ")
	}

	currency := "GBP"
	if a.Country() != "GB" {
		currency = "USD"
	}

	detail := &domain.ParsedDetail{
		Name:           p.Title,
		Brand:          p.Brand,
		Currency:       currency,
		IngredientsRaw: ingredients,
		ImageURL:       p.MainImage.Link,
		Availability:   parseAvailability(p.Availability.Type),
		VolumeML:       parseVolumeML(p.Title),
	}
	if p.BuyboxWinner.Price != nil {
		price := p.BuyboxWinner.Price.Value
		detail.Price = &price
		if p.BuyboxWinner.Price.Currency != "" {
			detail.Currency = p.BuyboxWinner.Price.Currency
		}
	}
	return detail, nil
}

// LiveCheck re-fetches the product detail and reports current price and
// stock. Never returns an error: unreachable or unparseable backends come
// back as a result with status "error".
func (a *RainforestAdapter) LiveCheck(ctx context.Context, product *domain.Product, postcode string) *domain.LiveResult {
	if a.apiKey == "" {
		return errorResult(postcode, "no_api_key", domain.SourceAPI)
	}

	detail, err := a.FetchDetail(ctx, product.RetailerSKU)
	if err != nil {
		a.logger.Error("amazon live check failed",
			zap.String("sku", product.RetailerSKU), zap.Error(err))
		return errorResult(postcode, "error", domain.SourceAPI)
	}

	return &domain.LiveResult{
		Price:               detail.Price,
		Currency:            detail.Currency,
		InStock:             detail.Availability,
		DeliverablePostcode: postcode,
		IngredientsRaw:      detail.IngredientsRaw,
		StatusCode:          "200",
		FetchedAt:           time.Now(),
		Source:              domain.SourceAPI,
	}
}

func errorResult(postcode, status, source string) *domain.LiveResult {
	return &domain.LiveResult{
		InStock:             domain.StockUnknown,
		DeliverablePostcode: postcode,
		StatusCode:          status,
		FetchedAt:           time.Now(),
		Source:              source,
	}
}

func parseAvailability(raw string) domain.StockStatus {
	lower := strings.ToLower(raw)
	// Negative phrases first: "unavailable" and "out of stock" contain the
	// positive substrings.
	switch {
	case strings.Contains(lower, "out of stock") || strings.Contains(lower, "unavailable"):
		return domain.StockOut
	case strings.Contains(lower, "in stock") || strings.Contains(lower, "available"):
		return domain.StockIn
	default:
		return domain.StockUnknown
	}
}

func parsePriceString(raw string) *float64 {
	m := priceDigitsRegex.FindString(raw)
	if m == "" {
		return nil
	}
	value, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", ""), 64)
	if err != nil {
		return nil
	}
	return &value
}

func parseVolumeML(title string) *float64 {
	m := volumeMLRegex.FindStringSubmatch(title)
	if m == nil {
		return nil
	}
	ml, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return nil
	}
	return &ml
}

func firstWord(s, fallback string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return fallback
	}
	return fields[0]
}
