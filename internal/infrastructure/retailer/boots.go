package retailer

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/skinmatch/backend/internal/domain"
)

var (
	poundPriceRegex  = regexp.MustCompile(`£(\d+(?:\.\d{2})?)`)
	trailingIDRegex  = regexp.MustCompile(`/(\d+)/?$`)
	ingredientsRegex = regexp.MustCompile(`(?i)ingredients[:\s]+([^.]+)`)
)

// BootsConfig holds configuration for the Boots adapter.
type BootsConfig struct {
	BaseURL string // defaults to https://www.boots.com
	Timeout time.Duration
}

// BootsAdapter verifies Boots UK products by scraping their site. Scraping
// is polite: at most 3 concurrent requests with 1s spacing between starts.
type BootsAdapter struct {
	httpClient *http.Client
	baseURL    string
	throttle   *throttle
	logger     *zap.Logger
}

// NewBootsAdapter creates the Boots adapter.
func NewBootsAdapter(config BootsConfig, logger *zap.Logger) *BootsAdapter {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = "https://www.boots.com"
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}

	return &BootsAdapter{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		throttle:   newThrottle(3, time.Second),
		logger:     logger,
	}
}

// Retailer returns the retailer identifier.
func (a *BootsAdapter) Retailer() domain.Retailer {
	return domain.RetailerBoots
}

// Country returns the country this adapter serves.
func (a *BootsAdapter) Country() string {
	return "GB"
}

// fetchDocument performs a throttled GET and parses the response body.
func (a *BootsAdapter) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	if err := a.throttle.acquire(ctx); err != nil {
		return nil, err
	}
	defer a.throttle.release()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-GB,en;q=0.5")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("boots returned status %d for %s", resp.StatusCode, pageURL)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}
	return doc, nil
}

// Search scrapes the Boots search results page for skincare products.
func (a *BootsAdapter) Search(ctx context.Context, query, country string) ([]domain.ProductSeed, error) {
	searchURL := fmt.Sprintf("%s/search?text=%s&categoryId=skincare", a.baseURL, url.QueryEscape(query))

	doc, err := a.fetchDocument(ctx, searchURL)
	if err != nil {
		return nil, err
	}

	var seeds []domain.ProductSeed
	doc.Find(".product-tile, .estore_product_tile, .product-item").EachWithBreak(func(i int, tile *goquery.Selection) bool {
		if len(seeds) >= 20 {
			return false
		}

		name := cleanText(tile.Find(".product-name, .product-title, .estore_product_name").First().Text())
		brand := cleanText(tile.Find(".product-brand, .brand-name, .estore_brand").First().Text())
		if brand == "" {
			brand = firstWord(name, "Boots")
		}

		price := extractPoundPrice(tile.Find(".price, .product-price, .estore_price").First().Text())

		pdpURL := ""
		if href, ok := tile.Find("a").First().Attr("href"); ok {
			pdpURL = a.absoluteURL(href)
		}

		imageURL := ""
		if src, ok := tile.Find("img").First().Attr("src"); ok {
			imageURL = a.absoluteURL(src)
		}

		sku := ""
		if m := trailingIDRegex.FindStringSubmatch(pdpURL); m != nil {
			sku = m[1]
		}
		if sku == "" {
			sku, _ = tile.Attr("data-product-id")
		}

		if name == "" || sku == "" || pdpURL == "" {
			return true
		}
		seeds = append(seeds, domain.ProductSeed{
			RetailerSKU: sku,
			Name:        name,
			Brand:       brand,
			Price:       price,
			Currency:    "GBP",
			PDPURL:      pdpURL,
			ImageURL:    imageURL,
		})
		return true
	})

	a.logger.Info("boots search completed",
		zap.String("query", query), zap.Int("results", len(seeds)))
	return seeds, nil
}

// FetchDetail scrapes a Boots product detail page.
func (a *BootsAdapter) FetchDetail(ctx context.Context, urlOrSKU string) (*domain.ParsedDetail, error) {
	pageURL := urlOrSKU
	if !strings.HasPrefix(urlOrSKU, "http") {
		pageURL = fmt.Sprintf("%s/product/%s", a.baseURL, urlOrSKU)
	}

	doc, err := a.fetchDocument(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	name := cleanText(doc.Find("h1.product-name, h1.pdp-product-name, .product-title h1").First().Text())
	brand := cleanText(doc.Find(".product-brand, .brand-name, .pdp-brand").First().Text())
	if brand == "" {
		brand = firstWord(name, "Boots")
	}

	price := extractPoundPrice(doc.Find(".price, .product-price, .current-price").First().Text())

	// Dedicated ingredients sections first; fall back to hunting for an
	// "Ingredients:" run inside the product description.
	var ingredients strings.Builder
	doc.Find(".ingredients, .product-ingredients, .ingredient-list").Each(func(i int, s *goquery.Selection) {
		if text := cleanText(s.Text()); text != "" {
			ingredients.WriteString(text)
			ingredients.WriteString(" ")
		}
	})
	ingredientsRaw := strings.TrimSpace(ingredients.String())
	if ingredientsRaw == "" {
		doc.Find(".product-details, .product-description, .pdp-description").EachWithBreak(func(i int, s *goquery.Selection) bool {
			if m := ingredientsRegex.FindStringSubmatch(s.Text()); m != nil {
				ingredientsRaw = cleanText(m[1])
				return false
			}
			return true
		})
	}

	imageURL := ""
	if src, ok := doc.Find(".product-image img, .pdp-image img").First().Attr("src"); ok {
		imageURL = a.absoluteURL(src)
	}

	availability := domain.StockUnknown
	if stockText := strings.ToLower(doc.Find(".stock-status, .availability, .product-availability").First().Text()); stockText != "" {
		availability = parseAvailability(stockText)
	}

	return &domain.ParsedDetail{
		Name:           name,
		Brand:          brand,
		Price:          price,
		Currency:       "GBP",
		IngredientsRaw: ingredientsRaw,
		ImageURL:       imageURL,
		Availability:   availability,
		VolumeML:       parseVolumeML(name),
	}, nil
}

// LiveCheck re-scrapes the product page and reports current price and
// stock. Never returns an error: scrape failures come back as a result with
// status "error".
func (a *BootsAdapter) LiveCheck(ctx context.Context, product *domain.Product, postcode string) *domain.LiveResult {
	detail, err := a.FetchDetail(ctx, product.PDPURL)
	if err != nil {
		a.logger.Error("boots live check failed",
			zap.String("sku", product.RetailerSKU), zap.Error(err))
		return errorResult(postcode, "error", domain.SourceScrape)
	}

	return &domain.LiveResult{
		Price:               detail.Price,
		Currency:            detail.Currency,
		InStock:             detail.Availability,
		DeliverablePostcode: postcode,
		IngredientsRaw:      detail.IngredientsRaw,
		StatusCode:          "200",
		FetchedAt:           time.Now(),
		Source:              domain.SourceScrape,
	}
}

func (a *BootsAdapter) absoluteURL(href string) string {
	if href == "" || strings.HasPrefix(href, "http") {
		return href
	}
	// Protocol-relative, common in img src attributes.
	if strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	return a.baseURL + "/" + strings.TrimLeft(href, "/")
}

func extractPoundPrice(text string) *float64 {
	m := poundPriceRegex.FindStringSubmatch(strings.ReplaceAll(text, ",", ""))
	if m == nil {
		return nil
	}
	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return nil
	}
	return &value
}

func cleanText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
