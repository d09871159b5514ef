package retailer

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/skinmatch/backend/internal/domain"
)

const bootsSearchPage = `<html><body>
<div class="product-tile" data-product-id="10142983">
  <a href="/cerave-niacinamide-serum-30ml/10142983">
    <img src="/images/10142983.jpg"/>
    <span class="product-brand">CeraVe</span>
    <span class="product-name">CeraVe Niacinamide Serum 30ml</span>
    <span class="price">£12.00</span>
  </a>
</div>
<div class="product-tile">
  <a href="/no-sku-product/">
    <span class="product-name">Tile without a SKU</span>
  </a>
</div>
</body></html>`

const bootsDetailPage = `<html><body>
<h1 class="product-name">CeraVe Niacinamide Serum 30ml</h1>
<span class="product-brand">CeraVe</span>
<div class="price">£11.50</div>
<div class="stock-status">In stock</div>
<div class="product-ingredients">Aqua, Niacinamide, Glycerin, Phenoxyethanol</div>
<div class="product-image"><img src="/images/10142983.jpg"/></div>
</body></html>`

const bootsDetailNoSection = `<html><body>
<h1 class="product-name">Mystery Cream 50ml</h1>
<div class="price">£7.99</div>
<div class="stock-status">Currently unavailable</div>
<div class="product-description">A rich cream. Ingredients: Aqua, Glycerin, Dimethicone. Use daily.</div>
</body></html>`

func newBootsTestServer(t *testing.T, pages map[string]string) *BootsAdapter {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for prefix, body := range pages {
			if r.URL.Path == prefix {
				fmt.Fprint(w, body)
				return
			}
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(server.Close)

	return NewBootsAdapter(BootsConfig{BaseURL: server.URL}, zap.NewNop())
}

func TestBootsAdapterIdentity(t *testing.T) {
	adapter := NewBootsAdapter(BootsConfig{}, zap.NewNop())
	assert.Equal(t, domain.RetailerBoots, adapter.Retailer())
	assert.Equal(t, "GB", adapter.Country())
}

func TestBootsSearch(t *testing.T) {
	adapter := newBootsTestServer(t, map[string]string{"/search": bootsSearchPage})

	seeds, err := adapter.Search(context.Background(), "niacinamide serum", "GB")
	require.NoError(t, err)
	require.Len(t, seeds, 1, "the tile without a SKU is skipped")

	seed := seeds[0]
	assert.Equal(t, "10142983", seed.RetailerSKU)
	assert.Equal(t, "CeraVe Niacinamide Serum 30ml", seed.Name)
	assert.Equal(t, "CeraVe", seed.Brand)
	require.NotNil(t, seed.Price)
	assert.Equal(t, 12.00, *seed.Price)
	assert.Equal(t, "GBP", seed.Currency)
	assert.Contains(t, seed.PDPURL, "/cerave-niacinamide-serum-30ml/10142983")
}

func TestBootsFetchDetail(t *testing.T) {
	t.Run("dedicated ingredients section", func(t *testing.T) {
		adapter := newBootsTestServer(t, map[string]string{"/product/10142983": bootsDetailPage})

		detail, err := adapter.FetchDetail(context.Background(), "10142983")
		require.NoError(t, err)

		assert.Equal(t, "CeraVe Niacinamide Serum 30ml", detail.Name)
		assert.Equal(t, "CeraVe", detail.Brand)
		require.NotNil(t, detail.Price)
		assert.Equal(t, 11.50, *detail.Price)
		assert.Equal(t, domain.StockIn, detail.Availability)
		assert.Contains(t, detail.IngredientsRaw, "Niacinamide")
		require.NotNil(t, detail.VolumeML)
		assert.Equal(t, 30.0, *detail.VolumeML)
	})

	t.Run("ingredients fallback inside the description", func(t *testing.T) {
		adapter := newBootsTestServer(t, map[string]string{"/product/555": bootsDetailNoSection})

		detail, err := adapter.FetchDetail(context.Background(), "555")
		require.NoError(t, err)

		assert.Contains(t, detail.IngredientsRaw, "Dimethicone")
		assert.NotContains(t, detail.IngredientsRaw, "Use daily")
		assert.Equal(t, domain.StockOut, detail.Availability)
	})

	t.Run("missing page is an error", func(t *testing.T) {
		adapter := newBootsTestServer(t, map[string]string{})

		_, err := adapter.FetchDetail(context.Background(), "404040")
		assert.Error(t, err)
	})
}

func TestBootsLiveCheck(t *testing.T) {
	t.Run("successful scrape", func(t *testing.T) {
		adapter := newBootsTestServer(t, map[string]string{"/product/10142983": bootsDetailPage})

		product := &domain.Product{
			Retailer:    domain.RetailerBoots,
			RetailerSKU: "10142983",
			PDPURL:      adapter.baseURL + "/product/10142983",
		}
		result := adapter.LiveCheck(context.Background(), product, "EH1 1YZ")

		require.True(t, result.OK())
		assert.Equal(t, domain.SourceScrape, result.Source)
		assert.Equal(t, "EH1 1YZ", result.DeliverablePostcode)
		require.NotNil(t, result.Price)
		assert.Equal(t, 11.50, *result.Price)
		assert.Equal(t, domain.StockIn, result.InStock)
	})

	t.Run("scrape failure yields an error result, not an error", func(t *testing.T) {
		adapter := newBootsTestServer(t, map[string]string{})

		product := &domain.Product{
			Retailer:    domain.RetailerBoots,
			RetailerSKU: "999",
			PDPURL:      adapter.baseURL + "/product/999",
		}
		result := adapter.LiveCheck(context.Background(), product, "")

		require.NotNil(t, result)
		assert.False(t, result.OK())
		assert.Equal(t, "error", result.StatusCode)
	})
}

func TestExtractPoundPrice(t *testing.T) {
	price := extractPoundPrice("Now £12.99 was £15.00")
	require.NotNil(t, price)
	assert.Equal(t, 12.99, *price)

	grouped := extractPoundPrice("£1,099.00")
	require.NotNil(t, grouped)
	assert.Equal(t, 1099.00, *grouped)

	assert.Nil(t, extractPoundPrice("free sample"))
}

func TestAbsoluteURL(t *testing.T) {
	adapter := NewBootsAdapter(BootsConfig{}, zap.NewNop())

	tests := []struct {
		href string
		want string
	}{
		{"/beauty/serum-123", "https://www.boots.com/beauty/serum-123"},
		{"beauty/serum-123", "https://www.boots.com/beauty/serum-123"},
		{"https://www.boots.com/beauty/serum-123", "https://www.boots.com/beauty/serum-123"},
		{"//media.boots.com/img/serum.jpg", "https://media.boots.com/img/serum.jpg"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, adapter.absoluteURL(tt.href), "href %q", tt.href)
	}
}

func TestRegistry(t *testing.T) {
	boots := NewBootsAdapter(BootsConfig{}, zap.NewNop())
	amazon := NewRainforestAdapter(RainforestConfig{APIKey: "k"}, zap.NewNop())

	t.Run("lookup by retailer", func(t *testing.T) {
		registry, err := NewRegistry(boots, amazon)
		require.NoError(t, err)

		adapter, ok := registry.Lookup(domain.RetailerBoots)
		require.True(t, ok)
		assert.Equal(t, domain.RetailerBoots, adapter.Retailer())

		_, ok = registry.Lookup(domain.RetailerSuperdrug)
		assert.False(t, ok)
	})

	t.Run("duplicate registration fails construction", func(t *testing.T) {
		_, err := NewRegistry(boots, NewBootsAdapter(BootsConfig{}, zap.NewNop()))
		assert.Error(t, err)
	})
}
