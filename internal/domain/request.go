package domain

// Location is an optional delivery location on a match request.
type Location struct {
	Postcode string   `json:"postcode,omitempty"`
	Lat      *float64 `json:"lat,omitempty"`
	Lon      *float64 `json:"lon,omitempty"`
}

// MatchRequest is a product matching request. Immutable once validated.
type MatchRequest struct {
	Country             string    `json:"country"`
	Location            *Location `json:"location,omitempty"`
	RequiredIngredients []string  `json:"required_ingredients"`
	AvoidIngredients    []string  `json:"avoid_ingredients"`
	MaxPrice            *float64  `json:"max_price,omitempty"`
	Currency            string    `json:"currency,omitempty"`
}

// Postcode returns the request postcode, or "" when no location was given.
func (r *MatchRequest) Postcode() string {
	if r.Location == nil {
		return ""
	}
	return r.Location.Postcode
}

// MatchedProduct is one verified entry in a match response.
type MatchedProduct struct {
	ID                    string      `json:"id"`
	Retailer              Retailer    `json:"retailer"`
	RetailerSKU           string      `json:"retailer_sku"`
	Brand                 string      `json:"brand"`
	Name                  string      `json:"name"`
	Country               string      `json:"country"`
	Currency              string      `json:"currency"`
	Price                 *float64    `json:"price"`
	PricePerML            *float64    `json:"price_per_ml"`
	FormattedPrice        string      `json:"formatted_price,omitempty"`
	PDPURL                string      `json:"pdp_url"`
	ImageURL              string      `json:"image_url,omitempty"`
	IngredientsNormalised []string    `json:"ingredients_normalised"`
	Availability          StockStatus `json:"availability"`
	Score                 float64     `json:"score"`
	LastVerified          *string     `json:"last_verified"`
}

// MatchResponse is the body returned by the matching endpoint. An empty
// Results slice is a valid, successful outcome.
type MatchResponse struct {
	GeneratedAt string           `json:"generated_at"`
	Currency    string           `json:"currency"`
	Results     []MatchedProduct `json:"results"`
}
