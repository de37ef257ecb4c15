package domain

import "encoding/json"

// ProductSource tags which listing shape a products message carries. The two
// shapes are never mixed within one message.
type ProductSource string

const (
	// SourceCatalog marks items from the locally-defined catalog.
	SourceCatalog ProductSource = "catalog"
	// SourceShopping marks listings returned by the shopping-search provider.
	SourceShopping ProductSource = "shopping"
)

// CatalogItem is a locally-defined catalog product.
type CatalogItem struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Price         float64  `json:"price"`
	OriginalPrice *float64 `json:"originalPrice,omitempty"`
	Image         string   `json:"image"`
	Description   string   `json:"description"`
	Category      string   `json:"category,omitempty"`
	Rating        *float64 `json:"rating,omitempty"`
	Reviews       *int     `json:"reviews,omitempty"`
	InStock       *bool    `json:"inStock,omitempty"`
	URL           string   `json:"url,omitempty"`
}

// HasDiscount reports whether the item should show a discount indicator.
func (c CatalogItem) HasDiscount() bool {
	return c.Price >= 0 && c.OriginalPrice != nil && *c.OriginalPrice > c.Price
}

// Listing is one record returned by the shopping-search provider. Only the
// fields consumed by clients are kept.
type Listing struct {
	Position          int      `json:"position,omitempty"`
	Title             string   `json:"title"`
	Price             string   `json:"price,omitempty"`
	ExtractedPrice    *float64 `json:"extracted_price,omitempty"`
	OldPrice          string   `json:"old_price,omitempty"`
	ExtractedOldPrice *float64 `json:"extracted_old_price,omitempty"`
	Thumbnail         string   `json:"thumbnail,omitempty"`
	ProductLink       string   `json:"product_link,omitempty"`
	Source            string   `json:"source,omitempty"`
	Rating            *float64 `json:"rating,omitempty"`
	Reviews           *int     `json:"reviews,omitempty"`
	Delivery          string   `json:"delivery,omitempty"`
	ProductID         string   `json:"product_id,omitempty"`

	// Detail-fetch tokens emitted by the provider.
	SerpAPIProductAPI          string `json:"serpapi_product_api,omitempty"`
	SerpAPIImmersiveProductAPI string `json:"serpapi_immersive_product_api,omitempty"`
	ImmersiveProductPageToken  string `json:"immersive_product_page_token,omitempty"`
}

// HasDiscount reports whether the listing should show a discount indicator.
func (l Listing) HasDiscount() bool {
	if l.ExtractedPrice == nil || l.ExtractedOldPrice == nil {
		return false
	}
	return *l.ExtractedPrice >= 0 && *l.ExtractedOldPrice > *l.ExtractedPrice
}

// Product is a tagged union over the two listing shapes. Exactly one of
// Catalog or Listing is set.
type Product struct {
	Catalog *CatalogItem
	Listing *Listing
}

// Source reports which shape p carries.
func (p Product) Source() ProductSource {
	if p.Listing != nil {
		return SourceShopping
	}
	return SourceCatalog
}

// MarshalJSON writes the underlying record without a wrapper.
func (p Product) MarshalJSON() ([]byte, error) {
	switch {
	case p.Listing != nil:
		return json.Marshal(p.Listing)
	case p.Catalog != nil:
		return json.Marshal(p.Catalog)
	}
	return []byte("null"), nil
}

// UnmarshalJSON detects the shape from its keys: provider listings carry
// "title" or "product_link", catalog items carry "name".
func (p *Product) UnmarshalJSON(b []byte) error {
	var shape struct {
		Title       *string `json:"title"`
		ProductLink *string `json:"product_link"`
	}
	if err := json.Unmarshal(b, &shape); err != nil {
		return err
	}
	if shape.Title != nil || shape.ProductLink != nil {
		var l Listing
		if err := json.Unmarshal(b, &l); err != nil {
			return err
		}
		*p = Product{Listing: &l}
		return nil
	}
	var c CatalogItem
	if err := json.Unmarshal(b, &c); err != nil {
		return err
	}
	*p = Product{Catalog: &c}
	return nil
}

// FromCatalog wraps catalog items as products.
func FromCatalog(items []CatalogItem) []Product {
	out := make([]Product, 0, len(items))
	for i := range items {
		it := items[i]
		out = append(out, Product{Catalog: &it})
	}
	return out
}

// FromListings wraps provider listings as products.
func FromListings(items []Listing) []Product {
	out := make([]Product, 0, len(items))
	for i := range items {
		it := items[i]
		out = append(out, Product{Listing: &it})
	}
	return out
}
