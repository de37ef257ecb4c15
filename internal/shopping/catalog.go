package shopping

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/tbourn/shopping-assistant/internal/domain"
	"github.com/tbourn/shopping-assistant/internal/observability"
	"github.com/tbourn/shopping-assistant/internal/search"
)

// Catalog ranks a fixed list of items by token overlap with the query.
type Catalog struct {
	items map[string]domain.CatalogItem
	idx   search.Index
	max   int
	opts  options
}

// NewCatalog indexes items by name, category and description. Items without an
// id are ignored; a later duplicate id replaces an earlier one.
func NewCatalog(items []domain.CatalogItem, maxResults int, opts ...Option) *Catalog {
	c := &Catalog{
		items: make(map[string]domain.CatalogItem, len(items)),
		max:   clampMax(maxResults),
		opts:  options{log: log.Logger},
	}
	for _, o := range opts {
		o(&c.opts)
	}
	docs := make([]search.Doc, 0, len(items))
	for _, it := range items {
		if strings.TrimSpace(it.ID) == "" {
			continue
		}
		if _, dup := c.items[it.ID]; !dup {
			docs = append(docs, search.Doc{ID: it.ID})
		}
		c.items[it.ID] = it
	}
	for i := range docs {
		it := c.items[docs[i].ID]
		docs[i].Text = strings.Join([]string{it.Name, it.Category, it.Description}, " ")
	}
	c.idx = search.New(docs)
	return c
}

// Len reports the number of indexed items.
func (c *Catalog) Len() int { return c.idx.Len() }

// Search returns the best-matching items for query, most relevant first.
func (c *Catalog) Search(ctx context.Context, query string) Result {
	_, span := otel.Tracer("shopping/Catalog").Start(ctx, "Search")
	defer span.End()

	hits := c.idx.TopK(query, c.max)
	out := make([]domain.CatalogItem, 0, len(hits))
	for _, h := range hits {
		out = append(out, c.items[h.ID])
	}
	outcome := observability.OutcomeOK
	if len(out) == 0 {
		outcome = observability.OutcomeEmpty
	}
	observability.ShoppingSearches.WithLabelValues(string(domain.SourceCatalog), outcome).Inc()
	span.SetAttributes(attribute.Int("shopping.results", len(out)))
	c.opts.log.Debug().Str("query", query).Int("results", len(out)).Msg("catalog search")

	return Result{Source: domain.SourceCatalog, Products: domain.FromCatalog(out)}
}

// LoadCatalog reads a JSON array of catalog items from path. An empty path
// returns SampleItems.
func LoadCatalog(path string) ([]domain.CatalogItem, error) {
	if strings.TrimSpace(path) == "" {
		return SampleItems(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var items []domain.CatalogItem
	if err := json.Unmarshal(b, &items); err != nil {
		return nil, fmt.Errorf("decode catalog %s: %w", path, err)
	}
	for i, it := range items {
		if strings.TrimSpace(it.ID) == "" || strings.TrimSpace(it.Name) == "" {
			return nil, fmt.Errorf("catalog %s: item %d needs id and name", path, i)
		}
		if it.Price < 0 {
			return nil, fmt.Errorf("catalog %s: item %q has a negative price", path, it.ID)
		}
	}
	return items, nil
}

// SampleItems returns the built-in demonstration catalog.
func SampleItems() []domain.CatalogItem {
	const img = "/placeholder.svg?height=200&width=200"
	f := func(v float64) *float64 { return &v }
	yes := func() *bool { b := true; return &b }
	return []domain.CatalogItem{
		{
			ID: "1", Name: "Wireless Bluetooth Headphones", Price: 79.99, OriginalPrice: f(99.99), Image: img,
			Description: "High-quality wireless headphones with noise cancellation and 30-hour battery life.",
			Category:    "Electronics", Rating: f(4.5), InStock: yes(),
		},
		{
			ID: "2", Name: "Smart Fitness Watch", Price: 199.99, Image: img,
			Description: "Track your health and fitness with GPS, heart rate monitoring, and sleep tracking.",
			Category:    "Wearables", Rating: f(4.3), InStock: yes(),
		},
		{
			ID: "3", Name: "Portable Phone Charger", Price: 29.99, OriginalPrice: f(39.99), Image: img,
			Description: "10,000mAh power bank with fast charging and multiple USB ports.",
			Category:    "Accessories", Rating: f(4.7), InStock: yes(),
		},
		{
			ID: "4", Name: "Ergonomic Office Chair", Price: 299.99, Image: img,
			Description: "Comfortable office chair with lumbar support and adjustable height.",
			Category:    "Furniture", Rating: f(4.2), InStock: yes(),
		},
		{
			ID: "5", Name: "4K Webcam", Price: 89.99, OriginalPrice: f(119.99), Image: img,
			Description: "Ultra HD webcam with auto-focus and built-in microphone for video calls.",
			Category:    "Electronics", Rating: f(4.4), InStock: yes(),
		},
		{
			ID: "6", Name: "Mechanical Keyboard", Price: 149.99, Image: img,
			Description: "RGB backlit mechanical keyboard with tactile switches and programmable keys.",
			Category:    "Electronics", Rating: f(4.6), InStock: yes(),
		},
	}
}
