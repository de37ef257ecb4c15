// Package shopping looks up product listings for a search query.
//
// Two Searchers exist: SerpAPI queries the Google Shopping engine and Catalog
// ranks a local list of items. Neither returns an error from Search; provider
// failures and empty matches both yield an empty Result.
package shopping

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/tbourn/shopping-assistant/internal/domain"
)

// DefaultMaxResults caps the records returned by a search.
const DefaultMaxResults = 9

var (
	// ErrNotConfigured is returned when a provider call needs a key that is unset.
	ErrNotConfigured = errors.New("shopping: provider key is not configured")
	// ErrInvalidDetailURL is returned for a detail link that is blank or not
	// issued by the provider.
	ErrInvalidDetailURL = errors.New("shopping: invalid product detail url")
	// ErrNoDetails is returned when the provider has no product_results.
	ErrNoDetails = errors.New("shopping: no product results")
	// ErrProvider wraps an error payload reported by the provider.
	ErrProvider = errors.New("shopping: provider error")
)

// Result is a ranked set of products from a single source.
type Result struct {
	Source   domain.ProductSource
	Products []domain.Product
}

// Len reports the number of products.
func (r Result) Len() int { return len(r.Products) }

func empty(src domain.ProductSource) Result {
	return Result{Source: src, Products: []domain.Product{}}
}

// Searcher returns up to a configured number of products for query.
type Searcher interface {
	Search(ctx context.Context, query string) Result
}

// DetailFetcher resolves a provider detail link into its product_results.
type DetailFetcher interface {
	Details(ctx context.Context, detailURL string) (map[string]interface{}, error)
}

// Option configures a Searcher.
type Option func(*options)

type options struct {
	log   zerolog.Logger
	fetch Backend
}

// WithLogger sets the logger used for provider failures.
func WithLogger(l zerolog.Logger) Option { return func(o *options) { o.log = l } }

// WithBackend replaces the SerpAPI transport.
func WithBackend(b Backend) Option {
	return func(o *options) {
		if b != nil {
			o.fetch = b
		}
	}
}

func clampMax(n int) int {
	if n <= 0 {
		return DefaultMaxResults
	}
	return n
}
