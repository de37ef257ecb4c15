package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/tbourn/shopping-assistant/internal/config"
	"github.com/tbourn/shopping-assistant/internal/domain"
	"github.com/tbourn/shopping-assistant/internal/repo"
	"github.com/tbourn/shopping-assistant/internal/shopping"
)

func TestProductSearch_CatalogWithoutKey(t *testing.T) {
	var cfg config.Config
	cfg.Shopping.MaxResults = 3

	search, details := productSearch(cfg)
	if details != nil {
		t.Fatalf("catalog mode should not offer product details")
	}
	if _, ok := search.(*shopping.Catalog); !ok {
		t.Fatalf("want *shopping.Catalog, got %T", search)
	}
	res := search.Search(context.Background(), "laptop")
	if res.Source != domain.SourceCatalog || res.Len() > 3 {
		t.Fatalf("unexpected catalog result: source=%s len=%d", res.Source, res.Len())
	}
}

func TestProductSearch_CatalogFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	body := `[{"id":"p1","name":"Trail Tent 2P","description":"two person tent","price":199,"category":"camping"}]`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	var cfg config.Config
	cfg.Shopping.MaxResults = 5
	cfg.Shopping.CatalogPath = path

	search, _ := productSearch(cfg)
	cat, ok := search.(*shopping.Catalog)
	if !ok || cat.Len() != 1 {
		t.Fatalf("want a one-item catalog, got %T", search)
	}
}

func TestProductSearch_ProviderWithKey(t *testing.T) {
	var cfg config.Config
	cfg.Shopping.SerpAPIKey = "test-key"
	cfg.Shopping.MaxResults = 9

	search, details := productSearch(cfg)
	if _, ok := search.(*shopping.SerpAPI); !ok {
		t.Fatalf("want *shopping.SerpAPI, got %T", search)
	}
	if details == nil {
		t.Fatalf("provider mode should offer product details")
	}
}

func TestOpenKV_Memory(t *testing.T) {
	var cfg config.Config
	cfg.Store.Driver = config.StoreMemory

	kv, closeFn := openKV(context.Background(), cfg, nil)
	defer closeFn()
	if _, ok := kv.(*repo.MemoryKV); !ok {
		t.Fatalf("want *repo.MemoryKV, got %T", kv)
	}
}
