// Package catalog caches the product and category lists.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/blockedby/loyalty-miniapp/internal/logger"
	"github.com/blockedby/loyalty-miniapp/internal/models"
)

// AllCategories is the filter value that matches every product.
const AllCategories = "all"

// Source fetches the read-only collections.
type Source interface {
	Products(ctx context.Context) ([]models.Product, error)
	Categories(ctx context.Context) ([]models.Category, error)
}

// Catalog holds products and categories loaded from Source.
type Catalog struct {
	source Source
	log    *logger.Logger

	mu         sync.RWMutex
	products   []models.Product
	categories []models.Category

	// serializes loads so concurrent callers don't double-fetch
	loadMu sync.Mutex
}

// New creates an empty catalog.
func New(source Source) *Catalog {
	return &Catalog{source: source, log: logger.Get()}
}

// EnsureLoaded loads each collection only if it is empty. Both are attempted even when
// one fails.
func (c *Catalog) EnsureLoaded(ctx context.Context) error {
	c.loadMu.Lock()
	defer c.loadMu.Unlock()

	var errs []error

	if c.productCount() == 0 {
		products, err := c.source.Products(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("load products: %w", err))
		} else {
			c.mu.Lock()
			c.products = products
			c.mu.Unlock()
			c.log.Info().Int("count", len(products)).Msg("catalog: products loaded")
		}
	}

	if c.categoryCount() == 0 {
		categories, err := c.source.Categories(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("load categories: %w", err))
		} else {
			c.mu.Lock()
			c.categories = categories
			c.mu.Unlock()
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("catalog: %w", errors.Join(errs...))
	}
	return nil
}

// Reload drops the cached collections and loads them again.
func (c *Catalog) Reload(ctx context.Context) error {
	c.mu.Lock()
	c.products = nil
	c.categories = nil
	c.mu.Unlock()
	return c.EnsureLoaded(ctx)
}

// Products returns a copy of all products.
func (c *Catalog) Products() []models.Product {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]models.Product(nil), c.products...)
}

// Categories returns a copy of all categories.
func (c *Catalog) Categories() []models.Category {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]models.Category(nil), c.categories...)
}

// Filter returns products in category (matched by slug or lower-cased name; "" or
// AllCategories match everything) whose name contains term, case-insensitively.
func (c *Catalog) Filter(category, term string) []models.Product {
	category = strings.ToLower(strings.TrimSpace(category))
	term = strings.ToLower(strings.TrimSpace(term))

	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]models.Product, 0, len(c.products))
	for _, p := range c.products {
		if !matchesCategory(p, category) {
			continue
		}
		if term != "" && !strings.Contains(strings.ToLower(p.Name), term) {
			continue
		}
		result = append(result, p)
	}
	return result
}

// Find returns the product with the given guid.
func (c *Catalog) Find(guid string) (models.Product, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, p := range c.products {
		if p.GUID == guid {
			return p, true
		}
	}
	return models.Product{}, false
}

func matchesCategory(p models.Product, category string) bool {
	if category == "" || category == AllCategories {
		return true
	}
	if p.Category == nil {
		return false
	}
	return p.Category.Key() == category || strings.ToLower(p.Category.Name) == category
}

func (c *Catalog) productCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.products)
}

func (c *Catalog) categoryCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.categories)
}
