// Package cart keeps the shopping cart and mirrors it to the local store.
package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/blockedby/loyalty-miniapp/internal/logger"
	"github.com/blockedby/loyalty-miniapp/internal/models"
)

var (
	// ErrProductUnavailable is returned when adding a product that is not for sale.
	ErrProductUnavailable = errors.New("product is not available")
	// ErrNotInCart is returned when changing an item that is not in the cart.
	ErrNotInCart = errors.New("item is not in the cart")
)

// Store persists cart items between runs.
type Store interface {
	SaveCart(ctx context.Context, items []models.CartItem) error
	LoadCart(ctx context.Context) ([]models.CartItem, error)
}

// Cart is an ordered list of items. Every change is written through to Store.
type Cart struct {
	store Store
	log   *logger.Logger

	mu    sync.Mutex
	items []models.CartItem
}

// New creates an empty cart. store may be nil.
func New(store Store) *Cart {
	return &Cart{store: store, log: logger.Get()}
}

// Load replaces the in-memory cart with the stored one. Items with a non-positive
// quantity are dropped.
func (c *Cart) Load(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	items, err := c.store.LoadCart(ctx)
	if err != nil {
		return fmt.Errorf("load cart: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = c.items[:0]
	for _, it := range items {
		if it.Quantity > 0 {
			c.items = append(c.items, it)
		}
	}
	return nil
}

// Add puts one unit of p in the cart, incrementing the quantity if it is already there.
func (c *Cart) Add(ctx context.Context, p models.Product) error {
	if !p.IsAvailable {
		return ErrProductUnavailable
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if i := c.indexLocked(p.GUID); i >= 0 {
		c.items[i].Quantity++
	} else {
		c.items = append(c.items, models.CartItem{
			GUID:     p.GUID,
			Name:     p.Name,
			Price:    p.Price,
			ImageURL: p.ImageURL,
			Category: p.Category,
			Quantity: 1,
		})
	}
	return c.saveLocked(ctx)
}

// SetQuantity sets the quantity of an item. A quantity below 1 removes it.
func (c *Cart) SetQuantity(ctx context.Context, guid string, quantity int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexLocked(guid)
	if i < 0 {
		return ErrNotInCart
	}
	if quantity < 1 {
		c.items = append(c.items[:i], c.items[i+1:]...)
	} else {
		c.items[i].Quantity = quantity
	}
	return c.saveLocked(ctx)
}

// Remove deletes an item. Removing a missing item is a no-op.
func (c *Cart) Remove(ctx context.Context, guid string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexLocked(guid)
	if i < 0 {
		return nil
	}
	c.items = append(c.items[:i], c.items[i+1:]...)
	return c.saveLocked(ctx)
}

// Clear empties the cart and the stored copy.
func (c *Cart) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = nil
	return c.saveLocked(ctx)
}

// Reset empties the in-memory cart only. Used after logout, which clears the store itself.
func (c *Cart) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = nil
}

// Items returns a copy of the cart lines.
func (c *Cart) Items() []models.CartItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.CartItem(nil), c.items...)
}

// Total is the sum of price*quantity.
func (c *Cart) Total() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	var total float64
	for _, it := range c.items {
		total += it.Subtotal()
	}
	return total
}

// Count is the number of units across all lines.
func (c *Cart) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, it := range c.items {
		n += it.Quantity
	}
	return n
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items) == 0
}

// OrderItems converts the cart to order lines.
func (c *Cart) OrderItems() []models.CreateOrderItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.CreateOrderItem, 0, len(c.items))
	for _, it := range c.items {
		out = append(out, models.CreateOrderItem{Product: it.GUID, Quantity: it.Quantity, Price: it.Price})
	}
	return out
}

func (c *Cart) indexLocked(guid string) int {
	for i, it := range c.items {
		if it.GUID == guid {
			return i
		}
	}
	return -1
}

func (c *Cart) saveLocked(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	if err := c.store.SaveCart(ctx, append([]models.CartItem(nil), c.items...)); err != nil {
		c.log.Warn().Err(err).Msg("cart: failed to write mirror")
		return fmt.Errorf("save cart: %w", err)
	}
	return nil
}
